package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

type Node struct {
	// Address is the host:port the transport dials.
	Address string `mapstructure:"WALLET_NODE_ADDRESS" validate:"required,hostname_port"`
	// Host is sent in the upgrade request; empty means the host of Address.
	Host        string        `mapstructure:"WALLET_NODE_HOST"`
	Path        string        `mapstructure:"WALLET_NODE_PATH" validate:"required,startswith=/"`
	DialTimeout time.Duration `mapstructure:"WALLET_NODE_DIAL_TIMEOUT" validate:"gt=0"`
}

type Poll struct {
	Attempts int           `mapstructure:"WALLET_POLL_ATTEMPTS" validate:"min=1"`
	Interval time.Duration `mapstructure:"WALLET_POLL_INTERVAL" validate:"gte=0"`
}

type Chain struct {
	SS58Prefix            uint16 `mapstructure:"WALLET_CHAIN_SS58_PREFIX" validate:"lte=16383"`
	BalancesPallet        uint8  `mapstructure:"WALLET_CHAIN_BALANCES_PALLET"`
	TransferCall          uint8  `mapstructure:"WALLET_CHAIN_TRANSFER_CALL"`
	TransferKeepAliveCall uint8  `mapstructure:"WALLET_CHAIN_TRANSFER_KEEP_ALIVE_CALL"`
	SystemPallet          uint8  `mapstructure:"WALLET_CHAIN_SYSTEM_PALLET"`
	RemarkCall            uint8  `mapstructure:"WALLET_CHAIN_REMARK_CALL"`
	MultiAddress          bool   `mapstructure:"WALLET_CHAIN_MULTI_ADDRESS"`
	MetadataHashExtension bool   `mapstructure:"WALLET_CHAIN_METADATA_HASH_EXTENSION"`
	// MaxExtrinsicSize of 0 disables the local size check.
	MaxExtrinsicSize int    `mapstructure:"WALLET_CHAIN_MAX_EXTRINSIC_SIZE" validate:"gte=0"`
	TokenDecimals    int32  `mapstructure:"WALLET_CHAIN_TOKEN_DECIMALS" validate:"gte=0,lte=38"`
	TokenSymbol      string `mapstructure:"WALLET_CHAIN_TOKEN_SYMBOL" validate:"required"`
	// MortalPeriod of 0 builds immortal transactions.
	MortalPeriod uint64 `mapstructure:"WALLET_CHAIN_MORTAL_PERIOD" validate:"lte=65536"`
}

type Keystore struct {
	Path           string `mapstructure:"WALLET_KEYSTORE_PATH" validate:"required"`
	ScryptN        int    `mapstructure:"WALLET_KEYSTORE_SCRYPT_N" validate:"min=2"`
	DerivationPath string `mapstructure:"WALLET_KEYSTORE_DERIVATION_PATH"`
}

type Logger struct {
	Level              string `mapstructure:"WALLET_LOGGER_LEVEL" validate:"oneof=trace debug info warn error fatal panic disabled"`
	PrettyPrintConsole bool   `mapstructure:"WALLET_LOGGER_PRETTY_PRINT_CONSOLE"`
}

type Metrics struct {
	// ListenAddress of the metrics endpoint served by "chain watch".
	ListenAddress string `mapstructure:"WALLET_METRICS_LISTEN_ADDRESS" validate:"required"`
}

type Wallet struct {
	Node     Node     `mapstructure:",squash"`
	Poll     Poll     `mapstructure:",squash"`
	Chain    Chain    `mapstructure:",squash"`
	Keystore Keystore `mapstructure:",squash"`
	Logger   Logger   `mapstructure:",squash"`
	Metrics  Metrics  `mapstructure:",squash"`
}

var defaults = map[string]any{
	"WALLET_NODE_ADDRESS":      "127.0.0.1:9944",
	"WALLET_NODE_HOST":         "",
	"WALLET_NODE_PATH":         "/",
	"WALLET_NODE_DIAL_TIMEOUT": 5 * time.Second,

	"WALLET_POLL_ATTEMPTS": 3000,
	"WALLET_POLL_INTERVAL": 10 * time.Millisecond,

	"WALLET_CHAIN_SS58_PREFIX":              42,
	"WALLET_CHAIN_BALANCES_PALLET":          5,
	"WALLET_CHAIN_TRANSFER_CALL":            0,
	"WALLET_CHAIN_TRANSFER_KEEP_ALIVE_CALL": 3,
	"WALLET_CHAIN_SYSTEM_PALLET":            0,
	"WALLET_CHAIN_REMARK_CALL":              0,
	"WALLET_CHAIN_MULTI_ADDRESS":            true,
	"WALLET_CHAIN_METADATA_HASH_EXTENSION":  false,
	"WALLET_CHAIN_MAX_EXTRINSIC_SIZE":       0,
	"WALLET_CHAIN_TOKEN_DECIMALS":           12,
	"WALLET_CHAIN_TOKEN_SYMBOL":             "UNIT",
	"WALLET_CHAIN_MORTAL_PERIOD":            64,

	"WALLET_KEYSTORE_PATH":            "keystore.json",
	"WALLET_KEYSTORE_SCRYPT_N":        1 << 18,
	"WALLET_KEYSTORE_DERIVATION_PATH": "",

	"WALLET_LOGGER_LEVEL":                "info",
	"WALLET_LOGGER_PRETTY_PRINT_CONSOLE": false,

	"WALLET_METRICS_LISTEN_ADDRESS": "127.0.0.1:9615",
}

func loadDotEnvFiles() {
	for _, path := range []string{".env", filepath.Join("..", ".env")} {
		if _, err := os.Stat(path); err == nil {
			// variables already set in the environment take precedence
			_ = gotenv.Load(path)
		}
	}
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("env")
	v.AutomaticEnv()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	return v
}

// DefaultWalletConfigFromEnv returns the wallet config from the environment
// (and an optional .env file) over the defaults. It never fails: a value that
// cannot be decoded is logged and the defaults are returned instead.
func DefaultWalletConfigFromEnv() Wallet {
	loadDotEnvFiles()

	var cfg Wallet
	if err := newViper().Unmarshal(&cfg); err != nil {
		log.Warn().Err(err).Msg("Failed to decode wallet config from env, using defaults")

		cfg = Wallet{}
		if err := defaultsOnly().Unmarshal(&cfg); err != nil {
			log.Panic().Err(err).Msg("Failed to decode wallet config defaults")
		}
	}

	return cfg
}

func defaultsOnly() *viper.Viper {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	return v
}

// Load returns the validated wallet config.
func Load() (Wallet, error) {
	loadDotEnvFiles()

	var cfg Wallet
	if err := newViper().Unmarshal(&cfg); err != nil {
		return Wallet{}, errors.Wrap(err, "failed to decode wallet config")
	}

	if err := cfg.Validate(); err != nil {
		return Wallet{}, err
	}

	return cfg, nil
}

func (w Wallet) Validate() error {
	if err := validator.New().Struct(w); err != nil {
		return errors.Wrap(err, "invalid wallet config")
	}
	return nil
}

// LogLevel parses Logger.Level, falling back to info.
func (l Logger) LogLevel() zerolog.Level {
	level, err := zerolog.ParseLevel(l.Level)
	if err != nil {
		return zerolog.InfoLevel
	}
	return level
}
