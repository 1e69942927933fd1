package command

import (
	"context"
	"fmt"
	"net"
	"os"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github/chapool/dot-wallet/internal/config"
	"github/chapool/dot-wallet/internal/metrics"
	"github/chapool/dot-wallet/internal/util"
	"github/chapool/dot-wallet/internal/wallet"
	"github/chapool/dot-wallet/internal/wallet/address"
	"github/chapool/dot-wallet/internal/wallet/extrinsic"
	"github/chapool/dot-wallet/internal/wallet/keystore"
	"github/chapool/dot-wallet/internal/wallet/poll"
	"github/chapool/dot-wallet/internal/wallet/seed"
	"github/chapool/dot-wallet/internal/wallet/signer"
	"github/chapool/dot-wallet/internal/wallet/transport"
	"golang.org/x/term"
)

// NewSubcommandGroup returns a command that only groups subCommands and
// prints its help when run on its own.
func NewSubcommandGroup(name string, subCommands ...*cobra.Command) *cobra.Command {
	cmd := &cobra.Command{
		Use:   name,
		Short: fmt.Sprintf("%s related subcommands", name),
		Run: func(cmd *cobra.Command, _ []string) {
			if err := cmd.Help(); err != nil {
				log.Error().Err(err).Msg("Failed to print help")
			}
		},
	}

	cmd.AddCommand(subCommands...)

	return cmd
}

// Session is a connected wallet and what it was built from.
type Session struct {
	Config  config.Wallet
	Wallet  *wallet.Wallet
	Metrics *metrics.Metrics
}

// WithWallet connects a wallet for cfg, runs f and closes the connection
// again. The error of f is returned as is.
func WithWallet(ctx context.Context, cfg config.Wallet, s signer.Signer, f func(ctx context.Context, session *Session) error) error {
	util.ConfigureGlobalLogger(cfg.Logger.LogLevel(), cfg.Logger.PrettyPrintConsole)
	log := log.With().Str("node", cfg.Node.Address).Logger()
	ctx = util.WithLogger(ctx, log)

	m, err := metrics.New(prometheus.NewRegistry())
	if err != nil {
		return errors.Wrap(err, "failed to register metrics")
	}

	tcp := transport.NewTCP()
	tcp.DialTimeout = cfg.Node.DialTimeout
	tcp.Logger = log

	w := wallet.New(tcp, s, append(WalletOptions(cfg), wallet.WithLogger(log), wallet.WithMetrics(m))...)

	if err := w.Connect(ctx); err != nil {
		return err
	}

	defer func() {
		if err := w.Close(ctx); err != nil {
			log.Warn().Err(err).Msg("Failed to close connection gracefully")
		}
	}()

	return f(ctx, &Session{Config: cfg, Wallet: w, Metrics: m})
}

// WalletOptions maps cfg onto wallet options.
func WalletOptions(cfg config.Wallet) []wallet.Option {
	return []wallet.Option{
		wallet.WithNode(cfg.Node.Address, NodeHost(cfg.Node), cfg.Node.Path),
		wallet.WithDriver(poll.Driver{Attempts: cfg.Poll.Attempts, Interval: cfg.Poll.Interval}),
		wallet.WithParams(ChainParams(cfg.Chain)),
		wallet.WithPrefix(cfg.Chain.SS58Prefix),
	}
}

// NodeHost is the Host header for the node, defaulting to the host of its
// dial address.
func NodeHost(node config.Node) string {
	if node.Host != "" {
		return node.Host
	}
	host, _, err := net.SplitHostPort(node.Address)
	if err != nil {
		return node.Address
	}
	return host
}

func ChainParams(chain config.Chain) extrinsic.Params {
	params := extrinsic.DefaultParams()
	params.BalancesPallet = chain.BalancesPallet
	params.TransferCall = chain.TransferCall
	params.TransferKeepAliveCall = chain.TransferKeepAliveCall
	params.SystemPallet = chain.SystemPallet
	params.RemarkCall = chain.RemarkCall
	params.MultiAddress = chain.MultiAddress
	params.MetadataHashExtension = chain.MetadataHashExtension
	params.MaxExtrinsicSize = chain.MaxExtrinsicSize
	return params
}

// NewKeystore returns the keystore service configured by cfg.
//
//nolint:ireturn // Returning interface is intentional for dependency injection
func NewKeystore(cfg config.Wallet) (keystore.Service, address.Service, error) {
	addressService, err := address.NewService(cfg.Chain.SS58Prefix)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to create address service")
	}

	keystoreService, err := keystore.NewService(cfg.Keystore.Path, addressService, cfg.Keystore.DerivationPath, cfg.Keystore.ScryptN)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to create keystore service")
	}

	return keystoreService, addressService, nil
}

// UnlockSigner unlocks the keystore with password and returns a signer for
// its derivation path. The caller clears the returned seed manager when done.
//
//nolint:ireturn // Returning interface is intentional for dependency injection
func UnlockSigner(ctx context.Context, cfg config.Wallet, password string) (signer.Signer, seed.Manager, error) {
	keystoreService, addressService, err := NewKeystore(cfg)
	if err != nil {
		return nil, nil, err
	}

	seedManager := seed.NewManager()
	if err := keystoreService.Unlock(ctx, password, seedManager); err != nil {
		return nil, nil, errors.Wrap(err, "failed to unlock keystore (invalid password?)")
	}

	s, err := signer.NewService(seedManager, addressService, cfg.Keystore.DerivationPath)
	if err != nil {
		seedManager.Clear()
		return nil, nil, errors.Wrap(err, "failed to create signer")
	}

	return s, seedManager, nil
}

// PromptPassword prompts for password input (hides input)
//
//nolint:forbidigo // Password input requires direct terminal I/O
func PromptPassword(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)

	// Read password from terminal (hides input)
	passwordBytes, err := term.ReadPassword(int(os.Stdin.Fd())) //nolint:gosec // fd fits int
	if err != nil {
		return "", errors.Wrap(err, "failed to read password from terminal")
	}

	fmt.Fprintln(os.Stderr) // New line after password input

	return string(passwordBytes), nil
}
