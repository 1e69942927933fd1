package keystore

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github/chapool/dot-wallet/internal/config"
	"github/chapool/dot-wallet/internal/util"
	"github/chapool/dot-wallet/internal/util/command"
	"github/chapool/dot-wallet/internal/wallet/seed"
)

const (
	importFlag        = "import"
	minPasswordLength = 8
)

func newCreate() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Creates the keystore file",
		Long: `Generates a 24 word mnemonic (or imports one with --import), encrypts it with
a password and writes the keystore to WALLET_KEYSTORE_PATH. An existing
keystore is never overwritten.`,
		Args: cobra.NoArgs,
		RunE: createCmdFunc,
	}

	cmd.Flags().Bool(importFlag, false, "Prompt for an existing mnemonic instead of generating one.")

	return cmd
}

func createCmdFunc(cmd *cobra.Command, _ []string) error {
	importMnemonic, err := cmd.Flags().GetBool(importFlag)
	if err != nil {
		return errors.Wrap(err, "failed to read import flag")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	util.ConfigureGlobalLogger(cfg.Logger.LogLevel(), cfg.Logger.PrettyPrintConsole)

	keystoreService, _, err := command.NewKeystore(cfg)
	if err != nil {
		return err
	}

	exists, err := keystoreService.Exists(cmd.Context())
	if err != nil {
		return err
	}
	if exists {
		return errors.Errorf("keystore %s already exists", keystoreService.Path())
	}

	var mnemonic string
	if importMnemonic {
		mnemonic, err = command.PromptPassword("Enter mnemonic: ")
		if err != nil {
			return errors.Wrap(err, "failed to read mnemonic")
		}
		mnemonic = strings.Join(strings.Fields(mnemonic), " ")
	} else {
		mnemonic, err = seed.NewMnemonic()
		if err != nil {
			return err
		}
	}

	password, err := command.PromptPassword(fmt.Sprintf("Enter password for keystore (min %d characters): ", minPasswordLength))
	if err != nil {
		return errors.Wrap(err, "failed to read password")
	}

	if len(password) < minPasswordLength {
		return errors.Errorf("password must be at least %d characters", minPasswordLength)
	}

	passwordConfirm, err := command.PromptPassword("Confirm password: ")
	if err != nil {
		return errors.Wrap(err, "failed to read password confirmation")
	}

	if password != passwordConfirm {
		return errors.New("passwords do not match")
	}

	created, err := keystoreService.Create(cmd.Context(), mnemonic, password)
	if err != nil {
		return errors.Wrap(err, "failed to create keystore")
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "keystore: %s\n", keystoreService.Path())
	fmt.Fprintf(out, "address:  %s\n", created.Address)

	if !importMnemonic {
		fmt.Fprintln(out, "\nWrite down the mnemonic below. It is the only way to recover the account.")
		fmt.Fprintln(out, mnemonic)
	}

	return nil
}
