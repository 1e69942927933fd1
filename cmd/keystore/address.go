package keystore

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github/chapool/dot-wallet/internal/config"
	"github/chapool/dot-wallet/internal/util/command"
)

func newAddress() *cobra.Command {
	return &cobra.Command{
		Use:   "address",
		Short: "Prints the account of the keystore",
		Long: `Prints the address stored in the keystore, formatted for WALLET_CHAIN_SS58_PREFIX.
No password is needed.`,
		Args: cobra.NoArgs,
		RunE: addressCmdFunc,
	}
}

func addressCmdFunc(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	keystoreService, addressService, err := command.NewKeystore(cfg)
	if err != nil {
		return err
	}

	keystoreJSON, err := keystoreService.Load(cmd.Context())
	if err != nil {
		return err
	}

	account, err := addressService.Parse(keystoreJSON.Address)
	if err != nil {
		return errors.Wrap(err, "keystore holds an invalid address")
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "address:    %s\n", addressService.Format(account))
	fmt.Fprintf(out, "public key: %s\n", account.Hex())
	if keystoreJSON.DerivationPath != "" {
		fmt.Fprintf(out, "path:       %s\n", keystoreJSON.DerivationPath)
	}

	return nil
}
