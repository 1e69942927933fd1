package transfer

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github/chapool/dot-wallet/internal/config"
	"github/chapool/dot-wallet/internal/util/command"
	"github/chapool/dot-wallet/internal/wallet"
	"github/chapool/dot-wallet/internal/wallet/address"
)

const (
	nonceFlag     = "nonce"
	tipFlag       = "tip"
	mortalFlag    = "mortal"
	keepAliveFlag = "keep-alive"
	dryRunFlag    = "dry-run"
)

func New() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "transfer <dest> <amount>",
		Short: "Transfers tokens from the keystore account",
		Long: `Builds, signs and submits a balances transfer of <amount> tokens to <dest>.
<dest> is an SS58 address of any network or a 0x-prefixed account id. The
keystore password is prompted for.`,
		Args: cobra.ExactArgs(2), //nolint:mnd
		RunE: transferCmdFunc,
	}

	cmd.Flags().Int64(nonceFlag, -1, "Account nonce (-1 queries the node).")
	cmd.Flags().String(tipFlag, "0", "Tip in tokens.")
	cmd.Flags().Uint64(mortalFlag, 0, "Mortality period in blocks (0 uses WALLET_CHAIN_MORTAL_PERIOD).")
	cmd.Flags().Bool(keepAliveFlag, false, "Refuse to reap the sending account.")
	cmd.Flags().Bool(dryRunFlag, false, "Print the signed extrinsic instead of submitting it.")

	return cmd
}

func transferCmdFunc(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()

	nonce, err := flags.GetInt64(nonceFlag)
	if err != nil {
		return errors.Wrap(err, "failed to read nonce flag")
	}
	tipValue, err := flags.GetString(tipFlag)
	if err != nil {
		return errors.Wrap(err, "failed to read tip flag")
	}
	mortal, err := flags.GetUint64(mortalFlag)
	if err != nil {
		return errors.Wrap(err, "failed to read mortal flag")
	}
	keepAlive, err := flags.GetBool(keepAliveFlag)
	if err != nil {
		return errors.Wrap(err, "failed to read keep-alive flag")
	}
	dryRun, err := flags.GetBool(dryRunFlag)
	if err != nil {
		return errors.Wrap(err, "failed to read dry-run flag")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	dest, err := address.ParseAccount(args[0])
	if err != nil {
		return errors.Wrap(err, "invalid destination")
	}

	amount, err := ParseAmount(args[1], cfg.Chain.TokenDecimals)
	if err != nil {
		return err
	}

	tip, err := ParseAmount(tipValue, cfg.Chain.TokenDecimals)
	if err != nil {
		return errors.Wrap(err, "invalid tip")
	}

	opts := []wallet.TransferOption{wallet.WithTip(tip)}
	if nonce >= 0 {
		opts = append(opts, wallet.WithNonce(uint64(nonce)))
	}
	if mortal == 0 {
		mortal = cfg.Chain.MortalPeriod
	}
	if mortal > 0 {
		opts = append(opts, wallet.WithMortality(mortal))
	}
	if keepAlive {
		opts = append(opts, wallet.WithKeepAlive())
	}

	password, err := command.PromptPassword("Enter keystore password: ")
	if err != nil {
		return err
	}

	s, seedManager, err := command.UnlockSigner(cmd.Context(), cfg, password)
	if err != nil {
		return err
	}
	defer seedManager.Clear()

	return command.WithWallet(cmd.Context(), cfg, s, func(ctx context.Context, session *command.Session) error {
		w := session.Wallet
		out := cmd.OutOrStdout()

		if err := w.RefreshMetadata(ctx); err != nil {
			return err
		}

		fmt.Fprintf(out, "from:   %s\n", w.Address())
		fmt.Fprintf(out, "to:     %s\n", dest.SS58(cfg.Chain.SS58Prefix))
		fmt.Fprintf(out, "amount: %s %s\n", FormatAmount(amount, cfg.Chain.TokenDecimals), cfg.Chain.TokenSymbol)

		if dryRun {
			encoded, err := w.BuildTransfer(ctx, dest, amount, opts...)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, encoded.String())
			return nil
		}

		hash, err := w.Transfer(ctx, dest, amount, opts...)
		if err != nil {
			return err
		}

		fmt.Fprintf(out, "hash:   %s\n", hash.Hex())

		return nil
	})
}
