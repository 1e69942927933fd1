package inspect

import (
	"fmt"
	"io"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github/chapool/dot-wallet/cmd/transfer"
	"github/chapool/dot-wallet/internal/config"
	"github/chapool/dot-wallet/internal/util/command"
	"github/chapool/dot-wallet/internal/wallet/extrinsic"
)

func New() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <hex>",
		Short: "Decodes a signed extrinsic",
		Long: `Decodes a 0x-prefixed v4 extrinsic, as printed by "transfer --dry-run", using
the call indexes and extensions of WALLET_CHAIN_*. Nothing is sent to a node.`,
		Args: cobra.ExactArgs(1),
		RunE: inspectCmdFunc,
	}
}

func inspectCmdFunc(cmd *cobra.Command, args []string) error {
	cfg := config.DefaultWalletConfigFromEnv()

	raw, err := hexutil.Decode(args[0])
	if err != nil {
		return errors.Wrap(err, "invalid extrinsic hex")
	}

	decoded, err := extrinsic.Decode(raw, command.ChainParams(cfg.Chain))
	if err != nil {
		return err
	}

	Print(cmd.OutOrStdout(), raw, decoded, cfg.Chain)

	return nil
}

// Print writes a human readable rendering of decoded.
func Print(out io.Writer, raw []byte, decoded extrinsic.Decoded, chain config.Chain) {
	fmt.Fprintf(out, "length:    %d\n", decoded.Length)
	fmt.Fprintf(out, "version:   %d\n", decoded.Version)

	if decoded.Signed {
		fmt.Fprintf(out, "signer:    %s\n", decoded.Signer.SS58(chain.SS58Prefix))
		fmt.Fprintf(out, "scheme:    %s\n", decoded.Scheme)
		fmt.Fprintf(out, "signature: %s\n", hexutil.Encode(decoded.Signature[:]))

		if decoded.Era.IsImmortal() {
			fmt.Fprintln(out, "era:       immortal")
		} else {
			fmt.Fprintf(out, "era:       period %d phase %d\n", decoded.Era.Period, decoded.Era.Phase)
		}

		fmt.Fprintf(out, "nonce:     %d\n", decoded.Nonce)
		fmt.Fprintf(out, "tip:       %s %s\n", transfer.FormatAmount(decoded.Tip, chain.TokenDecimals), chain.TokenSymbol)
	} else {
		fmt.Fprintln(out, "signed:    false")
	}

	fmt.Fprintf(out, "call:      %d.%d\n", decoded.Pallet, decoded.CallIndex)

	switch {
	case decoded.Transfer != nil:
		kind := "transfer"
		if decoded.Transfer.KeepAlive {
			kind = "transfer_keep_alive"
		}
		fmt.Fprintf(out, "  %s to %s\n", kind, decoded.Transfer.Dest.SS58(chain.SS58Prefix))
		fmt.Fprintf(out, "  amount   %s %s\n", transfer.FormatAmount(decoded.Transfer.Amount, chain.TokenDecimals), chain.TokenSymbol)
	case decoded.Remark != nil:
		fmt.Fprintf(out, "  remark   %s\n", hexutil.Encode(decoded.Remark))
	default:
		call := decoded.Regions.Call
		fmt.Fprintf(out, "  args     %s\n", hexutil.Encode(raw[call.Offset+2:call.Offset+call.Length]))
	}
}
