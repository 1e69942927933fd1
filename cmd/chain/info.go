package chain

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github/chapool/dot-wallet/internal/config"
	"github/chapool/dot-wallet/internal/util/command"
)

func newInfo() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Prints chain, node and runtime information",
		Args:  cobra.NoArgs,
		RunE:  infoCmdFunc,
	}
}

func infoCmdFunc(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	return command.WithWallet(cmd.Context(), cfg, readOnly(), func(ctx context.Context, session *command.Session) error {
		w := session.Wallet
		out := cmd.OutOrStdout()

		// Text results are only valid until the next call
		chainName, err := w.SystemChain(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "chain:        %s\n", chainName)

		nodeName, err := w.SystemName(ctx)
		if err != nil {
			return err
		}
		name := string(nodeName)

		version, err := w.SystemVersion(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "node:         %s %s\n", name, version)

		if err := w.RefreshMetadata(ctx); err != nil {
			return err
		}
		snapshot, err := w.Metadata()
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "genesis:      %s\n", hexutil.Encode(snapshot.Genesis[:]))

		runtime, err := w.RuntimeVersion(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "runtime:      %s spec %d tx %d\n", runtime.SpecName, runtime.SpecVersion, runtime.TransactionVersion)

		head, err := w.FinalizedHead(ctx)
		if err != nil {
			return err
		}
		header, err := w.Header(ctx, head)
		if err != nil {
			return errors.Wrap(err, "failed to get finalized header")
		}
		fmt.Fprintf(out, "finalized:    #%d %s\n", header.Number, head.Hex())
		fmt.Fprintf(out, "ss58 prefix:  %d\n", cfg.Chain.SS58Prefix)

		return nil
	})
}
