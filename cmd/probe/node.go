package probe

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github/chapool/dot-wallet/internal/config"
	"github/chapool/dot-wallet/internal/util/command"
	"github/chapool/dot-wallet/internal/wallet/signer"
)

func newNode() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "node",
		Short: "Checks that the configured node answers",
		Long: `Connects to the configured node, completes the WebSocket handshake and
asks for the node version. Exits non-zero when any step fails.`,
		Args: cobra.NoArgs,
		RunE: nodeCmdFunc,
	}

	cmd.Flags().BoolP(verboseFlag, "v", false, "Show verbose output.")

	return cmd
}

func nodeCmdFunc(cmd *cobra.Command, _ []string) error {
	verbose, err := cmd.Flags().GetBool(verboseFlag)
	if err != nil {
		return errors.Wrap(err, "failed to read verbose flag")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	start := time.Now()
	s := signer.NewWatchOnly(signer.Identity{})

	return command.WithWallet(cmd.Context(), cfg, s, func(ctx context.Context, session *command.Session) error {
		connected := time.Since(start)

		version, err := session.Wallet.SystemVersion(ctx)
		if err != nil {
			return errors.Wrap(err, "node did not answer")
		}

		out := cmd.OutOrStdout()
		if verbose {
			fmt.Fprintf(out, "node:      %s\n", cfg.Node.Address)
			fmt.Fprintf(out, "handshake: %s\n", connected.Round(time.Millisecond))
			fmt.Fprintf(out, "version:   %s\n", version)
			fmt.Fprintf(out, "total:     %s\n", time.Since(start).Round(time.Millisecond))
			return nil
		}

		fmt.Fprintln(out, "ok")

		return nil
	})
}
