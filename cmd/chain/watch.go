package chain

import (
	"context"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github/chapool/dot-wallet/internal/config"
	"github/chapool/dot-wallet/internal/util"
	"github/chapool/dot-wallet/internal/util/command"
	"github/chapool/dot-wallet/internal/wallet"
	"github/chapool/dot-wallet/internal/wallet/rpc"
	"github/chapool/dot-wallet/internal/wallet/websocket"
)

const (
	intervalFlag = "interval"
	countFlag    = "count"

	defaultWatchInterval = 6 * time.Second
	readHeaderTimeout    = 5 * time.Second
	shutdownTimeout      = 5 * time.Second
)

func newWatch() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follows the finalized head and serves metrics",
		Long: `Polls the finalized head of the configured node and logs every new block.
Connection, RPC and frame metrics are served in the Prometheus format on
WALLET_METRICS_LISTEN_ADDRESS at /metrics.`,
		Args: cobra.NoArgs,
		RunE: watchCmdFunc,
	}

	cmd.Flags().Duration(intervalFlag, defaultWatchInterval, "Time between finalized head queries.")
	cmd.Flags().Int(countFlag, 0, "Stop after this many queries (0 runs until interrupted).")

	return cmd
}

func watchCmdFunc(cmd *cobra.Command, _ []string) error {
	interval, err := cmd.Flags().GetDuration(intervalFlag)
	if err != nil {
		return errors.Wrap(err, "failed to read interval flag")
	}
	count, err := cmd.Flags().GetInt(countFlag)
	if err != nil {
		return errors.Wrap(err, "failed to read count flag")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	return command.WithWallet(cmd.Context(), cfg, readOnly(), func(ctx context.Context, session *command.Session) error {
		mux := http.NewServeMux()
		mux.Handle("/metrics", session.Metrics.Handler())

		server := &http.Server{
			Addr:              cfg.Metrics.ListenAddress,
			Handler:           mux,
			ReadHeaderTimeout: readHeaderTimeout,
		}

		go func() {
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Str("address", cfg.Metrics.ListenAddress).Msg("Metrics server failed")
			}
		}()

		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()

			if err := server.Shutdown(shutdownCtx); err != nil {
				log.Warn().Err(err).Msg("Failed to shut down metrics server")
			}
		}()

		return follow(ctx, session, interval, count)
	})
}

// follow logs every new finalized head. Failed queries are logged and the
// connection is reopened when it faulted.
func follow(ctx context.Context, session *command.Session, interval time.Duration, count int) error {
	log := util.LogFromContext(ctx)
	w := session.Wallet

	var last rpc.Hash
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for i := 0; count == 0 || i < count; i++ {
		if err := followOnce(ctx, w, &last); err != nil {
			log.Error().Err(err).Str("state", w.State().String()).Msg("Failed to follow finalized head")

			if w.State() != websocket.StateOpen {
				if err := w.Connect(ctx); err != nil {
					log.Error().Err(err).Msg("Failed to reconnect to node")
				}
			}
		}

		select {
		case <-ctx.Done():
			log.Info().Msg("Chain watch stopped by context")
			return nil
		case <-ticker.C:
		}
	}

	return nil
}

func followOnce(ctx context.Context, w *wallet.Wallet, last *rpc.Hash) error {
	head, err := w.FinalizedHead(ctx)
	if err != nil {
		return err
	}
	if head == *last {
		return nil
	}

	header, err := w.Header(ctx, head)
	if err != nil {
		return err
	}

	util.LogFromContext(ctx).Info().Uint64("number", header.Number).Str("hash", head.Hex()).Msg("Finalized head")
	*last = head

	return nil
}
