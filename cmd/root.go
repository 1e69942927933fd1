package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github/chapool/dot-wallet/cmd/chain"
	"github/chapool/dot-wallet/cmd/env"
	"github/chapool/dot-wallet/cmd/inspect"
	"github/chapool/dot-wallet/cmd/keystore"
	"github/chapool/dot-wallet/cmd/probe"
	"github/chapool/dot-wallet/cmd/transfer"
	"github/chapool/dot-wallet/internal/config"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Version: config.GetFormattedBuildArgs(),
	Use:     config.ModuleName,
	Short:   config.ModuleName,
	Long: fmt.Sprintf(`%v

A Substrate wallet speaking JSON-RPC over WebSocket.
Requires configuration through ENV.`, config.ModuleName),
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	// attach the subcommands
	rootCmd.AddCommand(
		chain.New(),
		env.New(),
		inspect.New(),
		keystore.New(),
		probe.New(),
		transfer.New(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := rootCmd.ExecuteContext(ctx)
	stop()

	if err != nil {
		log.Error().Err(err).Msg("Failed to execute root command")
		os.Exit(1)
	}
}
