package chain

import (
	"github.com/spf13/cobra"
	"github/chapool/dot-wallet/internal/util/command"
	"github/chapool/dot-wallet/internal/wallet/signer"
)

func New() *cobra.Command {
	return command.NewSubcommandGroup("chain",
		newInfo(),
		newWatch(),
	)
}

// Chain queries need no key.
func readOnly() signer.Signer {
	return signer.NewWatchOnly(signer.Identity{})
}
