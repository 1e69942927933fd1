package config

import "fmt"

// ModuleName is the binary and metric namespace of the wallet.
const ModuleName = "dot-wallet"

// The following vars are set through -ldflags="-X github/chapool/dot-wallet/internal/config.ModuleVersion=..."
var (
	ModuleVersion = "v0.0.0-dev"
	Commit        = "< 40 chars git commit hash via ldflags >"
	BuildDate     = "1970-01-01-00:00:00"
)

// GetFormattedBuildArgs returns string representation of buildsargs set via ldflags "<ModuleVersion> @ <Commit> (<BuildDate>)"
func GetFormattedBuildArgs() string {
	return fmt.Sprintf("%v @ %v (%v)", ModuleVersion, Commit, BuildDate)
}
