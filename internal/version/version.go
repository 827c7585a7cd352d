// Package version carries the engine version and the strategy API
// compatibility check.
package version

// Version is the current engine version. Set at build time using ldflags:
// -ldflags "-X github.com/rxtech-lab/tempo-trading/internal/version.Version=1.2.3"
// The default value "main" indicates a development build.
var Version = "v1.0.0"

// GetVersion returns the current engine version.
func GetVersion() string {
	return Version
}
