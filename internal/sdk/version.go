// Package sdk exposes the build-time version identifiers embedded into
// every cluster-controller binary via -ldflags.
package sdk

var (
	// GitCommit is set with -ldflags "-X .../internal/sdk.GitCommit=...".
	GitCommit = "unknown" //nolint:gochecknoglobals

	// Version of the program.
	Version = "0.1.0" //nolint:gochecknoglobals
)
