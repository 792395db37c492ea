// Package version exposes build metadata of the agrisecure binaries.
//
// Version, Commit and BuildTime are injected with -ldflags at build time.
// The server logs Full at startup and both binaries expose it through a
// `version` subcommand.
package version
