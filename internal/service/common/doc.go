// Package common holds helpers shared by the server and the operator CLI.
//
// It provides a gRPC client wrapper for the security service with per-call
// timeouts and a helper that detects the current system actor
// (hostname/username) for the audit trail.
//
//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common
