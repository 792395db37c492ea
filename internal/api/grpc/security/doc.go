// Package security implements the gRPC transport of the security engine.
//
// It adapts domain types to wire messages, validates requests and maps domain
// errors to gRPC status codes.
package security
