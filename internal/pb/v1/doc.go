// Package pb defines the SecurityService wire contract: request and response
// messages, the JSON codec they travel with, the service descriptor used to
// register a server and the typed client stub.
package pb
