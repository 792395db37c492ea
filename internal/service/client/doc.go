// Package client implements the operations behind the agrisecure-ctl commands.
//
// A Session connects to the agrisecure server, identifies the operator for the
// audit trail and renders responses as aligned text or JSON.
package client
