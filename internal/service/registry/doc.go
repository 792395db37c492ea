// Package registry is the source of truth for node existence, node type and
// zone membership.
//
// It is read-mostly: nodes and zones change only through registration and
// heartbeat events coming from the device-management boundary.
package registry
