// Package arming owns the arm mode and the armed-node set.
//
// Every change appends a new immutable entry to the arming history; the
// latest entry is the current state. Zone operations fold a zone's members
// into or out of the armed set while keeping the current mode.
package arming
