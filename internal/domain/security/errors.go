package security

import "errors"

var (
	// ErrNotFound is returned for unknown node, zone or alarm ids.
	ErrNotFound = errors.New("not found")
	// ErrInvalidNodeReference is returned when an arm request names an unknown
	// or non arming-eligible node.
	ErrInvalidNodeReference = errors.New("invalid node reference")
	// ErrInvalidTransition is returned on alarm state machine violations and on
	// arm requests that break the mode/armed-nodes invariant.
	ErrInvalidTransition = errors.New("invalid transition")
	// ErrNoActiveMode is returned when a zone is armed while the system is
	// globally disarmed and no default mode is configured.
	ErrNoActiveMode = errors.New("no active arm mode")
	// ErrInvalidArgument is returned for values outside their enumeration.
	ErrInvalidArgument = errors.New("invalid argument")
)
