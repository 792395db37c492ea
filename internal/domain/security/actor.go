package security

import "fmt"

// Actor identifies who performed an action in the system.
type Actor struct {
	// Username is the operator (or system component) that triggered the action.
	Username string `json:"username"`
	// Hostname is the machine name where the action was performed.
	Hostname string `json:"hostname,omitempty"`
}

// SystemActor is used for changes that are not triggered by an operator.
//
//nolint:gochecknoglobals // Read-only well-known actor.
var SystemActor = Actor{Username: "system"}

// Clone returns a deep copy of the actor.
func (a *Actor) Clone() *Actor {
	if a == nil {
		return nil
	}

	cloned := *a

	return &cloned
}

// String renders the actor as username@hostname.
func (a *Actor) String() string {
	if a == nil || a.Username == "" {
		return "<unknown>"
	}

	if a.Hostname == "" {
		return a.Username
	}

	return fmt.Sprintf("%s@%s", a.Username, a.Hostname)
}
