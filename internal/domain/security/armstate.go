package security

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// ArmMode is the named policy selecting how the installation is armed.
type ArmMode string

const (
	// ArmModeDisarmed means no node is armed.
	ArmModeDisarmed ArmMode = "disarmed"
	// ArmModeAway arms the selected nodes while nobody is on site.
	ArmModeAway ArmMode = "away"
	// ArmModeHome arms the perimeter while people are on site.
	ArmModeHome ArmMode = "home"
	// ArmModeNight arms the selected nodes for the night.
	ArmModeNight ArmMode = "night"
)

// ParseArmMode converts user input into an ArmMode. The legacy dashboard
// values armed_away and armed_stay are accepted as aliases.
func ParseArmMode(s string) (ArmMode, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "disarmed", "disarm", "off":
		return ArmModeDisarmed, true
	case "away", "armed_away", "armed":
		return ArmModeAway, true
	case "home", "stay", "armed_stay":
		return ArmModeHome, true
	case "night":
		return ArmModeNight, true
	default:
		return "", false
	}
}

// ArmSource records which path produced an arm state entry.
type ArmSource string

const (
	// ArmSourceOperator is an explicit arm/disarm request.
	ArmSourceOperator ArmSource = "operator"
	// ArmSourceZone is a zone-level fold into the armed set.
	ArmSourceZone ArmSource = "zone"
	// ArmSourceSystem is a change made by the engine itself.
	ArmSourceSystem ArmSource = "system"
)

// ArmState is one immutable entry of the arming history.
type ArmState struct {
	// Version is the 1-based position of the entry in the history; 0 is the
	// implicit initial state.
	Version int64 `json:"version"`
	// Mode is the arm mode of this entry.
	Mode ArmMode `json:"mode"`
	// PreviousMode is the mode of the entry this one replaced.
	PreviousMode ArmMode `json:"previous_mode,omitempty"`
	// ArmedNodes is the sorted snapshot of armed node ids.
	ArmedNodes []string `json:"armed_nodes"`
	// ChangedAt is when the entry was appended.
	ChangedAt time.Time `json:"changed_at"`
	// ChangedBy is who requested the change.
	ChangedBy *Actor `json:"changed_by,omitempty"`
	// Source is the path that produced the entry.
	Source ArmSource `json:"source,omitempty"`
	// Notes is optional operator text.
	Notes string `json:"notes,omitempty"`
}

// DisarmedState is the state reported before any entry exists.
func DisarmedState() *ArmState {
	return &ArmState{
		Mode:       ArmModeDisarmed,
		ArmedNodes: []string{},
	}
}

// Validate checks the mode/armed-nodes invariant.
func (s *ArmState) Validate() error {
	switch s.Mode {
	case ArmModeDisarmed:
		if len(s.ArmedNodes) != 0 {
			return fmt.Errorf("%w: disarmed state with %d armed nodes", ErrInvalidTransition, len(s.ArmedNodes))
		}
	case ArmModeAway, ArmModeHome, ArmModeNight:
		if len(s.ArmedNodes) == 0 {
			return fmt.Errorf("%w: mode %q requires at least one armed node", ErrInvalidTransition, s.Mode)
		}
	default:
		return fmt.Errorf("%w: unknown arm mode %q", ErrInvalidTransition, s.Mode)
	}

	return nil
}

// IsArmed reports whether the installation is armed under any mode.
func (s *ArmState) IsArmed() bool {
	return s.Mode != ArmModeDisarmed
}

// HasNode reports whether the node is in the armed snapshot.
func (s *ArmState) HasNode(nodeID string) bool {
	_, found := slices.BinarySearch(s.ArmedNodes, nodeID)

	return found
}

// ArmedSet returns the armed snapshot as a set.
func (s *ArmState) ArmedSet() map[string]struct{} {
	set := make(map[string]struct{}, len(s.ArmedNodes))
	for _, id := range s.ArmedNodes {
		set[id] = struct{}{}
	}

	return set
}

// Clone returns a deep copy of the state to avoid leaking internal references.
func (s *ArmState) Clone() *ArmState {
	if s == nil {
		return nil
	}

	cloned := *s
	cloned.ArmedNodes = slices.Clone(s.ArmedNodes)
	cloned.ChangedBy = s.ChangedBy.Clone()

	if cloned.ArmedNodes == nil {
		cloned.ArmedNodes = []string{}
	}

	return &cloned
}
