package security

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// Classification is the detected event class reported by a security node.
type Classification string

const (
	// ClassificationPerson is a detected human.
	ClassificationPerson Classification = "person"
	// ClassificationTamper is a physical tamper on the node.
	ClassificationTamper Classification = "tamper"
	// ClassificationAnimalLarge is a large animal.
	ClassificationAnimalLarge Classification = "animal_lg"
	// ClassificationAnimalSmall is a small animal.
	ClassificationAnimalSmall Classification = "animal_sm"
	// ClassificationUnknown is motion that could not be classified.
	ClassificationUnknown Classification = "unknown"
)

// Classifications lists every classification an alarm can carry.
func Classifications() []Classification {
	return []Classification{
		ClassificationPerson,
		ClassificationTamper,
		ClassificationAnimalLarge,
		ClassificationAnimalSmall,
		ClassificationUnknown,
	}
}

// ParseClassification validates a classification string.
func ParseClassification(s string) (Classification, bool) {
	c := Classification(strings.ToLower(strings.TrimSpace(s)))
	if slices.Contains(Classifications(), c) {
		return c, true
	}

	return "", false
}

// Priority is the urgency of an alarm.
type Priority string

const (
	// PriorityCritical needs immediate attention.
	PriorityCritical Priority = "critical"
	// PriorityHigh needs prompt attention.
	PriorityHigh Priority = "high"
	// PriorityMedium is informational but relevant.
	PriorityMedium Priority = "medium"
	// PriorityLow is mostly noise.
	PriorityLow Priority = "low"
)

// Priorities lists every priority from most to least urgent.
func Priorities() []Priority {
	return []Priority{PriorityCritical, PriorityHigh, PriorityMedium, PriorityLow}
}

// ParsePriority validates a priority string. WARNING is accepted as an alias
// of high because gateways report it that way.
func ParsePriority(s string) (Priority, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "warning" {
		return PriorityHigh, true
	}

	p := Priority(s)
	if slices.Contains(Priorities(), p) {
		return p, true
	}

	return "", false
}

// AlarmStatus is the lifecycle state of an alarm.
type AlarmStatus string

const (
	// AlarmStatusActive is the initial state.
	AlarmStatusActive AlarmStatus = "active"
	// AlarmStatusAcknowledged means an operator took charge.
	AlarmStatusAcknowledged AlarmStatus = "acknowledged"
	// AlarmStatusResolved is terminal: the event was handled.
	AlarmStatusResolved AlarmStatus = "resolved"
	// AlarmStatusFalsePositive is terminal: the event was not a genuine concern.
	AlarmStatusFalsePositive AlarmStatus = "false_positive"
)

// AlarmStatuses lists every status in lifecycle order.
func AlarmStatuses() []AlarmStatus {
	return []AlarmStatus{
		AlarmStatusActive,
		AlarmStatusAcknowledged,
		AlarmStatusResolved,
		AlarmStatusFalsePositive,
	}
}

// ParseAlarmStatus validates a status string. false_pos is accepted as the
// legacy spelling.
func ParseAlarmStatus(s string) (AlarmStatus, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "false_pos" {
		return AlarmStatusFalsePositive, true
	}

	st := AlarmStatus(s)
	if slices.Contains(AlarmStatuses(), st) {
		return st, true
	}

	return "", false
}

// IsTerminal reports whether no transition leaves the status.
func (s AlarmStatus) IsTerminal() bool {
	return s == AlarmStatusResolved || s == AlarmStatusFalsePositive
}

// IsOpen reports whether the alarm still needs operator attention.
func (s AlarmStatus) IsOpen() bool {
	return s == AlarmStatusActive || s == AlarmStatusAcknowledged
}

// allowedTransitions is the alarm state machine.
//
//nolint:gochecknoglobals // Read-only transition table.
var allowedTransitions = map[AlarmStatus][]AlarmStatus{
	AlarmStatusActive:       {AlarmStatusAcknowledged, AlarmStatusResolved, AlarmStatusFalsePositive},
	AlarmStatusAcknowledged: {AlarmStatusResolved, AlarmStatusFalsePositive},
}

// CanTransition reports whether from -> to is allowed.
func CanTransition(from, to AlarmStatus) bool {
	return slices.Contains(allowedTransitions[from], to)
}

// AlarmTransition is one appended entry of an alarm's audit trail.
type AlarmTransition struct {
	// From is the status before the transition.
	From AlarmStatus `json:"from"`
	// To is the status after the transition.
	To AlarmStatus `json:"to"`
	// At is when the transition was committed.
	At time.Time `json:"at"`
	// Actor is who requested the transition.
	Actor *Actor `json:"actor,omitempty"`
	// Notes is the operator text attached to the transition.
	Notes string `json:"notes,omitempty"`
}

// Alarm is a single detected-event record and its lifecycle.
type Alarm struct {
	// ID is the unique alarm identifier.
	ID string `json:"id"`
	// NodeID references the raising node by id only.
	NodeID string `json:"node_id"`
	// Classification is the detected event class.
	Classification Classification `json:"classification"`
	// Priority is the urgency.
	Priority Priority `json:"priority"`
	// Status is the lifecycle state.
	Status AlarmStatus `json:"status"`
	// TriggeredAt is when the node detected the event.
	TriggeredAt time.Time `json:"triggered_at"`
	// AcknowledgedAt is set once on acknowledgement.
	AcknowledgedAt *time.Time `json:"acknowledged_at,omitempty"`
	// AcknowledgedBy is set once on acknowledgement.
	AcknowledgedBy *Actor `json:"acknowledged_by,omitempty"`
	// ResolvedAt is set on either terminal transition.
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
	// ResolvedBy is who moved the alarm into a terminal state.
	ResolvedBy *Actor `json:"resolved_by,omitempty"`
	// Notes is the latest operator text.
	Notes string `json:"notes,omitempty"`
	// Version increases by one with every committed change.
	Version int64 `json:"version"`
	// History is the ordered list of transitions.
	History []AlarmTransition `json:"history,omitempty"`
}

// Apply returns a copy of the alarm moved to the target status.
// The receiver is never modified.
func (a *Alarm) Apply(to AlarmStatus, actor *Actor, notes string, at time.Time) (*Alarm, error) {
	if !CanTransition(a.Status, to) {
		return nil, fmt.Errorf("%w: alarm %s cannot move from %s to %s", ErrInvalidTransition, a.ID, a.Status, to)
	}

	next := a.Clone()
	next.Status = to
	next.Version++

	if notes != "" {
		next.Notes = notes
	}

	switch to {
	case AlarmStatusAcknowledged:
		ts := at
		next.AcknowledgedAt = &ts
		next.AcknowledgedBy = actor.Clone()
	case AlarmStatusResolved, AlarmStatusFalsePositive:
		ts := at
		next.ResolvedAt = &ts
		next.ResolvedBy = actor.Clone()
	}

	next.History = append(next.History, AlarmTransition{
		From:  a.Status,
		To:    to,
		At:    at,
		Actor: actor.Clone(),
		Notes: notes,
	})

	return next, nil
}

// ResponseTime is the delay between trigger and acknowledgement.
func (a *Alarm) ResponseTime() (time.Duration, bool) {
	if a.AcknowledgedAt == nil {
		return 0, false
	}

	return a.AcknowledgedAt.Sub(a.TriggeredAt), true
}

// Clone returns a deep copy of the alarm.
func (a *Alarm) Clone() *Alarm {
	if a == nil {
		return nil
	}

	cloned := *a
	cloned.AcknowledgedAt = cloneTime(a.AcknowledgedAt)
	cloned.AcknowledgedBy = a.AcknowledgedBy.Clone()
	cloned.ResolvedAt = cloneTime(a.ResolvedAt)
	cloned.ResolvedBy = a.ResolvedBy.Clone()

	if a.History != nil {
		cloned.History = make([]AlarmTransition, len(a.History))
		for i, t := range a.History {
			t.Actor = t.Actor.Clone()
			cloned.History[i] = t
		}
	}

	return &cloned
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}

	cloned := *t

	return &cloned
}
