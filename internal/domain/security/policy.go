package security

import (
	"maps"
	"slices"
)

// Policy holds the deployment-tunable tables of the engine.
// All fields are data so that a deployment can override them from config.
type Policy struct {
	// PriorityByClassification derives the priority of alarms created without one.
	PriorityByClassification map[Classification]Priority
	// PriorityLabels maps priorities to operator-facing labels.
	PriorityLabels map[Priority]string
	// BypassClassifications materialize alarms even from disarmed nodes.
	BypassClassifications []Classification
	// AlarmingClassifications are the classes that produce alarms at all.
	AlarmingClassifications []Classification
	// EligibleNodeTypes are the node types that can be armed.
	EligibleNodeTypes []NodeType
}

// DefaultPolicy returns the built-in tables.
func DefaultPolicy() *Policy {
	return &Policy{
		PriorityByClassification: map[Classification]Priority{
			ClassificationTamper:      PriorityCritical,
			ClassificationPerson:      PriorityHigh,
			ClassificationAnimalLarge: PriorityMedium,
			ClassificationAnimalSmall: PriorityLow,
			ClassificationUnknown:     PriorityLow,
		},
		PriorityLabels: map[Priority]string{
			PriorityCritical: "Critical",
			PriorityHigh:     "High",
			PriorityMedium:   "Medium",
			PriorityLow:      "Low",
		},
		BypassClassifications: []Classification{ClassificationTamper},
		AlarmingClassifications: []Classification{
			ClassificationPerson,
			ClassificationTamper,
			ClassificationAnimalLarge,
		},
		EligibleNodeTypes: []NodeType{NodeTypeSecurity},
	}
}

// WithPriorityOverrides returns a copy of the policy whose priority table is
// patched with the given entries.
func (p *Policy) WithPriorityOverrides(overrides map[Classification]Priority) *Policy {
	cloned := p.Clone()
	if cloned.PriorityByClassification == nil {
		cloned.PriorityByClassification = make(map[Classification]Priority, len(overrides))
	}

	maps.Copy(cloned.PriorityByClassification, overrides)

	return cloned
}

// PriorityFor derives the priority of a classification. Unknown classes fall
// back to the entry for ClassificationUnknown, then to low.
func (p *Policy) PriorityFor(c Classification) Priority {
	if priority, ok := p.PriorityByClassification[c]; ok {
		return priority
	}

	if priority, ok := p.PriorityByClassification[ClassificationUnknown]; ok {
		return priority
	}

	return PriorityLow
}

// Label returns the operator-facing label of a priority.
func (p *Policy) Label(priority Priority) string {
	if label, ok := p.PriorityLabels[priority]; ok {
		return label
	}

	return string(priority)
}

// Bypasses reports whether the classification ignores the arm state.
func (p *Policy) Bypasses(c Classification) bool {
	return slices.Contains(p.BypassClassifications, c)
}

// Alarming reports whether the classification produces an alarm.
func (p *Policy) Alarming(c Classification) bool {
	return slices.Contains(p.AlarmingClassifications, c)
}

// Eligible reports whether nodes of the type can be armed.
func (p *Policy) Eligible(t NodeType) bool {
	return slices.Contains(p.EligibleNodeTypes, t)
}

// Clone returns a deep copy of the policy.
func (p *Policy) Clone() *Policy {
	return &Policy{
		PriorityByClassification: maps.Clone(p.PriorityByClassification),
		PriorityLabels:           maps.Clone(p.PriorityLabels),
		BypassClassifications:    slices.Clone(p.BypassClassifications),
		AlarmingClassifications:  slices.Clone(p.AlarmingClassifications),
		EligibleNodeTypes:        slices.Clone(p.EligibleNodeTypes),
	}
}
