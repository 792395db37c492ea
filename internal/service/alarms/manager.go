package alarms

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/oshokin/agrisecure/internal/domain/security"
	"github.com/oshokin/agrisecure/internal/logger"
	"github.com/oshokin/agrisecure/internal/repository"
)

// CreateRequest describes a new alarm.
type CreateRequest struct {
	// NodeID is the raising node.
	NodeID string
	// Classification is the detected event class; empty means unknown.
	Classification security.Classification
	// Priority is derived from the policy when empty.
	Priority security.Priority
	// TriggeredAt defaults to now when zero.
	TriggeredAt time.Time
}

// Filter narrows List results. Zero fields match everything.
type Filter struct {
	// Status keeps alarms in this status.
	Status security.AlarmStatus
	// Priority keeps alarms with this priority.
	Priority security.Priority
	// NodeID keeps alarms raised by this node.
	NodeID string
	// From keeps alarms triggered at or after this time.
	From time.Time
	// To keeps alarms triggered before this time.
	To time.Time
	// Limit caps the number of results when positive.
	Limit int
}

// Manager owns every alarm record.
type Manager struct {
	// repo persists alarms; nil keeps them in memory only.
	repo repository.AlarmRepository
	// policy derives priorities.
	policy *security.Policy
	// now returns the current time.
	now func() time.Time
	// newID generates alarm ids.
	newID func() string

	// alarms indexes alarms by id.
	alarms map[string]*security.Alarm
	// mu serializes transitions and protects alarms.
	mu sync.RWMutex
}

// Option configures a Manager.
type Option func(*Manager)

// WithPolicy overrides the priority policy.
func WithPolicy(policy *security.Policy) Option {
	return func(m *Manager) {
		if policy != nil {
			m.policy = policy
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// WithIDGenerator overrides alarm id generation.
func WithIDGenerator(newID func() string) Option {
	return func(m *Manager) {
		if newID != nil {
			m.newID = newID
		}
	}
}

// New creates a manager and loads the persisted alarms.
func New(ctx context.Context, repo repository.AlarmRepository, opts ...Option) (*Manager, error) {
	m := &Manager{
		repo:   repo,
		policy: security.DefaultPolicy(),
		now:    time.Now,
		newID:  uuid.NewString,
		alarms: make(map[string]*security.Alarm),
	}

	for _, opt := range opts {
		opt(m)
	}

	if repo == nil {
		return m, nil
	}

	loaded, err := repo.LoadAlarms(ctx)
	if err != nil {
		return nil, fmt.Errorf("load alarms: %w", err)
	}

	for _, alarm := range loaded {
		m.alarms[alarm.ID] = alarm
	}

	logger.InfoKV(ctx, "Alarms loaded", "count", len(m.alarms))

	return m, nil
}

// Create stores a new active alarm.
func (m *Manager) Create(ctx context.Context, req CreateRequest) (*security.Alarm, error) {
	nodeID := strings.TrimSpace(req.NodeID)
	if nodeID == "" {
		return nil, fmt.Errorf("%w: alarm without node id", security.ErrInvalidNodeReference)
	}

	classification := security.ClassificationUnknown
	if req.Classification != "" {
		parsed, ok := security.ParseClassification(string(req.Classification))
		if !ok {
			return nil, fmt.Errorf("%w: unknown classification %q", security.ErrInvalidArgument, req.Classification)
		}

		classification = parsed
	}

	priority := m.policy.PriorityFor(classification)
	if req.Priority != "" {
		parsed, ok := security.ParsePriority(string(req.Priority))
		if !ok {
			return nil, fmt.Errorf("%w: unknown priority %q", security.ErrInvalidArgument, req.Priority)
		}

		priority = parsed
	}

	triggeredAt := req.TriggeredAt
	if triggeredAt.IsZero() {
		triggeredAt = m.now()
	}

	alarm := &security.Alarm{
		ID:             m.newID(),
		NodeID:         nodeID,
		Classification: classification,
		Priority:       priority,
		Status:         security.AlarmStatusActive,
		TriggeredAt:    triggeredAt,
		Version:        1,
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.commitLocked(ctx, alarm); err != nil {
		return nil, err
	}

	logger.InfoKV(ctx, "Alarm created",
		"alarm_id", alarm.ID,
		"node_id", alarm.NodeID,
		"classification", alarm.Classification,
		"priority", alarm.Priority)

	return alarm.Clone(), nil
}

// Acknowledge moves an active alarm to acknowledged.
func (m *Manager) Acknowledge(ctx context.Context, id string, actor *security.Actor, notes string) (*security.Alarm, error) {
	return m.transition(ctx, id, security.AlarmStatusAcknowledged, actor, notes)
}

// Resolve moves an open alarm to resolved.
func (m *Manager) Resolve(ctx context.Context, id string, actor *security.Actor, notes string) (*security.Alarm, error) {
	return m.transition(ctx, id, security.AlarmStatusResolved, actor, notes)
}

// MarkFalsePositive moves an open alarm to false_positive.
func (m *Manager) MarkFalsePositive(
	ctx context.Context,
	id string,
	actor *security.Actor,
	notes string,
) (*security.Alarm, error) {
	return m.transition(ctx, id, security.AlarmStatusFalsePositive, actor, notes)
}

// Get returns the alarm with the given id.
func (m *Manager) Get(_ context.Context, id string) (*security.Alarm, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	alarm, ok := m.alarms[id]
	if !ok {
		return nil, fmt.Errorf("%w: alarm %q", security.ErrNotFound, id)
	}

	return alarm.Clone(), nil
}

// List returns the matching alarms, newest trigger first, ties by id.
func (m *Manager) List(_ context.Context, filter Filter) []*security.Alarm {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*security.Alarm, 0, len(m.alarms))

	for _, alarm := range m.alarms {
		if filter.matches(alarm) {
			result = append(result, alarm.Clone())
		}
	}

	slices.SortFunc(result, func(a, b *security.Alarm) int {
		if c := b.TriggeredAt.Compare(a.TriggeredAt); c != 0 {
			return c
		}

		return cmp.Compare(a.ID, b.ID)
	})

	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}

	return result
}

// transition validates and commits a status change under the write lock, so
// concurrent callers observe each other's result.
func (m *Manager) transition(
	ctx context.Context,
	id string,
	to security.AlarmStatus,
	actor *security.Actor,
	notes string,
) (*security.Alarm, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.alarms[id]
	if !ok {
		return nil, fmt.Errorf("%w: alarm %q", security.ErrNotFound, id)
	}

	next, err := current.Apply(to, actor, notes, m.now())
	if err != nil {
		return nil, err
	}

	if err = m.commitLocked(ctx, next); err != nil {
		return nil, err
	}

	logger.InfoKV(ctx, "Alarm status changed",
		"alarm_id", id,
		"from", current.Status,
		"to", next.Status,
		"actor", actor.String())

	return next.Clone(), nil
}

// commitLocked persists the alarm, then swaps it into the index.
// Callers must hold mu.
func (m *Manager) commitLocked(ctx context.Context, alarm *security.Alarm) error {
	if m.repo != nil {
		if err := m.repo.SaveAlarm(ctx, alarm); err != nil {
			logger.ErrorKV(ctx, "Failed to persist alarm", "alarm_id", alarm.ID, "error", err)

			return fmt.Errorf("persist alarm: %w", err)
		}
	}

	m.alarms[alarm.ID] = alarm

	return nil
}

func (f Filter) matches(a *security.Alarm) bool {
	switch {
	case f.Status != "" && a.Status != f.Status:
		return false
	case f.Priority != "" && a.Priority != f.Priority:
		return false
	case f.NodeID != "" && a.NodeID != f.NodeID:
		return false
	case !f.From.IsZero() && a.TriggeredAt.Before(f.From):
		return false
	case !f.To.IsZero() && !a.TriggeredAt.Before(f.To):
		return false
	default:
		return true
	}
}
