package repository

import (
	"context"
	"errors"

	"github.com/oshokin/agrisecure/internal/domain/security"
)

// ErrVersionConflict is returned when an arm state with the same version was
// already appended.
var ErrVersionConflict = errors.New("arm state version already exists")

// ArmStateRepository persists the append-only arming history.
type ArmStateRepository interface {
	// LoadArmHistory returns every entry, oldest first.
	LoadArmHistory(ctx context.Context) ([]*security.ArmState, error)
	// AppendArmState stores a new entry. Existing entries are never modified.
	AppendArmState(ctx context.Context, state *security.ArmState) error
}

// AlarmRepository persists alarm records keyed by id.
type AlarmRepository interface {
	// LoadAlarms returns every stored alarm.
	LoadAlarms(ctx context.Context) ([]*security.Alarm, error)
	// SaveAlarm inserts or replaces the alarm with the same id.
	SaveAlarm(ctx context.Context, alarm *security.Alarm) error
}

// RegistryRepository persists nodes and zones.
type RegistryRepository interface {
	// LoadNodes returns every stored node.
	LoadNodes(ctx context.Context) ([]*security.Node, error)
	// SaveNode inserts or replaces the node with the same id.
	SaveNode(ctx context.Context, node *security.Node) error
	// LoadZones returns every stored zone.
	LoadZones(ctx context.Context) ([]*security.Zone, error)
	// SaveZone inserts or replaces the zone with the same id.
	SaveZone(ctx context.Context, zone *security.Zone) error
}

// Store bundles every repository behind one backend.
type Store interface {
	ArmStateRepository
	AlarmRepository
	RegistryRepository

	// Close releases the backend resources.
	Close() error
}
