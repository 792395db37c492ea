package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/oshokin/agrisecure/internal/domain/security"
	"github.com/oshokin/agrisecure/internal/logger"
	"github.com/oshokin/agrisecure/internal/repository"
)

// uniqueViolation is the SQLSTATE of a duplicate key.
const uniqueViolation = "23505"

// Options tune the connection pool.
type Options struct {
	// MaxOpenConns caps open connections when positive.
	MaxOpenConns int
	// MaxIdleConns caps idle connections when positive.
	MaxIdleConns int
	// ConnMaxLifetime recycles connections when positive.
	ConnMaxLifetime time.Duration
}

// Store is a PostgreSQL-backed repository.Store.
type Store struct {
	// db is the connection pool.
	db *sql.DB
}

var _ repository.Store = (*Store)(nil)

// Open connects to PostgreSQL, verifies the connection and applies the schema.
func Open(ctx context.Context, dsn string, opts Options) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opts.MaxOpenConns)
	}

	if opts.MaxIdleConns > 0 {
		db.SetMaxIdleConns(opts.MaxIdleConns)
	}

	if opts.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(opts.ConnMaxLifetime)
	}

	if err = db.PingContext(ctx); err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := NewStore(db)

	if err = store.Migrate(ctx); err != nil {
		_ = db.Close()

		return nil, err
	}

	return store, nil
}

// NewStore wraps an existing connection pool.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Migrate creates the tables when they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}

	logger.Debug(ctx, "Database schema is up to date")

	return nil
}

// Close closes the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// LoadArmHistory returns every arm state ordered by version.
func (s *Store) LoadArmHistory(ctx context.Context) ([]*security.ArmState, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT version, mode, previous_mode, armed_nodes, changed_at, changed_by, source, notes
		FROM arm_states
		ORDER BY version`)
	if err != nil {
		return nil, fmt.Errorf("failed to query arm states: %w", err)
	}
	defer rows.Close()

	var result []*security.ArmState

	for rows.Next() {
		var (
			state     security.ArmState
			armed     pq.StringArray
			changedBy []byte
		)

		err = rows.Scan(&state.Version, &state.Mode, &state.PreviousMode, &armed,
			&state.ChangedAt, &changedBy, &state.Source, &state.Notes)
		if err != nil {
			return nil, fmt.Errorf("failed to scan arm state: %w", err)
		}

		state.ArmedNodes = []string(armed)
		if state.ArmedNodes == nil {
			state.ArmedNodes = []string{}
		}

		if state.ChangedBy, err = decodeActor(changedBy); err != nil {
			return nil, err
		}

		result = append(result, &state)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read arm states: %w", err)
	}

	return result, nil
}

// AppendArmState inserts a new arm state. A duplicate version is reported as
// repository.ErrVersionConflict.
func (s *Store) AppendArmState(ctx context.Context, state *security.ArmState) error {
	changedBy, err := encodeActor(state.ChangedBy)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO arm_states (version, mode, previous_mode, armed_nodes, changed_at, changed_by, source, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		state.Version,
		string(state.Mode),
		string(state.PreviousMode),
		pq.Array(state.ArmedNodes),
		state.ChangedAt,
		changedBy,
		string(state.Source),
		state.Notes,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return fmt.Errorf("%w: version %d", repository.ErrVersionConflict, state.Version)
		}

		return fmt.Errorf("failed to insert arm state: %w", err)
	}

	return nil
}

// LoadAlarms returns every alarm with its transition log.
func (s *Store) LoadAlarms(ctx context.Context) ([]*security.Alarm, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, node_id, classification, priority, status, triggered_at,
		       acknowledged_at, acknowledged_by, resolved_at, resolved_by, notes, version
		FROM alarms`)
	if err != nil {
		return nil, fmt.Errorf("failed to query alarms: %w", err)
	}
	defer rows.Close()

	var (
		result []*security.Alarm
		byID   = make(map[string]*security.Alarm)
	)

	for rows.Next() {
		var (
			alarm          security.Alarm
			acknowledgedAt sql.NullTime
			resolvedAt     sql.NullTime
			acknowledgedBy []byte
			resolvedBy     []byte
		)

		err = rows.Scan(&alarm.ID, &alarm.NodeID, &alarm.Classification, &alarm.Priority, &alarm.Status,
			&alarm.TriggeredAt, &acknowledgedAt, &acknowledgedBy, &resolvedAt, &resolvedBy, &alarm.Notes, &alarm.Version)
		if err != nil {
			return nil, fmt.Errorf("failed to scan alarm: %w", err)
		}

		alarm.AcknowledgedAt = nullTime(acknowledgedAt)
		alarm.ResolvedAt = nullTime(resolvedAt)

		if alarm.AcknowledgedBy, err = decodeActor(acknowledgedBy); err != nil {
			return nil, err
		}

		if alarm.ResolvedBy, err = decodeActor(resolvedBy); err != nil {
			return nil, err
		}

		result = append(result, &alarm)
		byID[alarm.ID] = &alarm
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read alarms: %w", err)
	}

	if err = s.loadTransitions(ctx, byID); err != nil {
		return nil, err
	}

	return result, nil
}

// SaveAlarm upserts the alarm and appends the transitions not stored yet.
func (s *Store) SaveAlarm(ctx context.Context, alarm *security.Alarm) error {
	acknowledgedBy, err := encodeActor(alarm.AcknowledgedBy)
	if err != nil {
		return err
	}

	resolvedBy, err := encodeActor(alarm.ResolvedBy)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO alarms (id, node_id, classification, priority, status, triggered_at,
		                    acknowledged_at, acknowledged_by, resolved_at, resolved_by, notes, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			priority = EXCLUDED.priority,
			acknowledged_at = EXCLUDED.acknowledged_at,
			acknowledged_by = EXCLUDED.acknowledged_by,
			resolved_at = EXCLUDED.resolved_at,
			resolved_by = EXCLUDED.resolved_by,
			notes = EXCLUDED.notes,
			version = EXCLUDED.version`,
		alarm.ID,
		alarm.NodeID,
		string(alarm.Classification),
		string(alarm.Priority),
		string(alarm.Status),
		alarm.TriggeredAt,
		timeArg(alarm.AcknowledgedAt),
		acknowledgedBy,
		timeArg(alarm.ResolvedAt),
		resolvedBy,
		alarm.Notes,
		alarm.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert alarm: %w", err)
	}

	for seq, tr := range alarm.History {
		var actor any

		if actor, err = encodeActor(tr.Actor); err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO alarm_transitions (alarm_id, seq, from_status, to_status, at, actor, notes)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (alarm_id, seq) DO NOTHING`,
			alarm.ID, seq+1, string(tr.From), string(tr.To), tr.At, actor, tr.Notes)
		if err != nil {
			return fmt.Errorf("failed to insert alarm transition: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit alarm: %w", err)
	}

	return nil
}

// LoadNodes returns every node.
func (s *Store) LoadNodes(ctx context.Context) ([]*security.Node, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, node_type, status, telemetry, last_seen, active, registered_at
		FROM nodes
		ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query nodes: %w", err)
	}
	defer rows.Close()

	var result []*security.Node

	for rows.Next() {
		var (
			node      security.Node
			telemetry []byte
			lastSeen  sql.NullTime
		)

		err = rows.Scan(&node.ID, &node.Name, &node.Type, &node.Status, &telemetry,
			&lastSeen, &node.Active, &node.RegisteredAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan node: %w", err)
		}

		if len(telemetry) > 0 {
			if err = json.Unmarshal(telemetry, &node.Telemetry); err != nil {
				return nil, fmt.Errorf("failed to decode telemetry of node %s: %w", node.ID, err)
			}
		}

		node.LastSeen = nullTime(lastSeen)
		result = append(result, &node)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read nodes: %w", err)
	}

	return result, nil
}

// SaveNode upserts a node.
func (s *Store) SaveNode(ctx context.Context, node *security.Node) error {
	telemetry, err := json.Marshal(node.Telemetry)
	if err != nil {
		return fmt.Errorf("failed to encode telemetry: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO nodes (id, name, node_type, status, telemetry, last_seen, active, registered_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			node_type = EXCLUDED.node_type,
			status = EXCLUDED.status,
			telemetry = EXCLUDED.telemetry,
			last_seen = EXCLUDED.last_seen,
			active = EXCLUDED.active`,
		node.ID,
		node.Name,
		string(node.Type),
		string(node.Status),
		string(telemetry),
		timeArg(node.LastSeen),
		node.Active,
		node.RegisteredAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert node: %w", err)
	}

	return nil
}

// LoadZones returns every zone.
func (s *Store) LoadZones(ctx context.Context) ([]*security.Zone, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, description, members
		FROM zones
		ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query zones: %w", err)
	}
	defer rows.Close()

	var result []*security.Zone

	for rows.Next() {
		var (
			zone    security.Zone
			members pq.StringArray
		)

		if err = rows.Scan(&zone.ID, &zone.Name, &zone.Description, &members); err != nil {
			return nil, fmt.Errorf("failed to scan zone: %w", err)
		}

		zone.MemberNodeIDs = []string(members)
		result = append(result, &zone)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read zones: %w", err)
	}

	return result, nil
}

// SaveZone upserts a zone.
func (s *Store) SaveZone(ctx context.Context, zone *security.Zone) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO zones (id, name, description, members)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			members = EXCLUDED.members`,
		zone.ID, zone.Name, zone.Description, pq.Array(zone.MemberNodeIDs))
	if err != nil {
		return fmt.Errorf("failed to upsert zone: %w", err)
	}

	return nil
}

// loadTransitions attaches the stored transition logs to the loaded alarms.
func (s *Store) loadTransitions(ctx context.Context, byID map[string]*security.Alarm) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT alarm_id, from_status, to_status, at, actor, notes
		FROM alarm_transitions
		ORDER BY alarm_id, seq`)
	if err != nil {
		return fmt.Errorf("failed to query alarm transitions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			alarmID string
			tr      security.AlarmTransition
			actor   []byte
		)

		if err = rows.Scan(&alarmID, &tr.From, &tr.To, &tr.At, &actor, &tr.Notes); err != nil {
			return fmt.Errorf("failed to scan alarm transition: %w", err)
		}

		if tr.Actor, err = decodeActor(actor); err != nil {
			return err
		}

		if alarm, ok := byID[alarmID]; ok {
			alarm.History = append(alarm.History, tr)
		}
	}

	if err = rows.Err(); err != nil {
		return fmt.Errorf("failed to read alarm transitions: %w", err)
	}

	return nil
}

// encodeActor renders an actor as a JSONB argument; nil becomes NULL.
func encodeActor(actor *security.Actor) (any, error) {
	if actor == nil {
		return nil, nil
	}

	data, err := json.Marshal(actor)
	if err != nil {
		return nil, fmt.Errorf("failed to encode actor: %w", err)
	}

	return string(data), nil
}

// decodeActor parses a JSONB actor; NULL becomes nil.
func decodeActor(data []byte) (*security.Actor, error) {
	if len(data) == 0 {
		return nil, nil
	}

	var actor security.Actor
	if err := json.Unmarshal(data, &actor); err != nil {
		return nil, fmt.Errorf("failed to decode actor: %w", err)
	}

	return &actor, nil
}

func nullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}

	v := t.Time

	return &v
}

func timeArg(t *time.Time) any {
	if t == nil {
		return nil
	}

	return *t
}
