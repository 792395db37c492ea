package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"github.com/oshokin/agrisecure/internal/domain/security"
	"github.com/oshokin/agrisecure/internal/repository"
)

var errTestDB = errors.New("test db error")

// changedAt is a fixed timestamp used across rows.
var changedAt = time.Date(2026, 10, 1, 21, 30, 0, 0, time.UTC)

// newMockStore returns a store over sqlmock.
func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = db.Close()
	})

	return NewStore(db), mock
}

// TestMigrate applies every schema statement.
func TestMigrate(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)

	for range schema {
		mock.ExpectExec(`CREATE`).WillReturnResult(sqlmock.NewResult(0, 0))
	}

	require.NoError(t, store.Migrate(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

// TestMigrate_Error stops on the first failing statement.
func TestMigrate_Error(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS arm_states`).WillReturnError(errTestDB)

	err := store.Migrate(context.Background())
	require.ErrorIs(t, err, errTestDB)
	require.NoError(t, mock.ExpectationsWereMet())
}

// TestLoadArmHistory scans arrays and actors.
func TestLoadArmHistory(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)

	rows := sqlmock.NewRows([]string{
		"version", "mode", "previous_mode", "armed_nodes", "changed_at", "changed_by", "source", "notes",
	}).
		AddRow(int64(1), "away", "disarmed", "{S1,S2}", changedAt, `{"username":"o.shokin"}`, "operator", "leaving").
		AddRow(int64(2), "disarmed", "away", "{}", changedAt.Add(time.Hour), nil, "system", "")

	mock.ExpectQuery(`SELECT (.+) FROM arm_states`).WillReturnRows(rows)

	history, err := store.LoadArmHistory(context.Background())
	require.NoError(t, err)
	require.Len(t, history, 2)

	require.Equal(t, security.ArmModeAway, history[0].Mode)
	require.Equal(t, []string{"S1", "S2"}, history[0].ArmedNodes)
	require.Equal(t, &security.Actor{Username: "o.shokin"}, history[0].ChangedBy)
	require.Equal(t, "leaving", history[0].Notes)

	require.Equal(t, security.ArmModeDisarmed, history[1].Mode)
	require.Empty(t, history[1].ArmedNodes)
	require.NotNil(t, history[1].ArmedNodes)
	require.Nil(t, history[1].ChangedBy)

	require.NoError(t, mock.ExpectationsWereMet())
}

// TestAppendArmState inserts a row and maps duplicate keys to a version conflict.
func TestAppendArmState(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)

	state := &security.ArmState{
		Version:      3,
		Mode:         security.ArmModeNight,
		PreviousMode: security.ArmModeDisarmed,
		ArmedNodes:   []string{"S1"},
		ChangedAt:    changedAt,
		ChangedBy:    &security.Actor{Username: "o.shokin", Hostname: "office"},
		Source:       security.ArmSourceOperator,
	}

	mock.ExpectExec(`INSERT INTO arm_states`).
		WithArgs(int64(3), "night", "disarmed", sqlmock.AnyArg(), changedAt,
			`{"username":"o.shokin","hostname":"office"}`, "operator", "").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.AppendArmState(context.Background(), state))

	mock.ExpectExec(`INSERT INTO arm_states`).
		WillReturnError(&pq.Error{Code: uniqueViolation})

	err := store.AppendArmState(context.Background(), state)
	require.ErrorIs(t, err, repository.ErrVersionConflict)

	mock.ExpectExec(`INSERT INTO arm_states`).WillReturnError(errTestDB)

	err = store.AppendArmState(context.Background(), state)
	require.ErrorIs(t, err, errTestDB)

	require.NoError(t, mock.ExpectationsWereMet())
}

// TestSaveAlarm upserts the record and appends its transitions in one transaction.
func TestSaveAlarm(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	actor := &security.Actor{Username: "o.shokin"}
	ackAt := changedAt.Add(time.Minute)

	alarm := &security.Alarm{
		ID:             "alarm-1",
		NodeID:         "S1",
		Classification: security.ClassificationPerson,
		Priority:       security.PriorityHigh,
		Status:         security.AlarmStatusAcknowledged,
		TriggeredAt:    changedAt,
		AcknowledgedAt: &ackAt,
		AcknowledgedBy: actor,
		Version:        2,
		History: []security.AlarmTransition{{
			From:  security.AlarmStatusActive,
			To:    security.AlarmStatusAcknowledged,
			At:    ackAt,
			Actor: actor,
		}},
	}

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO alarms`).
		WithArgs("alarm-1", "S1", "person", "high", "acknowledged", changedAt,
			ackAt, `{"username":"o.shokin"}`, nil, nil, "", int64(2)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO alarm_transitions`).
		WithArgs("alarm-1", 1, "active", "acknowledged", ackAt, `{"username":"o.shokin"}`, "").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, store.SaveAlarm(context.Background(), alarm))
	require.NoError(t, mock.ExpectationsWereMet())
}

// TestSaveAlarm_Rollback rolls back when a transition insert fails.
func TestSaveAlarm_Rollback(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)

	alarm := &security.Alarm{
		ID:          "alarm-1",
		NodeID:      "S1",
		Status:      security.AlarmStatusResolved,
		TriggeredAt: changedAt,
		History: []security.AlarmTransition{
			{From: security.AlarmStatusActive, To: security.AlarmStatusResolved, At: changedAt},
		},
	}

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO alarms`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO alarm_transitions`).WillReturnError(errTestDB)
	mock.ExpectRollback()

	err := store.SaveAlarm(context.Background(), alarm)
	require.ErrorIs(t, err, errTestDB)
	require.NoError(t, mock.ExpectationsWereMet())
}

// TestLoadAlarms attaches transitions to their alarms.
func TestLoadAlarms(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	resolvedAt := changedAt.Add(10 * time.Minute)

	alarmRows := sqlmock.NewRows([]string{
		"id", "node_id", "classification", "priority", "status", "triggered_at",
		"acknowledged_at", "acknowledged_by", "resolved_at", "resolved_by", "notes", "version",
	}).
		AddRow("alarm-1", "S1", "tamper", "critical", "resolved", changedAt,
			nil, nil, resolvedAt, `{"username":"guard"}`, "wind", int64(2)).
		AddRow("alarm-2", "S2", "person", "high", "active", changedAt,
			nil, nil, nil, nil, "", int64(1))

	transitionRows := sqlmock.NewRows([]string{"alarm_id", "from_status", "to_status", "at", "actor", "notes"}).
		AddRow("alarm-1", "active", "resolved", resolvedAt, `{"username":"guard"}`, "wind")

	mock.ExpectQuery(`SELECT (.+) FROM alarms`).WillReturnRows(alarmRows)
	mock.ExpectQuery(`SELECT (.+) FROM alarm_transitions`).WillReturnRows(transitionRows)

	alarms, err := store.LoadAlarms(context.Background())
	require.NoError(t, err)
	require.Len(t, alarms, 2)

	require.Equal(t, security.AlarmStatusResolved, alarms[0].Status)
	require.Equal(t, resolvedAt, *alarms[0].ResolvedAt)
	require.Equal(t, "guard", alarms[0].ResolvedBy.Username)
	require.Nil(t, alarms[0].AcknowledgedAt)
	require.Len(t, alarms[0].History, 1)
	require.Equal(t, security.AlarmStatusResolved, alarms[0].History[0].To)

	require.Empty(t, alarms[1].History)
	require.Nil(t, alarms[1].ResolvedAt)

	require.NoError(t, mock.ExpectationsWereMet())
}

// TestNodesAndZones covers the registry tables.
func TestNodesAndZones(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT (.+) FROM nodes`).WillReturnRows(
		sqlmock.NewRows([]string{
			"id", "name", "node_type", "status", "telemetry", "last_seen", "active", "registered_at",
		}).AddRow("S1", "Gate", "security", "online", `{"battery_level":87}`, changedAt, true, changedAt),
	)

	nodes, err := store.LoadNodes(ctx)
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	require.Equal(t, security.NodeTypeSecurity, nodes[0].Type)
	require.Equal(t, 87, *nodes[0].Telemetry.BatteryLevel)
	require.Equal(t, changedAt, *nodes[0].LastSeen)

	mock.ExpectExec(`INSERT INTO nodes`).
		WithArgs("S1", "Gate", "security", "online", `{"battery_level":87}`, changedAt, true, changedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.SaveNode(ctx, nodes[0]))

	mock.ExpectQuery(`SELECT (.+) FROM zones`).WillReturnRows(
		sqlmock.NewRows([]string{"id", "name", "description", "members"}).
			AddRow("north", "North fence", "", "{S1,S2}"),
	)

	zones, err := store.LoadZones(ctx)
	require.NoError(t, err)
	require.Len(t, zones, 1)
	require.Equal(t, []string{"S1", "S2"}, zones[0].MemberNodeIDs)

	mock.ExpectExec(`INSERT INTO zones`).
		WithArgs("north", "North fence", "", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.SaveZone(ctx, zones[0]))

	mock.ExpectExec(`INSERT INTO zones`).WillReturnError(errTestDB)
	require.ErrorIs(t, store.SaveZone(ctx, zones[0]), errTestDB)

	require.NoError(t, mock.ExpectationsWereMet())
}
