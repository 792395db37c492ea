package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/agrisecure/internal/domain/security"
	"github.com/oshokin/agrisecure/internal/repository"
)

// TestStore_MissingFile verifies that a missing file behaves as an empty store.
func TestStore_MissingFile(t *testing.T) {
	t.Parallel()

	store := NewStore(filepath.Join(t.TempDir(), "missing.json"))

	history, err := store.LoadArmHistory(context.Background())
	require.NoError(t, err)
	require.Empty(t, history)

	alarms, err := store.LoadAlarms(context.Background())
	require.NoError(t, err)
	require.Empty(t, alarms)
}

// TestStore_Roundtrip ensures every record type survives a reopen of the file.
func TestStore_Roundtrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "state.json")
	store := NewStore(path)
	ctx := context.Background()

	ts := time.Now().UTC().Truncate(time.Second)
	state := &security.ArmState{
		Version:    1,
		Mode:       security.ArmModeAway,
		ArmedNodes: []string{"SEC-1"},
		ChangedAt:  ts,
		ChangedBy:  &security.Actor{Username: "op"},
		Source:     security.ArmSourceOperator,
	}
	require.NoError(t, store.AppendArmState(ctx, state))

	alarm := &security.Alarm{
		ID:             "a1",
		NodeID:         "SEC-1",
		Classification: security.ClassificationPerson,
		Priority:       security.PriorityHigh,
		Status:         security.AlarmStatusActive,
		TriggeredAt:    ts,
		Version:        1,
	}
	require.NoError(t, store.SaveAlarm(ctx, alarm))

	alarm.Status = security.AlarmStatusResolved
	require.NoError(t, store.SaveAlarm(ctx, alarm))

	require.NoError(t, store.SaveNode(ctx, &security.Node{ID: "SEC-1", Type: security.NodeTypeSecurity, Active: true}))
	require.NoError(t, store.SaveZone(ctx, &security.Zone{ID: "north", Name: "North", MemberNodeIDs: []string{"SEC-1"}}))

	_, err := os.Stat(path)
	require.NoError(t, err)

	reopened := NewStore(path)

	history, err := reopened.LoadArmHistory(ctx)
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Equal(t, state.ArmedNodes, history[0].ArmedNodes)
	require.Equal(t, state.ChangedAt.Unix(), history[0].ChangedAt.Unix())

	alarms, err := reopened.LoadAlarms(ctx)
	require.NoError(t, err)
	require.Len(t, alarms, 1)
	require.Equal(t, security.AlarmStatusResolved, alarms[0].Status)

	nodes, err := reopened.LoadNodes(ctx)
	require.NoError(t, err)
	require.Len(t, nodes, 1)

	zones, err := reopened.LoadZones(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"SEC-1"}, zones[0].MemberNodeIDs)
}

// TestStore_AppendVersionConflict asserts that an arm state version is written only once.
func TestStore_AppendVersionConflict(t *testing.T) {
	t.Parallel()

	store := NewStore(filepath.Join(t.TempDir(), "state.json"))
	ctx := context.Background()

	state := &security.ArmState{Version: 1, Mode: security.ArmModeDisarmed}
	require.NoError(t, store.AppendArmState(ctx, state))
	require.ErrorIs(t, store.AppendArmState(ctx, state), repository.ErrVersionConflict)

	history, err := store.LoadArmHistory(ctx)
	require.NoError(t, err)
	require.Len(t, history, 1)
}

// TestStore_FailedWriteKeepsDocument verifies that a failed write leaves the cached document untouched.
func TestStore_FailedWriteKeepsDocument(t *testing.T) {
	t.Parallel()

	store := NewStore(filepath.Join(t.TempDir(), "missing-dir", "state.json"))
	ctx := context.Background()

	require.Error(t, store.SaveNode(ctx, &security.Node{ID: "SEC-1"}))

	nodes, err := store.LoadNodes(ctx)
	require.NoError(t, err)
	require.Empty(t, nodes)
}
