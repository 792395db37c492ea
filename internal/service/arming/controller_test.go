package arming

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/agrisecure/internal/domain/security"
	"github.com/oshokin/agrisecure/internal/repository/file"
	"github.com/oshokin/agrisecure/internal/service/registry"
)

var (
	errTestAppend = errors.New("test append error")
	errTestNotify = errors.New("test notify error")
)

// testActor is the operator used across tests.
var testActor = &security.Actor{Username: "o.shokin", Hostname: "farm-office"}

// memoryHistory is an in-memory ArmStateRepository that can be told to fail.
type memoryHistory struct {
	// entries holds appended states.
	entries []*security.ArmState
	// appendErr is returned from AppendArmState when set.
	appendErr error
	// mu protects entries.
	mu sync.Mutex
}

// LoadArmHistory returns the appended entries.
func (m *memoryHistory) LoadArmHistory(context.Context) ([]*security.ArmState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.entries, nil
}

// AppendArmState records the entry unless appendErr is set.
func (m *memoryHistory) AppendArmState(_ context.Context, s *security.ArmState) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.appendErr != nil {
		return m.appendErr
	}

	m.entries = append(m.entries, s.Clone())

	return nil
}

// recordingNotifier captures notifications.
type recordingNotifier struct {
	// states holds every notified state.
	states []*security.ArmState
	// err is returned from every call.
	err error
}

// ArmStateChanged records the state.
func (r *recordingNotifier) ArmStateChanged(_ context.Context, s *security.ArmState) error {
	r.states = append(r.states, s)

	return r.err
}

// blockingNotifier holds every notification until release is closed.
type blockingNotifier struct {
	// entered is closed on the first notification.
	entered chan struct{}
	// release unblocks notifications.
	release chan struct{}
	// once guards entered.
	once sync.Once
}

// ArmStateChanged signals entry and waits for release.
func (b *blockingNotifier) ArmStateChanged(context.Context, *security.ArmState) error {
	b.once.Do(func() { close(b.entered) })
	<-b.release

	return nil
}

// lockCheckingDirectory records whether the controller lock was free during node lookups.
type lockCheckingDirectory struct {
	NodeDirectory

	// controller is inspected on every lookup.
	controller *Controller
	// unlockedLookups counts lookups made without the controller lock.
	unlockedLookups atomic.Int32
}

// GetNode records the lock state and delegates.
func (d *lockCheckingDirectory) GetNode(ctx context.Context, nodeID string) (*security.Node, error) {
	if d.controller.mu.TryLock() {
		d.controller.mu.Unlock()
		d.unlockedLookups.Add(1)
	}

	return d.NodeDirectory.GetNode(ctx, nodeID)
}

// newRegistry builds a registry with S1..S3 security nodes, an ambient node and two zones.
func newRegistry(t *testing.T) *registry.Registry {
	t.Helper()

	ctx := context.Background()

	reg, err := registry.New(ctx, nil)
	require.NoError(t, err)

	for _, id := range []string{"S1", "S2", "S3"} {
		_, err = reg.RegisterNode(ctx, id, id, security.NodeTypeSecurity)
		require.NoError(t, err)
	}

	_, err = reg.RegisterNode(ctx, "A1", "A1", security.NodeTypeAmbient)
	require.NoError(t, err)

	_, err = reg.RegisterZone(ctx, &security.Zone{ID: "north", MemberNodeIDs: []string{"S1", "S2"}})
	require.NoError(t, err)

	_, err = reg.RegisterZone(ctx, &security.Zone{ID: "south", MemberNodeIDs: []string{"S3"}})
	require.NoError(t, err)

	return reg
}

// newController builds a controller over a fresh registry.
func newController(t *testing.T, repo *memoryHistory, opts ...Option) (*Controller, *registry.Registry) {
	t.Helper()

	reg := newRegistry(t)

	if repo == nil {
		repo = &memoryHistory{}
	}

	c, err := New(context.Background(), reg, repo, opts...)
	require.NoError(t, err)

	return c, reg
}

// TestCurrentArmState_Default reports disarmed before any change.
func TestCurrentArmState_Default(t *testing.T) {
	t.Parallel()

	c, _ := newController(t, nil)

	state := c.CurrentArmState(context.Background())
	require.Equal(t, security.ArmModeDisarmed, state.Mode)
	require.Empty(t, state.ArmedNodes)
	require.Zero(t, state.Version)
	require.Empty(t, c.History(context.Background(), 0))
}

// TestSetArmState_ArmThenDisarm appends two entries and ends disarmed.
func TestSetArmState_ArmThenDisarm(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c, _ := newController(t, nil)

	armed, err := c.SetArmState(ctx, security.ArmModeAway, []string{"S2", "S1"}, "leaving", testActor)
	require.NoError(t, err)
	require.Equal(t, []string{"S1", "S2"}, armed.ArmedNodes)
	require.Equal(t, security.ArmModeDisarmed, armed.PreviousMode)
	require.Equal(t, int64(1), armed.Version)

	disarmed, err := c.SetArmState(ctx, security.ArmModeDisarmed, []string{"S3"}, "", testActor)
	require.NoError(t, err)
	require.Equal(t, security.ArmModeDisarmed, disarmed.Mode)
	require.Empty(t, disarmed.ArmedNodes)
	require.Equal(t, security.ArmModeAway, disarmed.PreviousMode)

	history := c.History(ctx, 0)
	require.Len(t, history, 2)
	require.Equal(t, int64(2), history[0].Version)
	require.Equal(t, int64(1), history[1].Version)

	// The first entry is untouched.
	require.Equal(t, []string{"S1", "S2"}, history[1].ArmedNodes)

	require.Len(t, c.History(ctx, 1), 1)
}

// TestSetArmState_Rejects covers invalid requests.
func TestSetArmState_Rejects(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c, reg := newController(t, nil)

	_, err := reg.DeactivateNode(ctx, "S3")
	require.NoError(t, err)

	tests := []struct {
		name    string
		mode    security.ArmMode
		nodes   []string
		wantErr error
	}{
		{name: "empty armed set", mode: security.ArmModeAway, nodes: nil, wantErr: security.ErrInvalidTransition},
		{name: "blank ids only", mode: security.ArmModeNight, nodes: []string{" "}, wantErr: security.ErrInvalidTransition},
		{name: "unknown mode", mode: "vacation", nodes: []string{"S1"}, wantErr: security.ErrInvalidTransition},
		{name: "unknown node", mode: security.ArmModeAway, nodes: []string{"S9"}, wantErr: security.ErrInvalidNodeReference},
		{name: "ineligible type", mode: security.ArmModeAway, nodes: []string{"A1"}, wantErr: security.ErrInvalidNodeReference},
		{name: "inactive node", mode: security.ArmModeAway, nodes: []string{"S1", "S3"}, wantErr: security.ErrInvalidNodeReference},
	}

	for _, tt := range tests {
		_, err := c.SetArmState(ctx, tt.mode, tt.nodes, "", testActor)
		require.ErrorIs(t, err, tt.wantErr, tt.name)
	}

	require.Empty(t, c.History(ctx, 0))
}

// TestSetArmState_PersistFailure keeps the previous state when the append fails.
func TestSetArmState_PersistFailure(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := &memoryHistory{}
	c, _ := newController(t, repo)

	_, err := c.SetArmState(ctx, security.ArmModeAway, []string{"S1"}, "", testActor)
	require.NoError(t, err)

	repo.appendErr = errTestAppend

	_, err = c.SetArmState(ctx, security.ArmModeDisarmed, nil, "", testActor)
	require.ErrorIs(t, err, errTestAppend)

	state := c.CurrentArmState(ctx)
	require.Equal(t, security.ArmModeAway, state.Mode)
	require.Equal(t, int64(1), state.Version)
}

// TestArmAll arms every eligible node and skips others.
func TestArmAll(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c, reg := newController(t, nil)

	_, err := reg.DeactivateNode(ctx, "S2")
	require.NoError(t, err)

	state, err := c.ArmAll(ctx, security.ArmModeNight, "", testActor)
	require.NoError(t, err)
	require.Equal(t, []string{"S1", "S3"}, state.ArmedNodes)
	require.Equal(t, security.ArmModeNight, state.Mode)

	state, err = c.ArmAll(ctx, security.ArmModeDisarmed, "", testActor)
	require.NoError(t, err)
	require.Empty(t, state.ArmedNodes)
}

// TestArmZone_RequiresActiveMode rejects zone arming while disarmed by default.
func TestArmZone_RequiresActiveMode(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c, _ := newController(t, nil)

	_, err := c.ArmZone(ctx, "north", "", testActor)
	require.ErrorIs(t, err, security.ErrNoActiveMode)

	_, err = c.ArmZone(ctx, "missing", "", testActor)
	require.ErrorIs(t, err, security.ErrNotFound)
}

// TestArmZone_DefaultMode arms under the configured default mode.
func TestArmZone_DefaultMode(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c, _ := newController(t, nil, WithZoneDefaultMode(security.ArmModeHome))

	state, err := c.ArmZone(ctx, "north", "", testActor)
	require.NoError(t, err)
	require.Equal(t, security.ArmModeHome, state.Mode)
	require.Equal(t, []string{"S1", "S2"}, state.ArmedNodes)
	require.Equal(t, security.ArmSourceZone, state.Source)
}

// TestZoneFolds folds zones in and out while keeping the mode.
func TestZoneFolds(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c, reg := newController(t, nil)

	_, err := c.SetArmState(ctx, security.ArmModeAway, []string{"S3"}, "", testActor)
	require.NoError(t, err)

	state, err := c.ArmZone(ctx, "north", "", testActor)
	require.NoError(t, err)
	require.Equal(t, security.ArmModeAway, state.Mode)
	require.Equal(t, []string{"S1", "S2", "S3"}, state.ArmedNodes)

	// No change, no new entry.
	again, err := c.ArmZone(ctx, "north", "", testActor)
	require.NoError(t, err)
	require.Equal(t, state.Version, again.Version)

	north, err := reg.GetZone(ctx, "north")
	require.NoError(t, err)
	require.True(t, c.ZoneArmed(ctx, north))

	state, err = c.DisarmZone(ctx, "north", "", testActor)
	require.NoError(t, err)
	require.Equal(t, []string{"S3"}, state.ArmedNodes)
	require.False(t, c.ZoneArmed(ctx, north))
	require.False(t, c.IsNodeArmed(ctx, "S1"))
	require.True(t, c.IsNodeArmed(ctx, "S3"))

	state, err = c.DisarmZone(ctx, "south", "", testActor)
	require.NoError(t, err)
	require.Equal(t, security.ArmModeDisarmed, state.Mode)
	require.Empty(t, state.ArmedNodes)

	// Disarming a disarmed installation changes nothing.
	same, err := c.DisarmZone(ctx, "south", "", testActor)
	require.NoError(t, err)
	require.Equal(t, state.Version, same.Version)
}

// TestZoneFold_PrunesIneligible drops carried-over nodes that became inactive.
func TestZoneFold_PrunesIneligible(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c, reg := newController(t, nil)

	_, err := c.SetArmState(ctx, security.ArmModeAway, []string{"S1", "S3"}, "", testActor)
	require.NoError(t, err)

	_, err = reg.DeactivateNode(ctx, "S3")
	require.NoError(t, err)

	state, err := c.ArmZone(ctx, "north", "", testActor)
	require.NoError(t, err)
	require.Equal(t, []string{"S1", "S2"}, state.ArmedNodes)

	_, err = c.ArmZone(ctx, "south", "", testActor)
	require.ErrorIs(t, err, security.ErrInvalidNodeReference)
}

// TestAnnotate fills derived flags.
func TestAnnotate(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c, reg := newController(t, nil, WithZonePolicy(security.ZoneArmedAny))

	_, err := c.SetArmState(ctx, security.ArmModeAway, []string{"S1"}, "", testActor)
	require.NoError(t, err)

	nodes := reg.ListNodes(ctx)
	c.AnnotateNodes(ctx, nodes)

	for _, node := range nodes {
		require.Equal(t, node.ID == "S1", node.IsArmed, node.ID)
	}

	zones := reg.ListZones(ctx)
	c.AnnotateZones(ctx, zones)
	require.True(t, zones[0].Armed)
	require.False(t, zones[1].Armed)
}

// TestNotifier is called after commit and its failure does not roll back.
func TestNotifier(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	notifier := &recordingNotifier{err: errTestNotify}
	c, _ := newController(t, nil, WithNotifier(notifier))

	state, err := c.SetArmState(ctx, security.ArmModeAway, []string{"S1"}, "", testActor)
	require.NoError(t, err)
	require.Len(t, notifier.states, 1)
	require.Equal(t, state.Version, notifier.states[0].Version)
	require.Equal(t, security.ArmModeAway, c.CurrentArmState(ctx).Mode)
}

// TestNotifier_DoesNotBlockReaders serves reads while a notification is in flight.
func TestNotifier_DoesNotBlockReaders(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	notifier := &blockingNotifier{entered: make(chan struct{}), release: make(chan struct{})}
	c, _ := newController(t, nil, WithNotifier(notifier))

	done := make(chan error, 1)

	go func() {
		_, err := c.SetArmState(ctx, security.ArmModeAway, []string{"S1"}, "", testActor)
		done <- err
	}()

	<-notifier.entered

	read := make(chan bool, 1)

	go func() {
		read <- c.IsNodeArmed(ctx, "S1")
	}()

	select {
	case armed := <-read:
		require.True(t, armed)
	case <-time.After(time.Second):
		t.Fatal("IsNodeArmed waited for the notifier")
	}

	require.Equal(t, int64(1), c.CurrentArmState(ctx).Version)
	require.Len(t, c.History(ctx, 0), 1)

	close(notifier.release)
	require.NoError(t, <-done)
}

// TestNotifier_SkipsSupersededStates never notifies an older version after a newer one.
func TestNotifier_SkipsSupersededStates(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	notifier := &recordingNotifier{}
	c, _ := newController(t, nil, WithNotifier(notifier))

	c.notify(ctx, &security.ArmState{Version: 2, Mode: security.ArmModeDisarmed, ArmedNodes: []string{}})
	c.notify(ctx, &security.ArmState{Version: 1, Mode: security.ArmModeAway, ArmedNodes: []string{"S1"}})

	require.Len(t, notifier.states, 1)
	require.Equal(t, int64(2), notifier.states[0].Version)
}

// TestSetArmState_ChecksEligibilityUnderLock validates nodes inside the transition.
func TestSetArmState_ChecksEligibilityUnderLock(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c, reg := newController(t, nil)
	directory := &lockCheckingDirectory{NodeDirectory: reg, controller: c}
	c.nodes = directory

	_, err := c.SetArmState(ctx, security.ArmModeAway, []string{"S1", "S2"}, "", testActor)
	require.NoError(t, err)
	require.Zero(t, directory.unlockedLookups.Load())

	_, err = reg.DeactivateNode(ctx, "S2")
	require.NoError(t, err)

	_, err = c.SetArmState(ctx, security.ArmModeAway, []string{"S1", "S2"}, "", testActor)
	require.ErrorIs(t, err, security.ErrInvalidNodeReference)
	require.Zero(t, directory.unlockedLookups.Load())
	require.Equal(t, []string{"S1", "S2"}, c.CurrentArmState(ctx).ArmedNodes)
}

// TestConcurrentTransitions produces a gapless history where every entry holds the invariant.
func TestConcurrentTransitions(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c, _ := newController(t, nil)

	var wg sync.WaitGroup

	for i := range 20 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			if i%2 == 0 {
				_, _ = c.SetArmState(ctx, security.ArmModeAway, []string{"S1", "S2"}, "", testActor)
			} else {
				_, _ = c.SetArmState(ctx, security.ArmModeDisarmed, nil, "", testActor)
			}
		}()
	}

	wg.Wait()

	history := c.History(ctx, 0)
	require.Len(t, history, 20)

	for i, entry := range history {
		require.Equal(t, int64(20-i), entry.Version)
		require.NoError(t, entry.Validate())

		if i+1 < len(history) {
			require.Equal(t, history[i+1].Mode, entry.PreviousMode)
		}
	}
}

// TestReloadFromFile restores the current state across restarts.
func TestReloadFromFile(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	reg := newRegistry(t)
	path := filepath.Join(t.TempDir(), "state.json")
	clock := func() time.Time { return time.Date(2026, 10, 1, 22, 0, 0, 0, time.UTC) }

	c, err := New(ctx, reg, file.NewStore(path), WithClock(clock))
	require.NoError(t, err)

	_, err = c.SetArmState(ctx, security.ArmModeNight, []string{"S1"}, "night shift", testActor)
	require.NoError(t, err)

	reloaded, err := New(ctx, reg, file.NewStore(path))
	require.NoError(t, err)

	state := reloaded.CurrentArmState(ctx)
	require.Equal(t, security.ArmModeNight, state.Mode)
	require.Equal(t, []string{"S1"}, state.ArmedNodes)
	require.Equal(t, clock(), state.ChangedAt.UTC())
	require.Equal(t, testActor, state.ChangedBy)
}
