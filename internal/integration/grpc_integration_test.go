package integration

import (
	"bytes"
	"context"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/oshokin/agrisecure/internal/config"
	"github.com/oshokin/agrisecure/internal/domain/security"
	pb "github.com/oshokin/agrisecure/internal/pb/v1"
	"github.com/oshokin/agrisecure/internal/repository/file"
	"github.com/oshokin/agrisecure/internal/service/alarms"
	"github.com/oshokin/agrisecure/internal/service/client"
	"github.com/oshokin/agrisecure/internal/service/common"
	"github.com/oshokin/agrisecure/internal/service/server"
)

// testActor is the operator used across the integration tests.
var testActor = &pb.SystemActor{Hostname: "test-hostname", Username: "test-user"}

// reservePort returns a free local address.
func reservePort(t *testing.T) string {
	t.Helper()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	addr := l.Addr().String()
	_ = l.Close()

	return addr
}

// writeSettings saves a settings file for a seeded farm and returns its path.
func writeSettings(t *testing.T, addr, statePath string) string {
	t.Helper()

	cfgPath := filepath.Join(t.TempDir(), "settings.yaml")

	require.NoError(t, config.Save(cfgPath, &config.Config{
		ServerAddress: addr,
		Timeout:       5 * time.Second,
		Storage:       config.StorageConfig{Driver: config.DriverFile, Path: statePath},
		Seed: config.SeedConfig{
			Nodes: []config.SeedNode{
				{ID: "GW1", Name: "Barn gateway", Type: "gateway"},
				{ID: "S1", Name: "North gate", Type: "security"},
				{ID: "S2", Name: "Silo", Type: "security"},
				{ID: "A1", Name: "Greenhouse", Type: "ambient"},
			},
			Zones: []config.SeedZone{
				{ID: "north", Name: "North", Members: []string{"S1"}},
			},
		},
	}))

	return cfgPath
}

// startGRPC runs the server from cfgPath and returns a stop function that
// waits for shutdown.
func startGRPC(t *testing.T, addr, cfgPath string) (stop func()) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	go func() {
		done <- server.Run(ctx, &server.Options{ConfigPath: cfgPath, ListenAddress: addr})
	}()

	// Wait briefly for server to start listening.
	time.Sleep(150 * time.Millisecond)

	return func() {
		cancel()

		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("server did not stop")
		}
	}
}

// dial connects a client to addr.
func dial(t *testing.T, addr string) *common.Client {
	t.Helper()

	c, err := common.Dial(context.Background(), addr, common.WithCallTimeout(3*time.Second))
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = c.Close()
	})

	return c
}

// TestGRPC_ArmingSurvivesRestart arms through the real server, restarts it and reads the history back.
func TestGRPC_ArmingSurvivesRestart(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	statePath := filepath.Join(t.TempDir(), "state.json")

	addr := reservePort(t)
	stop := startGRPC(t, addr, writeSettings(t, addr, statePath))
	c := dial(t, addr)

	state, err := c.GetArmState(ctx)
	require.NoError(t, err)
	require.Equal(t, "disarmed", state.Mode)

	_, err = c.SetArmState(ctx, testActor, "away", []string{"A1"}, "")
	require.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = c.ArmZone(ctx, testActor, "north", "")
	require.Equal(t, codes.FailedPrecondition, status.Code(err))

	state, err = c.ArmAll(ctx, testActor, "night", "leaving")
	require.NoError(t, err)
	require.Equal(t, []string{"S1", "S2"}, state.ArmedNodes)

	state, err = c.DisarmZone(ctx, testActor, "north", "")
	require.NoError(t, err)
	require.Equal(t, "night", state.Mode)
	require.Equal(t, []string{"S2"}, state.ArmedNodes)

	stop()

	addr = reservePort(t)
	stop = startGRPC(t, addr, writeSettings(t, addr, statePath))
	defer stop()

	c = dial(t, addr)

	history, err := c.ListArmHistory(ctx, 0)
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.Equal(t, int64(2), history[0].Version)
	require.Equal(t, "zone", history[0].Source)
	require.Equal(t, "night", history[0].PreviousMode)

	nodes, err := c.ListNodes(ctx, true)
	require.NoError(t, err)
	require.Len(t, nodes, 2)
	require.True(t, nodes[1].IsArmed)
}

// TestGRPC_AlarmLifecycle works a persisted alarm through the real server and the CLI session.
func TestGRPC_AlarmLifecycle(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	statePath := filepath.Join(t.TempDir(), "state.json")

	manager, err := alarms.New(ctx, file.NewStore(statePath))
	require.NoError(t, err)

	created, err := manager.Create(ctx, alarms.CreateRequest{
		NodeID:         "S1",
		Classification: security.ClassificationTamper,
		TriggeredAt:    time.Now().Add(-time.Hour),
	})
	require.NoError(t, err)

	addr := reservePort(t)
	cfgPath := writeSettings(t, addr, statePath)

	stop := startGRPC(t, addr, cfgPath)
	defer stop()

	c := dial(t, addr)

	list, err := c.ListAlarms(ctx, &pb.ListAlarmsRequest{Priority: "critical"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, "Critical", list[0].PriorityLabel)

	var out bytes.Buffer

	session, err := client.Open(ctx, &client.Options{ConfigPath: cfgPath, Output: &out})
	require.NoError(t, err)

	defer func() {
		_ = session.Close()
	}()

	require.NoError(t, session.Acknowledge(ctx, created.ID, "on my way"))
	require.NoError(t, session.Resolve(ctx, created.ID, "fence repaired"))
	require.Error(t, session.Resolve(ctx, created.ID, ""))
	require.Contains(t, out.String(), "is now resolved")

	got, err := c.GetAlarm(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, "resolved", got.Status)
	require.Len(t, got.History, 2)
	require.NotNil(t, got.AcknowledgedBy)

	summary, err := c.GetStatistics(ctx, 0)
	require.NoError(t, err)
	require.Equal(t, 30, summary.WindowDays)
	require.Equal(t, 1, summary.ByStatus["resolved"])
	require.NotNil(t, summary.AverageResponseSeconds)
}
