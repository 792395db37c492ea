package client

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"

	pb "github.com/oshokin/agrisecure/internal/pb/v1"
	"github.com/oshokin/agrisecure/internal/service/common"
)

// testActor is the operator used by the sessions under test.
var testActor = &pb.SystemActor{Username: "o.shokin", Hostname: "farm-office"}

// cannedServer answers with fixed data and records the last arm request.
type cannedServer struct {
	pb.UnimplementedSecurityServiceServer

	lastSet *pb.SetArmStateRequest
}

// GetArmState returns an armed state.
func (s *cannedServer) GetArmState(context.Context, *pb.GetArmStateRequest) (*pb.ArmState, error) {
	return &pb.ArmState{Version: 4, Mode: "night", ArmedNodes: []string{"S1", "S2"}, ChangedBy: testActor}, nil
}

// SetArmState echoes the request.
func (s *cannedServer) SetArmState(_ context.Context, req *pb.SetArmStateRequest) (*pb.ArmState, error) {
	s.lastSet = req

	return &pb.ArmState{Version: 5, Mode: req.Mode, ArmedNodes: append([]string{}, req.NodeIDs...), ChangedBy: req.Actor}, nil
}

// ListAlarms returns one acknowledged alarm.
func (s *cannedServer) ListAlarms(context.Context, *pb.ListAlarmsRequest) (*pb.AlarmList, error) {
	return &pb.AlarmList{Alarms: []*pb.Alarm{{
		ID:             "alarm-1",
		NodeID:         "S1",
		Classification: "person",
		Priority:       "high",
		PriorityLabel:  "High",
		Status:         "acknowledged",
		TriggeredAt:    time.Date(2026, 10, 1, 3, 0, 0, 0, time.UTC),
	}}}, nil
}

// GetStatistics returns a small summary.
func (s *cannedServer) GetStatistics(_ context.Context, req *pb.GetStatisticsRequest) (*pb.Statistics, error) {
	avg := 5400.0

	return &pb.Statistics{
		WindowDays:             req.WindowDays,
		Total:                  8,
		Open:                   2,
		ByStatus:               map[string]int{"false_positive": 3, "resolved": 3, "active": 2},
		ByPriority:             map[string]int{"high": 8},
		ByClassification:       map[string]int{"person": 8},
		FalsePositiveRate:      0.375,
		AverageResponseSeconds: &avg,
	}, nil
}

// newTestSession serves srv in memory and returns a session printing to out.
func newTestSession(t *testing.T, srv pb.SecurityServiceServer, out *bytes.Buffer, asJSON bool) *Session {
	t.Helper()

	listener := bufconn.Listen(1 << 20)
	grpcServer := grpc.NewServer()
	pb.RegisterSecurityServiceServer(grpcServer, srv)

	go func() {
		_ = grpcServer.Serve(listener)
	}()

	t.Cleanup(grpcServer.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(context.Context, string) (net.Conn, error) {
			return listener.Dial()
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = conn.Close()
	})

	return NewSession(common.NewClient(conn), testActor, out, asJSON)
}

// TestSession_StateText prints the arm state on one line.
func TestSession_StateText(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer

	s := newTestSession(t, new(cannedServer), &out, false)

	require.NoError(t, s.State(context.Background()))
	require.Equal(t, "night [S1, S2] v4 by o.shokin@farm-office (-)\n", out.String())
}

// TestSession_DisarmSendsDisarmedMode clears the armed set and prints JSON.
func TestSession_DisarmSendsDisarmedMode(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer

	srv := new(cannedServer)
	s := newTestSession(t, srv, &out, true)

	require.NoError(t, s.Disarm(context.Background(), "morning"))
	require.Equal(t, "disarmed", srv.lastSet.Mode)
	require.Empty(t, srv.lastSet.NodeIDs)
	require.Equal(t, "morning", srv.lastSet.Notes)
	require.Equal(t, testActor, srv.lastSet.Actor)

	var state pb.ArmState
	require.NoError(t, json.Unmarshal(out.Bytes(), &state))
	require.Equal(t, int64(5), state.Version)
	require.Equal(t, "disarmed", state.Mode)
}

// TestSession_AlarmsTable renders one row per alarm.
func TestSession_AlarmsTable(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer

	s := newTestSession(t, new(cannedServer), &out, false)

	require.NoError(t, s.Alarms(context.Background(), nil))

	lines := bytes.Split(bytes.TrimSpace(out.Bytes()), []byte("\n"))
	require.Len(t, lines, 2)
	require.Contains(t, string(lines[0]), "PRIORITY")
	require.Contains(t, string(lines[1]), "alarm-1")
	require.Contains(t, string(lines[1]), "High")
	require.Contains(t, string(lines[1]), "acknowledged")
}

// TestSession_StatsText prints the summary with sorted counts.
func TestSession_StatsText(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer

	s := newTestSession(t, new(cannedServer), &out, false)

	require.NoError(t, s.Stats(context.Background(), 7))
	require.Contains(t, out.String(), "Window: last 7 days")
	require.Contains(t, out.String(), "false positive rate: 37.5%")
	require.Contains(t, out.String(), "Average response: 1h30m0s")
	require.Contains(t, out.String(), "By status: active=2 false_positive=3 resolved=3")
}

// TestSession_PropagatesErrors returns server errors unchanged in meaning.
func TestSession_PropagatesErrors(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer

	s := newTestSession(t, new(cannedServer), &out, false)

	require.Error(t, s.Zones(context.Background()))
	require.Empty(t, out.String())
}

// TestFormatArmState covers the empty and nil cases.
func TestFormatArmState(t *testing.T) {
	t.Parallel()

	require.Equal(t, "<nil state>", formatArmState(nil))
	require.Equal(t, "disarmed [none] v0 by <unknown> (-)", formatArmState(&pb.ArmState{Mode: "disarmed"}))
}
