package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/oshokin/agrisecure/internal/config"
	"github.com/oshokin/agrisecure/internal/logger"
	pb "github.com/oshokin/agrisecure/internal/pb/v1"
	"github.com/oshokin/agrisecure/internal/service/common"
)

// disarmedMode is the wire name of the disarmed arm mode.
const disarmedMode = "disarmed"

// Options configures how a Session connects and prints.
type Options struct {
	// ConfigPath to YAML settings file, defaults to standard filename if empty.
	ConfigPath string
	// ServerAddress overrides server address from config when specified.
	ServerAddress string
	// JSON prints raw responses as indented JSON.
	JSON bool
	// Output receives the rendered responses; defaults to stdout.
	Output io.Writer
}

// Session is one connected operator.
type Session struct {
	// client talks to the server.
	client *common.Client
	// actor is stamped on every mutating call.
	actor *pb.SystemActor
	// out receives rendered output.
	out io.Writer
	// asJSON switches rendering to JSON.
	asJSON bool
}

// Open loads settings, detects the operator and connects to the server.
func Open(ctx context.Context, opts *Options) (*Session, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, err
	}

	logger.SetLevelFromString(cfg.LogLevel)

	serverAddress := cfg.ServerAddress
	if opts.ServerAddress != "" {
		serverAddress = opts.ServerAddress
	}

	actor, err := common.DetectActor()
	if err != nil {
		return nil, err
	}

	client, err := common.Dial(ctx, serverAddress, common.WithCallTimeout(cfg.Timeout))
	if err != nil {
		return nil, err
	}

	logger.DebugKV(ctx, "Connected", "server_address", serverAddress, "actor", actor.GetUsername())

	return NewSession(client, actor, opts.Output, opts.JSON), nil
}

// NewSession wraps an existing client. A nil out prints to stdout.
func NewSession(client *common.Client, actor *pb.SystemActor, out io.Writer, asJSON bool) *Session {
	if out == nil {
		out = os.Stdout
	}

	return &Session{
		client: client,
		actor:  actor,
		out:    out,
		asJSON: asJSON,
	}
}

// Close releases the connection.
func (s *Session) Close() error {
	return s.client.Close()
}

// State prints the current arm state.
func (s *Session) State(ctx context.Context) error {
	state, err := s.client.GetArmState(ctx)
	if err != nil {
		return err
	}

	return s.render(state, func(w io.Writer) {
		_, _ = fmt.Fprintln(w, formatArmState(state))
	})
}

// History prints the latest arm states, newest first.
func (s *Session) History(ctx context.Context, limit int) error {
	states, err := s.client.ListArmHistory(ctx, limit)
	if err != nil {
		return err
	}

	return s.render(states, func(w io.Writer) {
		writeHistory(w, states)
	})
}

// Arm replaces the armed set with nodeIDs in the given mode.
func (s *Session) Arm(ctx context.Context, mode string, nodeIDs []string, notes string) error {
	state, err := s.client.SetArmState(ctx, s.actor, mode, nodeIDs, notes)
	if err != nil {
		return err
	}

	return s.printArmState(state)
}

// ArmAll arms every eligible node.
func (s *Session) ArmAll(ctx context.Context, mode, notes string) error {
	state, err := s.client.ArmAll(ctx, s.actor, mode, notes)
	if err != nil {
		return err
	}

	return s.printArmState(state)
}

// Disarm clears the armed set.
func (s *Session) Disarm(ctx context.Context, notes string) error {
	state, err := s.client.SetArmState(ctx, s.actor, disarmedMode, nil, notes)
	if err != nil {
		return err
	}

	return s.printArmState(state)
}

// ArmZone folds a zone into the armed set.
func (s *Session) ArmZone(ctx context.Context, zoneID, notes string) error {
	state, err := s.client.ArmZone(ctx, s.actor, zoneID, notes)
	if err != nil {
		return err
	}

	return s.printArmState(state)
}

// DisarmZone folds a zone out of the armed set.
func (s *Session) DisarmZone(ctx context.Context, zoneID, notes string) error {
	state, err := s.client.DisarmZone(ctx, s.actor, zoneID, notes)
	if err != nil {
		return err
	}

	return s.printArmState(state)
}

// Nodes prints registered nodes.
func (s *Session) Nodes(ctx context.Context, securityOnly bool) error {
	nodes, err := s.client.ListNodes(ctx, securityOnly)
	if err != nil {
		return err
	}

	return s.render(nodes, func(w io.Writer) {
		writeNodes(w, nodes)
	})
}

// Zones prints zones.
func (s *Session) Zones(ctx context.Context) error {
	zones, err := s.client.ListZones(ctx)
	if err != nil {
		return err
	}

	return s.render(zones, func(w io.Writer) {
		writeZones(w, zones)
	})
}

// Alarms prints alarms matching the request.
func (s *Session) Alarms(ctx context.Context, req *pb.ListAlarmsRequest) error {
	list, err := s.client.ListAlarms(ctx, req)
	if err != nil {
		return err
	}

	return s.render(list, func(w io.Writer) {
		writeAlarms(w, list)
	})
}

// Acknowledge acknowledges an alarm.
func (s *Session) Acknowledge(ctx context.Context, id, notes string) error {
	alarm, err := s.client.AcknowledgeAlarm(ctx, s.actor, id, notes)
	if err != nil {
		return err
	}

	return s.printAlarm(alarm)
}

// Resolve resolves an alarm.
func (s *Session) Resolve(ctx context.Context, id, notes string) error {
	alarm, err := s.client.ResolveAlarm(ctx, s.actor, id, notes)
	if err != nil {
		return err
	}

	return s.printAlarm(alarm)
}

// FalsePositive marks an alarm as a false positive.
func (s *Session) FalsePositive(ctx context.Context, id, notes string) error {
	alarm, err := s.client.MarkFalsePositive(ctx, s.actor, id, notes)
	if err != nil {
		return err
	}

	return s.printAlarm(alarm)
}

// Stats prints the alarm summary.
func (s *Session) Stats(ctx context.Context, windowDays int) error {
	summary, err := s.client.GetStatistics(ctx, windowDays)
	if err != nil {
		return err
	}

	return s.render(summary, func(w io.Writer) {
		writeStatistics(w, summary)
	})
}

func (s *Session) printArmState(state *pb.ArmState) error {
	return s.render(state, func(w io.Writer) {
		_, _ = fmt.Fprintf(w, "Arm state updated: %s\n", formatArmState(state))
	})
}

func (s *Session) printAlarm(alarm *pb.Alarm) error {
	return s.render(alarm, func(w io.Writer) {
		_, _ = fmt.Fprintf(w, "Alarm %s is now %s\n", alarm.ID, alarm.Status)
	})
}

// render prints v as JSON or through the text writer.
func (s *Session) render(v any, text func(w io.Writer)) error {
	if !s.asJSON {
		text(s.out)

		return nil
	}

	encoder := json.NewEncoder(s.out)
	encoder.SetIndent("", "  ")

	if err := encoder.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}

	return nil
}
