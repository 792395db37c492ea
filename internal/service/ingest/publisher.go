package ingest

import (
	"context"
	"errors"
	"fmt"

	"github.com/oshokin/agrisecure/internal/domain/security"
	"github.com/oshokin/agrisecure/internal/logger"
)

const (
	// commandArm instructs gateways to arm the targets.
	commandArm = "arm"
	// commandDisarm instructs gateways to disarm everything.
	commandDisarm = "disarm"
)

// JSONPublisher sends JSON payloads.
type JSONPublisher interface {
	// PublishJSON marshals data and publishes it on topic.
	PublishJSON(topic string, data any) error
}

// GatewayLister lists the gateways commands are sent to.
type GatewayLister interface {
	// ListGateways returns the active gateways.
	ListGateways(ctx context.Context) []*security.Node
}

// armCommand is the payload gateways understand.
type armCommand struct {
	// Command is arm or disarm.
	Command string `json:"command"`
	// Mode is the arm mode.
	Mode security.ArmMode `json:"mode"`
	// Targets are the armed node ids.
	Targets []string `json:"targets"`
	// Timestamp is the change time in unix seconds.
	Timestamp int64 `json:"timestamp"`
	// Version is the arm state version the command reflects.
	Version int64 `json:"version"`
}

// CommandPublisher forwards committed arm states to every active gateway.
type CommandPublisher struct {
	// publisher sends the commands.
	publisher JSONPublisher
	// gateways lists the recipients.
	gateways GatewayLister
	// topicFormat is the per-gateway topic; %s is the gateway id.
	topicFormat string
}

// NewCommandPublisher creates a publisher.
func NewCommandPublisher(publisher JSONPublisher, gateways GatewayLister, topicFormat string) *CommandPublisher {
	return &CommandPublisher{
		publisher:   publisher,
		gateways:    gateways,
		topicFormat: topicFormat,
	}
}

// ArmStateChanged publishes the state to each gateway and joins the failures.
func (p *CommandPublisher) ArmStateChanged(ctx context.Context, state *security.ArmState) error {
	cmd := armCommand{
		Command:   commandArm,
		Mode:      state.Mode,
		Targets:   state.ArmedNodes,
		Timestamp: state.ChangedAt.Unix(),
		Version:   state.Version,
	}

	if !state.IsArmed() {
		cmd.Command = commandDisarm
	}

	var errs []error

	gateways := p.gateways.ListGateways(ctx)
	for _, gw := range gateways {
		topic := fmt.Sprintf(p.topicFormat, gw.ID)

		if err := p.publisher.PublishJSON(topic, cmd); err != nil {
			errs = append(errs, fmt.Errorf("gateway %s: %w", gw.ID, err))

			continue
		}

		logger.DebugKV(ctx, "Arm command published", "gateway", gw.ID, "command", cmd.Command, "version", cmd.Version)
	}

	if len(gateways) == 0 {
		logger.Warn(ctx, "No active gateway to receive the arm command")
	}

	return errors.Join(errs...)
}
