package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/oshokin/agrisecure/internal/domain/security"
	"github.com/oshokin/agrisecure/internal/logger"
	"github.com/oshokin/agrisecure/internal/mqtt"
	"github.com/oshokin/agrisecure/internal/service/alarms"
	"github.com/oshokin/agrisecure/internal/service/registry"
)

// errMissingNodeID is returned for payloads without node_id.
var errMissingNodeID = errors.New("payload without node_id")

// NodeRegistry is the registry surface the pipeline writes to.
type NodeRegistry interface {
	// GetNode returns a node or an ErrNotFound-wrapped error.
	GetNode(ctx context.Context, nodeID string) (*security.Node, error)
	// RegisterNode creates or updates a node.
	RegisterNode(ctx context.Context, nodeID, name string, nodeType security.NodeType) (*security.Node, error)
	// RecordHeartbeat stores telemetry and marks the node online.
	RecordHeartbeat(ctx context.Context, hb registry.Heartbeat) (*security.Node, error)
}

// ArmChecker answers whether a node is currently armed.
type ArmChecker interface {
	// IsNodeArmed reports whether the node is in the armed set.
	IsNodeArmed(ctx context.Context, nodeID string) bool
}

// AlarmCreator materializes alarms.
type AlarmCreator interface {
	// Create stores a new active alarm.
	Create(ctx context.Context, req alarms.CreateRequest) (*security.Alarm, error)
}

// Subscriber registers topic handlers.
type Subscriber interface {
	// Subscribe routes messages matching pattern to handler.
	Subscribe(pattern string, handler mqtt.MessageHandler) error
}

// Pipeline processes security events and status heartbeats.
type Pipeline struct {
	// nodes is the registry.
	nodes NodeRegistry
	// arming answers armed checks.
	arming ArmChecker
	// alarms creates alarms.
	alarms AlarmCreator
	// policy decides which classes alarm and which bypass arming.
	policy *security.Policy
	// autoRegister creates unknown nodes on first contact.
	autoRegister bool
	// now returns the current time.
	now func() time.Time
}

// NewPipeline wires the pipeline. A nil policy uses the defaults.
func NewPipeline(
	nodes NodeRegistry,
	arming ArmChecker,
	creator AlarmCreator,
	policy *security.Policy,
	autoRegister bool,
) *Pipeline {
	if policy == nil {
		policy = security.DefaultPolicy()
	}

	return &Pipeline{
		nodes:        nodes,
		arming:       arming,
		alarms:       creator,
		policy:       policy,
		autoRegister: autoRegister,
		now:          time.Now,
	}
}

// Subscribe registers the pipeline handlers for the given topic patterns.
func (p *Pipeline) Subscribe(sub Subscriber, securityTopic, statusTopic string) error {
	if err := sub.Subscribe(securityTopic, p.HandleSecurityEvent); err != nil {
		return err
	}

	return sub.Subscribe(statusTopic, p.HandleStatus)
}

// HandleSecurityEvent records the detection and creates an alarm when the
// class is alarming and the node is armed (or the class bypasses arming).
func (p *Pipeline) HandleSecurityEvent(ctx context.Context, topic string, payload []byte) error {
	_, err := p.ProcessSecurityEvent(ctx, topic, payload)

	return err
}

// ProcessSecurityEvent is HandleSecurityEvent returning the created alarm,
// or nil when the event was filtered out.
func (p *Pipeline) ProcessSecurityEvent(ctx context.Context, topic string, payload []byte) (*security.Alarm, error) {
	var event securityEvent
	if err := decode(payload, &event); err != nil {
		return nil, err
	}

	if event.NodeID == "" {
		return nil, fmt.Errorf("%w on %s", errMissingNodeID, topic)
	}

	ctx = logger.WithKV(ctx, "node_id", event.NodeID)
	now := p.now()

	hb := registry.Heartbeat{NodeID: event.NodeID, At: now}
	if err := p.touch(ctx, event.NodeID, security.NodeTypeSecurity, hb); err != nil {
		return nil, err
	}

	classification, detected := parseClassification(event.Classification)
	if !detected {
		logger.Debug(ctx, "Security event without detection")

		return nil, nil
	}

	if !p.policy.Alarming(classification) {
		logger.InfoKV(ctx, "Security event logged without alarm", "classification", classification)

		return nil, nil
	}

	if !p.policy.Bypasses(classification) && !p.arming.IsNodeArmed(ctx, event.NodeID) {
		logger.InfoKV(ctx, "Security event suppressed on disarmed node", "classification", classification)

		return nil, nil
	}

	req := alarms.CreateRequest{
		NodeID:         event.NodeID,
		Classification: classification,
		TriggeredAt:    parseTimestamp(event.Timestamp, now),
	}

	if priority, ok := security.ParsePriority(event.Priority); ok {
		req.Priority = priority
	}

	alarm, err := p.alarms.Create(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("create alarm: %w", err)
	}

	logger.WarnKV(ctx, "Alarm raised",
		"alarm_id", alarm.ID,
		"classification", alarm.Classification,
		"priority", p.policy.Label(alarm.Priority))

	return alarm, nil
}

// HandleStatus records a heartbeat.
func (p *Pipeline) HandleStatus(ctx context.Context, topic string, payload []byte) error {
	var report statusReport
	if err := decode(payload, &report); err != nil {
		return err
	}

	if report.NodeID == "" {
		return fmt.Errorf("%w on %s", errMissingNodeID, topic)
	}

	nodeType, ok := security.ParseNodeType(report.Type)
	if !ok {
		nodeType = security.NodeTypeAmbient
	}

	rssi := report.RSSI
	if rssi == nil {
		rssi = report.Signal
	}

	hb := registry.Heartbeat{
		NodeID: report.NodeID,
		Telemetry: security.Telemetry{
			BatteryLevel:   report.Battery,
			SignalStrength: rssi,
			Firmware:       report.Firmware,
			UptimeSeconds:  report.Uptime,
		},
		At: p.now(),
	}

	return p.touch(logger.WithKV(ctx, "node_id", report.NodeID), report.NodeID, nodeType, hb)
}

// touch records a heartbeat, registering the node first when it is unknown
// and auto-registration is on.
func (p *Pipeline) touch(ctx context.Context, nodeID string, nodeType security.NodeType, hb registry.Heartbeat) error {
	_, err := p.nodes.GetNode(ctx, nodeID)

	switch {
	case err == nil:
	case errors.Is(err, security.ErrNotFound) && p.autoRegister:
		if _, err = p.nodes.RegisterNode(ctx, nodeID, defaultName(nodeID, nodeType), nodeType); err != nil {
			return fmt.Errorf("auto-register node: %w", err)
		}

		logger.InfoKV(ctx, "Unknown node registered from broker traffic", "node_type", nodeType)
	default:
		return err
	}

	if _, err = p.nodes.RecordHeartbeat(ctx, hb); err != nil {
		return fmt.Errorf("record heartbeat: %w", err)
	}

	return nil
}

func defaultName(nodeID string, nodeType security.NodeType) string {
	switch nodeType {
	case security.NodeTypeSecurity:
		return "Security node " + nodeID
	case security.NodeTypeGateway:
		return "Gateway " + nodeID
	default:
		return "Node " + nodeID
	}
}
