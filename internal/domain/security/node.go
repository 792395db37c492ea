package security

import (
	"slices"
	"strings"
	"time"
)

// NodeType is the hardware role of a node.
type NodeType string

const (
	// NodeTypeGateway is a mesh gateway with uplink connectivity.
	NodeTypeGateway NodeType = "gateway"
	// NodeTypeAmbient is a climate/soil sensor node.
	NodeTypeAmbient NodeType = "ambient"
	// NodeTypeSecurity is a PIR/tamper sensor node.
	NodeTypeSecurity NodeType = "security"
)

// ParseNodeType accepts both the long names and the short firmware codes
// (GW, AMB, SEC), case-insensitively.
func ParseNodeType(s string) (NodeType, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "gateway", "gw":
		return NodeTypeGateway, true
	case "ambient", "amb":
		return NodeTypeAmbient, true
	case "security", "sec":
		return NodeTypeSecurity, true
	default:
		return "", false
	}
}

// NodeStatus is the connectivity health of a node.
type NodeStatus string

const (
	// NodeStatusOnline means a recent heartbeat was received.
	NodeStatusOnline NodeStatus = "online"
	// NodeStatusOffline means no heartbeat within the offline threshold.
	NodeStatusOffline NodeStatus = "offline"
	// NodeStatusWarning means a stale heartbeat or a critical battery.
	NodeStatusWarning NodeStatus = "warning"
)

// Telemetry holds the last reported health metrics of a node.
type Telemetry struct {
	// BatteryLevel is the charge percentage (0-100); nil when unknown.
	BatteryLevel *int `json:"battery_level,omitempty"`
	// SignalStrength is the mesh RSSI in dBm; nil when unknown.
	SignalStrength *int `json:"signal_strength,omitempty"`
	// Firmware is the reported firmware version.
	Firmware string `json:"firmware,omitempty"`
	// UptimeSeconds is the time since the last reboot.
	UptimeSeconds int64 `json:"uptime_seconds,omitempty"`
}

// Clone returns a deep copy of the telemetry.
func (t Telemetry) Clone() Telemetry {
	cloned := t
	cloned.BatteryLevel = cloneInt(t.BatteryLevel)
	cloned.SignalStrength = cloneInt(t.SignalStrength)

	return cloned
}

// Node is a physical monitoring device known to the registry.
type Node struct {
	// ID is the unique node identifier (e.g. SEC-001).
	ID string `json:"node_id"`
	// Name is a human readable label.
	Name string `json:"name,omitempty"`
	// Type is the hardware role.
	Type NodeType `json:"node_type"`
	// Status is the connectivity health.
	Status NodeStatus `json:"status"`
	// Telemetry holds the latest heartbeat metrics.
	Telemetry Telemetry `json:"telemetry"`
	// LastSeen is the time of the latest heartbeat; nil if never seen.
	LastSeen *time.Time `json:"last_seen,omitempty"`
	// Active is false once the node is deactivated. Nodes are never deleted.
	Active bool `json:"active"`
	// RegisteredAt is when the node was first registered.
	RegisteredAt time.Time `json:"registered_at"`
	// IsArmed is derived from the current arm state on read and never persisted.
	IsArmed bool `json:"-"`
}

// Clone returns a deep copy of the node.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}

	cloned := *n
	cloned.Telemetry = n.Telemetry.Clone()

	if n.LastSeen != nil {
		lastSeen := *n.LastSeen
		cloned.LastSeen = &lastSeen
	}

	return &cloned
}

// SortNodes orders nodes by id.
func SortNodes(nodes []*Node) {
	slices.SortFunc(nodes, func(a, b *Node) int {
		return strings.Compare(a.ID, b.ID)
	})
}

func cloneInt(v *int) *int {
	if v == nil {
		return nil
	}

	cloned := *v

	return &cloned
}
