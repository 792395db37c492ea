package registry

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/oshokin/agrisecure/internal/domain/security"
	"github.com/oshokin/agrisecure/internal/logger"
	"github.com/oshokin/agrisecure/internal/repository"
)

// HealthThresholds drive the derived node status.
type HealthThresholds struct {
	// WarningAfter marks a node warning when its heartbeat is older.
	WarningAfter time.Duration
	// OfflineAfter marks a node offline when its heartbeat is older.
	OfflineAfter time.Duration
	// CriticalBattery marks a node warning at or below this charge.
	CriticalBattery int
}

// DefaultHealthThresholds mirror the gateway firmware defaults.
func DefaultHealthThresholds() HealthThresholds {
	return HealthThresholds{
		WarningAfter:    time.Hour,
		OfflineAfter:    2 * time.Hour,
		CriticalBattery: 10,
	}
}

// Heartbeat is a telemetry report from a node.
type Heartbeat struct {
	// NodeID identifies the reporting node.
	NodeID string
	// Telemetry carries the reported metrics; nil pointers keep old values.
	Telemetry security.Telemetry
	// At is when the heartbeat was received.
	At time.Time
}

var (
	// errEmptyNodeID is returned when a node without id is registered.
	errEmptyNodeID = errors.New("node id is required")
	// errEmptyZoneID is returned when a zone without id is registered.
	errEmptyZoneID = errors.New("zone id is required")
	// errUnknownNodeType is returned when a node type is not recognized.
	errUnknownNodeType = errors.New("unknown node type")
)

// Registry holds nodes and zones in memory, backed by a repository.
type Registry struct {
	// repo persists nodes and zones; nil keeps everything in memory.
	repo repository.RegistryRepository
	// thresholds drive RefreshStatuses.
	thresholds HealthThresholds
	// now returns the current time.
	now func() time.Time

	// nodes indexes nodes by id.
	nodes map[string]*security.Node
	// zones indexes zones by id.
	zones map[string]*security.Zone
	// mu serializes writes and protects the indexes.
	mu sync.RWMutex
}

// Option configures a Registry.
type Option func(*Registry)

// WithThresholds overrides the health thresholds.
func WithThresholds(th HealthThresholds) Option {
	return func(r *Registry) {
		r.thresholds = th
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}

// New creates a registry and loads persisted nodes and zones.
func New(ctx context.Context, repo repository.RegistryRepository, opts ...Option) (*Registry, error) {
	r := &Registry{
		repo:       repo,
		thresholds: DefaultHealthThresholds(),
		now:        time.Now,
		nodes:      make(map[string]*security.Node),
		zones:      make(map[string]*security.Zone),
	}

	for _, opt := range opts {
		opt(r)
	}

	if repo == nil {
		return r, nil
	}

	nodes, err := repo.LoadNodes(ctx)
	if err != nil {
		return nil, fmt.Errorf("load nodes: %w", err)
	}

	for _, node := range nodes {
		r.nodes[node.ID] = node
	}

	zones, err := repo.LoadZones(ctx)
	if err != nil {
		return nil, fmt.Errorf("load zones: %w", err)
	}

	for _, zone := range zones {
		r.zones[zone.ID] = zone
	}

	logger.InfoKV(ctx, "Registry loaded", "nodes", len(r.nodes), "zones", len(r.zones))

	return r, nil
}

// GetNode returns the node with the given id.
func (r *Registry) GetNode(_ context.Context, nodeID string) (*security.Node, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	node, ok := r.nodes[nodeID]
	if !ok {
		return nil, fmt.Errorf("%w: node %q", security.ErrNotFound, nodeID)
	}

	return node.Clone(), nil
}

// ListNodes returns every node ordered by id.
func (r *Registry) ListNodes(_ context.Context) []*security.Node {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.collectNodes(func(*security.Node) bool { return true })
}

// ListSecurityNodes returns the security nodes ordered by id.
func (r *Registry) ListSecurityNodes(_ context.Context) []*security.Node {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.collectNodes(func(n *security.Node) bool { return n.Type == security.NodeTypeSecurity })
}

// ListGateways returns the active gateways ordered by id.
func (r *Registry) ListGateways(_ context.Context) []*security.Node {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.collectNodes(func(n *security.Node) bool { return n.Active && n.Type == security.NodeTypeGateway })
}

// EligibleNodeIDs returns the ids of active nodes whose type is eligible.
func (r *Registry) EligibleNodeIDs(_ context.Context, types []security.NodeType) map[string]struct{} {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make(map[string]struct{})

	for id, node := range r.nodes {
		if node.Active && slices.Contains(types, node.Type) {
			result[id] = struct{}{}
		}
	}

	return result
}

// GetZone returns the zone with the given id.
func (r *Registry) GetZone(_ context.Context, zoneID string) (*security.Zone, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	zone, ok := r.zones[zoneID]
	if !ok {
		return nil, fmt.Errorf("%w: zone %q", security.ErrNotFound, zoneID)
	}

	return zone.Clone(), nil
}

// ListZones returns every zone ordered by id.
func (r *Registry) ListZones(_ context.Context) []*security.Zone {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*security.Zone, 0, len(r.zones))
	for _, zone := range r.zones {
		result = append(result, zone.Clone())
	}

	security.SortZones(result)

	return result
}

// RegisterNode creates the node or updates its name and type, keeping
// telemetry and registration time. Registration reactivates a node.
func (r *Registry) RegisterNode(ctx context.Context, nodeID, name string, nodeType security.NodeType) (*security.Node, error) {
	if nodeID == "" {
		return nil, errEmptyNodeID
	}

	switch nodeType {
	case security.NodeTypeGateway, security.NodeTypeAmbient, security.NodeTypeSecurity:
	default:
		return nil, fmt.Errorf("%w: %q", errUnknownNodeType, nodeType)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	next := &security.Node{
		ID:           nodeID,
		Name:         name,
		Type:         nodeType,
		Status:       security.NodeStatusOffline,
		Active:       true,
		RegisteredAt: r.now(),
	}

	if existing, ok := r.nodes[nodeID]; ok {
		next = existing.Clone()
		next.Type = nodeType
		next.Active = true

		if name != "" {
			next.Name = name
		}
	}

	if err := r.commitNode(ctx, next); err != nil {
		return nil, err
	}

	logger.InfoKV(ctx, "Node registered", "node_id", nodeID, "node_type", nodeType)

	return next.Clone(), nil
}

// DeactivateNode marks the node inactive. Nodes are never deleted.
func (r *Registry) DeactivateNode(ctx context.Context, nodeID string) (*security.Node, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.nodes[nodeID]
	if !ok {
		return nil, fmt.Errorf("%w: node %q", security.ErrNotFound, nodeID)
	}

	next := existing.Clone()
	next.Active = false

	if err := r.commitNode(ctx, next); err != nil {
		return nil, err
	}

	logger.InfoKV(ctx, "Node deactivated", "node_id", nodeID)

	return next.Clone(), nil
}

// RecordHeartbeat stores telemetry, bumps last_seen and marks the node online
// (or warning on a critical battery).
func (r *Registry) RecordHeartbeat(ctx context.Context, hb Heartbeat) (*security.Node, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.nodes[hb.NodeID]
	if !ok {
		return nil, fmt.Errorf("%w: node %q", security.ErrNotFound, hb.NodeID)
	}

	at := hb.At
	if at.IsZero() {
		at = r.now()
	}

	next := existing.Clone()
	next.LastSeen = &at

	if hb.Telemetry.BatteryLevel != nil {
		next.Telemetry.BatteryLevel = hb.Telemetry.Clone().BatteryLevel
	}

	if hb.Telemetry.SignalStrength != nil {
		next.Telemetry.SignalStrength = hb.Telemetry.Clone().SignalStrength
	}

	if hb.Telemetry.Firmware != "" {
		next.Telemetry.Firmware = hb.Telemetry.Firmware
	}

	if hb.Telemetry.UptimeSeconds > 0 {
		next.Telemetry.UptimeSeconds = hb.Telemetry.UptimeSeconds
	}

	next.Status = r.deriveStatus(next, at)

	if err := r.commitNode(ctx, next); err != nil {
		return nil, err
	}

	logger.DebugKV(ctx, "Heartbeat recorded", "node_id", hb.NodeID, "status", next.Status)

	return next.Clone(), nil
}

// RefreshStatuses re-derives every node status at the given time and returns
// the nodes whose status changed.
func (r *Registry) RefreshStatuses(ctx context.Context, now time.Time) ([]*security.Node, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var changed []*security.Node

	for _, node := range r.nodes {
		status := r.deriveStatus(node, now)
		if status == node.Status {
			continue
		}

		next := node.Clone()
		next.Status = status

		if err := r.commitNode(ctx, next); err != nil {
			return changed, err
		}

		logger.InfoKV(ctx, "Node status changed", "node_id", node.ID, "status", status)

		changed = append(changed, next.Clone())
	}

	security.SortNodes(changed)

	return changed, nil
}

// RegisterZone creates or replaces a zone. Members must be known security nodes.
func (r *Registry) RegisterZone(ctx context.Context, zone *security.Zone) (*security.Zone, error) {
	if zone == nil || zone.ID == "" {
		return nil, errEmptyZoneID
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	next := zone.Clone()
	next.MemberNodeIDs = security.NormalizeIDs(zone.MemberNodeIDs)

	for _, id := range next.MemberNodeIDs {
		node, ok := r.nodes[id]
		if !ok {
			return nil, fmt.Errorf("%w: zone %q member %q", security.ErrNotFound, zone.ID, id)
		}

		if node.Type != security.NodeTypeSecurity {
			return nil, fmt.Errorf("%w: zone %q member %q is a %s node",
				security.ErrInvalidNodeReference, zone.ID, id, node.Type)
		}
	}

	if r.repo != nil {
		if err := r.repo.SaveZone(ctx, next); err != nil {
			return nil, fmt.Errorf("persist zone: %w", err)
		}
	}

	r.zones[next.ID] = next

	logger.InfoKV(ctx, "Zone registered", "zone_id", next.ID, "members", len(next.MemberNodeIDs))

	return next.Clone(), nil
}

// deriveStatus computes online/warning/offline from last_seen and battery.
func (r *Registry) deriveStatus(node *security.Node, now time.Time) security.NodeStatus {
	if node.LastSeen == nil {
		return security.NodeStatusOffline
	}

	age := now.Sub(*node.LastSeen)

	switch {
	case age > r.thresholds.OfflineAfter:
		return security.NodeStatusOffline
	case age > r.thresholds.WarningAfter:
		return security.NodeStatusWarning
	case node.Telemetry.BatteryLevel != nil && *node.Telemetry.BatteryLevel <= r.thresholds.CriticalBattery:
		return security.NodeStatusWarning
	default:
		return security.NodeStatusOnline
	}
}

// commitNode persists the node and then swaps it into the index.
// Callers must hold mu.
func (r *Registry) commitNode(ctx context.Context, node *security.Node) error {
	if r.repo != nil {
		if err := r.repo.SaveNode(ctx, node); err != nil {
			logger.ErrorKV(ctx, "Failed to persist node", "node_id", node.ID, "error", err)

			return fmt.Errorf("persist node: %w", err)
		}
	}

	r.nodes[node.ID] = node

	return nil
}

// collectNodes returns clones of the matching nodes ordered by id.
// Callers must hold mu.
func (r *Registry) collectNodes(match func(*security.Node) bool) []*security.Node {
	result := make([]*security.Node, 0, len(r.nodes))

	for _, node := range r.nodes {
		if match(node) {
			result = append(result, node.Clone())
		}
	}

	security.SortNodes(result)

	return result
}
