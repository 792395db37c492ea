package arming

import (
	"cmp"
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/oshokin/agrisecure/internal/domain/security"
	"github.com/oshokin/agrisecure/internal/logger"
	"github.com/oshokin/agrisecure/internal/repository"
)

// NodeDirectory is the view of the registry the controller needs.
type NodeDirectory interface {
	// GetNode returns a node or an ErrNotFound-wrapped error.
	GetNode(ctx context.Context, nodeID string) (*security.Node, error)
	// GetZone returns a zone or an ErrNotFound-wrapped error.
	GetZone(ctx context.Context, zoneID string) (*security.Zone, error)
	// EligibleNodeIDs returns the active node ids of the given types.
	EligibleNodeIDs(ctx context.Context, types []security.NodeType) map[string]struct{}
}

// Notifier is told about every committed transition.
type Notifier interface {
	// ArmStateChanged is called after the state became current.
	ArmStateChanged(ctx context.Context, state *security.ArmState) error
}

// Controller serializes arming changes and keeps the history in memory.
type Controller struct {
	// nodes resolves node and zone references.
	nodes NodeDirectory
	// repo persists the history; nil keeps it in memory only.
	repo repository.ArmStateRepository
	// eligibleTypes are the node types that can be armed.
	eligibleTypes []security.NodeType
	// zoneDefaultMode is used by ArmZone while disarmed; empty rejects.
	zoneDefaultMode security.ArmMode
	// zonePolicy decides when a zone counts as armed.
	zonePolicy security.ZoneArmedPolicy
	// notifier receives committed transitions.
	notifier Notifier
	// now returns the current time.
	now func() time.Time

	// history holds every entry, oldest first.
	history []*security.ArmState
	// mu serializes transitions and protects history.
	mu sync.RWMutex

	// notified is the last version handed to the notifier.
	notified int64
	// notifyMu orders notifications and protects notified.
	notifyMu sync.Mutex
}

// Option configures a Controller.
type Option func(*Controller)

// WithEligibleTypes overrides the node types that can be armed.
func WithEligibleTypes(types []security.NodeType) Option {
	return func(c *Controller) {
		if len(types) > 0 {
			c.eligibleTypes = slices.Clone(types)
		}
	}
}

// WithZoneDefaultMode lets ArmZone arm a disarmed installation under mode.
func WithZoneDefaultMode(mode security.ArmMode) Option {
	return func(c *Controller) {
		c.zoneDefaultMode = mode
	}
}

// WithZonePolicy sets how zone armed status is derived.
func WithZonePolicy(policy security.ZoneArmedPolicy) Option {
	return func(c *Controller) {
		if policy != "" {
			c.zonePolicy = policy
		}
	}
}

// WithNotifier registers a transition listener.
func WithNotifier(n Notifier) Option {
	return func(c *Controller) {
		c.notifier = n
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		if now != nil {
			c.now = now
		}
	}
}

// New creates a controller and restores its history from the repository.
func New(ctx context.Context, nodes NodeDirectory, repo repository.ArmStateRepository, opts ...Option) (*Controller, error) {
	c := &Controller{
		nodes:         nodes,
		repo:          repo,
		eligibleTypes: []security.NodeType{security.NodeTypeSecurity},
		zonePolicy:    security.ZoneArmedAll,
		now:           time.Now,
	}

	for _, opt := range opts {
		opt(c)
	}

	if repo == nil {
		return c, nil
	}

	history, err := repo.LoadArmHistory(ctx)
	if err != nil {
		return nil, fmt.Errorf("load arm history: %w", err)
	}

	slices.SortFunc(history, func(a, b *security.ArmState) int {
		return cmp.Compare(a.Version, b.Version)
	})

	c.history = history

	current := c.currentLocked()
	logger.InfoKV(ctx, "Arm history loaded",
		"entries", len(history),
		"mode", current.Mode,
		"armed_nodes", len(current.ArmedNodes))

	return c, nil
}

// CurrentArmState returns the latest entry or the disarmed default.
func (c *Controller) CurrentArmState(_ context.Context) *security.ArmState {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.currentLocked().Clone()
}

// History returns up to limit entries, newest first. A non-positive limit
// returns everything.
func (c *Controller) History(_ context.Context, limit int) []*security.ArmState {
	c.mu.RLock()
	defer c.mu.RUnlock()

	count := len(c.history)
	if limit > 0 && limit < count {
		count = limit
	}

	result := make([]*security.ArmState, 0, count)
	for i := len(c.history) - 1; i >= 0 && len(result) < count; i-- {
		result = append(result, c.history[i].Clone())
	}

	return result
}

// SetArmState replaces the arm state. Disarming clears the armed set and
// ignores nodeIDs; any other mode needs at least one eligible node.
func (c *Controller) SetArmState(
	ctx context.Context,
	mode security.ArmMode,
	nodeIDs []string,
	notes string,
	actor *security.Actor,
) (*security.ArmState, error) {
	armed := []string{}

	if mode != security.ArmModeDisarmed {
		if _, ok := security.ParseArmMode(string(mode)); !ok {
			return nil, fmt.Errorf("%w: unknown arm mode %q", security.ErrInvalidTransition, mode)
		}

		armed = security.NormalizeIDs(nodeIDs)
		if len(armed) == 0 {
			return nil, fmt.Errorf("%w: mode %q requires at least one node", security.ErrInvalidTransition, mode)
		}
	}

	return c.transition(ctx, func(*security.ArmState) (*security.ArmState, error) {
		if err := c.checkEligible(ctx, armed); err != nil {
			return nil, err
		}

		return &security.ArmState{
			Mode:       mode,
			ArmedNodes: armed,
			ChangedBy:  actor.Clone(),
			Source:     security.ArmSourceOperator,
			Notes:      notes,
		}, nil
	})
}

// ArmAll arms every eligible node under mode.
func (c *Controller) ArmAll(
	ctx context.Context,
	mode security.ArmMode,
	notes string,
	actor *security.Actor,
) (*security.ArmState, error) {
	if mode == security.ArmModeDisarmed {
		return c.SetArmState(ctx, mode, nil, notes, actor)
	}

	eligible := c.nodes.EligibleNodeIDs(ctx, c.eligibleTypes)
	if len(eligible) == 0 {
		return nil, fmt.Errorf("%w: no eligible nodes to arm", security.ErrInvalidNodeReference)
	}

	return c.SetArmState(ctx, mode, slices.Collect(maps.Keys(eligible)), notes, actor)
}

// ArmZone adds the zone's eligible members to the armed set.
func (c *Controller) ArmZone(
	ctx context.Context,
	zoneID, notes string,
	actor *security.Actor,
) (*security.ArmState, error) {
	return c.transition(ctx, func(current *security.ArmState) (*security.ArmState, error) {
		eligible, members, err := c.zoneMembers(ctx, zoneID)
		if err != nil {
			return nil, err
		}

		mode := current.Mode
		if mode == security.ArmModeDisarmed {
			if c.zoneDefaultMode == "" {
				return nil, fmt.Errorf("%w: arm a mode before arming zone %q", security.ErrNoActiveMode, zoneID)
			}

			mode = c.zoneDefaultMode
		}

		next := prune(append(slices.Clone(current.ArmedNodes), members...), eligible)

		if mode == current.Mode && slices.Equal(next, current.ArmedNodes) {
			return nil, nil
		}

		return &security.ArmState{
			Mode:       mode,
			ArmedNodes: next,
			ChangedBy:  actor.Clone(),
			Source:     security.ArmSourceZone,
			Notes:      notes,
		}, nil
	})
}

// DisarmZone removes the zone's members from the armed set. Emptying the set
// disarms the installation.
func (c *Controller) DisarmZone(
	ctx context.Context,
	zoneID, notes string,
	actor *security.Actor,
) (*security.ArmState, error) {
	return c.transition(ctx, func(current *security.ArmState) (*security.ArmState, error) {
		zone, err := c.nodes.GetZone(ctx, zoneID)
		if err != nil {
			return nil, err
		}

		if !current.IsArmed() {
			return nil, nil
		}

		remaining := slices.DeleteFunc(slices.Clone(current.ArmedNodes), func(id string) bool {
			return slices.Contains(zone.MemberNodeIDs, id)
		})

		next := prune(remaining, c.nodes.EligibleNodeIDs(ctx, c.eligibleTypes))
		if slices.Equal(next, current.ArmedNodes) {
			return nil, nil
		}

		mode := current.Mode
		if len(next) == 0 {
			mode = security.ArmModeDisarmed
		}

		return &security.ArmState{
			Mode:       mode,
			ArmedNodes: next,
			ChangedBy:  actor.Clone(),
			Source:     security.ArmSourceZone,
			Notes:      notes,
		}, nil
	})
}

// IsNodeArmed reports whether the node is in the current armed set.
func (c *Controller) IsNodeArmed(_ context.Context, nodeID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.currentLocked().HasNode(nodeID)
}

// ZoneArmed derives the zone's armed flag from the current armed set.
func (c *Controller) ZoneArmed(_ context.Context, zone *security.Zone) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return zone.ArmedUnder(c.currentLocked().ArmedSet(), c.zonePolicy)
}

// AnnotateNodes fills the derived IsArmed flag in place.
func (c *Controller) AnnotateNodes(_ context.Context, nodes []*security.Node) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	current := c.currentLocked()
	for _, node := range nodes {
		node.IsArmed = current.HasNode(node.ID)
	}
}

// AnnotateZones fills the derived Armed flag in place.
func (c *Controller) AnnotateZones(_ context.Context, zones []*security.Zone) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	armed := c.currentLocked().ArmedSet()
	for _, zone := range zones {
		zone.Armed = zone.ArmedUnder(armed, c.zonePolicy)
	}
}

// checkEligible verifies that every id names an active node of an eligible type.
func (c *Controller) checkEligible(ctx context.Context, nodeIDs []string) error {
	for _, id := range nodeIDs {
		node, err := c.nodes.GetNode(ctx, id)
		if err != nil {
			return fmt.Errorf("%w: %w", security.ErrInvalidNodeReference, err)
		}

		if !node.Active {
			return fmt.Errorf("%w: node %q is inactive", security.ErrInvalidNodeReference, id)
		}

		if !slices.Contains(c.eligibleTypes, node.Type) {
			return fmt.Errorf("%w: node %q is a %s node and cannot be armed",
				security.ErrInvalidNodeReference, id, node.Type)
		}
	}

	return nil
}

// zoneMembers resolves the eligible members of a zone.
func (c *Controller) zoneMembers(ctx context.Context, zoneID string) (map[string]struct{}, []string, error) {
	zone, err := c.nodes.GetZone(ctx, zoneID)
	if err != nil {
		return nil, nil, err
	}

	eligible := c.nodes.EligibleNodeIDs(ctx, c.eligibleTypes)

	members := prune(zone.MemberNodeIDs, eligible)
	if len(members) == 0 {
		return nil, nil, fmt.Errorf("%w: zone %q has no armable members", security.ErrInvalidNodeReference, zoneID)
	}

	return eligible, members, nil
}

// transition builds the next entry from the current one and commits it while
// holding mu, so registry checks and the append see the same state. A nil
// entry from build means nothing changes. The notifier runs after mu is
// released.
func (c *Controller) transition(
	ctx context.Context,
	build func(current *security.ArmState) (*security.ArmState, error),
) (*security.ArmState, error) {
	committed, changed, err := c.apply(ctx, build)
	if err != nil || !changed {
		return committed, err
	}

	c.notify(ctx, committed)

	return committed, nil
}

func (c *Controller) apply(
	ctx context.Context,
	build func(current *security.ArmState) (*security.ArmState, error),
) (*security.ArmState, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	current := c.currentLocked()

	next, err := build(current)
	if err != nil {
		return nil, false, err
	}

	if next == nil {
		return current.Clone(), false, nil
	}

	committed, err := c.commitLocked(ctx, next)
	if err != nil {
		return nil, false, err
	}

	return committed, true, nil
}

// commitLocked stamps, validates and persists the entry, then makes it current.
// Callers must hold mu.
func (c *Controller) commitLocked(ctx context.Context, next *security.ArmState) (*security.ArmState, error) {
	previous := c.currentLocked()

	next.Version = previous.Version + 1
	next.PreviousMode = previous.Mode
	next.ChangedAt = c.now()

	if next.ArmedNodes == nil {
		next.ArmedNodes = []string{}
	}

	if err := next.Validate(); err != nil {
		return nil, err
	}

	if c.repo != nil {
		if err := c.repo.AppendArmState(ctx, next); err != nil {
			logger.ErrorKV(ctx, "Failed to persist arm state", "version", next.Version, "error", err)

			return nil, fmt.Errorf("persist arm state: %w", err)
		}
	}

	c.history = append(c.history, next)

	logger.InfoKV(ctx, "Arm state changed",
		"version", next.Version,
		"mode", next.Mode,
		"previous_mode", next.PreviousMode,
		"armed_nodes", len(next.ArmedNodes),
		"source", next.Source,
		"actor", next.ChangedBy.String())

	return next.Clone(), nil
}

// notify hands a committed entry to the notifier. Entries older than the last
// notified version are dropped so listeners never step back in time.
func (c *Controller) notify(ctx context.Context, state *security.ArmState) {
	if c.notifier == nil {
		return
	}

	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()

	if state.Version <= c.notified {
		logger.DebugKV(ctx, "Skipping superseded arm state notification",
			"version", state.Version,
			"notified", c.notified)

		return
	}

	c.notified = state.Version

	if err := c.notifier.ArmStateChanged(ctx, state.Clone()); err != nil {
		logger.WarnKV(ctx, "Failed to notify arm state change", "version", state.Version, "error", err)
	}
}

// currentLocked returns the latest entry without copying it.
// Callers must hold mu.
func (c *Controller) currentLocked() *security.ArmState {
	if len(c.history) == 0 {
		return security.DisarmedState()
	}

	return c.history[len(c.history)-1]
}

// prune keeps the eligible ids and returns them sorted and unique.
func prune(ids []string, eligible map[string]struct{}) []string {
	result := make([]string, 0, len(ids))

	for _, id := range ids {
		if _, ok := eligible[id]; ok {
			result = append(result, id)
		}
	}

	slices.Sort(result)

	return slices.Compact(result)
}
