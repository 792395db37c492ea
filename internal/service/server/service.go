package server

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/oshokin/agrisecure/internal/config"
	"github.com/oshokin/agrisecure/internal/domain/security"
	"github.com/oshokin/agrisecure/internal/logger"
	"github.com/oshokin/agrisecure/internal/repository"
	"github.com/oshokin/agrisecure/internal/repository/file"
	"github.com/oshokin/agrisecure/internal/repository/postgres"
	"github.com/oshokin/agrisecure/internal/service/alarms"
	"github.com/oshokin/agrisecure/internal/service/arming"
	"github.com/oshokin/agrisecure/internal/service/ingest"
	"github.com/oshokin/agrisecure/internal/service/registry"
	"github.com/oshokin/agrisecure/internal/service/stats"
)

var (
	// errUnknownClassification is returned for unknown classifications in config.
	errUnknownClassification = errors.New("unknown classification")
	// errUnknownPriority is returned for unknown priorities in config.
	errUnknownPriority = errors.New("unknown priority")
	// errUnknownNodeType is returned for unknown node types in config.
	errUnknownNodeType = errors.New("unknown node type")
	// errUnknownArmMode is returned for unknown zone default modes in config.
	errUnknownArmMode = errors.New("unknown arm mode")
)

// engine bundles the services behind the gRPC server and the MQTT pipeline.
type engine struct {
	// policy is the effective policy built from config.
	policy *security.Policy
	// registry owns nodes and zones.
	registry *registry.Registry
	// arming owns the arm state.
	arming *arming.Controller
	// alarms owns alarm records.
	alarms *alarms.Manager
	// stats summarizes alarms.
	stats *stats.Aggregator
	// pipeline turns broker messages into alarms and heartbeats.
	pipeline *ingest.Pipeline
}

// newEngine loads every service from the store. A nil publisher disables arm
// command publication.
func newEngine(
	ctx context.Context,
	settings *config.Config,
	store repository.Store,
	publisher ingest.JSONPublisher,
) (*engine, error) {
	policy, err := buildPolicy(settings)
	if err != nil {
		return nil, err
	}

	reg, err := registry.New(ctx, store, registry.WithThresholds(registry.HealthThresholds{
		WarningAfter:    settings.Nodes.WarningAfter,
		OfflineAfter:    settings.Nodes.OfflineAfter,
		CriticalBattery: settings.Nodes.CriticalBattery,
	}))
	if err != nil {
		return nil, fmt.Errorf("load registry: %w", err)
	}

	if err := seed(ctx, reg, &settings.Seed); err != nil {
		return nil, err
	}

	armingOpts := []arming.Option{
		arming.WithEligibleTypes(policy.EligibleNodeTypes),
		arming.WithZonePolicy(security.ZoneArmedPolicy(settings.Arming.ZoneArmedPolicy)),
	}

	if settings.Arming.ZoneDefaultMode != "" {
		mode, ok := security.ParseArmMode(settings.Arming.ZoneDefaultMode)
		if !ok || mode == security.ArmModeDisarmed {
			return nil, fmt.Errorf("%w: zone default mode %q", errUnknownArmMode, settings.Arming.ZoneDefaultMode)
		}

		armingOpts = append(armingOpts, arming.WithZoneDefaultMode(mode))
	}

	if publisher != nil {
		armingOpts = append(armingOpts,
			arming.WithNotifier(ingest.NewCommandPublisher(publisher, reg, settings.MQTT.CommandTopic)))
	}

	controller, err := arming.New(ctx, reg, store, armingOpts...)
	if err != nil {
		return nil, fmt.Errorf("load arm history: %w", err)
	}

	manager, err := alarms.New(ctx, store, alarms.WithPolicy(policy))
	if err != nil {
		return nil, fmt.Errorf("load alarms: %w", err)
	}

	autoRegister := settings.MQTT.AutoRegister == nil || *settings.MQTT.AutoRegister

	return &engine{
		policy:   policy,
		registry: reg,
		arming:   controller,
		alarms:   manager,
		stats:    stats.NewAggregator(manager, settings.Stats.WindowDays, nil),
		pipeline: ingest.NewPipeline(reg, controller, manager, policy, autoRegister),
	}, nil
}

// refreshLoop re-derives node statuses until ctx is done.
func (e *engine) refreshLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			changed, err := e.registry.RefreshStatuses(ctx, now)
			if err != nil {
				logger.ErrorKV(ctx, "Failed to refresh node statuses", "error", err)

				continue
			}

			if len(changed) > 0 {
				logger.DebugKV(ctx, "Node statuses refreshed", "changed", len(changed))
			}
		}
	}
}

// openStore opens the configured persistence backend.
func openStore(ctx context.Context, storage *config.StorageConfig) (repository.Store, error) {
	switch storage.Driver {
	case config.DriverPostgres:
		store, err := postgres.Open(ctx, storage.PostgresDSN, postgres.Options{
			MaxOpenConns:    storage.MaxOpenConns,
			MaxIdleConns:    storage.MaxIdleConns,
			ConnMaxLifetime: storage.ConnMaxLifetime,
		})
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}

		return store, nil
	default:
		return file.NewStore(storage.Path), nil
	}
}

// buildPolicy patches the default policy with the configured tables.
func buildPolicy(settings *config.Config) (*security.Policy, error) {
	policy := security.DefaultPolicy()

	if len(settings.Alarms.PriorityPolicy) > 0 {
		overrides := make(map[security.Classification]security.Priority, len(settings.Alarms.PriorityPolicy))

		for rawClass, rawPriority := range settings.Alarms.PriorityPolicy {
			class, ok := security.ParseClassification(rawClass)
			if !ok {
				return nil, fmt.Errorf("%w: %q", errUnknownClassification, rawClass)
			}

			priority, ok := security.ParsePriority(rawPriority)
			if !ok {
				return nil, fmt.Errorf("%w: %q", errUnknownPriority, rawPriority)
			}

			overrides[class] = priority
		}

		policy = policy.WithPriorityOverrides(overrides)
	}

	if len(settings.Alarms.BypassClassifications) > 0 {
		classes, err := parseClassifications(settings.Alarms.BypassClassifications)
		if err != nil {
			return nil, err
		}

		policy.BypassClassifications = classes
	}

	if len(settings.Alarms.AlarmingClassifications) > 0 {
		classes, err := parseClassifications(settings.Alarms.AlarmingClassifications)
		if err != nil {
			return nil, err
		}

		policy.AlarmingClassifications = classes
	}

	if len(settings.Arming.EligibleNodeTypes) > 0 {
		types := make([]security.NodeType, 0, len(settings.Arming.EligibleNodeTypes))

		for _, raw := range settings.Arming.EligibleNodeTypes {
			nodeType, ok := security.ParseNodeType(raw)
			if !ok {
				return nil, fmt.Errorf("%w: %q", errUnknownNodeType, raw)
			}

			types = append(types, nodeType)
		}

		policy.EligibleNodeTypes = types
	}

	return policy, nil
}

func parseClassifications(raw []string) ([]security.Classification, error) {
	result := make([]security.Classification, 0, len(raw))

	for _, s := range raw {
		class, ok := security.ParseClassification(s)
		if !ok {
			return nil, fmt.Errorf("%w: %q", errUnknownClassification, s)
		}

		result = append(result, class)
	}

	return result, nil
}

// seed registers the configured nodes, then the zones that reference them.
func seed(ctx context.Context, reg *registry.Registry, cfg *config.SeedConfig) error {
	for _, n := range cfg.Nodes {
		nodeType, ok := security.ParseNodeType(n.Type)
		if !ok {
			return fmt.Errorf("seed node %s: %w: %q", n.ID, errUnknownNodeType, n.Type)
		}

		if _, err := reg.RegisterNode(ctx, n.ID, n.Name, nodeType); err != nil {
			return fmt.Errorf("seed node %s: %w", n.ID, err)
		}
	}

	for _, z := range cfg.Zones {
		zone := &security.Zone{
			ID:            z.ID,
			Name:          z.Name,
			Description:   z.Description,
			MemberNodeIDs: z.Members,
		}

		if _, err := reg.RegisterZone(ctx, zone); err != nil {
			return fmt.Errorf("seed zone %s: %w", z.ID, err)
		}
	}

	if len(cfg.Nodes) > 0 || len(cfg.Zones) > 0 {
		logger.InfoKV(ctx, "Registry seeded", "nodes", len(cfg.Nodes), "zones", len(cfg.Zones))
	}

	return nil
}
