package security

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	domain "github.com/oshokin/agrisecure/internal/domain/security"
	"github.com/oshokin/agrisecure/internal/logger"
	pb "github.com/oshokin/agrisecure/internal/pb/v1"
	"github.com/oshokin/agrisecure/internal/service/alarms"
	"github.com/oshokin/agrisecure/internal/service/stats"
)

// ArmingService is the arming controller surface used by the transport.
type ArmingService interface {
	CurrentArmState(ctx context.Context) *domain.ArmState
	History(ctx context.Context, limit int) []*domain.ArmState
	SetArmState(
		ctx context.Context,
		mode domain.ArmMode,
		nodeIDs []string,
		notes string,
		actor *domain.Actor,
	) (*domain.ArmState, error)
	ArmAll(ctx context.Context, mode domain.ArmMode, notes string, actor *domain.Actor) (*domain.ArmState, error)
	ArmZone(ctx context.Context, zoneID, notes string, actor *domain.Actor) (*domain.ArmState, error)
	DisarmZone(ctx context.Context, zoneID, notes string, actor *domain.Actor) (*domain.ArmState, error)
	AnnotateNodes(ctx context.Context, nodes []*domain.Node)
	AnnotateZones(ctx context.Context, zones []*domain.Zone)
}

// AlarmService is the alarm manager surface used by the transport.
type AlarmService interface {
	Get(ctx context.Context, id string) (*domain.Alarm, error)
	List(ctx context.Context, filter alarms.Filter) []*domain.Alarm
	Acknowledge(ctx context.Context, id string, actor *domain.Actor, notes string) (*domain.Alarm, error)
	Resolve(ctx context.Context, id string, actor *domain.Actor, notes string) (*domain.Alarm, error)
	MarkFalsePositive(ctx context.Context, id string, actor *domain.Actor, notes string) (*domain.Alarm, error)
}

// RegistryService is the registry surface used by the transport.
type RegistryService interface {
	ListNodes(ctx context.Context) []*domain.Node
	ListSecurityNodes(ctx context.Context) []*domain.Node
	ListZones(ctx context.Context) []*domain.Zone
}

// StatsService is the statistics surface used by the transport.
type StatsService interface {
	Summarize(ctx context.Context, windowDays int) (*stats.Summary, error)
}

// Server implements pb.SecurityServiceServer.
type Server struct {
	// arming owns the arm state.
	arming ArmingService
	// alarms owns alarm records.
	alarms AlarmService
	// registry lists nodes and zones.
	registry RegistryService
	// stats computes summaries.
	stats StatsService
	// policy renders priority labels.
	policy *domain.Policy
}

var _ pb.SecurityServiceServer = (*Server)(nil)

// NewServer wires the services into a gRPC handler. A nil policy uses the
// default labels.
func NewServer(
	arming ArmingService,
	alarmService AlarmService,
	registry RegistryService,
	statsService StatsService,
	policy *domain.Policy,
) *Server {
	if policy == nil {
		policy = domain.DefaultPolicy()
	}

	return &Server{
		arming:   arming,
		alarms:   alarmService,
		registry: registry,
		stats:    statsService,
		policy:   policy,
	}
}

// GetArmState returns the current arm state.
func (s *Server) GetArmState(ctx context.Context, _ *pb.GetArmStateRequest) (*pb.ArmState, error) {
	return toProtoArmState(s.arming.CurrentArmState(ctx)), nil
}

// ListArmHistory returns the latest arm states, newest first.
func (s *Server) ListArmHistory(ctx context.Context, req *pb.ListArmHistoryRequest) (*pb.ArmStateList, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}

	if req.Limit < 0 {
		return nil, status.Error(codes.InvalidArgument, "limit must not be negative")
	}

	history := s.arming.History(ctx, req.Limit)

	result := &pb.ArmStateList{States: make([]*pb.ArmState, 0, len(history))}
	for _, state := range history {
		result.States = append(result.States, toProtoArmState(state))
	}

	return result, nil
}

// SetArmState replaces the arm state.
func (s *Server) SetArmState(ctx context.Context, req *pb.SetArmStateRequest) (*pb.ArmState, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}

	actor, mode, err := parseArmRequest(req.Actor, req.Mode)
	if err != nil {
		return nil, err
	}

	state, err := s.arming.SetArmState(ctx, mode, req.NodeIDs, req.Notes, actor)
	if err != nil {
		return nil, toStatus(ctx, err)
	}

	return toProtoArmState(state), nil
}

// ArmAll arms every eligible node.
func (s *Server) ArmAll(ctx context.Context, req *pb.ArmAllRequest) (*pb.ArmState, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}

	actor, mode, err := parseArmRequest(req.Actor, req.Mode)
	if err != nil {
		return nil, err
	}

	state, err := s.arming.ArmAll(ctx, mode, req.Notes, actor)
	if err != nil {
		return nil, toStatus(ctx, err)
	}

	return toProtoArmState(state), nil
}

// ArmZone folds a zone into the armed set.
func (s *Server) ArmZone(ctx context.Context, req *pb.ZoneArmRequest) (*pb.ArmState, error) {
	return s.zoneAction(ctx, req, s.arming.ArmZone)
}

// DisarmZone folds a zone out of the armed set.
func (s *Server) DisarmZone(ctx context.Context, req *pb.ZoneArmRequest) (*pb.ArmState, error) {
	return s.zoneAction(ctx, req, s.arming.DisarmZone)
}

// ListNodes returns the registered nodes with their armed flag.
func (s *Server) ListNodes(ctx context.Context, req *pb.ListNodesRequest) (*pb.NodeList, error) {
	var nodes []*domain.Node
	if req != nil && req.SecurityOnly {
		nodes = s.registry.ListSecurityNodes(ctx)
	} else {
		nodes = s.registry.ListNodes(ctx)
	}

	s.arming.AnnotateNodes(ctx, nodes)

	result := &pb.NodeList{Nodes: make([]*pb.Node, 0, len(nodes))}
	for _, node := range nodes {
		result.Nodes = append(result.Nodes, toProtoNode(node))
	}

	return result, nil
}

// ListZones returns the zones with their armed flag.
func (s *Server) ListZones(ctx context.Context, _ *pb.ListZonesRequest) (*pb.ZoneList, error) {
	zones := s.registry.ListZones(ctx)
	s.arming.AnnotateZones(ctx, zones)

	result := &pb.ZoneList{Zones: make([]*pb.Zone, 0, len(zones))}
	for _, zone := range zones {
		result.Zones = append(result.Zones, toProtoZone(zone))
	}

	return result, nil
}

// ListAlarms returns the alarms matching the filter.
func (s *Server) ListAlarms(ctx context.Context, req *pb.ListAlarmsRequest) (*pb.AlarmList, error) {
	if req == nil {
		req = new(pb.ListAlarmsRequest)
	}

	filter, err := toFilter(req)
	if err != nil {
		return nil, err
	}

	list := s.alarms.List(ctx, filter)

	result := &pb.AlarmList{Alarms: make([]*pb.Alarm, 0, len(list))}
	for _, alarm := range list {
		result.Alarms = append(result.Alarms, s.toProtoAlarm(alarm))
	}

	return result, nil
}

// GetAlarm returns one alarm.
func (s *Server) GetAlarm(ctx context.Context, req *pb.GetAlarmRequest) (*pb.Alarm, error) {
	if req == nil || req.ID == "" {
		return nil, status.Error(codes.InvalidArgument, "alarm id is required")
	}

	alarm, err := s.alarms.Get(ctx, req.ID)
	if err != nil {
		return nil, toStatus(ctx, err)
	}

	return s.toProtoAlarm(alarm), nil
}

// AcknowledgeAlarm moves an active alarm to acknowledged.
func (s *Server) AcknowledgeAlarm(ctx context.Context, req *pb.AlarmActionRequest) (*pb.Alarm, error) {
	return s.alarmAction(ctx, req, s.alarms.Acknowledge)
}

// ResolveAlarm moves an open alarm to resolved.
func (s *Server) ResolveAlarm(ctx context.Context, req *pb.AlarmActionRequest) (*pb.Alarm, error) {
	return s.alarmAction(ctx, req, s.alarms.Resolve)
}

// MarkFalsePositive moves an open alarm to false_positive.
func (s *Server) MarkFalsePositive(ctx context.Context, req *pb.AlarmActionRequest) (*pb.Alarm, error) {
	return s.alarmAction(ctx, req, s.alarms.MarkFalsePositive)
}

// GetStatistics returns the alarm summary.
func (s *Server) GetStatistics(ctx context.Context, req *pb.GetStatisticsRequest) (*pb.Statistics, error) {
	windowDays := 0
	if req != nil {
		windowDays = req.WindowDays
	}

	summary, err := s.stats.Summarize(ctx, windowDays)
	if err != nil {
		return nil, toStatus(ctx, err)
	}

	return toProtoStatistics(summary), nil
}

func (s *Server) zoneAction(
	ctx context.Context,
	req *pb.ZoneArmRequest,
	action func(context.Context, string, string, *domain.Actor) (*domain.ArmState, error),
) (*pb.ArmState, error) {
	if req == nil || req.ZoneID == "" {
		return nil, status.Error(codes.InvalidArgument, "zone id is required")
	}

	actor, err := requireActor(req.Actor)
	if err != nil {
		return nil, err
	}

	state, err := action(ctx, req.ZoneID, req.Notes, actor)
	if err != nil {
		return nil, toStatus(ctx, err)
	}

	return toProtoArmState(state), nil
}

func (s *Server) alarmAction(
	ctx context.Context,
	req *pb.AlarmActionRequest,
	action func(context.Context, string, *domain.Actor, string) (*domain.Alarm, error),
) (*pb.Alarm, error) {
	if req == nil || req.ID == "" {
		return nil, status.Error(codes.InvalidArgument, "alarm id is required")
	}

	actor, err := requireActor(req.Actor)
	if err != nil {
		return nil, err
	}

	alarm, err := action(ctx, req.ID, actor, req.Notes)
	if err != nil {
		return nil, toStatus(ctx, err)
	}

	return s.toProtoAlarm(alarm), nil
}

func parseArmRequest(actor *pb.SystemActor, rawMode string) (*domain.Actor, domain.ArmMode, error) {
	domainActor, err := requireActor(actor)
	if err != nil {
		return nil, "", err
	}

	mode, ok := domain.ParseArmMode(rawMode)
	if !ok {
		return nil, "", status.Errorf(codes.InvalidArgument, "unknown arm mode %q", rawMode)
	}

	return domainActor, mode, nil
}

func requireActor(actor *pb.SystemActor) (*domain.Actor, error) {
	if actor.GetUsername() == "" {
		return nil, status.Error(codes.InvalidArgument, "actor is required")
	}

	return toDomainActor(actor), nil
}

// toStatus maps domain errors to gRPC status codes.
func toStatus(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, domain.ErrInvalidNodeReference), errors.Is(err, domain.ErrInvalidArgument):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, domain.ErrInvalidTransition), errors.Is(err, domain.ErrNoActiveMode):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return status.FromContextError(err).Err()
	default:
		logger.ErrorKV(ctx, "Request failed", "error", err)

		return status.Error(codes.Internal, "internal error")
	}
}
