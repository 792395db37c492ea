package security

import (
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	domain "github.com/oshokin/agrisecure/internal/domain/security"
	pb "github.com/oshokin/agrisecure/internal/pb/v1"
	"github.com/oshokin/agrisecure/internal/service/alarms"
	"github.com/oshokin/agrisecure/internal/service/stats"
)

func toDomainActor(actor *pb.SystemActor) *domain.Actor {
	if actor == nil {
		return nil
	}

	return &domain.Actor{
		Username: actor.Username,
		Hostname: actor.Hostname,
	}
}

func toProtoActor(actor *domain.Actor) *pb.SystemActor {
	if actor == nil {
		return nil
	}

	return &pb.SystemActor{
		Username: actor.Username,
		Hostname: actor.Hostname,
	}
}

func toProtoArmState(state *domain.ArmState) *pb.ArmState {
	if state == nil {
		return &pb.ArmState{ArmedNodes: []string{}}
	}

	result := &pb.ArmState{
		Version:      state.Version,
		Mode:         string(state.Mode),
		PreviousMode: string(state.PreviousMode),
		ArmedNodes:   append([]string{}, state.ArmedNodes...),
		ChangedBy:    toProtoActor(state.ChangedBy),
		Source:       string(state.Source),
		Notes:        state.Notes,
	}

	if !state.ChangedAt.IsZero() {
		changedAt := state.ChangedAt
		result.ChangedAt = &changedAt
	}

	return result
}

func toProtoNode(node *domain.Node) *pb.Node {
	telemetry := node.Telemetry.Clone()

	return &pb.Node{
		ID:       node.ID,
		Name:     node.Name,
		Type:     string(node.Type),
		Status:   string(node.Status),
		Active:   node.Active,
		IsArmed:  node.IsArmed,
		LastSeen: node.LastSeen,
		Telemetry: &pb.Telemetry{
			BatteryLevel:   telemetry.BatteryLevel,
			SignalStrength: telemetry.SignalStrength,
			Firmware:       telemetry.Firmware,
			UptimeSeconds:  telemetry.UptimeSeconds,
		},
	}
}

func toProtoZone(zone *domain.Zone) *pb.Zone {
	return &pb.Zone{
		ID:            zone.ID,
		Name:          zone.Name,
		Description:   zone.Description,
		MemberNodeIDs: append([]string{}, zone.MemberNodeIDs...),
		Armed:         zone.Armed,
	}
}

func (s *Server) toProtoAlarm(alarm *domain.Alarm) *pb.Alarm {
	result := &pb.Alarm{
		ID:             alarm.ID,
		NodeID:         alarm.NodeID,
		Classification: string(alarm.Classification),
		Priority:       string(alarm.Priority),
		PriorityLabel:  s.policy.Label(alarm.Priority),
		Status:         string(alarm.Status),
		TriggeredAt:    alarm.TriggeredAt,
		AcknowledgedAt: alarm.AcknowledgedAt,
		AcknowledgedBy: toProtoActor(alarm.AcknowledgedBy),
		ResolvedAt:     alarm.ResolvedAt,
		ResolvedBy:     toProtoActor(alarm.ResolvedBy),
		Notes:          alarm.Notes,
		Version:        alarm.Version,
	}

	for _, tr := range alarm.History {
		result.History = append(result.History, &pb.AlarmTransition{
			From:  string(tr.From),
			To:    string(tr.To),
			At:    tr.At,
			Actor: toProtoActor(tr.Actor),
			Notes: tr.Notes,
		})
	}

	return result
}

func toFilter(req *pb.ListAlarmsRequest) (alarms.Filter, error) {
	filter := alarms.Filter{
		NodeID: req.NodeID,
		Limit:  req.Limit,
	}

	if req.Limit < 0 {
		return filter, status.Error(codes.InvalidArgument, "limit must not be negative")
	}

	if req.Status != "" {
		st, ok := domain.ParseAlarmStatus(req.Status)
		if !ok {
			return filter, status.Errorf(codes.InvalidArgument, "unknown alarm status %q", req.Status)
		}

		filter.Status = st
	}

	if req.Priority != "" {
		priority, ok := domain.ParsePriority(req.Priority)
		if !ok {
			return filter, status.Errorf(codes.InvalidArgument, "unknown priority %q", req.Priority)
		}

		filter.Priority = priority
	}

	if req.From != nil {
		filter.From = *req.From
	}

	if req.To != nil {
		filter.To = *req.To
	}

	return filter, nil
}

func toProtoStatistics(summary *stats.Summary) *pb.Statistics {
	result := &pb.Statistics{
		WindowDays:        summary.WindowDays,
		From:              summary.From,
		Total:             summary.Total,
		Open:              summary.Open,
		ByStatus:          make(map[string]int, len(summary.ByStatus)),
		ByPriority:        make(map[string]int, len(summary.ByPriority)),
		ByClassification:  make(map[string]int, len(summary.ByClassification)),
		FalsePositiveRate: summary.FalsePositiveRate,
	}

	for k, v := range summary.ByStatus {
		result.ByStatus[string(k)] = v
	}

	for k, v := range summary.ByPriority {
		result.ByPriority[string(k)] = v
	}

	for k, v := range summary.ByClassification {
		result.ByClassification[string(k)] = v
	}

	if summary.AverageResponse != nil {
		seconds := summary.AverageResponse.Round(time.Second).Seconds()
		result.AverageResponseSeconds = &seconds
	}

	return result
}
