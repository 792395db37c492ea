package pb

import "time"

// SystemActor identifies the caller of a mutating request.
type SystemActor struct {
	Username string `json:"username"`
	Hostname string `json:"hostname,omitempty"`
}

// GetUsername returns the username or an empty string.
func (a *SystemActor) GetUsername() string {
	if a == nil {
		return ""
	}

	return a.Username
}

// GetHostname returns the hostname or an empty string.
func (a *SystemActor) GetHostname() string {
	if a == nil {
		return ""
	}

	return a.Hostname
}

// ArmState is one entry of the arming history.
type ArmState struct {
	Version      int64        `json:"version"`
	Mode         string       `json:"mode"`
	PreviousMode string       `json:"previous_mode,omitempty"`
	ArmedNodes   []string     `json:"armed_nodes"`
	ChangedAt    *time.Time   `json:"changed_at,omitempty"`
	ChangedBy    *SystemActor `json:"changed_by,omitempty"`
	Source       string       `json:"source,omitempty"`
	Notes        string       `json:"notes,omitempty"`
}

// ArmStateList is a page of arming history, newest first.
type ArmStateList struct {
	States []*ArmState `json:"states"`
}

// Telemetry holds the last reported node metrics.
type Telemetry struct {
	BatteryLevel   *int   `json:"battery_level,omitempty"`
	SignalStrength *int   `json:"signal_strength,omitempty"`
	Firmware       string `json:"firmware,omitempty"`
	UptimeSeconds  int64  `json:"uptime_seconds,omitempty"`
}

// Node is a registered device with its derived armed flag.
type Node struct {
	ID        string     `json:"node_id"`
	Name      string     `json:"name,omitempty"`
	Type      string     `json:"node_type"`
	Status    string     `json:"status"`
	Active    bool       `json:"active"`
	IsArmed   bool       `json:"is_armed"`
	LastSeen  *time.Time `json:"last_seen,omitempty"`
	Telemetry *Telemetry `json:"telemetry,omitempty"`
}

// NodeList is a list of nodes ordered by id.
type NodeList struct {
	Nodes []*Node `json:"nodes"`
}

// Zone is a named node group with its derived armed flag.
type Zone struct {
	ID            string   `json:"zone_id"`
	Name          string   `json:"name"`
	Description   string   `json:"description,omitempty"`
	MemberNodeIDs []string `json:"member_node_ids"`
	Armed         bool     `json:"armed"`
}

// ZoneList is a list of zones ordered by id.
type ZoneList struct {
	Zones []*Zone `json:"zones"`
}

// AlarmTransition is one audit entry of an alarm.
type AlarmTransition struct {
	From  string       `json:"from"`
	To    string       `json:"to"`
	At    time.Time    `json:"at"`
	Actor *SystemActor `json:"actor,omitempty"`
	Notes string       `json:"notes,omitempty"`
}

// Alarm is an alarm record.
type Alarm struct {
	ID             string             `json:"id"`
	NodeID         string             `json:"node_id"`
	Classification string             `json:"classification"`
	Priority       string             `json:"priority"`
	PriorityLabel  string             `json:"priority_label,omitempty"`
	Status         string             `json:"status"`
	TriggeredAt    time.Time          `json:"triggered_at"`
	AcknowledgedAt *time.Time         `json:"acknowledged_at,omitempty"`
	AcknowledgedBy *SystemActor       `json:"acknowledged_by,omitempty"`
	ResolvedAt     *time.Time         `json:"resolved_at,omitempty"`
	ResolvedBy     *SystemActor       `json:"resolved_by,omitempty"`
	Notes          string             `json:"notes,omitempty"`
	Version        int64              `json:"version"`
	History        []*AlarmTransition `json:"history,omitempty"`
}

// AlarmList is a list of alarms, newest trigger first.
type AlarmList struct {
	Alarms []*Alarm `json:"alarms"`
}

// Statistics is the alarm summary over a window.
type Statistics struct {
	WindowDays             int            `json:"window_days"`
	From                   time.Time      `json:"from"`
	Total                  int            `json:"total"`
	Open                   int            `json:"open"`
	ByStatus               map[string]int `json:"by_status"`
	ByPriority             map[string]int `json:"by_priority"`
	ByClassification       map[string]int `json:"by_classification"`
	FalsePositiveRate      float64        `json:"false_positive_rate"`
	AverageResponseSeconds *float64       `json:"average_response_seconds,omitempty"`
}

// GetArmStateRequest asks for the current arm state.
type GetArmStateRequest struct{}

// ListArmHistoryRequest asks for the latest arm states.
type ListArmHistoryRequest struct {
	Limit int `json:"limit,omitempty"`
}

// SetArmStateRequest replaces the arm state.
type SetArmStateRequest struct {
	Actor   *SystemActor `json:"actor"`
	Mode    string       `json:"mode"`
	NodeIDs []string     `json:"node_ids,omitempty"`
	Notes   string       `json:"notes,omitempty"`
}

// ArmAllRequest arms every eligible node.
type ArmAllRequest struct {
	Actor *SystemActor `json:"actor"`
	Mode  string       `json:"mode"`
	Notes string       `json:"notes,omitempty"`
}

// ZoneArmRequest folds a zone into or out of the armed set.
type ZoneArmRequest struct {
	Actor  *SystemActor `json:"actor"`
	ZoneID string       `json:"zone_id"`
	Notes  string       `json:"notes,omitempty"`
}

// ListNodesRequest lists registered nodes.
type ListNodesRequest struct {
	SecurityOnly bool `json:"security_only,omitempty"`
}

// ListZonesRequest lists zones.
type ListZonesRequest struct{}

// ListAlarmsRequest filters alarms. Empty fields match everything.
type ListAlarmsRequest struct {
	Status   string     `json:"status,omitempty"`
	Priority string     `json:"priority,omitempty"`
	NodeID   string     `json:"node_id,omitempty"`
	From     *time.Time `json:"from,omitempty"`
	To       *time.Time `json:"to,omitempty"`
	Limit    int        `json:"limit,omitempty"`
}

// GetAlarmRequest fetches one alarm.
type GetAlarmRequest struct {
	ID string `json:"id"`
}

// AlarmActionRequest moves an alarm through its lifecycle.
type AlarmActionRequest struct {
	Actor *SystemActor `json:"actor"`
	ID    string       `json:"id"`
	Notes string       `json:"notes,omitempty"`
}

// GetStatisticsRequest asks for a summary over the last WindowDays.
type GetStatisticsRequest struct {
	WindowDays int `json:"window_days,omitempty"`
}
