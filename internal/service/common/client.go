//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"context"
	"errors"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/oshokin/agrisecure/internal/config"
	pb "github.com/oshokin/agrisecure/internal/pb/v1"
)

// Client wraps the security service client with convenience helpers.
type Client struct {
	// conn is the underlying gRPC connection; nil when built over an existing one.
	conn *grpc.ClientConn
	// api is the security service client.
	api pb.SecurityServiceClient

	// callTimeout is the default timeout for individual RPC calls.
	callTimeout time.Duration
}

// Option configures client behaviour.
type Option func(*Client)

// WithCallTimeout sets a default timeout for service calls.
func WithCallTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.callTimeout = timeout
		}
	}
}

var (
	// errAddressRequired is returned when a required address value is missing.
	errAddressRequired = errors.New("address must be provided")
	// errActorRequired is returned when a mutating call has no actor.
	errActorRequired = errors.New("actor must be provided")
)

// Dial establishes a gRPC connection to the agrisecure server.
// Note: this uses insecure transport credentials; deploy on a trusted network
// or terminate TLS in a proxy.
func Dial(_ context.Context, address string, opts ...Option) (*Client, error) {
	if address == "" {
		return nil, errAddressRequired
	}

	conn, err := grpc.NewClient(address, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("dial agrisecure server: %w", err)
	}

	client := NewClient(conn, opts...)
	client.conn = conn

	return client, nil
}

// NewClient builds a client over an existing connection. Close does not
// close cc.
func NewClient(cc grpc.ClientConnInterface, opts ...Option) *Client {
	client := &Client{
		api:         pb.NewSecurityServiceClient(cc),
		callTimeout: config.DefaultTimeout,
	}

	for _, opt := range opts {
		opt(client)
	}

	return client
}

// Close releases the underlying gRPC connection.
func (c *Client) Close() error {
	if c == nil || c.conn == nil {
		return nil
	}

	return c.conn.Close()
}

// GetArmState retrieves the current arm state.
func (c *Client) GetArmState(ctx context.Context) (*pb.ArmState, error) {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	resp, err := c.api.GetArmState(callCtx, new(pb.GetArmStateRequest))
	if err != nil {
		return nil, fmt.Errorf("get arm state: %w", err)
	}

	return resp, nil
}

// ListArmHistory retrieves the latest arm states, newest first.
func (c *Client) ListArmHistory(ctx context.Context, limit int) ([]*pb.ArmState, error) {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	resp, err := c.api.ListArmHistory(callCtx, &pb.ListArmHistoryRequest{Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("list arm history: %w", err)
	}

	return resp.States, nil
}

// SetArmState replaces the remote arm state.
func (c *Client) SetArmState(
	ctx context.Context,
	actor *pb.SystemActor,
	mode string,
	nodeIDs []string,
	notes string,
) (*pb.ArmState, error) {
	if actor == nil {
		return nil, errActorRequired
	}

	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	request := &pb.SetArmStateRequest{
		Actor:   actor,
		Mode:    mode,
		NodeIDs: nodeIDs,
		Notes:   notes,
	}

	response, err := c.api.SetArmState(callCtx, request)
	if err != nil {
		return nil, fmt.Errorf("set arm state: %w", err)
	}

	return response, nil
}

// ArmAll arms every eligible node in the given mode.
func (c *Client) ArmAll(ctx context.Context, actor *pb.SystemActor, mode, notes string) (*pb.ArmState, error) {
	if actor == nil {
		return nil, errActorRequired
	}

	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	response, err := c.api.ArmAll(callCtx, &pb.ArmAllRequest{Actor: actor, Mode: mode, Notes: notes})
	if err != nil {
		return nil, fmt.Errorf("arm all: %w", err)
	}

	return response, nil
}

// ArmZone folds a zone into the armed set.
func (c *Client) ArmZone(ctx context.Context, actor *pb.SystemActor, zoneID, notes string) (*pb.ArmState, error) {
	if actor == nil {
		return nil, errActorRequired
	}

	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	response, err := c.api.ArmZone(callCtx, &pb.ZoneArmRequest{Actor: actor, ZoneID: zoneID, Notes: notes})
	if err != nil {
		return nil, fmt.Errorf("arm zone %s: %w", zoneID, err)
	}

	return response, nil
}

// DisarmZone folds a zone out of the armed set.
func (c *Client) DisarmZone(ctx context.Context, actor *pb.SystemActor, zoneID, notes string) (*pb.ArmState, error) {
	if actor == nil {
		return nil, errActorRequired
	}

	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	response, err := c.api.DisarmZone(callCtx, &pb.ZoneArmRequest{Actor: actor, ZoneID: zoneID, Notes: notes})
	if err != nil {
		return nil, fmt.Errorf("disarm zone %s: %w", zoneID, err)
	}

	return response, nil
}

// ListNodes retrieves registered nodes.
func (c *Client) ListNodes(ctx context.Context, securityOnly bool) ([]*pb.Node, error) {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	resp, err := c.api.ListNodes(callCtx, &pb.ListNodesRequest{SecurityOnly: securityOnly})
	if err != nil {
		return nil, fmt.Errorf("list nodes: %w", err)
	}

	return resp.Nodes, nil
}

// ListZones retrieves zones.
func (c *Client) ListZones(ctx context.Context) ([]*pb.Zone, error) {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	resp, err := c.api.ListZones(callCtx, new(pb.ListZonesRequest))
	if err != nil {
		return nil, fmt.Errorf("list zones: %w", err)
	}

	return resp.Zones, nil
}

// ListAlarms retrieves alarms matching the request.
func (c *Client) ListAlarms(ctx context.Context, req *pb.ListAlarmsRequest) ([]*pb.Alarm, error) {
	if req == nil {
		req = new(pb.ListAlarmsRequest)
	}

	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	resp, err := c.api.ListAlarms(callCtx, req)
	if err != nil {
		return nil, fmt.Errorf("list alarms: %w", err)
	}

	return resp.Alarms, nil
}

// GetAlarm retrieves one alarm.
func (c *Client) GetAlarm(ctx context.Context, id string) (*pb.Alarm, error) {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	resp, err := c.api.GetAlarm(callCtx, &pb.GetAlarmRequest{ID: id})
	if err != nil {
		return nil, fmt.Errorf("get alarm %s: %w", id, err)
	}

	return resp, nil
}

// AcknowledgeAlarm acknowledges an active alarm.
func (c *Client) AcknowledgeAlarm(ctx context.Context, actor *pb.SystemActor, id, notes string) (*pb.Alarm, error) {
	return c.alarmAction(ctx, "acknowledge", c.api.AcknowledgeAlarm, actor, id, notes)
}

// ResolveAlarm resolves an open alarm.
func (c *Client) ResolveAlarm(ctx context.Context, actor *pb.SystemActor, id, notes string) (*pb.Alarm, error) {
	return c.alarmAction(ctx, "resolve", c.api.ResolveAlarm, actor, id, notes)
}

// MarkFalsePositive marks an open alarm as a false positive.
func (c *Client) MarkFalsePositive(ctx context.Context, actor *pb.SystemActor, id, notes string) (*pb.Alarm, error) {
	return c.alarmAction(ctx, "mark false positive", c.api.MarkFalsePositive, actor, id, notes)
}

// GetStatistics retrieves the alarm summary; zero windowDays uses the server default.
func (c *Client) GetStatistics(ctx context.Context, windowDays int) (*pb.Statistics, error) {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	resp, err := c.api.GetStatistics(callCtx, &pb.GetStatisticsRequest{WindowDays: windowDays})
	if err != nil {
		return nil, fmt.Errorf("get statistics: %w", err)
	}

	return resp, nil
}

func (c *Client) alarmAction(
	ctx context.Context,
	name string,
	call func(context.Context, *pb.AlarmActionRequest, ...grpc.CallOption) (*pb.Alarm, error),
	actor *pb.SystemActor,
	id, notes string,
) (*pb.Alarm, error) {
	if actor == nil {
		return nil, errActorRequired
	}

	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	resp, err := call(callCtx, &pb.AlarmActionRequest{Actor: actor, ID: id, Notes: notes})
	if err != nil {
		return nil, fmt.Errorf("%s alarm %s: %w", name, id, err)
	}

	return resp, nil
}

// callContext returns a context with the client's call timeout if configured,
// otherwise a cancellable child context without a deadline.
func (c *Client) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.callTimeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, c.callTimeout)
}
