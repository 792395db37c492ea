package pb

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// SecurityServiceName is the fully qualified gRPC service name.
const SecurityServiceName = "agrisecure.v1.SecurityService"

// Full method names.
const (
	SecurityServiceGetArmStateMethod       = "/" + SecurityServiceName + "/GetArmState"
	SecurityServiceListArmHistoryMethod    = "/" + SecurityServiceName + "/ListArmHistory"
	SecurityServiceSetArmStateMethod       = "/" + SecurityServiceName + "/SetArmState"
	SecurityServiceArmAllMethod            = "/" + SecurityServiceName + "/ArmAll"
	SecurityServiceArmZoneMethod           = "/" + SecurityServiceName + "/ArmZone"
	SecurityServiceDisarmZoneMethod        = "/" + SecurityServiceName + "/DisarmZone"
	SecurityServiceListNodesMethod         = "/" + SecurityServiceName + "/ListNodes"
	SecurityServiceListZonesMethod         = "/" + SecurityServiceName + "/ListZones"
	SecurityServiceListAlarmsMethod        = "/" + SecurityServiceName + "/ListAlarms"
	SecurityServiceGetAlarmMethod          = "/" + SecurityServiceName + "/GetAlarm"
	SecurityServiceAcknowledgeAlarmMethod  = "/" + SecurityServiceName + "/AcknowledgeAlarm"
	SecurityServiceResolveAlarmMethod      = "/" + SecurityServiceName + "/ResolveAlarm"
	SecurityServiceMarkFalsePositiveMethod = "/" + SecurityServiceName + "/MarkFalsePositive"
	SecurityServiceGetStatisticsMethod     = "/" + SecurityServiceName + "/GetStatistics"
)

// SecurityServiceServer is the server API of SecurityService.
type SecurityServiceServer interface {
	GetArmState(ctx context.Context, req *GetArmStateRequest) (*ArmState, error)
	ListArmHistory(ctx context.Context, req *ListArmHistoryRequest) (*ArmStateList, error)
	SetArmState(ctx context.Context, req *SetArmStateRequest) (*ArmState, error)
	ArmAll(ctx context.Context, req *ArmAllRequest) (*ArmState, error)
	ArmZone(ctx context.Context, req *ZoneArmRequest) (*ArmState, error)
	DisarmZone(ctx context.Context, req *ZoneArmRequest) (*ArmState, error)
	ListNodes(ctx context.Context, req *ListNodesRequest) (*NodeList, error)
	ListZones(ctx context.Context, req *ListZonesRequest) (*ZoneList, error)
	ListAlarms(ctx context.Context, req *ListAlarmsRequest) (*AlarmList, error)
	GetAlarm(ctx context.Context, req *GetAlarmRequest) (*Alarm, error)
	AcknowledgeAlarm(ctx context.Context, req *AlarmActionRequest) (*Alarm, error)
	ResolveAlarm(ctx context.Context, req *AlarmActionRequest) (*Alarm, error)
	MarkFalsePositive(ctx context.Context, req *AlarmActionRequest) (*Alarm, error)
	GetStatistics(ctx context.Context, req *GetStatisticsRequest) (*Statistics, error)
}

// SecurityServiceClient is the client API of SecurityService.
type SecurityServiceClient interface {
	GetArmState(ctx context.Context, req *GetArmStateRequest, opts ...grpc.CallOption) (*ArmState, error)
	ListArmHistory(ctx context.Context, req *ListArmHistoryRequest, opts ...grpc.CallOption) (*ArmStateList, error)
	SetArmState(ctx context.Context, req *SetArmStateRequest, opts ...grpc.CallOption) (*ArmState, error)
	ArmAll(ctx context.Context, req *ArmAllRequest, opts ...grpc.CallOption) (*ArmState, error)
	ArmZone(ctx context.Context, req *ZoneArmRequest, opts ...grpc.CallOption) (*ArmState, error)
	DisarmZone(ctx context.Context, req *ZoneArmRequest, opts ...grpc.CallOption) (*ArmState, error)
	ListNodes(ctx context.Context, req *ListNodesRequest, opts ...grpc.CallOption) (*NodeList, error)
	ListZones(ctx context.Context, req *ListZonesRequest, opts ...grpc.CallOption) (*ZoneList, error)
	ListAlarms(ctx context.Context, req *ListAlarmsRequest, opts ...grpc.CallOption) (*AlarmList, error)
	GetAlarm(ctx context.Context, req *GetAlarmRequest, opts ...grpc.CallOption) (*Alarm, error)
	AcknowledgeAlarm(ctx context.Context, req *AlarmActionRequest, opts ...grpc.CallOption) (*Alarm, error)
	ResolveAlarm(ctx context.Context, req *AlarmActionRequest, opts ...grpc.CallOption) (*Alarm, error)
	MarkFalsePositive(ctx context.Context, req *AlarmActionRequest, opts ...grpc.CallOption) (*Alarm, error)
	GetStatistics(ctx context.Context, req *GetStatisticsRequest, opts ...grpc.CallOption) (*Statistics, error)
}

// UnimplementedSecurityServiceServer answers every method with codes.Unimplemented.
// Embed it to implement a subset of the service.
type UnimplementedSecurityServiceServer struct{}

// GetArmState is not implemented.
func (UnimplementedSecurityServiceServer) GetArmState(context.Context, *GetArmStateRequest) (*ArmState, error) {
	return nil, status.Error(codes.Unimplemented, "method GetArmState not implemented")
}

// ListArmHistory is not implemented.
func (UnimplementedSecurityServiceServer) ListArmHistory(context.Context, *ListArmHistoryRequest) (*ArmStateList, error) {
	return nil, status.Error(codes.Unimplemented, "method ListArmHistory not implemented")
}

// SetArmState is not implemented.
func (UnimplementedSecurityServiceServer) SetArmState(context.Context, *SetArmStateRequest) (*ArmState, error) {
	return nil, status.Error(codes.Unimplemented, "method SetArmState not implemented")
}

// ArmAll is not implemented.
func (UnimplementedSecurityServiceServer) ArmAll(context.Context, *ArmAllRequest) (*ArmState, error) {
	return nil, status.Error(codes.Unimplemented, "method ArmAll not implemented")
}

// ArmZone is not implemented.
func (UnimplementedSecurityServiceServer) ArmZone(context.Context, *ZoneArmRequest) (*ArmState, error) {
	return nil, status.Error(codes.Unimplemented, "method ArmZone not implemented")
}

// DisarmZone is not implemented.
func (UnimplementedSecurityServiceServer) DisarmZone(context.Context, *ZoneArmRequest) (*ArmState, error) {
	return nil, status.Error(codes.Unimplemented, "method DisarmZone not implemented")
}

// ListNodes is not implemented.
func (UnimplementedSecurityServiceServer) ListNodes(context.Context, *ListNodesRequest) (*NodeList, error) {
	return nil, status.Error(codes.Unimplemented, "method ListNodes not implemented")
}

// ListZones is not implemented.
func (UnimplementedSecurityServiceServer) ListZones(context.Context, *ListZonesRequest) (*ZoneList, error) {
	return nil, status.Error(codes.Unimplemented, "method ListZones not implemented")
}

// ListAlarms is not implemented.
func (UnimplementedSecurityServiceServer) ListAlarms(context.Context, *ListAlarmsRequest) (*AlarmList, error) {
	return nil, status.Error(codes.Unimplemented, "method ListAlarms not implemented")
}

// GetAlarm is not implemented.
func (UnimplementedSecurityServiceServer) GetAlarm(context.Context, *GetAlarmRequest) (*Alarm, error) {
	return nil, status.Error(codes.Unimplemented, "method GetAlarm not implemented")
}

// AcknowledgeAlarm is not implemented.
func (UnimplementedSecurityServiceServer) AcknowledgeAlarm(context.Context, *AlarmActionRequest) (*Alarm, error) {
	return nil, status.Error(codes.Unimplemented, "method AcknowledgeAlarm not implemented")
}

// ResolveAlarm is not implemented.
func (UnimplementedSecurityServiceServer) ResolveAlarm(context.Context, *AlarmActionRequest) (*Alarm, error) {
	return nil, status.Error(codes.Unimplemented, "method ResolveAlarm not implemented")
}

// MarkFalsePositive is not implemented.
func (UnimplementedSecurityServiceServer) MarkFalsePositive(context.Context, *AlarmActionRequest) (*Alarm, error) {
	return nil, status.Error(codes.Unimplemented, "method MarkFalsePositive not implemented")
}

// GetStatistics is not implemented.
func (UnimplementedSecurityServiceServer) GetStatistics(context.Context, *GetStatisticsRequest) (*Statistics, error) {
	return nil, status.Error(codes.Unimplemented, "method GetStatistics not implemented")
}

// SecurityServiceDesc describes SecurityService for grpc.Server.RegisterService.
//
//nolint:gochecknoglobals // Service descriptors are package-level by convention.
var SecurityServiceDesc = grpc.ServiceDesc{
	ServiceName: SecurityServiceName,
	HandlerType: (*SecurityServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetArmState", Handler: unaryHandler(SecurityServiceGetArmStateMethod, SecurityServiceServer.GetArmState)},
		{MethodName: "ListArmHistory", Handler: unaryHandler(SecurityServiceListArmHistoryMethod, SecurityServiceServer.ListArmHistory)},
		{MethodName: "SetArmState", Handler: unaryHandler(SecurityServiceSetArmStateMethod, SecurityServiceServer.SetArmState)},
		{MethodName: "ArmAll", Handler: unaryHandler(SecurityServiceArmAllMethod, SecurityServiceServer.ArmAll)},
		{MethodName: "ArmZone", Handler: unaryHandler(SecurityServiceArmZoneMethod, SecurityServiceServer.ArmZone)},
		{MethodName: "DisarmZone", Handler: unaryHandler(SecurityServiceDisarmZoneMethod, SecurityServiceServer.DisarmZone)},
		{MethodName: "ListNodes", Handler: unaryHandler(SecurityServiceListNodesMethod, SecurityServiceServer.ListNodes)},
		{MethodName: "ListZones", Handler: unaryHandler(SecurityServiceListZonesMethod, SecurityServiceServer.ListZones)},
		{MethodName: "ListAlarms", Handler: unaryHandler(SecurityServiceListAlarmsMethod, SecurityServiceServer.ListAlarms)},
		{MethodName: "GetAlarm", Handler: unaryHandler(SecurityServiceGetAlarmMethod, SecurityServiceServer.GetAlarm)},
		{MethodName: "AcknowledgeAlarm", Handler: unaryHandler(SecurityServiceAcknowledgeAlarmMethod, SecurityServiceServer.AcknowledgeAlarm)},
		{MethodName: "ResolveAlarm", Handler: unaryHandler(SecurityServiceResolveAlarmMethod, SecurityServiceServer.ResolveAlarm)},
		{MethodName: "MarkFalsePositive", Handler: unaryHandler(SecurityServiceMarkFalsePositiveMethod, SecurityServiceServer.MarkFalsePositive)},
		{MethodName: "GetStatistics", Handler: unaryHandler(SecurityServiceGetStatisticsMethod, SecurityServiceServer.GetStatistics)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "agrisecure/v1/security",
}

// RegisterSecurityServiceServer registers srv on the registrar.
func RegisterSecurityServiceServer(registrar grpc.ServiceRegistrar, srv SecurityServiceServer) {
	registrar.RegisterService(&SecurityServiceDesc, srv)
}

// unaryHandler adapts a typed server method to grpc.MethodHandler.
func unaryHandler[Req, Resp any](
	fullMethod string,
	call func(SecurityServiceServer, context.Context, *Req) (*Resp, error),
) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}

		if interceptor == nil {
			return call(srv.(SecurityServiceServer), ctx, in)
		}

		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: fullMethod,
		}

		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(SecurityServiceServer), ctx, req.(*Req))
		}

		return interceptor(ctx, in, info, handler)
	}
}

// securityServiceClient invokes SecurityService over a connection.
type securityServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewSecurityServiceClient returns a client bound to cc. Every call is sent
// with the JSON content-subtype.
func NewSecurityServiceClient(cc grpc.ClientConnInterface) SecurityServiceClient {
	return &securityServiceClient{cc: cc}
}

func invoke[Resp any](
	ctx context.Context,
	cc grpc.ClientConnInterface,
	method string,
	in any,
	opts []grpc.CallOption,
) (*Resp, error) {
	out := new(Resp)

	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}

	return out, nil
}

func (c *securityServiceClient) GetArmState(
	ctx context.Context, in *GetArmStateRequest, opts ...grpc.CallOption,
) (*ArmState, error) {
	return invoke[ArmState](ctx, c.cc, SecurityServiceGetArmStateMethod, in, opts)
}

func (c *securityServiceClient) ListArmHistory(
	ctx context.Context, in *ListArmHistoryRequest, opts ...grpc.CallOption,
) (*ArmStateList, error) {
	return invoke[ArmStateList](ctx, c.cc, SecurityServiceListArmHistoryMethod, in, opts)
}

func (c *securityServiceClient) SetArmState(
	ctx context.Context, in *SetArmStateRequest, opts ...grpc.CallOption,
) (*ArmState, error) {
	return invoke[ArmState](ctx, c.cc, SecurityServiceSetArmStateMethod, in, opts)
}

func (c *securityServiceClient) ArmAll(
	ctx context.Context, in *ArmAllRequest, opts ...grpc.CallOption,
) (*ArmState, error) {
	return invoke[ArmState](ctx, c.cc, SecurityServiceArmAllMethod, in, opts)
}

func (c *securityServiceClient) ArmZone(
	ctx context.Context, in *ZoneArmRequest, opts ...grpc.CallOption,
) (*ArmState, error) {
	return invoke[ArmState](ctx, c.cc, SecurityServiceArmZoneMethod, in, opts)
}

func (c *securityServiceClient) DisarmZone(
	ctx context.Context, in *ZoneArmRequest, opts ...grpc.CallOption,
) (*ArmState, error) {
	return invoke[ArmState](ctx, c.cc, SecurityServiceDisarmZoneMethod, in, opts)
}

func (c *securityServiceClient) ListNodes(
	ctx context.Context, in *ListNodesRequest, opts ...grpc.CallOption,
) (*NodeList, error) {
	return invoke[NodeList](ctx, c.cc, SecurityServiceListNodesMethod, in, opts)
}

func (c *securityServiceClient) ListZones(
	ctx context.Context, in *ListZonesRequest, opts ...grpc.CallOption,
) (*ZoneList, error) {
	return invoke[ZoneList](ctx, c.cc, SecurityServiceListZonesMethod, in, opts)
}

func (c *securityServiceClient) ListAlarms(
	ctx context.Context, in *ListAlarmsRequest, opts ...grpc.CallOption,
) (*AlarmList, error) {
	return invoke[AlarmList](ctx, c.cc, SecurityServiceListAlarmsMethod, in, opts)
}

func (c *securityServiceClient) GetAlarm(
	ctx context.Context, in *GetAlarmRequest, opts ...grpc.CallOption,
) (*Alarm, error) {
	return invoke[Alarm](ctx, c.cc, SecurityServiceGetAlarmMethod, in, opts)
}

func (c *securityServiceClient) AcknowledgeAlarm(
	ctx context.Context, in *AlarmActionRequest, opts ...grpc.CallOption,
) (*Alarm, error) {
	return invoke[Alarm](ctx, c.cc, SecurityServiceAcknowledgeAlarmMethod, in, opts)
}

func (c *securityServiceClient) ResolveAlarm(
	ctx context.Context, in *AlarmActionRequest, opts ...grpc.CallOption,
) (*Alarm, error) {
	return invoke[Alarm](ctx, c.cc, SecurityServiceResolveAlarmMethod, in, opts)
}

func (c *securityServiceClient) MarkFalsePositive(
	ctx context.Context, in *AlarmActionRequest, opts ...grpc.CallOption,
) (*Alarm, error) {
	return invoke[Alarm](ctx, c.cc, SecurityServiceMarkFalsePositiveMethod, in, opts)
}

func (c *securityServiceClient) GetStatistics(
	ctx context.Context, in *GetStatisticsRequest, opts ...grpc.CallOption,
) (*Statistics, error) {
	return invoke[Statistics](ctx, c.cc, SecurityServiceGetStatisticsMethod, in, opts)
}
