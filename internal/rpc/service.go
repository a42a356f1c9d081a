package rpc

import (
	"context"

	"google.golang.org/grpc"
)

// TimerServer is implemented by pkg/api.Server and dispatched to by
// ServiceDesc. Every method takes the full request/response envelope
// so adding a field never breaks the handler signature.
type TimerServer interface {
	ScheduleTimer(context.Context, *ScheduleRequest) (*ScheduleResponse, error)
	CancelTimer(context.Context, *CancelRequest) (*CancelResponse, error)
	GetTimer(context.Context, *GetRequest) (*GetResponse, error)
	ListTimers(context.Context, *ListRequest) (*ListResponse, error)
	StreamTimerEvents(*StreamRequest, TimerService_StreamTimerEventsServer) error
}

// TimerService_StreamTimerEventsServer is the server-side handle for
// the StreamTimerEvents server-streaming RPC.
type TimerService_StreamTimerEventsServer interface {
	Send(*FireEventMessage) error
	grpc.ServerStream
}

type timerServiceStreamTimerEventsServer struct {
	grpc.ServerStream
}

func (s *timerServiceStreamTimerEventsServer) Send(m *FireEventMessage) error {
	return s.ServerStream.SendMsg(m)
}

func _TimerService_ScheduleTimer_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(ScheduleRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(TimerServer).ScheduleTimer(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/ScheduleTimer"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(TimerServer).ScheduleTimer(ctx, req.(*ScheduleRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _TimerService_CancelTimer_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(CancelRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(TimerServer).CancelTimer(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/CancelTimer"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(TimerServer).CancelTimer(ctx, req.(*CancelRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _TimerService_GetTimer_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(GetRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(TimerServer).GetTimer(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/GetTimer"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(TimerServer).GetTimer(ctx, req.(*GetRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _TimerService_ListTimers_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(ListRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(TimerServer).ListTimers(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/ListTimers"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(TimerServer).ListTimers(ctx, req.(*ListRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _TimerService_StreamTimerEvents_Handler(srv interface{}, stream grpc.ServerStream) error {
	m := new(StreamRequest)
	if err := stream.RecvMsg(m); err != nil {
		return err
	}
	return srv.(TimerServer).StreamTimerEvents(m, &timerServiceStreamTimerEventsServer{stream})
}

// ServiceName is the RPC path prefix, matching the .proto package and
// service name in proto/horology/v1/timer.proto.
const ServiceName = "horology.v1.TimerService"

// ServiceDesc is the hand-written equivalent of a *_grpc.pb.go
// ServiceDesc, registered on the server with grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*TimerServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ScheduleTimer", Handler: _TimerService_ScheduleTimer_Handler},
		{MethodName: "CancelTimer", Handler: _TimerService_CancelTimer_Handler},
		{MethodName: "GetTimer", Handler: _TimerService_GetTimer_Handler},
		{MethodName: "ListTimers", Handler: _TimerService_ListTimers_Handler},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "StreamTimerEvents",
			Handler:       _TimerService_StreamTimerEvents_Handler,
			ServerStreams: true,
		},
	},
	Metadata: "horology/v1/timer.proto",
}

// TimerClient is the hand-written equivalent of a generated client stub.
type TimerClient struct {
	cc *grpc.ClientConn
}

func NewTimerClient(cc *grpc.ClientConn) *TimerClient { return &TimerClient{cc: cc} }

func (c *TimerClient) ScheduleTimer(ctx context.Context, in *ScheduleRequest, opts ...grpc.CallOption) (*ScheduleResponse, error) {
	out := new(ScheduleResponse)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/ScheduleTimer", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *TimerClient) CancelTimer(ctx context.Context, in *CancelRequest, opts ...grpc.CallOption) (*CancelResponse, error) {
	out := new(CancelResponse)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/CancelTimer", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *TimerClient) GetTimer(ctx context.Context, in *GetRequest, opts ...grpc.CallOption) (*GetResponse, error) {
	out := new(GetResponse)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/GetTimer", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *TimerClient) ListTimers(ctx context.Context, in *ListRequest, opts ...grpc.CallOption) (*ListResponse, error) {
	out := new(ListResponse)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/ListTimers", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// TimerService_StreamTimerEventsClient is the client-side handle for
// the StreamTimerEvents server-streaming RPC.
type TimerService_StreamTimerEventsClient interface {
	Recv() (*FireEventMessage, error)
	grpc.ClientStream
}

type timerServiceStreamTimerEventsClient struct {
	grpc.ClientStream
}

func (x *timerServiceStreamTimerEventsClient) Recv() (*FireEventMessage, error) {
	m := new(FireEventMessage)
	if err := x.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (c *TimerClient) StreamTimerEvents(ctx context.Context, in *StreamRequest, opts ...grpc.CallOption) (TimerService_StreamTimerEventsClient, error) {
	stream, err := c.cc.NewStream(ctx, &ServiceDesc.Streams[0], "/"+ServiceName+"/StreamTimerEvents", opts...)
	if err != nil {
		return nil, err
	}
	x := &timerServiceStreamTimerEventsClient{stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}
