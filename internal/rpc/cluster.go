package rpc

import (
	"context"

	"google.golang.org/grpc"
)

// ClusterServiceServer handles Raft cluster membership: minting join
// tokens, admitting new voters, and reporting membership.
type ClusterServiceServer interface {
	GenerateJoinToken(context.Context, *GenerateJoinTokenRequest) (*GenerateJoinTokenResponse, error)
	JoinCluster(context.Context, *JoinClusterRequest) (*JoinClusterResponse, error)
	GetClusterInfo(context.Context, *GetClusterInfoRequest) (*GetClusterInfoResponse, error)
}

const ClusterServiceName = "horology.v1.ClusterService"

func _ClusterService_JoinCluster_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(JoinClusterRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ClusterServiceServer).JoinCluster(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ClusterServiceName + "/JoinCluster"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ClusterServiceServer).JoinCluster(ctx, req.(*JoinClusterRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _ClusterService_GenerateJoinToken_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(GenerateJoinTokenRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ClusterServiceServer).GenerateJoinToken(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ClusterServiceName + "/GenerateJoinToken"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ClusterServiceServer).GenerateJoinToken(ctx, req.(*GenerateJoinTokenRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _ClusterService_GetClusterInfo_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(GetClusterInfoRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ClusterServiceServer).GetClusterInfo(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ClusterServiceName + "/GetClusterInfo"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ClusterServiceServer).GetClusterInfo(ctx, req.(*GetClusterInfoRequest))
	}
	return interceptor(ctx, in, info, handler)
}

var ClusterServiceDesc = grpc.ServiceDesc{
	ServiceName: ClusterServiceName,
	HandlerType: (*ClusterServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GenerateJoinToken", Handler: _ClusterService_GenerateJoinToken_Handler},
		{MethodName: "JoinCluster", Handler: _ClusterService_JoinCluster_Handler},
		{MethodName: "GetClusterInfo", Handler: _ClusterService_GetClusterInfo_Handler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "horology/v1/timer.proto",
}

type ClusterClient struct {
	cc *grpc.ClientConn
}

func NewClusterClient(cc *grpc.ClientConn) *ClusterClient { return &ClusterClient{cc: cc} }

func (c *ClusterClient) JoinCluster(ctx context.Context, in *JoinClusterRequest, opts ...grpc.CallOption) (*JoinClusterResponse, error) {
	out := new(JoinClusterResponse)
	if err := c.cc.Invoke(ctx, "/"+ClusterServiceName+"/JoinCluster", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *ClusterClient) GenerateJoinToken(ctx context.Context, in *GenerateJoinTokenRequest, opts ...grpc.CallOption) (*GenerateJoinTokenResponse, error) {
	out := new(GenerateJoinTokenResponse)
	if err := c.cc.Invoke(ctx, "/"+ClusterServiceName+"/GenerateJoinToken", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *ClusterClient) GetClusterInfo(ctx context.Context, in *GetClusterInfoRequest, opts ...grpc.CallOption) (*GetClusterInfoResponse, error) {
	out := new(GetClusterInfoResponse)
	if err := c.cc.Invoke(ctx, "/"+ClusterServiceName+"/GetClusterInfo", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
