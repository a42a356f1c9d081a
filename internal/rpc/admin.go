package rpc

import (
	"context"

	"google.golang.org/grpc"
)

// AdminServer seeds and reads TenantPolicy rows — the wire surface
// behind `horologyctl apply`'s declarative tenant bootstrap manifests.
type AdminServer interface {
	PutTenantPolicy(context.Context, *PutTenantPolicyRequest) (*PutTenantPolicyResponse, error)
	GetTenantPolicy(context.Context, *GetTenantPolicyRequest) (*GetTenantPolicyResponse, error)
}

const AdminServiceName = "horology.v1.AdminService"

func _AdminService_PutTenantPolicy_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(PutTenantPolicyRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AdminServer).PutTenantPolicy(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + AdminServiceName + "/PutTenantPolicy"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(AdminServer).PutTenantPolicy(ctx, req.(*PutTenantPolicyRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _AdminService_GetTenantPolicy_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(GetTenantPolicyRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AdminServer).GetTenantPolicy(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + AdminServiceName + "/GetTenantPolicy"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(AdminServer).GetTenantPolicy(ctx, req.(*GetTenantPolicyRequest))
	}
	return interceptor(ctx, in, info, handler)
}

var AdminServiceDesc = grpc.ServiceDesc{
	ServiceName: AdminServiceName,
	HandlerType: (*AdminServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "PutTenantPolicy", Handler: _AdminService_PutTenantPolicy_Handler},
		{MethodName: "GetTenantPolicy", Handler: _AdminService_GetTenantPolicy_Handler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "horology/v1/timer.proto",
}

type AdminClient struct {
	cc *grpc.ClientConn
}

func NewAdminClient(cc *grpc.ClientConn) *AdminClient { return &AdminClient{cc: cc} }

func (c *AdminClient) PutTenantPolicy(ctx context.Context, in *PutTenantPolicyRequest, opts ...grpc.CallOption) (*PutTenantPolicyResponse, error) {
	out := new(PutTenantPolicyResponse)
	if err := c.cc.Invoke(ctx, "/"+AdminServiceName+"/PutTenantPolicy", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *AdminClient) GetTenantPolicy(ctx context.Context, in *GetTenantPolicyRequest, opts ...grpc.CallOption) (*GetTenantPolicyResponse, error) {
	out := new(GetTenantPolicyResponse)
	if err := c.cc.Invoke(ctx, "/"+AdminServiceName+"/GetTenantPolicy", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
