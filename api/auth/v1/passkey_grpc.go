package authv1

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Full method names of PasskeyService.
const (
	PasskeyService_StartRegistration_FullMethodName      = "/member.auth.v1.PasskeyService/StartRegistration"
	PasskeyService_CompleteRegistration_FullMethodName   = "/member.auth.v1.PasskeyService/CompleteRegistration"
	PasskeyService_StartAuthentication_FullMethodName    = "/member.auth.v1.PasskeyService/StartAuthentication"
	PasskeyService_CompleteAuthentication_FullMethodName = "/member.auth.v1.PasskeyService/CompleteAuthentication"
	PasskeyService_ListPasskeys_FullMethodName           = "/member.auth.v1.PasskeyService/ListPasskeys"
	PasskeyService_DeletePasskey_FullMethodName          = "/member.auth.v1.PasskeyService/DeletePasskey"
)

// PasskeyServiceServer is the server API for PasskeyService.
type PasskeyServiceServer interface {
	StartRegistration(context.Context, *StartPasskeyRegistrationRequest) (*StartPasskeyResponse, error)
	CompleteRegistration(context.Context, *CompletePasskeyRegistrationRequest) (*CompletePasskeyRegistrationResponse, error)
	StartAuthentication(context.Context, *StartPasskeyAuthenticationRequest) (*StartPasskeyResponse, error)
	CompleteAuthentication(context.Context, *CompletePasskeyAuthenticationRequest) (*AuthResponse, error)
	ListPasskeys(context.Context, *ListPasskeysRequest) (*ListPasskeysResponse, error)
	DeletePasskey(context.Context, *DeletePasskeyRequest) (*DeletePasskeyResponse, error)
}

// UnimplementedPasskeyServiceServer returns Unimplemented for every method; embed it for forward compatibility.
type UnimplementedPasskeyServiceServer struct{}

func (UnimplementedPasskeyServiceServer) StartRegistration(context.Context, *StartPasskeyRegistrationRequest) (*StartPasskeyResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method StartRegistration not implemented")
}

func (UnimplementedPasskeyServiceServer) CompleteRegistration(context.Context, *CompletePasskeyRegistrationRequest) (*CompletePasskeyRegistrationResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method CompleteRegistration not implemented")
}

func (UnimplementedPasskeyServiceServer) StartAuthentication(context.Context, *StartPasskeyAuthenticationRequest) (*StartPasskeyResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method StartAuthentication not implemented")
}

func (UnimplementedPasskeyServiceServer) CompleteAuthentication(context.Context, *CompletePasskeyAuthenticationRequest) (*AuthResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method CompleteAuthentication not implemented")
}

func (UnimplementedPasskeyServiceServer) ListPasskeys(context.Context, *ListPasskeysRequest) (*ListPasskeysResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method ListPasskeys not implemented")
}

func (UnimplementedPasskeyServiceServer) DeletePasskey(context.Context, *DeletePasskeyRequest) (*DeletePasskeyResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method DeletePasskey not implemented")
}

// RegisterPasskeyServiceServer registers srv with s.
func RegisterPasskeyServiceServer(s grpc.ServiceRegistrar, srv PasskeyServiceServer) {
	s.RegisterService(&PasskeyService_ServiceDesc, srv)
}

func _PasskeyService_StartRegistration_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(StartPasskeyRegistrationRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PasskeyServiceServer).StartRegistration(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: PasskeyService_StartRegistration_FullMethodName,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(PasskeyServiceServer).StartRegistration(ctx, req.(*StartPasskeyRegistrationRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _PasskeyService_CompleteRegistration_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(CompletePasskeyRegistrationRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PasskeyServiceServer).CompleteRegistration(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: PasskeyService_CompleteRegistration_FullMethodName,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(PasskeyServiceServer).CompleteRegistration(ctx, req.(*CompletePasskeyRegistrationRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _PasskeyService_StartAuthentication_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(StartPasskeyAuthenticationRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PasskeyServiceServer).StartAuthentication(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: PasskeyService_StartAuthentication_FullMethodName,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(PasskeyServiceServer).StartAuthentication(ctx, req.(*StartPasskeyAuthenticationRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _PasskeyService_CompleteAuthentication_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(CompletePasskeyAuthenticationRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PasskeyServiceServer).CompleteAuthentication(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: PasskeyService_CompleteAuthentication_FullMethodName,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(PasskeyServiceServer).CompleteAuthentication(ctx, req.(*CompletePasskeyAuthenticationRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _PasskeyService_ListPasskeys_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(ListPasskeysRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PasskeyServiceServer).ListPasskeys(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: PasskeyService_ListPasskeys_FullMethodName,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(PasskeyServiceServer).ListPasskeys(ctx, req.(*ListPasskeysRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _PasskeyService_DeletePasskey_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(DeletePasskeyRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PasskeyServiceServer).DeletePasskey(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: PasskeyService_DeletePasskey_FullMethodName,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(PasskeyServiceServer).DeletePasskey(ctx, req.(*DeletePasskeyRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// PasskeyService_ServiceDesc is the grpc.ServiceDesc for PasskeyService.
var PasskeyService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: "member.auth.v1.PasskeyService",
	HandlerType: (*PasskeyServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "StartRegistration",
			Handler:    _PasskeyService_StartRegistration_Handler,
		},
		{
			MethodName: "CompleteRegistration",
			Handler:    _PasskeyService_CompleteRegistration_Handler,
		},
		{
			MethodName: "StartAuthentication",
			Handler:    _PasskeyService_StartAuthentication_Handler,
		},
		{
			MethodName: "CompleteAuthentication",
			Handler:    _PasskeyService_CompleteAuthentication_Handler,
		},
		{
			MethodName: "ListPasskeys",
			Handler:    _PasskeyService_ListPasskeys_Handler,
		},
		{
			MethodName: "DeletePasskey",
			Handler:    _PasskeyService_DeletePasskey_Handler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "auth/v1/passkey.service",
}

// PasskeyServiceClient is the client API for PasskeyService. Calls use the JSON content subtype.
type PasskeyServiceClient interface {
	StartRegistration(ctx context.Context, in *StartPasskeyRegistrationRequest, opts ...grpc.CallOption) (*StartPasskeyResponse, error)
	CompleteRegistration(ctx context.Context, in *CompletePasskeyRegistrationRequest, opts ...grpc.CallOption) (*CompletePasskeyRegistrationResponse, error)
	StartAuthentication(ctx context.Context, in *StartPasskeyAuthenticationRequest, opts ...grpc.CallOption) (*StartPasskeyResponse, error)
	CompleteAuthentication(ctx context.Context, in *CompletePasskeyAuthenticationRequest, opts ...grpc.CallOption) (*AuthResponse, error)
	ListPasskeys(ctx context.Context, in *ListPasskeysRequest, opts ...grpc.CallOption) (*ListPasskeysResponse, error)
	DeletePasskey(ctx context.Context, in *DeletePasskeyRequest, opts ...grpc.CallOption) (*DeletePasskeyResponse, error)
}

type passkeyServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewPasskeyServiceClient returns a client bound to cc.
func NewPasskeyServiceClient(cc grpc.ClientConnInterface) PasskeyServiceClient {
	return &passkeyServiceClient{cc}
}

func (c *passkeyServiceClient) StartRegistration(ctx context.Context, in *StartPasskeyRegistrationRequest, opts ...grpc.CallOption) (*StartPasskeyResponse, error) {
	out := new(StartPasskeyResponse)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := c.cc.Invoke(ctx, PasskeyService_StartRegistration_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *passkeyServiceClient) CompleteRegistration(ctx context.Context, in *CompletePasskeyRegistrationRequest, opts ...grpc.CallOption) (*CompletePasskeyRegistrationResponse, error) {
	out := new(CompletePasskeyRegistrationResponse)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := c.cc.Invoke(ctx, PasskeyService_CompleteRegistration_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *passkeyServiceClient) StartAuthentication(ctx context.Context, in *StartPasskeyAuthenticationRequest, opts ...grpc.CallOption) (*StartPasskeyResponse, error) {
	out := new(StartPasskeyResponse)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := c.cc.Invoke(ctx, PasskeyService_StartAuthentication_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *passkeyServiceClient) CompleteAuthentication(ctx context.Context, in *CompletePasskeyAuthenticationRequest, opts ...grpc.CallOption) (*AuthResponse, error) {
	out := new(AuthResponse)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := c.cc.Invoke(ctx, PasskeyService_CompleteAuthentication_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *passkeyServiceClient) ListPasskeys(ctx context.Context, in *ListPasskeysRequest, opts ...grpc.CallOption) (*ListPasskeysResponse, error) {
	out := new(ListPasskeysResponse)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := c.cc.Invoke(ctx, PasskeyService_ListPasskeys_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *passkeyServiceClient) DeletePasskey(ctx context.Context, in *DeletePasskeyRequest, opts ...grpc.CallOption) (*DeletePasskeyResponse, error) {
	out := new(DeletePasskeyResponse)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := c.cc.Invoke(ctx, PasskeyService_DeletePasskey_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
