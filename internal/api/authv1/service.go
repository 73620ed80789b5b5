package authv1

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "authkeeper.v1.AuthService"

// Method names.
const (
	MethodRegister          = "Register"
	MethodLogin             = "Login"
	MethodRotateToken       = "RotateToken"
	MethodLogout            = "Logout"
	MethodIssueCode         = "IssueCode"
	MethodVerifyCode        = "VerifyCode"
	MethodListSessions      = "ListSessions"
	MethodRevokeAll         = "RevokeAll"
	MethodGetIdentityBySlug = "GetIdentityBySlug"
)

// FullMethod returns "/authkeeper.v1.AuthService/<method>".
func FullMethod(method string) string { return "/" + ServiceName + "/" + method }

// AuthServiceServer is the server API for AuthService.
type AuthServiceServer interface {
	Register(context.Context, *RegisterRequest) (*RegisterResponse, error)
	Login(context.Context, *LoginRequest) (*LoginResponse, error)
	RotateToken(context.Context, *RotateTokenRequest) (*RotateTokenResponse, error)
	Logout(context.Context, *LogoutRequest) (*LogoutResponse, error)
	IssueCode(context.Context, *IssueCodeRequest) (*IssueCodeResponse, error)
	VerifyCode(context.Context, *VerifyCodeRequest) (*LoginResponse, error)
	ListSessions(context.Context, *ListSessionsRequest) (*ListSessionsResponse, error)
	RevokeAll(context.Context, *RevokeAllRequest) (*RevokeAllResponse, error)
	GetIdentityBySlug(context.Context, *GetIdentityBySlugRequest) (*GetIdentityBySlugResponse, error)
}

// UnimplementedAuthServiceServer answers every method with codes.Unimplemented.
type UnimplementedAuthServiceServer struct{}

func (UnimplementedAuthServiceServer) Register(context.Context, *RegisterRequest) (*RegisterResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Register not implemented")
}
func (UnimplementedAuthServiceServer) Login(context.Context, *LoginRequest) (*LoginResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Login not implemented")
}
func (UnimplementedAuthServiceServer) RotateToken(context.Context, *RotateTokenRequest) (*RotateTokenResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method RotateToken not implemented")
}
func (UnimplementedAuthServiceServer) Logout(context.Context, *LogoutRequest) (*LogoutResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Logout not implemented")
}
func (UnimplementedAuthServiceServer) IssueCode(context.Context, *IssueCodeRequest) (*IssueCodeResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method IssueCode not implemented")
}
func (UnimplementedAuthServiceServer) VerifyCode(context.Context, *VerifyCodeRequest) (*LoginResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method VerifyCode not implemented")
}
func (UnimplementedAuthServiceServer) ListSessions(context.Context, *ListSessionsRequest) (*ListSessionsResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method ListSessions not implemented")
}
func (UnimplementedAuthServiceServer) RevokeAll(context.Context, *RevokeAllRequest) (*RevokeAllResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method RevokeAll not implemented")
}
func (UnimplementedAuthServiceServer) GetIdentityBySlug(context.Context, *GetIdentityBySlugRequest) (*GetIdentityBySlugResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method GetIdentityBySlug not implemented")
}

// unary builds a method descriptor that decodes Req and dispatches through the
// server's interceptor chain.
func unary[Req, Resp any](name string, call func(AuthServiceServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(AuthServiceServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(name)}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(AuthServiceServer), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// ServiceDesc is the grpc.ServiceDesc for AuthService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AuthServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(MethodRegister, AuthServiceServer.Register),
		unary(MethodLogin, AuthServiceServer.Login),
		unary(MethodRotateToken, AuthServiceServer.RotateToken),
		unary(MethodLogout, AuthServiceServer.Logout),
		unary(MethodIssueCode, AuthServiceServer.IssueCode),
		unary(MethodVerifyCode, AuthServiceServer.VerifyCode),
		unary(MethodListSessions, AuthServiceServer.ListSessions),
		unary(MethodRevokeAll, AuthServiceServer.RevokeAll),
		unary(MethodGetIdentityBySlug, AuthServiceServer.GetIdentityBySlug),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "authkeeper/v1/auth",
}

// RegisterAuthServiceServer registers srv on s.
func RegisterAuthServiceServer(s grpc.ServiceRegistrar, srv AuthServiceServer) {
	s.RegisterService(&ServiceDesc, srv)
}
