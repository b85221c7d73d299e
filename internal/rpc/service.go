package rpc

import (
	"context"

	"google.golang.org/grpc"
)

const ServiceName = "gophauth.AuthService"

// Full method names, as seen by interceptors.
const (
	MethodLogin     = "/" + ServiceName + "/Login"
	MethodRegister  = "/" + ServiceName + "/Register"
	MethodRefresh   = "/" + ServiceName + "/Refresh"
	MethodLogout    = "/" + ServiceName + "/Logout"
	MethodLogoutAll = "/" + ServiceName + "/LogoutAll"
	MethodMe        = "/" + ServiceName + "/Me"
)

// AuthServiceServer is implemented by the server.
type AuthServiceServer interface {
	Login(context.Context, *LoginRequest) (*AuthResponse, error)
	Register(context.Context, *RegisterRequest) (*AuthResponse, error)
	Refresh(context.Context, *RefreshRequest) (*TokenResponse, error)
	Logout(context.Context, *LogoutRequest) (*Empty, error)
	LogoutAll(context.Context, *Empty) (*LogoutAllResponse, error)
	Me(context.Context, *Empty) (*MeResponse, error)
}

func RegisterAuthServiceServer(s grpc.ServiceRegistrar, srv AuthServiceServer) {
	s.RegisterService(&AuthServiceDesc, srv)
}

// unary adapts a typed method to a grpc.MethodHandler.
func unary[Req, Resp any](fullMethod string, call func(AuthServiceServer, context.Context, *Req) (*Resp, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(AuthServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(AuthServiceServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

var AuthServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AuthServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Login", Handler: unary(MethodLogin, AuthServiceServer.Login)},
		{MethodName: "Register", Handler: unary(MethodRegister, AuthServiceServer.Register)},
		{MethodName: "Refresh", Handler: unary(MethodRefresh, AuthServiceServer.Refresh)},
		{MethodName: "Logout", Handler: unary(MethodLogout, AuthServiceServer.Logout)},
		{MethodName: "LogoutAll", Handler: unary(MethodLogoutAll, AuthServiceServer.LogoutAll)},
		{MethodName: "Me", Handler: unary(MethodMe, AuthServiceServer.Me)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "gophauth/auth.json",
}
