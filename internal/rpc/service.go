// Package rpc describes the conduit.AccountService gRPC service shared by
// the server and the CLI client. Requests and responses are
// google.protobuf.Struct messages carrying the same JSON documents as the
// REST API.
package rpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const ServiceName = "conduit.AccountService"

// Full method names.
const (
	MethodRegister     = "/" + ServiceName + "/Register"
	MethodLogin        = "/" + ServiceName + "/Login"
	MethodCurrentUser  = "/" + ServiceName + "/CurrentUser"
	MethodUpdateUser   = "/" + ServiceName + "/UpdateUser"
	MethodAvatarUpload = "/" + ServiceName + "/AvatarUpload"
)

// AccountServiceServer is implemented by the gRPC transport.
type AccountServiceServer interface {
	Register(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Login(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CurrentUser(context.Context, *structpb.Struct) (*structpb.Struct, error)
	UpdateUser(context.Context, *structpb.Struct) (*structpb.Struct, error)
	AvatarUpload(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type unaryCall func(AccountServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(fullMethod string, call unaryCall) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(AccountServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(AccountServiceServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// AccountServiceDesc is registered with grpc.Server.RegisterService.
var AccountServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AccountServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Register", Handler: unaryHandler(MethodRegister, AccountServiceServer.Register)},
		{MethodName: "Login", Handler: unaryHandler(MethodLogin, AccountServiceServer.Login)},
		{MethodName: "CurrentUser", Handler: unaryHandler(MethodCurrentUser, AccountServiceServer.CurrentUser)},
		{MethodName: "UpdateUser", Handler: unaryHandler(MethodUpdateUser, AccountServiceServer.UpdateUser)},
		{MethodName: "AvatarUpload", Handler: unaryHandler(MethodAvatarUpload, AccountServiceServer.AvatarUpload)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "conduit/account.proto",
}

// RegisterAccountServiceServer attaches srv to s.
func RegisterAccountServiceServer(s grpc.ServiceRegistrar, srv AccountServiceServer) {
	s.RegisterService(&AccountServiceDesc, srv)
}
