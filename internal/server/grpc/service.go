package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "picshare.v1.MediaService"

// Method names of ServiceName.
const (
	MethodRegister       = "Register"
	MethodLogin          = "Login"
	MethodLogout         = "Logout"
	MethodChangePassword = "ChangePassword"
	MethodRename         = "Rename"
	MethodUpload         = "Upload"
	MethodListPublic     = "ListPublic"
	MethodListMine       = "ListMine"
	MethodFetch          = "Fetch"
)

// FullMethod returns "/picshare.v1.MediaService/<name>".
func FullMethod(name string) string {
	return "/" + ServiceName + "/" + name
}

// The messages are protobuf well-known types, so the service is declared by
// hand instead of from generated stubs.
var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*any)(nil),
	Methods: []grpc.MethodDesc{
		unary(MethodRegister, newStruct, (*GRPCServer).Register),
		unary(MethodLogin, newStruct, (*GRPCServer).Login),
		unary(MethodLogout, newEmpty, (*GRPCServer).Logout),
		unary(MethodChangePassword, newStruct, (*GRPCServer).ChangePassword),
		unary(MethodRename, newStruct, (*GRPCServer).Rename),
		unary(MethodUpload, newBytes, (*GRPCServer).Upload),
		unary(MethodListPublic, newEmpty, (*GRPCServer).ListPublic),
		unary(MethodListMine, newEmpty, (*GRPCServer).ListMine),
		unary(MethodFetch, newString, (*GRPCServer).Fetch),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "picshare/v1/media.proto",
}

func newStruct() *structpb.Struct        { return new(structpb.Struct) }
func newEmpty() *emptypb.Empty           { return new(emptypb.Empty) }
func newBytes() *wrapperspb.BytesValue   { return new(wrapperspb.BytesValue) }
func newString() *wrapperspb.StringValue { return new(wrapperspb.StringValue) }

// unary adapts a typed handler method to grpc.MethodDesc, running it through
// the server's interceptor chain the same way generated code does.
func unary[Req any, Resp any](name string, newReq func() Req, call func(*GRPCServer, context.Context, Req) (Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := newReq()
			if err := dec(in); err != nil {
				return nil, err
			}
			s := srv.(*GRPCServer)
			handler := func(ctx context.Context, req any) (any, error) {
				resp, err := call(s, ctx, req.(Req))
				if err != nil {
					return nil, err
				}
				return resp, nil
			}
			if interceptor == nil {
				return handler(ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(name)}
			return interceptor(ctx, in, info, handler)
		},
	}
}
