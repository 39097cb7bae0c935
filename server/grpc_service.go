package server

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// CompilerServer is the server API of the compiler service as seen by
// gRPC.
type CompilerServer interface {
	Compile(context.Context, *wrapperspb.StringValue) (*wrapperspb.BytesValue, error)
	Run(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// CompilerServiceDesc describes the compiler service for grpc.Server. The
// messages are protobuf well-known types, so no generated code is needed.
var CompilerServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*CompilerServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Compile", Handler: compileGRPCHandler},
		{MethodName: "Run", Handler: runGRPCHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "paxy/v1/compiler.proto",
}

// RegisterGRPC registers svc on s.
func RegisterGRPC(s grpc.ServiceRegistrar, svc *CompileService) {
	s.RegisterService(&CompilerServiceDesc, grpcCompiler{svc})
}

// grpcCompiler adapts CompileService to CompilerServer.
type grpcCompiler struct {
	svc *CompileService
}

func (g grpcCompiler) Compile(ctx context.Context, req *wrapperspb.StringValue) (*wrapperspb.BytesValue, error) {
	resp, err := g.svc.compileMessage(ctx, req)
	if err != nil {
		return nil, grpcError(err)
	}
	return resp, nil
}

func (g grpcCompiler) Run(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	resp, err := g.svc.runMessage(ctx, req)
	if err != nil {
		return nil, grpcError(err)
	}
	return resp, nil
}

func grpcError(err error) error {
	return status.Error(codes.Code(errorCode(err)), err.Error())
}

func compileGRPCHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(CompilerServer).Compile(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: CompileProcedure}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(CompilerServer).Compile(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

func runGRPCHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(CompilerServer).Run(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: RunProcedure}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(CompilerServer).Run(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// ---------------------------------------------------------------------------
// Client
// ---------------------------------------------------------------------------

// GRPCClient calls the compiler service over a gRPC connection.
type GRPCClient struct {
	cc grpc.ClientConnInterface
}

// NewGRPCClient wraps cc.
func NewGRPCClient(cc grpc.ClientConnInterface) *GRPCClient {
	return &GRPCClient{cc: cc}
}

// Compile returns the encoded unit for source.
func (c *GRPCClient) Compile(ctx context.Context, source string, opts ...grpc.CallOption) ([]byte, error) {
	out := new(wrapperspb.BytesValue)
	if err := c.cc.Invoke(ctx, CompileProcedure, wrapperspb.String(source), out, opts...); err != nil {
		return nil, err
	}
	return out.GetValue(), nil
}

// Run executes source remotely. The result carries "stdout" and, when the
// program failed, "error", "kind" and "line".
func (c *GRPCClient) Run(ctx context.Context, source, stdin string, opts ...grpc.CallOption) (*structpb.Struct, error) {
	in, err := structpb.NewStruct(map[string]interface{}{"source": source, "stdin": stdin})
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, RunProcedure, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
