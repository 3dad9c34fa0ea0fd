package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// The service carries google.protobuf.Struct bodies so every field alias the HTTP adapter
// accepts works unchanged over gRPC.
const (
	ServiceName         = "hive.telemetry.v1.Telemetry"
	SubmitReadingMethod = "/" + ServiceName + "/SubmitReading"
	GetPolicyMethod     = "/" + ServiceName + "/GetPolicy"
)

type TelemetryServer interface {
	SubmitReading(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetPolicy(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

func RegisterTelemetryServer(s grpc.ServiceRegistrar, srv TelemetryServer) {
	s.RegisterService(&TelemetryServiceDesc, srv)
}

func unaryHandler(fullMethod string, call func(TelemetryServer, context.Context, *structpb.Struct) (*structpb.Struct, error)) func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(TelemetryServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(TelemetryServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

var TelemetryServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*TelemetryServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "SubmitReading",
			Handler:    unaryHandler(SubmitReadingMethod, TelemetryServer.SubmitReading),
		},
		{
			MethodName: "GetPolicy",
			Handler:    unaryHandler(GetPolicyMethod, TelemetryServer.GetPolicy),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "hive/telemetry/v1/telemetry.proto",
}

// TelemetryClient calls the service over any client connection.
type TelemetryClient struct {
	cc grpc.ClientConnInterface
}

func NewTelemetryClient(cc grpc.ClientConnInterface) *TelemetryClient {
	return &TelemetryClient{cc: cc}
}

func (c *TelemetryClient) SubmitReading(ctx context.Context, fields map[string]any, opts ...grpc.CallOption) (*structpb.Struct, error) {
	in, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, SubmitReadingMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *TelemetryClient) GetPolicy(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, GetPolicyMethod, &structpb.Struct{}, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
