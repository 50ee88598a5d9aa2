package grpcapi

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "inputlog.v1.EventQueue"

// Full method names.
const (
	MethodAppend  = "/" + ServiceName + "/Append"
	MethodDrain   = "/" + ServiceName + "/Drain"
	MethodControl = "/" + ServiceName + "/Control"
	MethodStats   = "/" + ServiceName + "/Stats"
	MethodWatch   = "/" + ServiceName + "/Watch"
)

// EventQueueServer is the server API for the EventQueue service. Messages
// are protobuf well-known types, so no generated code is needed.
type EventQueueServer interface {
	// Append stores one event description.
	Append(context.Context, *wrapperspb.StringValue) (*emptypb.Empty, error)
	// Drain takes the whole buffer; the argument is the non-blocking flag.
	Drain(context.Context, *wrapperspb.BoolValue) (*wrapperspb.StringValue, error)
	// Control executes an administrative command number.
	Control(context.Context, *wrapperspb.UInt32Value) (*emptypb.Empty, error)
	// Stats returns a snapshot of the buffer counters.
	Stats(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	// Watch drains continuously and sends each block.
	Watch(*emptypb.Empty, EventQueue_WatchServer) error
}

// EventQueue_WatchServer is the server side of a Watch stream.
type EventQueue_WatchServer interface {
	Send(*wrapperspb.StringValue) error
	grpc.ServerStream
}

type eventQueueWatchServer struct {
	grpc.ServerStream
}

func (x *eventQueueWatchServer) Send(m *wrapperspb.StringValue) error {
	return x.ServerStream.SendMsg(m)
}

// RegisterEventQueueServer registers srv with s.
func RegisterEventQueueServer(s grpc.ServiceRegistrar, srv EventQueueServer) {
	s.RegisterService(&EventQueue_ServiceDesc, srv)
}

// unaryHandler builds a grpc.MethodDesc handler for one unary method.
func unaryHandler[Req any, Resp any](fullMethod string, call func(EventQueueServer, context.Context, *Req) (*Resp, error)) func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(EventQueueServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(EventQueueServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

func watchHandler(srv interface{}, stream grpc.ServerStream) error {
	m := new(emptypb.Empty)
	if err := stream.RecvMsg(m); err != nil {
		return err
	}
	return srv.(EventQueueServer).Watch(m, &eventQueueWatchServer{stream})
}

// EventQueue_ServiceDesc describes the EventQueue service.
var EventQueue_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*EventQueueServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Append",
			Handler: unaryHandler(MethodAppend, func(s EventQueueServer, ctx context.Context, in *wrapperspb.StringValue) (*emptypb.Empty, error) {
				return s.Append(ctx, in)
			}),
		},
		{
			MethodName: "Drain",
			Handler: unaryHandler(MethodDrain, func(s EventQueueServer, ctx context.Context, in *wrapperspb.BoolValue) (*wrapperspb.StringValue, error) {
				return s.Drain(ctx, in)
			}),
		},
		{
			MethodName: "Control",
			Handler: unaryHandler(MethodControl, func(s EventQueueServer, ctx context.Context, in *wrapperspb.UInt32Value) (*emptypb.Empty, error) {
				return s.Control(ctx, in)
			}),
		},
		{
			MethodName: "Stats",
			Handler: unaryHandler(MethodStats, func(s EventQueueServer, ctx context.Context, in *emptypb.Empty) (*structpb.Struct, error) {
				return s.Stats(ctx, in)
			}),
		},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Watch",
			Handler:       watchHandler,
			ServerStreams: true,
		},
	},
	Metadata: "inputlog/v1/eventqueue.proto",
}
