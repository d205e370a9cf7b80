// Package introspect is an optional, read-only gRPC control-plane for a
// running Service: group count, thread count, whether main-thread work is
// pending, and the active scheduler's name. It is wired in only by the
// demo CLI behind --grpc.addr; the concurrency core has no knowledge of
// it.
//
// The service descriptor below is hand-written rather than
// protoc-generated, to avoid depending on a protoc toolchain while still
// exercising google.golang.org/grpc and google.golang.org/protobuf for
// real: request/response messages are the well-known wrapper types
// (Int32Value, BoolValue, StringValue) instead of a custom generated
// message set, so there is no .proto schema of our own to keep in sync.
// The handler boilerplate below follows the same shape
// protoc-gen-go-grpc would have produced for such a service.
package introspect

import (
	"context"
	"net"

	grpc_middleware "github.com/grpc-ecosystem/go-grpc-middleware"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/entropyengine/workservice/internal/logging"
)

// Queryable is the narrow read-only surface this service exposes.
// *workservice.Service satisfies it; it is declared here rather than
// imported to keep this package free of a dependency on the root package.
type Queryable interface {
	GroupCount() int
	ThreadCount() int
	HasMainThreadWork() bool
	SchedulerName() string
}

type server struct {
	svc Queryable
}

func (s *server) GroupCount(context.Context, *emptypb.Empty) (*wrapperspb.Int32Value, error) {
	return wrapperspb.Int32(int32(s.svc.GroupCount())), nil
}

func (s *server) ThreadCount(context.Context, *emptypb.Empty) (*wrapperspb.Int32Value, error) {
	return wrapperspb.Int32(int32(s.svc.ThreadCount())), nil
}

func (s *server) HasMainThreadWork(context.Context, *emptypb.Empty) (*wrapperspb.BoolValue, error) {
	return wrapperspb.Bool(s.svc.HasMainThreadWork()), nil
}

func (s *server) SchedulerName(context.Context, *emptypb.Empty) (*wrapperspb.StringValue, error) {
	return wrapperspb.String(s.svc.SchedulerName()), nil
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: "workservice.v1.Introspect",
	HandlerType: (*server)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GroupCount", Handler: groupCountHandler},
		{MethodName: "ThreadCount", Handler: threadCountHandler},
		{MethodName: "HasMainThreadWork", Handler: hasMainThreadWorkHandler},
		{MethodName: "SchedulerName", Handler: schedulerNameHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "workservice/introspect.proto",
}

func groupCountHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(*server).GroupCount(ctx, in)
	}
	return interceptor(ctx, in, &grpc.UnaryServerInfo{Server: srv, FullMethod: "/workservice.v1.Introspect/GroupCount"},
		func(ctx context.Context, req interface{}) (interface{}, error) {
			return srv.(*server).GroupCount(ctx, req.(*emptypb.Empty))
		})
}

func threadCountHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(*server).ThreadCount(ctx, in)
	}
	return interceptor(ctx, in, &grpc.UnaryServerInfo{Server: srv, FullMethod: "/workservice.v1.Introspect/ThreadCount"},
		func(ctx context.Context, req interface{}) (interface{}, error) {
			return srv.(*server).ThreadCount(ctx, req.(*emptypb.Empty))
		})
}

func hasMainThreadWorkHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(*server).HasMainThreadWork(ctx, in)
	}
	return interceptor(ctx, in, &grpc.UnaryServerInfo{Server: srv, FullMethod: "/workservice.v1.Introspect/HasMainThreadWork"},
		func(ctx context.Context, req interface{}) (interface{}, error) {
			return srv.(*server).HasMainThreadWork(ctx, req.(*emptypb.Empty))
		})
}

func schedulerNameHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(*server).SchedulerName(ctx, in)
	}
	return interceptor(ctx, in, &grpc.UnaryServerInfo{Server: srv, FullMethod: "/workservice.v1.Introspect/SchedulerName"},
		func(ctx context.Context, req interface{}) (interface{}, error) {
			return srv.(*server).SchedulerName(ctx, req.(*emptypb.Empty))
		})
}

// Serve starts a gRPC server exposing svc's introspection surface on
// addr (e.g. "127.0.0.1:0" to let the OS pick a port) and returns it
// already serving in the background, along with the listener's bound
// address. Call GracefulStop on the returned *grpc.Server to shut it
// down.
func Serve(addr string, svc Queryable) (*grpc.Server, net.Addr, error) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, nil, err
	}

	logger := logging.GetLogger("introspect")
	srv := grpc.NewServer(
		grpc.UnaryInterceptor(grpc_middleware.ChainUnaryServer(loggingInterceptor(logger))),
	)
	srv.RegisterService(&serviceDesc, &server{svc: svc})

	go func() {
		if err := srv.Serve(lis); err != nil {
			logger.Warn("introspect server stopped", "error", err)
		}
	}()

	return srv, lis.Addr(), nil
}

func loggingInterceptor(logger *logging.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		resp, err := handler(ctx, req)
		if err != nil {
			logger.Error("rpc failed", "method", info.FullMethod, "error", err)
		} else {
			logger.Debug("rpc handled", "method", info.FullMethod)
		}
		return resp, err
	}
}
