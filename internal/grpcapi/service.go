// Package grpcapi exposes an event buffer node as the inputlog.v1.EventQueue
// gRPC service, next to the standard grpc.health.v1 service.
package grpcapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/rmacdonaldsmith/inputlog/internal/control"
	"github.com/rmacdonaldsmith/inputlog/internal/daemon"
	"github.com/rmacdonaldsmith/inputlog/pkg/eventbuf"
)

// Service implements EventQueueServer on top of a daemon node.
type Service struct {
	node   *daemon.Node
	logger *slog.Logger
}

// NewService creates a Service. A nil logger uses slog.Default().
func NewService(node *daemon.Node, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{node: node, logger: logger}
}

// Append stores one event.
func (s *Service) Append(ctx context.Context, in *wrapperspb.StringValue) (*emptypb.Empty, error) {
	s.node.Store().Append(in.GetValue())
	return &emptypb.Empty{}, nil
}

// Drain takes the whole buffer, waiting unless in is true.
func (s *Service) Drain(ctx context.Context, in *wrapperspb.BoolValue) (*wrapperspb.StringValue, error) {
	block, err := s.node.Store().Drain(ctx, in.GetValue())
	if err != nil {
		return nil, toStatus(err)
	}
	if err := ctx.Err(); err != nil {
		s.node.Store().Restore(block)
		return nil, toStatus(fmt.Errorf("%w: %w", eventbuf.ErrInterrupted, err))
	}
	return wrapperspb.String(block), nil
}

// Control executes an administrative command.
func (s *Service) Control(ctx context.Context, in *wrapperspb.UInt32Value) (*emptypb.Empty, error) {
	if err := s.node.Dispatcher().Control(ctx, control.Command(in.GetValue())); err != nil {
		return nil, toStatus(err)
	}
	return &emptypb.Empty{}, nil
}

// Stats returns the buffer counters as a struct.
func (s *Service) Stats(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	stats := s.node.Store().Stats()
	out, err := structpb.NewStruct(map[string]interface{}{
		"capacity":  stats.Capacity,
		"length":    stats.Length,
		"has_data":  stats.HasData,
		"policy":    stats.Policy.String(),
		"appended":  stats.Appended,
		"evicted":   stats.Evicted,
		"rejected":  stats.Rejected,
		"oversized": stats.Oversized,
		"drains":    stats.Drains,
		"resets":    stats.Resets,
	})
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to encode stats: %v", err)
	}
	return out, nil
}

// Watch drains continuously and sends every block to the caller until the
// stream ends or the buffer closes. A block that fails to send is restored
// to the buffer. A send that succeeds only reached the transport, so a
// caller that disconnects right after it can still miss that block.
func (s *Service) Watch(_ *emptypb.Empty, stream EventQueue_WatchServer) error {
	ctx := stream.Context()
	for {
		block, err := s.node.Store().Drain(ctx, false)
		if err != nil {
			if errors.Is(err, eventbuf.ErrInterrupted) {
				return nil
			}
			return toStatus(err)
		}
		if err := stream.Send(wrapperspb.String(block)); err != nil {
			s.node.Store().Restore(block)
			s.logger.Warn("watch send failed, block restored", "bytes", len(block), "error", err)
			return err
		}
	}
}

// toStatus maps buffer errors to gRPC status codes
func toStatus(err error) error {
	switch {
	case errors.Is(err, eventbuf.ErrWouldBlock):
		return status.Error(codes.Unavailable, err.Error())
	case errors.Is(err, eventbuf.ErrInterrupted):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, eventbuf.ErrClosed):
		return status.Error(codes.Aborted, err.Error())
	case errors.Is(err, eventbuf.ErrUnsupportedCommand):
		return status.Error(codes.Unimplemented, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

// fromStatus maps gRPC status codes back to buffer errors
func fromStatus(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	var sentinel error
	switch st.Code() {
	case codes.Unavailable:
		sentinel = eventbuf.ErrWouldBlock
	case codes.Canceled:
		sentinel = eventbuf.ErrInterrupted
	case codes.Aborted:
		sentinel = eventbuf.ErrClosed
	case codes.Unimplemented:
		sentinel = eventbuf.ErrUnsupportedCommand
	default:
		return err
	}
	return errors.Join(sentinel, err)
}

// Verify that Service implements EventQueueServer at compile time
var _ EventQueueServer = (*Service)(nil)
