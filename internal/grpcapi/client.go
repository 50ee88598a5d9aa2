package grpcapi

import (
	"context"
	"errors"
	"fmt"
	"io"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/rmacdonaldsmith/inputlog/internal/control"
	"github.com/rmacdonaldsmith/inputlog/pkg/eventbuf"
)

// Client calls the EventQueue service. Buffer errors come back as the
// eventbuf sentinels, so errors.Is works the same as in-process.
type Client struct {
	conn grpc.ClientConnInterface
}

// NewClient wraps an existing connection.
func NewClient(conn grpc.ClientConnInterface) *Client {
	return &Client{conn: conn}
}

// Dial opens a plaintext connection to target and wraps it. The caller owns
// the returned connection.
func Dial(target string, opts ...grpc.DialOption) (*Client, *grpc.ClientConn, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to %s: %w", target, err)
	}
	return NewClient(conn), conn, nil
}

// Append stores one event.
func (c *Client) Append(ctx context.Context, event string) error {
	return fromStatus(c.conn.Invoke(ctx, MethodAppend, wrapperspb.String(event), new(emptypb.Empty)))
}

// Drain takes the whole buffer.
func (c *Client) Drain(ctx context.Context, nonBlocking bool) (string, error) {
	out := new(wrapperspb.StringValue)
	if err := c.conn.Invoke(ctx, MethodDrain, wrapperspb.Bool(nonBlocking), out); err != nil {
		return "", fromStatus(err)
	}
	return out.GetValue(), nil
}

// Control executes an administrative command.
func (c *Client) Control(ctx context.Context, cmd control.Command) error {
	err := c.conn.Invoke(ctx, MethodControl, wrapperspb.UInt32(uint32(cmd)), new(emptypb.Empty))
	if err != nil {
		return fromStatus(err)
	}
	return nil
}

// Stats returns the buffer counters.
func (c *Client) Stats(ctx context.Context) (eventbuf.Stats, error) {
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, MethodStats, new(emptypb.Empty), out); err != nil {
		return eventbuf.Stats{}, fromStatus(err)
	}

	fields := out.GetFields()
	number := func(key string) uint64 { return uint64(fields[key].GetNumberValue()) }

	policy, err := eventbuf.ParsePolicy(fields["policy"].GetStringValue())
	if err != nil {
		return eventbuf.Stats{}, err
	}
	return eventbuf.Stats{
		Capacity:  int(number("capacity")),
		Length:    int(number("length")),
		HasData:   fields["has_data"].GetBoolValue(),
		Policy:    policy,
		Appended:  number("appended"),
		Evicted:   number("evicted"),
		Rejected:  number("rejected"),
		Oversized: number("oversized"),
		Drains:    number("drains"),
		Resets:    number("resets"),
	}, nil
}

// Watch opens a consumer stream and calls fn for every drained block until
// ctx is done, the server ends the stream, or fn returns an error.
func (c *Client) Watch(ctx context.Context, fn func(block string) error) error {
	stream, err := c.conn.NewStream(ctx, &EventQueue_ServiceDesc.Streams[0], MethodWatch)
	if err != nil {
		return fromStatus(err)
	}
	if err := stream.SendMsg(new(emptypb.Empty)); err != nil {
		return fromStatus(err)
	}
	if err := stream.CloseSend(); err != nil {
		return err
	}

	for {
		block := new(wrapperspb.StringValue)
		if err := stream.RecvMsg(block); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fromStatus(err)
		}
		if err := fn(block.GetValue()); err != nil {
			return err
		}
	}
}
