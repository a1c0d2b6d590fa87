package live

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"stockwatch/internal/domain"
)

// Client connects to a Watchlist gRPC server and mirrors the server-side
// feed into a local Feed.
type Client struct {
	addr     string
	feed     *Feed
	log      *slog.Logger
	dialOpts []grpc.DialOption
}

// NewClient creates a client targeting the given gRPC address. Extra dial
// options are appended after insecure transport credentials.
func NewClient(addr string, feed *Feed, log *slog.Logger, opts ...grpc.DialOption) *Client {
	dialOpts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	}, opts...)
	return &Client{addr: addr, feed: feed, log: log, dialOpts: dialOpts}
}

// List fetches the current watchlist once.
func (c *Client) List(ctx context.Context) ([]domain.Stock, error) {
	conn, err := grpc.NewClient(c.addr, c.dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", c.addr, err)
	}
	defer conn.Close()

	out := new(structpb.ListValue)
	if err := conn.Invoke(ctx, listMethod, &emptypb.Empty{}, out); err != nil {
		return nil, fmt.Errorf("listing watchlist: %w", err)
	}
	return StocksFromProto(out), nil
}

// Sync connects to the gRPC server and streams watchlist updates into the
// local feed. It blocks until ctx is cancelled or the stream ends.
func (c *Client) Sync(ctx context.Context) error {
	conn, err := grpc.NewClient(c.addr, c.dialOpts...)
	if err != nil {
		return fmt.Errorf("connecting to %s: %w", c.addr, err)
	}
	defer conn.Close()

	cs, err := conn.NewStream(ctx, &watchlistServiceDesc.Streams[0], watchMethod)
	if err != nil {
		return fmt.Errorf("starting stream: %w", err)
	}
	stream := &grpc.GenericClientStream[emptypb.Empty, structpb.ListValue]{ClientStream: cs}
	if err := stream.SendMsg(&emptypb.Empty{}); err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	if err := stream.CloseSend(); err != nil {
		return fmt.Errorf("closing send: %w", err)
	}

	c.log.Info("connected to watchlist stream", "addr", c.addr)

	for {
		lv, err := stream.Recv()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("receiving watchlist: %w", err)
		}
		c.feed.Publish(StocksFromProto(lv))
	}
}

// Follow runs Sync in the background and returns the local feed's updates.
// The channel closes when ctx is done or when Sync stops for any reason,
// so a consumer sees a lost or unreachable server as a closed stream.
func (c *Client) Follow(ctx context.Context) <-chan []domain.Stock {
	ctx, stop := context.WithCancel(ctx)
	updates := c.feed.Watch(ctx)
	go func() {
		defer stop()
		if err := c.Sync(ctx); err != nil && ctx.Err() == nil {
			c.log.Error("sync error", "addr", c.addr, "error", err)
		}
	}()
	return updates
}
