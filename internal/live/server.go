package live

import (
	"context"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"stockwatch/internal/domain"
)

// Full method names of the Watchlist gRPC service. The service exchanges
// protobuf well-known types so that no generated code is needed.
const (
	serviceName     = "stockwatch.Watchlist"
	listMethod      = "/" + serviceName + "/List"
	watchMethod     = "/" + serviceName + "/Watch"
	watchBufferSize = 16
)

// WatchlistServer is the server API of the Watchlist service.
type WatchlistServer interface {
	List(context.Context, *emptypb.Empty) (*structpb.ListValue, error)
	Watch(*emptypb.Empty, grpc.ServerStreamingServer[structpb.ListValue]) error
}

var watchlistServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*WatchlistServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "List", Handler: listHandler},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "Watch", Handler: watchHandler, ServerStreams: true},
	},
	Metadata: "stockwatch/watchlist",
}

func listHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(WatchlistServer).List(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: listMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(WatchlistServer).List(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func watchHandler(srv any, stream grpc.ServerStream) error {
	in := new(emptypb.Empty)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(WatchlistServer).Watch(in, &grpc.GenericServerStream[emptypb.Empty, structpb.ListValue]{ServerStream: stream})
}

// Server implements the Watchlist gRPC service on top of a Feed.
type Server struct {
	feed *Feed
	log  *slog.Logger
}

var _ WatchlistServer = (*Server)(nil)

// NewServer creates a gRPC server backed by the given Feed.
func NewServer(feed *Feed, log *slog.Logger) *Server {
	return &Server{feed: feed, log: log}
}

// RegisterGRPC registers the server on the given gRPC server instance.
func (s *Server) RegisterGRPC(gs *grpc.Server) {
	gs.RegisterService(&watchlistServiceDesc, s)
}

// List returns the current watchlist.
func (s *Server) List(_ context.Context, _ *emptypb.Empty) (*structpb.ListValue, error) {
	return StocksToProto(s.feed.Snapshot())
}

// Watch sends the current watchlist, then the full list after every change.
// The stream ends when the client disconnects.
func (s *Server) Watch(_ *emptypb.Empty, stream grpc.ServerStreamingServer[structpb.ListValue]) error {
	subID, ch := s.feed.Subscribe(watchBufferSize)
	defer s.feed.Unsubscribe(subID)

	s.log.Info("grpc client subscribed", "subID", subID, "subscribers", s.feed.Subscribers())

	ctx := stream.Context()
	for {
		select {
		case <-ctx.Done():
			s.log.Info("grpc client disconnected", "subID", subID)
			return nil
		case stocks, ok := <-ch:
			if !ok {
				return nil
			}
			msg, err := StocksToProto(stocks)
			if err != nil {
				return err
			}
			if err := stream.Send(msg); err != nil {
				return err
			}
		}
	}
}

// StocksToProto encodes a watchlist as a ListValue of Structs.
func StocksToProto(stocks []domain.Stock) (*structpb.ListValue, error) {
	out := &structpb.ListValue{Values: make([]*structpb.Value, 0, len(stocks))}
	for _, st := range stocks {
		s, err := structpb.NewStruct(map[string]any{
			"id":       st.ID,
			"name":     st.Name,
			"symbol":   st.Symbol,
			"exchange": st.Exchange,
			"addedAt":  st.AddedAt.UTC().Format(time.RFC3339Nano),
		})
		if err != nil {
			return nil, err
		}
		out.Values = append(out.Values, structpb.NewStructValue(s))
	}
	return out, nil
}

// StocksFromProto decodes a ListValue produced by StocksToProto.
func StocksFromProto(lv *structpb.ListValue) []domain.Stock {
	stocks := make([]domain.Stock, 0, len(lv.GetValues()))
	for _, v := range lv.GetValues() {
		f := v.GetStructValue().GetFields()
		st := domain.Stock{
			ID:       int64(f["id"].GetNumberValue()),
			Name:     f["name"].GetStringValue(),
			Symbol:   f["symbol"].GetStringValue(),
			Exchange: f["exchange"].GetStringValue(),
		}
		if t, err := time.Parse(time.RFC3339Nano, f["addedAt"].GetStringValue()); err == nil {
			st.AddedAt = t
		}
		stocks = append(stocks, st)
	}
	return stocks
}
