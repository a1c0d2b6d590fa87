package live

import (
	"context"
	"io"
	"log/slog"
	"net"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/test/bufconn"

	"stockwatch/internal/domain"
)

func startTestServer(t *testing.T, feed *Feed) *bufconn.Listener {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	gs := grpc.NewServer()
	NewServer(feed, slog.New(slog.NewTextHandler(io.Discard, nil))).RegisterGRPC(gs)
	go gs.Serve(lis)
	t.Cleanup(gs.Stop)
	return lis
}

func bufDialer(lis *bufconn.Listener) grpc.DialOption {
	return grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
		return lis.DialContext(ctx)
	})
}

func TestStocksProtoRoundTrip(t *testing.T) {
	added := time.Date(2026, 10, 16, 13, 30, 0, 0, time.UTC)
	in := []domain.Stock{{ID: 7, Name: "Apple Inc", Symbol: "AAPL", Exchange: "NASDAQ", AddedAt: added}}

	lv, err := StocksToProto(in)
	if err != nil {
		t.Fatalf("StocksToProto: %v", err)
	}
	out := StocksFromProto(lv)
	if len(out) != 1 {
		t.Fatalf("round trip returned %d stocks", len(out))
	}
	got := out[0]
	if got.ID != 7 || got.Name != "Apple Inc" || got.Symbol != "AAPL" || got.Exchange != "NASDAQ" || !got.AddedAt.Equal(added) {
		t.Errorf("round trip = %+v, want %+v", got, in[0])
	}
}

func TestGRPCList(t *testing.T) {
	feed := NewFeed()
	feed.Publish(stocks("AAPL", "MSFT"))
	lis := startTestServer(t, feed)

	c := NewClient("passthrough:///bufnet", NewFeed(), slog.New(slog.NewTextHandler(io.Discard, nil)), bufDialer(lis))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	got, err := c.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 2 || got[0].Symbol != "AAPL" || got[1].Symbol != "MSFT" {
		t.Errorf("List = %+v", got)
	}
}

func TestGRPCSyncMirrorsFeed(t *testing.T) {
	serverFeed := NewFeed()
	serverFeed.Publish(stocks("AAPL"))
	lis := startTestServer(t, serverFeed)

	local := NewFeed()
	sub, ch := local.Subscribe(8)
	defer local.Unsubscribe(sub)
	recv(t, ch) // local initial empty list

	c := NewClient("passthrough:///bufnet", local, slog.New(slog.NewTextHandler(io.Discard, nil)), bufDialer(lis))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Sync(ctx) }()

	got := recv(t, ch)
	if len(got) != 1 || got[0].Symbol != "AAPL" {
		t.Fatalf("first synced list = %+v", got)
	}

	serverFeed.Publish(stocks("AAPL", "GOOGL"))
	got = recv(t, ch)
	if len(got) != 2 || got[1].Symbol != "GOOGL" {
		t.Errorf("second synced list = %+v", got)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Sync returned %v after cancel", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Sync did not return after cancel")
	}
}

func TestFollowClosesWhenServerUnreachable(t *testing.T) {
	lis := bufconn.Listen(1 << 20)
	lis.Close()

	c := NewClient("passthrough:///bufnet", NewFeed(), slog.New(slog.NewTextHandler(io.Discard, nil)), bufDialer(lis))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := c.Follow(ctx)
	deadline := time.After(5 * time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("updates still open after sync failed")
		}
	}
}

func TestFollowDeliversServerList(t *testing.T) {
	serverFeed := NewFeed()
	serverFeed.Publish(stocks("AAPL", "MSFT"))
	lis := startTestServer(t, serverFeed)

	c := NewClient("passthrough:///bufnet", NewFeed(), slog.New(slog.NewTextHandler(io.Discard, nil)), bufDialer(lis))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := c.Follow(ctx)
	for {
		got := recv(t, ch)
		if len(got) == 2 {
			break
		}
	}
	cancel()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("updates not closed after cancel")
	}
}
