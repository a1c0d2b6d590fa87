package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"stockwatch/internal/broker"
	"stockwatch/internal/config"
	"stockwatch/internal/finance"
	"stockwatch/internal/httpapi"
	"stockwatch/internal/live"
	"stockwatch/internal/mapper"
	"stockwatch/internal/repository"
	"stockwatch/internal/store"
	"stockwatch/internal/uimodel"
	"stockwatch/internal/util"
)

const shutdownTimeout = 5 * time.Second

func main() {
	_ = godotenv.Load()

	cfgPath := "config/stockwatch.yaml"
	if p := os.Getenv("STOCKWATCH_CONFIG"); p != "" {
		cfgPath = p
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading config: %v\n", err)
		os.Exit(1)
	}

	logger := util.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	util.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	for _, dir := range []string{cfg.Storage.DataDir, filepath.Dir(cfg.Storage.SQLitePath)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	db, err := store.NewSQLiteStore(cfg.Storage.SQLitePath)
	if err != nil {
		return fmt.Errorf("opening sqlite: %w", err)
	}
	defer db.Close()

	env, err := db.GetPreference(ctx, store.PreferenceKeyEnvironment)
	switch {
	case err == nil:
		if err := cfg.SelectEnvironment(env); err != nil {
			logger.Warn("ignoring persisted environment", "value", env, "error", err)
		}
	case errors.Is(err, store.ErrNotFound):
	default:
		return fmt.Errorf("reading environment preference: %w", err)
	}

	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	res := uimodel.DefaultResources()
	if cfg.Display.StringsFile != "" {
		catalog, err := uimodel.LoadCatalog(cfg.Display.StringsFile)
		if err != nil {
			return fmt.Errorf("loading strings: %w", err)
		}
		res = catalog
	}

	api := finance.NewClient(finance.Options{
		BaseURL:         cfg.BaseURL(),
		APIKey:          cfg.API.APIKey,
		Engine:          cfg.API.Engine,
		Timeout:         time.Duration(cfg.API.TimeoutSeconds) * time.Second,
		RateLimitPerMin: cfg.API.RateLimitPerMin,
		Logger:          logger,
	})

	var mirror broker.Mirror
	if cfg.Alpaca.APIKey != "" {
		mirror = broker.NewAlpacaMirror(cfg.Alpaca.APIKey, cfg.Alpaca.APISecret, cfg.Alpaca.BaseURL, cfg.Alpaca.WatchlistName, logger)
		logger.Info("mirroring watchlist", "mirror", mirror.Name(), "watchlist", cfg.Alpaca.WatchlistName)
	}

	feed := live.NewFeed()
	stocks := repository.NewStockRepository(api, mapper.New(loc, cfg.Display.HorizontalLabels), store.NewParquetStore(cfg.Storage.DataDir), logger)
	watchlist := repository.NewWatchlistRepository(db, feed, mirror, logger)
	if err := watchlist.Refresh(ctx); err != nil {
		return err
	}
	if mirror != nil {
		go func() {
			if _, err := watchlist.SyncMirror(ctx); err != nil {
				logger.Warn("syncing mirror", "mirror", mirror.Name(), "error", err)
			}
		}()
	}

	reveal := time.Duration(cfg.Display.RevealMillis) * time.Millisecond
	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           httpapi.NewServer(stocks, watchlist, res, reveal, logger).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		// SSE streams end with the server context.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	grpcSrv := grpc.NewServer()
	live.NewServer(feed, logger).RegisterGRPC(grpcSrv)
	lis, err := net.Listen("tcp", cfg.GRPCAddr())
	if err != nil {
		return fmt.Errorf("listening on %s: %w", cfg.GRPCAddr(), err)
	}

	logger.Info("stockwatch-server starting",
		"http", cfg.HTTPAddr(),
		"grpc", cfg.GRPCAddr(),
		"environment", cfg.API.Environment,
		"baseURL", cfg.BaseURL(),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := grpcSrv.Serve(lis); err != nil {
			return fmt.Errorf("grpc server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		// Watch streams only end when their connection closes.
		grpcSrv.Stop()
		return httpSrv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
