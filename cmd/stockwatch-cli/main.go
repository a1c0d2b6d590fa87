package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path"
	"syscall"

	"github.com/google/subcommands"
	"github.com/joho/godotenv"

	"stockwatch/internal/config"
	"stockwatch/internal/util"
	"stockwatch/pkg/stockwatch"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// app is the state shared by every command.
type app struct {
	cfg    *config.Config
	client *stockwatch.Client
	grpc   string
	log    *slog.Logger
	out    io.Writer
}

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

	server := flag.String("server", "http://"+cfg.HTTPAddr(), "base URL of stockwatch-server")
	grpcAddr := flag.String("grpc", cfg.GRPCAddr(), "gRPC address of stockwatch-server")
	verbose := flag.Bool("v", false, "log to stderr")

	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	commander.Register(commander.CommandsCommand(), "")
	commander.Register(&versionCmd{}, "")
	commander.Register(&searchCmd{}, "stocks")
	commander.Register(&showCmd{}, "stocks")
	commander.Register(&historyCmd{}, "stocks")
	commander.Register(&listCmd{}, "watchlist")
	commander.Register(&addCmd{}, "watchlist")
	commander.Register(&removeCmd{}, "watchlist")
	commander.Register(&watchCmd{}, "watchlist")
	commander.Register(&envCmd{}, "settings")
	flag.Parse()

	logger := util.NewLoggerTo(io.Discard, cfg.Logging.Level, "text")
	if *verbose {
		logger = util.NewLoggerTo(os.Stderr, cfg.Logging.Level, "text")
	}

	a := &app{
		cfg:    cfg,
		client: stockwatch.NewClient(*server),
		grpc:   *grpcAddr,
		log:    logger,
		out:    os.Stdout,
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	status := commander.Execute(ctx, a)
	cancel()
	os.Exit(int(status))
}

// appFrom extracts the shared state passed to Execute.
func appFrom(args []interface{}) *app {
	return args[0].(*app)
}
