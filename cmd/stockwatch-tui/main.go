package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"

	"stockwatch/internal/config"
	"stockwatch/internal/live"
	"stockwatch/internal/tui"
	"stockwatch/internal/util"
	"stockwatch/pkg/stockwatch"
)

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
	flag.Parse()

	// The terminal belongs to the UI, so logs go to a file.
	logPath := filepath.Join(os.TempDir(), fmt.Sprintf("stockwatch-tui-%s.log", time.Now().Format("2006-01-02")))
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "opening log file: %v\n", err)
		os.Exit(1)
	}
	defer logFile.Close()
	logger := util.NewLoggerTo(logFile, cfg.Logging.Level, "text")

	feed := live.NewFeed()
	client := live.NewClient(*grpcAddr, feed, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The channel closes if the stream fails, which the model reports.
	updates := client.Follow(ctx)

	reveal := time.Duration(cfg.Display.RevealMillis) * time.Millisecond
	m := tui.New(stockwatch.NewClient(*server), updates, reveal, logger)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
