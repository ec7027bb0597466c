package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/seaquake/bitsync/internal/collector"
	"github.com/seaquake/bitsync/internal/config"
	"github.com/seaquake/bitsync/internal/initializer"
)

func main() {
	cfgPath := flag.String("config", "./config.json", "path to the JSON config file")
	mode := flag.String("mode", "update", "sync mode: initial or update")
	startDate := flag.String("start-date", "", "start date (YYYY-MM-DD) for initial mode, overrides the configured lookback")
	intervalMin := flag.Int("interval-min", 0, "minutes between cycles; 0 runs one cycle and exits")
	flag.Parse()

	// Credentials are read from the environment, a local .env file is an
	// optional convenience.
	_ = godotenv.Load()

	opts := initializer.Options{Interval: time.Duration(*intervalMin) * time.Minute}
	switch *mode {
	case string(collector.ModeInitial):
		opts.Mode = collector.ModeInitial
	case string(collector.ModeUpdate):
		opts.Mode = collector.ModeUpdate
	default:
		fmt.Fprintf(os.Stderr, "unknown mode: %v\n", *mode)
		os.Exit(1)
	}
	if *startDate != "" {
		t, err := time.Parse("2006-01-02", *startDate)
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid start date: %v\n", *startDate)
			os.Exit(1)
		}
		t = t.UTC()
		opts.ExplicitStart = &t
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := initializer.Start(ctx, cfg, opts); err != nil {
		fmt.Fprintf(os.Stderr, "app exited with error: %v\n", err)
		os.Exit(1)
	}
}
