// Command arbscan collects token prices across centralized, on-chain and
// derivative venues, detects arbitrage opportunities and schedules them. It
// loads configuration, applies command-line overrides, sets up logging and
// signal handling, and starts the application in the configured mode.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/alanyoungcy/pricearb/internal/app"
	"github.com/alanyoungcy/pricearb/internal/config"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to TOML configuration file (defaults apply when empty)")
		mode       = flag.String("mode", "", "operating mode: collect, analyze, full or server")
		file       = flag.String("file", "", "observation log to analyze (implies -mode analyze)")
		investment = flag.Float64("investment", 0, "capital per opportunity in USD")
		window     = flag.Int64("window", 0, "detection window in seconds")
		strategy   = flag.String("strategy", "", "detection strategy: spread, leveraged or complete")
	)
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config",
			slog.String("path", *configPath),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}

	if *mode != "" {
		cfg.Mode = *mode
	}
	if *file != "" {
		cfg.Analyze.File = *file
		if *mode == "" {
			cfg.Mode = "analyze"
		}
	}
	if *investment > 0 {
		cfg.Detector.Investment = *investment
		cfg.Analyze.Investment = *investment
	}
	if *window > 0 {
		cfg.Detector.WindowSeconds = *window
	}
	if *strategy != "" {
		cfg.Detector.Strategy = *strategy
	}

	// Logs go to stderr so an analysis report on stdout stays parseable.
	var out io.Writer = os.Stderr
	if cfg.Log.File != "" {
		rotator := &lumberjack.Logger{
			Filename: cfg.Log.File,
			MaxSize:  cfg.Log.MaxSizeMB,
			MaxAge:   cfg.Log.MaxAgeDays,
			Compress: cfg.Log.Compress,
		}
		defer rotator.Close()
		out = io.MultiWriter(os.Stderr, rotator)
	}
	logger = slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{
		Level: parseLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("arbscan starting",
		slog.String("mode", cfg.Mode),
		slog.String("strategy", cfg.Detector.Strategy),
		slog.String("config", *configPath),
	)

	application := app.New(cfg, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err = application.Run(ctx)
	stop()
	application.Close()

	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("application exited with error", slog.String("error", err.Error()))
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
	logger.Info("arbscan stopped")
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
