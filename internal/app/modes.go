package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

// ErrNoInput is returned by analyze mode when no log file is configured.
var ErrNoInput = errors.New("app: analyze mode needs an observation log file")

// CollectMode runs the per-family collection loops and, when enabled, the
// daily archive.
func (a *App) CollectMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting collect mode")

	orch, cleanup, err := a.buildOrchestrator(ctx, deps)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, cleanup)
	return orch.Run(ctx)
}

// AnalyzeMode analyses one observation log and writes the JSON report.
func (a *App) AnalyzeMode(ctx context.Context, deps *Dependencies) error {
	if a.cfg.Analyze.File == "" {
		return ErrNoInput
	}
	svc, err := a.buildAnalysis(deps)
	if err != nil {
		return err
	}

	rep, err := svc.AnalyzeFile(ctx, a.cfg.Analyze.File)
	if err != nil {
		return err
	}
	if rep.Read.Skipped > 0 {
		a.logger.WarnContext(ctx, "malformed rows skipped",
			slog.String("file", a.cfg.Analyze.File),
			slog.Int("skipped", rep.Read.Skipped),
		)
	}

	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rep); err != nil {
		return fmt.Errorf("app: write report: %w", err)
	}
	return nil
}

// FullMode collects, analyses the rolling log periodically and serves the
// API when enabled.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	orch, cleanup, err := a.buildOrchestrator(ctx, deps)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, cleanup)

	svc, err := a.buildAnalysis(deps)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return orch.Run(ctx)
	})
	g.Go(func() error {
		err := svc.RunLoop(ctx, a.cfg.Detector.AnalyzeInterval.Duration,
			a.cfg.ObsLog.Dir, a.cfg.ObsLog.Prefix, a.cfg.Detector.Lookback.Duration)
		if ctx.Err() != nil {
			return nil // clean shutdown
		}
		return err
	})
	if a.cfg.Server.Enabled {
		a.startServer(ctx, g, deps)
	}
	return g.Wait()
}

// ServerMode serves the HTTP API and the WebSocket stream only.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode")
	g, ctx := errgroup.WithContext(ctx)
	a.startServer(ctx, g, deps)
	return g.Wait()
}

func (a *App) startServer(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	srv, hub := a.buildServer(deps)
	if hub != nil {
		g.Go(func() error {
			err := hub.Run(ctx)
			if ctx.Err() != nil {
				return nil // clean shutdown
			}
			return err
		})
	}
	g.Go(func() error {
		return srv.Run(ctx)
	})
}
