package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

// Loop pairs a collector with its pass interval.
type Loop struct {
	Collector *Collector
	Interval  time.Duration
}

// Orchestrator runs every collection loop and the archive cron side by side.
type Orchestrator struct {
	loops       []Loop
	archiver    *Archiver
	archiveCron string
	logger      *slog.Logger
}

// NewOrchestrator creates an Orchestrator. archiver may be nil.
func NewOrchestrator(loops []Loop, archiver *Archiver, archiveCron string, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		loops:       loops,
		archiver:    archiver,
		archiveCron: archiveCron,
		logger:      logger.With(slog.String("component", "orchestrator")),
	}
}

// Run starts all loops in an errgroup. Loops only stop on cancellation, so
// Run returns nil on a clean shutdown and the first real error otherwise.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.logger.Info("collection orchestrator starting",
		slog.Int("loops", len(o.loops)),
		slog.Bool("archiver", o.archiver != nil),
	)

	g, ctx := errgroup.WithContext(ctx)

	for _, l := range o.loops {
		g.Go(func() error {
			o.logger.Info("starting collector loop",
				slog.String("family", l.Collector.Name()),
				slog.Duration("interval", l.Interval),
			)
			err := l.Collector.RunLoop(ctx, l.Interval)
			if ctx.Err() != nil {
				return nil // clean shutdown
			}
			return fmt.Errorf("collector %s: %w", l.Collector.Name(), err)
		})
	}

	if o.archiver != nil {
		g.Go(func() error {
			err := o.archiver.RunCron(ctx, o.archiveCron)
			if ctx.Err() != nil {
				return nil // clean shutdown
			}
			return fmt.Errorf("archiver: %w", err)
		})
	}

	if err := g.Wait(); err != nil {
		o.logger.Error("collection orchestrator stopped with error", slog.String("error", err.Error()))
		return err
	}
	o.logger.Info("collection orchestrator stopped cleanly")
	return nil
}
