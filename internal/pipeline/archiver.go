package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"strings"
	"time"

	"github.com/alanyoungcy/pricearb/internal/domain"
	"github.com/alanyoungcy/pricearb/internal/obslog"
)

// ArchiverConfig wires an Archiver. Blob is required; Existing and Locks
// are optional.
type ArchiverConfig struct {
	Dir       string
	LogPrefix string
	KeyPrefix string
	Parquet   bool
	LockTTL   time.Duration

	// Reader parses the log for the Parquet copy; nil means
	// obslog.NewReader().
	Reader *obslog.Reader

	Blob     domain.BlobWriter
	Existing domain.BlobReader
	Locks    domain.LockManager
	Logger   *slog.Logger
	Now      func() time.Time
}

// Archiver ships closed daily observation logs to object storage.
type Archiver struct {
	cfg    ArchiverConfig
	logger *slog.Logger
}

// ArchiveResult reports what a run uploaded.
type ArchiveResult struct {
	Day     string
	Keys    []string
	Rows    int
	Skipped bool
	Reason  string
	// Replaced is set when a stored copy of a different size was overwritten.
	Replaced bool
}

// NewArchiver creates an Archiver.
func NewArchiver(cfg ArchiverConfig) *Archiver {
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "observations"
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 10 * time.Minute
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Reader == nil {
		cfg.Reader = obslog.NewReader()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Archiver{cfg: cfg, logger: logger.With(slog.String("component", "archiver"))}
}

// ObjectKey returns the storage key for a daily log file name, e.g.
// observations/2025/07/unified_prices_20250728.csv.
func ObjectKey(keyPrefix string, day time.Time, name string) string {
	day = day.UTC()
	return path.Join(keyPrefix, day.Format("2006"), day.Format("01"), name)
}

// Run archives yesterday's log, the most recent file that is closed.
func (a *Archiver) Run(ctx context.Context) error {
	day := a.cfg.Now().UTC().AddDate(0, 0, -1)
	res, err := a.ArchiveDay(ctx, day)
	if err != nil {
		return err
	}
	if res.Skipped {
		a.logger.Info("archive run skipped", slog.String("day", res.Day), slog.String("reason", res.Reason))
		return nil
	}
	a.logger.Info("archive run complete",
		slog.String("day", res.Day),
		slog.Int("rows", res.Rows),
		slog.Any("keys", res.Keys),
	)
	return nil
}

// ArchiveDay uploads the CSV log for day and, when enabled, a Parquet copy.
// Missing files and days locked by another instance are skipped without
// error, as are days whose stored CSV matches the local size.
func (a *Archiver) ArchiveDay(ctx context.Context, day time.Time) (ArchiveResult, error) {
	name := obslog.FileName(a.cfg.LogPrefix, day)
	res := ArchiveResult{Day: day.UTC().Format("20060102")}
	csvKey := ObjectKey(a.cfg.KeyPrefix, day, name)

	raw, err := os.ReadFile(obslog.Path(a.cfg.Dir, a.cfg.LogPrefix, day))
	if errors.Is(err, fs.ErrNotExist) {
		res.Skipped, res.Reason = true, "no log file"
		return res, nil
	}
	if err != nil {
		return res, fmt.Errorf("pipeline: archive %s: read: %w", name, err)
	}

	if a.cfg.Locks != nil {
		unlock, err := a.cfg.Locks.Acquire(ctx, "archive:"+res.Day, a.cfg.LockTTL)
		if errors.Is(err, domain.ErrLockHeld) {
			res.Skipped, res.Reason = true, "locked by another instance"
			return res, nil
		}
		if err != nil {
			return res, fmt.Errorf("pipeline: archive %s: lock: %w", name, err)
		}
		defer unlock()
	}

	if a.cfg.Existing != nil {
		info, err := a.cfg.Existing.Stat(ctx, csvKey)
		switch {
		case err == nil && info.Size == int64(len(raw)):
			res.Skipped, res.Reason = true, "already archived"
			return res, nil
		case err == nil:
			a.logger.WarnContext(ctx, "archived log differs from local file, replacing",
				slog.String("key", csvKey),
				slog.Int64("stored_bytes", info.Size),
				slog.Int("local_bytes", len(raw)),
			)
			res.Replaced = true
		case !errors.Is(err, domain.ErrNotFound):
			return res, fmt.Errorf("pipeline: archive %s: stat: %w", name, err)
		}
	}

	if err := a.cfg.Blob.Put(ctx, domain.Object{Key: csvKey, Body: raw, ContentType: "text/csv"}); err != nil {
		return res, fmt.Errorf("pipeline: archive %s: upload csv: %w", name, err)
	}
	res.Keys = append(res.Keys, csvKey)

	obs, stats, err := a.cfg.Reader.Read(bytes.NewReader(raw))
	if err != nil {
		return res, fmt.Errorf("pipeline: archive %s: parse: %w", name, err)
	}
	res.Rows = stats.Rows

	if a.cfg.Parquet && len(obs) > 0 {
		data, err := obslog.EncodeParquet(obs)
		if err != nil {
			return res, fmt.Errorf("pipeline: archive %s: %w", name, err)
		}
		pqKey := strings.TrimSuffix(csvKey, ".csv") + ".parquet"
		if err := a.cfg.Blob.Put(ctx, domain.Object{Key: pqKey, Body: data, ContentType: "application/vnd.apache.parquet"}); err != nil {
			return res, fmt.Errorf("pipeline: archive %s: upload parquet: %w", name, err)
		}
		res.Keys = append(res.Keys, pqKey)
	}
	return res, nil
}

// RunCron runs the archiver on a 5-field cron schedule ("minute hour
// day-of-month month day-of-week", evaluated in UTC) until ctx is cancelled.
func (a *Archiver) RunCron(ctx context.Context, cronExpr string) error {
	a.logger.Info("archiver cron started", slog.String("cron", cronExpr))

	for {
		next, err := nextCronTime(cronExpr, a.cfg.Now().UTC())
		if err != nil {
			return fmt.Errorf("parsing cron expression %q: %w", cronExpr, err)
		}

		wait := time.Until(next)
		a.logger.Debug("archiver waiting for next cron trigger",
			slog.Time("next_run", next),
			slog.Duration("wait", wait),
		)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			a.logger.Info("archiver cron stopped")
			return ctx.Err()
		case <-timer.C:
			if err := a.Run(ctx); err != nil {
				a.logger.Error("archive run failed", slog.String("error", err.Error()))
			}
		}
	}
}
