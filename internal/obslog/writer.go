package obslog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/alanyoungcy/pricearb/internal/domain"
)

// Writer appends observations to the daily log file of their timestamp's
// UTC day. It is safe for concurrent use by the collection loops.
type Writer struct {
	dir    string
	prefix string
	logger *slog.Logger

	mu   sync.Mutex
	day  string
	file *os.File
	csv  *csv.Writer
}

// NewWriter creates dir if needed and returns a Writer over it.
func NewWriter(dir, prefix string, logger *slog.Logger) (*Writer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("obslog: create dir %s: %w", dir, err)
	}
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Writer{
		dir:    dir,
		prefix: prefix,
		logger: logger.With(slog.String("component", "obslog")),
	}, nil
}

// Dir returns the directory the log files live in.
func (w *Writer) Dir() string { return w.dir }

// Prefix returns the file name prefix.
func (w *Writer) Prefix() string { return w.prefix }

// Append writes obs and flushes. Observations are routed by their own
// timestamp, so a batch straddling midnight lands in two files.
func (w *Writer) Append(obs []domain.Observation) error {
	if len(obs) == 0 {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, o := range obs {
		if err := w.rotate(o.Time()); err != nil {
			return err
		}
		if err := w.csv.Write(record(o)); err != nil {
			return fmt.Errorf("obslog: write row: %w", err)
		}
	}
	w.csv.Flush()
	if err := w.csv.Error(); err != nil {
		return fmt.Errorf("obslog: flush %s: %w", w.day, err)
	}
	return nil
}

// rotate makes sure the open file is the one for day.
func (w *Writer) rotate(day time.Time) error {
	name := FileName(w.prefix, day)
	if w.file != nil && w.day == name {
		return nil
	}
	if err := w.closeLocked(); err != nil {
		return err
	}

	path := Path(w.dir, w.prefix, day)
	_, statErr := os.Stat(path)
	fresh := errors.Is(statErr, fs.ErrNotExist)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("obslog: open %s: %w", path, err)
	}
	w.file, w.day, w.csv = f, name, csv.NewWriter(f)
	if fresh {
		if err := w.csv.Write(Header); err != nil {
			return fmt.Errorf("obslog: write header: %w", err)
		}
		w.logger.Info("observation log opened", slog.String("path", path))
	}
	return nil
}

// Close flushes and closes the current file.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}

func (w *Writer) closeLocked() error {
	if w.file == nil {
		return nil
	}
	w.csv.Flush()
	flushErr := w.csv.Error()
	closeErr := w.file.Close()
	w.file, w.csv, w.day = nil, nil, ""
	if flushErr != nil {
		return fmt.Errorf("obslog: flush: %w", flushErr)
	}
	if closeErr != nil {
		return fmt.Errorf("obslog: close: %w", closeErr)
	}
	return nil
}
