package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"time"

	"github.com/alanyoungcy/pricearb/internal/domain"
)

// ReportUploader stores analysis reports next to the observation archive.
// Keys are partitioned by the UTC day of the run:
//
//	reports/2025/07/28/<run>.json
//	reports/2025/07/28/<run>.opportunities.jsonl
type ReportUploader struct {
	writer domain.BlobWriter
	prefix string
}

// NewReportUploader creates a ReportUploader writing under prefix
// ("reports" when empty).
func NewReportUploader(writer domain.BlobWriter, prefix string) *ReportUploader {
	if prefix == "" {
		prefix = "reports"
	}
	return &ReportUploader{writer: writer, prefix: prefix}
}

// ReportKey returns the object key for a run's file with the given suffix.
func ReportKey(prefix, runID string, at time.Time, suffix string) string {
	return path.Join(prefix, at.UTC().Format("2006/01/02"), runID+suffix)
}

// Upload writes the JSON report and, when there are any, the scheduled
// opportunities as JSONL. It returns the keys written.
func (u *ReportUploader) Upload(ctx context.Context, runID string, at time.Time, report any, trades []domain.ScheduledTrade) ([]string, error) {
	body, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("s3blob: marshal report %s: %w", runID, err)
	}
	key := ReportKey(u.prefix, runID, at, ".json")
	if err := u.writer.Put(ctx, domain.Object{Key: key, Body: body, ContentType: "application/json"}); err != nil {
		return nil, err
	}
	keys := []string{key}

	if len(trades) == 0 {
		return keys, nil
	}
	lines, err := marshalJSONL(trades)
	if err != nil {
		return keys, fmt.Errorf("s3blob: marshal trades %s: %w", runID, err)
	}
	key = ReportKey(u.prefix, runID, at, ".opportunities.jsonl")
	if err := u.writer.Put(ctx, domain.Object{Key: key, Body: lines, ContentType: "application/x-ndjson"}); err != nil {
		return keys, err
	}
	return append(keys, key), nil
}

// marshalJSONL encodes records as newline-delimited JSON.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}
