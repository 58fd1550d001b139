package arbitrage

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/pricearb/internal/aggregator"
	"github.com/alanyoungcy/pricearb/internal/domain"
)

// Detector runs the selected strategy over an observation log, one token at
// a time, and stamps the resulting opportunities.
type Detector struct {
	strategy Strategy
	now      func() time.Time
	logger   *slog.Logger
}

// DetectorConfig configures the detector.
type DetectorConfig struct {
	Strategy Strategy
	// Now stamps DetectedAt; defaults to time.Now.
	Now    func() time.Time
	Logger *slog.Logger
}

// NewDetector creates a detector that runs the given strategy.
func NewDetector(cfg DetectorConfig) *Detector {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Detector{
		strategy: cfg.Strategy,
		now:      cfg.Now,
		logger:   cfg.Logger.With(slog.String("component", "arb_detector")),
	}
}

// Strategy returns the name of the strategy the detector runs.
func (d *Detector) Strategy() string { return d.strategy.Name() }

// Detect groups obs by token and runs the strategy on each token's
// time-ordered series. The result is ordered by (timestamp, token, key) and
// IDs are derived from content, so identical input yields identical output.
// It stops early and returns what it has when ctx is cancelled.
func (d *Detector) Detect(ctx context.Context, obs []domain.Observation) []domain.Opportunity {
	snap := aggregator.Merge(obs)
	detectedAt := d.now().UTC()

	var out []domain.Opportunity
	for _, token := range snap.Tokens() {
		if ctx.Err() != nil {
			d.logger.WarnContext(ctx, "detection interrupted", slog.String("token", token))
			break
		}
		for _, opp := range d.strategy.Detect(ctx, token, snap.Get(token)) {
			opp.ID = opportunityID(opp)
			opp.DetectedAt = detectedAt
			out = append(out, opp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Timestamp != out[j].Timestamp {
			return out[i].Timestamp < out[j].Timestamp
		}
		if out[i].Token != out[j].Token {
			return out[i].Token < out[j].Token
		}
		return out[i].Key < out[j].Key
	})

	d.logger.InfoContext(ctx, "detection complete",
		slog.String("strategy", d.strategy.Name()),
		slog.Int("observations", snap.Len()),
		slog.Int("tokens", len(snap.Tokens())),
		slog.Int("opportunities", len(out)),
	)
	return out
}

func opportunityID(o domain.Opportunity) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(o.Strategy+"/"+o.Key)).String()
}
