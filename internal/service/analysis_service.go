// Package service hosts the application services that sit between the
// transports (CLI, HTTP, loops) and the detection core.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/pricearb/internal/arbitrage"
	"github.com/alanyoungcy/pricearb/internal/domain"
	"github.com/alanyoungcy/pricearb/internal/notify"
	"github.com/alanyoungcy/pricearb/internal/obslog"
	"github.com/alanyoungcy/pricearb/internal/schedule"
)

// topN bounds the opportunities listed in a report.
const topN = 10

// ReportUploader stores finished reports. *s3blob.ReportUploader satisfies it.
type ReportUploader interface {
	Upload(ctx context.Context, runID string, at time.Time, report any, trades []domain.ScheduledTrade) ([]string, error)
}

// Report is the outcome of one analysis run.
type Report struct {
	RunID        string                  `json:"run_id"`
	Strategy     string                  `json:"strategy"`
	Algorithm    string                  `json:"algorithm"`
	Source       string                  `json:"source"`
	GeneratedAt  time.Time               `json:"generated_at"`
	Read         obslog.ReadStats        `json:"read"`
	Observations int                     `json:"observations"`
	Tokens       int                     `json:"tokens"`
	Detected     int                     `json:"detected"`
	Scheduled    int                     `json:"scheduled"`
	TotalProfit  decimal.Decimal         `json:"total_profit"`
	ByToken      map[string]int          `json:"by_token"`
	Top          []domain.Opportunity    `json:"top"`
	Trades       []domain.ScheduledTrade `json:"trades"`
	// Potential is the spread-scan profit summary; other strategies omit it.
	Potential *schedule.Potential `json:"potential,omitempty"`
	Uploaded  []string            `json:"uploaded,omitempty"`
}

// AnalysisConfig wires an AnalysisService. Detector and Scheduler are
// required; everything else is optional.
type AnalysisConfig struct {
	Detector  *arbitrage.Detector
	Scheduler *schedule.Scheduler

	// Investment and TransactionFee parameterise the spread profit summary.
	Investment     decimal.Decimal
	TransactionFee decimal.Decimal

	// Reader parses observation logs; nil means obslog.NewReader().
	Reader *obslog.Reader

	Store   domain.OpportunityStore
	Alerts  *notify.Alerter
	Bus     domain.SignalBus
	Reports ReportUploader
	Logger  *slog.Logger
	Now     func() time.Time
}

// AnalysisService runs detection and scheduling over a set of observations
// and fans the result out to storage, alerts, the bus and report storage.
type AnalysisService struct {
	cfg    AnalysisConfig
	logger *slog.Logger
}

// NewAnalysisService creates an AnalysisService.
func NewAnalysisService(cfg AnalysisConfig) *AnalysisService {
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
	return &AnalysisService{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "analysis_service")),
	}
}

// AnalyzeFile analyses one observation log file.
func (s *AnalysisService) AnalyzeFile(ctx context.Context, path string) (*Report, error) {
	obs, stats, err := s.cfg.Reader.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return s.Analyze(ctx, obs, stats, path)
}

// AnalyzeRecent analyses the observations logged in the last lookback.
func (s *AnalysisService) AnalyzeRecent(ctx context.Context, dir, prefix string, lookback time.Duration) (*Report, error) {
	to := s.cfg.Now()
	from := to.Add(-lookback)
	obs, stats, err := s.cfg.Reader.ReadRange(dir, prefix, from, to)
	if err != nil {
		return nil, err
	}
	return s.Analyze(ctx, obs, stats, fmt.Sprintf("%s/%s [%s, %s]", dir, prefix, from.UTC().Format(time.RFC3339), to.UTC().Format(time.RFC3339)))
}

// Analyze detects and schedules opportunities in obs. Failures in the
// optional sinks are logged and do not fail the run; only a cancelled
// context does.
func (s *AnalysisService) Analyze(ctx context.Context, obs []domain.Observation, stats obslog.ReadStats, source string) (*Report, error) {
	start := time.Now()
	opps := s.cfg.Detector.Detect(ctx, obs)
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("service: analyze %s: %w", source, err)
	}
	trades := s.cfg.Scheduler.Schedule(opps)

	rep := &Report{
		RunID:        uuid.NewString(),
		Strategy:     s.cfg.Detector.Strategy(),
		Algorithm:    s.cfg.Scheduler.Algorithm(),
		Source:       source,
		GeneratedAt:  s.cfg.Now().UTC(),
		Read:         stats,
		Observations: len(obs),
		Detected:     len(opps),
		Scheduled:    len(trades),
		TotalProfit:  schedule.TotalProfit(trades),
		ByToken:      countByToken(opps),
		Top:          top(opps, topN),
		Trades:       trades,
	}
	tokens := make(map[string]struct{})
	for _, o := range obs {
		tokens[o.Token] = struct{}{}
	}
	rep.Tokens = len(tokens)

	if rep.Strategy == domain.StrategySpread && s.cfg.Investment.IsPositive() {
		p := schedule.ProfitPotential(opps, s.cfg.Investment, s.cfg.TransactionFee, s.cfg.Scheduler)
		rep.Potential = &p
	}

	s.persist(ctx, rep, opps)
	s.alert(ctx, rep)
	s.publish(ctx, rep)
	s.upload(ctx, rep)

	s.logger.InfoContext(ctx, "analysis complete",
		slog.String("run_id", rep.RunID),
		slog.String("strategy", rep.Strategy),
		slog.Int("observations", rep.Observations),
		slog.Int("detected", rep.Detected),
		slog.Int("scheduled", rep.Scheduled),
		slog.String("total_profit", rep.TotalProfit.StringFixed(2)),
		slog.Duration("elapsed", time.Since(start)),
	)
	return rep, nil
}

// RunLoop analyses the rolling log every interval until ctx is cancelled.
func (s *AnalysisService) RunLoop(ctx context.Context, interval time.Duration, dir, prefix string, lookback time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("analysis loop stopped")
			return ctx.Err()
		case <-ticker.C:
			if _, err := s.AnalyzeRecent(ctx, dir, prefix, lookback); err != nil {
				if ctx.Err() != nil {
					continue
				}
				s.logger.Error("analysis run failed", slog.String("error", err.Error()))
				if aerr := s.cfg.Alerts.Failure(ctx, "analysis", err); aerr != nil {
					s.logger.Warn("failure alert not delivered", slog.String("error", aerr.Error()))
				}
			}
		}
	}
}

func (s *AnalysisService) persist(ctx context.Context, rep *Report, opps []domain.Opportunity) {
	if s.cfg.Store == nil || len(opps) == 0 {
		return
	}
	inserted, err := s.cfg.Store.InsertBatch(ctx, opps)
	if err != nil {
		s.logger.WarnContext(ctx, "store opportunities failed", slog.String("error", err.Error()))
		return
	}
	if err := s.cfg.Store.InsertScheduled(ctx, rep.RunID, rep.Trades); err != nil {
		s.logger.WarnContext(ctx, "store schedule failed", slog.String("error", err.Error()))
		return
	}
	s.logger.DebugContext(ctx, "opportunities stored",
		slog.Int64("new", inserted),
		slog.Int("scheduled", len(rep.Trades)),
	)
}

func (s *AnalysisService) alert(ctx context.Context, rep *Report) {
	if s.cfg.Alerts == nil || len(rep.Trades) == 0 {
		return
	}
	opps := make([]domain.Opportunity, len(rep.Trades))
	for i, t := range rep.Trades {
		opps[i] = t.Opportunity
	}
	if _, err := s.cfg.Alerts.Opportunities(ctx, opps); err != nil {
		s.logger.WarnContext(ctx, "opportunity alerts failed", slog.String("error", err.Error()))
	}
	err := s.cfg.Alerts.Summary(ctx, fmt.Sprintf("%s run: %d scheduled", rep.Strategy, rep.Scheduled),
		notify.Field{Name: "Detected", Value: strconv.Itoa(rep.Detected)},
		notify.Field{Name: "Total profit", Value: "$" + rep.TotalProfit.StringFixed(2)},
		notify.Field{Name: "Source", Value: rep.Source},
	)
	if err != nil {
		s.logger.WarnContext(ctx, "summary alert failed", slog.String("error", err.Error()))
	}
}

// ArbMessage is the payload published on domain.ChannelArb.
type ArbMessage struct {
	RunID       string                  `json:"run_id"`
	Strategy    string                  `json:"strategy"`
	GeneratedAt time.Time               `json:"generated_at"`
	TotalProfit decimal.Decimal         `json:"total_profit"`
	Trades      []domain.ScheduledTrade `json:"trades"`
}

func (s *AnalysisService) publish(ctx context.Context, rep *Report) {
	if s.cfg.Bus == nil || len(rep.Trades) == 0 {
		return
	}
	payload, err := json.Marshal(ArbMessage{
		RunID:       rep.RunID,
		Strategy:    rep.Strategy,
		GeneratedAt: rep.GeneratedAt,
		TotalProfit: rep.TotalProfit,
		Trades:      rep.Trades,
	})
	if err != nil {
		s.logger.WarnContext(ctx, "marshal arb message failed", slog.String("error", err.Error()))
		return
	}
	if err := s.cfg.Bus.Publish(ctx, domain.ChannelArb, payload); err != nil {
		s.logger.WarnContext(ctx, "publish arb message failed", slog.String("error", err.Error()))
	}
}

func (s *AnalysisService) upload(ctx context.Context, rep *Report) {
	if s.cfg.Reports == nil {
		return
	}
	keys, err := s.cfg.Reports.Upload(ctx, rep.RunID, rep.GeneratedAt, rep, rep.Trades)
	if err != nil {
		s.logger.WarnContext(ctx, "report upload failed", slog.String("error", err.Error()))
	}
	rep.Uploaded = keys
}

func countByToken(opps []domain.Opportunity) map[string]int {
	out := make(map[string]int)
	for _, o := range opps {
		out[o.Token]++
	}
	return out
}

// top returns the n most profitable opportunities, ties broken by time.
func top(opps []domain.Opportunity, n int) []domain.Opportunity {
	out := append([]domain.Opportunity(nil), opps...)
	sort.SliceStable(out, func(i, j int) bool {
		if c := out[i].NetProfit.Cmp(out[j].NetProfit); c != 0 {
			return c > 0
		}
		return out[i].Timestamp < out[j].Timestamp
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}
