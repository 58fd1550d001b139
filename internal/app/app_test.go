package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/pricearb/internal/arbitrage"
	"github.com/alanyoungcy/pricearb/internal/config"
	"github.com/alanyoungcy/pricearb/internal/domain"
	"github.com/alanyoungcy/pricearb/internal/obslog"
)

func writeLog(t *testing.T, dir string) string {
	t.Helper()
	w, err := obslog.NewWriter(dir, "", nil)
	if err != nil {
		t.Fatal(err)
	}
	ts := time.Date(2025, 7, 28, 10, 0, 0, 0, time.UTC).Unix()
	d := decimal.RequireFromString
	amm := func(chain, price string, at int64) domain.Observation {
		p := d(price)
		return domain.Observation{Venue: "uniswap_v3", Segment: chain, Token: "UNI", Price: p, Timestamp: at,
			Detail: domain.AMMQuote{Bid: p, Ask: p, FeeRate: d("0.003")}}
	}
	err = w.Append([]domain.Observation{
		{Venue: "binance", Segment: domain.SegmentCentralized, Token: "UNI", Price: d("100"), Timestamp: ts, Detail: domain.CentralizedQuote{}},
		amm("arbitrum", "100.06", ts+5),
		amm("base", "103", ts+10),
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return filepath.Join(dir, obslog.FileName("", time.Unix(ts, 0)))
}

func TestAnalyzeMode(t *testing.T) {
	cfg := config.Defaults()
	cfg.Mode = "analyze"
	cfg.Analyze.File = writeLog(t, t.TempDir())

	var out bytes.Buffer
	a := New(&cfg, nil)
	a.SetOutput(&out)
	defer a.Close()
	if err := a.Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	var rep struct {
		Strategy    string          `json:"strategy"`
		Detected    int             `json:"detected"`
		Scheduled   int             `json:"scheduled"`
		TotalProfit decimal.Decimal `json:"total_profit"`
		Potential   *struct {
			Executable int `json:"executable"`
		} `json:"potential"`
	}
	if err := json.Unmarshal(out.Bytes(), &rep); err != nil {
		t.Fatalf("report not JSON: %v\n%s", err, out.String())
	}
	if rep.Strategy != domain.StrategySpread || rep.Detected != 3 || rep.Scheduled != 1 {
		t.Fatalf("report = %+v", rep)
	}
	if !rep.TotalProfit.Equal(decimal.NewFromInt(25)) {
		t.Fatalf("total profit = %s", rep.TotalProfit)
	}
	if rep.Potential == nil || rep.Potential.Executable != 1 {
		t.Fatalf("potential = %+v", rep.Potential)
	}
}

func TestAnalyzeSkipsUnknownSegments(t *testing.T) {
	path := filepath.Join(t.TempDir(), "unified_prices_20250728.csv")
	csv := "timestamp,datetime,source,chain,token,price_usd\n" +
		"1753696800,2025-07-28 10:00:00,binance,reference,UNI,90\n" +
		"1753696805,2025-07-28 10:00:05,bybit,reference,UNI,100\n" +
		"1753696810,2025-07-28 10:00:10,oracle,feed,UNI,95\n"
	if err := os.WriteFile(path, []byte(csv), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := config.Defaults()
	cfg.Mode = "analyze"
	cfg.Detector.Strategy = "hedge"
	cfg.Analyze.File = path

	var out bytes.Buffer
	a := New(&cfg, nil)
	a.SetOutput(&out)
	defer a.Close()
	if err := a.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	var rep struct {
		Strategy string `json:"strategy"`
		Detected int    `json:"detected"`
		Read     struct {
			Rows    int `json:"rows"`
			Skipped int `json:"skipped"`
		} `json:"read"`
	}
	if err := json.Unmarshal(out.Bytes(), &rep); err != nil {
		t.Fatal(err)
	}
	if rep.Strategy != domain.StrategyLeveraged || rep.Detected != 0 {
		t.Fatalf("centralized rows must not form a spot leg: %+v", rep)
	}
	if rep.Read.Rows != 2 || rep.Read.Skipped != 1 {
		t.Fatalf("read = %+v", rep.Read)
	}
}

func TestAnalyzeModeErrors(t *testing.T) {
	cfg := config.Defaults()
	cfg.Mode = "analyze"
	a := New(&cfg, nil)
	if err := a.Run(context.Background()); !errors.Is(err, ErrNoInput) {
		t.Fatalf("err = %v, want ErrNoInput", err)
	}

	cfg.Analyze.File = filepath.Join(t.TempDir(), "missing.csv")
	if err := New(&cfg, nil).Run(context.Background()); err == nil {
		t.Fatal("expected error for missing log file")
	}

	cfg.Analyze.File = writeLog(t, t.TempDir())
	cfg.Detector.Strategy = "nope"
	if err := New(&cfg, nil).Run(context.Background()); err == nil {
		t.Fatal("expected error for unknown strategy")
	}

	cfg.Mode = "trade"
	if err := New(&cfg, nil).Run(context.Background()); err == nil {
		t.Fatal("expected error for unknown mode")
	}
}

func TestStrategiesRegistered(t *testing.T) {
	cfg := config.Defaults()
	got := Strategies(&cfg, nil).List()
	want := []string{domain.StrategyComplete, domain.StrategyLeveraged, domain.StrategySpread}
	if len(got) != len(want) {
		t.Fatalf("strategies = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("strategies = %v, want %v", got, want)
		}
	}
}

func TestCostModel(t *testing.T) {
	cm := CostModel(config.Defaults().CostModel)
	if !cm.CentralizedVenues["bybit"] || cm.CentralizedVenues["hyperliquid"] {
		t.Fatalf("centralized venues = %v", cm.CentralizedVenues)
	}
	if got := cm.TokenTransferCost("arbitrum", "centralized"); !got.Equal(decimal.NewFromInt(3)) {
		t.Fatalf("arbitrum->centralized = %s", got)
	}
	if got := cm.StableReturn[arbitrage.TransferKey("centralized", "optimism")]; !got.Equal(decimal.RequireFromString("7.5")) {
		t.Fatalf("centralized->optimism = %s", got)
	}
	if !cm.DEXFeeRate.Equal(decimal.RequireFromString("0.003")) {
		t.Fatalf("dex fee = %s", cm.DEXFeeRate)
	}
}

func TestNeeds(t *testing.T) {
	cfg := config.Defaults()
	cfg.Postgres.Enabled, cfg.Redis.Enabled, cfg.S3.Enabled = true, true, true

	tests := []struct {
		mode                  string
		persist, upload       bool
		postgres, redis, blob bool
	}{
		{"collect", false, false, true, true, true},
		{"full", false, false, true, true, true},
		{"server", false, false, true, true, false},
		{"analyze", false, false, false, false, false},
		{"analyze", true, true, true, false, true},
	}
	for _, tt := range tests {
		cfg.Mode, cfg.Analyze.Persist, cfg.Analyze.Upload = tt.mode, tt.persist, tt.upload
		if needsPostgres(&cfg) != tt.postgres || needsRedis(&cfg) != tt.redis || needsS3(&cfg) != tt.blob {
			t.Errorf("%s persist=%v upload=%v: postgres=%v redis=%v s3=%v", tt.mode, tt.persist, tt.upload,
				needsPostgres(&cfg), needsRedis(&cfg), needsS3(&cfg))
		}
	}
}
