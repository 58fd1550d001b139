package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/pricearb/internal/arbitrage"
	rediscache "github.com/alanyoungcy/pricearb/internal/cache/redis"
	"github.com/alanyoungcy/pricearb/internal/config"
	"github.com/alanyoungcy/pricearb/internal/domain"
	"github.com/alanyoungcy/pricearb/internal/notify"
	"github.com/alanyoungcy/pricearb/internal/obslog"
	"github.com/alanyoungcy/pricearb/internal/pipeline"
	"github.com/alanyoungcy/pricearb/internal/pool"
	"github.com/alanyoungcy/pricearb/internal/schedule"
	"github.com/alanyoungcy/pricearb/internal/server"
	"github.com/alanyoungcy/pricearb/internal/server/handler"
	"github.com/alanyoungcy/pricearb/internal/server/ws"
	"github.com/alanyoungcy/pricearb/internal/service"
	"github.com/alanyoungcy/pricearb/internal/store/sqlite"
	"github.com/alanyoungcy/pricearb/internal/throttle"
	"github.com/alanyoungcy/pricearb/internal/venue"
	"github.com/alanyoungcy/pricearb/internal/venue/amm"
	"github.com/alanyoungcy/pricearb/internal/venue/cex"
	"github.com/alanyoungcy/pricearb/internal/venue/perp"
)

func dec(f float64) decimal.Decimal { return decimal.NewFromFloat(f) }

func decMap(m map[string]float64) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(m))
	for k, v := range m {
		out[k] = dec(v)
	}
	return out
}

// CostModel converts the configured cost table.
func CostModel(c config.CostModelConfig) arbitrage.CostModel {
	cexVenues := make(map[string]bool, len(c.CentralizedVenues))
	for _, v := range c.CentralizedVenues {
		cexVenues[v] = true
	}
	return arbitrage.CostModel{
		DEXFeeRate:          dec(c.DEXFeeRate),
		CEXFeeRate:          dec(c.CEXFeeRate),
		FuturesFeeRate:      dec(c.FuturesFeeRate),
		MarginRate:          dec(c.MarginRate),
		FundingRateHourly:   dec(c.FundingRateHourly),
		HedgeGas:            dec(c.HedgeGas),
		GasPerTx:            dec(c.GasPerTx),
		WeeklyRebalanceCost: dec(c.WeeklyRebalanceCost),
		CentralizedVenues:   cexVenues,
		TokenTransfer:       decMap(c.TokenTransfer),
		StableReturn:        decMap(c.StableReturn),
		MinTransfer:         decMap(c.MinTransfer),
		DefaultMinTransfer:  dec(c.DefaultMinTransfer),
	}
}

// Strategies registers every arbitrage strategy parameterised from cfg.
func Strategies(cfg *config.Config, logger *slog.Logger) *arbitrage.Registry {
	d := cfg.Detector
	costs := CostModel(cfg.CostModel)
	reg := arbitrage.NewRegistry()
	reg.Register(arbitrage.NewSpread(arbitrage.SpreadConfig{
		WindowSeconds:  d.WindowSeconds,
		ThresholdPct:   dec(d.SpreadThresholdPct),
		Investment:     dec(d.Investment),
		TransactionFee: dec(cfg.CostModel.TransactionFee),
	}, logger))
	reg.Register(arbitrage.NewLeveraged(arbitrage.LeveragedConfig{
		WindowSeconds:        d.WindowSeconds,
		HedgeVenue:           d.HedgeVenue,
		PairToleranceSeconds: d.PairToleranceSeconds,
		MinDiffPct:           dec(d.MinLeveragedDiffPct),
		Investment:           dec(d.Investment),
		Costs:                costs,
	}, logger), "hedge")
	reg.Register(arbitrage.NewFullCycle(arbitrage.FullCycleConfig{
		WindowSeconds: d.WindowSeconds,
		MinSpreadPct:  dec(d.MinCycleSpreadPct),
		Investment:    dec(d.Investment),
		Costs:         costs,
	}, logger), "full_cycle")
	return reg
}

func (a *App) buildDetector() (*arbitrage.Detector, error) {
	strategy, err := Strategies(a.cfg, a.logger).Get(a.cfg.Detector.Strategy)
	if err != nil {
		return nil, err
	}
	return arbitrage.NewDetector(arbitrage.DetectorConfig{Strategy: strategy, Logger: a.logger}), nil
}

func (a *App) buildAnalysis(deps *Dependencies) (*service.AnalysisService, error) {
	detector, err := a.buildDetector()
	if err != nil {
		return nil, err
	}
	sched, err := schedule.New(a.cfg.Schedule.Algorithm, a.cfg.Schedule.ExecutionTime.Duration, a.logger)
	if err != nil {
		return nil, err
	}
	catalog, err := config.LoadCatalog(a.cfg.CatalogPath)
	if err != nil {
		return nil, err
	}

	cfg := service.AnalysisConfig{
		Detector:       detector,
		Scheduler:      sched,
		Investment:     dec(a.cfg.Analyze.Investment),
		TransactionFee: dec(a.cfg.CostModel.TransactionFee),
		Reader:         obslog.NewReader(catalog.Networks()...),
		Store:          deps.OpportunityStore,
		Logger:         a.logger,
	}
	if deps.Notifier != nil && deps.Notifier.Enabled() {
		cfg.Alerts = notify.NewAlerter(deps.Notifier, a.cfg.Notify.DedupTTL.Duration, dec(a.cfg.Notify.MinProfitUSD))
	}
	if deps.SignalBus != nil {
		cfg.Bus = deps.SignalBus
	}
	if deps.Reports != nil {
		cfg.Reports = deps.Reports
	}
	return service.NewAnalysisService(cfg), nil
}

// buildOrchestrator assembles one collector per venue family. The returned
// cleanup closes RPC clients, the pool registry and the observation log.
func (a *App) buildOrchestrator(ctx context.Context, deps *Dependencies) (*pipeline.Orchestrator, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	cfg := a.cfg

	catalog, err := config.LoadCatalog(cfg.CatalogPath)
	if err != nil {
		return nil, nil, err
	}

	logWriter, err := obslog.NewWriter(cfg.ObsLog.Dir, cfg.ObsLog.Prefix, a.logger)
	if err != nil {
		return nil, nil, err
	}
	closers = append(closers, func() { _ = logWriter.Close() })

	var shared *throttle.Shared
	if cfg.Throttle.Distributed && deps.RateLimiter != nil {
		shared = &throttle.Shared{
			Limiter: deps.RateLimiter,
			Limit:   cfg.Throttle.DistributedLimit,
			Window:  cfg.Throttle.DistributedWindow.Duration,
		}
	}
	ctrl := throttle.NewController(throttle.Policy{
		Pacing:            cfg.Throttle.Pacing.Duration,
		CentralizedLimit:  cfg.Throttle.CentralizedLimit,
		DerivativeLimit:   cfg.Throttle.DerivativeLimit,
		DefaultChainLimit: cfg.Throttle.DefaultChainLimit,
		ChainLimits:       cfg.Throttle.ChainLimits,
		VenueLimits:       cfg.Throttle.VenueLimits,
	}, shared, a.logger)

	driver := venue.NewDriver(venue.RetryPolicy{
		MaxAttempts:         cfg.Collector.MaxAttempts,
		BaseBackoff:         cfg.Collector.BaseBackoff.Duration,
		MaxBackoff:          cfg.Collector.MaxBackoff.Duration,
		TimeoutBackoff:      cfg.Collector.TimeoutBackoff.Duration,
		FallbackParallelism: venue.DefaultRetryPolicy().FallbackParallelism,
		PassTimeout:         cfg.Collector.PassTimeout.Duration,
	}, a.logger)

	client := venue.NewHTTPClient(cfg.Collector.RequestTimeout.Duration)
	tokens := catalog.Tokens
	v := cfg.Venues

	var centralized, derivative, onchain []venue.Adapter
	if v.Binance.Enabled {
		centralized = append(centralized, cex.NewBinance(v.Binance.BaseURL, client, tokens,
			ctrl.Gate(domain.FamilyCentralized, "binance"), a.logger))
	}
	if v.Bybit.Enabled {
		centralized = append(centralized, cex.NewBybit(v.Bybit.BaseURL, client, tokens,
			ctrl.Gate(domain.FamilyCentralized, "bybit"), a.logger))
	}
	if v.Hyperliquid.Enabled {
		derivative = append(derivative, perp.NewHyperliquid(v.Hyperliquid.BaseURL, client, tokens, dec(v.PerpFeeRate),
			ctrl.Gate(domain.FamilyDerivative, "hyperliquid"), a.logger))
	}
	if v.DYDX.Enabled {
		derivative = append(derivative, perp.NewDYDX(v.DYDX.BaseURL, client, tokens, dec(v.PerpFeeRate),
			ctrl.Gate(domain.FamilyDerivative, "dydx"), a.logger))
	}

	if v.AMM.Enabled {
		chains, err := catalog.SelectChains(v.AMM.Chains, v.AMM.RPCOverrides)
		if err != nil {
			cleanup()
			return nil, nil, err
		}

		var poolStore domain.PoolStore
		if cfg.PoolStore.Path != "" {
			ps, err := sqlite.NewPoolStore(cfg.PoolStore.Path)
			if err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("app: pool store: %w", err)
			}
			closers = append(closers, func() { _ = ps.Close() })
			poolStore = ps
		}
		cache := pool.NewCache(poolStore, a.logger)
		if n, err := cache.Warm(ctx); err != nil {
			a.logger.WarnContext(ctx, "pool cache warm-up failed", slog.String("error", err.Error()))
		} else {
			a.logger.InfoContext(ctx, "pool cache warmed", slog.Int("pools", n))
		}

		for _, chain := range chains {
			rpc, err := ethclient.DialContext(ctx, chain.RPCURL)
			if err != nil {
				a.logger.WarnContext(ctx, "rpc dial failed, skipping chain",
					slog.String("network", chain.Network),
					slog.String("error", err.Error()),
				)
				continue
			}
			closers = append(closers, rpc.Close)
			norm := pool.NewNormalizer(chain, rpc, cache, v.AMM.FeeTiers,
				ctrl.Gate(domain.FamilyAMM, chain.Network), a.logger)
			onchain = append(onchain, amm.NewUniswap(norm, chain, tokens, a.logger))
		}
	}

	collector := func(name string, adapters []venue.Adapter) *pipeline.Collector {
		cc := pipeline.CollectorConfig{
			Name:     name,
			Driver:   driver,
			Adapters: adapters,
			Log:      logWriter,
			Cache:    deps.PriceCache,
			Logger:   a.logger,
		}
		if deps.SignalBus != nil {
			cc.Bus = deps.SignalBus
		}
		return pipeline.NewCollector(cc)
	}

	var loops []pipeline.Loop
	for _, l := range []struct {
		name     string
		adapters []venue.Adapter
		interval time.Duration
	}{
		{domain.FamilyCentralized.String(), centralized, cfg.Collector.CentralizedInterval.Duration},
		{domain.FamilyDerivative.String(), derivative, cfg.Collector.DerivativeInterval.Duration},
		{domain.FamilyAMM.String(), onchain, cfg.Collector.OnChainInterval.Duration},
	} {
		if len(l.adapters) == 0 {
			continue
		}
		loops = append(loops, pipeline.Loop{Collector: collector(l.name, l.adapters), Interval: l.interval})
	}
	if len(loops) == 0 {
		cleanup()
		return nil, nil, fmt.Errorf("app: no venues enabled")
	}

	var archiver *pipeline.Archiver
	if cfg.Archive.Enabled {
		if deps.BlobWriter == nil {
			a.logger.WarnContext(ctx, "archive enabled without object storage, skipping")
		} else {
			archiver = pipeline.NewArchiver(pipeline.ArchiverConfig{
				Dir:       cfg.ObsLog.Dir,
				LogPrefix: cfg.ObsLog.Prefix,
				KeyPrefix: cfg.Archive.Prefix,
				Parquet:   cfg.Archive.Parquet,
				Reader:    obslog.NewReader(catalog.Networks()...),
				LockTTL:   cfg.Archive.LockTTL.Duration,
				Blob:      deps.BlobWriter,
				Existing:  deps.BlobReader,
				Locks:     deps.LockManager,
				Logger:    a.logger,
			})
		}
	}

	return pipeline.NewOrchestrator(loops, archiver, cfg.Archive.Cron, a.logger), cleanup, nil
}

// buildServer assembles the HTTP API and, when the bus is wired, the
// WebSocket hub. The hub is nil without Redis.
func (a *App) buildServer(deps *Dependencies) (*server.Server, *ws.Hub) {
	handlers := server.Handlers{
		Health: handler.NewHealthHandler(deps.healthChecks(), a.logger),
	}
	if deps.OpportunityStore != nil {
		handlers.Opportunities = handler.NewOpportunityHandler(deps.OpportunityStore, a.logger)
	}
	if deps.PriceCache != nil {
		handlers.Prices = handler.NewPriceHandler(service.NewPriceService(deps.PriceCache, a.logger), a.logger)
	}

	var hub *ws.Hub
	if deps.SignalBus != nil {
		hub = ws.NewHub(deps.SignalBus, ws.Config{
			Mode:     a.cfg.Mode,
			Strategy: a.cfg.Detector.Strategy,
			Decoders: map[string]ws.Decoder{
				domain.ChannelPrices: func(payload []byte) (any, error) {
					obs, err := rediscache.DecodeObservations(payload)
					if err != nil {
						return nil, err
					}
					return service.QuoteViews(obs), nil
				},
			},
		}, a.logger)
	}

	scfg := server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
	}
	if deps.RateLimiter != nil && a.cfg.Server.RateLimit > 0 {
		scfg.Limiter = deps.RateLimiter
		scfg.RateLimit = a.cfg.Server.RateLimit
		scfg.RateWindow = a.cfg.Server.RateWindow.Duration
	}
	return server.New(scfg, handlers, hub, a.logger), hub
}
