package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/pricearb/internal/domain"
	"github.com/alanyoungcy/pricearb/internal/server/handler"
	"github.com/alanyoungcy/pricearb/internal/service"
)

type fakeStore struct {
	opts domain.ListOpts
	opps []domain.Opportunity
	err  error
}

func (f *fakeStore) ListRecent(_ context.Context, opts domain.ListOpts) ([]domain.Opportunity, error) {
	f.opts = opts
	return f.opps, f.err
}

type fakePrices struct{}

func (fakePrices) Latest(_ context.Context, token string) (service.TokenQuotes, error) {
	if token != "UNI" {
		return service.TokenQuotes{}, domain.ErrNotFound
	}
	return service.TokenQuotes{Token: token, Venues: 2, SpreadPct: decimal.NewFromInt(3)}, nil
}

type fakeLimiter struct{ left int }

func (f *fakeLimiter) Allow(context.Context, string, int, time.Duration) (bool, error) {
	f.left--
	return f.left >= 0, nil
}

func (f *fakeLimiter) Wait(context.Context, string) error { return nil }

func newRoutes(cfg Config, store *fakeStore, checks map[string]handler.HealthCheck) http.Handler {
	return Routes(cfg, Handlers{
		Health:        handler.NewHealthHandler(checks, nil),
		Opportunities: handler.NewOpportunityHandler(store, nil),
		Prices:        handler.NewPriceHandler(fakePrices{}, nil),
	}, nil, nil)
}

func do(h http.Handler, method, target string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	h := newRoutes(Config{APIKey: "secret"}, &fakeStore{}, map[string]handler.HealthCheck{
		"redis": func(context.Context) error { return nil },
	})
	rec := do(h, http.MethodGet, "/api/health", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"redis":"ok"`) {
		t.Fatalf("health = %d %s", rec.Code, rec.Body)
	}

	h = newRoutes(Config{}, &fakeStore{}, map[string]handler.HealthCheck{
		"postgres": func(context.Context) error { return errors.New("refused") },
	})
	rec = do(h, http.MethodGet, "/api/health", nil)
	if rec.Code != http.StatusServiceUnavailable || !strings.Contains(rec.Body.String(), "degraded") {
		t.Fatalf("degraded health = %d %s", rec.Code, rec.Body)
	}
}

func TestOpportunitiesRecent(t *testing.T) {
	store := &fakeStore{opps: []domain.Opportunity{{ID: "a", Token: "UNI", Strategy: domain.StrategySpread}}}
	h := newRoutes(Config{APIKey: "secret"}, store, nil)

	tests := []struct {
		name   string
		target string
		header map[string]string
		code   int
	}{
		{"no key", "/api/opportunities/recent", nil, http.StatusUnauthorized},
		{"wrong key", "/api/opportunities/recent", map[string]string{"X-API-Key": "nope"}, http.StatusUnauthorized},
		{"bearer", "/api/opportunities/recent?limit=5", map[string]string{"Authorization": "Bearer secret"}, http.StatusOK},
		{"header key", "/api/opportunities/recent?limit=9999&since=1753700000", map[string]string{"X-API-Key": "secret"}, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(h, http.MethodGet, tt.target, tt.header)
			if rec.Code != tt.code {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.code, rec.Body)
			}
		})
	}

	if store.opts.Limit != 500 || store.opts.Since == nil || store.opts.Since.Unix() != 1753700000 {
		t.Fatalf("last opts = %+v", store.opts)
	}
	var resp struct {
		Opportunities []domain.Opportunity `json:"opportunities"`
	}
	rec := do(h, http.MethodGet, "/api/opportunities/recent", map[string]string{"X-API-Key": "secret"})
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil || len(resp.Opportunities) != 1 {
		t.Fatalf("body = %s, err %v", rec.Body, err)
	}

	store.err = errors.New("db down")
	if rec := do(h, http.MethodGet, "/api/opportunities/recent", map[string]string{"X-API-Key": "secret"}); rec.Code != http.StatusInternalServerError {
		t.Fatalf("store failure status = %d", rec.Code)
	}
}

func TestPrices(t *testing.T) {
	h := newRoutes(Config{}, &fakeStore{}, nil)

	rec := do(h, http.MethodGet, "/api/prices/uni", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	var q service.TokenQuotes
	if err := json.Unmarshal(rec.Body.Bytes(), &q); err != nil || q.Token != "UNI" || q.Venues != 2 {
		t.Fatalf("quotes = %+v, err %v", q, err)
	}

	if rec := do(h, http.MethodGet, "/api/prices/LINK", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown token status = %d", rec.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	h := newRoutes(Config{CORSOrigins: []string{"https://dash.example"}, APIKey: "secret"}, &fakeStore{}, nil)

	rec := do(h, http.MethodOptions, "/api/opportunities/recent", map[string]string{"Origin": "https://dash.example"})
	if rec.Code != http.StatusNoContent || rec.Header().Get("Access-Control-Allow-Origin") != "https://dash.example" {
		t.Fatalf("preflight = %d %v", rec.Code, rec.Header())
	}
	rec = do(h, http.MethodOptions, "/api/health", map[string]string{"Origin": "https://evil.example"})
	if rec.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Fatal("unlisted origin echoed")
	}
}

func TestRateLimit(t *testing.T) {
	h := newRoutes(Config{Limiter: &fakeLimiter{left: 2}, RateLimit: 2, RateWindow: time.Second}, &fakeStore{}, nil)
	for i, want := range []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests} {
		if rec := do(h, http.MethodGet, "/api/health", nil); rec.Code != want {
			t.Fatalf("request %d status = %d, want %d", i, rec.Code, want)
		}
	}
}
