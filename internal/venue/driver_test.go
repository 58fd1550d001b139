package venue

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alanyoungcy/pricearb/internal/domain"
	"github.com/shopspring/decimal"
)

type fakeAdapter struct {
	mu       sync.Mutex
	bulkErrs []error
	bulk     []domain.Observation
	one      map[string]decimal.Decimal
	oneErr   map[string]error
	calls    int
	oneCalls int
}

func (f *fakeAdapter) Name() string               { return "fake" }
func (f *fakeAdapter) Family() domain.VenueFamily { return domain.FamilyCentralized }

func (f *fakeAdapter) Tokens() []domain.TokenDescriptor {
	return []domain.TokenDescriptor{{Symbol: "WETH"}, {Symbol: "WBTC"}, {Symbol: "LINK"}}
}

func (f *fakeAdapter) FetchAll(context.Context) ([]domain.Observation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if len(f.bulkErrs) > 0 {
		err := f.bulkErrs[0]
		f.bulkErrs = f.bulkErrs[1:]
		return nil, err
	}
	return f.bulk, nil
}

func (f *fakeAdapter) FetchOne(_ context.Context, tok domain.TokenDescriptor) (domain.Observation, bool, error) {
	f.mu.Lock()
	f.oneCalls++
	f.mu.Unlock()
	if err := f.oneErr[tok.Symbol]; err != nil {
		return domain.Observation{}, false, err
	}
	p, ok := f.one[tok.Symbol]
	if !ok {
		return domain.Observation{}, false, nil
	}
	return obs(tok.Symbol, p), true, nil
}

func obs(token string, price decimal.Decimal) domain.Observation {
	return domain.Observation{
		Venue: "fake", Segment: domain.SegmentCentralized, Token: token,
		Price: price, Timestamp: 1, Detail: domain.CentralizedQuote{},
	}
}

func fastPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, BaseBackoff: time.Millisecond, TimeoutBackoff: time.Millisecond, FallbackParallelism: 2}
}

func TestCollectBulkSuccessSanitizes(t *testing.T) {
	a := &fakeAdapter{bulk: []domain.Observation{
		obs("WETH", decimal.NewFromInt(3000)),
		obs("WBTC", decimal.Zero),
		obs("LINK", decimal.New(1, 11)),
		obs("", decimal.NewFromInt(1)),
	}}
	got := NewDriver(fastPolicy(), nil).Collect(context.Background(), a)
	if len(got) != 1 || got[0].Token != "WETH" {
		t.Fatalf("got %+v", got)
	}
}

func TestCollectRetriesThenSucceeds(t *testing.T) {
	a := &fakeAdapter{
		bulkErrs: []error{
			fmt.Errorf("binance: %w", domain.ErrRateLimited),
			fmt.Errorf("binance: %w", domain.ErrTimeout),
		},
		bulk: []domain.Observation{obs("WETH", decimal.NewFromInt(3000))},
	}
	got := NewDriver(fastPolicy(), nil).Collect(context.Background(), a)
	if a.calls != 3 || len(got) != 1 {
		t.Fatalf("calls = %d, got = %d observations", a.calls, len(got))
	}
	if a.oneCalls != 0 {
		t.Fatal("fallback must not run after a successful retry")
	}
}

func TestCollectFallsBackAfterBudget(t *testing.T) {
	rl := fmt.Errorf("x: %w", domain.ErrRateLimited)
	a := &fakeAdapter{
		bulkErrs: []error{rl, rl, rl, rl},
		one: map[string]decimal.Decimal{
			"WETH": decimal.NewFromInt(3000),
			"WBTC": decimal.NewFromInt(60000),
		},
		oneErr: map[string]error{"LINK": errors.New("boom")},
	}
	got := NewDriver(fastPolicy(), nil).Collect(context.Background(), a)
	if a.calls != 3 {
		t.Fatalf("bulk calls = %d, want 3", a.calls)
	}
	if a.oneCalls != 3 || len(got) != 2 {
		t.Fatalf("fallback calls = %d, observations = %d", a.oneCalls, len(got))
	}
}

func TestCollectHardErrorSkipsRetries(t *testing.T) {
	a := &fakeAdapter{bulkErrs: []error{errors.New("connection refused"), errors.New("again")}}
	got := NewDriver(fastPolicy(), nil).Collect(context.Background(), a)
	if a.calls != 1 {
		t.Fatalf("bulk calls = %d, want 1", a.calls)
	}
	if len(got) != 0 {
		t.Fatalf("got %d observations, want empty", len(got))
	}
}

// slowAdapter answers FetchAll after delay unless its context ends first.
type slowAdapter struct {
	fakeAdapter
	delay time.Duration
}

func (s *slowAdapter) FetchAll(ctx context.Context) ([]domain.Observation, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(s.delay):
		return []domain.Observation{obs("WETH", decimal.NewFromInt(3000))}, nil
	}
}

func TestCollectFinishesRequestAfterStop(t *testing.T) {
	stop, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)
	defer cancel()

	a := &slowAdapter{delay: 150 * time.Millisecond}
	got := NewDriver(fastPolicy(), nil).Collect(stop, a)
	if len(got) != 1 || got[0].Token != "WETH" {
		t.Fatalf("in-flight request lost after stop: %+v", got)
	}
}

func TestCollectPassTimeoutAbortsRequest(t *testing.T) {
	p := fastPolicy()
	p.PassTimeout = 20 * time.Millisecond
	a := &slowAdapter{delay: time.Second}
	a.one = map[string]decimal.Decimal{"WETH": decimal.NewFromInt(1)}

	start := time.Now()
	got := NewDriver(p, nil).Collect(context.Background(), a)
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Fatalf("pass ran %s past its deadline", elapsed)
	}
	if len(got) != 0 {
		t.Fatalf("got %d observations after deadline", len(got))
	}
}

func TestCollectNoNewRequestsAfterStop(t *testing.T) {
	stop, cancel := context.WithCancel(context.Background())
	cancel()

	rl := fmt.Errorf("x: %w", domain.ErrRateLimited)
	a := &fakeAdapter{
		bulkErrs: []error{rl, rl, rl},
		one:      map[string]decimal.Decimal{"WETH": decimal.NewFromInt(3000)},
	}
	got := NewDriver(fastPolicy(), nil).Collect(stop, a)
	if a.calls != 1 || a.oneCalls != 0 || len(got) != 0 {
		t.Fatalf("calls = %d, fallback calls = %d, observations = %d", a.calls, a.oneCalls, len(got))
	}
}

func TestCollectAllKeepsAdapterOrder(t *testing.T) {
	a := &fakeAdapter{bulk: []domain.Observation{obs("WETH", decimal.NewFromInt(1))}}
	b := &fakeAdapter{bulk: []domain.Observation{obs("WBTC", decimal.NewFromInt(2))}}
	res := NewDriver(fastPolicy(), nil).CollectAll(context.Background(), []Adapter{a, b})
	if len(res) != 2 || res[0][0].Token != "WETH" || res[1][0].Token != "WBTC" {
		t.Fatalf("res = %+v", res)
	}
}

func TestCheckHTTPStatus(t *testing.T) {
	tests := []struct {
		code int
		want error
	}{
		{200, nil},
		{404, domain.ErrNotFound},
		{418, domain.ErrRateLimited},
		{429, domain.ErrRateLimited},
		{504, domain.ErrTimeout},
	}
	for _, tt := range tests {
		err := CheckHTTPStatus(tt.code, []byte("x"))
		if tt.want == nil {
			if err != nil {
				t.Errorf("%d: unexpected %v", tt.code, err)
			}
			continue
		}
		if !errors.Is(err, tt.want) {
			t.Errorf("%d: err = %v, want %v", tt.code, err, tt.want)
		}
	}
}

func TestDoJSONTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(100 * time.Millisecond)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	var out map[string]any
	err := DoJSON(context.Background(), NewHTTPClient(10*time.Millisecond), srv.URL, nil, &out)
	if !errors.Is(err, domain.ErrTimeout) {
		t.Fatalf("err = %v, want timeout", err)
	}
}
