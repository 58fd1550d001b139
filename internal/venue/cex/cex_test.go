package cex

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alanyoungcy/pricearb/internal/domain"
	"github.com/alanyoungcy/pricearb/internal/throttle"
)

var testTokens = []domain.TokenDescriptor{
	{Symbol: "WETH", Decimals: 18, Symbols: map[string]string{"binance": "ETHUSDC", "bybit": "ETHUSDT"}},
	{Symbol: "WBTC", Decimals: 8, Symbols: map[string]string{"binance": "BTCUSDC", "bybit": "BTCUSDT"}},
	{Symbol: "LINK", Decimals: 18, Symbols: map[string]string{"binance": "LINKUSDC", "bybit": "LINKUSDT"}},
	{Symbol: "PEPE", Decimals: 18, Symbols: map[string]string{}},
}

func gate() *throttle.Gate { return throttle.NewGate("test", 4, 0, nil, nil) }

func TestBinanceFetchAll(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v3/ticker/price" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `[
			{"symbol":"ETHUSDC","price":"3012.55000000"},
			{"symbol":"BTCUSDC","price":"not-a-number"},
			{"symbol":"LINKUSDC","price":"0.00000000"},
			{"symbol":"DOGEUSDC","price":"0.1"}
		]`)
	}))
	defer srv.Close()

	b := NewBinance(srv.URL, srv.Client(), testTokens, gate(), nil)
	if len(b.Tokens()) != 3 {
		t.Fatalf("tokens = %d, want 3 mapped", len(b.Tokens()))
	}
	got, err := b.FetchAll(context.Background())
	if err != nil {
		t.Fatalf("FetchAll: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d observations, want 1: %+v", len(got), got)
	}
	o := got[0]
	if o.Token != "WETH" || o.Venue != "binance" || o.Segment != domain.SegmentCentralized {
		t.Fatalf("observation = %+v", o)
	}
	if o.Price.String() != "3012.55" {
		t.Fatalf("price = %s", o.Price)
	}
	if o.Family() != domain.FamilyCentralized {
		t.Fatalf("family = %v", o.Family())
	}
}

func TestBinanceFetchOne(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Query().Get("symbol") {
		case "BTCUSDC":
			fmt.Fprint(w, `{"symbol":"BTCUSDC","price":"64000.10"}`)
		default:
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, `{"code":-1121,"msg":"Invalid symbol."}`)
		}
	}))
	defer srv.Close()

	b := NewBinance(srv.URL, srv.Client(), testTokens, gate(), nil)

	o, ok, err := b.FetchOne(context.Background(), testTokens[1])
	if err != nil || !ok {
		t.Fatalf("FetchOne WBTC: ok=%v err=%v", ok, err)
	}
	if o.Token != "WBTC" || o.Price.String() != "64000.1" {
		t.Fatalf("observation = %+v", o)
	}

	if _, ok, err := b.FetchOne(context.Background(), testTokens[2]); ok || err != nil {
		t.Fatalf("invalid symbol should be absent: ok=%v err=%v", ok, err)
	}
	if _, ok, err := b.FetchOne(context.Background(), testTokens[3]); ok || err != nil {
		t.Fatalf("unmapped token should be absent: ok=%v err=%v", ok, err)
	}
}

func TestBinanceRateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"code":-1003,"msg":"Too much request weight used."}`)
	}))
	defer srv.Close()

	b := NewBinance(srv.URL, srv.Client(), testTokens, gate(), nil)
	_, err := b.FetchAll(context.Background())
	if !errors.Is(err, domain.ErrRateLimited) {
		t.Fatalf("err = %v, want rate limited", err)
	}
}

func TestBybitFetchAllAndOne(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("symbol") == "LINKUSDT" {
			fmt.Fprint(w, `{"retCode":0,"retMsg":"OK","result":{"category":"spot","list":[{"symbol":"LINKUSDT","lastPrice":"14.21"}]},"time":1700000000000}`)
			return
		}
		fmt.Fprint(w, `{"retCode":0,"retMsg":"OK","result":{"category":"spot","list":[
			{"symbol":"ETHUSDT","lastPrice":"3010.4"},
			{"symbol":"BTCUSDT","lastPrice":""},
			{"symbol":"SOLUSDT","lastPrice":"150"}
		]},"time":1700000000000}`)
	}))
	defer srv.Close()

	b := NewBybit(srv.URL, srv.Client(), testTokens, gate(), nil)
	got, err := b.FetchAll(context.Background())
	if err != nil {
		t.Fatalf("FetchAll: %v", err)
	}
	if len(got) != 1 || got[0].Token != "WETH" || got[0].Venue != "bybit" {
		t.Fatalf("got %+v", got)
	}

	o, ok, err := b.FetchOne(context.Background(), testTokens[2])
	if err != nil || !ok || o.Price.String() != "14.21" {
		t.Fatalf("FetchOne LINK: %+v ok=%v err=%v", o, ok, err)
	}
}

func TestBybitRetCodeRateLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"retCode":10006,"retMsg":"Too many visits!","result":{},"time":1700000000000}`)
	}))
	defer srv.Close()

	b := NewBybit(srv.URL, srv.Client(), testTokens, gate(), nil)
	if _, err := b.FetchAll(context.Background()); !errors.Is(err, domain.ErrRateLimited) {
		t.Fatalf("err = %v, want rate limited", err)
	}
}
