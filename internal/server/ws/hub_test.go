package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alanyoungcy/pricearb/internal/domain"
)

type memBus struct {
	mu   sync.Mutex
	subs map[string]chan []byte
}

func newMemBus() *memBus { return &memBus{subs: make(map[string]chan []byte)} }

func (b *memBus) Subscribe(_ context.Context, channel string) (<-chan []byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan []byte, 8)
	b.subs[channel] = ch
	return ch, nil
}

func (b *memBus) Publish(_ context.Context, channel string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch, ok := b.subs[channel]
	if !ok {
		return errors.New("no subscriber")
	}
	ch <- payload
	return nil
}

func (b *memBus) subscribed(n int) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs) == n
}

func readEnvelope(t *testing.T, conn *websocket.Conn) Envelope {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var env Envelope
	if err := conn.ReadJSON(&env); err != nil {
		t.Fatal(err)
	}
	return env
}

func TestHubStreamsBusMessages(t *testing.T) {
	bus := newMemBus()
	hub := NewHub(bus, Config{
		Mode: "full",
		Decoders: map[string]Decoder{
			domain.ChannelPrices: func(p []byte) (any, error) {
				return map[string]string{"decoded": strings.ToUpper(string(p))}, nil
			},
		},
	}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)
	for deadline := time.Now().Add(5 * time.Second); !bus.subscribed(2); {
		if time.Now().After(deadline) {
			t.Fatal("hub never subscribed")
		}
		time.Sleep(5 * time.Millisecond)
	}

	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	defer srv.Close()
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	if env := readEnvelope(t, conn); env.Type != "status" || !strings.Contains(string(env.Data), `"mode":"full"`) {
		t.Fatalf("first frame = %+v", env)
	}

	if err := bus.Publish(ctx, domain.ChannelArb, []byte(`{"run_id":"r1"}`)); err != nil {
		t.Fatal(err)
	}
	env := readEnvelope(t, conn)
	if env.Channel != domain.ChannelArb || string(env.Data) != `{"run_id":"r1"}` {
		t.Fatalf("arb frame = %+v", env)
	}

	// binary payload on a channel without a decoder is dropped
	if err := bus.Publish(ctx, domain.ChannelArb, []byte{0x0a, 0x01}); err != nil {
		t.Fatal(err)
	}
	if err := bus.Publish(ctx, domain.ChannelPrices, []byte("uni")); err != nil {
		t.Fatal(err)
	}
	env = readEnvelope(t, conn)
	var data map[string]string
	if err := json.Unmarshal(env.Data, &data); err != nil || env.Channel != domain.ChannelPrices || data["decoded"] != "UNI" {
		t.Fatalf("prices frame = %+v, err %v", env, err)
	}
}

func TestClientSubscriptions(t *testing.T) {
	c := &client{subs: map[string]bool{domain.ChannelPrices: true, domain.ChannelArb: true}}
	c.apply(subscribeMsg{Action: "unsubscribe", Channels: []string{domain.ChannelPrices}})
	if c.isSubscribed(domain.ChannelPrices) || !c.isSubscribed(domain.ChannelArb) {
		t.Fatalf("subs after unsubscribe = %v", c.subs)
	}
	c.apply(subscribeMsg{Action: "subscribe", Channels: []string{domain.ChannelPrices}})
	if !c.isSubscribed(domain.ChannelPrices) {
		t.Fatal("resubscribe ignored")
	}
}
