package s3blob

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/pricearb/internal/domain"
)

type recordingWriter struct {
	objects map[string][]byte
	types   map[string]string
}

func (r *recordingWriter) Put(_ context.Context, obj domain.Object) error {
	r.objects[obj.Key] = obj.Body
	r.types[obj.Key] = obj.ContentType
	return nil
}

func TestNormaliseEndpoint(t *testing.T) {
	tests := []struct {
		in     string
		useSSL bool
		want   string
	}{
		{"localhost:9000", false, "http://localhost:9000"},
		{"e2.example.com", true, "https://e2.example.com"},
		{"https://s3.eu-west-1.amazonaws.com", false, "https://s3.eu-west-1.amazonaws.com"},
		{"http://minio:9000", true, "http://minio:9000"},
	}
	for _, tt := range tests {
		if got := normaliseEndpoint(tt.in, tt.useSSL); got != tt.want {
			t.Errorf("normaliseEndpoint(%q, %v) = %q, want %q", tt.in, tt.useSSL, got, tt.want)
		}
	}
}

func TestReportUploader(t *testing.T) {
	w := &recordingWriter{objects: map[string][]byte{}, types: map[string]string{}}
	u := NewReportUploader(w, "")
	at := time.Date(2025, 7, 28, 23, 0, 0, 0, time.UTC)

	trades := []domain.ScheduledTrade{
		{Opportunity: domain.Opportunity{ID: "a", Token: "UNI", NetProfit: decimal.NewFromInt(5)}, Start: 10, End: 40},
		{Opportunity: domain.Opportunity{ID: "b", Token: "LINK", NetProfit: decimal.NewFromInt(7)}, Start: 50, End: 80},
	}
	keys, err := u.Upload(context.Background(), "run-1", at, map[string]int{"executable": 2}, trades)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{
		"reports/2025/07/28/run-1.json",
		"reports/2025/07/28/run-1.opportunities.jsonl",
	}
	if len(keys) != 2 || keys[0] != want[0] || keys[1] != want[1] {
		t.Fatalf("keys = %v", keys)
	}
	if w.types[want[0]] != "application/json" {
		t.Fatalf("content type = %q", w.types[want[0]])
	}

	sc := bufio.NewScanner(bytes.NewReader(w.objects[want[1]]))
	var ids []string
	for sc.Scan() {
		var tr domain.ScheduledTrade
		if err := json.Unmarshal(sc.Bytes(), &tr); err != nil {
			t.Fatal(err)
		}
		ids = append(ids, tr.Opportunity.ID)
	}
	if len(ids) != 2 || ids[0] != "a" || ids[1] != "b" {
		t.Fatalf("jsonl ids = %v", ids)
	}

	keys, err = u.Upload(context.Background(), "run-2", at, struct{}{}, nil)
	if err != nil || len(keys) != 1 {
		t.Fatalf("empty run keys = %v, err %v", keys, err)
	}
}
