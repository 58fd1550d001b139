package postgres

import (
	"strings"
	"testing"
	"time"

	"github.com/alanyoungcy/pricearb/internal/domain"
)

func TestDSN(t *testing.T) {
	tests := []struct {
		name string
		cfg  ClientConfig
		want string
	}{
		{"explicit", ClientConfig{DSN: "postgres://u@h/db", Host: "ignored"}, "postgres://u@h/db"},
		{"defaults", ClientConfig{Host: "db", User: "arb", Password: "pw", Database: "pricearb"},
			"postgres://arb:pw@db:5432/pricearb?sslmode=disable"},
		{"ssl", ClientConfig{Host: "db", Port: 6432, User: "arb", Database: "x", SSLMode: "require"},
			"postgres://arb:@db:6432/x?sslmode=require"},
		{"escaped password", ClientConfig{Host: "db", User: "arb", Password: "p@ss/word", Database: "x"},
			"postgres://arb:p%40ss%2Fword@db:5432/x?sslmode=disable"},
	}
	for _, tt := range tests {
		if got := DSN(tt.cfg); got != tt.want {
			t.Errorf("%s: DSN = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestListRecentQuery(t *testing.T) {
	q, args := listRecentQuery(domain.ListOpts{})
	if strings.Contains(q, "WHERE") || strings.Contains(q, "LIMIT") || len(args) != 0 {
		t.Fatalf("unfiltered query = %q %v", q, args)
	}

	since := time.Date(2025, 7, 28, 0, 0, 0, 0, time.UTC)
	until := since.Add(time.Hour)
	q, args = listRecentQuery(domain.ListOpts{Limit: 20, Offset: 40, Since: &since, Until: &until})
	for _, frag := range []string{"detected_at >= $1", "detected_at < $2", "LIMIT $3", "OFFSET $4", "ORDER BY detected_at DESC"} {
		if !strings.Contains(q, frag) {
			t.Errorf("query missing %q: %s", frag, q)
		}
	}
	if len(args) != 4 || args[2] != 20 || args[3] != 40 {
		t.Fatalf("args = %v", args)
	}
}

func TestMigrationsEmbedded(t *testing.T) {
	names, err := migrationNames()
	if err != nil || len(names) == 0 || names[0] != "001_init.sql" {
		t.Fatalf("migrations: %v, %v", err, names)
	}
	sql, _ := migrationsFS.ReadFile("migrations/" + names[0])
	for _, table := range []string{"opportunities", "scheduled_trades"} {
		if !strings.Contains(string(sql), "CREATE TABLE IF NOT EXISTS "+table) {
			t.Errorf("migration does not create %s", table)
		}
	}
}
