// Package sqlite keeps the resolved-pool registry in a local SQLite file so
// restarts skip on-chain pool discovery.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	_ "modernc.org/sqlite"

	"github.com/alanyoungcy/pricearb/internal/domain"
)

// DefaultPath is used when no path is configured.
const DefaultPath = "./data/pools.db"

// PoolStore implements domain.PoolStore. Rows are write-once: a second
// insert for the same (network, token) is ignored, so concurrent first-time
// resolutions converge on whichever landed first.
type PoolStore struct {
	db *sql.DB
}

// NewPoolStore opens (creating if needed) the database at path.
func NewPoolStore(path string) (*PoolStore, error) {
	if path == "" {
		path = DefaultPath
	}

	dsn := path
	if !strings.HasPrefix(path, "file:") {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("sqlite: create dir %s: %w", dir, err)
			}
		}
		dsn = fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", path, err)
	}
	// one connection avoids SQLITE_BUSY between the driver's own conns
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &PoolStore{db: db}
	if err := s.init(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *PoolStore) init(ctx context.Context) error {
	const createTable = `
CREATE TABLE IF NOT EXISTS pools (
	network          TEXT    NOT NULL,
	token            TEXT    NOT NULL,
	pool_address     TEXT    NOT NULL,
	fee_tier         INTEGER NOT NULL,
	token_is_token0  INTEGER NOT NULL,
	created_at       DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (network, token)
);`
	if _, err := s.db.ExecContext(ctx, createTable); err != nil {
		return fmt.Errorf("sqlite: create pools table: %w", err)
	}
	return nil
}

// InsertIfAbsent stores e unless (network, token) already has a row.
func (s *PoolStore) InsertIfAbsent(ctx context.Context, e domain.PoolCacheEntry) error {
	const insertStmt = `
INSERT INTO pools (network, token, pool_address, fee_tier, token_is_token0)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(network, token) DO NOTHING;`

	_, err := s.db.ExecContext(ctx, insertStmt,
		e.Network, e.Token, e.PoolAddress.Hex(), e.FeeTier, e.TokenIsToken0,
	)
	if err != nil {
		return fmt.Errorf("sqlite: insert pool %s/%s: %w", e.Network, e.Token, err)
	}
	return nil
}

// Get returns the entry for (network, token) or domain.ErrNotFound.
func (s *PoolStore) Get(ctx context.Context, network, token string) (domain.PoolCacheEntry, error) {
	const selectStmt = `
SELECT network, token, pool_address, fee_tier, token_is_token0
FROM pools WHERE network = ? AND token = ?;`

	e, err := scanEntry(s.db.QueryRowContext(ctx, selectStmt, network, token))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.PoolCacheEntry{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.PoolCacheEntry{}, fmt.Errorf("sqlite: get pool %s/%s: %w", network, token, err)
	}
	return e, nil
}

// List returns every stored entry ordered by network and token.
func (s *PoolStore) List(ctx context.Context) ([]domain.PoolCacheEntry, error) {
	const selectStmt = `
SELECT network, token, pool_address, fee_tier, token_is_token0
FROM pools ORDER BY network, token;`

	rows, err := s.db.QueryContext(ctx, selectStmt)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list pools: %w", err)
	}
	defer rows.Close()

	var out []domain.PoolCacheEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scan pool: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Close closes the database.
func (s *PoolStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(r rowScanner) (domain.PoolCacheEntry, error) {
	var (
		e      domain.PoolCacheEntry
		addr   string
		fee    int64
		token0 bool
	)
	if err := r.Scan(&e.Network, &e.Token, &addr, &fee, &token0); err != nil {
		return domain.PoolCacheEntry{}, err
	}
	e.PoolAddress = common.HexToAddress(addr)
	e.FeeTier = uint32(fee)
	e.TokenIsToken0 = token0
	return e, nil
}

// Compile-time interface check.
var _ domain.PoolStore = (*PoolStore)(nil)
