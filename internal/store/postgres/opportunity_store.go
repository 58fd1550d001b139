package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/pricearb/internal/domain"
)

// OpportunityStore implements domain.OpportunityStore using PostgreSQL.
// Opportunity IDs are derived from the detection key, so re-running an
// analysis over the same data inserts nothing new.
type OpportunityStore struct {
	pool *pgxpool.Pool
}

// NewOpportunityStore creates a new OpportunityStore backed by the given pool.
func NewOpportunityStore(pool *pgxpool.Pool) *OpportunityStore {
	return &OpportunityStore{pool: pool}
}

const opportunitySelectCols = `id, strategy, token, ts,
	buy_venue, buy_segment, buy_price, buy_ts,
	sell_venue, sell_segment, sell_price, sell_ts,
	spread_pct, net_profit, profit_pct, capital_efficiency,
	costs, dedup_key, detected_at`

const insertOpportunity = `
	INSERT INTO opportunities (
		id, strategy, token, ts,
		buy_venue, buy_segment, buy_price, buy_ts,
		sell_venue, sell_segment, sell_price, sell_ts,
		spread_pct, net_profit, profit_pct, capital_efficiency,
		costs, dedup_key, detected_at
	) VALUES (
		$1, $2, $3, $4,
		$5, $6, $7, $8,
		$9, $10, $11, $12,
		$13, $14, $15, $16,
		$17, $18, $19
	) ON CONFLICT (id) DO NOTHING`

func queueOpportunity(batch *pgx.Batch, o domain.Opportunity) error {
	costs, err := json.Marshal(o.Costs)
	if err != nil {
		return fmt.Errorf("postgres: marshal costs %s: %w", o.ID, err)
	}
	batch.Queue(insertOpportunity,
		o.ID, o.Strategy, o.Token, o.Timestamp,
		o.Buy.Venue, o.Buy.Segment, o.Buy.Price, o.Buy.Timestamp,
		o.Sell.Venue, o.Sell.Segment, o.Sell.Price, o.Sell.Timestamp,
		o.SpreadPct, o.NetProfit, o.ProfitPct, o.CapitalEfficiency,
		costs, o.Key, o.DetectedAt,
	)
	return nil
}

// InsertBatch stores opps and returns how many rows were new.
func (s *OpportunityStore) InsertBatch(ctx context.Context, opps []domain.Opportunity) (int64, error) {
	if len(opps) == 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	for _, o := range opps {
		if err := queueOpportunity(batch, o); err != nil {
			return 0, err
		}
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	var inserted int64
	for i := range opps {
		tag, err := br.Exec()
		if err != nil {
			return inserted, fmt.Errorf("postgres: insert opportunity batch item %d: %w", i, err)
		}
		inserted += tag.RowsAffected()
	}
	return inserted, nil
}

// InsertScheduled records one scheduler run. The referenced opportunities
// are inserted first if missing; the whole run commits atomically.
func (s *OpportunityStore) InsertScheduled(ctx context.Context, runID string, trades []domain.ScheduledTrade) error {
	if len(trades) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin schedule %s: %w", runID, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	const insertTrade = `
		INSERT INTO scheduled_trades (run_id, opportunity_id, start_ts, end_ts, net_profit)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (run_id, opportunity_id) DO NOTHING`

	batch := &pgx.Batch{}
	for _, t := range trades {
		if err := queueOpportunity(batch, t.Opportunity); err != nil {
			return err
		}
		batch.Queue(insertTrade, runID, t.Opportunity.ID, t.Start, t.End, t.Opportunity.NetProfit)
	}

	br := tx.SendBatch(ctx, batch)
	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return fmt.Errorf("postgres: insert schedule %s item %d: %w", runID, i, err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("postgres: close schedule batch %s: %w", runID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit schedule %s: %w", runID, err)
	}
	return nil
}

// ListRecent returns opportunities newest first.
func (s *OpportunityStore) ListRecent(ctx context.Context, opts domain.ListOpts) ([]domain.Opportunity, error) {
	query, args := listRecentQuery(opts)
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list recent opportunities: %w", err)
	}
	defer rows.Close()

	opps, err := scanOpportunityRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: list recent opportunities: %w", err)
	}
	return opps, nil
}

func listRecentQuery(opts domain.ListOpts) (string, []any) {
	var (
		where []string
		args  []any
	)
	if opts.Since != nil {
		args = append(args, *opts.Since)
		where = append(where, fmt.Sprintf("detected_at >= $%d", len(args)))
	}
	if opts.Until != nil {
		args = append(args, *opts.Until)
		where = append(where, fmt.Sprintf("detected_at < $%d", len(args)))
	}

	query := `SELECT ` + opportunitySelectCols + ` FROM opportunities`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY detected_at DESC, ts DESC, id"
	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if opts.Offset > 0 {
		args = append(args, opts.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}
	return query, args
}

func scanOpportunityRows(rows pgx.Rows) ([]domain.Opportunity, error) {
	var opps []domain.Opportunity
	for rows.Next() {
		var (
			o     domain.Opportunity
			costs []byte
		)
		if err := rows.Scan(
			&o.ID, &o.Strategy, &o.Token, &o.Timestamp,
			&o.Buy.Venue, &o.Buy.Segment, &o.Buy.Price, &o.Buy.Timestamp,
			&o.Sell.Venue, &o.Sell.Segment, &o.Sell.Price, &o.Sell.Timestamp,
			&o.SpreadPct, &o.NetProfit, &o.ProfitPct, &o.CapitalEfficiency,
			&costs, &o.Key, &o.DetectedAt,
		); err != nil {
			return nil, fmt.Errorf("scan opportunity: %w", err)
		}
		if len(costs) > 0 {
			if err := json.Unmarshal(costs, &o.Costs); err != nil {
				return nil, fmt.Errorf("decode costs %s: %w", o.ID, err)
			}
		}
		opps = append(opps, o)
	}
	return opps, rows.Err()
}

// Compile-time interface check.
var _ domain.OpportunityStore = (*OpportunityStore)(nil)
