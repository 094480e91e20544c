package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	derr "github.com/epeers/datamart/internal/errors"
	"github.com/epeers/datamart/internal/models"
)

// PriceRepository handles database operations for fact_price_bar
type PriceRepository struct {
	pool *pgxpool.Pool
}

// NewPriceRepository creates a new PriceRepository
func NewPriceRepository(pool *pgxpool.Pool) *PriceRepository {
	return &PriceRepository{pool: pool}
}

// UpsertBar stores one price bar. A duplicate bar for the same
// (security, time, timeframe) is an update-if-changed, not an error, because
// upstream producers legitimately re-send corrected late bars. A write into
// a time range with no partition returns ErrPartitionGap.
func (r *PriceRepository) UpsertBar(ctx context.Context, bar models.PriceBar) error {
	query := `
		INSERT INTO fact_price_bar (security_id, time_id, bar_ts, timeframe, open, high, low, close, volume, vwap)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (security_id, bar_ts, timeframe) DO UPDATE
		SET open = EXCLUDED.open, high = EXCLUDED.high, low = EXCLUDED.low,
		    close = EXCLUDED.close, volume = EXCLUDED.volume, vwap = EXCLUDED.vwap,
		    inserted_at = now()
		WHERE (fact_price_bar.open, fact_price_bar.high, fact_price_bar.low,
		       fact_price_bar.close, fact_price_bar.volume)
		      IS DISTINCT FROM
		      (EXCLUDED.open, EXCLUDED.high, EXCLUDED.low, EXCLUDED.close, EXCLUDED.volume)
	`
	_, err := r.pool.Exec(ctx, query,
		bar.SecurityID, bar.TimeID, bar.BarTS, bar.Timeframe,
		bar.Open, bar.High, bar.Low, bar.Close, bar.Volume, bar.VWAP,
	)
	if err != nil {
		return fmt.Errorf("%w: store price bar: %v", classifyPgError(err), err)
	}
	return nil
}

// UpsertBars stores a batch of price bars with the same semantics as
// UpsertBar, using a single round-trip.
func (r *PriceRepository) UpsertBars(ctx context.Context, bars []models.PriceBar) error {
	if len(bars) == 0 {
		return nil
	}

	query := `
		INSERT INTO fact_price_bar (security_id, time_id, bar_ts, timeframe, open, high, low, close, volume, vwap)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (security_id, bar_ts, timeframe) DO UPDATE
		SET open = EXCLUDED.open, high = EXCLUDED.high, low = EXCLUDED.low,
		    close = EXCLUDED.close, volume = EXCLUDED.volume, vwap = EXCLUDED.vwap,
		    inserted_at = now()
		WHERE (fact_price_bar.open, fact_price_bar.high, fact_price_bar.low,
		       fact_price_bar.close, fact_price_bar.volume)
		      IS DISTINCT FROM
		      (EXCLUDED.open, EXCLUDED.high, EXCLUDED.low, EXCLUDED.close, EXCLUDED.volume)
	`

	batch := &pgx.Batch{}
	for _, b := range bars {
		batch.Queue(query, b.SecurityID, b.TimeID, b.BarTS, b.Timeframe,
			b.Open, b.High, b.Low, b.Close, b.Volume, b.VWAP)
	}

	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range bars {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("%w: store price bar batch: %v", classifyPgError(err), err)
		}
	}
	return nil
}

// GetBar retrieves one price bar by its natural key
func (r *PriceRepository) GetBar(ctx context.Context, securityID, timeID int64, timeframe string) (*models.PriceBar, error) {
	query := `
		SELECT security_id, time_id, bar_ts, timeframe, open, high, low, close, volume, vwap
		FROM fact_price_bar
		WHERE security_id = $1 AND time_id = $2 AND timeframe = $3
	`
	b := &models.PriceBar{}
	err := r.pool.QueryRow(ctx, query, securityID, timeID, timeframe).Scan(
		&b.SecurityID, &b.TimeID, &b.BarTS, &b.Timeframe,
		&b.Open, &b.High, &b.Low, &b.Close, &b.Volume, &b.VWAP,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, derr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get price bar: %w", err)
	}
	return b, nil
}

// GetBars retrieves bars for a security within a time range, ordered by bar time
func (r *PriceRepository) GetBars(ctx context.Context, securityID int64, timeframe string, from, to time.Time) ([]models.PriceBar, error) {
	query := `
		SELECT security_id, time_id, bar_ts, timeframe, open, high, low, close, volume, vwap
		FROM fact_price_bar
		WHERE security_id = $1 AND timeframe = $2 AND bar_ts >= $3 AND bar_ts <= $4
		ORDER BY bar_ts ASC
	`
	rows, err := r.pool.Query(ctx, query, securityID, timeframe, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query price bars: %w", err)
	}
	defer rows.Close()

	var bars []models.PriceBar
	for rows.Next() {
		var b models.PriceBar
		if err := rows.Scan(&b.SecurityID, &b.TimeID, &b.BarTS, &b.Timeframe,
			&b.Open, &b.High, &b.Low, &b.Close, &b.Volume, &b.VWAP); err != nil {
			return nil, fmt.Errorf("failed to scan price bar: %w", err)
		}
		bars = append(bars, b)
	}
	return bars, rows.Err()
}

// CloseAtOrAfter returns the close of the first bar at or after ts for a
// security, any timeframe. Used by the news impact backfill; nil when no
// such bar exists yet.
func (r *PriceRepository) CloseAtOrAfter(ctx context.Context, securityID int64, ts time.Time) (*float64, error) {
	query := `
		SELECT close
		FROM fact_price_bar
		WHERE security_id = $1 AND bar_ts >= $2
		ORDER BY bar_ts ASC
		LIMIT 1
	`
	var close float64
	err := r.pool.QueryRow(ctx, query, securityID, ts).Scan(&close)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get close at or after %s: %w", ts.Format(time.RFC3339), err)
	}
	return &close, nil
}
