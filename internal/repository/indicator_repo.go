package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/epeers/datamart/internal/models"
)

// IndicatorRepository handles database operations for fact_indicator and
// fact_sector_correlation
type IndicatorRepository struct {
	pool *pgxpool.Pool
}

// NewIndicatorRepository creates a new IndicatorRepository
func NewIndicatorRepository(pool *pgxpool.Pool) *IndicatorRepository {
	return &IndicatorRepository{pool: pool}
}

// UpsertSnapshot stores one indicator snapshot. Indicator values are never
// corrected after insert, so a conflicting re-send is a no-op.
func (r *IndicatorRepository) UpsertSnapshot(ctx context.Context, snap models.IndicatorSnapshot) error {
	query := `
		INSERT INTO fact_indicator (security_id, time_id, timeframe, name, value)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (security_id, time_id, timeframe, name) DO NOTHING
	`
	_, err := r.pool.Exec(ctx, query,
		snap.SecurityID, snap.TimeID, snap.Timeframe, snap.Name, snap.Value,
	)
	if err != nil {
		return fmt.Errorf("%w: store indicator snapshot: %v", classifyPgError(err), err)
	}
	return nil
}

// UpsertSnapshots stores a batch of indicator snapshots
func (r *IndicatorRepository) UpsertSnapshots(ctx context.Context, snaps []models.IndicatorSnapshot) error {
	if len(snaps) == 0 {
		return nil
	}

	query := `
		INSERT INTO fact_indicator (security_id, time_id, timeframe, name, value)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (security_id, time_id, timeframe, name) DO NOTHING
	`

	batch := &pgx.Batch{}
	for _, s := range snaps {
		batch.Queue(query, s.SecurityID, s.TimeID, s.Timeframe, s.Name, s.Value)
	}

	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range snaps {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("%w: store indicator batch: %v", classifyPgError(err), err)
		}
	}
	return nil
}

// GetSnapshots retrieves all indicator values for one (security, time, timeframe) key
func (r *IndicatorRepository) GetSnapshots(ctx context.Context, securityID, timeID int64, timeframe string) ([]models.IndicatorSnapshot, error) {
	query := `
		SELECT security_id, time_id, timeframe, name, value
		FROM fact_indicator
		WHERE security_id = $1 AND time_id = $2 AND timeframe = $3
		ORDER BY name
	`
	rows, err := r.pool.Query(ctx, query, securityID, timeID, timeframe)
	if err != nil {
		return nil, fmt.Errorf("failed to query indicator snapshots: %w", err)
	}
	defer rows.Close()

	var snaps []models.IndicatorSnapshot
	for rows.Next() {
		var s models.IndicatorSnapshot
		if err := rows.Scan(&s.SecurityID, &s.TimeID, &s.Timeframe, &s.Name, &s.Value); err != nil {
			return nil, fmt.Errorf("failed to scan indicator snapshot: %w", err)
		}
		snaps = append(snaps, s)
	}
	return snaps, rows.Err()
}

// UpsertCorrelation stores one sector-correlation reading
func (r *IndicatorRepository) UpsertCorrelation(ctx context.Context, c models.SectorCorrelation) error {
	query := `
		INSERT INTO fact_sector_correlation (security_id, sector_id, time_id, window_days, correlation)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (security_id, sector_id, time_id, window_days) DO UPDATE
		SET correlation = EXCLUDED.correlation
	`
	_, err := r.pool.Exec(ctx, query,
		c.SecurityID, c.SectorID, c.TimeID, c.WindowDays, c.Correlation,
	)
	if err != nil {
		return fmt.Errorf("%w: store sector correlation: %v", classifyPgError(err), err)
	}
	return nil
}
