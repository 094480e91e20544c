package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/epeers/datamart/internal/models"
)

// MacroRepository handles database operations for fact_macro. Macro
// readings reference dim_time only; there is no security dimension here.
type MacroRepository struct {
	pool *pgxpool.Pool
}

// NewMacroRepository creates a new MacroRepository
func NewMacroRepository(pool *pgxpool.Pool) *MacroRepository {
	return &MacroRepository{pool: pool}
}

// Upsert stores one macro reading, replacing a re-sent value for the same
// (time, indicator) key.
func (r *MacroRepository) Upsert(ctx context.Context, m models.MacroReading) error {
	query := `
		INSERT INTO fact_macro (time_id, indicator, value)
		VALUES ($1, $2, $3)
		ON CONFLICT (time_id, indicator) DO UPDATE
		SET value = EXCLUDED.value
	`
	_, err := r.pool.Exec(ctx, query, m.TimeID, m.Indicator, m.Value)
	if err != nil {
		return fmt.Errorf("%w: store macro reading: %v", classifyPgError(err), err)
	}
	return nil
}

// GetSeries retrieves readings for one indicator within a time range
func (r *MacroRepository) GetSeries(ctx context.Context, indicator string, from, to time.Time) ([]models.MacroReading, error) {
	query := `
		SELECT m.time_id, m.indicator, m.value
		FROM fact_macro m
		JOIN dim_time t ON t.id = m.time_id
		WHERE m.indicator = $1 AND t.ts >= $2 AND t.ts <= $3
		ORDER BY t.ts ASC
	`
	rows, err := r.pool.Query(ctx, query, indicator, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query macro series: %w", err)
	}
	defer rows.Close()

	var readings []models.MacroReading
	for rows.Next() {
		var m models.MacroReading
		if err := rows.Scan(&m.TimeID, &m.Indicator, &m.Value); err != nil {
			return nil, fmt.Errorf("failed to scan macro reading: %w", err)
		}
		readings = append(readings, m)
	}
	return readings, rows.Err()
}
