package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	derr "github.com/epeers/datamart/internal/errors"
	"github.com/epeers/datamart/internal/models"
)

// FundamentalsRepository handles database operations for fact_fundamentals
// and fact_analyst_estimate
type FundamentalsRepository struct {
	pool *pgxpool.Pool
}

// NewFundamentalsRepository creates a new FundamentalsRepository
func NewFundamentalsRepository(pool *pgxpool.Pool) *FundamentalsRepository {
	return &FundamentalsRepository{pool: pool}
}

// UpsertFundamentals stores one fundamentals record. Re-sends for the same
// (security, fiscal period) replace the prior values; restatements happen.
func (r *FundamentalsRepository) UpsertFundamentals(ctx context.Context, f models.FundamentalsRecord) error {
	query := `
		INSERT INTO fact_fundamentals (security_id, time_id, fiscal_period, revenue, eps_actual, eps_estimate, eps_surprise, pe_ratio)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (security_id, fiscal_period) DO UPDATE
		SET time_id = EXCLUDED.time_id, revenue = EXCLUDED.revenue,
		    eps_actual = EXCLUDED.eps_actual, eps_estimate = EXCLUDED.eps_estimate,
		    eps_surprise = EXCLUDED.eps_surprise, pe_ratio = EXCLUDED.pe_ratio
	`
	_, err := r.pool.Exec(ctx, query,
		f.SecurityID, f.TimeID, f.FiscalPeriod,
		f.Revenue, f.EPSActual, f.EPSEstimate, f.EPSSurprise, f.PERatio,
	)
	if err != nil {
		return fmt.Errorf("%w: store fundamentals: %v", classifyPgError(err), err)
	}
	return nil
}

// GetFundamentals retrieves one fundamentals record by natural key
func (r *FundamentalsRepository) GetFundamentals(ctx context.Context, securityID int64, fiscalPeriod string) (*models.FundamentalsRecord, error) {
	query := `
		SELECT security_id, time_id, fiscal_period, revenue, eps_actual, eps_estimate, eps_surprise, pe_ratio
		FROM fact_fundamentals
		WHERE security_id = $1 AND fiscal_period = $2
	`
	f := &models.FundamentalsRecord{}
	err := r.pool.QueryRow(ctx, query, securityID, fiscalPeriod).Scan(
		&f.SecurityID, &f.TimeID, &f.FiscalPeriod,
		&f.Revenue, &f.EPSActual, &f.EPSEstimate, &f.EPSSurprise, &f.PERatio,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, derr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get fundamentals: %w", err)
	}
	return f, nil
}

// UpsertEstimate stores one analyst estimate, replacing a prior estimate
// from the same firm at the same instant.
func (r *FundamentalsRepository) UpsertEstimate(ctx context.Context, e models.AnalystEstimate) error {
	query := `
		INSERT INTO fact_analyst_estimate (security_id, time_id, firm, rating, price_target, eps_estimate)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (security_id, time_id, firm) DO UPDATE
		SET rating = EXCLUDED.rating, price_target = EXCLUDED.price_target,
		    eps_estimate = EXCLUDED.eps_estimate
	`
	_, err := r.pool.Exec(ctx, query,
		e.SecurityID, e.TimeID, e.Firm, e.Rating, e.PriceTarget, e.EPSEstimate,
	)
	if err != nil {
		return fmt.Errorf("%w: store analyst estimate: %v", classifyPgError(err), err)
	}
	return nil
}
