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

var ErrSecurityNotFound = errors.New("security not found")

// DimensionRepository handles database operations for the dimension tables.
// All mutation of dim_security and dim_time goes through the insert-or-fetch
// methods here; there is no ad hoc read-then-insert anywhere else.
type DimensionRepository struct {
	pool *pgxpool.Pool
}

// NewDimensionRepository creates a new DimensionRepository
func NewDimensionRepository(pool *pgxpool.Pool) *DimensionRepository {
	return &DimensionRepository{pool: pool}
}

// InsertOrFetchSecurity resolves a normalized symbol to its surrogate ID,
// creating the row on first reference. The conditional upsert plus re-read
// closes the race two producers hit when resolving the same new symbol
// concurrently: the loser of the insert sees zero rows and fetches the
// winner's ID.
func (r *DimensionRepository) InsertOrFetchSecurity(ctx context.Context, symbol string) (int64, error) {
	query := `
		INSERT INTO dim_security (symbol)
		VALUES ($1)
		ON CONFLICT (symbol) DO NOTHING
		RETURNING id
	`
	var id int64
	err := r.pool.QueryRow(ctx, query, symbol).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("%w: insert dim_security %q: %v", derr.ErrResolutionFailed, symbol, err)
	}

	// Conflict: the row exists (possibly created a moment ago by a
	// concurrent resolver). Fetch its ID.
	err = r.pool.QueryRow(ctx, `SELECT id FROM dim_security WHERE symbol = $1`, symbol).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("%w: fetch dim_security %q after conflict: %v", derr.ErrResolutionFailed, symbol, err)
	}
	return id, nil
}

// InsertOrFetchTime resolves an instant to its surrogate ID, creating the
// decomposed dim_time row on first reference. Same insert-or-fetch shape as
// InsertOrFetchSecurity.
func (r *DimensionRepository) InsertOrFetchTime(ctx context.Context, tp models.TimePoint) (int64, error) {
	query := `
		INSERT INTO dim_time (ts, date, year, quarter, month, week, day_of_week, market_session)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (ts) DO NOTHING
		RETURNING id
	`
	var id int64
	err := r.pool.QueryRow(ctx, query,
		tp.TS, tp.Date, tp.Year, tp.Quarter, tp.Month, tp.Week, tp.DayOfWeek, string(tp.MarketSession),
	).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("%w: insert dim_time %s: %v", derr.ErrResolutionFailed, tp.TS.Format(time.RFC3339), err)
	}

	err = r.pool.QueryRow(ctx, `SELECT id FROM dim_time WHERE ts = $1`, tp.TS).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("%w: fetch dim_time %s after conflict: %v", derr.ErrResolutionFailed, tp.TS.Format(time.RFC3339), err)
	}
	return id, nil
}

// GetSecurityBySymbol retrieves a security by its normalized symbol
func (r *DimensionRepository) GetSecurityBySymbol(ctx context.Context, symbol string) (*models.Security, error) {
	query := `
		SELECT id, symbol, name, sector_id, exchange, asset_type, active,
		       market_cap, shares_outstanding, created_at, updated_at
		FROM dim_security
		WHERE symbol = $1
	`
	s := &models.Security{}
	err := r.pool.QueryRow(ctx, query, symbol).Scan(
		&s.ID, &s.Symbol, &s.Name, &s.SectorID, &s.Exchange, &s.AssetType, &s.Active,
		&s.MarketCap, &s.SharesOutstanding, &s.CreatedAt, &s.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrSecurityNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get security: %w", err)
	}
	return s, nil
}

// GetSecurityByID retrieves a security by surrogate ID
func (r *DimensionRepository) GetSecurityByID(ctx context.Context, id int64) (*models.Security, error) {
	query := `
		SELECT id, symbol, name, sector_id, exchange, asset_type, active,
		       market_cap, shares_outstanding, created_at, updated_at
		FROM dim_security
		WHERE id = $1
	`
	s := &models.Security{}
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&s.ID, &s.Symbol, &s.Name, &s.SectorID, &s.Exchange, &s.AssetType, &s.Active,
		&s.MarketCap, &s.SharesOutstanding, &s.CreatedAt, &s.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrSecurityNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get security: %w", err)
	}
	return s, nil
}

// UpdateSecurityReference applies a reference-data update to an existing
// security. Symbol and ID are immutable; nil fields are left unchanged.
func (r *DimensionRepository) UpdateSecurityReference(ctx context.Context, symbol string, upd models.SecurityReferenceUpdate, sectorID *int) error {
	query := `
		UPDATE dim_security
		SET name               = COALESCE($2, name),
		    sector_id          = COALESCE($3, sector_id),
		    exchange           = COALESCE($4, exchange),
		    asset_type         = COALESCE($5, asset_type),
		    active             = COALESCE($6, active),
		    market_cap         = COALESCE($7, market_cap),
		    shares_outstanding = COALESCE($8, shares_outstanding),
		    updated_at         = now()
		WHERE symbol = $1
	`
	ct, err := r.pool.Exec(ctx, query, symbol,
		upd.Name, sectorID, upd.Exchange, upd.AssetType, upd.Active,
		upd.MarketCap, upd.SharesOutstanding,
	)
	if err != nil {
		return fmt.Errorf("failed to update security reference for %s: %w", symbol, err)
	}
	if ct.RowsAffected() == 0 {
		return ErrSecurityNotFound
	}
	return nil
}

// GetTimePoint retrieves a dim_time row by surrogate ID
func (r *DimensionRepository) GetTimePoint(ctx context.Context, id int64) (*models.TimePoint, error) {
	query := `
		SELECT id, ts, date, year, quarter, month, week, day_of_week, market_session, is_trading_day
		FROM dim_time
		WHERE id = $1
	`
	tp := &models.TimePoint{}
	var session string
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&tp.ID, &tp.TS, &tp.Date, &tp.Year, &tp.Quarter, &tp.Month, &tp.Week,
		&tp.DayOfWeek, &session, &tp.IsTradingDay,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, derr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get time point: %w", err)
	}
	tp.MarketSession = models.MarketSession(session)
	return tp, nil
}

// MarkTradingDays back-fills the is_trading_day flag for a set of dates.
// This is the only mutation dim_time rows ever see after creation.
func (r *DimensionRepository) MarkTradingDays(ctx context.Context, dates []time.Time, isTradingDay bool) (int64, error) {
	if len(dates) == 0 {
		return 0, nil
	}
	ct, err := r.pool.Exec(ctx,
		`UPDATE dim_time SET is_trading_day = $1 WHERE date = ANY($2)`,
		isTradingDay, dates,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to mark trading days: %w", err)
	}
	return ct.RowsAffected(), nil
}
