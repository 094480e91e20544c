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

// NewsRepository handles database operations for fact_news
type NewsRepository struct {
	pool *pgxpool.Pool
}

// NewNewsRepository creates a new NewsRepository
func NewNewsRepository(pool *pgxpool.Pool) *NewsRepository {
	return &NewsRepository{pool: pool}
}

// Insert stores one news item and returns its row ID. The url column is
// unbounded TEXT; the full URL is stored unchanged regardless of length.
func (r *NewsRepository) Insert(ctx context.Context, item models.NewsItem) (int64, error) {
	query := `
		INSERT INTO fact_news (security_id, time_id, headline, url, source, sentiment, catalyst)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`
	var id int64
	err := r.pool.QueryRow(ctx, query,
		item.SecurityID, item.TimeID, item.Headline, item.URL, item.Source,
		item.Sentiment, string(item.Catalyst),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("%w: store news item: %v", classifyPgError(err), err)
	}
	return id, nil
}

// GetByID retrieves one news item by row ID
func (r *NewsRepository) GetByID(ctx context.Context, id int64) (*models.NewsItem, error) {
	query := `
		SELECT id, security_id, time_id, headline, url, source, sentiment, catalyst,
		       impact_5m, impact_15m, impact_30m, impact_1h, impact_4h, impact_1d, impact_final
		FROM fact_news
		WHERE id = $1
	`
	n := &models.NewsItem{}
	var catalyst string
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&n.ID, &n.SecurityID, &n.TimeID, &n.Headline, &n.URL, &n.Source, &n.Sentiment, &catalyst,
		&n.Impact5m, &n.Impact15m, &n.Impact30m, &n.Impact1h, &n.Impact4h, &n.Impact1d, &n.ImpactFinal,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, derr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get news item: %w", err)
	}
	n.Catalyst = models.CatalystStrength(catalyst)
	return n, nil
}

// PendingImpactRow is a news row still awaiting price-impact backfill,
// joined with its publication instant and a reference price.
type PendingImpactRow struct {
	NewsID      int64
	SecurityID  int64
	PublishedAt time.Time
	BasePrice   *float64 // close of the bar nearest publication, nil if none yet
	Impact5m    *float64
	Impact15m   *float64
	Impact30m   *float64
	Impact1h    *float64
	Impact4h    *float64
	Impact1d    *float64
}

// ListPendingImpact returns news rows with at least one unfilled impact
// column, oldest first, bounded by limit. The base price is the close of
// the first bar at or after publication.
func (r *NewsRepository) ListPendingImpact(ctx context.Context, limit int) ([]PendingImpactRow, error) {
	query := `
		SELECT n.id, n.security_id, t.ts,
		       (SELECT p.close FROM fact_price_bar p
		        WHERE p.security_id = n.security_id AND p.bar_ts >= t.ts
		        ORDER BY p.bar_ts ASC LIMIT 1),
		       n.impact_5m, n.impact_15m, n.impact_30m, n.impact_1h, n.impact_4h, n.impact_1d
		FROM fact_news n
		JOIN dim_time t ON t.id = n.time_id
		WHERE NOT n.impact_final
		ORDER BY n.inserted_at ASC
		LIMIT $1
	`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending impact rows: %w", err)
	}
	defer rows.Close()

	var result []PendingImpactRow
	for rows.Next() {
		var p PendingImpactRow
		if err := rows.Scan(&p.NewsID, &p.SecurityID, &p.PublishedAt, &p.BasePrice,
			&p.Impact5m, &p.Impact15m, &p.Impact30m, &p.Impact1h, &p.Impact4h, &p.Impact1d); err != nil {
			return nil, fmt.Errorf("failed to scan pending impact row: %w", err)
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

// UpdateImpact back-fills the delayed price-impact columns of a news row.
// Nil values leave the column untouched so partial progress is never lost.
func (r *NewsRepository) UpdateImpact(ctx context.Context, newsID int64,
	i5m, i15m, i30m, i1h, i4h, i1d *float64, final bool) error {
	query := `
		UPDATE fact_news
		SET impact_5m    = COALESCE($2, impact_5m),
		    impact_15m   = COALESCE($3, impact_15m),
		    impact_30m   = COALESCE($4, impact_30m),
		    impact_1h    = COALESCE($5, impact_1h),
		    impact_4h    = COALESCE($6, impact_4h),
		    impact_1d    = COALESCE($7, impact_1d),
		    impact_final = $8
		WHERE id = $1
	`
	_, err := r.pool.Exec(ctx, query, newsID, i5m, i15m, i30m, i1h, i4h, i1d, final)
	if err != nil {
		return fmt.Errorf("failed to update news impact for %d: %w", newsID, err)
	}
	return nil
}
