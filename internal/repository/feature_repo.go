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

// refreshJob is the watermark key for the feature matrix refresher
const refreshJob = "feature_matrix"

// refreshSafetyLag keeps the refresh window's upper bound below the
// database clock. inserted_at is fixed at statement start, so a producer
// transaction can commit a row timestamped before a concurrently computed
// now(); bounding the window at now() minus the lag keeps such a row ahead
// of the watermark for the next run instead of silently behind it. The lag
// must exceed the longest producer write transaction.
const refreshSafetyLag = 5 * time.Second

// FeatureRepository maintains and serves the denormalized feature matrix
type FeatureRepository struct {
	pool      *pgxpool.Pool
	safetyLag time.Duration
}

// NewFeatureRepository creates a new FeatureRepository
func NewFeatureRepository(pool *pgxpool.Pool) *FeatureRepository {
	return &FeatureRepository{pool: pool, safetyLag: refreshSafetyLag}
}

// refreshSQL recomputes feature rows whose underlying facts changed in
// (since, upto]. Affected keys are the union of newly inserted bars, bars
// within the trailing news window of newly inserted news, and bars matching
// newly inserted indicator snapshots. Cost scales with new data, not total
// history.
const refreshSQL = `
WITH affected AS (
    SELECT security_id, time_id, timeframe
    FROM fact_price_bar
    WHERE inserted_at > $1 AND inserted_at <= $2
    UNION
    SELECT b.security_id, b.time_id, b.timeframe
    FROM fact_news n
    JOIN dim_time nt ON nt.id = n.time_id
    JOIN fact_price_bar b ON b.security_id = n.security_id
        AND b.bar_ts >= nt.ts AND b.bar_ts <= nt.ts + make_interval(secs => $3)
    WHERE n.inserted_at > $1 AND n.inserted_at <= $2
    UNION
    SELECT i.security_id, i.time_id, i.timeframe
    FROM fact_indicator i
    WHERE i.inserted_at > $1 AND i.inserted_at <= $2
)
INSERT INTO feature_matrix
    (security_id, time_id, timeframe, symbol, sector_name, ts, close, volume,
     news_count, news_max_catalyst, news_avg_sentiment, indicators, refreshed_at)
SELECT b.security_id, b.time_id, b.timeframe, s.symbol, sec.name, b.bar_ts,
       b.close, b.volume,
       COALESCE(na.cnt, 0), na.max_catalyst, na.avg_sentiment, ia.vals, now()
FROM affected a
JOIN fact_price_bar b
    ON (b.security_id, b.time_id, b.timeframe) = (a.security_id, a.time_id, a.timeframe)
JOIN dim_security s ON s.id = b.security_id
LEFT JOIN dim_sector sec ON sec.id = s.sector_id
LEFT JOIN LATERAL (
    SELECT count(*) AS cnt,
           avg(n.sentiment) AS avg_sentiment,
           (SELECT n2.catalyst
            FROM fact_news n2
            JOIN dim_time t2 ON t2.id = n2.time_id
            WHERE n2.security_id = b.security_id
              AND t2.ts > b.bar_ts - make_interval(secs => $3) AND t2.ts <= b.bar_ts
            ORDER BY CASE n2.catalyst
                WHEN 'major' THEN 4 WHEN 'strong' THEN 3
                WHEN 'moderate' THEN 2 WHEN 'weak' THEN 1 ELSE 0 END DESC
            LIMIT 1) AS max_catalyst
    FROM fact_news n
    JOIN dim_time t ON t.id = n.time_id
    WHERE n.security_id = b.security_id
      AND t.ts > b.bar_ts - make_interval(secs => $3) AND t.ts <= b.bar_ts
) na ON TRUE
LEFT JOIN LATERAL (
    SELECT jsonb_object_agg(i.name, i.value) AS vals
    FROM fact_indicator i
    WHERE (i.security_id, i.time_id, i.timeframe) = (b.security_id, b.time_id, b.timeframe)
) ia ON TRUE
ON CONFLICT (security_id, time_id, timeframe) DO UPDATE
SET symbol = EXCLUDED.symbol, sector_name = EXCLUDED.sector_name,
    ts = EXCLUDED.ts, close = EXCLUDED.close, volume = EXCLUDED.volume,
    news_count = EXCLUDED.news_count,
    news_max_catalyst = EXCLUDED.news_max_catalyst,
    news_avg_sentiment = EXCLUDED.news_avg_sentiment,
    indicators = EXCLUDED.indicators,
    refreshed_at = EXCLUDED.refreshed_at
`

// GetWatermark returns the committed high-water mark for the refresher.
// Zero time when no refresh has ever run.
func (r *FeatureRepository) GetWatermark(ctx context.Context) (time.Time, error) {
	var hw time.Time
	err := r.pool.QueryRow(ctx,
		`SELECT high_water FROM refresh_watermark WHERE job = $1`, refreshJob,
	).Scan(&hw)
	if errors.Is(err, pgx.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to get refresh watermark: %w", err)
	}
	return hw, nil
}

// RefreshSince recomputes feature rows for facts inserted in (since, upto]
// and advances the watermark, all in one transaction, where upto is the
// database clock minus the safety lag. Invariant: the watermark never moves
// past an inserted_at the refresh snapshot could not yet see, and never
// moves backwards. On failure the prior view and watermark both survive
// untouched. Returns the number of feature rows written and the committed
// upper bound.
func (r *FeatureRepository) RefreshSince(ctx context.Context, since time.Time, newsWindow time.Duration) (int64, time.Time, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("%w: begin refresh: %v", derr.ErrRefreshFailed, err)
	}
	defer tx.Rollback(ctx)

	// The upper bound comes from the database clock, never the process
	// wall clock, so it is comparable to inserted_at.
	var upto time.Time
	err = tx.QueryRow(ctx, `SELECT now() - make_interval(secs => $1)`, r.safetyLag.Seconds()).Scan(&upto)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("%w: compute refresh bound: %v", derr.ErrRefreshFailed, err)
	}
	if !upto.After(since) {
		return 0, since, nil
	}

	ct, err := tx.Exec(ctx, refreshSQL, since, upto, newsWindow.Seconds())
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("%w: recompute feature rows: %v", derr.ErrRefreshFailed, err)
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO refresh_watermark (job, high_water)
		VALUES ($1, $2)
		ON CONFLICT (job) DO UPDATE
		SET high_water = GREATEST(refresh_watermark.high_water, EXCLUDED.high_water)
	`, refreshJob, upto); err != nil {
		return 0, time.Time{}, fmt.Errorf("%w: advance watermark: %v", derr.ErrRefreshFailed, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, time.Time{}, fmt.Errorf("%w: commit refresh: %v", derr.ErrRefreshFailed, err)
	}
	return ct.RowsAffected(), upto, nil
}

// GetFeatures returns feature rows for a symbol within a time range.
// Consumers that need strict consistency must query the fact tables
// directly instead; this view may lag by up to one refresh interval.
func (r *FeatureRepository) GetFeatures(ctx context.Context, symbol, timeframe string, from, to time.Time) ([]models.FeatureRow, error) {
	query := `
		SELECT security_id, time_id, timeframe, symbol, sector_name, ts, close, volume,
		       news_count, news_max_catalyst, news_avg_sentiment,
		       COALESCE(indicators, '{}'::jsonb), refreshed_at
		FROM feature_matrix
		WHERE symbol = $1 AND timeframe = $2 AND ts >= $3 AND ts <= $4
		ORDER BY ts ASC
	`
	rows, err := r.pool.Query(ctx, query, symbol, timeframe, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query feature matrix: %w", err)
	}
	defer rows.Close()

	var result []models.FeatureRow
	for rows.Next() {
		var f models.FeatureRow
		if err := rows.Scan(&f.SecurityID, &f.TimeID, &f.Timeframe, &f.Symbol, &f.SectorName,
			&f.TS, &f.Close, &f.Volume, &f.NewsCount, &f.NewsMaxCatalyst,
			&f.NewsAvgSentiment, &f.Indicators, &f.RefreshedAt); err != nil {
			return nil, fmt.Errorf("failed to scan feature row: %w", err)
		}
		result = append(result, f)
	}
	return result, rows.Err()
}
