// Package migrate applies the schema as an explicit, ordered, idempotent
// migration sequence recorded in schema_migrations.
package migrate

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"
)

type step struct {
	version int
	name    string
	sql     string
}

// steps run in order. Append-only: never renumber or edit an applied step;
// schema changes for deployed databases get a new step (additive-only, since
// external collaborators depend on exact column names).
var steps = []step{
	{1, "create dim_sector", createDimSector},
	{2, "create dim_security", createDimSecurity},
	{3, "create dim_time", createDimTime},
	{4, "create fact_price_bar (partitioned)", createFactPriceBar},
	{5, "create partition_registry", createPartitionRegistry},
	{6, "create fact_news", createFactNews},
	{7, "create fact_indicator", createFactIndicator},
	{8, "create fact_sector_correlation", createFactSectorCorrelation},
	{9, "create fact_macro", createFactMacro},
	{10, "create fact_fundamentals", createFactFundamentals},
	{11, "create fact_analyst_estimate", createFactAnalystEstimate},
	{12, "create feature_matrix and refresh_watermark", createFeatureMatrix},
	{13, "seed GICS sectors", seedSectors},
	{14, "add feature_matrix indicators column", addFeatureIndicators},
}

const createMigrationsTable = `
CREATE TABLE IF NOT EXISTS schema_migrations (
    version    INTEGER PRIMARY KEY,
    name       TEXT NOT NULL,
    applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// Migrate applies all pending migration steps in order. Each step runs in
// its own transaction together with its schema_migrations record, so a
// failure leaves the sequence resumable at the failed step.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, createMigrationsTable); err != nil {
		return fmt.Errorf("failed to create schema_migrations: %w", err)
	}

	applied := make(map[int]bool)
	rows, err := pool.Query(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return fmt.Errorf("failed to read schema_migrations: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return fmt.Errorf("failed to scan migration version: %w", err)
		}
		applied[v] = true
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to read schema_migrations: %w", err)
	}
	rows.Close()

	for _, s := range steps {
		if applied[s.version] {
			continue
		}

		tx, err := pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("failed to begin migration %d: %w", s.version, err)
		}
		if _, err := tx.Exec(ctx, s.sql); err != nil {
			_ = tx.Rollback(ctx)
			return fmt.Errorf("migration %d (%s) failed: %w", s.version, s.name, err)
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO schema_migrations (version, name) VALUES ($1, $2)`,
			s.version, s.name,
		); err != nil {
			_ = tx.Rollback(ctx)
			return fmt.Errorf("failed to record migration %d: %w", s.version, err)
		}
		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", s.version, err)
		}
		log.Infof("applied migration %d: %s", s.version, s.name)
	}

	return nil
}
