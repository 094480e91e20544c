package services

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/epeers/datamart/internal/repository"
)

// CheckResult is one named invariant check outcome. Operators see exactly
// which invariant broke instead of a single boolean.
type CheckResult struct {
	Name   string `json:"name"`
	Pass   bool   `json:"pass"`
	Detail string `json:"detail,omitempty"`
}

// ValidationReport is the structured pass/fail report for all checks
type ValidationReport struct {
	Pass      bool          `json:"pass"`
	CheckedAt time.Time     `json:"checked_at"`
	Checks    []CheckResult `json:"checks"`
}

// requiredTables maps each expected table to columns external collaborators
// depend on by exact name. Additive-only across deployments.
var requiredTables = map[string][]string{
	"dim_security":         {"id", "symbol", "sector_id", "active"},
	"dim_sector":           {"id", "name", "etf_symbol"},
	"dim_time":             {"id", "ts", "market_session"},
	"fact_price_bar":       {"security_id", "time_id", "timeframe", "close"},
	"fact_news":            {"security_id", "time_id", "url", "sentiment", "catalyst"},
	"fact_indicator":       {"security_id", "time_id", "timeframe", "name", "value"},
	"fact_macro":           {"time_id", "indicator", "value"},
	"fact_fundamentals":    {"security_id", "time_id", "fiscal_period"},
	"fact_analyst_estimate": {"security_id", "time_id", "firm"},
	"feature_matrix":       {"security_id", "time_id", "timeframe", "close"},
}

// factTablesWithSecurity lists fact tables whose rows must reference a live
// security row
var factTablesWithSecurity = []string{
	"fact_price_bar", "fact_news", "fact_indicator",
	"fact_sector_correlation", "fact_fundamentals", "fact_analyst_estimate",
}

// SchemaValidator is a read-only auditor confirming the dimensional
// invariants hold before dependent services are allowed to start.
type SchemaValidator struct {
	pool     *pgxpool.Pool
	resolver *Resolver
	dimRepo  *repository.DimensionRepository
	parts    *repository.PartitionRepository
}

// NewSchemaValidator creates a new SchemaValidator
func NewSchemaValidator(pool *pgxpool.Pool, resolver *Resolver, dimRepo *repository.DimensionRepository, parts *repository.PartitionRepository) *SchemaValidator {
	return &SchemaValidator{pool: pool, resolver: resolver, dimRepo: dimRepo, parts: parts}
}

// Validate runs every check and returns the structured report. Checks are
// independent and run concurrently; one failing check never hides another.
func (v *SchemaValidator) Validate(ctx context.Context) *ValidationReport {
	checks := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"tables_and_columns_present", v.checkTables},
		{"dimension_natural_keys_unique", v.checkUniqueNaturalKeys},
		{"fact_foreign_keys_enforced", v.checkForeignKeys},
		{"no_denormalized_symbol_columns", v.checkNoDenormalizedColumns},
		{"no_orphan_fact_rows", v.checkNoOrphans},
		{"partitions_cover_write_horizon", v.checkPartitionCoverage},
		{"resolver_probe_round_trip", v.checkResolverProbe},
	}

	report := &ValidationReport{
		Pass:      true,
		CheckedAt: time.Now().UTC(),
		Checks:    make([]CheckResult, len(checks)),
	}

	g, gctx := errgroup.WithContext(ctx)
	for i, c := range checks {
		i, c := i, c
		g.Go(func() error {
			err := c.fn(gctx)
			result := CheckResult{Name: c.name, Pass: err == nil}
			if err != nil {
				result.Detail = err.Error()
			}
			report.Checks[i] = result
			return nil // a failed check is a report entry, not an abort
		})
	}
	_ = g.Wait()

	for _, c := range report.Checks {
		if !c.Pass {
			report.Pass = false
		}
	}
	return report
}

func (v *SchemaValidator) checkTables(ctx context.Context) error {
	for table, cols := range requiredTables {
		var regclass *string
		if err := v.pool.QueryRow(ctx, `SELECT to_regclass($1)::text`, table).Scan(&regclass); err != nil {
			return fmt.Errorf("catalog lookup for %s: %w", table, err)
		}
		if regclass == nil {
			return fmt.Errorf("table %s is missing", table)
		}
		for _, col := range cols {
			var exists bool
			err := v.pool.QueryRow(ctx, `
				SELECT EXISTS (
					SELECT 1 FROM information_schema.columns
					WHERE table_name = $1 AND column_name = $2
				)
			`, table, col).Scan(&exists)
			if err != nil {
				return fmt.Errorf("column lookup for %s.%s: %w", table, col, err)
			}
			if !exists {
				return fmt.Errorf("column %s.%s is missing", table, col)
			}
		}
	}
	return nil
}

func (v *SchemaValidator) checkUniqueNaturalKeys(ctx context.Context) error {
	for _, probe := range []struct{ table, column string }{
		{"dim_security", "symbol"},
		{"dim_time", "ts"},
	} {
		var enforced bool
		err := v.pool.QueryRow(ctx, `
			SELECT EXISTS (
				SELECT 1
				FROM pg_constraint c
				JOIN pg_attribute a ON a.attrelid = c.conrelid AND a.attnum = ANY(c.conkey)
				WHERE c.conrelid = $1::regclass
				  AND c.contype IN ('u', 'p')
				  AND a.attname = $2
			)
		`, probe.table, probe.column).Scan(&enforced)
		if err != nil {
			return fmt.Errorf("uniqueness lookup for %s.%s: %w", probe.table, probe.column, err)
		}
		if !enforced {
			return fmt.Errorf("no unique constraint on %s.%s", probe.table, probe.column)
		}

		var dupes int
		err = v.pool.QueryRow(ctx, fmt.Sprintf(`
			SELECT count(*) FROM (
				SELECT %s FROM %s GROUP BY %s HAVING count(*) > 1
			) d
		`, probe.column, probe.table, probe.column)).Scan(&dupes)
		if err != nil {
			return fmt.Errorf("duplicate scan for %s.%s: %w", probe.table, probe.column, err)
		}
		if dupes > 0 {
			return fmt.Errorf("%d duplicate natural keys in %s.%s", dupes, probe.table, probe.column)
		}
	}
	return nil
}

func (v *SchemaValidator) checkForeignKeys(ctx context.Context) error {
	for _, table := range factTablesWithSecurity {
		var fkCount int
		err := v.pool.QueryRow(ctx, `
			SELECT count(*)
			FROM information_schema.table_constraints
			WHERE table_name = $1 AND constraint_type = 'FOREIGN KEY'
		`, table).Scan(&fkCount)
		if err != nil {
			return fmt.Errorf("foreign key lookup for %s: %w", table, err)
		}
		if fkCount < 2 {
			return fmt.Errorf("%s has %d foreign keys, expected at least security and time references", table, fkCount)
		}
	}
	return nil
}

// checkNoDenormalizedColumns confirms no fact table re-grew a symbol or
// ticker text column the security dimension already owns. bar_ts on
// fact_price_bar is the partition-key copy and is expected; feature_matrix
// is a projection, not a fact table, so its symbol column is expected too.
func (v *SchemaValidator) checkNoDenormalizedColumns(ctx context.Context) error {
	rows, err := v.pool.Query(ctx, `
		SELECT table_name, column_name
		FROM information_schema.columns
		WHERE table_name LIKE 'fact\_%'
		  AND column_name IN ('symbol', 'ticker')
	`)
	if err != nil {
		return fmt.Errorf("denormalized column scan: %w", err)
	}
	defer rows.Close()

	var offenders []string
	for rows.Next() {
		var table, col string
		if err := rows.Scan(&table, &col); err != nil {
			return fmt.Errorf("denormalized column scan: %w", err)
		}
		offenders = append(offenders, table+"."+col)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	if len(offenders) > 0 {
		return fmt.Errorf("fact tables duplicate dimension data: %v", offenders)
	}
	return nil
}

func (v *SchemaValidator) checkNoOrphans(ctx context.Context) error {
	for _, table := range factTablesWithSecurity {
		var orphans int
		err := v.pool.QueryRow(ctx, fmt.Sprintf(`
			SELECT count(*)
			FROM %s f
			LEFT JOIN dim_security s ON s.id = f.security_id
			WHERE s.id IS NULL
		`, table)).Scan(&orphans)
		if err != nil {
			return fmt.Errorf("orphan scan for %s: %w", table, err)
		}
		if orphans > 0 {
			return fmt.Errorf("%s has %d rows with no matching security", table, orphans)
		}
	}
	return nil
}

func (v *SchemaValidator) checkPartitionCoverage(ctx context.Context) error {
	now := time.Now().UTC()
	for _, ts := range []time.Time{now, now.AddDate(0, 0, 1)} {
		covered, err := v.parts.Covers(ctx, ts)
		if err != nil {
			return err
		}
		if !covered {
			return fmt.Errorf("no live partition covers %s", ts.Format(time.RFC3339))
		}
	}
	return nil
}

// checkResolverProbe resolves a known-good symbol and instant twice and
// confirms both calls return the same surrogate IDs. A missing or broken
// resolver once silently failed every news write; this catches that
// class before dependent services start.
func (v *SchemaValidator) checkResolverProbe(ctx context.Context) error {
	probeTS := time.Date(2020, 1, 2, 14, 30, 0, 0, time.UTC)

	secA, err := v.resolver.ResolveSecurity(ctx, "SPY")
	if err != nil {
		return fmt.Errorf("security probe: %w", err)
	}
	secB, err := v.resolver.ResolveSecurity(ctx, "SPY")
	if err != nil {
		return fmt.Errorf("security probe re-read: %w", err)
	}
	if secA != secB || secA == 0 {
		return fmt.Errorf("security probe not idempotent: %d then %d", secA, secB)
	}

	fetched, err := v.dimRepo.GetSecurityByID(ctx, secA)
	if err != nil {
		return fmt.Errorf("security probe read-back: %w", err)
	}
	if fetched.Symbol != "SPY" {
		return fmt.Errorf("security probe read-back symbol mismatch: %q", fetched.Symbol)
	}

	timeA, err := v.resolver.ResolveTime(ctx, probeTS)
	if err != nil {
		return fmt.Errorf("time probe: %w", err)
	}
	timeB, err := v.resolver.ResolveTime(ctx, probeTS)
	if err != nil {
		return fmt.Errorf("time probe re-read: %w", err)
	}
	if timeA != timeB || timeA == 0 {
		return fmt.Errorf("time probe not idempotent: %d then %d", timeA, timeB)
	}
	return nil
}
