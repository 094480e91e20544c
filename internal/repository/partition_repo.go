package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Partition lifecycle states
const (
	PartitionPlanned  = "planned"
	PartitionActive   = "active"
	PartitionRetiring = "retiring"
	PartitionDropped  = "dropped"
)

// Partition is one physical time-range child of fact_price_bar plus its
// lifecycle record in partition_registry.
type Partition struct {
	Name       string
	RangeStart time.Time
	RangeEnd   time.Time
	State      string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// PartitionRepository handles DDL and registry operations for the
// fact_price_bar partitions
type PartitionRepository struct {
	pool *pgxpool.Pool
}

// NewPartitionRepository creates a new PartitionRepository
func NewPartitionRepository(pool *pgxpool.Pool) *PartitionRepository {
	return &PartitionRepository{pool: pool}
}

// PartitionName returns the child table name for a day. One partition per
// UTC day.
func PartitionName(day time.Time) string {
	return "fact_price_bar_" + day.UTC().Format("20060102")
}

// Create creates the child table for [start, end) and records it in the
// registry, both idempotently and in one transaction. Requesting a range
// already covered by an existing partition is a no-op.
func (r *PartitionRepository) Create(ctx context.Context, name string, start, end time.Time) error {
	// Identifiers cannot be bind parameters; name is generated by
	// PartitionName, never caller input.
	ddl := fmt.Sprintf(
		`CREATE TABLE IF NOT EXISTS %s PARTITION OF fact_price_bar FOR VALUES FROM ('%s') TO ('%s')`,
		name,
		start.UTC().Format("2006-01-02 15:04:05+00"),
		end.UTC().Format("2006-01-02 15:04:05+00"),
	)

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin partition create: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("failed to create partition %s: %w", name, err)
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO partition_registry (partition_name, range_start, range_end, state)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (partition_name) DO NOTHING
	`, name, start, end, PartitionPlanned); err != nil {
		return fmt.Errorf("failed to register partition %s: %w", name, err)
	}
	return tx.Commit(ctx)
}

// SetState moves a registry entry to a new lifecycle state
func (r *PartitionRepository) SetState(ctx context.Context, name, state string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE partition_registry
		SET state = $2, updated_at = now()
		WHERE partition_name = $1
	`, name, state)
	if err != nil {
		return fmt.Errorf("failed to set partition %s state to %s: %w", name, state, err)
	}
	return nil
}

// Drop detaches and drops the child table, then marks the registry entry
// dropped. The registry row is kept for audit.
func (r *PartitionRepository) Drop(ctx context.Context, name string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin partition drop: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, fmt.Sprintf(`ALTER TABLE fact_price_bar DETACH PARTITION %s`, name)); err != nil {
		return fmt.Errorf("failed to detach partition %s: %w", name, err)
	}
	if _, err := tx.Exec(ctx, fmt.Sprintf(`DROP TABLE IF EXISTS %s`, name)); err != nil {
		return fmt.Errorf("failed to drop partition %s: %w", name, err)
	}
	if _, err := tx.Exec(ctx, `
		UPDATE partition_registry SET state = $2, updated_at = now() WHERE partition_name = $1
	`, name, PartitionDropped); err != nil {
		return fmt.Errorf("failed to mark partition %s dropped: %w", name, err)
	}
	return tx.Commit(ctx)
}

// List returns all registry entries, oldest range first
func (r *PartitionRepository) List(ctx context.Context) ([]Partition, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT partition_name, range_start, range_end, state, created_at, updated_at
		FROM partition_registry
		ORDER BY range_start ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query partition registry: %w", err)
	}
	defer rows.Close()

	var parts []Partition
	for rows.Next() {
		var p Partition
		if err := rows.Scan(&p.Name, &p.RangeStart, &p.RangeEnd, &p.State, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan partition: %w", err)
		}
		parts = append(parts, p)
	}
	return parts, rows.Err()
}

// Covers reports whether a live (planned or active) partition covers ts,
// verifying the child table actually exists in the catalog rather than
// trusting the registry alone.
func (r *PartitionRepository) Covers(ctx context.Context, ts time.Time) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1
			FROM partition_registry pr
			WHERE pr.state IN ($1, $2)
			  AND pr.range_start <= $3 AND pr.range_end > $3
			  AND to_regclass(pr.partition_name) IS NOT NULL
		)
	`, PartitionPlanned, PartitionActive, ts).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check partition coverage: %w", err)
	}
	return exists, nil
}
