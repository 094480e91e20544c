package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/epeers/datamart/internal/models"
)

var ErrSectorNotFound = errors.New("sector not found")

// SectorRepository handles database operations for dim_sector
type SectorRepository struct {
	pool *pgxpool.Pool
}

// NewSectorRepository creates a new SectorRepository
func NewSectorRepository(pool *pgxpool.Pool) *SectorRepository {
	return &SectorRepository{pool: pool}
}

// GetAll returns all sectors
func (r *SectorRepository) GetAll(ctx context.Context) ([]*models.Sector, error) {
	query := `SELECT id, name, parent_id, etf_symbol FROM dim_sector ORDER BY id`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query sectors: %w", err)
	}
	defer rows.Close()

	var result []*models.Sector
	for rows.Next() {
		s := &models.Sector{}
		if err := rows.Scan(&s.ID, &s.Name, &s.ParentID, &s.ETFSymbol); err != nil {
			return nil, fmt.Errorf("failed to scan sector: %w", err)
		}
		result = append(result, s)
	}
	return result, rows.Err()
}

// GetByName retrieves a sector by its unique name
func (r *SectorRepository) GetByName(ctx context.Context, name string) (*models.Sector, error) {
	query := `SELECT id, name, parent_id, etf_symbol FROM dim_sector WHERE name = $1`

	s := &models.Sector{}
	err := r.pool.QueryRow(ctx, query, name).Scan(&s.ID, &s.Name, &s.ParentID, &s.ETFSymbol)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrSectorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get sector: %w", err)
	}
	return s, nil
}
