package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSectorsSeeded(t *testing.T) {
	ctx := context.Background()
	repo := NewSectorRepository(testPool)

	sectors, err := repo.GetAll(ctx)
	assert.NoError(t, err)
	assert.GreaterOrEqual(t, len(sectors), 11, "the GICS set is seeded by migration")

	byName := map[string]bool{}
	for _, s := range sectors {
		byName[s.Name] = true
	}
	assert.True(t, byName["Information Technology"])
	assert.True(t, byName["Energy"])
}

func TestGetSectorByName(t *testing.T) {
	ctx := context.Background()
	repo := NewSectorRepository(testPool)

	sector, err := repo.GetByName(ctx, "Financials")
	assert.NoError(t, err)
	assert.Equal(t, "Financials", sector.Name)
	assert.NotZero(t, sector.ID)

	_, err = repo.GetByName(ctx, "Blockchain")
	assert.ErrorIs(t, err, ErrSectorNotFound)
}
