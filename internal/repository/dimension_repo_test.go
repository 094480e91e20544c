package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"golang.org/x/sync/errgroup"

	"github.com/epeers/datamart/internal/models"
	"github.com/epeers/datamart/internal/util"
)

func TestInsertOrFetchSecurityIdempotent(t *testing.T) {
	ctx := context.Background()
	repo := NewDimensionRepository(testPool)

	first, err := repo.InsertOrFetchSecurity(ctx, "IDEMA")
	assert.NoError(t, err)
	second, err := repo.InsertOrFetchSecurity(ctx, "IDEMA")
	assert.NoError(t, err)
	assert.Equal(t, first, second)

	var count int
	err = testPool.QueryRow(ctx, `SELECT count(*) FROM dim_security WHERE symbol = 'IDEMA'`).Scan(&count)
	assert.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestInsertOrFetchSecurityConcurrent(t *testing.T) {
	ctx := context.Background()
	repo := NewDimensionRepository(testPool)

	const workers = 16
	ids := make([]int64, workers)

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < workers; i++ {
		i := i
		g.Go(func() error {
			id, err := repo.InsertOrFetchSecurity(gctx, "RACEY")
			ids[i] = id
			return err
		})
	}
	assert.NoError(t, g.Wait())

	for _, id := range ids {
		assert.Equal(t, ids[0], id, "all concurrent resolutions must agree")
	}

	var count int
	err := testPool.QueryRow(ctx, `SELECT count(*) FROM dim_security WHERE symbol = 'RACEY'`).Scan(&count)
	assert.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestInsertOrFetchTimeIdempotent(t *testing.T) {
	ctx := context.Background()
	repo := NewDimensionRepository(testPool)
	ts := fixtureDay.Add(14*time.Hour + 30*time.Minute)

	first, err := repo.InsertOrFetchTime(ctx, util.DecomposeTime(ts))
	assert.NoError(t, err)
	second, err := repo.InsertOrFetchTime(ctx, util.DecomposeTime(ts))
	assert.NoError(t, err)
	assert.Equal(t, first, second)

	tp, err := repo.GetTimePoint(ctx, first)
	assert.NoError(t, err)
	assert.True(t, tp.TS.Equal(ts))
	assert.Equal(t, 2025, tp.Year)
	assert.Equal(t, 1, tp.Quarter)
	assert.Equal(t, models.SessionRegular, tp.MarketSession)
}

func TestGetSecurityByID(t *testing.T) {
	ctx := context.Background()
	repo := NewDimensionRepository(testPool)

	id := seedSecurity(t, "BYID")

	sec, err := repo.GetSecurityByID(ctx, id)
	assert.NoError(t, err)
	assert.Equal(t, id, sec.ID)
	assert.Equal(t, "BYID", sec.Symbol)

	_, err = repo.GetSecurityByID(ctx, -1)
	assert.ErrorIs(t, err, ErrSecurityNotFound)
}

func TestGetSecurityBySymbolNotFound(t *testing.T) {
	repo := NewDimensionRepository(testPool)
	_, err := repo.GetSecurityBySymbol(context.Background(), "NOSUCH")
	assert.ErrorIs(t, err, ErrSecurityNotFound)
}

func TestUpdateSecurityReference(t *testing.T) {
	ctx := context.Background()
	repo := NewDimensionRepository(testPool)
	seedSecurity(t, "REFUPD")

	name := "Reference Update Corp"
	exchange := "NASDAQ"
	active := false
	err := repo.UpdateSecurityReference(ctx, "REFUPD", models.SecurityReferenceUpdate{
		Name:     &name,
		Exchange: &exchange,
		Active:   &active,
	}, nil)
	assert.NoError(t, err)

	sec, err := repo.GetSecurityBySymbol(ctx, "REFUPD")
	assert.NoError(t, err)
	assert.Equal(t, "REFUPD", sec.Symbol)
	assert.Equal(t, &name, sec.Name)
	assert.Equal(t, &exchange, sec.Exchange)
	assert.False(t, sec.Active)

	// absent fields must be untouched by a later partial update
	active = true
	err = repo.UpdateSecurityReference(ctx, "REFUPD", models.SecurityReferenceUpdate{Active: &active}, nil)
	assert.NoError(t, err)
	sec, err = repo.GetSecurityBySymbol(ctx, "REFUPD")
	assert.NoError(t, err)
	assert.Equal(t, &name, sec.Name)
	assert.True(t, sec.Active)
}

func TestUpdateSecurityReferenceUnknownSymbol(t *testing.T) {
	repo := NewDimensionRepository(testPool)
	name := "anything"
	err := repo.UpdateSecurityReference(context.Background(), "GHOST",
		models.SecurityReferenceUpdate{Name: &name}, nil)
	assert.ErrorIs(t, err, ErrSecurityNotFound)
}

func TestMarkTradingDays(t *testing.T) {
	ctx := context.Background()
	repo := NewDimensionRepository(testPool)

	ts := fixtureDay.Add(15 * time.Hour)
	id := seedTime(t, ts)

	n, err := repo.MarkTradingDays(ctx, []time.Time{fixtureDay}, true)
	assert.NoError(t, err)
	assert.GreaterOrEqual(t, n, int64(1))

	tp, err := repo.GetTimePoint(ctx, id)
	assert.NoError(t, err)
	if assert.NotNil(t, tp.IsTradingDay) {
		assert.True(t, *tp.IsTradingDay)
	}
}
