package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/epeers/datamart/internal/models"
)

func TestMacroUpsertReplaces(t *testing.T) {
	ctx := context.Background()
	repo := NewMacroRepository(testPool)

	ts := fixtureDay.Add(13 * time.Hour)
	timeID := seedTime(t, ts)

	assert.NoError(t, repo.Upsert(ctx, models.MacroReading{
		TimeID: timeID, Indicator: "cpi_yoy", Value: 3.1,
	}))
	// revised print replaces the first release
	assert.NoError(t, repo.Upsert(ctx, models.MacroReading{
		TimeID: timeID, Indicator: "cpi_yoy", Value: 3.2,
	}))

	got, err := repo.GetSeries(ctx, "cpi_yoy", ts.Add(-time.Minute), ts.Add(time.Minute))
	assert.NoError(t, err)
	if assert.Len(t, got, 1) {
		assert.Equal(t, 3.2, got[0].Value)
	}
}

func TestMacroGetSeriesOrdered(t *testing.T) {
	ctx := context.Background()
	repo := NewMacroRepository(testPool)

	base := fixtureDay.Add(12 * time.Hour)
	values := []float64{4.25, 4.50, 4.75}
	for i, v := range values {
		ts := base.Add(time.Duration(i) * time.Hour)
		assert.NoError(t, repo.Upsert(ctx, models.MacroReading{
			TimeID: seedTime(t, ts), Indicator: "fed_funds", Value: v,
		}))
	}

	got, err := repo.GetSeries(ctx, "fed_funds", base, base.Add(3*time.Hour))
	assert.NoError(t, err)
	if assert.Len(t, got, 3) {
		for i, v := range values {
			assert.Equal(t, v, got[i].Value)
		}
	}

	// other indicators never leak into the series
	empty, err := repo.GetSeries(ctx, "gdp_qoq", base, base.Add(3*time.Hour))
	assert.NoError(t, err)
	assert.Empty(t, empty)
}
