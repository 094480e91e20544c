package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/epeers/datamart/internal/models"
)

func TestIndicatorSnapshotNeverCorrected(t *testing.T) {
	ctx := context.Background()
	repo := NewIndicatorRepository(testPool)

	ts := fixtureDay.Add(14*time.Hour + 35*time.Minute)
	secID := seedSecurity(t, "INDIC")
	timeID := seedTime(t, ts)

	snap := models.IndicatorSnapshot{
		SecurityID: secID, TimeID: timeID, Timeframe: "1min",
		Name: "macd", Value: 1.25,
	}
	assert.NoError(t, repo.UpsertSnapshot(ctx, snap))

	// indicators are append-only: a re-send with a different value is ignored
	snap.Value = 9.99
	assert.NoError(t, repo.UpsertSnapshot(ctx, snap))

	got, err := repo.GetSnapshots(ctx, secID, timeID, "1min")
	assert.NoError(t, err)
	if assert.Len(t, got, 1) {
		assert.Equal(t, 1.25, got[0].Value)
	}
}

func TestUpsertSnapshotsBatch(t *testing.T) {
	ctx := context.Background()
	repo := NewIndicatorRepository(testPool)

	ts := fixtureDay.Add(14*time.Hour + 36*time.Minute)
	secID := seedSecurity(t, "INDBA")
	timeID := seedTime(t, ts)

	snaps := []models.IndicatorSnapshot{
		{SecurityID: secID, TimeID: timeID, Timeframe: "1min", Name: "rsi_14", Value: 61.2},
		{SecurityID: secID, TimeID: timeID, Timeframe: "1min", Name: "sma_20", Value: 104.7},
		{SecurityID: secID, TimeID: timeID, Timeframe: "1min", Name: "atr_14", Value: 0.9},
	}
	assert.NoError(t, repo.UpsertSnapshots(ctx, snaps))
	assert.NoError(t, repo.UpsertSnapshots(ctx, snaps))

	got, err := repo.GetSnapshots(ctx, secID, timeID, "1min")
	assert.NoError(t, err)
	if assert.Len(t, got, 3) {
		// ordered by name
		assert.Equal(t, "atr_14", got[0].Name)
		assert.Equal(t, "rsi_14", got[1].Name)
		assert.Equal(t, "sma_20", got[2].Name)
	}
}

func TestGetSnapshotsScopedToTimeframe(t *testing.T) {
	ctx := context.Background()
	repo := NewIndicatorRepository(testPool)

	ts := fixtureDay.Add(14*time.Hour + 37*time.Minute)
	secID := seedSecurity(t, "INDTF")
	timeID := seedTime(t, ts)

	assert.NoError(t, repo.UpsertSnapshot(ctx, models.IndicatorSnapshot{
		SecurityID: secID, TimeID: timeID, Timeframe: "1min", Name: "rsi_14", Value: 40,
	}))
	assert.NoError(t, repo.UpsertSnapshot(ctx, models.IndicatorSnapshot{
		SecurityID: secID, TimeID: timeID, Timeframe: "1d", Name: "rsi_14", Value: 55,
	}))

	got, err := repo.GetSnapshots(ctx, secID, timeID, "1d")
	assert.NoError(t, err)
	if assert.Len(t, got, 1) {
		assert.Equal(t, 55.0, got[0].Value)
	}
}
