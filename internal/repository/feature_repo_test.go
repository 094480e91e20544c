package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/epeers/datamart/internal/models"
)

func TestFeatureRefreshEndToEnd(t *testing.T) {
	ctx := context.Background()
	featRepo := NewFeatureRepository(testPool)
	featRepo.safetyLag = 0
	newsRepo := NewNewsRepository(testPool)

	since := time.Now().UTC().Add(-time.Second)

	barTS := fixtureDay.Add(14*time.Hour + 30*time.Minute)
	secID := seedSecurity(t, "TSLA")
	timeID := seedTime(t, barTS)

	err := NewPriceRepository(testPool).UpsertBar(ctx, models.PriceBar{
		SecurityID: secID, TimeID: timeID, BarTS: barTS, Timeframe: "1min",
		Open: 100, High: 101, Low: 99, Close: 100.5, Volume: 1000,
	})
	assert.NoError(t, err)

	_, err = newsRepo.Insert(ctx, models.NewsItem{
		SecurityID: secID,
		TimeID:     timeID,
		Headline:   "Delivery numbers beat",
		URL:        "https://example.com/tsla-deliveries",
		Sentiment:  0.8,
		Catalyst:   models.CatalystStrong,
	})
	assert.NoError(t, err)

	err = NewIndicatorRepository(testPool).UpsertSnapshot(ctx, models.IndicatorSnapshot{
		SecurityID: secID, TimeID: timeID, Timeframe: "1min",
		Name: "rsi_14", Value: 55.2,
	})
	assert.NoError(t, err)

	rows, _, err := featRepo.RefreshSince(ctx, since, 24*time.Hour)
	assert.NoError(t, err)
	assert.GreaterOrEqual(t, rows, int64(1))

	features, err := featRepo.GetFeatures(ctx, "TSLA", "1min",
		barTS.Add(-time.Minute), barTS.Add(time.Minute))
	assert.NoError(t, err)

	if assert.NotEmpty(t, features) {
		row := features[0]
		assert.Equal(t, secID, row.SecurityID)
		assert.Equal(t, "TSLA", row.Symbol)
		assert.Equal(t, 100.5, row.Close)
		assert.GreaterOrEqual(t, row.NewsCount, 1)
		assert.InDelta(t, 0.8, *row.NewsAvgSentiment, 1e-9)
		if assert.NotNil(t, row.NewsMaxCatalyst) {
			assert.Equal(t, "strong", *row.NewsMaxCatalyst)
		}
		assert.InDelta(t, 55.2, row.Indicators["rsi_14"], 1e-9)
	}
}

func TestRefreshAdvancesWatermark(t *testing.T) {
	ctx := context.Background()
	featRepo := NewFeatureRepository(testPool)
	featRepo.safetyLag = 0

	_, upto, err := featRepo.RefreshSince(ctx, time.Now().UTC().Add(-time.Minute), 24*time.Hour)
	assert.NoError(t, err)
	assert.False(t, upto.IsZero())

	hw, err := featRepo.GetWatermark(ctx)
	assert.NoError(t, err)
	assert.False(t, hw.Before(upto))
}

func TestRefreshWithNoNewFactsWritesNothing(t *testing.T) {
	ctx := context.Background()
	featRepo := NewFeatureRepository(testPool)
	featRepo.safetyLag = 0

	// a far-future window cannot contain any inserted_at values
	since := time.Now().UTC().Add(24 * time.Hour)
	rows, upto, err := featRepo.RefreshSince(ctx, since, 24*time.Hour)
	assert.NoError(t, err)
	assert.Zero(t, rows)
	assert.True(t, upto.Equal(since), "bound must not move past an empty window")
}

// A row committed inside the safety lag stays ahead of the watermark until
// a later run can see it; it is deferred, never skipped.
func TestRefreshSafetyLagDefersFreshRows(t *testing.T) {
	ctx := context.Background()
	newsRepo := NewNewsRepository(testPool)

	barTS := fixtureDay.Add(15*time.Hour + 45*time.Minute)
	secID := seedSecurity(t, "LAGGY")
	timeID := seedTime(t, barTS)
	seedBar(t, secID, timeID, barTS, "1min", 250)

	_, err := newsRepo.Insert(ctx, models.NewsItem{
		SecurityID: secID,
		TimeID:     timeID,
		Headline:   "Guidance raised",
		URL:        "https://example.com/laggy-guidance",
		Sentiment:  0.4,
		Catalyst:   models.CatalystModerate,
	})
	assert.NoError(t, err)

	since := time.Now().UTC().Add(-time.Minute)

	lagged := NewFeatureRepository(testPool)
	lagged.safetyLag = time.Hour
	rows, upto, err := lagged.RefreshSince(ctx, since, 24*time.Hour)
	assert.NoError(t, err)
	assert.Zero(t, rows, "rows inside the lag window must be deferred")
	assert.True(t, upto.Equal(since), "bound must not advance into the lag window")

	// with the lag gone the same window picks the deferred rows up
	caughtUp := NewFeatureRepository(testPool)
	caughtUp.safetyLag = 0
	rows, upto, err = caughtUp.RefreshSince(ctx, since, 24*time.Hour)
	assert.NoError(t, err)
	assert.GreaterOrEqual(t, rows, int64(1))
	assert.True(t, upto.After(since))
}

func TestNoOrphanFactRows(t *testing.T) {
	ctx := context.Background()

	for _, table := range []string{"fact_price_bar", "fact_news", "fact_indicator"} {
		var orphans int
		err := testPool.QueryRow(ctx, `
			SELECT count(*) FROM `+table+` f
			LEFT JOIN dim_security s ON s.id = f.security_id
			WHERE s.id IS NULL
		`).Scan(&orphans)
		assert.NoError(t, err)
		assert.Zero(t, orphans, "%s must only reference live securities", table)
	}
}
