package repository

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/epeers/datamart/internal/models"
)

func TestNewsLongURLRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := NewNewsRepository(testPool)

	secID := seedSecurity(t, "LONGU")
	timeID := seedTime(t, fixtureDay.Add(14*time.Hour))

	// aggregator URLs with tracking params routinely blow past 1 KB
	url := "https://news.example.com/articles/" + strings.Repeat("x", 1500)

	id, err := repo.Insert(ctx, models.NewsItem{
		SecurityID: secID,
		TimeID:     timeID,
		Headline:   "Very long URL survives storage",
		URL:        url,
		Sentiment:  0.1,
		Catalyst:   models.CatalystWeak,
	})
	assert.NoError(t, err)

	got, err := repo.GetByID(ctx, id)
	assert.NoError(t, err)
	assert.Equal(t, url, got.URL, "URL must round-trip byte for byte")
	assert.Equal(t, models.CatalystWeak, got.Catalyst)
}

func TestNewsImpactBackfillFlow(t *testing.T) {
	ctx := context.Background()
	newsRepo := NewNewsRepository(testPool)

	publishedAt := fixtureDay.Add(14*time.Hour + 45*time.Minute)
	secID := seedSecurity(t, "IMPCT")
	timeID := seedTime(t, publishedAt)

	// base bar at publication and a later bar the horizons can read
	seedBar(t, secID, seedTime(t, publishedAt), publishedAt, "1min", 100)
	after := publishedAt.Add(5 * time.Minute)
	seedBar(t, secID, seedTime(t, after), after, "1min", 102)

	newsID, err := newsRepo.Insert(ctx, models.NewsItem{
		SecurityID: secID,
		TimeID:     timeID,
		Headline:   "Guidance raised",
		URL:        "https://example.com/impct",
		Sentiment:  0.9,
		Catalyst:   models.CatalystStrong,
	})
	assert.NoError(t, err)

	pending, err := newsRepo.ListPendingImpact(ctx, 1000)
	assert.NoError(t, err)

	var row *PendingImpactRow
	for i := range pending {
		if pending[i].NewsID == newsID {
			row = &pending[i]
			break
		}
	}
	if assert.NotNil(t, row, "fresh news must be pending backfill") {
		assert.Equal(t, secID, row.SecurityID)
		assert.True(t, row.PublishedAt.Equal(publishedAt))
		if assert.NotNil(t, row.BasePrice) {
			assert.Equal(t, 100.0, *row.BasePrice)
		}
		assert.Nil(t, row.Impact5m)
	}

	impact := 2.0
	assert.NoError(t, newsRepo.UpdateImpact(ctx, newsID, &impact, nil, nil, nil, nil, nil, true))

	got, err := newsRepo.GetByID(ctx, newsID)
	assert.NoError(t, err)
	if assert.NotNil(t, got.Impact5m) {
		assert.Equal(t, impact, *got.Impact5m)
	}
	assert.Nil(t, got.Impact1h, "unfilled horizons stay NULL")
	assert.True(t, got.ImpactFinal)

	// finalized rows leave the pending queue
	pending, err = newsRepo.ListPendingImpact(ctx, 1000)
	assert.NoError(t, err)
	for _, p := range pending {
		assert.NotEqual(t, newsID, p.NewsID)
	}
}
