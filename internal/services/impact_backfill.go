package services

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/epeers/datamart/internal/repository"
)

// impactHorizons are the delayed post-publication windows a news item's
// price deltas are measured over.
var impactHorizons = []struct {
	name string
	d    time.Duration
}{
	{"5m", 5 * time.Minute},
	{"15m", 15 * time.Minute},
	{"30m", 30 * time.Minute},
	{"1h", time.Hour},
	{"4h", 4 * time.Hour},
	{"1d", 24 * time.Hour},
}

// impactFinalAge bounds how long a news row stays in the pending scan set.
// After this age any still-missing horizons are abandoned (partial data is
// kept) and the row is marked final.
const impactFinalAge = 7 * 24 * time.Hour

// impactBatchSize caps how many pending rows one run processes
const impactBatchSize = 500

// ImpactBackfiller fills the delayed price-impact columns on news rows once
// enough subsequent price bars exist. It joins news against price facts; the
// fact writer itself never performs this backfill.
type ImpactBackfiller struct {
	newsRepo  *repository.NewsRepository
	priceRepo *repository.PriceRepository

	mu sync.Mutex
}

// NewImpactBackfiller creates a new ImpactBackfiller
func NewImpactBackfiller(newsRepo *repository.NewsRepository, priceRepo *repository.PriceRepository) *ImpactBackfiller {
	return &ImpactBackfiller{newsRepo: newsRepo, priceRepo: priceRepo}
}

// Run performs one backfill pass over pending news rows. Overlapping
// scheduled runs are skipped.
func (b *ImpactBackfiller) Run(ctx context.Context) {
	if !b.mu.TryLock() {
		log.Warn("impact backfill still running, skipping this cycle")
		return
	}
	defer b.mu.Unlock()

	defer TrackTime("impact backfill", time.Now())

	filled, finalized, err := b.Backfill(ctx)
	if err != nil {
		log.Errorf("impact backfill pass failed: %v", err)
		return
	}
	if filled > 0 || finalized > 0 {
		log.Infof("impact backfill filled %d rows, finalized %d", filled, finalized)
	}
}

// Backfill processes up to impactBatchSize pending news rows. For each
// horizon still NULL it looks up the first bar close at or after
// publication+horizon; horizons whose bar has not arrived stay NULL and are
// retried next run. Cancellation is honored between rows.
func (b *ImpactBackfiller) Backfill(ctx context.Context) (filled, finalized int, err error) {
	pending, err := b.newsRepo.ListPendingImpact(ctx, impactBatchSize)
	if err != nil {
		return 0, 0, err
	}

	now := time.Now().UTC()
	for _, row := range pending {
		if err := ctx.Err(); err != nil {
			return filled, finalized, err
		}

		expired := now.Sub(row.PublishedAt) > impactFinalAge

		if row.BasePrice == nil || *row.BasePrice == 0 {
			// No reference bar yet; nothing to measure against.
			if expired {
				if err := b.newsRepo.UpdateImpact(ctx, row.NewsID, nil, nil, nil, nil, nil, nil, true); err != nil {
					return filled, finalized, err
				}
				finalized++
			}
			continue
		}

		existing := []*float64{row.Impact5m, row.Impact15m, row.Impact30m, row.Impact1h, row.Impact4h, row.Impact1d}
		updates := make([]*float64, len(impactHorizons))
		complete := true
		changed := false

		for i, h := range impactHorizons {
			if existing[i] != nil {
				continue
			}
			// Only measure a horizon once it has fully elapsed
			if now.Sub(row.PublishedAt) < h.d {
				complete = false
				continue
			}
			close, err := b.priceRepo.CloseAtOrAfter(ctx, row.SecurityID, row.PublishedAt.Add(h.d))
			if err != nil {
				return filled, finalized, err
			}
			if close == nil {
				complete = false
				continue
			}
			delta := (*close - *row.BasePrice) / *row.BasePrice * 100
			updates[i] = &delta
			changed = true
		}

		final := complete || expired
		if !changed && !final {
			continue
		}
		if err := b.newsRepo.UpdateImpact(ctx, row.NewsID,
			updates[0], updates[1], updates[2], updates[3], updates[4], updates[5], final); err != nil {
			return filled, finalized, err
		}
		if changed {
			filled++
		}
		if final {
			finalized++
		}
	}
	return filled, finalized, nil
}
