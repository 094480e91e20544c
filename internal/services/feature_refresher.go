package services

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/epeers/datamart/internal/repository"
)

// FeatureRefresher maintains the feature matrix incrementally, driven by a
// committed high-water mark on fact insert time rather than wall-clock
// assumptions. A failed refresh leaves the previous view and watermark
// intact; the next scheduled run retries the same window.
type FeatureRefresher struct {
	repo       *repository.FeatureRepository
	newsWindow time.Duration

	mu sync.Mutex
}

// NewFeatureRefresher creates a new FeatureRefresher
func NewFeatureRefresher(repo *repository.FeatureRepository, newsWindow time.Duration) *FeatureRefresher {
	return &FeatureRefresher{repo: repo, newsWindow: newsWindow}
}

// Run performs one incremental refresh. Overlapping scheduled runs are
// skipped rather than queued.
func (f *FeatureRefresher) Run(ctx context.Context) {
	if !f.mu.TryLock() {
		log.Warn("feature refresh still running, skipping this cycle")
		return
	}
	defer f.mu.Unlock()

	defer TrackTime("feature refresh", time.Now())

	if _, err := f.RefreshIncremental(ctx); err != nil {
		log.Errorf("feature refresh failed, previous view retained: %v", err)
	}
}

// RefreshIncremental recomputes feature rows for facts inserted since the
// watermark and returns how many rows were written.
func (f *FeatureRefresher) RefreshIncremental(ctx context.Context) (int64, error) {
	since, err := f.repo.GetWatermark(ctx)
	if err != nil {
		return 0, err
	}

	rows, upto, err := f.repo.RefreshSince(ctx, since, f.newsWindow)
	if err != nil {
		return 0, err
	}

	if rows > 0 {
		log.Infof("feature refresh wrote %d rows for window (%s, %s]",
			rows, since.Format(time.RFC3339), upto.Format(time.RFC3339))
	}
	return rows, nil
}
