package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/epeers/datamart/internal/repository"
)

// PartitionManager owns the fact_price_bar partition lifecycle:
// Planned -> Active -> Retiring -> Dropped. It stays ahead of the write
// horizon so the steady-state write path never sees a missing partition.
type PartitionManager struct {
	repo          *repository.PartitionRepository
	leadDays      int
	retentionDays int
	graceDays     int

	// Guards against overlapping scheduled runs; a run completes or is
	// cancelled before the next may start.
	mu sync.Mutex

	now func() time.Time // injectable for tests
}

// NewPartitionManager creates a new PartitionManager
func NewPartitionManager(repo *repository.PartitionRepository, leadDays, retentionDays, graceDays int) *PartitionManager {
	return &PartitionManager{
		repo:          repo,
		leadDays:      leadDays,
		retentionDays: retentionDays,
		graceDays:     graceDays,
		now:           time.Now,
	}
}

// Run performs one full maintenance pass: extend the horizon, promote due
// partitions, retire and drop expired ones. Returns immediately if another
// run is still in flight.
func (m *PartitionManager) Run(ctx context.Context) {
	if !m.mu.TryLock() {
		log.Warn("partition maintenance still running, skipping this cycle")
		return
	}
	defer m.mu.Unlock()

	defer TrackTime("partition maintenance", time.Now())

	if err := m.EnsureAhead(ctx); err != nil {
		log.Errorf("partition horizon extension failed: %v", err)
	}
	if err := m.promoteDue(ctx); err != nil {
		log.Errorf("partition promotion failed: %v", err)
	}
	if err := m.RetireExpired(ctx); err != nil {
		log.Errorf("partition retirement failed: %v", err)
	}
}

// PlanDays returns the UTC day starts that must have partitions so writes
// within [now, now + leadDays] always land in an existing partition.
func PlanDays(now time.Time, leadDays int) []time.Time {
	today := now.UTC().Truncate(24 * time.Hour)
	days := make([]time.Time, 0, leadDays+1)
	for i := 0; i <= leadDays; i++ {
		days = append(days, today.AddDate(0, 0, i))
	}
	return days
}

// EnsureAhead creates any missing partitions out to the planning horizon.
// Creation failures are retried with backoff rather than skipped: a skipped
// partition would surface later as a confusing constraint error far from
// the root cause. Cancellation is honored between partitions, never mid-create.
func (m *PartitionManager) EnsureAhead(ctx context.Context) error {
	for _, day := range PlanDays(m.now(), m.leadDays) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := m.createWithRetry(ctx, day); err != nil {
			return err
		}
	}
	return nil
}

// EnsureFor creates the partition covering ts on demand. This is the fact
// writer's fallback when the manager has fallen behind, not the steady path.
func (m *PartitionManager) EnsureFor(ctx context.Context, ts time.Time) error {
	day := ts.UTC().Truncate(24 * time.Hour)
	return m.createWithRetry(ctx, day)
}

func (m *PartitionManager) createWithRetry(ctx context.Context, day time.Time) error {
	name := repository.PartitionName(day)
	end := day.AddDate(0, 0, 1)

	backoff := time.Second
	var lastErr error
	for attempt := 1; attempt <= 3; attempt++ {
		lastErr = m.repo.Create(ctx, name, day, end)
		if lastErr == nil {
			return nil
		}
		log.Errorf("partition create %s attempt %d failed: %v", name, attempt, lastErr)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return fmt.Errorf("partition create %s exhausted retries: %w", name, lastErr)
}

// promoteDue moves planned partitions whose range has begun to active
func (m *PartitionManager) promoteDue(ctx context.Context) error {
	parts, err := m.repo.List(ctx)
	if err != nil {
		return err
	}
	now := m.now()
	for _, p := range parts {
		if err := ctx.Err(); err != nil {
			return err
		}
		if p.State == repository.PartitionPlanned && !p.RangeStart.After(now) {
			if err := m.repo.SetState(ctx, p.Name, repository.PartitionActive); err != nil {
				return err
			}
			log.Infof("partition %s promoted to active", p.Name)
		}
	}
	return nil
}

// RetireExpired moves partitions past the retention horizon to retiring,
// then drops retiring partitions once the grace period (for in-flight
// backfills) has elapsed.
func (m *PartitionManager) RetireExpired(ctx context.Context) error {
	parts, err := m.repo.List(ctx)
	if err != nil {
		return err
	}
	now := m.now()
	retentionCutoff := now.AddDate(0, 0, -m.retentionDays)
	graceCutoff := now.AddDate(0, 0, -m.graceDays)

	for _, p := range parts {
		if err := ctx.Err(); err != nil {
			return err
		}
		switch p.State {
		case repository.PartitionActive:
			if p.RangeEnd.Before(retentionCutoff) {
				if err := m.repo.SetState(ctx, p.Name, repository.PartitionRetiring); err != nil {
					return err
				}
				log.Infof("partition %s retiring (range ended %s)", p.Name, p.RangeEnd.Format("2006-01-02"))
			}
		case repository.PartitionRetiring:
			if p.UpdatedAt.Before(graceCutoff) {
				if err := m.repo.Drop(ctx, p.Name); err != nil {
					return err
				}
				log.Infof("partition %s dropped", p.Name)
			}
		}
	}
	return nil
}

// Status returns the current registry contents for the admin endpoint
func (m *PartitionManager) Status(ctx context.Context) ([]repository.Partition, error) {
	return m.repo.List(ctx)
}
