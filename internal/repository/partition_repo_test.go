package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPartitionCreateIdempotent(t *testing.T) {
	ctx := context.Background()
	repo := NewPartitionRepository(testPool)

	day := time.Date(2025, 2, 10, 0, 0, 0, 0, time.UTC)
	name := PartitionName(day)

	assert.NoError(t, repo.Create(ctx, name, day, day.AddDate(0, 0, 1)))
	assert.NoError(t, repo.Create(ctx, name, day, day.AddDate(0, 0, 1)), "re-create must be a no-op")

	parts, err := repo.List(ctx)
	assert.NoError(t, err)

	found := false
	for _, p := range parts {
		if p.Name == name {
			found = true
			assert.Equal(t, PartitionPlanned, p.State)
			assert.True(t, p.RangeStart.Equal(day))
			assert.True(t, p.RangeEnd.Equal(day.AddDate(0, 0, 1)))
		}
	}
	assert.True(t, found, "registry must record the partition")
}

func TestPartitionCovers(t *testing.T) {
	ctx := context.Background()
	repo := NewPartitionRepository(testPool)

	day := time.Date(2025, 2, 11, 0, 0, 0, 0, time.UTC)
	assert.NoError(t, repo.Create(ctx, PartitionName(day), day, day.AddDate(0, 0, 1)))

	covered, err := repo.Covers(ctx, day.Add(12*time.Hour))
	assert.NoError(t, err)
	assert.True(t, covered)

	covered, err = repo.Covers(ctx, time.Date(1999, 1, 1, 0, 0, 0, 0, time.UTC))
	assert.NoError(t, err)
	assert.False(t, covered)
}

func TestPartitionLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := NewPartitionRepository(testPool)

	day := time.Date(2025, 2, 12, 0, 0, 0, 0, time.UTC)
	name := PartitionName(day)
	assert.NoError(t, repo.Create(ctx, name, day, day.AddDate(0, 0, 1)))

	assert.NoError(t, repo.SetState(ctx, name, PartitionActive))
	assert.NoError(t, repo.SetState(ctx, name, PartitionRetiring))
	assert.NoError(t, repo.Drop(ctx, name))

	// dropped partitions no longer cover their range but stay auditable
	covered, err := repo.Covers(ctx, day.Add(time.Hour))
	assert.NoError(t, err)
	assert.False(t, covered)

	parts, err := repo.List(ctx)
	assert.NoError(t, err)
	found := false
	for _, p := range parts {
		if p.Name == name {
			found = true
			assert.Equal(t, PartitionDropped, p.State)
		}
	}
	assert.True(t, found)
}
