package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/epeers/datamart/internal/repository"
)

func TestPlanDays(t *testing.T) {
	now := time.Date(2025, 3, 10, 15, 42, 7, 0, time.UTC)
	days := PlanDays(now, 7)

	assert.Len(t, days, 8) // today plus seven ahead
	assert.Equal(t, time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC), days[0])
	assert.Equal(t, time.Date(2025, 3, 17, 0, 0, 0, 0, time.UTC), days[len(days)-1])

	for i := 1; i < len(days); i++ {
		assert.Equal(t, days[i-1].AddDate(0, 0, 1), days[i], "days must be contiguous")
	}
}

func TestPlanDaysNormalizesZone(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatalf("should have loaded timezone America/New_York: %v", err)
	}

	// 2025-03-10 22:00 ET is 2025-03-11 02:00 UTC; planning is UTC-based
	nowET := time.Date(2025, 3, 10, 22, 0, 0, 0, ny)
	days := PlanDays(nowET, 1)

	assert.Equal(t, time.Date(2025, 3, 11, 0, 0, 0, 0, time.UTC), days[0])
}

func TestPlanDaysCrossesMonthBoundary(t *testing.T) {
	now := time.Date(2025, 1, 30, 0, 0, 0, 0, time.UTC)
	days := PlanDays(now, 3)

	assert.Equal(t, time.Date(2025, 2, 2, 0, 0, 0, 0, time.UTC), days[3])
}

func TestPartitionName(t *testing.T) {
	day := time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "fact_price_bar_20250102", repository.PartitionName(day))
}
