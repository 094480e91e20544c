package repository

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/epeers/datamart/internal/migrate"
	"github.com/epeers/datamart/internal/models"
	"github.com/epeers/datamart/internal/util"
)

var testPool *pgxpool.Pool

// fixtureDay anchors all integration fixtures; partitions for it and its
// neighbors are created in TestMain.
var fixtureDay = time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)

func TestMain(m *testing.M) {
	pgURL := os.Getenv("PG_URL")
	if pgURL == "" {
		fmt.Println("PG_URL environment variable not set, skipping integration tests")
		os.Exit(0)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var err error
	testPool, err = pgxpool.New(ctx, pgURL)
	if err != nil {
		fmt.Printf("Failed to connect to database: %v\n", err)
		os.Exit(1)
	}
	defer testPool.Close()

	if err := testPool.Ping(ctx); err != nil {
		fmt.Printf("Failed to ping database: %v\n", err)
		os.Exit(1)
	}

	if err := migrate.Migrate(ctx, testPool); err != nil {
		fmt.Printf("Failed to run migrations: %v\n", err)
		os.Exit(1)
	}

	// Partitions covering the fixture window
	partRepo := NewPartitionRepository(testPool)
	for i := -1; i <= 2; i++ {
		day := fixtureDay.AddDate(0, 0, i)
		if err := partRepo.Create(ctx, PartitionName(day), day, day.AddDate(0, 0, 1)); err != nil {
			fmt.Printf("Failed to create fixture partition: %v\n", err)
			os.Exit(1)
		}
	}

	os.Exit(m.Run())
}

func seedSecurity(t *testing.T, symbol string) int64 {
	t.Helper()
	id, err := NewDimensionRepository(testPool).InsertOrFetchSecurity(context.Background(), symbol)
	if err != nil {
		t.Fatalf("failed to seed security %s: %v", symbol, err)
	}
	return id
}

func seedTime(t *testing.T, ts time.Time) int64 {
	t.Helper()
	id, err := NewDimensionRepository(testPool).InsertOrFetchTime(context.Background(), util.DecomposeTime(ts))
	if err != nil {
		t.Fatalf("failed to seed time %s: %v", ts, err)
	}
	return id
}

func seedBar(t *testing.T, securityID, timeID int64, ts time.Time, timeframe string, close float64) {
	t.Helper()
	err := NewPriceRepository(testPool).UpsertBar(context.Background(), models.PriceBar{
		SecurityID: securityID,
		TimeID:     timeID,
		BarTS:      ts,
		Timeframe:  timeframe,
		Open:       close, High: close, Low: close, Close: close,
		Volume: 1000,
	})
	if err != nil {
		t.Fatalf("failed to seed price bar: %v", err)
	}
}
