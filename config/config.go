package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment variables
type Config struct {
	PGURL string
	Port  string

	// Partition lifecycle
	PartitionLeadDays      int    // how many days of partitions to keep ahead of now
	PartitionRetentionDays int    // partitions entirely older than this move to retiring
	PartitionGraceDays     int    // retiring -> dropped after this many additional days
	PartitionCron          string // schedule for the partition maintenance run
	RefreshCron            string // schedule for the feature matrix refresh
	ImpactCron             string // schedule for the news price-impact backfill

	// Trailing window for news aggregates in the feature matrix
	NewsAggWindow time.Duration
}

// Load reads configuration from environment variables. A .env file in the
// working directory is applied first when present.
func Load() (*Config, error) {
	// .env is optional; absent in production
	_ = godotenv.Load()

	pgURL := os.Getenv("PG_URL")
	if pgURL == "" {
		return nil, fmt.Errorf("PG_URL environment variable is required")
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	cfg := &Config{
		PGURL:                  pgURL,
		Port:                   port,
		PartitionLeadDays:      intEnv("PARTITION_LEAD_DAYS", 7),
		PartitionRetentionDays: intEnv("PARTITION_RETENTION_DAYS", 730),
		PartitionGraceDays:     intEnv("PARTITION_GRACE_DAYS", 3),
		PartitionCron:          strEnv("PARTITION_CRON", "15 1 * * *"),
		RefreshCron:            strEnv("REFRESH_CRON", "*/5 * * * *"),
		ImpactCron:             strEnv("IMPACT_CRON", "*/15 * * * *"),
		NewsAggWindow:          durEnv("NEWS_AGG_WINDOW", 24*time.Hour),
	}

	if cfg.PartitionLeadDays < 1 {
		return nil, fmt.Errorf("PARTITION_LEAD_DAYS must be at least 1, got %d", cfg.PartitionLeadDays)
	}
	if cfg.PartitionRetentionDays < cfg.PartitionLeadDays {
		return nil, fmt.Errorf("PARTITION_RETENTION_DAYS (%d) must not be smaller than PARTITION_LEAD_DAYS (%d)",
			cfg.PartitionRetentionDays, cfg.PartitionLeadDays)
	}

	return cfg, nil
}

func strEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func intEnv(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func durEnv(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
