package models

import (
	"time"
)

// MarketSession classifies the trading session an instant falls in
type MarketSession string

const (
	SessionPreMarket  MarketSession = "pre_market"
	SessionRegular    MarketSession = "regular"
	SessionAfterHours MarketSession = "after_hours"
	SessionClosed     MarketSession = "closed"
)

// Security represents a tradeable instrument in dim_security.
// Rows are never physically deleted; retired instruments carry Active=false
// so historical facts remain valid.
type Security struct {
	ID                int64      `json:"id"`
	Symbol            string     `json:"symbol"` // unique natural key
	Name              *string    `json:"name"`
	SectorID          *int       `json:"sector_id"` // FK to dim_sector, nullable
	Exchange          *string    `json:"exchange"`
	AssetType         *string    `json:"asset_type"`
	Active            bool       `json:"active"`
	MarketCap         *int64     `json:"market_cap"`         // nullable, refreshed periodically
	SharesOutstanding *int64     `json:"shares_outstanding"` // nullable
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         *time.Time `json:"updated_at"`
}

// Sector is a GICS-style classification entity with an optional parent and
// an associated tracking ETF symbol. Seeded once, rarely mutated.
type Sector struct {
	ID        int     `json:"id"`
	Name      string  `json:"name"`
	ParentID  *int    `json:"parent_id"`
	ETFSymbol *string `json:"etf_symbol"`
}

// TimePoint is one instant in dim_time, decomposed into calendar fields and
// a market-session classification. Natural key is the exact timestamp.
// Immutable after creation except IsTradingDay, which a calendar job may
// back-fill.
type TimePoint struct {
	ID            int64         `json:"id"`
	TS            time.Time     `json:"ts"` // stored UTC
	Date          time.Time     `json:"date"`
	Year          int           `json:"year"`
	Quarter       int           `json:"quarter"`
	Month         int           `json:"month"`
	Week          int           `json:"week"`
	DayOfWeek     int           `json:"day_of_week"` // 0=Sunday, matching time.Weekday
	MarketSession MarketSession `json:"market_session"`
	IsTradingDay  *bool         `json:"is_trading_day"` // nullable until back-filled
}
