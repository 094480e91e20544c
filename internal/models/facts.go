package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// CatalystStrength is the closed enumeration for how market-moving a news
// item is expected to be.
type CatalystStrength string

const (
	CatalystNone     CatalystStrength = "none"
	CatalystWeak     CatalystStrength = "weak"
	CatalystModerate CatalystStrength = "moderate"
	CatalystStrong   CatalystStrength = "strong"
	CatalystMajor    CatalystStrength = "major"
)

// Rank orders catalyst strengths for aggregation (max over a window)
func (c CatalystStrength) Rank() int {
	switch c {
	case CatalystWeak:
		return 1
	case CatalystModerate:
		return 2
	case CatalystStrong:
		return 3
	case CatalystMajor:
		return 4
	default:
		return 0
	}
}

// Valid reports whether c is a member of the closed enumeration
func (c CatalystStrength) Valid() bool {
	switch c {
	case CatalystNone, CatalystWeak, CatalystModerate, CatalystStrong, CatalystMajor:
		return true
	}
	return false
}

// PriceBar is one OHLCV bar in fact_price_bar, keyed by
// (security_id, time_id, timeframe).
type PriceBar struct {
	SecurityID int64     `json:"security_id"`
	TimeID     int64     `json:"time_id"`
	BarTS      time.Time `json:"bar_ts"` // partition key, copy of dim_time.ts
	Timeframe  string    `json:"timeframe"`
	Open       float64   `json:"open"`
	High       float64   `json:"high"`
	Low        float64   `json:"low"`
	Close      float64   `json:"close"`
	Volume     int64     `json:"volume"`
	VWAP       *float64  `json:"vwap"`
}

// NewsItem is one row in fact_news. The impact columns hold post-publication
// price deltas and stay NULL until the backfill job can compute them from
// subsequent price bars.
type NewsItem struct {
	ID          int64            `json:"id"`
	SecurityID  int64            `json:"security_id"`
	TimeID      int64            `json:"time_id"`
	Headline    string           `json:"headline"`
	URL         string           `json:"url"` // unbounded TEXT, never truncated
	Source      *string          `json:"source"`
	Sentiment   float64          `json:"sentiment"` // [-1, 1]
	Catalyst    CatalystStrength `json:"catalyst"`
	Impact5m    *float64         `json:"impact_5m"`
	Impact15m   *float64         `json:"impact_15m"`
	Impact30m   *float64         `json:"impact_30m"`
	Impact1h    *float64         `json:"impact_1h"`
	Impact4h    *float64         `json:"impact_4h"`
	Impact1d    *float64         `json:"impact_1d"`
	ImpactFinal bool             `json:"impact_final"`
}

// IndicatorSnapshot is one technical-indicator value in fact_indicator,
// keyed by (security_id, time_id, timeframe, name).
type IndicatorSnapshot struct {
	SecurityID int64   `json:"security_id"`
	TimeID     int64   `json:"time_id"`
	Timeframe  string  `json:"timeframe"`
	Name       string  `json:"name"`
	Value      float64 `json:"value"`
}

// SectorCorrelation is one rolling correlation reading between a security
// and its sector's tracking ETF.
type SectorCorrelation struct {
	SecurityID  int64   `json:"security_id"`
	SectorID    int     `json:"sector_id"`
	TimeID      int64   `json:"time_id"`
	WindowDays  int     `json:"window_days"`
	Correlation float64 `json:"correlation"` // [-1, 1]
}

// MacroReading is one macro-indicator observation in fact_macro.
// References time only, not a security.
type MacroReading struct {
	TimeID    int64   `json:"time_id"`
	Indicator string  `json:"indicator"`
	Value     float64 `json:"value"`
}

// FundamentalsRecord is one reported-period fundamentals row
type FundamentalsRecord struct {
	SecurityID   int64            `json:"security_id"`
	TimeID       int64            `json:"time_id"`
	FiscalPeriod string           `json:"fiscal_period"` // e.g. 2025Q3
	Revenue      *decimal.Decimal `json:"revenue"`
	EPSActual    *decimal.Decimal `json:"eps_actual"`
	EPSEstimate  *decimal.Decimal `json:"eps_estimate"`
	EPSSurprise  *decimal.Decimal `json:"eps_surprise"`
	PERatio      *decimal.Decimal `json:"pe_ratio"`
}

// AnalystEstimate is one analyst rating/target row
type AnalystEstimate struct {
	SecurityID  int64            `json:"security_id"`
	TimeID      int64            `json:"time_id"`
	Firm        string           `json:"firm"`
	Rating      string           `json:"rating"`
	PriceTarget *decimal.Decimal `json:"price_target"`
	EPSEstimate *decimal.Decimal `json:"eps_estimate"`
}

// FeatureRow is one row of the denormalized feature matrix consumed by
// downstream ML/analytics. It may lag live facts by up to one refresh
// interval.
type FeatureRow struct {
	SecurityID       int64     `json:"security_id"`
	TimeID           int64     `json:"time_id"`
	Timeframe        string    `json:"timeframe"`
	Symbol           string    `json:"symbol"`
	SectorName       *string   `json:"sector_name"`
	TS               time.Time `json:"ts"`
	Close            float64   `json:"close"`
	Volume           int64     `json:"volume"`
	NewsCount        int       `json:"news_count"`
	NewsMaxCatalyst  *string   `json:"news_max_catalyst"`
	NewsAvgSentiment *float64  `json:"news_avg_sentiment"`
	// Indicators holds the latest indicator values for this key as
	// {name: value}, empty when no snapshots exist.
	Indicators  map[string]float64 `json:"indicators"`
	RefreshedAt time.Time          `json:"refreshed_at"`
}
