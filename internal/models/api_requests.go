package models

import (
	"github.com/shopspring/decimal"
)

// Fact-write request bodies. All accept natural keys (symbol, timestamp) and
// resolve internally; timestamps must carry an explicit offset, which
// FlexibleTime enforces at bind time.

// PriceBarRequest is the body for POST /facts/price-bars
type PriceBarRequest struct {
	Symbol    string       `json:"symbol" binding:"required"`
	Timestamp FlexibleTime `json:"timestamp" binding:"required"`
	Timeframe string       `json:"timeframe" binding:"required" validate:"oneof=1min 5min 15min 30min 1h 4h 1d"`
	Open      float64      `json:"open" validate:"gt=0"`
	High      float64      `json:"high" validate:"gt=0"`
	Low       float64      `json:"low" validate:"gt=0"`
	Close     float64      `json:"close" validate:"gt=0"`
	Volume    int64        `json:"volume" validate:"gte=0"`
	VWAP      *float64     `json:"vwap" validate:"omitempty,gt=0"`
}

// NewsItemRequest is the body for POST /facts/news
type NewsItemRequest struct {
	Symbol    string           `json:"symbol" binding:"required"`
	Timestamp FlexibleTime     `json:"timestamp" binding:"required"`
	Headline  string           `json:"headline" binding:"required"`
	URL       string           `json:"url" binding:"required" validate:"url"`
	Source    *string          `json:"source"`
	Sentiment float64          `json:"sentiment" validate:"gte=-1,lte=1"`
	Catalyst  CatalystStrength `json:"catalyst"`
}

// IndicatorRequest is the body for POST /facts/indicators
type IndicatorRequest struct {
	Symbol    string       `json:"symbol" binding:"required"`
	Timestamp FlexibleTime `json:"timestamp" binding:"required"`
	Timeframe string       `json:"timeframe" binding:"required" validate:"oneof=1min 5min 15min 30min 1h 4h 1d"`
	Name      string       `json:"name" binding:"required"`
	Value     float64      `json:"value"`
}

// SectorCorrelationRequest is the body for POST /facts/sector-correlations
type SectorCorrelationRequest struct {
	Symbol      string       `json:"symbol" binding:"required"`
	Sector      string       `json:"sector" binding:"required"`
	Timestamp   FlexibleTime `json:"timestamp" binding:"required"`
	WindowDays  int          `json:"window_days" validate:"gt=0"`
	Correlation float64      `json:"correlation" validate:"gte=-1,lte=1"`
}

// MacroRequest is the body for POST /facts/macro
type MacroRequest struct {
	Indicator string       `json:"indicator" binding:"required"`
	Timestamp FlexibleTime `json:"timestamp" binding:"required"`
	Value     float64      `json:"value"`
}

// FundamentalsRequest is the body for POST /facts/fundamentals
type FundamentalsRequest struct {
	Symbol       string           `json:"symbol" binding:"required"`
	Timestamp    FlexibleTime     `json:"timestamp" binding:"required"`
	FiscalPeriod string           `json:"fiscal_period" binding:"required"`
	Revenue      *decimal.Decimal `json:"revenue"`
	EPSActual    *decimal.Decimal `json:"eps_actual"`
	EPSEstimate  *decimal.Decimal `json:"eps_estimate"`
	EPSSurprise  *decimal.Decimal `json:"eps_surprise"`
	PERatio      *decimal.Decimal `json:"pe_ratio"`
}

// AnalystEstimateRequest is the body for POST /facts/analyst-estimates
type AnalystEstimateRequest struct {
	Symbol      string           `json:"symbol" binding:"required"`
	Timestamp   FlexibleTime     `json:"timestamp" binding:"required"`
	Firm        string           `json:"firm" binding:"required"`
	Rating      string           `json:"rating" binding:"required" validate:"oneof=strong_buy buy hold sell strong_sell"`
	PriceTarget *decimal.Decimal `json:"price_target"`
	EPSEstimate *decimal.Decimal `json:"eps_estimate"`
}

// ResolveSecurityRequest is the body for POST /resolve/security
type ResolveSecurityRequest struct {
	Symbol string `json:"symbol" binding:"required"`
}

// ResolveTimeRequest is the body for POST /resolve/time
type ResolveTimeRequest struct {
	Timestamp FlexibleTime `json:"timestamp" binding:"required"`
}

// SecurityReferenceUpdate is the body for PUT /admin/securities/:symbol,
// used by the reference-data feed. Symbol and ID are never changed here.
type SecurityReferenceUpdate struct {
	Name              *string `json:"name"`
	Sector            *string `json:"sector"`
	Exchange          *string `json:"exchange"`
	AssetType         *string `json:"asset_type"`
	Active            *bool   `json:"active"`
	MarketCap         *int64  `json:"market_cap" validate:"omitempty,gt=0"`
	SharesOutstanding *int64  `json:"shares_outstanding" validate:"omitempty,gt=0"`
}

// CalendarUpdateRequest marks a batch of calendar days as trading days or
// holidays on the time dimension
type CalendarUpdateRequest struct {
	Dates        []FlexibleTime `json:"dates" binding:"required,min=1"`
	IsTradingDay bool           `json:"is_trading_day"`
}

// ErrorResponse is the JSON error envelope for all endpoints
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// WriteResponse acknowledges a fact write with the surrogate keys used
type WriteResponse struct {
	SecurityID int64 `json:"security_id,omitempty"`
	TimeID     int64 `json:"time_id"`
}
