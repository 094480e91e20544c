package migrate

// Schema DDL for the dimensional store. Each statement block is one
// migration step; all steps are idempotent so a partially-applied sequence
// can be re-run safely.

const createDimSector = `
CREATE TABLE IF NOT EXISTS dim_sector (
    id         SERIAL PRIMARY KEY,
    name       TEXT NOT NULL UNIQUE,
    parent_id  INTEGER REFERENCES dim_sector(id),
    etf_symbol TEXT
);
`

// dim_security.sector_id holds the current sector only; reclassification
// overwrites in place (no slowly-changing-dimension history).
const createDimSecurity = `
CREATE TABLE IF NOT EXISTS dim_security (
    id                 BIGSERIAL PRIMARY KEY,
    symbol             TEXT NOT NULL UNIQUE,
    name               TEXT,
    sector_id          INTEGER REFERENCES dim_sector(id),
    exchange           TEXT,
    asset_type         TEXT,
    active             BOOLEAN NOT NULL DEFAULT TRUE,
    market_cap         BIGINT,
    shares_outstanding BIGINT,
    created_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at         TIMESTAMPTZ
);
`

const createDimTime = `
CREATE TABLE IF NOT EXISTS dim_time (
    id             BIGSERIAL PRIMARY KEY,
    ts             TIMESTAMPTZ NOT NULL UNIQUE,
    date           DATE NOT NULL,
    year           INTEGER NOT NULL,
    quarter        INTEGER NOT NULL,
    month          INTEGER NOT NULL,
    week           INTEGER NOT NULL,
    day_of_week    INTEGER NOT NULL,
    market_session TEXT NOT NULL
        CHECK (market_session IN ('pre_market', 'regular', 'after_hours', 'closed')),
    is_trading_day BOOLEAN
);
CREATE INDEX IF NOT EXISTS idx_dim_time_date ON dim_time(date);
`

// bar_ts duplicates dim_time.ts because PostgreSQL requires the partition
// key to be a local column and part of every unique constraint. dim_time.ts
// is unique, so (security_id, bar_ts, timeframe) enforces the
// (security, time, timeframe) natural key.
const createFactPriceBar = `
CREATE TABLE IF NOT EXISTS fact_price_bar (
    security_id BIGINT NOT NULL REFERENCES dim_security(id),
    time_id     BIGINT NOT NULL REFERENCES dim_time(id),
    bar_ts      TIMESTAMPTZ NOT NULL,
    timeframe   TEXT NOT NULL,
    open        DOUBLE PRECISION NOT NULL CHECK (open > 0),
    high        DOUBLE PRECISION NOT NULL CHECK (high > 0),
    low         DOUBLE PRECISION NOT NULL CHECK (low > 0),
    close       DOUBLE PRECISION NOT NULL CHECK (close > 0),
    volume      BIGINT NOT NULL CHECK (volume >= 0),
    vwap        DOUBLE PRECISION,
    inserted_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    CHECK (low <= high),
    UNIQUE (security_id, bar_ts, timeframe)
) PARTITION BY RANGE (bar_ts);
CREATE INDEX IF NOT EXISTS idx_fact_price_bar_time ON fact_price_bar(time_id);
CREATE INDEX IF NOT EXISTS idx_fact_price_bar_inserted ON fact_price_bar(inserted_at);
`

const createPartitionRegistry = `
CREATE TABLE IF NOT EXISTS partition_registry (
    partition_name TEXT PRIMARY KEY,
    range_start    TIMESTAMPTZ NOT NULL,
    range_end      TIMESTAMPTZ NOT NULL,
    state          TEXT NOT NULL
        CHECK (state IN ('planned', 'active', 'retiring', 'dropped')),
    created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// url is TEXT without a length ceiling: a fixed-length column here silently
// rejected 40-60% of real-world URLs carrying tracking parameters.
const createFactNews = `
CREATE TABLE IF NOT EXISTS fact_news (
    id           BIGSERIAL PRIMARY KEY,
    security_id  BIGINT NOT NULL REFERENCES dim_security(id),
    time_id      BIGINT NOT NULL REFERENCES dim_time(id),
    headline     TEXT NOT NULL,
    url          TEXT NOT NULL,
    source       TEXT,
    sentiment    DOUBLE PRECISION NOT NULL CHECK (sentiment >= -1 AND sentiment <= 1),
    catalyst     TEXT NOT NULL
        CHECK (catalyst IN ('none', 'weak', 'moderate', 'strong', 'major')),
    impact_5m    DOUBLE PRECISION,
    impact_15m   DOUBLE PRECISION,
    impact_30m   DOUBLE PRECISION,
    impact_1h    DOUBLE PRECISION,
    impact_4h    DOUBLE PRECISION,
    impact_1d    DOUBLE PRECISION,
    impact_final BOOLEAN NOT NULL DEFAULT FALSE,
    inserted_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_fact_news_security_time ON fact_news(security_id, time_id);
CREATE INDEX IF NOT EXISTS idx_fact_news_pending
    ON fact_news(inserted_at) WHERE NOT impact_final;
`

const createFactIndicator = `
CREATE TABLE IF NOT EXISTS fact_indicator (
    security_id BIGINT NOT NULL REFERENCES dim_security(id),
    time_id     BIGINT NOT NULL REFERENCES dim_time(id),
    timeframe   TEXT NOT NULL,
    name        TEXT NOT NULL,
    value       DOUBLE PRECISION NOT NULL,
    inserted_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    UNIQUE (security_id, time_id, timeframe, name)
);
`

const createFactSectorCorrelation = `
CREATE TABLE IF NOT EXISTS fact_sector_correlation (
    security_id BIGINT NOT NULL REFERENCES dim_security(id),
    sector_id   INTEGER NOT NULL REFERENCES dim_sector(id),
    time_id     BIGINT NOT NULL REFERENCES dim_time(id),
    window_days INTEGER NOT NULL CHECK (window_days > 0),
    correlation DOUBLE PRECISION NOT NULL CHECK (correlation >= -1 AND correlation <= 1),
    inserted_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    UNIQUE (security_id, sector_id, time_id, window_days)
);
`

const createFactMacro = `
CREATE TABLE IF NOT EXISTS fact_macro (
    time_id     BIGINT NOT NULL REFERENCES dim_time(id),
    indicator   TEXT NOT NULL,
    value       DOUBLE PRECISION NOT NULL,
    inserted_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    UNIQUE (time_id, indicator)
);
`

const createFactFundamentals = `
CREATE TABLE IF NOT EXISTS fact_fundamentals (
    security_id   BIGINT NOT NULL REFERENCES dim_security(id),
    time_id       BIGINT NOT NULL REFERENCES dim_time(id),
    fiscal_period TEXT NOT NULL,
    revenue       NUMERIC,
    eps_actual    NUMERIC,
    eps_estimate  NUMERIC,
    eps_surprise  NUMERIC,
    pe_ratio      NUMERIC,
    inserted_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
    UNIQUE (security_id, fiscal_period)
);
`

const createFactAnalystEstimate = `
CREATE TABLE IF NOT EXISTS fact_analyst_estimate (
    security_id  BIGINT NOT NULL REFERENCES dim_security(id),
    time_id      BIGINT NOT NULL REFERENCES dim_time(id),
    firm         TEXT NOT NULL,
    rating       TEXT NOT NULL
        CHECK (rating IN ('strong_buy', 'buy', 'hold', 'sell', 'strong_sell')),
    price_target NUMERIC,
    eps_estimate NUMERIC,
    inserted_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
    UNIQUE (security_id, time_id, firm)
);
`

const createFeatureMatrix = `
CREATE TABLE IF NOT EXISTS feature_matrix (
    security_id        BIGINT NOT NULL REFERENCES dim_security(id),
    time_id            BIGINT NOT NULL REFERENCES dim_time(id),
    timeframe          TEXT NOT NULL,
    symbol             TEXT NOT NULL,
    sector_name        TEXT,
    ts                 TIMESTAMPTZ NOT NULL,
    close              DOUBLE PRECISION NOT NULL,
    volume             BIGINT NOT NULL,
    news_count         INTEGER NOT NULL DEFAULT 0,
    news_max_catalyst  TEXT,
    news_avg_sentiment DOUBLE PRECISION,
    refreshed_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
    UNIQUE (security_id, time_id, timeframe)
);
CREATE INDEX IF NOT EXISTS idx_feature_matrix_symbol_ts ON feature_matrix(symbol, ts);

CREATE TABLE IF NOT EXISTS refresh_watermark (
    job        TEXT PRIMARY KEY,
    high_water TIMESTAMPTZ NOT NULL
);
`

// indicators holds the latest indicator values for the row's key as
// {name: value}, so consumers get price, news and indicators in one read.
const addFeatureIndicators = `
ALTER TABLE feature_matrix ADD COLUMN IF NOT EXISTS indicators JSONB;
`

// GICS sectors with their SPDR tracking ETFs. ON CONFLICT keeps the seed
// idempotent across deployments.
const seedSectors = `
INSERT INTO dim_sector (name, etf_symbol) VALUES
    ('Information Technology', 'XLK'),
    ('Health Care', 'XLV'),
    ('Financials', 'XLF'),
    ('Consumer Discretionary', 'XLY'),
    ('Consumer Staples', 'XLP'),
    ('Energy', 'XLE'),
    ('Industrials', 'XLI'),
    ('Materials', 'XLB'),
    ('Utilities', 'XLU'),
    ('Real Estate', 'XLRE'),
    ('Communication Services', 'XLC')
ON CONFLICT (name) DO NOTHING;
`
