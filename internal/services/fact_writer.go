package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	derr "github.com/epeers/datamart/internal/errors"
	"github.com/epeers/datamart/internal/models"
	"github.com/epeers/datamart/internal/repository"
)

// epsTolerance bounds how far a reported eps_surprise may drift from
// eps_actual - eps_estimate before the payload is rejected.
var epsTolerance = decimal.NewFromFloat(0.01)

// FactWriter is the single write path for every fact family: validate the
// payload, resolve dimensions, insert with integer foreign keys only.
// The *Request methods accept natural keys and resolve internally; the
// plain methods take already-resolved surrogate IDs.
type FactWriter struct {
	resolver     *Resolver
	partitions   *PartitionManager
	priceRepo    *repository.PriceRepository
	newsRepo     *repository.NewsRepository
	indRepo      *repository.IndicatorRepository
	macroRepo    *repository.MacroRepository
	fundRepo     *repository.FundamentalsRepository
	sectorRepo   *repository.SectorRepository
	validate     *validator.Validate
}

// NewFactWriter creates a new FactWriter
func NewFactWriter(
	resolver *Resolver,
	partitions *PartitionManager,
	priceRepo *repository.PriceRepository,
	newsRepo *repository.NewsRepository,
	indRepo *repository.IndicatorRepository,
	macroRepo *repository.MacroRepository,
	fundRepo *repository.FundamentalsRepository,
	sectorRepo *repository.SectorRepository,
) *FactWriter {
	return &FactWriter{
		resolver:   resolver,
		partitions: partitions,
		priceRepo:  priceRepo,
		newsRepo:   newsRepo,
		indRepo:    indRepo,
		macroRepo:  macroRepo,
		fundRepo:   fundRepo,
		sectorRepo: sectorRepo,
		validate:   validator.New(),
	}
}

// checkStruct runs tag-based validation and maps the first failure to a
// FieldError so the offending field reaches the caller and the log line.
func (w *FactWriter) checkStruct(v any) error {
	err := w.validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return derr.NewFieldError(verrs[0].Field(), fmt.Sprintf("failed %q constraint", verrs[0].Tag()))
	}
	return fmt.Errorf("%w: %v", derr.ErrPayloadInvalid, err)
}

// validateOHLC enforces bar shape: all prices positive, low <= open,close <= high
func validateOHLC(open, high, low, close float64) error {
	if open <= 0 || high <= 0 || low <= 0 || close <= 0 {
		return derr.NewFieldError("ohlc", "all prices must be positive")
	}
	if high < low {
		return derr.NewFieldError("high", "high is below low")
	}
	if open < low || open > high {
		return derr.NewFieldError("open", "open outside [low, high]")
	}
	if close < low || close > high {
		return derr.NewFieldError("close", "close outside [low, high]")
	}
	return nil
}

// WritePriceBar stores a bar given resolved surrogate IDs. Duplicate bars
// for the same (security, time, timeframe) are updates-if-changed. A
// partition gap triggers one on-demand creation and a single retry; that
// fallback path is logged because steady state never takes it.
func (w *FactWriter) WritePriceBar(ctx context.Context, bar models.PriceBar) error {
	if err := validateOHLC(bar.Open, bar.High, bar.Low, bar.Close); err != nil {
		return err
	}
	if bar.Volume < 0 {
		return derr.NewFieldError("volume", "must be non-negative")
	}

	err := w.priceRepo.UpsertBar(ctx, bar)
	if err == nil {
		return nil
	}
	if !errors.Is(err, derr.ErrPartitionGap) {
		return err
	}

	log.WithFields(log.Fields{
		"security_id": bar.SecurityID,
		"bar_ts":      bar.BarTS,
		"timeframe":   bar.Timeframe,
	}).Warn("price bar hit partition gap, requesting on-demand partition")

	if perr := w.partitions.EnsureFor(ctx, bar.BarTS); perr != nil {
		return fmt.Errorf("%w: on-demand partition creation failed: %v", derr.ErrPartitionGap, perr)
	}
	return w.priceRepo.UpsertBar(ctx, bar)
}

// WritePriceBarRequest resolves natural keys and stores the bar
func (w *FactWriter) WritePriceBarRequest(ctx context.Context, req models.PriceBarRequest) (*models.WriteResponse, error) {
	if err := w.checkStruct(req); err != nil {
		return nil, w.logInvalid("price_bar", req.Symbol, req.Timestamp.Time, err)
	}
	if err := validateOHLC(req.Open, req.High, req.Low, req.Close); err != nil {
		return nil, w.logInvalid("price_bar", req.Symbol, req.Timestamp.Time, err)
	}

	securityID, timeID, err := w.resolveBoth(ctx, req.Symbol, req.Timestamp.Time)
	if err != nil {
		return nil, derr.NewWriteError("price_bar", req.Symbol, req.Timestamp.Time, derr.ErrResolutionFailed, err)
	}

	bar := models.PriceBar{
		SecurityID: securityID,
		TimeID:     timeID,
		BarTS:      req.Timestamp.Time.UTC(),
		Timeframe:  req.Timeframe,
		Open:       req.Open,
		High:       req.High,
		Low:        req.Low,
		Close:      req.Close,
		Volume:     req.Volume,
		VWAP:       req.VWAP,
	}
	if err := w.WritePriceBar(ctx, bar); err != nil {
		return nil, w.wrapWrite("price_bar", req.Symbol, req.Timestamp.Time, err)
	}
	return &models.WriteResponse{SecurityID: securityID, TimeID: timeID}, nil
}

// WritePriceBarBatch validates and resolves every bar in the batch, then
// stores them in a single pipelined round trip. The batch is atomic: one
// bad payload rejects the whole request before anything is written. A
// partition gap triggers on-demand creation for each distinct bar day and
// a single retry.
func (w *FactWriter) WritePriceBarBatch(ctx context.Context, reqs []models.PriceBarRequest) ([]models.WriteResponse, error) {
	if len(reqs) == 0 {
		return nil, derr.NewFieldError("bars", "must not be empty")
	}

	bars := make([]models.PriceBar, 0, len(reqs))
	resps := make([]models.WriteResponse, 0, len(reqs))
	for _, req := range reqs {
		if err := w.checkStruct(req); err != nil {
			return nil, w.logInvalid("price_bar", req.Symbol, req.Timestamp.Time, err)
		}
		if err := validateOHLC(req.Open, req.High, req.Low, req.Close); err != nil {
			return nil, w.logInvalid("price_bar", req.Symbol, req.Timestamp.Time, err)
		}

		securityID, timeID, err := w.resolveBoth(ctx, req.Symbol, req.Timestamp.Time)
		if err != nil {
			return nil, derr.NewWriteError("price_bar", req.Symbol, req.Timestamp.Time, derr.ErrResolutionFailed, err)
		}

		bars = append(bars, models.PriceBar{
			SecurityID: securityID,
			TimeID:     timeID,
			BarTS:      req.Timestamp.Time.UTC(),
			Timeframe:  req.Timeframe,
			Open:       req.Open,
			High:       req.High,
			Low:        req.Low,
			Close:      req.Close,
			Volume:     req.Volume,
			VWAP:       req.VWAP,
		})
		resps = append(resps, models.WriteResponse{SecurityID: securityID, TimeID: timeID})
	}

	err := w.priceRepo.UpsertBars(ctx, bars)
	if err == nil {
		return resps, nil
	}
	if !errors.Is(err, derr.ErrPartitionGap) {
		return nil, w.wrapWrite("price_bar", reqs[0].Symbol, reqs[0].Timestamp.Time, err)
	}

	log.WithField("bars", len(bars)).Warn("price bar batch hit partition gap, requesting on-demand partitions")

	days := map[time.Time]struct{}{}
	for _, bar := range bars {
		days[bar.BarTS.Truncate(24*time.Hour)] = struct{}{}
	}
	for day := range days {
		if perr := w.partitions.EnsureFor(ctx, day); perr != nil {
			return nil, fmt.Errorf("%w: on-demand partition creation failed: %v", derr.ErrPartitionGap, perr)
		}
	}
	if err := w.priceRepo.UpsertBars(ctx, bars); err != nil {
		return nil, w.wrapWrite("price_bar", reqs[0].Symbol, reqs[0].Timestamp.Time, err)
	}
	return resps, nil
}

// WriteNewsItem stores a news item given resolved surrogate IDs. Returns
// the fact_news row ID.
func (w *FactWriter) WriteNewsItem(ctx context.Context, item models.NewsItem) (int64, error) {
	if item.Headline == "" {
		return 0, derr.NewFieldError("headline", "must not be empty")
	}
	if item.URL == "" {
		return 0, derr.NewFieldError("url", "must not be empty")
	}
	if item.Sentiment < -1 || item.Sentiment > 1 {
		return 0, derr.NewFieldError("sentiment", "must be in [-1, 1]")
	}
	if item.Catalyst == "" {
		item.Catalyst = models.CatalystNone
	}
	if !item.Catalyst.Valid() {
		return 0, derr.NewFieldError("catalyst", fmt.Sprintf("%q is not in the catalyst enumeration", item.Catalyst))
	}
	return w.newsRepo.Insert(ctx, item)
}

// WriteNewsItemRequest resolves natural keys and stores the news item
func (w *FactWriter) WriteNewsItemRequest(ctx context.Context, req models.NewsItemRequest) (*models.WriteResponse, int64, error) {
	if err := w.checkStruct(req); err != nil {
		return nil, 0, w.logInvalid("news", req.Symbol, req.Timestamp.Time, err)
	}

	securityID, timeID, err := w.resolveBoth(ctx, req.Symbol, req.Timestamp.Time)
	if err != nil {
		return nil, 0, derr.NewWriteError("news", req.Symbol, req.Timestamp.Time, derr.ErrResolutionFailed, err)
	}

	id, err := w.WriteNewsItem(ctx, models.NewsItem{
		SecurityID: securityID,
		TimeID:     timeID,
		Headline:   req.Headline,
		URL:        req.URL,
		Source:     req.Source,
		Sentiment:  req.Sentiment,
		Catalyst:   req.Catalyst,
	})
	if err != nil {
		return nil, 0, w.wrapWrite("news", req.Symbol, req.Timestamp.Time, err)
	}
	return &models.WriteResponse{SecurityID: securityID, TimeID: timeID}, id, nil
}

// WriteIndicatorSnapshot stores an indicator value given resolved IDs
func (w *FactWriter) WriteIndicatorSnapshot(ctx context.Context, snap models.IndicatorSnapshot) error {
	if snap.Name == "" {
		return derr.NewFieldError("name", "must not be empty")
	}
	return w.indRepo.UpsertSnapshot(ctx, snap)
}

// WriteIndicatorRequest resolves natural keys and stores the snapshot
func (w *FactWriter) WriteIndicatorRequest(ctx context.Context, req models.IndicatorRequest) (*models.WriteResponse, error) {
	if err := w.checkStruct(req); err != nil {
		return nil, w.logInvalid("indicator", req.Symbol, req.Timestamp.Time, err)
	}

	securityID, timeID, err := w.resolveBoth(ctx, req.Symbol, req.Timestamp.Time)
	if err != nil {
		return nil, derr.NewWriteError("indicator", req.Symbol, req.Timestamp.Time, derr.ErrResolutionFailed, err)
	}

	err = w.WriteIndicatorSnapshot(ctx, models.IndicatorSnapshot{
		SecurityID: securityID,
		TimeID:     timeID,
		Timeframe:  req.Timeframe,
		Name:       req.Name,
		Value:      req.Value,
	})
	if err != nil {
		return nil, w.wrapWrite("indicator", req.Symbol, req.Timestamp.Time, err)
	}
	return &models.WriteResponse{SecurityID: securityID, TimeID: timeID}, nil
}

// WriteIndicatorBatch validates and resolves every snapshot in the batch,
// then stores them in a single pipelined round trip. One bad payload
// rejects the whole request before anything is written.
func (w *FactWriter) WriteIndicatorBatch(ctx context.Context, reqs []models.IndicatorRequest) ([]models.WriteResponse, error) {
	if len(reqs) == 0 {
		return nil, derr.NewFieldError("indicators", "must not be empty")
	}

	snaps := make([]models.IndicatorSnapshot, 0, len(reqs))
	resps := make([]models.WriteResponse, 0, len(reqs))
	for _, req := range reqs {
		if err := w.checkStruct(req); err != nil {
			return nil, w.logInvalid("indicator", req.Symbol, req.Timestamp.Time, err)
		}

		securityID, timeID, err := w.resolveBoth(ctx, req.Symbol, req.Timestamp.Time)
		if err != nil {
			return nil, derr.NewWriteError("indicator", req.Symbol, req.Timestamp.Time, derr.ErrResolutionFailed, err)
		}

		snaps = append(snaps, models.IndicatorSnapshot{
			SecurityID: securityID,
			TimeID:     timeID,
			Timeframe:  req.Timeframe,
			Name:       req.Name,
			Value:      req.Value,
		})
		resps = append(resps, models.WriteResponse{SecurityID: securityID, TimeID: timeID})
	}

	if err := w.indRepo.UpsertSnapshots(ctx, snaps); err != nil {
		return nil, w.wrapWrite("indicator", reqs[0].Symbol, reqs[0].Timestamp.Time, err)
	}
	return resps, nil
}

// GetIndicators returns every indicator snapshot stored for the symbol at
// one timestamp and timeframe.
func (w *FactWriter) GetIndicators(ctx context.Context, symbol string, ts time.Time, timeframe string) ([]models.IndicatorSnapshot, error) {
	securityID, timeID, err := w.resolveBoth(ctx, symbol, ts)
	if err != nil {
		return nil, err
	}
	return w.indRepo.GetSnapshots(ctx, securityID, timeID, timeframe)
}

// WriteSectorCorrelation stores a correlation reading given resolved IDs
func (w *FactWriter) WriteSectorCorrelation(ctx context.Context, c models.SectorCorrelation) error {
	if c.Correlation < -1 || c.Correlation > 1 {
		return derr.NewFieldError("correlation", "must be in [-1, 1]")
	}
	if c.WindowDays <= 0 {
		return derr.NewFieldError("window_days", "must be positive")
	}
	return w.indRepo.UpsertCorrelation(ctx, c)
}

// WriteSectorCorrelationRequest resolves natural keys (symbol, sector name,
// timestamp) and stores the reading
func (w *FactWriter) WriteSectorCorrelationRequest(ctx context.Context, req models.SectorCorrelationRequest) (*models.WriteResponse, error) {
	if err := w.checkStruct(req); err != nil {
		return nil, w.logInvalid("sector_correlation", req.Symbol, req.Timestamp.Time, err)
	}

	sector, err := w.sectorRepo.GetByName(ctx, req.Sector)
	if err != nil {
		if errors.Is(err, repository.ErrSectorNotFound) {
			return nil, w.logInvalid("sector_correlation", req.Symbol, req.Timestamp.Time,
				derr.NewFieldError("sector", fmt.Sprintf("unknown sector %q", req.Sector)))
		}
		return nil, derr.NewWriteError("sector_correlation", req.Symbol, req.Timestamp.Time, derr.ErrResolutionFailed, err)
	}

	securityID, timeID, err := w.resolveBoth(ctx, req.Symbol, req.Timestamp.Time)
	if err != nil {
		return nil, derr.NewWriteError("sector_correlation", req.Symbol, req.Timestamp.Time, derr.ErrResolutionFailed, err)
	}

	err = w.WriteSectorCorrelation(ctx, models.SectorCorrelation{
		SecurityID:  securityID,
		SectorID:    sector.ID,
		TimeID:      timeID,
		WindowDays:  req.WindowDays,
		Correlation: req.Correlation,
	})
	if err != nil {
		return nil, w.wrapWrite("sector_correlation", req.Symbol, req.Timestamp.Time, err)
	}
	return &models.WriteResponse{SecurityID: securityID, TimeID: timeID}, nil
}

// WriteMacroIndicator stores a macro reading given a resolved time ID.
// Macro facts carry no security dimension.
func (w *FactWriter) WriteMacroIndicator(ctx context.Context, m models.MacroReading) error {
	if m.Indicator == "" {
		return derr.NewFieldError("indicator", "must not be empty")
	}
	return w.macroRepo.Upsert(ctx, m)
}

// WriteMacroRequest resolves the timestamp and stores the reading
func (w *FactWriter) WriteMacroRequest(ctx context.Context, req models.MacroRequest) (*models.WriteResponse, error) {
	if err := w.checkStruct(req); err != nil {
		return nil, w.logInvalid("macro", req.Indicator, req.Timestamp.Time, err)
	}

	timeID, err := w.resolver.ResolveTime(ctx, req.Timestamp.Time)
	if err != nil {
		return nil, derr.NewWriteError("macro", req.Indicator, req.Timestamp.Time, derr.ErrResolutionFailed, err)
	}

	err = w.WriteMacroIndicator(ctx, models.MacroReading{
		TimeID:    timeID,
		Indicator: req.Indicator,
		Value:     req.Value,
	})
	if err != nil {
		return nil, w.wrapWrite("macro", req.Indicator, req.Timestamp.Time, err)
	}
	return &models.WriteResponse{TimeID: timeID}, nil
}

// GetMacroSeries returns readings for one macro indicator ordered by time
func (w *FactWriter) GetMacroSeries(ctx context.Context, indicator string, from, to time.Time) ([]models.MacroReading, error) {
	if indicator == "" {
		return nil, derr.NewFieldError("indicator", "must not be empty")
	}
	return w.macroRepo.GetSeries(ctx, indicator, from, to)
}

// WriteFundamentals stores a fundamentals record given resolved IDs. When
// eps_actual and eps_estimate are both present the surprise must be
// derivable from them: a missing surprise is computed, a contradictory one
// is rejected.
func (w *FactWriter) WriteFundamentals(ctx context.Context, f models.FundamentalsRecord) error {
	if f.FiscalPeriod == "" {
		return derr.NewFieldError("fiscal_period", "must not be empty")
	}
	if f.EPSActual != nil && f.EPSEstimate != nil {
		derived := f.EPSActual.Sub(*f.EPSEstimate)
		if f.EPSSurprise == nil {
			f.EPSSurprise = &derived
		} else if f.EPSSurprise.Sub(derived).Abs().GreaterThan(epsTolerance) {
			return derr.NewFieldError("eps_surprise",
				fmt.Sprintf("reported %s but actual-estimate is %s", f.EPSSurprise, derived))
		}
	}
	return w.fundRepo.UpsertFundamentals(ctx, f)
}

// WriteFundamentalsRequest resolves natural keys and stores the record
func (w *FactWriter) WriteFundamentalsRequest(ctx context.Context, req models.FundamentalsRequest) (*models.WriteResponse, error) {
	if err := w.checkStruct(req); err != nil {
		return nil, w.logInvalid("fundamentals", req.Symbol, req.Timestamp.Time, err)
	}

	securityID, timeID, err := w.resolveBoth(ctx, req.Symbol, req.Timestamp.Time)
	if err != nil {
		return nil, derr.NewWriteError("fundamentals", req.Symbol, req.Timestamp.Time, derr.ErrResolutionFailed, err)
	}

	err = w.WriteFundamentals(ctx, models.FundamentalsRecord{
		SecurityID:   securityID,
		TimeID:       timeID,
		FiscalPeriod: req.FiscalPeriod,
		Revenue:      req.Revenue,
		EPSActual:    req.EPSActual,
		EPSEstimate:  req.EPSEstimate,
		EPSSurprise:  req.EPSSurprise,
		PERatio:      req.PERatio,
	})
	if err != nil {
		return nil, w.wrapWrite("fundamentals", req.Symbol, req.Timestamp.Time, err)
	}
	return &models.WriteResponse{SecurityID: securityID, TimeID: timeID}, nil
}

// WriteAnalystEstimate stores an analyst estimate given resolved IDs
func (w *FactWriter) WriteAnalystEstimate(ctx context.Context, e models.AnalystEstimate) error {
	if e.Firm == "" {
		return derr.NewFieldError("firm", "must not be empty")
	}
	if e.PriceTarget != nil && e.PriceTarget.LessThanOrEqual(decimal.Zero) {
		return derr.NewFieldError("price_target", "must be positive")
	}
	return w.fundRepo.UpsertEstimate(ctx, e)
}

// WriteAnalystEstimateRequest resolves natural keys and stores the estimate
func (w *FactWriter) WriteAnalystEstimateRequest(ctx context.Context, req models.AnalystEstimateRequest) (*models.WriteResponse, error) {
	if err := w.checkStruct(req); err != nil {
		return nil, w.logInvalid("analyst_estimate", req.Symbol, req.Timestamp.Time, err)
	}

	securityID, timeID, err := w.resolveBoth(ctx, req.Symbol, req.Timestamp.Time)
	if err != nil {
		return nil, derr.NewWriteError("analyst_estimate", req.Symbol, req.Timestamp.Time, derr.ErrResolutionFailed, err)
	}

	err = w.WriteAnalystEstimate(ctx, models.AnalystEstimate{
		SecurityID:  securityID,
		TimeID:      timeID,
		Firm:        req.Firm,
		Rating:      req.Rating,
		PriceTarget: req.PriceTarget,
		EPSEstimate: req.EPSEstimate,
	})
	if err != nil {
		return nil, w.wrapWrite("analyst_estimate", req.Symbol, req.Timestamp.Time, err)
	}
	return &models.WriteResponse{SecurityID: securityID, TimeID: timeID}, nil
}

// GetFundamentals returns the current fundamentals record for a symbol and
// fiscal period, restatements already folded in.
func (w *FactWriter) GetFundamentals(ctx context.Context, symbol, fiscalPeriod string) (*models.FundamentalsRecord, error) {
	securityID, err := w.resolver.ResolveSecurity(ctx, symbol)
	if err != nil {
		return nil, err
	}
	return w.fundRepo.GetFundamentals(ctx, securityID, fiscalPeriod)
}

// GetPriceBar reads back one bar through the writer's own read path
func (w *FactWriter) GetPriceBar(ctx context.Context, symbol string, ts time.Time, timeframe string) (*models.PriceBar, error) {
	securityID, timeID, err := w.resolveBoth(ctx, symbol, ts)
	if err != nil {
		return nil, err
	}
	return w.priceRepo.GetBar(ctx, securityID, timeID, timeframe)
}

func (w *FactWriter) resolveBoth(ctx context.Context, symbol string, ts time.Time) (int64, int64, error) {
	securityID, err := w.resolver.ResolveSecurity(ctx, symbol)
	if err != nil {
		return 0, 0, err
	}
	timeID, err := w.resolver.ResolveTime(ctx, ts)
	if err != nil {
		return 0, 0, err
	}
	return securityID, timeID, nil
}

// logInvalid records a validation failure with the offending field and
// returns the PayloadInvalid-wrapped error. Validation failures are never
// retried; the producer must fix the data and resubmit.
func (w *FactWriter) logInvalid(family, key string, ts time.Time, err error) error {
	log.WithFields(log.Fields{
		"family":    family,
		"key":       key,
		"timestamp": ts,
	}).Warnf("rejected invalid payload: %v", err)
	return derr.NewWriteError(family, key, ts, derr.ErrPayloadInvalid, err)
}

// wrapWrite attaches fact-write context to a store failure, preserving the
// taxonomy kind the repository classified.
func (w *FactWriter) wrapWrite(family, key string, ts time.Time, err error) error {
	kind := derr.ErrConstraintViolation
	for _, k := range []error{derr.ErrPayloadInvalid, derr.ErrPartitionGap, derr.ErrResolutionFailed} {
		if errors.Is(err, k) {
			kind = k
			break
		}
	}
	log.WithFields(log.Fields{
		"family":    family,
		"key":       key,
		"timestamp": ts,
	}).Errorf("fact write failed: %v", err)
	return derr.NewWriteError(family, key, ts, kind, err)
}
