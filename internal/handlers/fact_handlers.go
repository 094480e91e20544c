package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/epeers/datamart/internal/middleware"
	"github.com/epeers/datamart/internal/models"
	"github.com/epeers/datamart/internal/services"
)

// FactHandler handles ingestion endpoints for all fact families
type FactHandler struct {
	writer *services.FactWriter
}

// NewFactHandler creates a new FactHandler
func NewFactHandler(writer *services.FactWriter) *FactHandler {
	return &FactHandler{writer: writer}
}

// PriceBar handles POST /facts/price-bars
func (h *FactHandler) PriceBar(c *gin.Context) {
	var req models.PriceBarRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	resp, err := h.writer.WritePriceBarRequest(c.Request.Context(), req)
	if err != nil {
		h.logRejection(c, "price_bar", req.Symbol, err)
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// PriceBarBatch handles POST /facts/price-bars/batch. The body is a JSON
// array of bar payloads; the batch is all-or-nothing.
func (h *FactHandler) PriceBarBatch(c *gin.Context) {
	var reqs []models.PriceBarRequest
	if err := c.ShouldBindJSON(&reqs); err != nil {
		badRequest(c, err.Error())
		return
	}

	resps, err := h.writer.WritePriceBarBatch(c.Request.Context(), reqs)
	if err != nil {
		h.logRejection(c, "price_bar", "batch", err)
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"written": len(resps), "rows": resps})
}

// News handles POST /facts/news
func (h *FactHandler) News(c *gin.Context) {
	var req models.NewsItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	resp, newsID, err := h.writer.WriteNewsItemRequest(c.Request.Context(), req)
	if err != nil {
		h.logRejection(c, "news", req.Symbol, err)
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"id":          newsID,
		"security_id": resp.SecurityID,
		"time_id":     resp.TimeID,
	})
}

// Indicator handles POST /facts/indicators
func (h *FactHandler) Indicator(c *gin.Context) {
	var req models.IndicatorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	resp, err := h.writer.WriteIndicatorRequest(c.Request.Context(), req)
	if err != nil {
		h.logRejection(c, "indicator", req.Symbol, err)
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// IndicatorBatch handles POST /facts/indicators/batch. The body is a JSON
// array of snapshot payloads; the batch is all-or-nothing.
func (h *FactHandler) IndicatorBatch(c *gin.Context) {
	var reqs []models.IndicatorRequest
	if err := c.ShouldBindJSON(&reqs); err != nil {
		badRequest(c, err.Error())
		return
	}

	resps, err := h.writer.WriteIndicatorBatch(c.Request.Context(), reqs)
	if err != nil {
		h.logRejection(c, "indicator", "batch", err)
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"written": len(resps), "rows": resps})
}

// GetIndicators handles GET /facts/indicators/:symbol?ts=...&timeframe=...
func (h *FactHandler) GetIndicators(c *gin.Context) {
	ts, err := time.Parse(time.RFC3339, c.Query("ts"))
	if err != nil {
		badRequest(c, "ts must be RFC3339")
		return
	}
	timeframe := c.DefaultQuery("timeframe", "1d")

	snaps, err := h.writer.GetIndicators(c.Request.Context(), c.Param("symbol"), ts, timeframe)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"symbol":     c.Param("symbol"),
		"timeframe":  timeframe,
		"indicators": snaps,
	})
}

// SectorCorrelation handles POST /facts/sector-correlations
func (h *FactHandler) SectorCorrelation(c *gin.Context) {
	var req models.SectorCorrelationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	resp, err := h.writer.WriteSectorCorrelationRequest(c.Request.Context(), req)
	if err != nil {
		h.logRejection(c, "sector_correlation", req.Symbol, err)
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// Macro handles POST /facts/macro
func (h *FactHandler) Macro(c *gin.Context) {
	var req models.MacroRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	resp, err := h.writer.WriteMacroRequest(c.Request.Context(), req)
	if err != nil {
		h.logRejection(c, "macro", req.Indicator, err)
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// GetMacroSeries handles GET /facts/macro/:indicator?from=...&to=...
func (h *FactHandler) GetMacroSeries(c *gin.Context) {
	from, err := time.Parse(time.RFC3339, c.Query("from"))
	if err != nil {
		badRequest(c, "from must be RFC3339")
		return
	}
	to, err := time.Parse(time.RFC3339, c.Query("to"))
	if err != nil {
		badRequest(c, "to must be RFC3339")
		return
	}

	readings, err := h.writer.GetMacroSeries(c.Request.Context(), c.Param("indicator"), from, to)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"indicator": c.Param("indicator"),
		"readings":  readings,
	})
}

// Fundamentals handles POST /facts/fundamentals
func (h *FactHandler) Fundamentals(c *gin.Context) {
	var req models.FundamentalsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	resp, err := h.writer.WriteFundamentalsRequest(c.Request.Context(), req)
	if err != nil {
		h.logRejection(c, "fundamentals", req.Symbol, err)
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// GetFundamentals handles GET /facts/fundamentals/:symbol?fiscal_period=...
func (h *FactHandler) GetFundamentals(c *gin.Context) {
	fiscalPeriod := c.Query("fiscal_period")
	if fiscalPeriod == "" {
		badRequest(c, "fiscal_period is required")
		return
	}

	rec, err := h.writer.GetFundamentals(c.Request.Context(), c.Param("symbol"), fiscalPeriod)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, rec)
}

// AnalystEstimate handles POST /facts/analyst-estimates
func (h *FactHandler) AnalystEstimate(c *gin.Context) {
	var req models.AnalystEstimateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	resp, err := h.writer.WriteAnalystEstimateRequest(c.Request.Context(), req)
	if err != nil {
		h.logRejection(c, "analyst_estimate", req.Symbol, err)
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// GetPriceBar handles GET /facts/price-bars/:symbol?ts=...&timeframe=...
// It is the read-back producers use to confirm a write landed.
func (h *FactHandler) GetPriceBar(c *gin.Context) {
	ts, err := time.Parse(time.RFC3339, c.Query("ts"))
	if err != nil {
		badRequest(c, "ts must be RFC3339")
		return
	}
	timeframe := c.DefaultQuery("timeframe", "1d")

	bar, err := h.writer.GetPriceBar(c.Request.Context(), c.Param("symbol"), ts, timeframe)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, bar)
}

func (h *FactHandler) logRejection(c *gin.Context, family, key string, err error) {
	log.WithFields(log.Fields{
		"family":   family,
		"key":      key,
		"producer": middleware.GetProducerID(c),
		"error":    err.Error(),
	}).Warn("fact write rejected")
}
