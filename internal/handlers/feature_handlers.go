package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/epeers/datamart/internal/repository"
	"github.com/epeers/datamart/internal/services"
)

// FeatureHandler serves the read side of the feature matrix
type FeatureHandler struct {
	features  *repository.FeatureRepository
	refresher *services.FeatureRefresher
}

// NewFeatureHandler creates a new FeatureHandler
func NewFeatureHandler(features *repository.FeatureRepository, refresher *services.FeatureRefresher) *FeatureHandler {
	return &FeatureHandler{features: features, refresher: refresher}
}

// Get handles GET /features/:symbol?timeframe=1min&from=...&to=...
func (h *FeatureHandler) Get(c *gin.Context) {
	symbol, err := services.NormalizeSymbol(c.Param("symbol"))
	if err != nil {
		badRequest(c, "invalid symbol")
		return
	}

	timeframe := c.DefaultQuery("timeframe", "1d")

	from, err := parseTimeQuery(c.Query("from"), time.Time{})
	if err != nil {
		badRequest(c, "from must be RFC3339")
		return
	}
	to, err := parseTimeQuery(c.Query("to"), time.Now().UTC())
	if err != nil {
		badRequest(c, "to must be RFC3339")
		return
	}

	rows, err := h.features.GetFeatures(c.Request.Context(), symbol, timeframe, from, to)
	if err != nil {
		writeError(c, err)
		return
	}

	watermark, err := h.features.GetWatermark(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"symbol":       symbol,
		"timeframe":    timeframe,
		"refreshed_to": watermark,
		"rows":         rows,
	})
}

// Refresh handles POST /features/refresh, forcing an incremental refresh
// outside the cron schedule
func (h *FeatureHandler) Refresh(c *gin.Context) {
	rows, err := h.refresher.RefreshIncremental(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rows_refreshed": rows})
}

func parseTimeQuery(raw string, fallback time.Time) (time.Time, error) {
	if raw == "" {
		return fallback, nil
	}
	return time.Parse(time.RFC3339, raw)
}
