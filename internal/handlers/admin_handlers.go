package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	log "github.com/sirupsen/logrus"

	"github.com/epeers/datamart/internal/middleware"
	"github.com/epeers/datamart/internal/models"
	"github.com/epeers/datamart/internal/repository"
	"github.com/epeers/datamart/internal/services"
)

// AdminHandler handles operator endpoints: partition lifecycle inspection
// and reference-data updates on the security dimension.
type AdminHandler struct {
	partitions *services.PartitionManager
	dimRepo    *repository.DimensionRepository
	sectorRepo *repository.SectorRepository
	validate   *validator.Validate
}

// NewAdminHandler creates a new AdminHandler
func NewAdminHandler(partitions *services.PartitionManager, dimRepo *repository.DimensionRepository, sectorRepo *repository.SectorRepository) *AdminHandler {
	return &AdminHandler{
		partitions: partitions,
		dimRepo:    dimRepo,
		sectorRepo: sectorRepo,
		validate:   validator.New(),
	}
}

// ListPartitions handles GET /admin/partitions
func (h *AdminHandler) ListPartitions(c *gin.Context) {
	parts, err := h.partitions.Status(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"partitions": parts})
}

// RunPartitionCycle handles POST /admin/partitions/run, forcing a lifecycle
// pass outside the cron schedule
func (h *AdminHandler) RunPartitionCycle(c *gin.Context) {
	h.partitions.Run(c.Request.Context())
	c.JSON(http.StatusAccepted, gin.H{"status": "cycle started"})
}

// ListSectors handles GET /admin/sectors, returning the seeded GICS set
func (h *AdminHandler) ListSectors(c *gin.Context) {
	sectors, err := h.sectorRepo.GetAll(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sectors": sectors})
}

// UpdateSecurity handles PUT /admin/securities/:symbol. The symbol itself is
// immutable; everything else on the security row is operator-editable.
func (h *AdminHandler) UpdateSecurity(c *gin.Context) {
	symbol, err := services.NormalizeSymbol(c.Param("symbol"))
	if err != nil {
		badRequest(c, "invalid symbol")
		return
	}

	var req models.SecurityReferenceUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		badRequest(c, err.Error())
		return
	}

	var sectorID *int
	if req.Sector != nil {
		sector, err := h.sectorRepo.GetByName(c.Request.Context(), *req.Sector)
		if err != nil {
			writeError(c, err)
			return
		}
		sectorID = &sector.ID
	}

	if err := h.dimRepo.UpdateSecurityReference(c.Request.Context(), symbol, req, sectorID); err != nil {
		writeError(c, err)
		return
	}

	log.WithFields(log.Fields{
		"symbol":   symbol,
		"producer": middleware.GetProducerID(c),
	}).Info("security reference data updated")

	security, err := h.dimRepo.GetSecurityBySymbol(c.Request.Context(), symbol)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, security)
}

// MarkCalendar handles POST /admin/calendar, back-filling trading-day flags
// on existing time dimension rows. Days with no dim_time rows yet are
// unaffected; the calendar job re-runs after they appear.
func (h *AdminHandler) MarkCalendar(c *gin.Context) {
	var req models.CalendarUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	dates := make([]time.Time, len(req.Dates))
	for i, d := range req.Dates {
		dates[i] = d.Time
	}

	updated, err := h.dimRepo.MarkTradingDays(c.Request.Context(), dates, req.IsTradingDay)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"rows_updated": updated})
}

// GetSecurity handles GET /admin/securities/:symbol
func (h *AdminHandler) GetSecurity(c *gin.Context) {
	symbol, err := services.NormalizeSymbol(c.Param("symbol"))
	if err != nil {
		badRequest(c, "invalid symbol")
		return
	}

	security, err := h.dimRepo.GetSecurityBySymbol(c.Request.Context(), symbol)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, security)
}
