package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/epeers/datamart/internal/services"
)

// HealthHandler reports process and schema health
type HealthHandler struct {
	pool      *pgxpool.Pool
	validator *services.SchemaValidator
}

// NewHealthHandler creates a new HealthHandler
func NewHealthHandler(pool *pgxpool.Pool, validator *services.SchemaValidator) *HealthHandler {
	return &HealthHandler{pool: pool, validator: validator}
}

// Health handles GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	if err := h.pool.Ping(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "degraded",
			"error":  err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Schema handles GET /health/schema, running the full invariant audit
// on demand
func (h *HealthHandler) Schema(c *gin.Context) {
	report := h.validator.Validate(c.Request.Context())
	status := http.StatusOK
	if !report.Pass {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, report)
}
