package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/epeers/datamart/internal/models"
	"github.com/epeers/datamart/internal/services"
)

// ResolveHandler exposes dimension resolution directly, for producers that
// resolve once up front and then write facts by ID.
type ResolveHandler struct {
	resolver *services.Resolver
}

// NewResolveHandler creates a new ResolveHandler
func NewResolveHandler(resolver *services.Resolver) *ResolveHandler {
	return &ResolveHandler{resolver: resolver}
}

// Security handles POST /resolve/security
func (h *ResolveHandler) Security(c *gin.Context) {
	var req models.ResolveSecurityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	id, err := h.resolver.ResolveSecurity(c.Request.Context(), req.Symbol)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"security_id": id})
}

// Time handles POST /resolve/time
func (h *ResolveHandler) Time(c *gin.Context) {
	var req models.ResolveTimeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	id, err := h.resolver.ResolveTime(c.Request.Context(), req.Timestamp.Time)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"time_id": id})
}
