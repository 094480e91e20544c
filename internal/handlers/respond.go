package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	derr "github.com/epeers/datamart/internal/errors"
	"github.com/epeers/datamart/internal/models"
	"github.com/epeers/datamart/internal/repository"
)

// writeError maps the storage error taxonomy to an HTTP response. Producer
// mistakes (bad payloads, unknown keys) are 4xx; anything the producer
// cannot fix by changing its request is a 500.
func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, derr.ErrPayloadInvalid) || errors.Is(err, derr.ErrResolutionFailed):
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "bad_request",
			Message: err.Error(),
		})
	case errors.Is(err, derr.ErrNotFound) ||
		errors.Is(err, repository.ErrSecurityNotFound) ||
		errors.Is(err, repository.ErrSectorNotFound):
		c.JSON(http.StatusNotFound, models.ErrorResponse{
			Error:   "not_found",
			Message: err.Error(),
		})
	case errors.Is(err, derr.ErrPartitionGap):
		// the writer already tried on-demand creation; at this point the
		// partition manager needs operator attention
		c.JSON(http.StatusServiceUnavailable, models.ErrorResponse{
			Error:   "partition_gap",
			Message: err.Error(),
		})
	default:
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "internal_error",
			Message: err.Error(),
		})
	}
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, models.ErrorResponse{
		Error:   "bad_request",
		Message: msg,
	})
}
