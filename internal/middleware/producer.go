package middleware

import (
	"github.com/gin-gonic/gin"
)

const ProducerIDKey = "producer_id"

// TagProducer extracts the producer identity from the X-Producer-ID header.
// Producers are trusted services, so a missing header is tolerated and
// recorded as "unknown" rather than rejected.
func TagProducer() gin.HandlerFunc {
	return func(c *gin.Context) {
		producerID := c.GetHeader("X-Producer-ID")
		if producerID == "" {
			producerID = "unknown"
		}
		c.Set(ProducerIDKey, producerID)
		c.Next()
	}
}

// GetProducerID retrieves the producer ID from the context
func GetProducerID(c *gin.Context) string {
	producerID, exists := c.Get(ProducerIDKey)
	if !exists {
		return "unknown"
	}
	return producerID.(string)
}
