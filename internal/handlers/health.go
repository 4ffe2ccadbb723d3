package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tm-acme-shop/acme-shop-store-service/internal/logging"
)

const readinessTimeout = 2 * time.Second

// ReadinessCheck pings one backing store.
type ReadinessCheck struct {
	Name string
	Ping func(ctx context.Context) error
}

// Health handles GET /health
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "store-service",
	})
}

// Ready handles GET /ready. Every check must pass.
func (h *Handlers) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), readinessTimeout)
	defer cancel()

	results := make(gin.H, len(h.checks))
	ready := true
	for _, check := range h.checks {
		if err := check.Ping(ctx); err != nil {
			ready = false
			results[check.Name] = "down"
			h.logger.Warn("Readiness check failed", logging.Fields{
				"check": check.Name,
				"error": err.Error(),
			})
			continue
		}
		results[check.Name] = "up"
	}

	if !ready {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready", "checks": results})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready", "checks": results})
}

// Live handles GET /live
func (h *Handlers) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "alive",
	})
}
