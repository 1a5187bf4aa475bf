package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lysyi3m/rss-relay/app/apperr"
	"github.com/lysyi3m/rss-relay/app/tasks"
)

func NewHandler(cycle tasks.CycleRunner, store StoreHealth, version string) *Handler {
	return &Handler{
		cycle:   cycle,
		store:   store,
		version: version,
	}
}

// CheckRSS runs one cycle synchronously and reports its outcome.
func (h *Handler) CheckRSS(c *gin.Context) {
	res, err := h.cycle.Run(c.Request.Context())
	if err != nil {
		slog.Error("Manual check failed", "error", err, "code", apperr.CodeOf(err))

		body := gin.H{
			"status": "error",
			"error":  err.Error(),
			"code":   apperr.CodeOf(err),
		}
		if res != nil {
			body["result"] = res
		}
		c.JSON(http.StatusInternalServerError, body)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"result": res,
	})
}

// HealthCheck answers 503 when the dedup store is unreachable.
func (h *Handler) HealthCheck(c *gin.Context) {
	store := h.store.Health(c.Request.Context())

	status, code := "ok", http.StatusOK
	if store["status"] != "healthy" {
		status, code = "degraded", http.StatusServiceUnavailable
	}

	c.JSON(code, gin.H{
		"status":    status,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"store":     store,
	})
}

func (h *Handler) GetStatus(c *gin.Context) {
	stats, err := h.cycle.Stats(c.Request.Context())
	if err != nil {
		slog.Error("Failed to get stats", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"status": "error",
			"error":  err.Error(),
			"code":   apperr.CodeOf(err),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":          "success",
		"processed_items": stats.ProcessedItems,
		"last_check":      stats.LastCheck,
		"feed_url":        stats.FeedURL,
	})
}

func (h *Handler) ServiceInfo(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service":     "RSS Relay",
		"version":     h.version,
		"description": "Rewrites the newest item of an RSS/Atom feed and republishes it to Telegram",
		"endpoints": map[string]string{
			"check":  "/check-rss (GET or POST)",
			"health": "/health",
			"status": "/status",
		},
	})
}
