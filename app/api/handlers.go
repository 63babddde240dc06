package api

import (
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lysyi3m/rss-sift/app/cache"
	"github.com/lysyi3m/rss-sift/app/feed"
	"github.com/lysyi3m/rss-sift/app/fetch"
	"github.com/lysyi3m/rss-sift/app/metrics"
	"github.com/lysyi3m/rss-sift/app/service"
	"github.com/lysyi3m/rss-sift/app/tasks"
)

const feedContentType = "application/rss+xml; charset=utf-8"

func NewHandler(svc FilterService, presets *feed.PresetCache, feedCache *cache.Cache, m *metrics.Metrics,
	scheduler tasks.TaskSchedulerInterface, prometheusHandler http.Handler, version string) *Handler {
	return &Handler{
		service:           svc,
		presets:           presets,
		feedCache:         feedCache,
		metrics:           m,
		scheduler:         scheduler,
		prometheusHandler: prometheusHandler,
		version:           version,
	}
}

func (h *Handler) Filter(c *gin.Context) {
	req := service.Request{
		ClientID: c.ClientIP(),
		Source:   c.Query("source"),
		Include:  feed.SplitCSV(c.Query("include")),
		Exclude:  feed.SplitCSV(c.Query("exclude")),
		Pattern:  c.Query("regex"),
	}

	out, result, err := h.service.Filter(c.Request.Context(), req)
	if err != nil {
		h.respondError(c, err)
		return
	}

	h.respondFeed(c, out, result)
}

func (h *Handler) GetPresetFeed(c *gin.Context) {
	name := c.Param("name")

	out, result, err := h.service.FilterPreset(c.Request.Context(), c.ClientIP(), name)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.Header("X-Feed-Name", name)
	h.respondFeed(c, out, result)
}

func (h *Handler) GetHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":        "healthy",
		"cache_size_mb": h.cacheSizeMB(),
		"timestamp":     time.Now().In(time.Local).Format(time.RFC3339),
		"presets":       h.presets.GetPresetCount(),
	})
}

func (h *Handler) GetMetrics(c *gin.Context) {
	c.JSON(http.StatusOK, metricsResponse{
		Snapshot:    h.metrics.Snapshot(),
		CacheSizeMB: h.cacheSizeMB(),
	})
}

func (h *Handler) APIListPresets(c *gin.Context) {
	presets := h.presets.GetPresets()

	items := make([]map[string]interface{}, 0, len(presets))
	for _, name := range h.presets.GetPresetNames() {
		preset := presets[name]
		items = append(items, map[string]interface{}{
			"name":             preset.Name,
			"url":              preset.URL,
			"enabled":          preset.Settings.Enabled,
			"warm":             preset.Settings.Warm,
			"refresh_interval": (time.Duration(preset.Settings.RefreshInterval) * time.Second).String(),
			"include":          preset.Include,
			"exclude":          preset.Exclude,
			"regex":            preset.Regex,
		})
	}

	c.JSON(http.StatusOK, map[string]interface{}{
		"presets": items,
		"total":   len(items),
	})
}

func (h *Handler) APIReloadPreset(c *gin.Context) {
	name := c.Param("name")

	if _, err := h.presets.GetPreset(name); err != nil {
		slog.Error("Preset not found", "preset", name, "error", err)
		c.JSON(http.StatusNotFound, gin.H{"error": "Preset not found"})
		return
	}

	preset, err := h.presets.LoadPreset(name)
	if err != nil {
		slog.Error("Error reloading preset", "preset", name, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to reload preset",
			"details": err.Error(),
		})
		return
	}

	response := gin.H{
		"success": true,
		"message": "Preset reloaded successfully",
		"preset": gin.H{
			"name":    preset.Name,
			"url":     preset.URL,
			"enabled": preset.Settings.Enabled,
		},
		"tasks": []gin.H{},
	}

	if preset.Settings.Enabled && fetch.IsRemote(preset.URL) {
		warmTask := tasks.NewWarmCacheTask(preset, h.feedCache)
		if err := h.scheduler.EnqueueTask(warmTask); err != nil {
			slog.Error("Error enqueueing warm task", "preset", name, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":   "Failed to enqueue warm task",
				"details": err.Error(),
			})
			return
		}
		response["tasks"] = []gin.H{{"id": warmTask.ID, "type": warmTask.Type}}
	}

	c.JSON(http.StatusOK, response)
}

func (h *Handler) respondFeed(c *gin.Context, out []byte, result feed.Result) {
	c.Header("X-Feed-Items", strconv.Itoa(result.Remaining))
	c.Header("X-Feed-Removed", strconv.Itoa(result.Removed))
	c.Data(http.StatusOK, feedContentType, out)
}

func (h *Handler) respondError(c *gin.Context, err error) {
	status := service.StatusFor(err)

	if status >= http.StatusInternalServerError {
		slog.Error("Request failed", "path", c.Request.URL.Path, "client", c.ClientIP(), "status", status, "error", err)
	} else {
		slog.Warn("Request rejected", "path", c.Request.URL.Path, "client", c.ClientIP(), "status", status, "error", err)
	}

	if errors.Is(err, service.ErrAdmissionRejected) {
		c.JSON(status, gin.H{"error": "Rate limit exceeded. Please try again later."})
		return
	}

	c.JSON(status, gin.H{"error": err.Error()})
}

func (h *Handler) cacheSizeMB() float64 {
	return math.Round(h.feedCache.Store().SizeMB()*100) / 100
}
