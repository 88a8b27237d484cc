package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/amitxd75/github-api-backend/internal/cache"
	"github.com/amitxd75/github-api-backend/internal/models"
	"github.com/amitxd75/github-api-backend/internal/service"
	"github.com/amitxd75/github-api-backend/internal/upstream"
)

// Handler wires the proxy, stats and cache-admin endpoints into gin.
type Handler struct {
	proxy   *service.ProxyService
	stats   *service.StatsService
	cache   *cache.ResponseCache
	started time.Time
}

func New(proxy *service.ProxyService, stats *service.StatsService, c *cache.ResponseCache) *Handler {
	return &Handler{proxy: proxy, stats: stats, cache: c, started: time.Now()}
}

// Register attaches all routes to the router.
func (h *Handler) Register(r *gin.Engine) {
	r.GET("/health", h.Health)
	api := r.Group("/api")
	{
		api.GET("/github/*endpoint", h.Proxy)
		api.GET("/stats/:username", h.Stats)
		api.GET("/cache/status", h.CacheStatus)
		api.DELETE("/cache", h.CacheClear)
		api.DELETE("/cache/*key", h.CacheDelete)
	}
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":        "ok",
		"uptimeSeconds": int(time.Since(h.started).Seconds()),
		"cacheEntries":  h.cache.Status().EntryCount,
	})
}

func (h *Handler) Proxy(c *gin.Context) {
	endpoint := c.Param("endpoint")
	useCache := c.DefaultQuery("cache", "true") != "false"

	payload, err := h.proxy.Handle(c.Request.Context(), endpoint, useCache)
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, payload)
}

func (h *Handler) Stats(c *gin.Context) {
	username := c.Param("username")
	if username == "" {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:      "username is required",
			Suggestion: "request /api/stats/<username>",
		})
		return
	}
	force := c.Query("force") == "true"

	record, err := h.stats.Handle(c.Request.Context(), username, force)
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

func (h *Handler) CacheStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.cache.Status())
}

func (h *Handler) CacheClear(c *gin.Context) {
	cleared := h.cache.Clear()
	c.JSON(http.StatusOK, gin.H{"cleared": cleared})
}

func (h *Handler) CacheDelete(c *gin.Context) {
	// The wildcard keeps a leading slash; a stats key arrives as
	// "/stats_<username>" and needs it stripped back off.
	key := c.Param("key")
	if strings.HasPrefix(key, "/"+cache.StatsKeyPrefix) {
		key = strings.TrimPrefix(key, "/")
	}
	if h.cache.Delete(key) {
		c.JSON(http.StatusOK, gin.H{"deleted": key})
		return
	}
	c.JSON(http.StatusNotFound, models.ErrorResponse{
		Error:   "cache key not found",
		Details: key,
	})
}

// renderError maps a classified upstream error to the response shape
// and status the API promises.
func (h *Handler) renderError(c *gin.Context, err error) {
	var upErr *upstream.Error
	if !errors.As(err, &upErr) {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: err.Error()})
		return
	}

	switch upErr.Kind {
	case upstream.KindValidation:
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:      upErr.Message,
			Suggestion: "endpoints must begin with '/', e.g. /users/octocat",
		})
	case upstream.KindAuth:
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{
			Error:      "upstream rejected credentials",
			Details:    upErr.Body,
			Suggestion: "verify the GITHUB_TOKEN environment variable",
		})
	case upstream.KindRateLimited:
		resp := models.ErrorResponse{
			Error:      "upstream rate limit exceeded",
			Details:    upErr.Body,
			Suggestion: "set GITHUB_TOKEN to raise the quota",
		}
		if !upErr.RateLimitReset.IsZero() {
			resp.Suggestion = fmt.Sprintf("rate limit resets at %s", upErr.RateLimitReset.UTC().Format(time.RFC3339))
		}
		c.JSON(http.StatusTooManyRequests, resp)
	case upstream.KindNotFound:
		c.JSON(http.StatusNotFound, models.ErrorResponse{
			Error:   "upstream resource not found",
			Details: upErr.Body,
		})
	case upstream.KindUpstreamServer:
		c.JSON(http.StatusBadGateway, models.ErrorResponse{
			Error:   fmt.Sprintf("upstream error (status %d)", upErr.StatusCode),
			Details: upErr.Body,
		})
	case upstream.KindNetwork:
		c.JSON(http.StatusServiceUnavailable, models.ErrorResponse{
			Error:      "upstream unreachable",
			Details:    upErr.Error(),
			Suggestion: "retry shortly",
		})
	default:
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: upErr.Error()})
	}
}
