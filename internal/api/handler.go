package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"reimbursement-service/internal/models"
	"reimbursement-service/internal/service"
	"reimbursement-service/internal/store"
	"reimbursement-service/internal/util"
)

// SyncRequestPublisher enqueues sync requests for the background worker.
type SyncRequestPublisher interface {
	PublishSyncRequested(ctx context.Context, event *models.SyncRequestedEvent) error
}

// Handler contains HTTP handlers
type Handler struct {
	orchestrator *service.SyncOrchestrator
	claims       *service.ClaimService
	syncQueue    SyncRequestPublisher
}

// NewHandler creates a new HTTP handler
func NewHandler(orchestrator *service.SyncOrchestrator, claims *service.ClaimService, syncQueue SyncRequestPublisher) *Handler {
	return &Handler{
		orchestrator: orchestrator,
		claims:       claims,
		syncQueue:    syncQueue,
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.POST("/sync", h.runSync)
		v1.POST("/sync/queue", h.queueSync)
		v1.GET("/sync/logs", h.syncLogs)
		v1.GET("/claims", h.listClaims)
		v1.GET("/claims/:id", h.getClaim)
		v1.GET("/claims/:id/text", h.claimText)
		v1.PATCH("/claims/:id/status", h.updateClaimStatus)
		v1.GET("/stats", h.getStats)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck handles readiness check requests
func (h *Handler) readinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

type runSyncRequest struct {
	StartDate time.Time `json:"start_date" binding:"required"`
	EndDate   time.Time `json:"end_date" binding:"required"`
}

// runSync triggers a full sync for a window. The response always enumerates
// per-step outcomes; only a failure before any step ran is an error.
func (h *Handler) runSync(c *gin.Context) {
	var req runSyncRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}
	if !req.EndDate.After(req.StartDate) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "end_date must be after start_date",
		})
		return
	}

	result, err := h.orchestrator.RunSync(c.Request.Context(), req.StartDate, req.EndDate)
	if err != nil {
		if errors.Is(err, service.ErrSyncInProgress) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to start sync",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, result)
}

// queueSync enqueues a sync request instead of running it inline. The
// background worker picks it up; the response only confirms acceptance.
func (h *Handler) queueSync(c *gin.Context) {
	var req runSyncRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}
	if !req.EndDate.After(req.StartDate) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "end_date must be after start_date",
		})
		return
	}

	event := &models.SyncRequestedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeSyncRequested,
			Timestamp: time.Now(),
		},
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
	}
	if err := h.syncQueue.PublishSyncRequested(c.Request.Context(), event); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to queue sync request",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"request_id": event.EventID})
}

// syncLogs returns the newest sync audit entries
func (h *Handler) syncLogs(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	logs, err := h.claims.RecentSyncLogs(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to load sync logs",
			"details": err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"logs": logs})
}

// listClaims returns a filtered page of claimable items
func (h *Handler) listClaims(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	filter := store.ClaimFilter{
		Status:   c.Query("status"),
		Category: c.Query("category"),
		FNSKU:    c.Query("fnsku"),
		SortBy:   c.DefaultQuery("sort_by", "created_at"),
		SortDesc: c.DefaultQuery("sort_dir", "desc") == "desc",
		Limit:    limit,
		Offset:   offset,
	}

	items, total, err := h.claims.ListClaims(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to list claims",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"items":  items,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

// getClaim returns one claimable item
func (h *Handler) getClaim(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid claim ID"})
		return
	}

	item, err := h.claims.GetClaim(c.Request.Context(), id)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, store.ErrNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": "Claim not found", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, item)
}

// claimText returns the rendered claim text for an item
func (h *Handler) claimText(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid claim ID"})
		return
	}

	text, err := h.claims.ClaimText(c.Request.Context(), id)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, store.ErrNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": "Claim not found", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"claim_text": text})
}

type updateClaimStatusRequest struct {
	Status string `json:"status" binding:"required"`
	Notes  string `json:"notes"`
}

// updateClaimStatus handles operator claim transitions
func (h *Handler) updateClaimStatus(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid claim ID"})
		return
	}

	var req updateClaimStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	item, err := h.claims.UpdateClaimStatus(c.Request.Context(), id, req.Status, req.Notes)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidClaimStatus):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, store.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Claim not found"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":   "Failed to update claim",
				"details": err.Error(),
			})
		}
		return
	}

	c.JSON(http.StatusOK, item)
}

// getStats returns aggregate counts per category and lifecycle bucket
func (h *Handler) getStats(c *gin.Context) {
	stats, err := h.claims.Stats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to load stats",
			"details": err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"stats": stats})
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
