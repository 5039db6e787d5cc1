package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/codyseavey/tcg-scan/internal/services"
)

type CatalogHandler struct {
	sync    *services.CatalogSync
	baseCtx context.Context
	logger  *zap.Logger
}

// NewCatalogHandler wires the catalog endpoints. Background syncs run under
// baseCtx so they stop on shutdown.
func NewCatalogHandler(baseCtx context.Context, sync *services.CatalogSync, logger *zap.Logger) *CatalogHandler {
	return &CatalogHandler{
		sync:    sync,
		baseCtx: baseCtx,
		logger:  logger.Named("catalog"),
	}
}

// TriggerSync starts a catalog sync. With ?wait=true the request blocks and
// returns the result; otherwise the sync runs in the background.
func (h *CatalogHandler) TriggerSync(c *gin.Context) {
	var opts services.SyncOptions
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&opts); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	if h.sync.IsRunning() {
		c.JSON(http.StatusConflict, gin.H{"error": services.ErrSyncInProgress.Error()})
		return
	}

	if c.Query("wait") == "true" {
		result, err := h.sync.Run(c.Request.Context(), opts)
		if errors.Is(err, services.ErrSyncInProgress) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "result": result})
			return
		}
		c.JSON(http.StatusOK, result)
		return
	}

	go func() {
		if _, err := h.sync.Run(h.baseCtx, opts); err != nil && !errors.Is(err, services.ErrSyncInProgress) {
			h.logger.Error("background catalog sync failed", zap.Error(err))
		}
	}()
	c.JSON(http.StatusAccepted, gin.H{"message": "catalog sync started"})
}

// GetStatus reports sync progress and catalog size.
func (h *CatalogHandler) GetStatus(c *gin.Context) {
	status, err := h.sync.Status(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, status)
}
