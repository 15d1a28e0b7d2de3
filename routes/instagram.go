package routes

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"social-autoreply-platform/internal/cache"
	"social-autoreply-platform/internal/database"
	"social-autoreply-platform/internal/logger"
	"social-autoreply-platform/middleware"
	"social-autoreply-platform/models"
	"social-autoreply-platform/services"
	"social-autoreply-platform/utils"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	maxOperatorBodyBytes  = 64 << 10
	defaultReplyListLimit = 50
	maxReplyListLimit     = 500
)

// OperatorDeps are the collaborators behind the authenticated API.
type OperatorDeps struct {
	Store     database.Store
	Cache     *cache.OwnershipCache
	MediaSync *services.MediaSyncService
	Export    *services.ExportService
}

func SetupOperatorRoutes(router *gin.Engine, deps OperatorDeps, authMiddleware *middleware.AuthMiddleware, rateLimit gin.HandlerFunc) {
	api := router.Group("/api")
	api.Use(middleware.RequestSizeLimit(maxOperatorBodyBytes))
	api.Use(authMiddleware.RequireAuth())
	if rateLimit != nil {
		api.Use(rateLimit)
	}

	api.POST("/instagram-business-id", handleSetBusinessID(deps.Store, deps.Cache))

	api.POST("/posts/sync", handleSyncPosts(deps.MediaSync))
	api.GET("/posts/:postId/auto-reply", handleGetAutoReply(deps.Store))
	api.PUT("/posts/:postId/auto-reply", handleSetAutoReply(deps.Store))
	api.GET("/posts/:postId/context", handleGetContext(deps.Store))
	api.PUT("/posts/:postId/context", handleSetContext(deps.Store))

	api.GET("/replies", handleListReplies(deps.Store))
	api.GET("/replies/export", handleExportReplies(deps.Export))
}

func tenantFromContext(c *gin.Context) (primitive.ObjectID, bool) {
	tenantID, ok := middleware.GetTenantID(c)
	if !ok {
		utils.RespondWithUnauthorized(c, "Tenant not found in token")
	}
	return tenantID, ok
}

func postIDParam(c *gin.Context) (string, bool) {
	postID := strings.TrimSpace(c.Param("postId"))
	if postID == "" {
		utils.RespondWithBadRequest(c, "Post ID is required", nil)
		return "", false
	}
	return postID, true
}

// handleSetBusinessID binds the webhook sender id to the caller's tenant
// and stamps it onto the tenant's known posts.
func handleSetBusinessID(store database.Store, ownershipCache *cache.OwnershipCache) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID, ok := tenantFromContext(c)
		if !ok {
			return
		}

		var req models.BindBusinessIDRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "igBusinessId is required", gin.H{"error": err.Error()})
			return
		}
		businessID := strings.TrimSpace(req.BusinessID)
		if businessID == "" {
			utils.RespondWithBadRequest(c, "igBusinessId is required", nil)
			return
		}

		ctx, cancel := utils.WithTimeout(c.Request.Context())
		defer cancel()

		tenant, err := store.GetTenant(ctx, tenantID)
		if errors.Is(err, database.ErrNotFound) {
			utils.RespondWithNotFound(c, "Tenant not found")
			return
		}
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to load tenant", nil)
			return
		}
		previous := tenant.BusinessID

		err = store.SetBusinessID(ctx, tenantID, businessID)
		if errors.Is(err, database.ErrDuplicate) {
			utils.RespondWithConflict(c, "Business id is already linked to another account", gin.H{"igBusinessId": businessID})
			return
		}
		if err != nil {
			logger.Error("Failed to set business id", "tenant_id", tenantID.Hex(), "error", err)
			utils.RespondWithInternalError(c, "Failed to save business id", nil)
			return
		}

		if err := ownershipCache.Invalidate(ctx, previous, businessID); err != nil {
			logger.Warn("Ownership cache invalidation failed", "tenant_id", tenantID.Hex(), "error", err)
		}

		backfilled, err := store.BackfillTenantMediaBusinessIDs(ctx, tenantID, businessID)
		if err != nil {
			logger.Warn("Media owner backfill failed", "tenant_id", tenantID.Hex(), "error", err)
		}

		logger.Info("Business id linked", "tenant_id", tenantID.Hex(), "business_id", businessID, "previous", previous, "backfilled", backfilled)
		c.JSON(http.StatusOK, gin.H{
			"success":      true,
			"igBusinessId": businessID,
			"backfilled":   backfilled,
		})
	}
}

func handleSyncPosts(mediaSync *services.MediaSyncService) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID, ok := tenantFromContext(c)
		if !ok {
			return
		}

		ctx, cancel := utils.WithTimeout(c.Request.Context())
		defer cancel()

		media, err := mediaSync.SyncTenantMedia(ctx, tenantID)
		if errors.Is(err, database.ErrNotFound) {
			utils.RespondWithNotFound(c, "Tenant not found")
			return
		}
		if err != nil {
			logger.Error("Post sync failed", "tenant_id", tenantID.Hex(), "error", err)
			utils.RespondWithError(c, http.StatusBadGateway, "sync_failed", "Failed to fetch posts", nil)
			return
		}

		c.JSON(http.StatusOK, gin.H{"posts": media, "count": len(media)})
	}
}

func handleGetAutoReply(store database.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID, ok := tenantFromContext(c)
		if !ok {
			return
		}
		postID, ok := postIDParam(c)
		if !ok {
			return
		}

		state, err := store.GetPostState(c.Request.Context(), tenantID, postID)
		if errors.Is(err, database.ErrNotFound) {
			c.JSON(http.StatusOK, gin.H{"post_id": postID, "auto_reply_enabled": false})
			return
		}
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to load post state", nil)
			return
		}
		c.JSON(http.StatusOK, state)
	}
}

func handleSetAutoReply(store database.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID, ok := tenantFromContext(c)
		if !ok {
			return
		}
		postID, ok := postIDParam(c)
		if !ok {
			return
		}

		var req struct {
			Enabled *bool `json:"enabled" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "enabled is required", gin.H{"error": err.Error()})
			return
		}

		state, err := store.SetPostState(c.Request.Context(), tenantID, postID, *req.Enabled)
		if err != nil {
			logger.Error("Failed to save post state", "tenant_id", tenantID.Hex(), "post_id", postID, "error", err)
			utils.RespondWithInternalError(c, "Failed to save post state", nil)
			return
		}
		c.JSON(http.StatusOK, state)
	}
}

func handleGetContext(store database.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID, ok := tenantFromContext(c)
		if !ok {
			return
		}
		postID, ok := postIDParam(c)
		if !ok {
			return
		}

		pc, err := store.GetPostContext(c.Request.Context(), tenantID, postID)
		if errors.Is(err, database.ErrNotFound) {
			c.JSON(http.StatusOK, gin.H{"post_id": postID, "text": ""})
			return
		}
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to load context", nil)
			return
		}
		c.JSON(http.StatusOK, pc)
	}
}

func handleSetContext(store database.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID, ok := tenantFromContext(c)
		if !ok {
			return
		}
		postID, ok := postIDParam(c)
		if !ok {
			return
		}

		var req struct {
			Text string `json:"text"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid request body", gin.H{"error": err.Error()})
			return
		}

		if err := store.SetPostContext(c.Request.Context(), tenantID, postID, req.Text); err != nil {
			logger.Error("Failed to save context", "tenant_id", tenantID.Hex(), "post_id", postID, "error", err)
			utils.RespondWithInternalError(c, "Failed to save context", nil)
			return
		}
		c.JSON(http.StatusOK, gin.H{"post_id": postID, "text": req.Text})
	}
}

func handleListReplies(store database.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID, ok := tenantFromContext(c)
		if !ok {
			return
		}

		limit := defaultReplyListLimit
		if raw := c.Query("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 {
				utils.RespondWithBadRequest(c, "limit must be a positive integer", nil)
				return
			}
			limit = min(n, maxReplyListLimit)
		}

		replies, err := store.ListReplies(c.Request.Context(), tenantID, int64(limit))
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to list replies", nil)
			return
		}
		c.JSON(http.StatusOK, gin.H{"replies": replies, "count": len(replies)})
	}
}

func handleExportReplies(export *services.ExportService) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID, ok := tenantFromContext(c)
		if !ok {
			return
		}

		data, n, err := export.ExportReplies(c.Request.Context(), tenantID)
		if err != nil {
			logger.Error("Reply export failed", "tenant_id", tenantID.Hex(), "error", err)
			utils.RespondWithInternalError(c, "Failed to export replies", nil)
			return
		}

		filename := fmt.Sprintf("replies_%s.xlsx", time.Now().UTC().Format("20060102_150405"))
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
		c.Header("X-Record-Count", strconv.Itoa(n))
		c.Data(http.StatusOK, services.ExcelContentType, data)
	}
}
