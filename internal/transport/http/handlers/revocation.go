package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/arklim/social-platform-revocation/internal/core/domain"
	"github.com/arklim/social-platform-revocation/internal/usecase"
)

// RevocationHandler exposes the operational revocation endpoints.
type RevocationHandler struct {
	service *usecase.RevocationService
}

// NewRevocationHandler builds a handler around the coordinator.
func NewRevocationHandler(service *usecase.RevocationService) *RevocationHandler {
	return &RevocationHandler{service: service}
}

// RegisterRoutes binds revocation endpoints.
func (h *RevocationHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/revocations", h.Revoke)
	r.GET("/revocations/check", h.Check)
	r.GET("/revocations/stats", h.Stats)
	r.POST("/revocations/cleanup", h.Cleanup)
}

// RevokeRequest accepts a credential, a bare identifier, or a user scope.
type RevokeRequest struct {
	Credential string         `json:"credential"`
	JTI        string         `json:"jti"`
	UserID     string         `json:"user_id"`
	Reason     string         `json:"reason" binding:"required"`
	TTLSeconds int64          `json:"ttl_seconds"`
	Metadata   map[string]any `json:"metadata"`
}

// Revoke records a token- or user-scoped revocation.
func (h *RevocationHandler) Revoke(c *gin.Context) {
	var req RevokeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	reason, err := domain.ParseReason(req.Reason)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	ctx := c.Request.Context()
	switch {
	case req.Credential != "":
		err = h.service.Revoke(ctx, req.Credential, usecase.RevokeOptions{
			Reason:   reason,
			TTL:      time.Duration(req.TTLSeconds) * time.Second,
			UserID:   req.UserID,
			Metadata: req.Metadata,
		})
	case req.JTI != "":
		err = h.service.RevokeByIdentifier(ctx, req.JTI, usecase.RevokeOptions{
			Reason:   reason,
			TTL:      time.Duration(req.TTLSeconds) * time.Second,
			UserID:   req.UserID,
			Metadata: req.Metadata,
		})
	case req.UserID != "":
		err = h.service.RevokeAllForUser(ctx, req.UserID, usecase.MassRevokeOptions{
			Reason:   reason,
			Metadata: req.Metadata,
		})
	default:
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "one of credential, jti, or user_id is required"})
		return
	}

	if err != nil {
		if errors.Is(err, domain.ErrInvalidReason) {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
			return
		}
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "revocation did not take effect"})
		return
	}

	c.JSON(http.StatusAccepted, RevokeResponse{Status: "revoked"})
}

// Check reports whether a credential or identifier is revoked.
func (h *RevocationHandler) Check(c *gin.Context) {
	ctx := c.Request.Context()

	if jti := c.Query("jti"); jti != "" {
		c.JSON(http.StatusOK, CheckResponse{Revoked: h.service.IsRevokedByIdentifier(ctx, jti)})
		return
	}

	credential := c.Query("credential")
	if credential == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "credential or jti query parameter is required"})
		return
	}

	checkUserMarker := c.DefaultQuery("check_user_marker", "true") != "false"
	c.JSON(http.StatusOK, CheckResponse{Revoked: h.service.IsRevoked(ctx, credential, checkUserMarker)})
}

// Stats returns the coordinator's operational counters.
func (h *RevocationHandler) Stats(c *gin.Context) {
	stats := h.service.Stats()
	resp := StatsResponse{
		RevocationCount:    stats.RevocationCount,
		UptimeSeconds:      int64(stats.Uptime.Seconds()),
		MembershipTierSize: stats.MembershipTierSize,
	}
	if !stats.LastCleanup.IsZero() {
		resp.LastCleanup = &stats.LastCleanup
	}
	c.JSON(http.StatusOK, resp)
}

// Cleanup triggers a manual membership-tier sweep.
func (h *RevocationHandler) Cleanup(c *gin.Context) {
	removed, err := h.service.Cleanup(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "cleanup failed"})
		return
	}
	c.JSON(http.StatusOK, CleanupResponse{Removed: removed})
}
