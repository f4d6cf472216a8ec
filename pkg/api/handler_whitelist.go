package api

import (
	"errors"
	"net/http"
	"regexp"

	"github.com/gin-gonic/gin"

	"github.com/chronicle-ai/chronicle/pkg/gate"
	"github.com/chronicle-ai/chronicle/pkg/relational"
)

// e164Re validates canonical identities: + followed by 7 to 15 digits,
// no leading zero.
var e164Re = regexp.MustCompile(`^\+[1-9]\d{6,14}$`)

// WhitelistRequest is the create/update body.
type WhitelistRequest struct {
	PhoneNumber string `json:"phone_number"`
	DisplayName string `json:"display_name"`
	Active      *bool  `json:"active"`
}

// requireWhitelist rejects with 503 when the relational store, and with
// it the whitelist, is disabled.
func (s *Server) requireWhitelist(c *gin.Context) bool {
	if s.whitelist == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "whitelist store unavailable"})
		return false
	}
	return true
}

// ListWhitelist handles GET /admin/whitelist.
func (s *Server) ListWhitelist(c *gin.Context) {
	if !s.requireWhitelist(c) {
		return
	}
	entries, err := s.whitelist.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

// CreateWhitelist handles POST /admin/whitelist. The identity is
// normalized and must be valid E.164.
func (s *Server) CreateWhitelist(c *gin.Context) {
	if !s.requireWhitelist(c) {
		return
	}
	var req WhitelistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	normalized := gate.NormalizePhone(req.PhoneNumber)
	if !e164Re.MatchString(normalized) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "phone_number must be a valid E.164 number"})
		return
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}
	entry, err := s.whitelist.Create(c.Request.Context(), normalized, req.DisplayName, active)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, entry)
}

// UpdateWhitelist handles PUT /admin/whitelist/:id.
func (s *Server) UpdateWhitelist(c *gin.Context) {
	if !s.requireWhitelist(c) {
		return
	}
	var req WhitelistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}
	err := s.whitelist.Update(c.Request.Context(), c.Param("id"), req.DisplayName, active)
	if errors.Is(err, relational.ErrWhitelistNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "whitelist entry not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "updated"})
}

// DeleteWhitelist handles DELETE /admin/whitelist/:id.
func (s *Server) DeleteWhitelist(c *gin.Context) {
	if !s.requireWhitelist(c) {
		return
	}
	err := s.whitelist.Delete(c.Request.Context(), c.Param("id"))
	if errors.Is(err, relational.ErrWhitelistNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "whitelist entry not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}
