package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/chronicle-ai/chronicle/pkg/models"
)

// ChatRequest is the admin chat body.
type ChatRequest struct {
	Message string                    `json:"message" binding:"required"`
	History []models.ConversationTurn `json:"history"`
}

// ChatResponse is the admin chat reply.
type ChatResponse struct {
	Response  string `json:"response"`
	SessionID string `json:"session_id"`
}

// Chat handles POST /admin/chat: a synchronous query session for the
// admin UI.
func (s *Server) Chat(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sessionID := uuid.NewString()
	answer, err := s.query.Answer(c.Request.Context(), sessionID, req.Message, req.History)
	if err != nil {
		s.logger.Error("Chat session failed", "session_id", sessionID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":      "query session failed",
			"session_id": sessionID,
		})
		return
	}

	c.JSON(http.StatusOK, ChatResponse{
		Response:  answer.Text,
		SessionID: sessionID,
	})
}
