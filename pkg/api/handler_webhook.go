package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/chronicle-ai/chronicle/pkg/messaging"
)

// Webhook handles POST /messaging/webhook. The provider posts a
// form-encoded body; the handler always acknowledges with 200
// immediately and processing continues asynchronously. A group channel
// is indicated by a non-empty ChannelSid field.
func (s *Server) Webhook(c *gin.Context) {
	msg := messaging.Inbound{
		From:        c.PostForm("From"),
		Body:        c.PostForm("Body"),
		ProfileName: c.PostForm("ProfileName"),
		Direct:      c.PostForm("ChannelSid") == "",
	}
	if msg.From == "" || msg.Body == "" {
		// Malformed provider callback; still acknowledged so the
		// provider does not retry forever.
		s.logger.Warn("Webhook missing From or Body")
		c.Status(http.StatusOK)
		return
	}

	// Processing outlives the request; the provider only needs the ack.
	s.inbound.HandleInbound(context.Background(), msg)
	c.Status(http.StatusOK)
}
