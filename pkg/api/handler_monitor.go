package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
)

// MonitorStatus handles GET /monitor/status.
func (s *Server) MonitorStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.monitor.Status())
}

// MonitorTrigger handles POST /monitor/trigger: forces an immediate
// scan without waiting out the poll interval.
func (s *Server) MonitorTrigger(c *gin.Context) {
	s.monitor.TriggerNow()
	c.JSON(http.StatusAccepted, gin.H{"status": "scan triggered"})
}

// MonitorStart handles POST /monitor/start.
func (s *Server) MonitorStart(c *gin.Context) {
	// The monitor loop outlives the request.
	s.monitor.Start(context.Background())
	c.JSON(http.StatusOK, gin.H{"status": "started"})
}

// MonitorStop handles POST /monitor/stop. Blocks up to the grace
// deadline while in-flight ingests finish.
func (s *Server) MonitorStop(c *gin.Context) {
	s.monitor.Stop()
	c.JSON(http.StatusOK, gin.H{"status": "stopped"})
}
