package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const healthCheckTimeout = 5 * time.Second

// ServiceHealth is one dependency's probe result.
type ServiceHealth struct {
	Status    string `json:"status"`
	LatencyMS int64  `json:"latency_ms"`
	Error     string `json:"error,omitempty"`
}

// Health handles GET /health: per-dependency status with latency, plus
// the monitor's counters.
func (s *Server) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
	defer cancel()

	services := gin.H{
		"graph":      probe(ctx, s.graph),
		"llm":        probe(ctx, s.llm),
		"relational": s.relationalHealth(ctx),
	}
	if s.monitor != nil {
		services["monitor"] = s.monitor.Status()
	}

	status := http.StatusOK
	overall := "healthy"
	for _, v := range services {
		if sh, ok := v.(ServiceHealth); ok && sh.Status == "unhealthy" {
			status = http.StatusServiceUnavailable
			overall = "degraded"
		}
	}

	c.JSON(status, gin.H{"status": overall, "services": services})
}

func probe(ctx context.Context, p Pinger) ServiceHealth {
	if p == nil {
		return ServiceHealth{Status: "disabled"}
	}
	start := time.Now()
	if err := p.Ping(ctx); err != nil {
		return ServiceHealth{
			Status:    "unhealthy",
			LatencyMS: time.Since(start).Milliseconds(),
			Error:     err.Error(),
		}
	}
	return ServiceHealth{Status: "healthy", LatencyMS: time.Since(start).Milliseconds()}
}

func (s *Server) relationalHealth(ctx context.Context) ServiceHealth {
	if s.relational == nil {
		return ServiceHealth{Status: "disabled"}
	}
	start := time.Now()
	if _, err := s.relational.Health(ctx); err != nil {
		return ServiceHealth{
			Status:    "unhealthy",
			LatencyMS: time.Since(start).Milliseconds(),
			Error:     err.Error(),
		}
	}
	return ServiceHealth{Status: "healthy", LatencyMS: time.Since(start).Milliseconds()}
}
