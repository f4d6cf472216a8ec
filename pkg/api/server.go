// Package api exposes the inbound HTTP surface: the messaging webhook,
// the admin chat endpoint, health, whitelist CRUD, and the monitor
// control plane.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/chronicle-ai/chronicle/pkg/messaging"
	"github.com/chronicle-ai/chronicle/pkg/models"
	"github.com/chronicle-ai/chronicle/pkg/monitor"
	"github.com/chronicle-ai/chronicle/pkg/relational"
)

// QueryService runs one query session; satisfied by
// supervisor.Supervisor.
type QueryService interface {
	Answer(ctx context.Context, sessionID, question string, history []models.ConversationTurn) (*models.Answer, error)
}

// InboundProcessor accepts webhook messages for asynchronous handling;
// satisfied by messaging.Service.
type InboundProcessor interface {
	HandleInbound(ctx context.Context, msg messaging.Inbound)
}

// MonitorControl is the monitor's control plane; satisfied by
// monitor.Monitor.
type MonitorControl interface {
	Status() monitor.Status
	TriggerNow()
	Start(ctx context.Context)
	Stop()
}

// Pinger is a reachability check on an external dependency.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RelationalHealth reports pool health; satisfied by relational.Client.
type RelationalHealth interface {
	Health(ctx context.Context) (*relational.HealthStatus, error)
}

// WhitelistStore is the CRUD surface behind the admin endpoints;
// satisfied by relational.WhitelistStore.
type WhitelistStore interface {
	List(ctx context.Context) ([]models.WhitelistEntry, error)
	Create(ctx context.Context, phoneNumber, displayName string, active bool) (*models.WhitelistEntry, error)
	Update(ctx context.Context, id, displayName string, active bool) error
	Delete(ctx context.Context, id string) error
}

// Server is the HTTP server with its wired dependencies.
type Server struct {
	query      QueryService
	inbound    InboundProcessor
	monitor    MonitorControl
	graph      Pinger
	llm        Pinger
	relational RelationalHealth
	whitelist  WhitelistStore
	logger     *slog.Logger

	httpSrv *http.Server
}

// Deps carries everything the server needs. Optional fields may be nil;
// the matching endpoints then report unavailable.
type Deps struct {
	Query      QueryService
	Inbound    InboundProcessor
	Monitor    MonitorControl
	Graph      Pinger
	LLM        Pinger
	Relational RelationalHealth
	Whitelist  WhitelistStore
}

// NewServer builds the server and its routes.
func NewServer(deps Deps) *Server {
	s := &Server{
		query:      deps.Query,
		inbound:    deps.Inbound,
		monitor:    deps.Monitor,
		graph:      deps.Graph,
		llm:        deps.LLM,
		relational: deps.Relational,
		whitelist:  deps.Whitelist,
		logger:     slog.Default().With("component", "api"),
	}
	return s
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(s.logger))

	r.GET("/health", s.Health)
	r.POST("/messaging/webhook", s.Webhook)

	admin := r.Group("/admin")
	{
		admin.POST("/chat", s.Chat)
		admin.GET("/whitelist", s.ListWhitelist)
		admin.POST("/whitelist", s.CreateWhitelist)
		admin.PUT("/whitelist/:id", s.UpdateWhitelist)
		admin.DELETE("/whitelist/:id", s.DeleteWhitelist)
	}

	mon := r.Group("/monitor")
	{
		mon.GET("/status", s.MonitorStatus)
		mon.POST("/trigger", s.MonitorTrigger)
		mon.POST("/start", s.MonitorStart)
		mon.POST("/stop", s.MonitorStop)
	}
	return r
}

// Start begins serving on addr. Blocks until the listener closes.
func (s *Server) Start(addr string) error {
	s.httpSrv = &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("HTTP server listening", "addr", addr)
	if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}
