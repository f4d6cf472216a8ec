package messaging

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/chronicle-ai/chronicle/pkg/config"
	"github.com/chronicle-ai/chronicle/pkg/gate"
	"github.com/chronicle-ai/chronicle/pkg/models"
	"github.com/chronicle-ai/chronicle/pkg/telemetry"
)

// User-visible reply strings.
const (
	refusalReply = "Sorry, this number is not authorized to use the assistant."
	helpReply    = "Ask me about the organization's meetings, documents, decisions, and action items. Reply STOP to opt out."
	startReply   = "You are opted in. Ask me anything about the organization's knowledge base."
	stopReply    = "You are opted out. Reply START to opt back in."
	failureReply = "Sorry, I could not answer that right now. Please try again later."
)

// historyCap bounds the per-sender conversation memory.
const historyCap = 20

// Answerer runs one query session; satisfied by supervisor.Supervisor.
type Answerer interface {
	Answer(ctx context.Context, sessionID, question string, history []models.ConversationTurn) (*models.Answer, error)
}

// Authorizer gates inbound sender identities; satisfied by gate.Gate.
type Authorizer interface {
	IsAuthorized(ctx context.Context, identity string) bool
}

// Inbound is one webhook message after form decoding.
type Inbound struct {
	From        string
	Body        string
	ProfileName string
	// Direct is true for one-to-one channels; group messages require a
	// trigger token.
	Direct bool
}

// Service processes inbound messages asynchronously: the webhook
// handler returns immediately and the reply goes out through the
// provider once the supervisor finishes.
type Service struct {
	answerer Answerer
	gate     Authorizer
	sender   Sender
	tokens   []string
	events   *telemetry.Log
	logger   *slog.Logger

	wg sync.WaitGroup

	mu      sync.Mutex
	history map[string][]models.ConversationTurn
}

// NewService wires the messaging pipeline.
func NewService(answerer Answerer, authorizer Authorizer, sender Sender, cfg *config.MessagingConfig, events *telemetry.Log) *Service {
	return &Service{
		answerer: answerer,
		gate:     authorizer,
		sender:   sender,
		tokens:   cfg.TriggerTokens,
		events:   events,
		logger:   slog.Default().With("component", "messaging"),
		history:  make(map[string][]models.ConversationTurn),
	}
}

// HandleInbound accepts one message and processes it in the background.
// It never blocks on the supervisor; the webhook handler can return 200
// right away.
func (s *Service) HandleInbound(ctx context.Context, msg Inbound) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.process(ctx, msg)
	}()
}

// Stop waits for in-flight messages to finish.
func (s *Service) Stop() {
	s.wg.Wait()
}

func (s *Service) process(ctx context.Context, msg Inbound) {
	if word, ok := controlWord(msg.Body); ok {
		s.reply(msg.From, controlReply(word))
		return
	}
	if !shouldProcess(msg.Body, msg.Direct, s.tokens) {
		s.logger.Debug("Dropping untriggered group message", "from", gate.NormalizePhone(msg.From))
		return
	}

	if !s.gate.IsAuthorized(ctx, msg.From) {
		s.reply(msg.From, refusalReply)
		return
	}

	sessionID := uuid.NewString()
	question := stripTriggers(msg.Body, s.tokens)
	s.events.Append(telemetry.Event{
		SessionID: sessionID,
		Event:     telemetry.EventQueryAttempt,
		Outcome:   telemetry.OutcomeOK,
		Payload:   map[string]any{"channel": "messaging"},
	})

	answer, err := s.answerer.Answer(ctx, sessionID, question, s.historyFor(msg.From))
	if err != nil {
		s.logger.Error("Query session failed", "session_id", sessionID, "error", err)
		s.reply(msg.From, failureReply)
		return
	}

	s.remember(msg.From, question, answer.Text)
	s.reply(msg.From, answer.Text)
}

func (s *Service) reply(to, body string) {
	if err := s.sender.Send(to, body); err != nil {
		s.logger.Error("Reply delivery failed", "error", err)
	}
}

func controlReply(word string) string {
	switch word {
	case ControlStart:
		return startReply
	case ControlStop:
		return stopReply
	default:
		return helpReply
	}
}

func (s *Service) historyFor(from string) []models.ConversationTurn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.ConversationTurn(nil), s.history[gate.NormalizePhone(from)]...)
}

func (s *Service) remember(from, question, answer string) {
	key := gate.NormalizePhone(from)
	now := time.Now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()
	turns := append(s.history[key],
		models.ConversationTurn{Role: "user", Content: question, Timestamp: now},
		models.ConversationTurn{Role: "assistant", Content: answer, Timestamp: now},
	)
	if len(turns) > historyCap {
		turns = turns[len(turns)-historyCap:]
	}
	s.history[key] = turns
}
