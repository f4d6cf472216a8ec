package supervisor

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/chronicle-ai/chronicle/pkg/config"
	"github.com/chronicle-ai/chronicle/pkg/llm"
	"github.com/chronicle-ai/chronicle/pkg/models"
	"github.com/chronicle-ai/chronicle/pkg/telemetry"
)

// Supervisor drives a query session through the state machine:
// Received, Classified, one of Direct/SingleDelegate/Planned,
// Synthesizing, then Done or Failed.
type Supervisor struct {
	llm      llm.Client
	query    *QuerySubAgent
	analysis *AnalysisSubAgent

	maxIterations int
	historyTurns  int
	freshness     time.Duration

	events *telemetry.Log
	logger *slog.Logger

	// now is replaceable in tests.
	now func() time.Time
}

// New wires the supervisor with its sub-agents.
func New(client llm.Client, graph GraphQuerier, search ContentSearcher, schema string,
	cfg *config.SupervisorConfig, events *telemetry.Log) *Supervisor {
	return &Supervisor{
		llm:           client,
		query:         NewQuerySubAgent(client, graph, search, schema, events),
		analysis:      NewAnalysisSubAgent(client),
		maxIterations: cfg.MaxIterations,
		historyTurns:  cfg.HistoryTurns,
		freshness:     time.Duration(cfg.FreshnessDays) * 24 * time.Hour,
		events:        events,
		logger:        slog.Default().With("component", "supervisor"),
		now:           time.Now,
	}
}

// Answer runs one query session end to end and returns the synthesized
// reply. History beyond the configured turn count is dropped; sub-agents
// never see any of it.
func (s *Supervisor) Answer(ctx context.Context, sessionID, question string, history []models.ConversationTurn) (*models.Answer, error) {
	start := time.Now()
	s.events.Append(telemetry.Event{
		SessionID: sessionID,
		Event:     telemetry.EventSessionStart,
		Outcome:   telemetry.OutcomeOK,
	})

	session := newSession(sessionID, question, history, s.maxIterations)
	answer, err := s.run(ctx, session)

	outcome := telemetry.OutcomeOK
	if err != nil {
		outcome = telemetry.OutcomeFailed
	}
	s.events.Append(telemetry.Event{
		SessionID:  sessionID,
		Event:      telemetry.EventSessionEnd,
		DurationMS: time.Since(start).Milliseconds(),
		Outcome:    outcome,
		Payload: map[string]any{
			"mode":       string(session.Mode),
			"rule":       string(session.Rule),
			"iterations": session.Iterations(),
			"truncated":  session.Truncated(),
		},
	})
	return answer, err
}

func (s *Supervisor) run(ctx context.Context, session *Session) (*models.Answer, error) {
	cls := Classify(session.Question)
	session.Spend()
	session.State = models.SessionClassified
	session.Mode = cls.Mode
	session.Rule = cls.Rule
	s.logger.Info("Question classified",
		"session_id", session.ID, "mode", session.Mode, "rule", session.Rule)

	if session.Mode == models.ModeDirect {
		return s.answerDirect(ctx, session)
	}

	session.Plan = BuildPlan(session.Question, cls)
	session.Spend()
	citations := s.executePlan(ctx, session)

	return s.synthesize(ctx, session, citations)
}

// answerDirect handles greetings and identity questions with a single
// completion and no retrieval.
func (s *Supervisor) answerDirect(ctx context.Context, session *Session) (*models.Answer, error) {
	session.Spend()
	completion, err := s.llm.Generate(ctx, &llm.GenerateInput{
		SessionID: session.ID,
		System:    supervisorSystemPrompt,
		Messages: []llm.Message{{
			Role:    llm.RoleUser,
			Content: formatHistory(session.History, s.historyTurns) + "## Question\n\n" + session.Question,
		}},
	})
	if err != nil {
		session.State = models.SessionFailed
		return nil, fmt.Errorf("direct answer: %w", err)
	}
	session.State = models.SessionDone
	return &models.Answer{Text: completion.Text}, nil
}

// executePlan runs items strictly in order. A failed item gets one
// rewritten retry, then is skipped; the plan is never pruned.
func (s *Supervisor) executePlan(ctx context.Context, session *Session) []models.Citation {
	var citations []models.Citation

	for i := range session.Plan {
		if session.Truncated() {
			break
		}
		item := &session.Plan[i]
		item.Status = models.TodoInProgress

		result, err := s.runItem(ctx, session, item.Agent, item.Description)
		if err == nil {
			item.Status = models.TodoCompleted
			item.Summary = result.Summary
			citations = mergeCitations(citations, result.Citations)
			continue
		}

		item.Status = models.TodoFailed
		s.logger.Warn("Plan item failed, retrying with alternative phrasing",
			"session_id", session.ID, "item", item.ID, "error", err)
		if session.Truncated() {
			break
		}

		result, retryErr := s.runItem(ctx, session, item.Agent, rewriteDescription(item.Description))
		if retryErr != nil {
			item.Status = models.TodoSkipped
			item.Summary = "Step skipped: both the original attempt and a rewritten retry failed."
			s.logger.Warn("Plan item skipped after failed retry",
				"session_id", session.ID, "item", item.ID, "error", retryErr)
			continue
		}
		item.Status = models.TodoCompleted
		item.Summary = result.Summary
		citations = mergeCitations(citations, result.Citations)
	}
	return citations
}

func (s *Supervisor) runItem(ctx context.Context, session *Session, agent models.SubAgentKind, description string) (*SubAgentResult, error) {
	switch agent {
	case models.SubAgentAnalysis:
		return s.analysis.Run(ctx, session, description, completedSummaries(session.Plan))
	default:
		return s.query.Run(ctx, session, description)
	}
}

// completedSummaries is the data blob fed to analysis items: every
// completed summary so far, in plan order.
func completedSummaries(plan []models.TodoItem) string {
	var sb strings.Builder
	for _, item := range plan {
		if item.Status != models.TodoCompleted || item.Summary == "" {
			continue
		}
		sb.WriteString(fmt.Sprintf("### %s\n%s\n\n", item.Description, item.Summary))
	}
	if sb.Len() == 0 {
		return "(no prior step produced data)"
	}
	return sb.String()
}

// synthesize produces the final answer from the full plan transcript,
// then appends the contract notes: citations, confidence qualifier,
// confidentiality flag, truncation warning.
func (s *Supervisor) synthesize(ctx context.Context, session *Session, citations []models.Citation) (*models.Answer, error) {
	session.State = models.SessionSynthesizing

	var sb strings.Builder
	sb.WriteString(formatHistory(session.History, s.historyTurns))
	sb.WriteString("## Question\n\n")
	sb.WriteString(session.Question)
	sb.WriteString("\n\n")
	sb.WriteString(formatPlanTranscript(session.Plan))
	sb.WriteString(synthesisInstructions)

	completion, err := s.llm.Generate(ctx, &llm.GenerateInput{
		SessionID: session.ID,
		System:    supervisorSystemPrompt,
		Messages:  []llm.Message{{Role: llm.RoleUser, Content: sb.String()}},
	})
	if err != nil {
		session.State = models.SessionFailed
		return nil, fmt.Errorf("synthesis: %w", err)
	}

	answer := &models.Answer{
		Text:      completion.Text,
		Citations: citations,
		Truncated: session.Truncated(),
	}
	s.appendNotes(answer)
	session.State = models.SessionDone
	return answer, nil
}

// appendNotes applies the synthesis contract to the answer text.
func (s *Supervisor) appendNotes(answer *models.Answer) {
	var notes []string

	if answer.Truncated {
		notes = append(notes,
			"Note: processing hit the session limit, so this answer may be incomplete.")
	}
	if len(answer.Citations) <= 1 {
		notes = append(notes,
			"Confidence note: this answer is based on at most one source and should be verified.")
	} else if newest := newestCitation(answer.Citations); s.now().Sub(newest) > s.freshness {
		notes = append(notes, fmt.Sprintf(
			"Confidence note: the newest cited source is from %s and may be out of date.",
			newest.Format("2006-01-02")))
	}
	for _, c := range answer.Citations {
		if c.Confidentiality == models.ConfidentialityConfidential ||
			c.Confidentiality == models.ConfidentialityRestricted {
			notes = append(notes,
				"Confidentiality note: this answer draws on confidential material; share with care.")
			break
		}
	}

	if len(notes) > 0 {
		answer.Text = answer.Text + "\n\n" + strings.Join(notes, "\n")
	}
}

func newestCitation(citations []models.Citation) time.Time {
	var newest time.Time
	for _, c := range citations {
		if c.Date.After(newest) {
			newest = c.Date
		}
	}
	return newest
}

func mergeCitations(existing, incoming []models.Citation) []models.Citation {
	return dedupCitations(append(existing, incoming...))
}
