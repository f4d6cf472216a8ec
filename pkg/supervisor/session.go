package supervisor

import (
	"github.com/chronicle-ai/chronicle/pkg/models"
)

// Session tracks one query through the state machine. Each tool call,
// sub-agent round-trip, and planning update spends one iteration from
// the shared budget; when the budget runs out the supervisor
// synthesizes whatever it has and flags the answer as truncated.
type Session struct {
	ID       string
	State    models.SessionState
	Mode     models.QueryMode
	Rule     Rule
	Question string
	History  []models.ConversationTurn
	Plan     []models.TodoItem

	iterations    int
	maxIterations int
	truncated     bool
}

func newSession(id, question string, history []models.ConversationTurn, maxIterations int) *Session {
	return &Session{
		ID:            id,
		State:         models.SessionReceived,
		Question:      question,
		History:       history,
		maxIterations: maxIterations,
	}
}

// Spend consumes one iteration. It returns false once the cap is
// reached; the first refusal marks the session truncated.
func (s *Session) Spend() bool {
	if s.iterations >= s.maxIterations {
		s.truncated = true
		return false
	}
	s.iterations++
	return true
}

// Iterations returns the number of iterations spent so far.
func (s *Session) Iterations() int { return s.iterations }

// Truncated reports whether the iteration cap was hit.
func (s *Session) Truncated() bool { return s.truncated }

// markTruncated records an externally observed truncation, e.g. a
// sub-agent that ran out of budget mid-loop.
func (s *Session) markTruncated() { s.truncated = true }
