package messaging

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chronicle-ai/chronicle/pkg/config"
	"github.com/chronicle-ai/chronicle/pkg/models"
	"github.com/chronicle-ai/chronicle/pkg/telemetry"
)

type fakeSender struct {
	mu       sync.Mutex
	messages []string
	to       []string
}

func (f *fakeSender) Send(to, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.to = append(f.to, to)
	f.messages = append(f.messages, body)
	return nil
}

func (f *fakeSender) sent() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.messages...)
}

type fakeAnswerer struct {
	mu        sync.Mutex
	questions []string
	histories [][]models.ConversationTurn
	answer    *models.Answer
	err       error
}

func (f *fakeAnswerer) Answer(_ context.Context, _ string, question string, history []models.ConversationTurn) (*models.Answer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.questions = append(f.questions, question)
	f.histories = append(f.histories, history)
	if f.err != nil {
		return nil, f.err
	}
	return f.answer, nil
}

type allowAll struct{ allow bool }

func (a allowAll) IsAuthorized(context.Context, string) bool { return a.allow }

func testService(t *testing.T, answerer Answerer, auth Authorizer, sender Sender) *Service {
	t.Helper()
	events, err := telemetry.NewLog(t.TempDir(), 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = events.Close() })
	return NewService(answerer, auth, sender, &config.MessagingConfig{
		TriggerTokens: []string{"@agent", "@bot", "hey agent"},
	}, events)
}

func TestService_AnswersAuthorizedDirectMessage(t *testing.T) {
	sender := &fakeSender{}
	answerer := &fakeAnswerer{answer: &models.Answer{Text: "The decision was made on Oct 8."}}
	s := testService(t, answerer, allowAll{true}, sender)

	s.HandleInbound(context.Background(), Inbound{
		From: "+15551234567", Body: "What was decided?", Direct: true,
	})
	s.Stop()

	require.Equal(t, []string{"The decision was made on Oct 8."}, sender.sent())
	assert.Equal(t, []string{"What was decided?"}, answerer.questions)
}

func TestService_RefusesUnauthorizedSender(t *testing.T) {
	sender := &fakeSender{}
	answerer := &fakeAnswerer{answer: &models.Answer{Text: "never"}}
	s := testService(t, answerer, allowAll{false}, sender)

	s.HandleInbound(context.Background(), Inbound{
		From: "+15551234567", Body: "@agent hello", Direct: true,
	})
	s.Stop()

	require.Equal(t, []string{refusalReply}, sender.sent())
	assert.Empty(t, answerer.questions)
}

func TestService_DropsUntriggeredGroupMessage(t *testing.T) {
	sender := &fakeSender{}
	answerer := &fakeAnswerer{answer: &models.Answer{Text: "never"}}
	s := testService(t, answerer, allowAll{true}, sender)

	s.HandleInbound(context.Background(), Inbound{
		From: "+15551234567", Body: "random group chatter", Direct: false,
	})
	s.Stop()

	assert.Empty(t, sender.sent())
	assert.Empty(t, answerer.questions)
}

func TestService_TriggeredGroupMessageIsProcessed(t *testing.T) {
	sender := &fakeSender{}
	answerer := &fakeAnswerer{answer: &models.Answer{Text: "reply"}}
	s := testService(t, answerer, allowAll{true}, sender)

	s.HandleInbound(context.Background(), Inbound{
		From: "+15551234567", Body: "hey agent what was decided?", Direct: false,
	})
	s.Stop()

	require.Equal(t, []string{"reply"}, sender.sent())
	// The trigger token is stripped before the supervisor sees it.
	assert.Equal(t, []string{"what was decided?"}, answerer.questions)
}

func TestService_ControlWordsAreLocal(t *testing.T) {
	tests := []struct {
		body string
		want string
	}{
		{"HELP", helpReply},
		{"help", helpReply},
		{" stop ", stopReply},
		{"START", startReply},
	}
	for _, tt := range tests {
		sender := &fakeSender{}
		answerer := &fakeAnswerer{answer: &models.Answer{Text: "never"}}
		s := testService(t, answerer, allowAll{true}, sender)

		s.HandleInbound(context.Background(), Inbound{
			From: "+15551234567", Body: tt.body, Direct: true,
		})
		s.Stop()

		require.Equal(t, []string{tt.want}, sender.sent(), "body %q", tt.body)
		assert.Empty(t, answerer.questions)
	}
}

func TestService_FailureProducesErrorReply(t *testing.T) {
	sender := &fakeSender{}
	answerer := &fakeAnswerer{err: errors.New("session failed")}
	s := testService(t, answerer, allowAll{true}, sender)

	s.HandleInbound(context.Background(), Inbound{
		From: "+15551234567", Body: "@agent hello", Direct: true,
	})
	s.Stop()

	require.Equal(t, []string{failureReply}, sender.sent())
}

func TestService_HistoryIsPerSenderAndBounded(t *testing.T) {
	sender := &fakeSender{}
	answerer := &fakeAnswerer{answer: &models.Answer{Text: "ok"}}
	s := testService(t, answerer, allowAll{true}, sender)

	for i := 0; i < historyCap; i++ {
		s.HandleInbound(context.Background(), Inbound{
			From: "+15551234567", Body: "question", Direct: true,
		})
		s.Stop()
	}
	s.HandleInbound(context.Background(), Inbound{
		From: "+1 555 123 4567", Body: "same sender, different formatting", Direct: true,
	})
	s.Stop()

	last := answerer.histories[len(answerer.histories)-1]
	assert.Len(t, last, historyCap)

	// A different sender starts fresh.
	s.HandleInbound(context.Background(), Inbound{
		From: "+15559999999", Body: "new sender", Direct: true,
	})
	s.Stop()
	assert.Empty(t, answerer.histories[len(answerer.histories)-1])
}

func TestShouldProcess(t *testing.T) {
	tokens := []string{"@agent", "hey agent"}
	assert.True(t, shouldProcess("anything", true, tokens))
	assert.True(t, shouldProcess("@AGENT do it", false, tokens))
	assert.False(t, shouldProcess("no trigger here", false, tokens))
}
