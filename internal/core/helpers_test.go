package core

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/mikey/opportunity-agent/internal/utils"
	"go.uber.org/zap"
)

type stubProvider struct {
	name        string
	reply       string
	err         error
	calls       int
	hasDeadline bool
	lastReq     GenerateRequest
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	s.calls++
	s.lastReq = req
	_, s.hasDeadline = ctx.Deadline()
	return s.reply, s.err
}

func classifyReply(pertinence int, decision string) string {
	return fmt.Sprintf(`{"pertinence": %d, "decision": %q, "raisons": ["reason one"], "points_attention": []}`, pertinence, decision)
}

const draftReply = `{"objet": "Your API project", "message": "Hello,\n\nLet's talk.", "signature": "Jane"}`

type stubSource struct {
	opportunities []*Opportunity
	err           error
	modes         []FetchMode
}

func (s *stubSource) Fetch(_ context.Context, mode FetchMode) ([]*Opportunity, error) {
	s.modes = append(s.modes, mode)
	return s.opportunities, s.err
}

type sentMessage struct {
	to, subject, body, inReplyTo string
}

type stubDispatcher struct {
	sent []sentMessage
	err  error
}

func (d *stubDispatcher) Send(_ context.Context, to, subject, body, inReplyTo string) error {
	d.sent = append(d.sent, sentMessage{to, subject, body, inReplyTo})
	if d.err != nil {
		return &SendError{Recipient: to, Err: d.err}
	}
	return nil
}

type stubLog struct {
	mu        sync.Mutex
	entries   []LogEntry
	appendErr error
	loadErr   error
}

func (l *stubLog) Append(_ context.Context, e LogEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.appendErr != nil {
		return &PersistenceError{Op: "append", Path: "stub", Err: l.appendErr}
	}
	l.entries = append(l.entries, e)
	return nil
}

func (l *stubLog) Load(context.Context) ([]LogEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.loadErr != nil {
		return nil, l.loadErr
	}
	return append([]LogEntry(nil), l.entries...), nil
}

type stubNotifier struct {
	notified []string
	err      error
}

func (n *stubNotifier) NotifyOpportunity(_ context.Context, opp *Opportunity, _ AnalysisResult) error {
	n.notified = append(n.notified, opp.ID)
	return n.err
}

type ignoreAll map[string]bool

func (i ignoreAll) IsIgnored(address string) bool { return i[address] }

var errBoom = errors.New("boom")

func testCriteria(threshold int) Criteria {
	return Criteria{
		BudgetMin:          500,
		DurationMax:        30,
		Language:           "English",
		WorkMode:           "full remote",
		RelevanceThreshold: threshold,
		Policy:             PolicyThreshold,
	}
}

func newTestChains(classifiers, drafters []LLMClient) (*ClassifierChain, *ResponseChain) {
	tp := utils.NewTextProcessor(zap.NewNop())
	opts := GenerationOptions{MaxTokens: 100, MaxBodySize: 1000}
	cc := NewClassifierChain(classifiers, opts, tp, zap.NewNop())
	rc := NewResponseChain(drafters, opts, FallbackDraft{Subject: "Automatic reply", Message: "Thanks, I will get back to you."}, tp, zap.NewNop())
	return cc, rc
}

func testOpportunity(id string) *Opportunity {
	return &Opportunity{
		ID:            id,
		MessageID:     "msg-" + id + "@example.com",
		Subject:       "Backend API mission",
		Sender:        "Client <client@example.com>",
		SenderAddress: "client@example.com",
		Body:          "We need a Python API developer, budget 5000 EUR.",
	}
}
