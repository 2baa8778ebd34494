package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mikey/opportunity-agent/internal/utils"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestClassifyFallsBackToSecondary(t *testing.T) {
	tests := []struct {
		name    string
		primary *stubProvider
	}{
		{name: "primary errors", primary: &stubProvider{name: "openai", err: errBoom}},
		{name: "primary malformed", primary: &stubProvider{name: "openai", reply: "not json at all"}},
		{name: "primary wrong shape", primary: &stubProvider{name: "openai", reply: `{"score": 9}`}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			secondary := &stubProvider{name: "mistral", reply: classifyReply(9, "RETAINED")}
			cc, _ := newTestChains([]LLMClient{tt.primary, secondary}, nil)

			got := cc.Classify(context.Background(), testOpportunity("1"), testCriteria(7))

			if tt.primary.calls != 1 {
				t.Fatalf("primary called %d times, want 1", tt.primary.calls)
			}
			if secondary.calls != 1 {
				t.Fatalf("secondary called %d times, want 1", secondary.calls)
			}
			if got.Provider != "mistral" || got.Pertinence != 9 || got.Decision != DecisionRetained {
				t.Fatalf("unexpected result: %+v", got)
			}
		})
	}
}

func TestClassifyStopsAtFirstSuccess(t *testing.T) {
	primary := &stubProvider{name: "openai", reply: classifyReply(3, "REJECTED")}
	secondary := &stubProvider{name: "mistral", reply: classifyReply(9, "RETAINED")}
	cc, _ := newTestChains([]LLMClient{primary, secondary}, nil)

	got := cc.Classify(context.Background(), testOpportunity("1"), testCriteria(7))

	if secondary.calls != 0 {
		t.Fatalf("secondary should not be called")
	}
	if got.Provider != "openai" || got.Decision != DecisionRejected {
		t.Fatalf("unexpected result: %+v", got)
	}
	if !primary.lastReq.JSON || primary.lastReq.MaxTokens != 100 {
		t.Fatalf("request options not forwarded: %+v", primary.lastReq)
	}
}

func TestClassifyAllFail(t *testing.T) {
	core, observed := observer.New(zapcore.WarnLevel)
	tp := utils.NewTextProcessor(zap.NewNop())
	cc := NewClassifierChain([]LLMClient{
		&stubProvider{name: "openai", err: errBoom},
		&stubProvider{name: "mistral", reply: "{}"},
	}, GenerationOptions{}, tp, zap.New(core))

	got := cc.Classify(context.Background(), testOpportunity("1"), testCriteria(7))

	want := ErrorResult()
	if got.Pertinence != 0 || got.Decision != DecisionError {
		t.Fatalf("got %+v, want %+v", got, want)
	}
	if len(got.Reasons) != 1 || got.Reasons[0] != TechnicalErrorReason {
		t.Fatalf("unexpected reasons: %q", got.Reasons)
	}
	if got.AttentionPoints == nil || len(got.AttentionPoints) != 0 {
		t.Fatalf("attention points should be an empty list")
	}

	failures := observed.FilterMessage("Classifier attempt failed, trying next provider").All()
	if len(failures) != 2 {
		t.Fatalf("expected 2 failure logs, got %d", len(failures))
	}
	if failures[0].ContextMap()["provider"] != "openai" {
		t.Fatalf("unexpected provider field: %v", failures[0].ContextMap())
	}
}

func TestClassifyProviderErrorIsTyped(t *testing.T) {
	cc, _ := newTestChains(nil, nil)
	out := cc.attempt(context.Background(), &stubProvider{name: "gemini", reply: "nope"}, GenerateRequest{}, testCriteria(7))

	var perr *ProviderError
	if !errors.As(out.Err, &perr) {
		t.Fatalf("expected *ProviderError, got %T", out.Err)
	}
	if perr.Provider != "gemini" || perr.Op != "classify" {
		t.Fatalf("unexpected error fields: %+v", perr)
	}
}

func TestClassifyStrictPolicyFallsThrough(t *testing.T) {
	primary := &stubProvider{name: "openai", reply: classifyReply(9, "REJECTED")}
	secondary := &stubProvider{name: "mistral", reply: classifyReply(9, "RETAINED")}
	cc, _ := newTestChains([]LLMClient{primary, secondary}, nil)

	criteria := testCriteria(7)
	criteria.Policy = PolicyStrict
	got := cc.Classify(context.Background(), testOpportunity("1"), criteria)

	if got.Provider != "mistral" {
		t.Fatalf("inconsistent reply should fall through to the next provider, got %+v", got)
	}
}

func TestClassifyAppliesTimeout(t *testing.T) {
	p := &stubProvider{name: "openai", reply: classifyReply(5, "REJECTED")}
	cc := NewClassifierChain([]LLMClient{p}, GenerationOptions{Timeout: time.Second}, utils.NewTextProcessor(nil), zap.NewNop())

	cc.Classify(context.Background(), testOpportunity("1"), testCriteria(7))

	if !p.hasDeadline {
		t.Fatalf("provider call should carry a deadline")
	}
}

func TestDraft(t *testing.T) {
	t.Run("uses provider draft", func(t *testing.T) {
		_, rc := newTestChains(nil, []LLMClient{&stubProvider{name: "openai", reply: draftReply}})
		got := rc.Draft(context.Background(), testOpportunity("1"), testCriteria(7), "Configured")
		if got.Subject != "Your API project" || got.Signature != "Jane" || got.Provider != "openai" {
			t.Fatalf("unexpected draft: %+v", got)
		}
		if got.FullBody() != "Hello,\n\nLet's talk.\n\nJane" {
			t.Fatalf("unexpected body: %q", got.FullBody())
		}
	})

	t.Run("empty signature replaced", func(t *testing.T) {
		_, rc := newTestChains(nil, []LLMClient{&stubProvider{name: "openai", reply: `{"objet": "s", "message": "m", "signature": ""}`}})
		got := rc.Draft(context.Background(), testOpportunity("1"), testCriteria(7), "Configured")
		if got.Signature != "Configured" {
			t.Fatalf("got signature %q", got.Signature)
		}
	})

	t.Run("fallback template", func(t *testing.T) {
		primary := &stubProvider{name: "openai", err: errBoom}
		secondary := &stubProvider{name: "mistral", reply: `{"objet": "s"}`}
		_, rc := newTestChains(nil, []LLMClient{primary, secondary})
		got := rc.Draft(context.Background(), testOpportunity("1"), testCriteria(7), "Configured")

		if primary.calls != 1 || secondary.calls != 1 {
			t.Fatalf("each provider should be tried once")
		}
		if got.Subject != "Automatic reply" || got.Message != "Thanks, I will get back to you." || got.Signature != "Configured" {
			t.Fatalf("unexpected fallback: %+v", got)
		}
		if got.Provider != "" {
			t.Fatalf("fallback should have no provider")
		}
	})
}

func TestReplySubject(t *testing.T) {
	tests := map[string]string{
		"Mission":         "Re: Mission",
		"Re: Mission":     "Re: Mission",
		"RE : Mission":    "RE : Mission",
		"  spaced title ": "Re: spaced title",
	}
	for in, want := range tests {
		if got := replySubject(in); got != want {
			t.Errorf("replySubject(%q) = %q, want %q", in, got, want)
		}
	}
}
