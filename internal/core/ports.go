package core

import (
	"context"
)

// GenerateRequest is a single prompt sent to a language model
type GenerateRequest struct {
	System      string
	Prompt      string
	MaxTokens   int
	Temperature float32
	// JSON asks the provider to constrain its output to a JSON object
	JSON bool
}

// LLMClient defines the interface for interacting with LLM services
type LLMClient interface {
	// Name identifies the provider in logs and decision entries
	Name() string

	// Generate returns the raw text completion for the request
	Generate(ctx context.Context, req GenerateRequest) (string, error)
}

// MailboxSource lists and parses candidate messages
type MailboxSource interface {
	Fetch(ctx context.Context, mode FetchMode) ([]*Opportunity, error)
}

// Dispatcher sends a reply threaded to the original message
type Dispatcher interface {
	// Send returns a *SendError when the message could not be delivered
	Send(ctx context.Context, to, subject, body, inReplyTo string) error
}

// DecisionLog persists processed opportunities in processing order
type DecisionLog interface {
	Append(ctx context.Context, entry LogEntry) error
	Load(ctx context.Context) ([]LogEntry, error)
}

// Notifier forwards high-score opportunities to a human
type Notifier interface {
	NotifyOpportunity(ctx context.Context, opp *Opportunity, result AnalysisResult) error
}

// Reporter sends the periodic activity report
type Reporter interface {
	SendDailyReport(ctx context.Context) error
}

// SenderFilter decides whether a sender is never processed
type SenderFilter interface {
	IsIgnored(address string) bool
}

// NoopNotifier is the notifier used when no alerting channel is configured
type NoopNotifier struct{}

// NotifyOpportunity does nothing
func (NoopNotifier) NotifyOpportunity(context.Context, *Opportunity, AnalysisResult) error {
	return nil
}
