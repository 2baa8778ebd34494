package core

import (
	"strings"
	"time"
)

// NotifyThreshold is the pertinence at or above which an opportunity is
// forwarded to the notifier, regardless of the relevance threshold.
const NotifyThreshold = 8

// TechnicalErrorReason is recorded when no classifier could produce a result.
const TechnicalErrorReason = "technical error"

// FetchMode selects which messages the mailbox source returns
type FetchMode int

const (
	// FetchIncremental returns unread messages only
	FetchIncremental FetchMode = iota
	// FetchBulk returns the most recent messages regardless of read state
	FetchBulk
)

func (m FetchMode) String() string {
	if m == FetchBulk {
		return "bulk"
	}
	return "incremental"
}

// Opportunity is one inbound candidate message
type Opportunity struct {
	ID            string
	MessageID     string
	Subject       string
	Sender        string
	SenderAddress string
	ReceivedAt    time.Time
	Body          string
	Snippet       string
}

// Criteria describes what the freelancer is looking for
type Criteria struct {
	BudgetMin          int
	DurationMax        int
	Language           string
	WorkMode           string
	KeywordsToAvoid    []string
	RelevanceThreshold int
	Profile            string
	Policy             DecisionPolicy
}

// Decision is the outcome of classifying an opportunity
type Decision string

const (
	DecisionRetained Decision = "RETAINED"
	DecisionRejected Decision = "REJECTED"
	DecisionError    Decision = "ERROR"
)

// DecisionPolicy controls how the provider's decision string and the
// local threshold comparison are reconciled.
type DecisionPolicy string

const (
	// PolicyThreshold recomputes the decision from pertinence and flags disagreement
	PolicyThreshold DecisionPolicy = "threshold"
	// PolicyProvider trusts the provider's decision string
	PolicyProvider DecisionPolicy = "provider"
	// PolicyStrict treats disagreement as a failed provider attempt
	PolicyStrict DecisionPolicy = "strict"
)

// Valid reports whether p is a known policy
func (p DecisionPolicy) Valid() bool {
	switch p {
	case PolicyThreshold, PolicyProvider, PolicyStrict:
		return true
	}
	return false
}

// AnalysisResult is the structured score produced by the classifier chain
type AnalysisResult struct {
	Pertinence      int
	Decision        Decision
	Reasons         []string
	AttentionPoints []string
	Provider        string
}

// ErrorResult is the result recorded when every classifier failed
func ErrorResult() AnalysisResult {
	return AnalysisResult{
		Pertinence:      0,
		Decision:        DecisionError,
		Reasons:         []string{TechnicalErrorReason},
		AttentionPoints: []string{},
	}
}

// ResponseDraft is a reply proposed by the response chain
type ResponseDraft struct {
	Subject   string
	Message   string
	Signature string
	Provider  string
}

// FullBody joins the message and the signature
func (d ResponseDraft) FullBody() string {
	if strings.TrimSpace(d.Signature) == "" {
		return d.Message
	}
	return d.Message + "\n\n" + d.Signature
}

// Action is the terminal outcome recorded for an opportunity
type Action string

const (
	ActionResponseSent Action = "RESPONSE_SENT"
	ActionSendError    Action = "SEND_ERROR"
	ActionRejected     Action = "REJECTED"
)

// LogEntry is one persisted decision
type LogEntry struct {
	Timestamp       time.Time `json:"timestamp"`
	OpportunityID   string    `json:"opportunity_id"`
	MessageID       string    `json:"message_id,omitempty"`
	Subject         string    `json:"subject"`
	Sender          string    `json:"sender"`
	Pertinence      int       `json:"pertinence"`
	Decision        Decision  `json:"decision"`
	Action          Action    `json:"action"`
	Reasons         []string  `json:"reasons"`
	AttentionPoints []string  `json:"attention_points,omitempty"`
	Provider        string    `json:"provider,omitempty"`
}
