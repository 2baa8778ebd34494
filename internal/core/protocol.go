package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// DisagreementNote is added to the attention points when the provider's
// decision contradicts its own score under the threshold policy.
const DisagreementNote = "provider decision disagreed with score"

const classifySystem = "You triage freelance missions. Respond only with a JSON object."

const classifyPromptFormat = `You are an assistant that triages incoming missions for a %s.

Analyse the opportunity below and answer three questions.

1. Does the mission match these criteria?
   - Minimum budget: %d EUR
   - Maximum duration: %d days
   - Language: %s
   - Keywords to avoid: %s
   - Work mode: %s

2. Rate its pertinence for me as an integer from 0 to 10.

3. If the pertinence is at least %d answer "RETAINED", otherwise "REJECTED".

Opportunity:
From: %s
Subject: %s
---
%s
---

Respond only with a JSON object with exactly these keys:
{
  "pertinence": 8,
  "decision": "RETAINED",
  "raisons": ["Budget is sufficient", "Backend API work", "Full remote"],
  "points_attention": ["Check the exact duration"]
}`

const draftSystem = "You write short professional replies to freelance missions. Respond only with a JSON object."

const draftPromptFormat = `You are the personal assistant of a %s.

Write a professional, friendly and personalised reply to the mission below:
- the freelancer is available to talk quickly
- ask the client to clarify their expectations
- be concise, human and engaging
- end with a call to action for a short call
- write the reply in %s
- do not include the signature inside "message"

Mission:
From: %s
Subject: %s
---
%s
---

Respond only with a JSON object with exactly these keys:
{
  "objet": "Your mission: follow-up",
  "message": "Hello,\n\n...",
  "signature": %q
}`

// classifyWire is the exact shape a classify reply must have. Pointers
// distinguish a missing key from a zero value.
type classifyWire struct {
	Pertinence      *int      `json:"pertinence"`
	Decision        *string   `json:"decision"`
	Reasons         *[]string `json:"raisons"`
	AttentionPoints *[]string `json:"points_attention"`
}

// draftWire is the exact shape a draft reply must have
type draftWire struct {
	Subject   *string `json:"objet"`
	Message   *string `json:"message"`
	Signature *string `json:"signature"`
}

func buildClassifyPrompt(opp *Opportunity, body string, c Criteria) string {
	return fmt.Sprintf(classifyPromptFormat,
		c.Profile,
		c.BudgetMin,
		c.DurationMax,
		c.Language,
		strings.Join(c.KeywordsToAvoid, ", "),
		c.WorkMode,
		c.RelevanceThreshold,
		opp.Sender,
		opp.Subject,
		body,
	)
}

func buildDraftPrompt(opp *Opportunity, body string, c Criteria, signature string) string {
	return fmt.Sprintf(draftPromptFormat,
		c.Profile,
		c.Language,
		opp.Sender,
		opp.Subject,
		body,
		signature,
	)
}

// extractJSON strips a surrounding markdown code fence
func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	return strings.TrimSpace(raw)
}

func decodeStrict(raw string, v any) error {
	payload := extractJSON(raw)
	if payload == "" {
		return errors.New("empty reply")
	}
	dec := json.NewDecoder(strings.NewReader(payload))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("failed to decode reply: %w", err)
	}
	if dec.More() {
		return errors.New("unexpected data after JSON object")
	}
	return nil
}

// negators turn an acceptance wording into a rejection
var negators = map[string]bool{"not": true, "no": true, "non": true, "pas": true, "ne": true, "n": true}

// parseDecision maps the free-form decision string onto the enum.
// English and French wordings are both accepted. A negated acceptance
// ("NOT RETAINED", "Mission non retenue") is a rejection; a negated
// rejection or a string naming both outcomes is refused.
func parseDecision(s string) (Decision, error) {
	words := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r)
	})

	var negated, accept, reject bool
	for _, w := range words {
		switch {
		case negators[w]:
			negated = true
		case strings.HasPrefix(w, "reject"), strings.HasPrefix(w, "rejet"):
			reject = true
		case strings.HasPrefix(w, "retain"), strings.HasPrefix(w, "retenu"), strings.HasPrefix(w, "accept"):
			accept = true
		}
	}

	switch {
	case accept && reject, reject && negated:
		return "", fmt.Errorf("ambiguous decision %q", s)
	case reject:
		return DecisionRejected, nil
	case accept && negated:
		return DecisionRejected, nil
	case accept:
		return DecisionRetained, nil
	}
	return "", fmt.Errorf("unrecognized decision %q", s)
}

// parseClassification validates a classify reply. The returned decision is
// the provider's own, before reconciliation with the threshold.
func parseClassification(raw string) (AnalysisResult, error) {
	var w classifyWire
	if err := decodeStrict(raw, &w); err != nil {
		return AnalysisResult{}, err
	}

	var missing []string
	if w.Pertinence == nil {
		missing = append(missing, "pertinence")
	}
	if w.Decision == nil {
		missing = append(missing, "decision")
	}
	if w.Reasons == nil {
		missing = append(missing, "raisons")
	}
	if w.AttentionPoints == nil {
		missing = append(missing, "points_attention")
	}
	if len(missing) > 0 {
		return AnalysisResult{}, fmt.Errorf("missing keys: %s", strings.Join(missing, ", "))
	}

	if *w.Pertinence < 0 || *w.Pertinence > 10 {
		return AnalysisResult{}, fmt.Errorf("pertinence %d out of range [0,10]", *w.Pertinence)
	}

	decision, err := parseDecision(*w.Decision)
	if err != nil {
		return AnalysisResult{}, err
	}

	return AnalysisResult{
		Pertinence:      *w.Pertinence,
		Decision:        decision,
		Reasons:         *w.Reasons,
		AttentionPoints: *w.AttentionPoints,
	}, nil
}

// reconcile applies the decision policy. It reports whether the provider
// and the threshold disagreed.
func reconcile(r AnalysisResult, c Criteria) (AnalysisResult, bool, error) {
	local := DecisionRejected
	if r.Pertinence >= c.RelevanceThreshold {
		local = DecisionRetained
	}
	disagreed := local != r.Decision

	switch c.Policy {
	case PolicyProvider:
		return r, disagreed, nil
	case PolicyStrict:
		if disagreed {
			return r, true, fmt.Errorf("decision %s inconsistent with pertinence %d and threshold %d",
				r.Decision, r.Pertinence, c.RelevanceThreshold)
		}
		return r, false, nil
	default:
		if disagreed {
			r.AttentionPoints = append(append([]string{}, r.AttentionPoints...), DisagreementNote)
		}
		r.Decision = local
		return r, disagreed, nil
	}
}

func parseDraft(raw string) (ResponseDraft, error) {
	var w draftWire
	if err := decodeStrict(raw, &w); err != nil {
		return ResponseDraft{}, err
	}
	if w.Subject == nil || w.Message == nil || w.Signature == nil {
		return ResponseDraft{}, errors.New("missing keys: objet, message and signature are required")
	}
	if strings.TrimSpace(*w.Subject) == "" {
		return ResponseDraft{}, errors.New("empty objet")
	}
	if strings.TrimSpace(*w.Message) == "" {
		return ResponseDraft{}, errors.New("empty message")
	}
	return ResponseDraft{
		Subject:   strings.TrimSpace(*w.Subject),
		Message:   strings.TrimSpace(*w.Message),
		Signature: strings.TrimSpace(*w.Signature),
	}, nil
}
