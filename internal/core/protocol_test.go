package core

import (
	"strings"
	"testing"
)

func TestParseClassification(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		wantErr   bool
		want      Decision
		wantScore int
	}{
		{
			name:      "valid english",
			raw:       `{"pertinence": 8, "decision": "RETAINED", "raisons": ["budget"], "points_attention": []}`,
			want:      DecisionRetained,
			wantScore: 8,
		},
		{
			name:      "valid french wording",
			raw:       `{"pertinence": 2, "decision": "❌ Mission rejetée – hors cible", "raisons": [], "points_attention": []}`,
			want:      DecisionRejected,
			wantScore: 2,
		},
		{
			name:      "french retained",
			raw:       `{"pertinence": 9, "decision": "✅ Mission retenue", "raisons": [], "points_attention": []}`,
			want:      DecisionRetained,
			wantScore: 9,
		},
		{
			name:      "fenced",
			raw:       "```json\n{\"pertinence\": 7, \"decision\": \"retained\", \"raisons\": [], \"points_attention\": []}\n```",
			want:      DecisionRetained,
			wantScore: 7,
		},
		{
			name:      "french negated retained",
			raw:       `{"pertinence": 6, "decision": "❌ Mission non retenue", "raisons": [], "points_attention": []}`,
			want:      DecisionRejected,
			wantScore: 6,
		},
		{
			name:      "english negated retained",
			raw:       `{"pertinence": 6, "decision": "NOT RETAINED", "raisons": [], "points_attention": []}`,
			want:      DecisionRejected,
			wantScore: 6,
		},
		{
			name:      "negated accepted",
			raw:       `{"pertinence": 6, "decision": "not accepted", "raisons": [], "points_attention": []}`,
			want:      DecisionRejected,
			wantScore: 6,
		},
		{
			name:      "french n'est pas retenue",
			raw:       `{"pertinence": 4, "decision": "La mission n'est pas retenue", "raisons": [], "points_attention": []}`,
			want:      DecisionRejected,
			wantScore: 4,
		},
		{name: "negated rejection", raw: `{"pertinence": 6, "decision": "not rejected", "raisons": [], "points_attention": []}`, wantErr: true},
		{name: "both outcomes", raw: `{"pertinence": 6, "decision": "RETAINED or REJECTED", "raisons": [], "points_attention": []}`, wantErr: true},
		{name: "empty", raw: "  ", wantErr: true},
		{name: "not json", raw: "I think this mission is great", wantErr: true},
		{name: "unknown key", raw: `{"pertinence": 8, "decision": "RETAINED", "raisons": [], "points_attention": [], "extra": 1}`, wantErr: true},
		{name: "missing key", raw: `{"pertinence": 8, "decision": "RETAINED", "raisons": []}`, wantErr: true},
		{name: "null list", raw: `{"pertinence": 8, "decision": "RETAINED", "raisons": null, "points_attention": []}`, wantErr: true},
		{name: "float pertinence", raw: `{"pertinence": 8.5, "decision": "RETAINED", "raisons": [], "points_attention": []}`, wantErr: true},
		{name: "string pertinence", raw: `{"pertinence": "8", "decision": "RETAINED", "raisons": [], "points_attention": []}`, wantErr: true},
		{name: "out of range", raw: `{"pertinence": 11, "decision": "RETAINED", "raisons": [], "points_attention": []}`, wantErr: true},
		{name: "negative", raw: `{"pertinence": -1, "decision": "REJECTED", "raisons": [], "points_attention": []}`, wantErr: true},
		{name: "unknown decision", raw: `{"pertinence": 5, "decision": "maybe", "raisons": [], "points_attention": []}`, wantErr: true},
		{name: "trailing data", raw: `{"pertinence": 5, "decision": "REJECTED", "raisons": [], "points_attention": []} {}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseClassification(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %+v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.Decision != tt.want || got.Pertinence != tt.wantScore {
				t.Errorf("got %s/%d, want %s/%d", got.Decision, got.Pertinence, tt.want, tt.wantScore)
			}
		})
	}
}

func TestReconcile(t *testing.T) {
	disagreeing := AnalysisResult{Pertinence: 9, Decision: DecisionRejected, AttentionPoints: []string{"a"}}

	t.Run("threshold recomputes and flags", func(t *testing.T) {
		got, disagreed, err := reconcile(disagreeing, Criteria{RelevanceThreshold: 7, Policy: PolicyThreshold})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !disagreed || got.Decision != DecisionRetained {
			t.Fatalf("got %s disagreed=%v", got.Decision, disagreed)
		}
		if len(got.AttentionPoints) != 2 || got.AttentionPoints[1] != DisagreementNote {
			t.Fatalf("missing disagreement note: %q", got.AttentionPoints)
		}
		if len(disagreeing.AttentionPoints) != 1 {
			t.Fatalf("input attention points were mutated")
		}
	})

	t.Run("empty policy behaves like threshold", func(t *testing.T) {
		got, _, _ := reconcile(AnalysisResult{Pertinence: 3, Decision: DecisionRetained}, Criteria{RelevanceThreshold: 7})
		if got.Decision != DecisionRejected {
			t.Fatalf("got %s, want REJECTED", got.Decision)
		}
	})

	t.Run("provider trusted", func(t *testing.T) {
		got, disagreed, err := reconcile(disagreeing, Criteria{RelevanceThreshold: 7, Policy: PolicyProvider})
		if err != nil || !disagreed || got.Decision != DecisionRejected {
			t.Fatalf("got %s disagreed=%v err=%v", got.Decision, disagreed, err)
		}
	})

	t.Run("strict fails", func(t *testing.T) {
		if _, _, err := reconcile(disagreeing, Criteria{RelevanceThreshold: 7, Policy: PolicyStrict}); err == nil {
			t.Fatalf("expected error under strict policy")
		}
	})

	t.Run("agreement", func(t *testing.T) {
		got, disagreed, err := reconcile(AnalysisResult{Pertinence: 7, Decision: DecisionRetained}, Criteria{RelevanceThreshold: 7, Policy: PolicyStrict})
		if err != nil || disagreed || got.Decision != DecisionRetained {
			t.Fatalf("got %s disagreed=%v err=%v", got.Decision, disagreed, err)
		}
	})
}

func TestParseDraft(t *testing.T) {
	got, err := parseDraft(`{"objet": " Hello ", "message": "Body", "signature": ""}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Subject != "Hello" || got.Message != "Body" || got.Signature != "" {
		t.Fatalf("unexpected draft: %+v", got)
	}

	bad := []string{
		`{"objet": "s", "message": "m"}`,
		`{"objet": "", "message": "m", "signature": "x"}`,
		`{"objet": "s", "message": " ", "signature": "x"}`,
		`{"objet": "s", "message": "m", "signature": "x", "cc": "y"}`,
		`{"objet": 1, "message": "m", "signature": "x"}`,
	}
	for _, raw := range bad {
		if _, err := parseDraft(raw); err == nil {
			t.Errorf("expected error for %s", raw)
		}
	}
}

func TestBuildClassifyPromptEmbedsCriteria(t *testing.T) {
	opp := &Opportunity{Sender: "client@example.com", Subject: "API project"}
	prompt := buildClassifyPrompt(opp, "the body", Criteria{
		BudgetMin:          500,
		DurationMax:        30,
		Language:           "français",
		WorkMode:           "full remote",
		KeywordsToAvoid:    []string{"gratuit", "bénévolat"},
		RelevanceThreshold: 7,
		Profile:            "backend developer",
	})

	for _, want := range []string{"500 EUR", "30 days", "gratuit, bénévolat", "at least 7", "the body", "API project", `"points_attention"`} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}
