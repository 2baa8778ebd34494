package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mikey/opportunity-agent/internal/core"
)

func TestDefaults(t *testing.T) {
	cfg := NewFromViper(NewEmptyViper())

	criteria := cfg.GetCriteria()
	if criteria.BudgetMin != 500 || criteria.DurationMax != 30 || criteria.RelevanceThreshold != 7 {
		t.Fatalf("unexpected criteria defaults: %+v", criteria)
	}
	if criteria.Policy != core.PolicyThreshold {
		t.Fatalf("got policy %q, want %q", criteria.Policy, core.PolicyThreshold)
	}
	if len(criteria.KeywordsToAvoid) != 4 {
		t.Fatalf("got %d keywords, want 4", len(criteria.KeywordsToAvoid))
	}

	sched, err := cfg.GetScheduler()
	if err != nil {
		t.Fatalf("GetScheduler: %v", err)
	}
	if sched.PollInterval != 5*time.Minute || sched.CheckInterval != 30*time.Second {
		t.Fatalf("unexpected scheduler intervals: %+v", sched)
	}
	if sched.ReportHour != 7 || sched.ReportMinute != 0 {
		t.Fatalf("unexpected report time %02d:%02d", sched.ReportHour, sched.ReportMinute)
	}

	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestLoadFileAndSecrets(t *testing.T) {
	dir := t.TempDir()
	keyFile := filepath.Join(dir, "openai.key")
	if err := os.WriteFile(keyFile, []byte("sk-test\n"), 0o600); err != nil {
		t.Fatalf("write key: %v", err)
	}
	path := filepath.Join(dir, "config.yaml")
	content := `
criteria:
  relevance_threshold: 9
  keywords_to_avoid: [gratuit, Gratuit, " stage "]
openai:
  api_key_file: ` + keyFile + `
imap:
  username: me@example.com
  password: app-password
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	criteria := cfg.GetCriteria()
	if criteria.RelevanceThreshold != 9 {
		t.Fatalf("got threshold %d, want 9", criteria.RelevanceThreshold)
	}
	if len(criteria.KeywordsToAvoid) != 2 || criteria.KeywordsToAvoid[1] != "stage" {
		t.Fatalf("keywords not deduplicated: %q", criteria.KeywordsToAvoid)
	}

	openai, err := cfg.GetOpenAI()
	if err != nil {
		t.Fatalf("GetOpenAI: %v", err)
	}
	if openai.APIKey != "sk-test" {
		t.Fatalf("got key %q, want sk-test", openai.APIKey)
	}

	smtp, err := cfg.GetSMTP()
	if err != nil {
		t.Fatalf("GetSMTP: %v", err)
	}
	if smtp.Username != "me@example.com" || smtp.Password != "app-password" || smtp.From != "me@example.com" {
		t.Fatalf("smtp should fall back to mailbox credentials: %+v", smtp)
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatalf("expected error for missing explicit config file")
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	v := NewEmptyViper()
	v.Set("criteria.relevance_threshold", 11)
	v.Set("criteria.decision_policy", "coin-flip")
	v.Set("scheduler.daily_report_time", "7h")
	v.Set("llm.providers", []string{"openai", "llama"})
	v.Set("decision_log.type", "csv")

	err := NewFromViper(v).Validate()
	if err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestParseTimeOfDay(t *testing.T) {
	h, m, err := ParseTimeOfDay("23:45")
	if err != nil || h != 23 || m != 45 {
		t.Fatalf("got %d:%d, %v", h, m, err)
	}
	if _, _, err := ParseTimeOfDay("25:00"); err == nil {
		t.Fatalf("expected error for invalid hour")
	}
}
