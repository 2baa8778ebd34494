package di

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/mikey/opportunity-agent/internal/core"
	"github.com/mikey/opportunity-agent/internal/factory"
	"github.com/mikey/opportunity-agent/internal/scheduler"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestBuildContainerResolvesScheduler(t *testing.T) {
	path := writeConfig(t, `
llm:
  providers: [openai, mistral]
openai:
  api_key: sk-test
imap:
  username: me@example.com
  password: app-password
decision_log:
  type: memory
logging:
  level: error
`)

	container, err := BuildContainer(Options{ConfigPath: path})
	if err != nil {
		t.Fatalf("BuildContainer: %v", err)
	}

	err = container.Invoke(func(s *scheduler.Scheduler, providers factory.Providers, notifier core.Notifier, reporter core.Reporter) {
		if s.State() != scheduler.StateIdle {
			t.Errorf("new scheduler should be idle, got %s", s.State())
		}
		if len(providers) != 1 {
			t.Errorf("got %d providers, want 1", len(providers))
		}
		if _, ok := notifier.(core.NoopNotifier); !ok {
			t.Errorf("expected no-op notifier, got %T", notifier)
		}
		if reporter != nil {
			t.Errorf("expected no reporter, got %T", reporter)
		}
	})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
}

func TestBuildContainerRejectsInvalidConfig(t *testing.T) {
	path := writeConfig(t, `
criteria:
  decision_policy: vibes
`)

	container, err := BuildContainer(Options{ConfigPath: path})
	if err != nil {
		t.Fatalf("BuildContainer: %v", err)
	}
	if err := container.Invoke(func(core.DecisionLog) {}); err == nil {
		t.Fatalf("expected invalid configuration to fail resolution")
	}
}
