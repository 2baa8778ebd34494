package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/mikey/opportunity-agent/internal/core"
)

func TestPrintStats(t *testing.T) {
	entries := []core.LogEntry{
		{Timestamp: time.Now(), Sender: "a@example.com", Pertinence: 8, Decision: core.DecisionRetained, Action: core.ActionResponseSent},
		{Timestamp: time.Now(), Sender: "b@example.com", Pertinence: 2, Decision: core.DecisionRejected, Action: core.ActionRejected},
	}

	defer func() { jsonLog = false }()

	jsonLog = true
	var out bytes.Buffer
	if err := printStats(&out, entries); err != nil {
		t.Fatalf("printStats: %v", err)
	}
	var summary map[string]interface{}
	if err := json.Unmarshal(out.Bytes(), &summary); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out.String())
	}
	if summary["total"] != float64(2) {
		t.Fatalf("got total %v, want 2", summary["total"])
	}

	jsonLog = false
	out.Reset()
	if err := printStats(&out, entries); err != nil {
		t.Fatalf("printStats: %v", err)
	}
	if strings.HasPrefix(strings.TrimSpace(out.String()), "{") {
		t.Fatalf("expected text output, got JSON")
	}
}
