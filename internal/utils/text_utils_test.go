package utils

import (
	"strings"
	"testing"
	"unicode/utf8"

	"go.uber.org/zap"
)

func TestTruncateTextKeepsValidUTF8(t *testing.T) {
	tp := NewTextProcessor(zap.NewNop())

	text := strings.Repeat("é", 10) // 20 bytes
	got := tp.TruncateText(text, 5)

	if !utf8.ValidString(got) {
		t.Fatalf("truncated text is not valid UTF-8: %q", got)
	}
	if !strings.HasPrefix(got, "éé\n[...") {
		t.Fatalf("unexpected truncation: %q", got)
	}
	if tp.TruncateText("short", 0) != "short" {
		t.Fatalf("zero limit must not truncate")
	}
}

func TestSanitizeUTF8DropsInvalidBytes(t *testing.T) {
	tp := NewTextProcessor(nil)
	got := tp.SanitizeUTF8("ok\xffok")
	if got != "okok" {
		t.Fatalf("got %q, want %q", got, "okok")
	}
}

func TestSnippet(t *testing.T) {
	tests := []struct {
		name string
		text string
		n    int
		want string
	}{
		{name: "short text untouched", text: "hello", n: 10, want: "hello"},
		{name: "exact length untouched", text: "hello", n: 5, want: "hello"},
		{name: "cut on runes", text: "ééééé", n: 2, want: "éé..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Snippet(tt.text, tt.n); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDisplayName(t *testing.T) {
	tests := map[string]string{
		`"Jane Doe" <jane@example.com>`: "Jane Doe",
		"Acme Corp <jobs@acme.test>":    "Acme Corp",
		"<bob@example.com>":             "bob@example.com",
		"bob@example.com":               "bob@example.com",
	}
	for in, want := range tests {
		if got := DisplayName(in); got != want {
			t.Errorf("DisplayName(%q) = %q, want %q", in, got, want)
		}
	}
}
