package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"":        Info,
		"DEBUG":   Debug,
		" warn ":  Warn,
		"warning": Warn,
		"error":   Error,
		"bogus":   Info,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestJSONLogger_WritesFieldsAndFiltersLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New(Options{Level: Info, Format: FormatJSON, App: "pillsync", Out: &buf})

	l.Debug("hidden", nil)
	l.With(map[string]any{"patient_id": "P001"}).Warn("ring failed", map[string]any{
		"err": errors.New("buzzer offline"),
		"":    "dropped",
	})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected 1 line (debug filtered), got %d: %q", len(lines), buf.String())
	}

	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if entry["level"] != "warn" || entry["message"] != "ring failed" {
		t.Fatalf("unexpected entry: %#v", entry)
	}
	if entry["app"] != "pillsync" || entry["patient_id"] != "P001" {
		t.Fatalf("missing base fields: %#v", entry)
	}
	if entry["err"] != "buzzer offline" {
		t.Fatalf("expected error rendered as string, got %#v", entry["err"])
	}
	if _, ok := entry[""]; ok {
		t.Fatalf("empty key should be dropped")
	}
}
