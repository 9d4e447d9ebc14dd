package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
)

func TestLoggerRenamesKeys(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, Options{Service: "habitsd", Env: "test", Level: "debug"})
	logger.Debug("ledger ready", slog.String("operation", "register"))

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	for _, key := range []string{"timestamp", "severity", "message", "service", "env"} {
		if _, ok := line[key]; !ok {
			t.Fatalf("missing key %q in %v", key, line)
		}
	}
	if line["severity"] != "DEBUG" || line["message"] != "ledger ready" || line["service"] != "habitsd" {
		t.Fatalf("unexpected log line %v", line)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"":        slog.LevelInfo,
		"DEBUG":   slog.LevelDebug,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
	}
	for raw, want := range cases {
		if got := ParseLevel(raw); got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", raw, got, want)
		}
	}
}

func TestMaskField(t *testing.T) {
	if attr := MaskField("secret", "hunter2"); attr.Value.String() != RedactedValue {
		t.Fatalf("expected secret to be redacted, got %s", attr.Value)
	}
	if attr := MaskField("operation", "withdraw"); attr.Value.String() != "withdraw" {
		t.Fatalf("allowlisted key must pass through, got %s", attr.Value)
	}
}

func TestAddressField(t *testing.T) {
	addr := "0x00000000000000000000000000000000000000AA"
	if attr := AddressField("user", addr, false); attr.Value.String() != addr {
		t.Fatalf("unredacted address changed: %s", attr.Value)
	}
	if attr := AddressField("user", addr, true); attr.Value.String() != "0x0000...00AA" {
		t.Fatalf("unexpected redacted address %s", attr.Value)
	}
}
