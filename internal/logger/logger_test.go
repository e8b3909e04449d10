package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func capture(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	prevNow := now
	now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }
	t.Cleanup(func() {
		SetOutput(&bytes.Buffer{})
		SetDebug(false)
		now = prevNow
	})
	return &buf
}

func TestWriteProducesJSONLine(t *testing.T) {
	buf := capture(t)
	fields := map[string]any{"resource": "people"}

	Info("list_served", fields)

	var got map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &got); err != nil {
		t.Fatalf("invalid json %q: %v", buf.String(), err)
	}
	if got["msg"] != "list_served" || got["level"] != "info" || got["resource"] != "people" {
		t.Fatalf("unexpected entry: %v", got)
	}
	if got["ts"] != "2024-05-01T12:00:00Z" {
		t.Fatalf("unexpected ts: %v", got["ts"])
	}
	if _, ok := fields["msg"]; ok {
		t.Fatalf("caller fields must not be modified")
	}
}

func TestDebugIsGated(t *testing.T) {
	buf := capture(t)

	Debug("hidden", nil)
	if buf.Len() != 0 {
		t.Fatalf("debug written while disabled: %q", buf.String())
	}

	SetDebug(true)
	Debug("shown", nil)
	if !strings.Contains(buf.String(), `"msg":"shown"`) {
		t.Fatalf("debug not written when enabled: %q", buf.String())
	}
}
