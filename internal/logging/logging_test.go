// internal/logging/logging_test.go
package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestNew_JSONAtLevel(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(&buf, "warn", "json")
	if err != nil {
		t.Fatalf("New() err=%v", err)
	}

	l.Info("hidden")
	l.Warn("shown", "component", "wifi")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info must be filtered at warn level: %s", out)
	}
	if !strings.Contains(out, `"msg":"shown"`) || !strings.Contains(out, `"component":"wifi"`) {
		t.Fatalf("unexpected output %s", out)
	}
}

func TestNew_Rejects(t *testing.T) {
	var buf bytes.Buffer
	if _, err := New(&buf, "loud", "text"); err == nil {
		t.Fatalf("expected level error")
	}
	if _, err := New(&buf, "info", "xml"); err == nil {
		t.Fatalf("expected format error")
	}
}
