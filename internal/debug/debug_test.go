package debug

import (
	"bytes"
	"strings"
	"testing"
)

func TestLogfGatedByVerbose(t *testing.T) {
	var buf bytes.Buffer
	restore := SetOutput(&buf)
	defer restore()

	mu.Lock()
	prevEnabled := enabled
	enabled = false
	mu.Unlock()
	defer func() {
		mu.Lock()
		enabled = prevEnabled
		mu.Unlock()
		SetVerbose(false)
	}()

	Logf("hidden %d", 1)
	if buf.Len() != 0 {
		t.Fatalf("expected no output while disabled, got %q", buf.String())
	}

	SetVerbose(true)
	Logf("shown %d", 2)
	if got := buf.String(); !strings.Contains(got, "shown 2\n") {
		t.Errorf("Logf output = %q, want line with newline", got)
	}
	if !Enabled() {
		t.Error("Enabled() = false after SetVerbose(true)")
	}
}

func TestQuiet(t *testing.T) {
	defer SetQuiet(false)
	SetQuiet(true)
	if !IsQuiet() {
		t.Error("IsQuiet() = false after SetQuiet(true)")
	}
}
