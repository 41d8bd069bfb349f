package ui

import (
	"strings"
	"testing"
)

func TestTruncate(t *testing.T) {
	tests := []struct {
		name  string
		in    string
		width int
		want  string
	}{
		{"fits", "hello", 10, "hello"},
		{"exact", "hello", 5, "hello"},
		{"cut", "hello world", 6, "hello…"},
		{"zero", "hello", 0, ""},
		{"wide runes", "日本語テキスト", 5, "日本…"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Truncate(tt.in, tt.width); got != tt.want {
				t.Errorf("Truncate(%q, %d) = %q, want %q", tt.in, tt.width, got, tt.want)
			}
		})
	}
}

func TestRenderKeepsText(t *testing.T) {
	for _, s := range []string{RenderPriority(0), RenderPriority(3), RenderStatus("open"), RenderType("epic"), RenderID("bd-1")} {
		if s == "" {
			t.Error("render returned empty string")
		}
	}
	if !strings.Contains(RenderPriority(3), "P3") {
		t.Errorf("RenderPriority(3) = %q", RenderPriority(3))
	}
}

func TestStatusIcon(t *testing.T) {
	if StatusIcon("closed") != "✓" {
		t.Errorf("closed icon = %q", StatusIcon("closed"))
	}
	if StatusIcon("nonsense") != "?" {
		t.Errorf("unknown icon = %q", StatusIcon("nonsense"))
	}
}

func TestTerminalWidthFallback(t *testing.T) {
	// go test runs with stdout redirected
	if IsTerminal() {
		t.Skip("stdout is a terminal")
	}
	if got := TerminalWidth(80); got != 80 {
		t.Errorf("TerminalWidth(80) = %d", got)
	}
}
