// Package ui renders CLI output with semantic colors.
package ui

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// Semantic palette. Adaptive colors pick the light or dark variant from the
// terminal background.
var (
	ColorPass   = lipgloss.AdaptiveColor{Light: "#2E7D32", Dark: "#66BB6A"}
	ColorWarn   = lipgloss.AdaptiveColor{Light: "#B26A00", Dark: "#FFB74D"}
	ColorFail   = lipgloss.AdaptiveColor{Light: "#C62828", Dark: "#EF5350"}
	ColorAccent = lipgloss.AdaptiveColor{Light: "#1565C0", Dark: "#5B8DEF"}
	ColorMuted  = lipgloss.AdaptiveColor{Light: "#757575", Dark: "#888888"}
)

var (
	PassStyle   = lipgloss.NewStyle().Foreground(ColorPass)
	WarnStyle   = lipgloss.NewStyle().Foreground(ColorWarn)
	FailStyle   = lipgloss.NewStyle().Foreground(ColorFail)
	AccentStyle = lipgloss.NewStyle().Foreground(ColorAccent)
	MutedStyle  = lipgloss.NewStyle().Foreground(ColorMuted)
	IDStyle     = lipgloss.NewStyle().Foreground(ColorAccent).Bold(true)
	BoldStyle   = lipgloss.NewStyle().Bold(true)

	TypeEpicStyle = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#6A1B9A", Dark: "#BA68C8"})
	TypeBugStyle  = FailStyle
)

// Icons shared by doctor and list output.
const (
	IconPass = "✓"
	IconWarn = "⚠"
	IconFail = "✗"
	TreeLast = "└─ "
	TreeMid  = "├─ "
)

func RenderPass(s string) string   { return PassStyle.Render(s) }
func RenderWarn(s string) string   { return WarnStyle.Render(s) }
func RenderFail(s string) string   { return FailStyle.Render(s) }
func RenderAccent(s string) string { return AccentStyle.Render(s) }
func RenderMuted(s string) string  { return MutedStyle.Render(s) }
func RenderID(s string) string     { return IDStyle.Render(s) }
func RenderBold(s string) string   { return BoldStyle.Render(s) }

func RenderPassIcon() string { return PassStyle.Render(IconPass) }
func RenderWarnIcon() string { return WarnStyle.Render(IconWarn) }
func RenderFailIcon() string { return FailStyle.Render(IconFail) }

// RenderPriority colors P0 and P1; lower priorities stay neutral.
func RenderPriority(priority int) string {
	tag := fmt.Sprintf("P%d", priority)
	switch priority {
	case 0:
		return FailStyle.Bold(true).Render(tag)
	case 1:
		return WarnStyle.Render(tag)
	default:
		return tag
	}
}

// RenderStatus colors a status name.
func RenderStatus(status string) string {
	switch status {
	case "open":
		return AccentStyle.Render(status)
	case "in_progress":
		return WarnStyle.Render(status)
	case "blocked":
		return FailStyle.Render(status)
	case "closed":
		return MutedStyle.Render(status)
	default:
		return status
	}
}

// StatusIcon maps a status to a single glyph.
func StatusIcon(status string) string {
	switch status {
	case "open":
		return "○"
	case "in_progress":
		return "◐"
	case "blocked":
		return "●"
	case "deferred":
		return "❄"
	case "closed":
		return "✓"
	case "pinned":
		return "📌"
	default:
		return "?"
	}
}

func RenderStatusIcon(status string) string {
	icon := StatusIcon(status)
	switch status {
	case "in_progress":
		return WarnStyle.Render(icon)
	case "blocked":
		return FailStyle.Render(icon)
	case "closed", "deferred":
		return MutedStyle.Render(icon)
	default:
		return icon
	}
}

func RenderType(issueType string) string {
	switch issueType {
	case "epic":
		return TypeEpicStyle.Render(issueType)
	case "bug":
		return TypeBugStyle.Render(issueType)
	default:
		return issueType
	}
}

// RenderClosedLine mutes a whole line.
func RenderClosedLine(line string) string {
	return MutedStyle.Render(line)
}

// RenderCategory renders a doctor section header.
func RenderCategory(name string) string {
	return BoldStyle.Render(strings.ToUpper(name))
}

// RenderSeparator renders a muted horizontal rule.
func RenderSeparator() string {
	return MutedStyle.Render(strings.Repeat("─", 60))
}

// IsTerminal reports whether stdout is a terminal.
func IsTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd())) // #nosec G115 - fd fits in int
}

// TerminalWidth returns the stdout width, or fallback when stdout is not a
// terminal.
func TerminalWidth(fallback int) int {
	if !IsTerminal() {
		return fallback
	}
	w, _, err := term.GetSize(int(os.Stdout.Fd())) // #nosec G115 - fd fits in int
	if err != nil || w <= 0 {
		return fallback
	}
	return w
}

// Truncate shortens s to at most width display cells, ending with "…".
func Truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	if lipgloss.Width(s) <= width {
		return s
	}
	runes := []rune(s)
	for len(runes) > 0 && lipgloss.Width(string(runes))+1 > width {
		runes = runes[:len(runes)-1]
	}
	return string(runes) + "…"
}
