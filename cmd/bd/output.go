package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/fwindolf/beads-rs-sub001/internal/storage"
	"github.com/fwindolf/beads-rs-sub001/internal/types"
	"github.com/fwindolf/beads-rs-sub001/internal/ui"
)

// outputJSON outputs data as pretty-printed JSON
func outputJSON(v interface{}) {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding JSON: %v\n", err)
		os.Exit(1)
	}
}

// outputJSONLine writes v as a single compact JSON line.
func outputJSONLine(v interface{}) {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding JSON: %v\n", err)
	}
}

// outputJSONError writes {"error": ..., "code": ...} to stderr and exits 1.
func outputJSONError(err error, code string) {
	errObj := map[string]string{"error": err.Error()}
	if code != "" {
		errObj["code"] = code
	}
	encoder := json.NewEncoder(os.Stderr)
	encoder.SetIndent("", "  ")
	_ = encoder.Encode(errObj)
	closeStore()
	os.Exit(1)
}

// errorCode maps storage error kinds to stable machine-readable codes.
func errorCode(err error) string {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return "not_found"
	case errors.Is(err, storage.ErrAlreadyClaimed):
		return "already_claimed"
	case errors.Is(err, storage.ErrNotInitialized):
		return "not_initialized"
	case errors.Is(err, storage.ErrPrefixMismatch):
		return "prefix_mismatch"
	case errors.Is(err, storage.ErrValidation):
		return "validation"
	case errors.Is(err, storage.ErrCycle):
		return "cycle"
	case errors.Is(err, storage.ErrReadOnly):
		return "read_only"
	case storage.IsRetryable(err):
		return "retryable"
	}
	return ""
}

// FatalError prints "Error: <msg>" to stderr and exits 1.
func FatalError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	closeStore()
	os.Exit(1)
}

// FatalErrorRespectJSON is FatalError, emitting a JSON error object under --json.
func FatalErrorRespectJSON(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if jsonOutput {
		var cause error
		for _, a := range args {
			if e, ok := a.(error); ok {
				cause = e
				break
			}
		}
		outputJSONError(errors.New(msg), errorCode(cause))
	}
	FatalError("%s", msg)
}

// FatalErrorWithHint prints an error followed by a suggested next step.
func FatalErrorWithHint(msg, hint string) {
	fmt.Fprintf(os.Stderr, "Error: %s\n", msg)
	fmt.Fprintf(os.Stderr, "Hint: %s\n", hint)
	closeStore()
	os.Exit(1)
}

// formatIssueCompact renders one line:
// [icon] ID [Priority] [type] @assignee [labels] - Title
func formatIssueCompact(issue *types.Issue, width int) string {
	labelsStr := ""
	if len(issue.Labels) > 0 {
		labelsStr = fmt.Sprintf(" %v", issue.Labels)
	}
	assigneeStr := ""
	if issue.Assignee != "" {
		assigneeStr = " @" + issue.Assignee
	}

	prefix := fmt.Sprintf("%s %s [P%d] [%s]%s%s - ",
		ui.StatusIcon(string(issue.Status)), issue.ID, issue.Priority, issue.IssueType, assigneeStr, labelsStr)
	title := issue.Title
	if width > 0 {
		title = ui.Truncate(title, width-len([]rune(prefix)))
	}

	if issue.Status == types.StatusClosed {
		return ui.RenderClosedLine(prefix + title)
	}
	return fmt.Sprintf("%s %s [%s] [%s]%s%s - %s",
		ui.RenderStatusIcon(string(issue.Status)),
		ui.RenderID(issue.ID),
		ui.RenderPriority(issue.Priority),
		ui.RenderType(string(issue.IssueType)),
		assigneeStr, labelsStr, title)
}

func printIssueList(issues []*types.Issue) {
	width := ui.TerminalWidth(0)
	for _, issue := range issues {
		fmt.Println(formatIssueCompact(issue, width))
	}
}

// truncateString cuts s to maxLen runes, appending "...".
func truncateString(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}

func pluralize(n int, singular string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, singular)
	}
	return fmt.Sprintf("%d %ss", n, singular)
}

func joinIDs(ids []string) string {
	return strings.Join(ids, ", ")
}
