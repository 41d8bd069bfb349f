// Package validation parses and checks caller-supplied values (priorities,
// types, ids and prefixes) before they reach the store.
package validation

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/fwindolf/beads-rs-sub001/internal/types"
)

// ParsePriority extracts a priority from content.
// Supports both numeric (0-4) and P-prefix format (P0-P4).
// Returns -1 if invalid.
func ParsePriority(content string) int {
	content = strings.TrimSpace(content)
	if strings.HasPrefix(strings.ToUpper(content), "P") {
		content = content[1:]
	}
	p, err := strconv.Atoi(content)
	if err != nil || p < 0 || p > 4 {
		return -1
	}
	return p
}

// ValidatePriority parses and validates a priority string.
func ValidatePriority(priorityStr string) (int, error) {
	priority := ParsePriority(priorityStr)
	if priority == -1 {
		return -1, fmt.Errorf("invalid priority %q (expected 0-4 or P0-P4, not words like high/medium/low)", priorityStr)
	}
	return priority, nil
}

// ParseIssueType normalises aliases ("enhancement" -> "feature") and accepts
// built-in types plus those in customTypes.
func ParseIssueType(content string, customTypes []string) (types.IssueType, error) {
	issueType := types.IssueType(strings.TrimSpace(content)).Normalize()
	if !issueType.IsValidWithCustom(customTypes) {
		return types.TypeTask, fmt.Errorf("invalid issue type %q (configure custom types with types.custom)", content)
	}
	return issueType, nil
}

// ParseStatus accepts built-in statuses plus those in customStatuses.
func ParseStatus(content string, customStatuses []string) (types.Status, error) {
	status := types.Status(strings.TrimSpace(content))
	if !status.IsValidWithCustom(customStatuses) {
		return "", fmt.Errorf("invalid status %q (configure custom statuses with status.custom)", content)
	}
	return status, nil
}

// ParseDependencyType accepts any usable dependency type. Unknown names pass
// with ok=false so callers can warn.
func ParseDependencyType(content string) (depType types.DependencyType, known bool, err error) {
	depType = types.DependencyType(strings.TrimSpace(content))
	if !depType.IsValid() {
		return "", false, fmt.Errorf("invalid dependency type %q", content)
	}
	return depType, depType.IsWellKnown(), nil
}

// ValidateIDFormat checks that id looks like prefix-suffix, where the suffix
// is base36 with optional .N child segments (bd-a3f8e9, bd-a3f8e9.1).
// Hyphenated prefixes ("web-app-abc123") are supported.
// Returns the prefix part. An empty id is accepted and yields "".
func ValidateIDFormat(id string) (string, error) {
	if id == "" {
		return "", nil
	}
	idx := strings.LastIndex(id, "-")
	if idx <= 0 || idx == len(id)-1 {
		return "", fmt.Errorf("invalid ID format '%s' (expected prefix-hash, e.g. 'bd-a3f8e9' or 'bd-a3f8e9.1')", id)
	}
	segments := strings.Split(id[idx+1:], ".")
	if !isBase36(segments[0]) {
		return "", fmt.Errorf("invalid ID format '%s' (suffix %q is not lowercase base36)", id, segments[0])
	}
	for _, seg := range segments[1:] {
		if _, err := strconv.Atoi(seg); err != nil || seg == "" {
			return "", fmt.Errorf("invalid ID format '%s' (child segment %q is not a number)", id, seg)
		}
	}
	return id[:idx], nil
}

func isBase36(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if !(c >= '0' && c <= '9') && !(c >= 'a' && c <= 'z') {
			return false
		}
	}
	return true
}

// ExtractIssuePrefix returns everything before the last hyphen of id, or ""
// when there is none.
func ExtractIssuePrefix(id string) string {
	idx := strings.LastIndex(id, "-")
	if idx <= 0 {
		return ""
	}
	return id[:idx]
}

// ValidatePrefix checks that the requested prefix matches the database prefix.
// Returns an error if they don't match (unless force is true).
func ValidatePrefix(requestedPrefix, dbPrefix string, force bool) error {
	return ValidatePrefixWithAllowed(requestedPrefix, dbPrefix, "", force)
}

// ValidatePrefixWithAllowed checks that the requested prefix is allowed.
// It matches if force is set, dbPrefix is empty, the prefixes are equal, or
// requestedPrefix appears in the comma-separated allowedPrefixes list.
func ValidatePrefixWithAllowed(requestedPrefix, dbPrefix, allowedPrefixes string, force bool) error {
	if force || dbPrefix == "" || dbPrefix == requestedPrefix {
		return nil
	}
	for _, allowed := range splitAllowed(allowedPrefixes) {
		if allowed == requestedPrefix {
			return nil
		}
	}
	if allowedPrefixes != "" {
		return fmt.Errorf("prefix mismatch: database uses '%s' (allowed: %s) but you specified '%s' (use --force to override)",
			dbPrefix, allowedPrefixes, requestedPrefix)
	}
	return fmt.Errorf("prefix mismatch: database uses '%s' but you specified '%s' (use --force to override)", dbPrefix, requestedPrefix)
}

// ValidateIDPrefixAllowed checks a full id rather than an extracted prefix,
// so multi-hyphen prefixes like "hq-cv-" match as configured.
func ValidateIDPrefixAllowed(id, dbPrefix, allowedPrefixes string, force bool) error {
	if force || dbPrefix == "" {
		return nil
	}
	if strings.HasPrefix(id, dbPrefix+"-") {
		return nil
	}
	for _, allowed := range splitAllowed(allowedPrefixes) {
		if strings.HasPrefix(id, allowed+"-") {
			return nil
		}
	}
	if allowedPrefixes != "" {
		return fmt.Errorf("prefix mismatch: database uses '%s-' (allowed: %s) but ID '%s' doesn't match any allowed prefix (use --force to override)",
			dbPrefix, allowedPrefixes, id)
	}
	return fmt.Errorf("prefix mismatch: database uses '%s-' but ID '%s' doesn't match (use --force to override)", dbPrefix, id)
}

func splitAllowed(allowedPrefixes string) []string {
	var out []string
	for _, allowed := range strings.Split(allowedPrefixes, ",") {
		allowed = strings.TrimSuffix(strings.TrimSpace(allowed), "-")
		if allowed != "" {
			out = append(out, allowed)
		}
	}
	return out
}
