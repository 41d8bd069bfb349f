package sqlite

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/fwindolf/beads-rs-sub001/internal/storage"
	"github.com/fwindolf/beads-rs-sub001/internal/types"
)

// allowedUpdateFields lists the keys UpdateIssue accepts. Anything else is a
// validation error, which also keeps column names out of caller control.
var allowedUpdateFields = map[string]bool{
	"title":               true,
	"description":         true,
	"design":              true,
	"acceptance_criteria": true,
	"notes":               true,
	"spec_id":             true,
	"status":              true,
	"priority":            true,
	"issue_type":          true,
	"assignee":            true,
	"owner":               true,
	"estimated_minutes":   true,
	"external_ref":        true,
	"source_system":       true,
	"due_at":              true,
	"defer_until":         true,
	"pinned":              true,
	"is_template":         true,
	"ephemeral":           true,
	"metadata":            true,
	"close_reason":        true,
	"closed_at":           true,
	"await_id":            true,
	"waiters":             true,
	"agent_state":         true,
}

// applyUpdate sets one field on issue from a loosely typed value, as produced
// by CLI flags or decoded JSON.
func applyUpdate(issue *types.Issue, key string, value interface{}) error {
	var err error
	switch key {
	case "title":
		issue.Title, err = asString(key, value)
	case "description":
		issue.Description, err = asString(key, value)
	case "design":
		issue.Design, err = asString(key, value)
	case "acceptance_criteria":
		issue.AcceptanceCriteria, err = asString(key, value)
	case "notes":
		issue.Notes, err = asString(key, value)
	case "spec_id":
		issue.SpecID, err = asString(key, value)
	case "assignee":
		issue.Assignee, err = asString(key, value)
	case "owner":
		issue.Owner, err = asString(key, value)
	case "source_system":
		issue.SourceSystem, err = asString(key, value)
	case "close_reason":
		issue.CloseReason, err = asString(key, value)
	case "await_id":
		issue.AwaitID, err = asString(key, value)
	case "status":
		var s string
		s, err = asString(key, value)
		issue.Status = types.Status(s)
	case "issue_type":
		var s string
		s, err = asString(key, value)
		issue.IssueType = types.IssueType(s).Normalize()
	case "agent_state":
		var s string
		s, err = asString(key, value)
		issue.AgentState = types.AgentState(s)
	case "priority":
		issue.Priority, err = asInt(key, value)
	case "estimated_minutes":
		issue.EstimatedMinutes, err = asIntPtr(key, value)
	case "external_ref":
		issue.ExternalRef, err = asStringPtr(key, value)
	case "due_at":
		issue.DueAt, err = asTimePtr(key, value)
	case "defer_until":
		issue.DeferUntil, err = asTimePtr(key, value)
	case "closed_at":
		issue.ClosedAt, err = asTimePtr(key, value)
	case "pinned":
		issue.Pinned, err = asBool(key, value)
	case "is_template":
		issue.IsTemplate, err = asBool(key, value)
	case "ephemeral":
		issue.Ephemeral, err = asBool(key, value)
	case "metadata":
		issue.Metadata, err = asRawJSON(key, value)
	case "waiters":
		issue.Waiters, err = asStringSlice(key, value)
	default:
		err = storage.NewValidation(key, "field cannot be updated")
	}
	return err
}

func badType(key string, value interface{}) error {
	return storage.NewValidation(key, fmt.Sprintf("unsupported value type %T", value))
}

func asString(key string, value interface{}) (string, error) {
	switch v := value.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	case *string:
		if v == nil {
			return "", nil
		}
		return *v, nil
	case types.Status:
		return string(v), nil
	case types.IssueType:
		return string(v), nil
	case types.AgentState:
		return string(v), nil
	}
	return "", badType(key, value)
}

func asStringPtr(key string, value interface{}) (*string, error) {
	s, err := asString(key, value)
	if err != nil || s == "" {
		return nil, err
	}
	return &s, nil
}

func asInt(key string, value interface{}) (int, error) {
	switch v := value.(type) {
	case int:
		return v, nil
	case int32:
		return int(v), nil
	case int64:
		return int(v), nil
	case float64:
		if v != math.Trunc(v) {
			return 0, storage.NewValidation(key, fmt.Sprintf("%v is not an integer", v))
		}
		return int(v), nil
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0, storage.NewValidation(key, err.Error())
		}
		return int(n), nil
	case string:
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, storage.NewValidation(key, fmt.Sprintf("%q is not an integer", v))
		}
		return n, nil
	}
	return 0, badType(key, value)
}

func asIntPtr(key string, value interface{}) (*int, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case *int:
		return v, nil
	}
	n, err := asInt(key, value)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func asTimePtr(key string, value interface{}) (*time.Time, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case time.Time:
		if v.IsZero() {
			return nil, nil
		}
		return &v, nil
	case *time.Time:
		return v, nil
	case string:
		if v == "" {
			return nil, nil
		}
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return nil, storage.NewValidation(key, fmt.Sprintf("invalid timestamp %q", v))
		}
		return &t, nil
	}
	return nil, badType(key, value)
}

func asBool(key string, value interface{}) (bool, error) {
	switch v := value.(type) {
	case bool:
		return v, nil
	case string:
		b, err := strconv.ParseBool(v)
		if err != nil {
			return false, storage.NewValidation(key, fmt.Sprintf("%q is not a boolean", v))
		}
		return b, nil
	}
	return false, badType(key, value)
}

func asRawJSON(key string, value interface{}) (json.RawMessage, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case json.RawMessage:
		return v, nil
	case []byte:
		return json.RawMessage(v), nil
	case string:
		if v == "" {
			return nil, nil
		}
		return json.RawMessage(v), nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return nil, storage.NewValidation(key, err.Error())
	}
	return data, nil
}

func asStringSlice(key string, value interface{}) ([]string, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case []string:
		return v, nil
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, badType(key, item)
			}
			out = append(out, s)
		}
		return out, nil
	}
	return nil, badType(key, value)
}
