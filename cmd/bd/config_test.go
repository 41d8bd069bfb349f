package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestConfigCommands(t *testing.T) {
	dir := newCLIWorkspace(t, "test")

	var set map[string]string
	runBDJSON(t, &set, "config", "set", "status.custom", "awaiting_review,awaiting_testing")
	if set["value"] != "awaiting_review,awaiting_testing" {
		t.Errorf("unexpected set result %v", set)
	}

	var got map[string]string
	runBDJSON(t, &got, "config", "get", "status.custom")
	if got["value"] != "awaiting_review,awaiting_testing" {
		t.Errorf("config get = %v", got)
	}

	var typesOut struct {
		CustomStatuses []string `json:"custom_statuses"`
	}
	runBDJSON(t, &typesOut, "types")
	if strings.Join(typesOut.CustomStatuses, ",") != "awaiting_review,awaiting_testing" {
		t.Errorf("types custom_statuses = %v", typesOut.CustomStatuses)
	}

	runBD(t, "config", "set", "issue_prefix", "renamed-")
	runBDJSON(t, &got, "config", "get", "issue_prefix")
	if got["value"] != "renamed" {
		t.Errorf("issue_prefix = %q, want trailing hyphen trimmed", got["value"])
	}

	runBD(t, "config", "unset", "status.custom")
	var all map[string]string
	runBDJSON(t, &all, "config", "list")
	if _, ok := all["status.custom"]; ok {
		t.Errorf("status.custom still present after unset: %v", all)
	}

	t.Run("yaml only key", func(t *testing.T) {
		runBD(t, "config", "set", "lock-timeout", "5s")
		data, err := os.ReadFile(filepath.Join(dir, ".beads", "config.yaml"))
		if err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(string(data), "lock-timeout: 5s") {
			t.Errorf("config.yaml not updated:\n%s", data)
		}
		var got map[string]interface{}
		runBDJSON(t, &got, "config", "get", "lock-timeout")
		if got["value"] != "5s" || got["location"] != "config.yaml" {
			t.Errorf("config get lock-timeout = %v", got)
		}
	})

	t.Run("validate", func(t *testing.T) {
		var res struct {
			Valid bool `json:"valid"`
		}
		runBDJSON(t, &res, "config", "validate")
		if !res.Valid {
			t.Error("expected fresh workspace configuration to be valid")
		}
	})
}
