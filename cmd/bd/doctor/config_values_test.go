package doctor

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fwindolf/beads-rs-sub001/internal/storage/sqlite"
)

func TestCheckCustomNames(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  int
	}{
		{"empty", "", 0},
		{"valid", "awaiting_review, awaiting-docs", 0},
		{"uppercase", "Review", 1},
		{"duplicate", "review,review", 1},
		{"leading digit", "1st", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := checkCustomNames("status.custom", tt.value)
			if len(got) != tt.want {
				t.Errorf("checkCustomNames(%q) = %v, want %d issue(s)", tt.value, got, tt.want)
			}
		})
	}
}

func TestCheckConfigValues(t *testing.T) {
	beadsDir, store := newWorkspace(t)
	store.Close()
	configPath := filepath.Join(beadsDir, "config.yaml")

	t.Run("valid config", func(t *testing.T) {
		content := "json: false\nlock-timeout: 10s\nactor: alice\nid:\n  min-hash-length: 4\n  max-hash-length: 6\n"
		if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
		check := CheckConfigValues(beadsDir)
		if check.Status != StatusOK {
			t.Errorf("Status = %q, want %q: %s", check.Status, StatusOK, check.Detail)
		}
	})

	t.Run("invalid values", func(t *testing.T) {
		content := "lock-timeout: soon\nactor: \"-bad actor\"\nid:\n  min-hash-length: 6\n  max-hash-length: 4\n"
		if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
		check := CheckConfigValues(beadsDir)
		if check.Status != StatusWarning {
			t.Fatalf("Status = %q, want %q", check.Status, StatusWarning)
		}
		for _, want := range []string{"lock-timeout", "actor", "greater than"} {
			if !strings.Contains(check.Detail, want) {
				t.Errorf("Detail missing %q:\n%s", want, check.Detail)
			}
		}
	})

	t.Run("unparseable yaml", func(t *testing.T) {
		if err := os.WriteFile(configPath, []byte("json: [unclosed\n"), 0644); err != nil {
			t.Fatal(err)
		}
		check := CheckConfigValues(beadsDir)
		if check.Status != StatusWarning || !strings.Contains(check.Detail, "failed to parse") {
			t.Errorf("got %q %q, want parse warning", check.Status, check.Detail)
		}
	})
}

func TestCheckConfigValues_DatabaseCustomStatuses(t *testing.T) {
	beadsDir, store := newWorkspace(t)
	if err := store.SetConfig(context.Background(), sqlite.CustomStatusConfigKey, "review,Bad Status"); err != nil {
		t.Fatalf("SetConfig failed: %v", err)
	}
	store.Close()

	check := CheckConfigValues(beadsDir)
	if check.Status != StatusWarning || !strings.Contains(check.Detail, "Bad Status") {
		t.Errorf("got %q %q, want warning naming the bad status", check.Status, check.Detail)
	}
}
