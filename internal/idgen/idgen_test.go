package idgen

import (
	"math"
	"regexp"
	"strings"
	"testing"
	"time"
)

var fixedTime = time.Date(2025, 3, 14, 15, 9, 26, 535897932, time.UTC)

func TestGenerateHashIDDeterministic(t *testing.T) {
	a := GenerateHashID("bd", "Fix login", "Users cannot log in", "alice", fixedTime, 6, 0)
	b := GenerateHashID("bd", "Fix login", "Users cannot log in", "alice", fixedTime, 6, 0)
	if a != b {
		t.Errorf("same inputs produced %s and %s", a, b)
	}
}

func TestGenerateHashIDNonceChangesOutput(t *testing.T) {
	seen := make(map[string]bool)
	for nonce := 0; nonce < 10; nonce++ {
		id := GenerateHashID("bd", "Fix login", "", "alice", fixedTime, 8, nonce)
		if seen[id] {
			t.Errorf("nonce %d repeated id %s", nonce, id)
		}
		seen[id] = true
	}
}

func TestGenerateHashIDShape(t *testing.T) {
	pattern := regexp.MustCompile(`^proj-[0-9a-z]+$`)
	for length := MinLength; length <= MaxLength; length++ {
		id := GenerateHashID("proj", "title", "desc", "bob", fixedTime, length, 3)
		if !pattern.MatchString(id) {
			t.Fatalf("id %q does not match %s", id, pattern)
		}
		if got := len(strings.TrimPrefix(id, "proj-")); got != length {
			t.Errorf("length %d: got %d characters in %s", length, got, id)
		}
	}
}

func TestGenerateHashIDClampsLength(t *testing.T) {
	short := GenerateHashID("bd", "t", "", "x", fixedTime, 1, 0)
	if got := len(strings.TrimPrefix(short, "bd-")); got != MinLength {
		t.Errorf("expected length clamped up to %d, got %d", MinLength, got)
	}
	long := GenerateHashID("bd", "t", "", "x", fixedTime, 20, 0)
	if got := len(strings.TrimPrefix(long, "bd-")); got != MaxLength {
		t.Errorf("expected length clamped down to %d, got %d", MaxLength, got)
	}
}

func TestGenerateHashIDTimestampPrecision(t *testing.T) {
	a := GenerateHashID("bd", "t", "", "x", fixedTime, 8, 0)
	b := GenerateHashID("bd", "t", "", "x", fixedTime.Add(time.Nanosecond), 8, 0)
	if a == b {
		t.Errorf("a nanosecond apart should give different ids, both %s", a)
	}
}

func TestEncodeBase36(t *testing.T) {
	tests := []struct {
		name   string
		data   []byte
		length int
		want   string
	}{
		{"zero pads", []byte{0x00, 0x00}, 3, "000"},
		{"thirty six", []byte{0x00, 0x24}, 3, "010"},
		{"truncates to low digits", []byte{0xff, 0xff}, 3, "ekf"},
		{"exact fit", []byte{0xff, 0xff}, 4, "1ekf"},
		{"wider pad", []byte{0xff, 0xff}, 6, "001ekf"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EncodeBase36(tt.data, tt.length); got != tt.want {
				t.Errorf("EncodeBase36(%x, %d) = %q, want %q", tt.data, tt.length, got, tt.want)
			}
		})
	}
}

func TestComputeAdaptiveLength(t *testing.T) {
	tests := []struct {
		n         int
		threshold float64
		want      int
	}{
		{10, 0.25, 3},
		{10_000_000, 0.01, 8},
		{0, 0.25, 3},
	}
	for _, tt := range tests {
		if got := ComputeAdaptiveLength(tt.n, 3, 8, tt.threshold); got != tt.want {
			t.Errorf("ComputeAdaptiveLength(%d, 3, 8, %v) = %d, want %d", tt.n, tt.threshold, got, tt.want)
		}
	}
	if got := ComputeAdaptiveLength(100_000, 3, 8, 0.25); got < 6 {
		t.Errorf("ComputeAdaptiveLength(100000) = %d, want at least 6", got)
	}
}

func TestComputeAdaptiveLengthMonotonic(t *testing.T) {
	prev := 0
	for _, n := range []int{1, 10, 100, 1_000, 10_000, 100_000, 1_000_000, 10_000_000} {
		got := ComputeAdaptiveLength(n, 3, 8, 0.25)
		if got < prev {
			t.Errorf("n=%d: length %d shrank from %d", n, got, prev)
		}
		prev = got
	}
}

func TestCollisionProbability(t *testing.T) {
	if p := CollisionProbability(0, 3); math.Abs(p) > 1e-12 {
		t.Errorf("expected zero probability for no issues, got %v", p)
	}
	p6 := CollisionProbability(1000, 6)
	p4 := CollisionProbability(1000, 4)
	if p6 >= p4 {
		t.Errorf("longer ids should collide less: p6=%v p4=%v", p6, p4)
	}
	if p6 >= 0.001 {
		t.Errorf("expected p6 below 0.001, got %v", p6)
	}
}

func TestAdaptiveConfigLength(t *testing.T) {
	cfg := DefaultAdaptiveConfig()
	if got := cfg.Length(5); got != 3 {
		t.Errorf("default Length(5) = %d, want 3", got)
	}

	cfg.MinLength = 5
	if got := cfg.Length(5); got != 5 {
		t.Errorf("Length(5) with MinLength 5 = %d, want 5", got)
	}
}
