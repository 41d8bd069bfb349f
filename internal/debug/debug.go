// Package debug provides diagnostic output for bd, gated by BD_DEBUG.
package debug

import (
	"fmt"
	"io"
	"os"
	"sync"
)

var (
	mu      sync.Mutex
	enabled = os.Getenv("BD_DEBUG") != ""
	verbose bool
	quiet   bool
	out     io.Writer = os.Stderr
)

// Enabled reports whether diagnostic output is switched on.
func Enabled() bool {
	mu.Lock()
	defer mu.Unlock()
	return enabled || verbose
}

// SetVerbose turns diagnostic output on regardless of BD_DEBUG.
func SetVerbose(v bool) {
	mu.Lock()
	verbose = v
	mu.Unlock()
}

// SetQuiet suppresses normal (non-error) output printed through PrintNormal.
func SetQuiet(q bool) {
	mu.Lock()
	quiet = q
	mu.Unlock()
}

// IsQuiet reports whether quiet mode is on.
func IsQuiet() bool {
	mu.Lock()
	defer mu.Unlock()
	return quiet
}

// SetOutput redirects diagnostic output and returns a function restoring the previous writer.
func SetOutput(w io.Writer) (restore func()) {
	mu.Lock()
	prev := out
	out = w
	mu.Unlock()
	return func() {
		mu.Lock()
		out = prev
		mu.Unlock()
	}
}

// Logf writes a diagnostic line when debugging is enabled.
func Logf(format string, args ...interface{}) {
	mu.Lock()
	defer mu.Unlock()
	if !enabled && !verbose {
		return
	}
	msg := fmt.Sprintf(format, args...)
	if len(msg) == 0 || msg[len(msg)-1] != '\n' {
		msg += "\n"
	}
	fmt.Fprint(out, msg)
}

// PrintNormal prints to stdout unless quiet mode is on.
func PrintNormal(format string, args ...interface{}) {
	if IsQuiet() {
		return
	}
	fmt.Printf(format, args...)
}
