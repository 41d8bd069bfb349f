package main

import (
	"fmt"

	"github.com/gofrs/flock"

	"github.com/fwindolf/beads-rs-sub001/internal/configfile"
)

// withJSONLLock runs fn while holding .beads/jsonl.lock, so that an import
// and an export of the same workspace never interleave.
func withJSONLLock(dir string, fn func() error) error {
	lockPath := configfile.LockPath(dir)
	lock := flock.New(lockPath)
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquiring JSONL lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("another import or export is in progress (%s is locked)", lockPath)
	}
	defer func() { _ = lock.Unlock() }()
	return fn()
}
