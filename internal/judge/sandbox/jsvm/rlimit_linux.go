//go:build linux

package jsvm

import (
	"fmt"

	"jsjudge/internal/judge/sandbox/spec"

	"golang.org/x/sys/unix"
)

const (
	maxOpenFiles = 64
	// dataHeadroomBytes covers the Go runtime and the engine on top of the script heap.
	dataHeadroomBytes = 128 << 20
)

// applyRlimits caps CPU time one second past the wall budget and bounds file
// descriptors. Core dumps and file writes are disabled; the reply travels over
// a pipe, which RLIMIT_FSIZE does not cover. RLIMIT_DATA makes the memory
// limit hard: an allocation past it fails in the kernel instead of waiting for
// the heap watchdog. The host still enforces the wall deadline.
func applyRlimits(limits spec.Limits) error {
	if limits.MemoryLimitBytes > 0 {
		if err := lowerRlimit(unix.RLIMIT_DATA, uint64(limits.MemoryLimitBytes)+dataHeadroomBytes); err != nil {
			return fmt.Errorf("set rlimit data: %w", err)
		}
	}
	cpuSeconds := uint64((limits.TimeLimitMs+999)/1000) + 1
	if err := unix.Setrlimit(unix.RLIMIT_CPU, &unix.Rlimit{Cur: cpuSeconds, Max: cpuSeconds + 1}); err != nil {
		return fmt.Errorf("set rlimit cpu: %w", err)
	}
	if err := unix.Setrlimit(unix.RLIMIT_CORE, &unix.Rlimit{Cur: 0, Max: 0}); err != nil {
		return fmt.Errorf("set rlimit core: %w", err)
	}
	if err := unix.Setrlimit(unix.RLIMIT_FSIZE, &unix.Rlimit{Cur: 0, Max: 0}); err != nil {
		return fmt.Errorf("set rlimit fsize: %w", err)
	}
	var nofile unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_NOFILE, &nofile); err != nil {
		return fmt.Errorf("get rlimit nofile: %w", err)
	}
	if nofile.Cur > maxOpenFiles {
		nofile.Cur = maxOpenFiles
		if err := unix.Setrlimit(unix.RLIMIT_NOFILE, &nofile); err != nil {
			return fmt.Errorf("set rlimit nofile: %w", err)
		}
	}
	return nil
}

// lowerRlimit sets both limits to value unless the hard limit is already lower.
func lowerRlimit(resource int, value uint64) error {
	var current unix.Rlimit
	if err := unix.Getrlimit(resource, &current); err != nil {
		return err
	}
	if current.Max < value {
		value = current.Max
	}
	return unix.Setrlimit(resource, &unix.Rlimit{Cur: value, Max: value})
}
