//go:build !linux

package jsvm

import "jsjudge/internal/judge/sandbox/spec"

func applyRlimits(limits spec.Limits) error {
	return nil
}
