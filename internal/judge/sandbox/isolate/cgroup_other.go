//go:build !linux

package isolate

import (
	"fmt"
	"os"
)

func createCgroup(root, isolateID string, memoryMaxBytes int64) (string, error) {
	return "", fmt.Errorf("cgroups are only supported on linux")
}

func addProcessToCgroup(cgroupPath string, pid int) error {
	return fmt.Errorf("cgroups are only supported on linux")
}

func killCgroup(cgroupPath string) error {
	return nil
}

func removeCgroup(cgroupPath string) {}

func wasOOMKilled(cgroupPath string) bool {
	return false
}

func peakMemoryBytes(cgroupPath string, state *os.ProcessState) int64 {
	return peakRSSBytes(state)
}
