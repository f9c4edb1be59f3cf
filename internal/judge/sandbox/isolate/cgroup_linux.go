//go:build linux

package isolate

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const isolatePidsMax = "64"

func createCgroup(root, isolateID string, memoryMaxBytes int64) (string, error) {
	if root == "" {
		return "", fmt.Errorf("cgroup root is required")
	}
	path := filepath.Join(root, isolateID)
	if err := os.MkdirAll(path, 0750); err != nil {
		return "", fmt.Errorf("create cgroup path: %w", err)
	}
	limits := []struct{ name, value string }{
		{"memory.max", strconv.FormatInt(memoryMaxBytes, 10)},
		{"memory.swap.max", "0"},
		{"pids.max", isolatePidsMax},
	}
	for _, l := range limits {
		if err := writeCgroupValue(path, l.name, l.value); err != nil {
			_ = os.Remove(path)
			return "", fmt.Errorf("write %s: %w", l.name, err)
		}
	}
	return path, nil
}

func addProcessToCgroup(cgroupPath string, pid int) error {
	if pid <= 0 {
		return fmt.Errorf("invalid pid")
	}
	return writeCgroupValue(cgroupPath, "cgroup.procs", strconv.Itoa(pid))
}

func killCgroup(cgroupPath string) error {
	killPath := filepath.Join(cgroupPath, "cgroup.kill")
	if _, err := os.Stat(killPath); err != nil {
		return err
	}
	return os.WriteFile(killPath, []byte("1"), 0600)
}

// removeCgroup deletes the (now empty) cgroup directory. cgroupfs only
// allows rmdir, so RemoveAll is not used.
func removeCgroup(cgroupPath string) {
	_ = os.Remove(cgroupPath)
}

func wasOOMKilled(cgroupPath string) bool {
	if cgroupPath == "" {
		return false
	}
	data, err := os.ReadFile(filepath.Join(cgroupPath, "memory.events"))
	if err != nil {
		return false
	}
	for _, line := range strings.Split(string(data), "\n") {
		fields := strings.Fields(line)
		if len(fields) == 2 && fields[0] == "oom_kill" {
			val, _ := strconv.ParseInt(fields[1], 10, 64)
			return val > 0
		}
	}
	return false
}

func peakMemoryBytes(cgroupPath string, state *os.ProcessState) int64 {
	if cgroupPath != "" {
		if val, err := readCgroupInt(cgroupPath, "memory.peak"); err == nil && val > 0 {
			return val
		}
	}
	return peakRSSBytes(state)
}

func readCgroupInt(cgroupPath, name string) (int64, error) {
	data, err := os.ReadFile(filepath.Join(cgroupPath, name))
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
}

func writeCgroupValue(cgroupPath, name, value string) error {
	return os.WriteFile(filepath.Join(cgroupPath, name), []byte(value), 0640)
}
