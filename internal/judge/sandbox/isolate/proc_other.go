//go:build !linux

package isolate

import (
	"os"
	"syscall"
)

func buildSysProcAttr(enableNamespaces, disableNetwork bool) *syscall.SysProcAttr {
	return nil
}

func killProcessGroup(proc *os.Process) {
	if proc != nil {
		_ = proc.Kill()
	}
}

func exitSignal(state *os.ProcessState) string {
	return ""
}

func peakRSSBytes(state *os.ProcessState) int64 {
	return 0
}
