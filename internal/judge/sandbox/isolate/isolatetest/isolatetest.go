// Package isolatetest lets a test binary double as the sandbox helper.
//
// Call MaybeRunHelper first thing in TestMain; Config then points a pool at
// the running test binary.
package isolatetest

import (
	"fmt"
	"os"
	"time"

	"jsjudge/internal/judge/sandbox/isolate"
	"jsjudge/internal/judge/sandbox/jsvm"
)

const modeEnv = "JSJUDGE_ISOLATE_HELPER_MODE"

// Helper behaviours selectable through Config.
const (
	ModeServe   = "serve"
	ModeCrash   = "crash"
	ModeOOM     = "oom"
	ModeHang    = "hang"
	ModeGarbage = "garbage"
)

// MaybeRunHelper turns the current process into a helper when the mode
// variable is set. It does not return in that case.
func MaybeRunHelper() {
	switch os.Getenv(modeEnv) {
	case "":
		return
	case ModeServe:
		jsvm.Main()
	case ModeCrash:
		_, _ = fmt.Fprintln(os.Stderr, "panic: helper exploded")
		os.Exit(2)
	case ModeOOM:
		_, _ = fmt.Fprintln(os.Stderr, "fatal error: runtime: out of memory")
		os.Exit(2)
	case ModeHang:
		time.Sleep(time.Hour)
	case ModeGarbage:
		_, _ = fmt.Fprintln(os.Stdout, "this is not json")
	}
	os.Exit(0)
}

// Config returns a pool config whose helper is the current test binary in mode.
func Config(mode string) isolate.Config {
	exe, err := os.Executable()
	if err != nil {
		exe = os.Args[0]
	}
	return isolate.Config{
		HelperPath:     exe,
		HelperEnv:      []string{modeEnv + "=" + mode},
		MaxLive:        4,
		AcquireTimeout: 500 * time.Millisecond,
		KillGrace:      200 * time.Millisecond,
	}
}
