// Package jsvm runs one harness script inside the sandbox helper process.
// Apart from CheckSeccompProfile, nothing in this package is executed in the
// judge service itself.
package jsvm

import (
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"jsjudge/internal/judge/sandbox/spec"

	"github.com/dop251/goja"
)

const (
	captureBinding = "__capture"
	inputBinding   = "__input"
	scriptName     = "harness.js"
)

const stackOverflowMessage = "RangeError: Maximum call stack size exceeded"

var (
	errTimeLimit   = errors.New("time limit exceeded")
	errMemoryLimit = errors.New("memory limit exceeded")
)

// Execute compiles and runs req.Script in a fresh goja runtime. The only host
// values reachable from the script are the log-capture callback and a string
// copy of req.Input.
func Execute(req spec.RunRequest) spec.RunResponse {
	limits := req.Limits.WithDefaults()
	debug.SetMemoryLimit(limits.MemoryLimitBytes)

	logs := newLogCapture(limits.MaxLogEntries, limits.MaxLogBytes)
	resp := run(req.Script, req.Input, limits, logs)
	resp.Logs = logs.entries
	resp.LogsTruncated = logs.truncated
	if resp.Logs == nil {
		resp.Logs = []string{}
	}
	return resp
}

func run(script, input string, limits spec.Limits, logs *logCapture) (resp spec.RunResponse) {
	prg, err := goja.Compile(scriptName, script, false)
	if err != nil {
		return spec.RunResponse{Fault: spec.FaultRuntimeError, Message: syntaxMessage(err)}
	}

	vm := goja.New()
	vm.SetMaxCallStackSize(limits.MaxCallStackSize)
	if err := vm.Set(captureBinding, logs.call); err != nil {
		return spec.RunResponse{Fault: spec.FaultInternal, Message: fmt.Sprintf("install capture: %v", err)}
	}
	if err := vm.Set(inputBinding, input); err != nil {
		return spec.RunResponse{Fault: spec.FaultInternal, Message: fmt.Sprintf("install input: %v", err)}
	}

	deadline := time.AfterFunc(limits.TimeLimit(), func() {
		vm.Interrupt(errTimeLimit)
	})
	watch := startWatchdog(limits.MemoryLimitBytes, defaultWatchInterval, func() {
		vm.Interrupt(errMemoryLimit)
	})

	start := time.Now()
	defer func() {
		deadline.Stop()
		resp.PeakHeapBytes = watch.stop()
		resp.WallTimeMs = time.Since(start).Milliseconds()
		if r := recover(); r != nil {
			resp = spec.RunResponse{
				Fault:         spec.FaultRuntimeError,
				Message:       fmt.Sprintf("panic: %v", r),
				WallTimeMs:    time.Since(start).Milliseconds(),
				PeakHeapBytes: resp.PeakHeapBytes,
			}
		}
	}()

	value, err := vm.RunProgram(prg)
	if err != nil {
		return faultResponse(err)
	}
	return decodeEnvelope(value)
}

func faultResponse(err error) spec.RunResponse {
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		switch interrupted.Value() {
		case errTimeLimit:
			return spec.RunResponse{Fault: spec.FaultTimeout, Message: errTimeLimit.Error()}
		case errMemoryLimit:
			return spec.RunResponse{Fault: spec.FaultMemoryExceeded, Message: errMemoryLimit.Error()}
		}
		return spec.RunResponse{Fault: spec.FaultRuntimeError, Message: interrupted.Error()}
	}
	var overflow *goja.StackOverflowError
	if errors.As(err, &overflow) {
		return spec.RunResponse{Fault: spec.FaultRuntimeError, Message: stackOverflowMessage}
	}
	var exception *goja.Exception
	if errors.As(err, &exception) {
		if v := exception.Value(); v != nil {
			return spec.RunResponse{Fault: spec.FaultRuntimeError, Message: v.String()}
		}
		return spec.RunResponse{Fault: spec.FaultRuntimeError, Message: exception.Error()}
	}
	return spec.RunResponse{Fault: spec.FaultRuntimeError, Message: err.Error()}
}

func syntaxMessage(err error) string {
	msg := err.Error()
	if strings.HasPrefix(msg, "SyntaxError") {
		return msg
	}
	return "SyntaxError: " + msg
}

// decodeEnvelope reads the {ok, value, kind, message} object the harness returns.
func decodeEnvelope(value goja.Value) spec.RunResponse {
	if value == nil || goja.IsUndefined(value) || goja.IsNull(value) {
		return spec.RunResponse{Fault: spec.FaultInternal, Message: "harness returned no envelope"}
	}
	envelope, ok := value.Export().(map[string]interface{})
	if !ok {
		return spec.RunResponse{Fault: spec.FaultInternal, Message: "harness envelope is not an object"}
	}
	if okFlag, _ := envelope["ok"].(bool); okFlag {
		serialized, isString := envelope["value"].(string)
		if !isString {
			return spec.RunResponse{Fault: spec.FaultTypeMismatch, Message: "return value is not serializable"}
		}
		return spec.RunResponse{ReturnValue: &serialized}
	}
	kind, _ := envelope["kind"].(string)
	message, _ := envelope["message"].(string)
	switch kind {
	case spec.FaultTypeMismatch, spec.FaultRuntimeError:
		return spec.RunResponse{Fault: kind, Message: message}
	default:
		return spec.RunResponse{Fault: spec.FaultInternal, Message: fmt.Sprintf("unknown envelope kind %q", kind)}
	}
}
