package jsvm

import "github.com/dop251/goja"

const truncatedMarker = "... log output truncated"

// logCapture collects console output emitted by the harness. It is only
// called from the goroutine running the VM.
type logCapture struct {
	maxEntries int
	maxBytes   int
	bytes      int
	entries    []string
	truncated  bool
}

func newLogCapture(maxEntries, maxBytes int) *logCapture {
	return &logCapture{maxEntries: maxEntries, maxBytes: maxBytes}
}

// call is installed as __capture(level, text).
func (c *logCapture) call(call goja.FunctionCall) goja.Value {
	level := call.Argument(0).String()
	text := call.Argument(1).String()
	switch level {
	case "warn", "error":
		text = "[" + level + "] " + text
	}
	c.append(text)
	return goja.Undefined()
}

func (c *logCapture) append(line string) {
	if c.truncated {
		return
	}
	if len(c.entries) >= c.maxEntries || c.bytes+len(line) > c.maxBytes {
		c.truncated = true
		c.entries = append(c.entries, truncatedMarker)
		return
	}
	c.bytes += len(line)
	c.entries = append(c.entries, line)
}
