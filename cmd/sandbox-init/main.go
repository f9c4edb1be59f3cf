// Command sandbox-init is the isolate helper. The judge service starts one
// process per isolate, writes a single run request to stdin and reads a
// single response from stdout.
package main

import "jsjudge/internal/judge/sandbox/jsvm"

func main() {
	jsvm.Main()
}
