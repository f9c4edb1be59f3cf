package jsvm

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"jsjudge/internal/judge/sandbox/spec"
)

// maxRequestBytes bounds what the helper is willing to decode from its parent.
const maxRequestBytes = 16 << 20

// Serve decodes one RunRequest from r, executes it and writes one RunResponse to w.
// Helper-side failures are reported as FaultInternal and also returned.
func Serve(r io.Reader, w io.Writer) error {
	req, err := decodeRequest(r)
	if err != nil {
		writeResponse(w, spec.RunResponse{Fault: spec.FaultInternal, Message: err.Error(), Logs: []string{}})
		return err
	}
	if err := applyRlimits(req.Limits.WithDefaults()); err != nil {
		writeResponse(w, spec.RunResponse{Fault: spec.FaultInternal, Message: err.Error(), Logs: []string{}})
		return err
	}
	if req.Isolation.SeccompProfile != "" {
		if err := applySeccomp(req.Isolation.SeccompProfile); err != nil {
			writeResponse(w, spec.RunResponse{Fault: spec.FaultInternal, Message: err.Error(), Logs: []string{}})
			return err
		}
	}
	return writeResponse(w, Execute(req))
}

// Main is the entrypoint of the sandbox-init helper binary.
func Main() {
	if err := Serve(os.Stdin, os.Stdout); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
	os.Exit(0)
}

func decodeRequest(r io.Reader) (spec.RunRequest, error) {
	dec := json.NewDecoder(io.LimitReader(r, maxRequestBytes))
	var req spec.RunRequest
	if err := dec.Decode(&req); err != nil {
		return spec.RunRequest{}, fmt.Errorf("decode request: %w", err)
	}
	if req.Script == "" {
		return spec.RunRequest{}, fmt.Errorf("script is required")
	}
	return req, nil
}

func writeResponse(w io.Writer, resp spec.RunResponse) error {
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		return fmt.Errorf("encode response: %w", err)
	}
	return nil
}
