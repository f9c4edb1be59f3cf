package isolate

import (
	"context"
	"encoding/json"
	"io"
	"os/exec"
	"sync/atomic"
	"time"

	"jsjudge/internal/judge/sandbox/spec"
	appErr "jsjudge/pkg/errors"
	"jsjudge/pkg/utils/logger"

	"go.uber.org/zap"
)

var (
	ErrIsolateDisposed = appErr.New(appErr.IsolateDisposed).WithMessage("isolate has been disposed")
	ErrIsolateUsed     = appErr.New(appErr.IsolateDisposed).WithMessage("isolate has already run a script")
)

// Isolate is one helper process. It runs at most one script and is never
// reused; Pool.Release must be called when the caller is done with it.
type Isolate struct {
	ID               string
	MemoryLimitBytes int64
	CreatedAt        time.Time

	cfg        Config
	cmd        *exec.Cmd
	stdin      io.WriteCloser
	stdout     *limitedBuffer
	stderr     *limitedBuffer
	cgroupPath string
	exited     chan struct{}
	waitErr    error

	used     atomic.Bool
	disposed atomic.Bool
}

// Exit is the raw account of one helper run. Interpreting it is the runner's job.
type Exit struct {
	// Response is nil when the helper died without writing a decodable reply.
	Response        *spec.RunResponse
	TimedOut        bool
	Canceled        bool
	OOMKilled       bool
	OutputTruncated bool
	ExitCode        int
	Signal          string
	Stderr          string
	WallTime        time.Duration
	PeakMemoryBytes int64
}

// Run sends req to the helper and waits for it to finish, be killed at
// req's time limit plus the kill grace, or be killed because ctx ended.
func (i *Isolate) Run(ctx context.Context, req spec.RunRequest) (Exit, error) {
	if i.disposed.Load() {
		return Exit{}, ErrIsolateDisposed
	}
	if !i.used.CompareAndSwap(false, true) {
		return Exit{}, ErrIsolateUsed
	}

	req.Limits = req.Limits.WithDefaults()
	req.Limits.MemoryLimitBytes = i.MemoryLimitBytes
	if req.Isolation.SeccompProfile == "" {
		req.Isolation.SeccompProfile = i.cfg.SeccompProfile
	}

	start := time.Now()
	go func() {
		err := json.NewEncoder(i.stdin).Encode(req)
		_ = i.stdin.Close()
		if err != nil {
			logger.Debug(ctx, "write isolate request failed", zap.String("isolate_id", i.ID), zap.Error(err))
		}
	}()

	deadline := time.NewTimer(req.Limits.TimeLimit() + i.cfg.KillGrace)
	defer deadline.Stop()

	var exit Exit
	select {
	case <-i.exited:
	case <-deadline.C:
		exit.TimedOut = true
		i.kill()
		<-i.exited
	case <-ctx.Done():
		exit.Canceled = true
		i.kill()
		<-i.exited
	}
	exit.WallTime = time.Since(start)

	state := i.cmd.ProcessState
	if state != nil {
		exit.ExitCode = state.ExitCode()
		exit.Signal = exitSignal(state)
	} else {
		exit.ExitCode = -1
	}
	exit.PeakMemoryBytes = peakMemoryBytes(i.cgroupPath, state)
	exit.OOMKilled = wasOOMKilled(i.cgroupPath)
	exit.OutputTruncated = i.stdout.Truncated()
	exit.Stderr = i.stderr.String()

	if !exit.OutputTruncated && i.stdout.Len() > 0 {
		var resp spec.RunResponse
		if err := json.Unmarshal(i.stdout.Bytes(), &resp); err == nil {
			exit.Response = &resp
		}
	}
	if exit.Response == nil && exit.Stderr != "" {
		logger.Warn(ctx, "isolate helper exited without a response",
			zap.String("isolate_id", i.ID),
			zap.Int("exit_code", exit.ExitCode),
			zap.String("stderr", exit.Stderr),
		)
	}
	return exit, nil
}

// terminate kills the helper if it is still running and waits for it to be reaped.
func (i *Isolate) terminate() {
	if i.cmd == nil {
		return
	}
	select {
	case <-i.exited:
		return
	default:
	}
	i.kill()
	_ = i.stdin.Close()
	<-i.exited
}

func (i *Isolate) kill() {
	if i.cgroupPath != "" {
		_ = killCgroup(i.cgroupPath)
	}
	killProcessGroup(i.cmd.Process)
}

func (i *Isolate) discardCgroup() {
	if i.cgroupPath != "" {
		removeCgroup(i.cgroupPath)
		i.cgroupPath = ""
	}
}
