// Package isolate manages single-use helper processes that each host exactly
// one JavaScript engine instance.
package isolate

import (
	"context"
	"fmt"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"

	"jsjudge/internal/judge/sandbox/jsvm"
	"jsjudge/internal/judge/sandbox/spec"
	appErr "jsjudge/pkg/errors"
	"jsjudge/pkg/utils/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Pool hands out fresh isolates and bounds how many are alive at once.
type Pool struct {
	cfg    Config
	sem    chan struct{}
	live   atomic.Int64
	closed atomic.Bool

	mu     sync.Mutex
	active map[string]*Isolate
}

// NewPool creates a pool. No helper is started until Acquire.
func NewPool(cfg Config) (*Pool, error) {
	cfg = cfg.withDefaults()
	if cfg.EnableCgroup && cfg.CgroupRoot == "" {
		return nil, fmt.Errorf("cgroup root is required when cgroups are enabled")
	}
	if err := jsvm.CheckSeccompProfile(cfg.SeccompProfile); err != nil {
		return nil, fmt.Errorf("seccomp profile: %w", err)
	}
	return &Pool{
		cfg:    cfg,
		sem:    make(chan struct{}, cfg.MaxLive),
		active: make(map[string]*Isolate),
	}, nil
}

// Acquire starts a fresh helper process capped at memoryLimitBytes. It fails
// with ResourceExhausted when no slot frees up within the acquire timeout or
// the helper cannot be started.
func (p *Pool) Acquire(ctx context.Context, memoryLimitBytes int64) (*Isolate, error) {
	if p.closed.Load() {
		return nil, appErr.New(appErr.ServiceUnavailable).WithMessage("isolate pool is closed")
	}
	if memoryLimitBytes <= 0 {
		memoryLimitBytes = spec.DefaultMemoryLimitBytes
	}
	if memoryLimitBytes < spec.MinMemoryLimitBytes {
		return nil, appErr.ValidationError("memoryLimitBytes", fmt.Sprintf("must be at least %d", spec.MinMemoryLimitBytes))
	}
	if err := p.acquireSlot(ctx); err != nil {
		return nil, err
	}

	iso, err := p.spawn(ctx, memoryLimitBytes)
	if err != nil {
		p.releaseSlot()
		return nil, err
	}
	p.live.Add(1)
	p.mu.Lock()
	p.active[iso.ID] = iso
	p.mu.Unlock()
	return iso, nil
}

// Release disposes iso: the helper's process group is killed, its cgroup
// removed and its slot returned. Releasing twice is a no-op.
func (p *Pool) Release(iso *Isolate) {
	if iso == nil || !iso.disposed.CompareAndSwap(false, true) {
		return
	}
	iso.terminate()
	if iso.cgroupPath != "" {
		removeCgroup(iso.cgroupPath)
	}
	p.mu.Lock()
	delete(p.active, iso.ID)
	p.mu.Unlock()
	p.live.Add(-1)
	p.releaseSlot()
}

// Live returns the number of isolates acquired and not yet released.
func (p *Pool) Live() int64 {
	return p.live.Load()
}

// Close refuses new acquisitions and releases every live isolate.
func (p *Pool) Close() {
	if !p.closed.CompareAndSwap(false, true) {
		return
	}
	p.mu.Lock()
	isolates := make([]*Isolate, 0, len(p.active))
	for _, iso := range p.active {
		isolates = append(isolates, iso)
	}
	p.mu.Unlock()
	for _, iso := range isolates {
		p.Release(iso)
	}
}

func (p *Pool) acquireSlot(ctx context.Context) error {
	timer := time.NewTimer(p.cfg.AcquireTimeout)
	defer timer.Stop()
	select {
	case p.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return appErr.Wrap(ctx.Err(), appErr.GetCode(ctx.Err()))
	case <-timer.C:
		return appErr.ResourceExhaustedError(fmt.Sprintf("no isolate available within %s", p.cfg.AcquireTimeout))
	}
}

func (p *Pool) releaseSlot() {
	select {
	case <-p.sem:
	default:
	}
}

func (p *Pool) spawn(ctx context.Context, memoryLimitBytes int64) (*Isolate, error) {
	iso := &Isolate{
		ID:               uuid.NewString(),
		MemoryLimitBytes: memoryLimitBytes,
		CreatedAt:        time.Now(),
		cfg:              p.cfg,
		exited:           make(chan struct{}),
		stdout:           newLimitedBuffer(p.cfg.OutputMaxBytes),
		stderr:           newLimitedBuffer(defaultStderrMaxBytes),
	}

	if p.cfg.EnableCgroup {
		path, err := createCgroup(p.cfg.CgroupRoot, iso.ID, memoryLimitBytes+cgroupHeadroomBytes)
		if err != nil {
			return nil, appErr.Wrapf(err, appErr.ResourceExhausted, "create isolate cgroup")
		}
		iso.cgroupPath = path
	}

	cmd := exec.Command(p.cfg.HelperPath, p.cfg.HelperArgs...)
	cmd.Env = append([]string{}, p.cfg.HelperEnv...)
	cmd.SysProcAttr = buildSysProcAttr(p.cfg.EnableNamespaces, p.cfg.DisableNetwork)
	cmd.Stdout = iso.stdout
	cmd.Stderr = iso.stderr
	stdin, err := cmd.StdinPipe()
	if err != nil {
		iso.discardCgroup()
		return nil, appErr.Wrapf(err, appErr.ResourceExhausted, "open helper stdin")
	}
	if err := cmd.Start(); err != nil {
		iso.discardCgroup()
		return nil, appErr.Wrapf(err, appErr.ResourceExhausted, "start isolate helper")
	}
	iso.cmd = cmd
	iso.stdin = stdin

	if iso.cgroupPath != "" {
		if err := addProcessToCgroup(iso.cgroupPath, cmd.Process.Pid); err != nil {
			logger.Warn(ctx, "add helper to cgroup failed", zap.String("cgroup", iso.cgroupPath), zap.Error(err))
		}
	}

	go func() {
		iso.waitErr = cmd.Wait()
		close(iso.exited)
	}()
	return iso, nil
}
