package isolate

import "time"

const (
	defaultHelperPath     = "sandbox-init"
	defaultMaxLive        = 16
	defaultAcquireTimeout = 2 * time.Second
	defaultKillGrace      = 500 * time.Millisecond
	defaultOutputMaxBytes = 8 << 20
	defaultStderrMaxBytes = 16 << 10
	// cgroupHeadroomBytes covers the helper runtime on top of the script heap.
	cgroupHeadroomBytes = 64 << 20
)

// Config controls how isolates are created and confined.
type Config struct {
	HelperPath string
	HelperArgs []string
	// HelperEnv is the complete helper environment; nothing is inherited.
	HelperEnv      []string
	MaxLive        int
	AcquireTimeout time.Duration
	// KillGrace is added to the run's time limit before the host kills the helper.
	KillGrace        time.Duration
	OutputMaxBytes   int64
	CgroupRoot       string
	EnableCgroup     bool
	EnableNamespaces bool
	DisableNetwork   bool
	SeccompProfile   string
}

func (c Config) withDefaults() Config {
	if c.HelperPath == "" {
		c.HelperPath = defaultHelperPath
	}
	if c.MaxLive <= 0 {
		c.MaxLive = defaultMaxLive
	}
	if c.AcquireTimeout <= 0 {
		c.AcquireTimeout = defaultAcquireTimeout
	}
	if c.KillGrace <= 0 {
		c.KillGrace = defaultKillGrace
	}
	if c.OutputMaxBytes <= 0 {
		c.OutputMaxBytes = defaultOutputMaxBytes
	}
	return c
}
