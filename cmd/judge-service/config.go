package main

import (
	"fmt"
	"os"
	"time"

	"jsjudge/internal/common/cache"
	"jsjudge/internal/judge/repository"
	"jsjudge/internal/judge/sandbox"
	"jsjudge/internal/judge/sandbox/harness"
	"jsjudge/internal/judge/sandbox/isolate"
	"jsjudge/internal/judge/sandbox/jsvm"
	"jsjudge/pkg/utils/logger"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	defaultConfigPath        = "configs/judge_service.yaml"
	defaultHTTPAddr          = "0.0.0.0:8085"
	defaultReadTimeout       = 5 * time.Second
	defaultWriteTimeout      = 60 * time.Second
	defaultIdleTimeout       = 60 * time.Second
	defaultShutdownTimeout   = 10 * time.Second
	defaultSubmissionTimeout = 5 * time.Minute
	defaultStatusTTL         = 30 * time.Minute
	defaultStatusLimit       = 10000

	envConfigPath = "JUDGE_CONFIG"
	envHTTPAddr   = "JUDGE_HTTP_ADDR"
)

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	IdleTimeout  time.Duration `yaml:"idleTimeout"`
	MetricsPath  string        `yaml:"metricsPath"`
}

// JudgeConfig holds submission-level defaults and limits.
type JudgeConfig struct {
	MemoryLimitBytes         int64         `yaml:"memoryLimitBytes"`
	TimeLimitMillis          int64         `yaml:"timeLimitMillis"`
	MaxConcurrentEvaluations int           `yaml:"maxConcurrentEvaluations"`
	MaxSourceLength          int           `yaml:"maxSourceLength"`
	FailFast                 bool          `yaml:"failFast"`
	MaxLogEntries            int           `yaml:"maxLogEntries"`
	MaxLogBytes              int           `yaml:"maxLogBytes"`
	MaxCallStackSize         int           `yaml:"maxCallStackSize"`
	MaxInFlight              int           `yaml:"maxInFlight"`
	SubmissionTimeout        time.Duration `yaml:"submissionTimeout"`
	HarnessCacheSize         int           `yaml:"harnessCacheSize"`
	HarnessCacheTTL          time.Duration `yaml:"harnessCacheTTL"`
}

// StatusConfig holds status retention settings. Statuses live in process
// memory unless a Redis address is configured.
type StatusConfig struct {
	TTL   time.Duration     `yaml:"ttl"`
	Limit int               `yaml:"limit"`
	Redis cache.RedisConfig `yaml:"redis"`
}

// SandboxConfig holds isolate pool settings.
type SandboxConfig struct {
	HelperPath       string        `yaml:"helperPath"`
	MaxLiveIsolates  int           `yaml:"maxLiveIsolates"`
	AcquireTimeout   time.Duration `yaml:"acquireTimeout"`
	KillGrace        time.Duration `yaml:"killGrace"`
	OutputMaxBytes   int64         `yaml:"outputMaxBytes"`
	CgroupRoot       string        `yaml:"cgroupRoot"`
	EnableCgroup     bool          `yaml:"enableCgroup"`
	EnableNamespaces bool          `yaml:"enableNamespaces"`
	DisableNetwork   bool          `yaml:"disableNetwork"`
	SeccompProfile   string        `yaml:"seccompProfile"`
}

// AppConfig holds judge-service config.
type AppConfig struct {
	Server  ServerConfig  `yaml:"server"`
	Logger  logger.Config `yaml:"logger"`
	Judge   JudgeConfig   `yaml:"judge"`
	Status  StatusConfig  `yaml:"status"`
	Sandbox SandboxConfig `yaml:"sandbox"`
	// Events is optional; with brokers set every terminal status is published.
	Events repository.KafkaConfig `yaml:"events"`
}

func loadYAML(path string, out interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file failed: %w", err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse config file failed: %w", err)
	}
	return nil
}

// resolveConfigPath picks the config file: an explicit flag wins, then
// JUDGE_CONFIG from the environment or a local .env file.
func resolveConfigPath(flagValue string) string {
	_ = godotenv.Load()
	if flagValue != "" {
		return flagValue
	}
	if path := os.Getenv(envConfigPath); path != "" {
		return path
	}
	return defaultConfigPath
}

func loadAppConfig(path string) (*AppConfig, error) {
	var cfg AppConfig
	if err := loadYAML(path, &cfg); err != nil {
		return nil, err
	}
	if addr := os.Getenv(envHTTPAddr); addr != "" {
		cfg.Server.Addr = addr
	}
	applyDefaults(&cfg)
	if cfg.Sandbox.EnableCgroup && cfg.Sandbox.CgroupRoot == "" {
		return nil, fmt.Errorf("sandbox cgroupRoot is required when enableCgroup is set")
	}
	if err := jsvm.CheckSeccompProfile(cfg.Sandbox.SeccompProfile); err != nil {
		return nil, fmt.Errorf("sandbox seccompProfile: %w", err)
	}
	if len(cfg.Events.Brokers) > 0 && cfg.Events.Topic == "" {
		return nil, fmt.Errorf("events topic is required when brokers are set")
	}
	if cfg.Judge.TimeLimitMillis < 0 || cfg.Judge.MemoryLimitBytes < 0 {
		return nil, fmt.Errorf("judge limits must not be negative")
	}
	return &cfg, nil
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = defaultHTTPAddr
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = defaultReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = defaultWriteTimeout
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = defaultIdleTimeout
	}
	if cfg.Server.MetricsPath == "" {
		cfg.Server.MetricsPath = "/metrics"
	}
	if cfg.Judge.SubmissionTimeout == 0 {
		cfg.Judge.SubmissionTimeout = defaultSubmissionTimeout
	}
	if cfg.Status.TTL == 0 {
		cfg.Status.TTL = defaultStatusTTL
	}
	if cfg.Status.Limit <= 0 {
		cfg.Status.Limit = defaultStatusLimit
	}
}

func (j JudgeConfig) toWorkerConfig() sandbox.Config {
	return sandbox.Config{
		MaxConcurrentEvaluations: j.MaxConcurrentEvaluations,
		MaxSourceLength:          j.MaxSourceLength,
		TimeLimitMillis:          j.TimeLimitMillis,
		MemoryLimitBytes:         j.MemoryLimitBytes,
		FailFast:                 j.FailFast,
		MaxLogEntries:            j.MaxLogEntries,
		MaxLogBytes:              j.MaxLogBytes,
		MaxCallStackSize:         j.MaxCallStackSize,
	}
}

func (j JudgeConfig) toHarnessConfig() harness.Config {
	return harness.Config{
		MaxSourceLength: j.MaxSourceLength,
		CacheSize:       j.HarnessCacheSize,
		CacheTTL:        j.HarnessCacheTTL,
	}
}

func (s SandboxConfig) toPoolConfig() isolate.Config {
	return isolate.Config{
		HelperPath:       s.HelperPath,
		MaxLive:          s.MaxLiveIsolates,
		AcquireTimeout:   s.AcquireTimeout,
		KillGrace:        s.KillGrace,
		OutputMaxBytes:   s.OutputMaxBytes,
		CgroupRoot:       s.CgroupRoot,
		EnableCgroup:     s.EnableCgroup,
		EnableNamespaces: s.EnableNamespaces,
		DisableNetwork:   s.DisableNetwork,
		SeccompProfile:   s.SeccompProfile,
	}
}
