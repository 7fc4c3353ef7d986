// Package config provides configuration types and defaults for crashcheck.
package config

import (
	"fmt"
	"runtime"
	"strings"
	"time"
)

// Default constants
const (
	// DefaultBackend is the media backend used to open containers.
	DefaultBackend = BackendLibav

	// DefaultFFprobePath is the ffprobe binary looked up on PATH.
	DefaultFFprobePath = "ffprobe"

	// DefaultScanTimeout bounds a single file evaluation. Zero disables it.
	DefaultScanTimeout = 2 * time.Minute

	// DefaultMaxPackets is the per-file video packet cap. Zero means no cap.
	DefaultMaxPackets = 0

	// DefaultMemoryLimitMB is the address space cap. Zero leaves it alone.
	DefaultMemoryLimitMB = 0

	// DefaultOutput is the reporter used by the check command.
	DefaultOutput = OutputTerminal

	// DefaultServeAddr is the listen address of the HTTP service.
	DefaultServeAddr = ":8080"

	// DefaultMaxUploadMB caps request bodies accepted by the HTTP service.
	DefaultMaxUploadMB = 512

	// DefaultRateLimit is the sustained request rate of the HTTP service
	// in requests per second.
	DefaultRateLimit = 10.0

	// DefaultRateBurst is the token bucket size of the HTTP service.
	DefaultRateBurst = 20

	// DefaultMetricsPath is where the HTTP service exposes metrics.
	DefaultMetricsPath = "/metrics"

	// MaxWorkers is the upper bound for concurrent evaluations.
	MaxWorkers = 256

	// EnvPrefix prefixes environment overrides, e.g. CRASHCHECK_BACKEND.
	EnvPrefix = "CRASHCHECK"
)

// DefaultSkipFormats lists demuxer names whose files are reported safe
// without scanning.
var DefaultSkipFormats = []string{"matroska", "webm"}

// Backend selects the media container implementation.
type Backend string

const (
	BackendLibav   Backend = "libav"
	BackendFFprobe Backend = "ffprobe"
)

// ParseBackend parses a string into a Backend.
func ParseBackend(s string) (Backend, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "libav":
		return BackendLibav, nil
	case "ffprobe":
		return BackendFFprobe, nil
	default:
		return "", fmt.Errorf("%w: '%s', valid options: libav, ffprobe", ErrInvalidBackend, s)
	}
}

// String returns the string representation of the backend.
func (b Backend) String() string {
	return string(b)
}

// Output selects how the check command reports.
type Output string

const (
	OutputTerminal Output = "terminal"
	OutputJSON     Output = "json"
)

// ServeConfig holds settings of the HTTP service.
type ServeConfig struct {
	Addr        string  `mapstructure:"addr"`
	MaxUploadMB int64   `mapstructure:"max_upload_mb"`
	RateLimit   float64 `mapstructure:"rate_limit"`
	RateBurst   int     `mapstructure:"rate_burst"`
	MetricsPath string  `mapstructure:"metrics_path"`
}

// Config holds all configuration for checking media files.
type Config struct {
	// Media backend
	Backend     Backend  `mapstructure:"backend"`
	FFprobePath string   `mapstructure:"ffprobe_path"`
	SkipFormats []string `mapstructure:"skip_formats"`

	// Scan limits
	Workers       int           `mapstructure:"workers"`
	ScanTimeout   time.Duration `mapstructure:"scan_timeout"`
	MaxPackets    int           `mapstructure:"max_packets"`
	MemoryLimitMB int64         `mapstructure:"memory_limit_mb"`

	// Logging and output
	LogDir  string `mapstructure:"log_dir"`
	Verbose bool   `mapstructure:"verbose"`
	NoLog   bool   `mapstructure:"no_log"`
	Output  Output `mapstructure:"output"`

	Serve ServeConfig `mapstructure:"serve"`
}

// NewConfig creates a new Config with default values.
func NewConfig(logDir string) *Config {
	return &Config{
		Backend:       DefaultBackend,
		FFprobePath:   DefaultFFprobePath,
		SkipFormats:   append([]string(nil), DefaultSkipFormats...),
		Workers:       DefaultWorkers(),
		ScanTimeout:   DefaultScanTimeout,
		MaxPackets:    DefaultMaxPackets,
		MemoryLimitMB: DefaultMemoryLimitMB,
		LogDir:        logDir,
		Output:        DefaultOutput,
		Serve: ServeConfig{
			Addr:        DefaultServeAddr,
			MaxUploadMB: DefaultMaxUploadMB,
			RateLimit:   DefaultRateLimit,
			RateBurst:   DefaultRateBurst,
			MetricsPath: DefaultMetricsPath,
		},
	}
}

// DefaultWorkers returns the default evaluation concurrency: one per CPU.
func DefaultWorkers() int {
	n := runtime.NumCPU()
	if n < 1 {
		return 1
	}
	return n
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if _, err := ParseBackend(string(c.Backend)); err != nil {
		return err
	}

	if c.Backend == BackendFFprobe && strings.TrimSpace(c.FFprobePath) == "" {
		return fmt.Errorf("%w: ffprobe_path must be set for the ffprobe backend", ErrInvalidBackend)
	}

	if c.Workers < 1 || c.Workers > MaxWorkers {
		return fmt.Errorf("%w: must be 1-%d, got %d", ErrInvalidWorkers, MaxWorkers, c.Workers)
	}

	if c.ScanTimeout < 0 {
		return fmt.Errorf("%w: scan_timeout must not be negative, got %s", ErrInvalidLimit, c.ScanTimeout)
	}

	if c.MaxPackets < 0 {
		return fmt.Errorf("%w: max_packets must not be negative, got %d", ErrInvalidLimit, c.MaxPackets)
	}

	if c.MemoryLimitMB < 0 {
		return fmt.Errorf("%w: memory_limit_mb must not be negative, got %d", ErrInvalidLimit, c.MemoryLimitMB)
	}

	switch c.Output {
	case OutputTerminal, OutputJSON:
	default:
		return fmt.Errorf("%w: '%s', valid options: terminal, json", ErrInvalidOutput, c.Output)
	}

	return c.Serve.Validate()
}

// Validate checks the HTTP service settings.
func (s *ServeConfig) Validate() error {
	if strings.TrimSpace(s.Addr) == "" {
		return fmt.Errorf("%w: addr must be set", ErrInvalidServe)
	}
	if s.MaxUploadMB < 1 {
		return fmt.Errorf("%w: max_upload_mb must be positive, got %d", ErrInvalidServe, s.MaxUploadMB)
	}
	if s.RateLimit <= 0 {
		return fmt.Errorf("%w: rate_limit must be positive, got %g", ErrInvalidServe, s.RateLimit)
	}
	if s.RateBurst < 1 {
		return fmt.Errorf("%w: rate_burst must be positive, got %d", ErrInvalidServe, s.RateBurst)
	}
	if !strings.HasPrefix(s.MetricsPath, "/") {
		return fmt.Errorf("%w: metrics_path must start with '/', got %q", ErrInvalidServe, s.MetricsPath)
	}
	return nil
}

// MaxUploadBytes returns the upload cap in bytes.
func (s *ServeConfig) MaxUploadBytes() int64 {
	return s.MaxUploadMB << 20
}

// MemoryLimitBytes returns the address space cap in bytes, or 0.
func (c *Config) MemoryLimitBytes() uint64 {
	if c.MemoryLimitMB <= 0 {
		return 0
	}
	return uint64(c.MemoryLimitMB) << 20
}
