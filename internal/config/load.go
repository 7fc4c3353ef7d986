package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Load builds a Config from defaults, an optional YAML file and
// CRASHCHECK_* environment variables, in increasing priority. An empty
// configPath skips the file.
func Load(configPath, logDir string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	// Environment variable override
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v, NewConfig(logDir))

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// setDefaults registers every key so AutomaticEnv can resolve it during
// Unmarshal.
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("backend", string(d.Backend))
	v.SetDefault("ffprobe_path", d.FFprobePath)
	v.SetDefault("skip_formats", d.SkipFormats)

	v.SetDefault("workers", d.Workers)
	v.SetDefault("scan_timeout", d.ScanTimeout.String())
	v.SetDefault("max_packets", d.MaxPackets)
	v.SetDefault("memory_limit_mb", d.MemoryLimitMB)

	v.SetDefault("log_dir", d.LogDir)
	v.SetDefault("verbose", d.Verbose)
	v.SetDefault("no_log", d.NoLog)
	v.SetDefault("output", string(d.Output))

	v.SetDefault("serve.addr", d.Serve.Addr)
	v.SetDefault("serve.max_upload_mb", d.Serve.MaxUploadMB)
	v.SetDefault("serve.rate_limit", d.Serve.RateLimit)
	v.SetDefault("serve.rate_burst", d.Serve.RateBurst)
	v.SetDefault("serve.metrics_path", d.Serve.MetricsPath)
}
