// Package main provides the CLI entry point for crashcheck.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Vzurxy/discord-crasher-checker/internal/config"
	"github.com/Vzurxy/discord-crasher-checker/internal/logging"
	"github.com/Vzurxy/discord-crasher-checker/internal/util"
)

const (
	appName    = "crashcheck"
	appVersion = "0.1.0"
)

// Process exit statuses of the check command.
const (
	exitSafe   = 0
	exitUnsafe = 1
	exitError  = 2
)

// perCheckMemory is the working set assumed for one open container when
// sizing the worker pool.
const perCheckMemory = 256 << 20

// exitStatusError carries a process exit status out of a command.
type exitStatusError struct {
	status int
}

func (e *exitStatusError) Error() string {
	return fmt.Sprintf("exit status %d", e.status)
}

// globalFlags holds flags shared by every command.
type globalFlags struct {
	configPath  string
	logDir      string
	noLog       bool
	verbose     bool
	backend     string
	ffprobePath string
	workers     int
	memoryLimit int64
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()

	if err == nil {
		return
	}
	var status *exitStatusError
	if errors.As(err, &status) {
		os.Exit(status.status)
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(exitError)
}

func newRootCmd() *cobra.Command {
	return buildRootCmd(&globalFlags{})
}

func buildRootCmd(gf *globalFlags) *cobra.Command {
	root := &cobra.Command{
		Use:           appName,
		Short:         "Detect media files that crash decoders by switching geometry mid-stream",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&gf.configPath, "config", "", "YAML config file")
	pf.StringVar(&gf.logDir, "log-dir", "", "Log directory (default: user cache dir)")
	pf.BoolVar(&gf.noLog, "no-log", false, "Disable log file creation")
	pf.BoolVarP(&gf.verbose, "verbose", "v", false, "Enable verbose output for troubleshooting")
	pf.StringVar(&gf.backend, "backend", string(config.DefaultBackend), "Media backend (libav, ffprobe)")
	pf.StringVar(&gf.ffprobePath, "ffprobe", config.DefaultFFprobePath, "ffprobe binary for the ffprobe backend")
	pf.IntVar(&gf.workers, "workers", config.DefaultWorkers(), "Files checked concurrently")
	pf.Int64Var(&gf.memoryLimit, "memory-limit", config.DefaultMemoryLimitMB, "Address space cap in MiB (0 = none)")

	root.AddCommand(newCheckCmd(gf), newServeCmd(gf), newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s version %s\n", appName, appVersion)
		},
	}
}

// loadConfig reads the config file and environment, then applies the
// flags that were set explicitly on cmd.
func loadConfig(cmd *cobra.Command, gf *globalFlags) (*config.Config, error) {
	logDir := gf.logDir
	if logDir == "" {
		logDir = defaultLogDir()
	}

	cfg, err := config.Load(gf.configPath, logDir)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("log-dir") {
		cfg.LogDir = gf.logDir
	}
	if flags.Changed("no-log") {
		cfg.NoLog = gf.noLog
	}
	if flags.Changed("verbose") {
		cfg.Verbose = gf.verbose
	}
	if flags.Changed("backend") {
		b, err := config.ParseBackend(gf.backend)
		if err != nil {
			return nil, err
		}
		cfg.Backend = b
	}
	if flags.Changed("ffprobe") {
		cfg.FFprobePath = gf.ffprobePath
	}
	if flags.Changed("workers") {
		cfg.Workers = gf.workers
	}
	if flags.Changed("memory-limit") {
		cfg.MemoryLimitMB = gf.memoryLimit
	}

	return cfg, nil
}

func defaultLogDir() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return filepath.Join(".", "logs")
	}
	return filepath.Join(dir, appName, "logs")
}

// applyLimits installs the memory cap and sizes the worker pool so every
// worker fits in available memory and under the cap.
func applyLimits(cfg *config.Config, runLog *logging.RunLog) int {
	limit := cfg.MemoryLimitBytes()
	if limit > 0 {
		if !util.MemoryLimitSupported {
			runLog.Warn("Memory limit is not supported on this platform, ignoring --memory-limit")
		} else if err := util.SetMemoryLimit(limit); err != nil {
			runLog.Warn("Could not apply memory limit: %v", err)
		} else {
			runLog.Info("Address space limited to %s", util.FormatBytes(limit))
		}
	}

	workers := util.MaxWorkersForMemory(cfg.Workers, perCheckMemory, 0.75)
	if limit > 0 {
		workers = max(min(workers, int(limit/perCheckMemory)), 1)
	}
	if workers != cfg.Workers {
		runLog.Info("Workers reduced from %d to %d to fit memory", cfg.Workers, workers)
	}
	return workers
}

// setupLogging opens the run log and points the global structured logger
// at it.
func setupLogging(cfg *config.Config) (*logging.RunLog, error) {
	runLog, err := logging.Setup(cfg.LogDir, cfg.Verbose, cfg.NoLog)
	if err != nil {
		return nil, fmt.Errorf("failed to setup logging: %w", err)
	}
	logging.SetGlobal(runLog.Structured())

	info := util.GetSystemInfo()
	runLog.Info("Host: %s (%s/%s), %d logical cores", info.Hostname, info.OS, info.Arch, info.NumCPU)
	runLog.Info("Backend: %s, workers: %d, scan timeout: %s", cfg.Backend, cfg.Workers, cfg.ScanTimeout)
	return runLog, nil
}
