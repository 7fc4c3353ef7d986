package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/Vzurxy/discord-crasher-checker/internal/backend"
	"github.com/Vzurxy/discord-crasher-checker/internal/config"
	"github.com/Vzurxy/discord-crasher-checker/internal/detector"
	"github.com/Vzurxy/discord-crasher-checker/internal/discovery"
	"github.com/Vzurxy/discord-crasher-checker/internal/processing"
	"github.com/Vzurxy/discord-crasher-checker/internal/reporter"
)

// checkFlags holds flags of the check command.
type checkFlags struct {
	timeout    time.Duration
	maxPackets int
	json       bool
	skip       []string
}

func newCheckCmd(gf *globalFlags) *cobra.Command {
	cf := &checkFlags{}

	cmd := &cobra.Command{
		Use:   "check <path>...",
		Short: "Check files or directories of videos",
		Long: `Check media files for decoder geometry changes hidden behind DTS
cadence breaks. Directories are expanded to the video files they contain.

Exit status is 0 when every file is safe, 1 when any file is unsafe and 2
when a file could not be checked and none was unsafe.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, gf)
			if err != nil {
				return err
			}
			if err := applyCheckFlags(cmd, cf, cfg); err != nil {
				return err
			}
			return runCheck(cmd, cfg, args)
		},
	}

	f := cmd.Flags()
	f.DurationVar(&cf.timeout, "timeout", config.DefaultScanTimeout, "Per-file scan deadline (0 = none)")
	f.IntVar(&cf.maxPackets, "max-packets", config.DefaultMaxPackets, "Stop after this many video packets (0 = whole stream)")
	f.BoolVar(&cf.json, "json", false, "Emit NDJSON events instead of terminal output")
	f.StringSliceVar(&cf.skip, "skip-formats", config.DefaultSkipFormats, "Container formats reported safe without scanning")
	return cmd
}

func applyCheckFlags(cmd *cobra.Command, cf *checkFlags, cfg *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("timeout") {
		cfg.ScanTimeout = cf.timeout
	}
	if flags.Changed("max-packets") {
		cfg.MaxPackets = cf.maxPackets
	}
	if flags.Changed("json") && cf.json {
		cfg.Output = config.OutputJSON
	}
	if flags.Changed("skip-formats") {
		cfg.SkipFormats = append([]string{}, cf.skip...)
	}
	return cfg.Validate()
}

func runCheck(cmd *cobra.Command, cfg *config.Config, inputs []string) error {
	runLog, err := setupLogging(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = runLog.Close() }()

	workers := applyLimits(cfg, runLog)

	found, err := discovery.ExpandInputs(inputs, runLog)
	if err != nil {
		return err
	}

	var rep reporter.Reporter
	if cfg.Output == config.OutputJSON {
		rep = reporter.NewJSONReporterWithWriter(cmd.OutOrStdout())
	} else {
		rep = reporter.NewTerminalReporter(cfg.Verbose)
	}
	for _, derr := range found.Errors {
		runLog.Warn("%v", derr)
		rep.Warning(derr.Error())
	}

	opener, err := backend.New(cfg, runLog.Structured())
	if err != nil {
		return err
	}

	batch := processing.CheckFiles(cmd.Context(), opener, found.Files, processing.Options{
		Timeout: cfg.ScanTimeout,
		Workers: workers,
		Backend: cfg.Backend.String(),
		Detector: detector.Options{
			SkipFormats: cfg.SkipFormats,
			MaxPackets:  cfg.MaxPackets,
		},
		Logger: runLog.Structured(),
	}, rep)

	for _, r := range batch.Files {
		switch {
		case r.Err != nil:
			runLog.Error("%s: %v (code %d)", r.Path, r.Err, r.Code)
		case r.Unsafe():
			runLog.Info("%s: unsafe at frame %d (%s -> %s)", r.Path,
				r.Result.AnomalyFrame, r.Result.Expected, r.Result.Observed)
		default:
			runLog.Debug("%s: safe", r.Path)
		}
	}
	runLog.Info("Checked %d files: %d safe, %d unsafe, %d failed in %s",
		len(batch.Files), batch.Safe, batch.Unsafe, batch.Failed, batch.Duration)

	if status := exitStatus(batch); status != exitSafe {
		return &exitStatusError{status: status}
	}
	return nil
}

// exitStatus maps a batch to the process exit status. Unsafe wins over
// errors.
func exitStatus(batch *processing.BatchResult) int {
	switch {
	case batch.HasUnsafe():
		return exitUnsafe
	case batch.HasErrors():
		return exitError
	default:
		return exitSafe
	}
}
