package main

import (
	"github.com/spf13/cobra"

	"github.com/Vzurxy/discord-crasher-checker/internal/backend"
	"github.com/Vzurxy/discord-crasher-checker/internal/config"
	"github.com/Vzurxy/discord-crasher-checker/internal/server"
)

func newServeCmd(gf *globalFlags) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP check service",
		Long: `Serve POST /v1/check, GET /healthz and Prometheus metrics. Uploads are
either a multipart form with a "file" field or the raw request body.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, gf)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("addr") {
				cfg.Serve.Addr = addr
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			runLog, err := setupLogging(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = runLog.Close() }()

			cfg.Workers = applyLimits(cfg, runLog)

			logger := runLog.Structured()
			opener, err := backend.New(cfg, logger)
			if err != nil {
				return err
			}

			runLog.Info("Serving on %s", cfg.Serve.Addr)
			return server.New(cfg, opener, logger).Start(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&addr, "addr", config.DefaultServeAddr, "Listen address")
	return cmd
}
