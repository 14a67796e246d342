package main

import (
	"abtest/adapters/api"
	"abtest/app"
	"abtest/internal"
	"abtest/internal/config"

	"github.com/spf13/cobra"
)

func newServeCmd(logger *internal.Logger) *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve POST /v1/analyze and GET /healthz",
		Long: `Start the HTTP API. At most MAX_CONCURRENT_RUNS analyses run at once; excess requests get 429.

Example: abtest serve --port 8080`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if port != "" {
				cfg.Server.Port = port
			}

			svc, err := app.NewAnalysisService(cfg, logger)
			if err != nil {
				return err
			}
			server := api.NewServer(svc, cfg.Server, logger)
			return server.ListenAndServe(cmd.Context(), ":"+cfg.Server.Port)
		},
	}

	cmd.Flags().StringVar(&port, "port", "", "Listen port (overrides PORT)")
	return cmd
}
