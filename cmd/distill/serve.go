package main

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/distill/internal/config"
	"github.com/jackzampolin/distill/internal/server"
)

var (
	serveHost string
	servePort string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the distill server",
	Long: `Start the distill HTTP server.

The server provides:
  - POST /extract         - Run the extraction pipeline
  - POST /analyze-schema  - Report schema complexity and strategy
  - GET  /health          - Server and provider health
  - GET  /calls           - Recorded LLM calls

Examples:
  distill serve                    # Start on the configured address
  distill serve --port 3000        # Start on a custom port
  distill serve --host 0.0.0.0     # Bind to all interfaces`,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := newLogger()

		mgr, err := config.NewManager(cfgFile)
		if err != nil {
			return err
		}
		cfg := mgr.Get()

		host := serveHost
		if host == "" {
			host = cfg.Server.Host
		}
		port := servePort
		if port == "" {
			port = strconv.Itoa(cfg.Server.Port)
		}

		srv, err := server.New(server.Config{
			Host:          host,
			Port:          port,
			ConfigManager: mgr,
			Logger:        logger,
		})
		if err != nil {
			return err
		}

		// Start server (blocks until shutdown)
		return srv.Start(cmd.Context())
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "", "Host to bind to (default from config)")
	serveCmd.Flags().StringVar(&servePort, "port", "", "Port to listen on (default from config)")

	rootCmd.AddCommand(serveCmd)
}
