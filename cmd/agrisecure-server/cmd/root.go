package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/agrisecure/internal/config"
	"github.com/oshokin/agrisecure/internal/service/server"
	"github.com/oshokin/agrisecure/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string
	// stateFile overrides the JSON state file of the file store.
	stateFile string

	// rootCmd represents the base command for running the agrisecure server.
	rootCmd = &cobra.Command{
		Use:   "agrisecure-server [listen-address]",
		Short: "Run the agrisecure arming and alarm engine.",
		Long: `Starts the agrisecure engine: the gRPC SecurityService, MQTT ingestion of
security events and node heartbeats, and arm/disarm command publication to gateways.

Only the port from server_addr is used for listening (e.g., :50051).
Listen address can be provided as argument to override config (e.g., :9090, 0.0.0.0:50051).
Arm history, alarms, nodes and zones are persisted to the configured store
(a JSON file or PostgreSQL) and recovered across restarts.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			var listenAddress string
			if len(args) > 0 {
				listenAddress = args[0]
			}

			return server.Run(ctx, &server.Options{
				ConfigPath:    configPath,
				ListenAddress: listenAddress,
				StateFile:     stateFile,
			})
		},
	}
)

// Execute runs the agrisecure-server CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.Flags().StringVarP(&stateFile, "state-file", "s", "", "override the JSON state file of the file store")
}
