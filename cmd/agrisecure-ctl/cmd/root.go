package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/agrisecure/internal/config"
	"github.com/oshokin/agrisecure/internal/service/client"
	"github.com/oshokin/agrisecure/internal/version"
)

var (
	// cfgPath stores the configuration file path.
	cfgPath string
	// serverAddress overrides server_addr from the configuration file.
	serverAddress string
	// jsonOutput prints raw responses as JSON.
	jsonOutput bool
	// notes are attached to mutating requests.
	notes string

	// rootCmd represents the base command of the operator CLI.
	rootCmd = &cobra.Command{
		Use:   "agrisecure-ctl",
		Short: "Operate the agrisecure arming and alarm engine.",
		Long: `Arms and disarms nodes and zones, inspects the registry and works alarms
through their lifecycle on a running agrisecure-server.

Every mutating command records the current user and hostname in the audit trail.`,
		SilenceUsage: true,
	}
)

// Execute runs the agrisecure-ctl CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// withSession opens a session for the duration of fn.
func withSession(fn func(ctx context.Context, s *client.Session) error) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	session, err := client.Open(ctx, &client.Options{
		ConfigPath:    cfgPath,
		ServerAddress: serverAddress,
		JSON:          jsonOutput,
	})
	if err != nil {
		return err
	}

	defer func() {
		_ = session.Close()
	}()

	return fn(ctx, session)
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&cfgPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	flags.StringVarP(&serverAddress, "server", "s", "", "server address, overrides server_addr")
	flags.BoolVar(&jsonOutput, "json", false, "print raw responses as JSON")

	rootCmd.AddCommand(
		stateCmd,
		historyCmd,
		armCmd,
		armAllCmd,
		disarmCmd,
		zoneCmd,
		nodesCmd,
		zonesCmd,
		alarmsCmd,
		ackCmd,
		resolveCmd,
		falsePositiveCmd,
		statsCmd,
	)

	for _, c := range []*cobra.Command{armCmd, armAllCmd, disarmCmd, zoneArmCmd, zoneDisarmCmd, ackCmd, resolveCmd, falsePositiveCmd} {
		c.Flags().StringVarP(&notes, "notes", "n", "", "note recorded with the change")
	}

	zoneCmd.AddCommand(zoneArmCmd, zoneDisarmCmd)

	historyCmd.Flags().IntVarP(&historyLimit, "limit", "l", defaultHistoryLimit, "number of entries to show")
	nodesCmd.Flags().BoolVar(&securityOnly, "security", false, "show security nodes only")
	statsCmd.Flags().IntVarP(&windowDays, "days", "d", 0, "window in days, 0 uses the server default")

	alarmsCmd.Flags().StringVar(&alarmFilter.Status, "status", "", "filter by status")
	alarmsCmd.Flags().StringVar(&alarmFilter.Priority, "priority", "", "filter by priority")
	alarmsCmd.Flags().StringVar(&alarmFilter.NodeID, "node", "", "filter by node id")
	alarmsCmd.Flags().DurationVar(&alarmSince, "since", 0, "only alarms triggered within this duration")
	alarmsCmd.Flags().IntVarP(&alarmFilter.Limit, "limit", "l", 0, "maximum number of alarms, 0 for all")
}
