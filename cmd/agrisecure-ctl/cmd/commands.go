package cmd

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	pb "github.com/oshokin/agrisecure/internal/pb/v1"
	"github.com/oshokin/agrisecure/internal/service/client"
)

// defaultHistoryLimit is the number of history entries shown by default.
const defaultHistoryLimit = 10

var (
	// historyLimit is the number of history entries to show.
	historyLimit int
	// securityOnly restricts nodes to security nodes.
	securityOnly bool
	// windowDays is the statistics window.
	windowDays int
	// alarmFilter holds the alarm list filters.
	alarmFilter pb.ListAlarmsRequest
	// alarmSince converts to alarmFilter.From.
	alarmSince time.Duration

	stateCmd = &cobra.Command{
		Use:   "state",
		Short: "Show the current arm state.",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return withSession(func(ctx context.Context, s *client.Session) error {
				return s.State(ctx)
			})
		},
	}

	historyCmd = &cobra.Command{
		Use:   "history",
		Short: "Show the arming history, newest first.",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return withSession(func(ctx context.Context, s *client.Session) error {
				return s.History(ctx, historyLimit)
			})
		},
	}

	armCmd = &cobra.Command{
		Use:   "arm <mode> <node-id>...",
		Short: "Arm exactly the given nodes in away, home or night mode.",
		Args:  cobra.MinimumNArgs(2), //nolint:mnd // Mode plus at least one node.
		RunE: func(_ *cobra.Command, args []string) error {
			return withSession(func(ctx context.Context, s *client.Session) error {
				return s.Arm(ctx, args[0], args[1:], notes)
			})
		},
	}

	armAllCmd = &cobra.Command{
		Use:   "arm-all <mode>",
		Short: "Arm every eligible node.",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return withSession(func(ctx context.Context, s *client.Session) error {
				return s.ArmAll(ctx, args[0], notes)
			})
		},
	}

	disarmCmd = &cobra.Command{
		Use:   "disarm",
		Short: "Disarm every node.",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return withSession(func(ctx context.Context, s *client.Session) error {
				return s.Disarm(ctx, notes)
			})
		},
	}

	zoneCmd = &cobra.Command{
		Use:   "zone",
		Short: "Arm or disarm the members of a zone.",
	}

	zoneArmCmd = &cobra.Command{
		Use:   "arm <zone-id>",
		Short: "Add the zone members to the armed set in the current mode.",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return withSession(func(ctx context.Context, s *client.Session) error {
				return s.ArmZone(ctx, args[0], notes)
			})
		},
	}

	zoneDisarmCmd = &cobra.Command{
		Use:   "disarm <zone-id>",
		Short: "Remove the zone members from the armed set.",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return withSession(func(ctx context.Context, s *client.Session) error {
				return s.DisarmZone(ctx, args[0], notes)
			})
		},
	}

	nodesCmd = &cobra.Command{
		Use:   "nodes",
		Short: "List registered nodes with their armed flag.",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return withSession(func(ctx context.Context, s *client.Session) error {
				return s.Nodes(ctx, securityOnly)
			})
		},
	}

	zonesCmd = &cobra.Command{
		Use:   "zones",
		Short: "List zones with their armed flag.",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return withSession(func(ctx context.Context, s *client.Session) error {
				return s.Zones(ctx)
			})
		},
	}

	alarmsCmd = &cobra.Command{
		Use:   "alarms",
		Short: "List alarms, newest first.",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			req := alarmFilter
			if alarmSince > 0 {
				from := time.Now().Add(-alarmSince)
				req.From = &from
			}

			return withSession(func(ctx context.Context, s *client.Session) error {
				return s.Alarms(ctx, &req)
			})
		},
	}

	ackCmd = &cobra.Command{
		Use:   "ack <alarm-id>",
		Short: "Acknowledge an active alarm.",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return withSession(func(ctx context.Context, s *client.Session) error {
				return s.Acknowledge(ctx, args[0], notes)
			})
		},
	}

	resolveCmd = &cobra.Command{
		Use:   "resolve <alarm-id>",
		Short: "Resolve an open alarm.",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return withSession(func(ctx context.Context, s *client.Session) error {
				return s.Resolve(ctx, args[0], notes)
			})
		},
	}

	falsePositiveCmd = &cobra.Command{
		Use:   "false-positive <alarm-id>",
		Short: "Mark an open alarm as a false positive.",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return withSession(func(ctx context.Context, s *client.Session) error {
				return s.FalsePositive(ctx, args[0], notes)
			})
		},
	}

	statsCmd = &cobra.Command{
		Use:   "stats",
		Short: "Show alarm statistics.",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return withSession(func(ctx context.Context, s *client.Session) error {
				return s.Stats(ctx, windowDays)
			})
		},
	}
)
