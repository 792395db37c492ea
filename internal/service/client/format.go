package client

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"text/tabwriter"
	"time"

	pb "github.com/oshokin/agrisecure/internal/pb/v1"
)

const (
	// unknownValue is printed for missing fields.
	unknownValue = "-"
	// tabPadding separates table columns.
	tabPadding = 2
)

// formatArmState renders an arm state on one line.
func formatArmState(state *pb.ArmState) string {
	if state == nil {
		return "<nil state>"
	}

	nodes := "none"
	if len(state.ArmedNodes) > 0 {
		nodes = strings.Join(state.ArmedNodes, ", ")
	}

	return fmt.Sprintf("%s [%s] v%d by %s (%s)",
		state.Mode, nodes, state.Version, formatActor(state.ChangedBy), formatTimePtr(state.ChangedAt))
}

// formatActor renders username@hostname.
func formatActor(actor *pb.SystemActor) string {
	if actor == nil {
		return "<unknown>"
	}

	if actor.Hostname == "" {
		return actor.Username
	}

	return fmt.Sprintf("%s@%s", actor.Username, actor.Hostname)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return unknownValue
	}

	return t.Local().Format(time.RFC3339)
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return unknownValue
	}

	return formatTime(*t)
}

func formatInt(v *int) string {
	if v == nil {
		return unknownValue
	}

	return fmt.Sprint(*v)
}

func newTable(w io.Writer, header ...string) *tabwriter.Writer {
	tw := tabwriter.NewWriter(w, 0, 0, tabPadding, ' ', 0)
	_, _ = fmt.Fprintln(tw, strings.Join(header, "\t"))

	return tw
}

func writeRow(tw *tabwriter.Writer, cols ...string) {
	_, _ = fmt.Fprintln(tw, strings.Join(cols, "\t"))
}

func writeHistory(w io.Writer, states []*pb.ArmState) {
	tw := newTable(w, "VERSION", "MODE", "PREVIOUS", "NODES", "SOURCE", "BY", "AT", "NOTES")

	for _, state := range states {
		writeRow(tw,
			fmt.Sprint(state.Version),
			state.Mode,
			state.PreviousMode,
			strings.Join(state.ArmedNodes, ","),
			state.Source,
			formatActor(state.ChangedBy),
			formatTimePtr(state.ChangedAt),
			state.Notes,
		)
	}

	_ = tw.Flush()
}

func writeNodes(w io.Writer, nodes []*pb.Node) {
	tw := newTable(w, "ID", "NAME", "TYPE", "STATUS", "ARMED", "BATTERY", "SIGNAL", "LAST SEEN")

	for _, node := range nodes {
		battery, signal := unknownValue, unknownValue
		if node.Telemetry != nil {
			battery = formatInt(node.Telemetry.BatteryLevel)
			signal = formatInt(node.Telemetry.SignalStrength)
		}

		status := node.Status
		if !node.Active {
			status += " (inactive)"
		}

		writeRow(tw,
			node.ID,
			node.Name,
			node.Type,
			status,
			fmt.Sprint(node.IsArmed),
			battery,
			signal,
			formatTimePtr(node.LastSeen),
		)
	}

	_ = tw.Flush()
}

func writeZones(w io.Writer, zones []*pb.Zone) {
	tw := newTable(w, "ID", "NAME", "ARMED", "MEMBERS")

	for _, zone := range zones {
		writeRow(tw, zone.ID, zone.Name, fmt.Sprint(zone.Armed), strings.Join(zone.MemberNodeIDs, ","))
	}

	_ = tw.Flush()
}

func writeAlarms(w io.Writer, list []*pb.Alarm) {
	tw := newTable(w, "ID", "NODE", "CLASS", "PRIORITY", "STATUS", "TRIGGERED", "ACKNOWLEDGED", "RESOLVED")

	for _, alarm := range list {
		writeRow(tw,
			alarm.ID,
			alarm.NodeID,
			alarm.Classification,
			alarm.PriorityLabel,
			alarm.Status,
			formatTime(alarm.TriggeredAt),
			formatTimePtr(alarm.AcknowledgedAt),
			formatTimePtr(alarm.ResolvedAt),
		)
	}

	_ = tw.Flush()
}

func writeStatistics(w io.Writer, summary *pb.Statistics) {
	_, _ = fmt.Fprintf(w, "Window: last %d days (since %s)\n", summary.WindowDays, formatTime(summary.From))
	_, _ = fmt.Fprintf(w, "Total: %d, open: %d, false positive rate: %.1f%%\n",
		summary.Total, summary.Open, summary.FalsePositiveRate*100) //nolint:mnd // Percent.

	if summary.AverageResponseSeconds != nil {
		response := time.Duration(*summary.AverageResponseSeconds * float64(time.Second))
		_, _ = fmt.Fprintf(w, "Average response: %s\n", response)
	} else {
		_, _ = fmt.Fprintf(w, "Average response: %s\n", unknownValue)
	}

	writeCounts(w, "By status", summary.ByStatus)
	writeCounts(w, "By priority", summary.ByPriority)
	writeCounts(w, "By classification", summary.ByClassification)
}

func writeCounts(w io.Writer, title string, counts map[string]int) {
	parts := make([]string, 0, len(counts))
	for _, key := range slices.Sorted(maps.Keys(counts)) {
		parts = append(parts, fmt.Sprintf("%s=%d", key, counts[key]))
	}

	_, _ = fmt.Fprintf(w, "%s: %s\n", title, strings.Join(parts, " "))
}
