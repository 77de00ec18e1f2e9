package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
	"github.com/xela07ax/nft-agents-console/internal/audit"
)

func newDashboardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "Show agent, target, run and capability totals",
		RunE: func(cmd *cobra.Command, args []string) error {
			console, err := consoleFrom(cmd)
			if err != nil {
				return err
			}
			d := console.Catalogs.Dashboard()
			if asJSON(cmd) {
				return printJSON(cmd, d)
			}
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "Agents:       %d (inferences %d, avg success %.1f%%)\n",
				d.Agents.Total, d.Agents.TotalInferences, d.Agents.AverageSuccessRate)
			printCounts(cmd, stringCounts(d.Agents.ByStatus))
			_, _ = fmt.Fprintf(out, "Targets:      %d (%d deployable)\n", d.Targets.Total, d.Targets.Deployable)
			printCounts(cmd, stringCounts(d.Targets.ByStatus))
			_, _ = fmt.Fprintf(out, "Runs:         %d\n", d.Runs.Total)
			printCounts(cmd, stringCounts(d.Runs.ByStatus))
			_, _ = fmt.Fprintf(out, "Capabilities: %d (%d installed)\n", d.Capabilities.Total, d.Capabilities.Installed)
			return nil
		},
	}
}

func stringCounts[K ~string](m map[K]int) map[string]int {
	out := make(map[string]int, len(m))
	for k, v := range m {
		out[string(k)] = v
	}
	return out
}

func printCounts(cmd *cobra.Command, m map[string]int) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "  %-12s %d\n", k, m[k])
	}
}

func newAuditCmd() *cobra.Command {
	var f audit.Filter
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Show recent audit events",
		RunE: func(cmd *cobra.Command, args []string) error {
			console, err := consoleFrom(cmd)
			if err != nil {
				return err
			}
			events, err := console.Audit.FetchEvents(cmd.Context(), f)
			if err != nil {
				return err
			}
			if asJSON(cmd) {
				return printJSON(cmd, events)
			}
			rows := make([][]string, 0, len(events))
			for _, e := range events {
				rows = append(rows, []string{
					e.Timestamp.Format("2006-01-02 15:04:05"), e.Kind, e.Action,
					orDash(e.EntityID), orDash(e.ActorID), e.Status, orDash(e.Error),
				})
			}
			return table(cmd.OutOrStdout(), []string{"TIME", "KIND", "ACTION", "ENTITY", "ACTOR", "STATUS", "ERROR"}, rows)
		},
	}
	cmd.Flags().StringVar(&f.Kind, "kind", "", "Event kind: mutation, run, session, catalog")
	cmd.Flags().StringVar(&f.EntityID, "entity", "", "Entity id")
	cmd.Flags().IntVar(&f.Limit, "limit", 50, "Max events")
	return cmd
}
