package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/xela07ax/nft-agents-console/internal/domain"
	"github.com/xela07ax/nft-agents-console/internal/matcher"
)

func newTargetsCmd() *cobra.Command {
	var agentID string
	cmd := &cobra.Command{
		Use:   "targets",
		Short: "List deployment targets",
		RunE: func(cmd *cobra.Command, args []string) error {
			console, err := consoleFrom(cmd)
			if err != nil {
				return err
			}
			targets := console.Catalogs.Targets()
			if agentID != "" {
				if targets, err = console.Catalogs.EligibleTargets(agentID); err != nil {
					return err
				}
			}
			if asJSON(cmd) {
				return printJSON(cmd, targets)
			}
			rows := make([][]string, 0, len(targets))
			for _, t := range targets {
				deployable := "no"
				if t.Deployable() {
					deployable = "yes"
				}
				rows = append(rows, []string{t.ID, t.Name, string(t.Type), string(t.Status), deployable, joinIDs(t.Capabilities)})
			}
			return table(cmd.OutOrStdout(), []string{"ID", "NAME", "TYPE", "STATUS", "DEPLOYABLE", "CAPABILITIES"}, rows)
		},
	}
	cmd.Flags().StringVar(&agentID, "agent", "", "Only targets the agent supports")
	return cmd
}

func newCapabilitiesCmd() *cobra.Command {
	var installed bool
	cmd := &cobra.Command{
		Use:     "capabilities",
		Aliases: []string{"caps"},
		Short:   "List capabilities and manage the capability store",
		RunE: func(cmd *cobra.Command, args []string) error {
			console, err := consoleFrom(cmd)
			if err != nil {
				return err
			}
			caps := console.Catalogs.Capabilities(installed)
			if asJSON(cmd) {
				return printJSON(cmd, caps)
			}
			return printCapabilities(cmd, caps)
		},
	}
	cmd.Flags().BoolVar(&installed, "installed", false, "Only installed capabilities")

	cmd.AddCommand(newInstallCmd("install", "Install a capability", true))
	cmd.AddCommand(newInstallCmd("uninstall", "Uninstall a capability", false))
	cmd.AddCommand(&cobra.Command{
		Use:   "install-all",
		Short: "Install every capability",
		RunE: func(cmd *cobra.Command, args []string) error {
			console, err := consoleFrom(cmd)
			if err != nil {
				return err
			}
			n := console.Catalogs.InstallAll(cmd.Context())
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Installed %d capabilities\n", n)
			return nil
		},
	})
	return cmd
}

func newInstallCmd(use, short string, installed bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <capability-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			console, err := consoleFrom(cmd)
			if err != nil {
				return err
			}
			c, err := console.Catalogs.SetInstalled(cmd.Context(), domain.NewCapabilityID(args[0]), installed)
			if err != nil {
				return err
			}
			state := "uninstalled"
			if c.Installed {
				state = "installed"
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", c.Name, state)
			return nil
		},
	}
}

func printCapabilities(cmd *cobra.Command, caps []domain.Capability) error {
	rows := make([][]string, 0, len(caps))
	for _, c := range caps {
		installed := "no"
		if c.Installed {
			installed = "yes"
		}
		rows = append(rows, []string{string(c.ID), c.Name, c.Provider, c.EstimatedTime, installed})
	}
	return table(cmd.OutOrStdout(), []string{"ID", "NAME", "PROVIDER", "ETA", "INSTALLED"}, rows)
}

func newCompatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "compat <agent-id> <target-id>",
		Short: "Show capabilities usable by the agent on the target",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			console, err := consoleFrom(cmd)
			if err != nil {
				return err
			}
			res, err := console.Catalogs.Compatibility(args[0], args[1])
			if err != nil {
				return err
			}
			if asJSON(cmd) {
				return printJSON(cmd, res)
			}
			if res.Reason != matcher.ReasonOK {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), res.Message)
				return nil
			}
			return printCapabilities(cmd, res.Capabilities)
		},
	}
}

func joinIDs(ids []domain.CapabilityID) string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return strings.Join(out, ",")
}
