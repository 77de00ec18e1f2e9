package cli

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/xela07ax/nft-agents-console/internal/domain"
)

func newAgentsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agents",
		Short: "List and manage NFT agents",
	}
	cmd.AddCommand(newAgentsListCmd())
	cmd.AddCommand(newAgentsCreateCmd())
	cmd.AddCommand(newAgentsDeployCmd())
	cmd.AddCommand(newAgentsStopCmd())
	cmd.AddCommand(newAgentsDeleteCmd())
	return cmd
}

func newAgentsListCmd() *cobra.Command {
	var refresh bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List agents from the local catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			console, err := consoleFrom(cmd)
			if err != nil {
				return err
			}
			agents := console.Agents.ListAgents()
			if refresh {
				if agents, err = console.Agents.RefreshAgents(cmd.Context()); err != nil {
					return err
				}
			}
			if asJSON(cmd) {
				return printJSON(cmd, agents)
			}
			rows := make([][]string, 0, len(agents))
			for _, a := range agents {
				rows = append(rows, agentRow(a))
			}
			return table(cmd.OutOrStdout(), []string{"ID", "NAME", "COLLECTION", "STATUS", "TARGET", "CAPABILITY", "INFERENCES"}, rows)
		},
	}
	cmd.Flags().BoolVar(&refresh, "refresh", false, "Fetch agents from the backend first")
	return cmd
}

func agentRow(a domain.Agent) []string {
	target, capID := "", ""
	if a.CurrentTarget != nil {
		target = *a.CurrentTarget
	}
	if a.ActiveCapability != nil {
		capID = string(*a.ActiveCapability)
	}
	return []string{
		a.ID, a.Name, a.Collection, string(a.Status),
		orDash(target), orDash(capID), strconv.FormatInt(a.TotalInferences, 10),
	}
}

func newAgentsCreateCmd() *cobra.Command {
	var draft domain.AgentDraft
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an agent on the backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			console, err := consoleFrom(cmd)
			if err != nil {
				return err
			}
			a, err := console.Agents.CreateAgent(cmd.Context(), draft)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Agent %s created (id %s)\n", a.Name, a.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&draft.Name, "name", "", "Agent name")
	cmd.Flags().StringVar(&draft.Collection, "collection", "", "NFT collection")
	cmd.Flags().StringVar(&draft.Type, "type", "", "Agent type")
	cmd.Flags().StringVar(&draft.ImageURL, "image-url", "", "Artwork URL")
	cmd.Flags().StringSliceVar(&draft.Capabilities, "capability", nil, "Agent capability (repeatable)")
	cmd.Flags().StringSliceVar(&draft.TargetTypes, "target-type", nil, "Supported target type (repeatable)")
	return cmd
}

func newAgentsDeployCmd() *cobra.Command {
	var targetID, capID string
	cmd := &cobra.Command{
		Use:   "deploy <agent-id>",
		Short: "Deploy an agent to a target with a capability",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if targetID == "" {
				return errors.New("--target is required")
			}
			if capID == "" {
				return errors.New("--capability is required")
			}
			console, err := consoleFrom(cmd)
			if err != nil {
				return err
			}
			a, err := console.Agents.DeployAgent(cmd.Context(), args[0], targetID, domain.CapabilityID(capID))
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Agent %s is %s on %s\n", a.ID, a.Status, targetID)
			return nil
		},
	}
	cmd.Flags().StringVarP(&targetID, "target", "t", "", "Target id")
	cmd.Flags().StringVarP(&capID, "capability", "c", "", "Capability id or name")
	return cmd
}

func newAgentsStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop <agent-id>",
		Short: "Return an engaged agent to idle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			console, err := consoleFrom(cmd)
			if err != nil {
				return err
			}
			a, err := console.Agents.StopAgent(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Agent %s is %s\n", a.ID, a.Status)
			return nil
		},
	}
}

func newAgentsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <agent-id>",
		Short: "Delete an idle agent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			console, err := consoleFrom(cmd)
			if err != nil {
				return err
			}
			if err := console.Agents.DeleteAgent(cmd.Context(), args[0]); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Agent %s deleted\n", args[0])
			return nil
		},
	}
}
