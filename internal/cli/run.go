package cli

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/xela07ax/nft-agents-console/internal/domain"
	"github.com/xela07ax/nft-agents-console/internal/engine"
)

func newRunCmd() *cobra.Command {
	var (
		input    string
		interval time.Duration
		timeout  time.Duration
	)
	cmd := &cobra.Command{
		Use:   "run <agent-id> <target-id> <capability-id>",
		Short: "Run a capability and wait for the result",
		Long: "Walks the selection (agent, target, capability, input), submits the run and\n" +
			"follows it until it completes, fails or is cancelled. Interrupting the command cancels the run.",
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(input) == "" {
				return errors.New("--input is required")
			}
			console, err := consoleFrom(cmd)
			if err != nil {
				return err
			}
			runs := console.Runs

			// 1. Выбор
			if _, err := runs.SelectAgent(args[0]); err != nil {
				return err
			}
			if _, err := runs.SelectTarget(args[1]); err != nil {
				return err
			}
			if _, err := runs.SelectCapability(domain.NewCapabilityID(args[2])); err != nil {
				return err
			}
			if _, err := runs.SetInput(input); err != nil {
				return err
			}

			// 2. Запуск
			run, err := runs.Submit(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "Run %s started\n", run.ID)

			// 3. Ожидание терминального статуса
			ctx := cmd.Context()
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}
			ticker := time.NewTicker(interval)
			defer ticker.Stop()

			lastProgress := -1
			for {
				select {
				case <-ctx.Done():
					if _, err := runs.CancelRun(run.ID); err != nil {
						return err
					}
					return fmt.Errorf("run %s cancelled: %w", run.ID, ctx.Err())
				case <-ticker.C:
				}

				run, err = runs.Run(run.ID)
				if err != nil {
					return err
				}
				if run.Progress != lastProgress && run.Status == domain.RunRunning {
					lastProgress = run.Progress
					_, _ = fmt.Fprintf(out, "  %3d%% %s\n", run.Progress, run.Message)
				}
				if run.Status.IsTerminal() {
					break
				}
			}
			return printRunResult(cmd, run)
		},
	}
	cmd.Flags().StringVarP(&input, "input", "i", "", "Input for the capability")
	cmd.Flags().DurationVar(&interval, "poll", 200*time.Millisecond, "Progress poll interval")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Cancel the run after this duration (0 waits forever)")
	return cmd
}

func printRunResult(cmd *cobra.Command, run domain.Run) error {
	if asJSON(cmd) {
		return printJSON(cmd, run)
	}
	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Run %s %s in %s\n", run.ID, run.Status, engine.FormatDuration(run))
	switch run.Status {
	case domain.RunCompleted:
		keys := make([]string, 0, len(run.Output))
		for k := range run.Output {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			_, _ = fmt.Fprintf(out, "  %s: %v\n", k, run.Output[k])
		}
		return nil
	default:
		return fmt.Errorf("run %s: %s", run.Status, run.Error)
	}
}
