// Package cli содержит команды agentctl: операторская консоль в терминале поверх тех же сервисов, что и Console API.
package cli

import (
	"context"
	"errors"
	"os"

	"github.com/spf13/cobra"
	"github.com/xela07ax/nft-agents-console/internal/app"
	"github.com/xela07ax/nft-agents-console/internal/infra"
	"go.uber.org/zap"
)

type ctxKey struct{}

func withApp(ctx context.Context, a *app.App) context.Context {
	return context.WithValue(ctx, ctxKey{}, a)
}

// consoleFrom достает собранную консоль; PersistentPreRunE кладет ее в контекст.
func consoleFrom(cmd *cobra.Command) (*app.App, error) {
	a, ok := cmd.Context().Value(ctxKey{}).(*app.App)
	if !ok {
		return nil, errors.New("console is not initialized")
	}
	return a, nil
}

func NewRootCmd(version string) *cobra.Command {
	var (
		configPath string
		verbose    bool
	)

	cmd := &cobra.Command{
		Use:          "agentctl",
		Short:        "Operate NFT agents from the terminal",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !needsConsole(cmd) {
				return nil
			}
			cfg, err := infra.LoadConfigFrom(configPath)
			if err != nil {
				return err
			}
			logger := zap.NewNop()
			if verbose {
				if logger, err = infra.NewLogger(infra.LoggerConfig{Level: "debug", Format: "console"}); err != nil {
					return err
				}
			}
			console, err := app.New(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			cmd.SetContext(withApp(cmd.Context(), console))
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config.yaml (default: ./config.yaml or ./configs/config.yaml)")
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log to stderr")
	cmd.PersistentFlags().StringP("output", "o", "table", "Output format: table or json")

	cmd.AddCommand(newLoginCmd())
	cmd.AddCommand(newLogoutCmd())
	cmd.AddCommand(newWhoamiCmd())

	cmd.AddCommand(newAgentsCmd())
	cmd.AddCommand(newTargetsCmd())
	cmd.AddCommand(newCapabilitiesCmd())
	cmd.AddCommand(newCompatCmd())
	cmd.AddCommand(newRunCmd())
	cmd.AddCommand(newDashboardCmd())
	cmd.AddCommand(newAuditCmd())

	closeAfterRun(cmd)

	cmd.SetOut(os.Stdout)
	cmd.SetErr(os.Stderr)

	cmd.SetVersionTemplate("{{.Version}}\n")
	if version != "" {
		cmd.Version = version
	} else {
		cmd.Version = "dev"
	}
	return cmd
}

// needsConsole: справке и автодополнению консоль не нужна.
func needsConsole(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		switch c.Name() {
		case "help", "completion", cobra.ShellCompRequestCmd, cobra.ShellCompNoDescRequestCmd:
			return false
		}
	}
	return true
}

// closeAfterRun оборачивает RunE всего дерева: консоль закрывается и после ошибки,
// когда PersistentPostRunE уже не вызывается.
func closeAfterRun(root *cobra.Command) {
	for _, c := range root.Commands() {
		closeAfterRun(c)
	}
	run := root.RunE
	if run == nil {
		return
	}
	root.RunE = func(cmd *cobra.Command, args []string) (err error) {
		defer func() {
			console, ok := cmd.Context().Value(ctxKey{}).(*app.App)
			if !ok {
				return
			}
			if cerr := console.Close(context.Background()); cerr != nil && err == nil {
				err = cerr
			}
		}()
		return run(cmd, args)
	}
}
