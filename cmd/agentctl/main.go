package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/xela07ax/nft-agents-console/internal/cli"
)

var version = "dev"

func main() {
	// Ctrl+C отменяет контекст команды, run при этом отменяет запуск
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cli.NewRootCmd(version).ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
