package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/xela07ax/nft-agents-console/internal/app"
	"github.com/xela07ax/nft-agents-console/internal/infra"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "", "path to config.yaml (default: ./config.yaml or ./configs/config.yaml)")
	flag.Parse()

	// 1. Конфигурация и логгер
	cfg, err := infra.LoadConfigFrom(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger, err := infra.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	// Контекст управления жизненным циклом: SIGINT/SIGTERM отменяет его
	appCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Сборка слоев (Dependency Injection)
	console, err := app.New(appCtx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to assemble console", zap.Error(err))
	}
	console.SyncAgents(appCtx)

	// 3. HTTP Server
	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      console.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info("console API started", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("listen failed", zap.Error(err))
			stop()
		}
	}()

	// 4. Graceful Shutdown
	<-appCtx.Done()
	logger.Info("console stopping...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", zap.Error(err))
	}
	// Running-запуски отменяются, журнал дописывается
	if err := console.Close(shutdownCtx); err != nil {
		logger.Error("console close failed", zap.Error(err))
	}
	logger.Info("console exited properly")
}
