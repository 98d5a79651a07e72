package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"copytrader/config"
	"copytrader/internal/app"
	"copytrader/logger"

	"go.uber.org/zap"
)

func main() {
	// viper config
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load config:", err)
		os.Exit(1)
	}

	// zap logger
	log, err := logger.New(cfg.Log)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// lead API secrets come from SSM in prod
	if err := config.ResolveLeadSecrets(ctx, cfg, config.NewParameterStore()); err != nil {
		log.Fatal("failed to resolve lead secrets", zap.Error(err))
	}

	a, err := app.New(cfg, log)
	if err != nil {
		log.Fatal("failed to initialize app", zap.Error(err))
	}

	log.Info("copytrader started", zap.Int("leads", len(cfg.Leads)), zap.String("addr", cfg.HTTP.Addr))
	if err := a.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal("copytrader failed", zap.Error(err))
	}
	log.Info("copytrader stopped")
}
