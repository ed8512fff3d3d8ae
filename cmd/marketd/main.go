package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/ZilDuck/nft-marketplace/internal/config"
	"github.com/ZilDuck/nft-marketplace/internal/config/di"
	"github.com/ZilDuck/nft-marketplace/internal/daemon"
	"go.uber.org/zap"
)

func main() {
	config.Init("marketd")
	cfg := config.Get()

	if err := cfg.Validate(); err != nil {
		zap.L().With(zap.Error(err)).Fatal("Invalid configuration")
	}

	container, err := di.NewContainer(cfg)
	if err != nil {
		zap.L().With(zap.Error(err)).Fatal("Failed to build container")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	zap.L().With(
		zap.String("network", cfg.Network),
		zap.String("port", cfg.HttpPort),
		zap.String("healthPort", cfg.HealthPort),
	).Info("Marketplace Started")

	if err := daemon.NewDaemon(cfg, container).Execute(ctx); err != nil {
		zap.L().With(zap.Error(err)).Fatal("Marketplace stopped")
	}
}
