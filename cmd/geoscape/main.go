// Package main is the headless geoscape driver. It flies a globe camera,
// streams the tiles the LOD selector reveals and renders one synthetic
// instance per resident tile through the culling frame graph.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"go.uber.org/zap"

	"github.com/Faultbox/geoscape/internal/config"
	"github.com/Faultbox/geoscape/internal/logger"
)

func main() {
	config.ParseFlags()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		fmt.Fprintf(os.Stderr, "Logger error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("=== Geoscape ===")
	logger.Sugar.Debugf("Config: %+v", cfg)

	if path := config.WriteConfigPath(); path != "" {
		if err := cfg.SaveTo(path); err != nil {
			logger.Error("failed to write config", zap.Error(err))
			os.Exit(1)
		}
		logger.Info("config written", zap.String("path", path))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	app, err := newApp(cfg)
	if err != nil {
		logger.Error("failed to set up", zap.Error(err))
		os.Exit(1)
	}

	if err := app.run(ctx); err != nil {
		logger.Error("run failed", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("done")
}
