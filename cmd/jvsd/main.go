package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/danmuck/jvsctl/internal/bridge"
	"github.com/danmuck/jvsctl/internal/config"
	"github.com/danmuck/jvsctl/internal/logging"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	path := flag.String("config", "cmd/jvsd/config.toml", "daemon config path")
	flag.Parse()

	logging.ConfigureRuntime()

	svcCfg, level, err := loadServiceConfig(*path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "jvsd: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc := newService(svcCfg, level, log.Logger)
	if err := svc.Run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "jvsd: %v\n", err)
		os.Exit(1)
	}
}

// loadServiceConfig returns the bridge config and the configured log level,
// or zerolog.NoLevel when the file leaves logging to the environment.
func loadServiceConfig(path string) (bridge.ServiceConfig, zerolog.Level, error) {
	cfg, err := config.LoadDaemonConfig(path)
	if err != nil {
		return bridge.ServiceConfig{}, zerolog.NoLevel, err
	}
	svcCfg, err := config.ServiceConfig(cfg)
	if err != nil {
		return bridge.ServiceConfig{}, zerolog.NoLevel, err
	}
	level := zerolog.NoLevel
	if lvl, ok := logging.ParseLevel(cfg.Log.Level); ok {
		level = lvl
	}
	return svcCfg, level, nil
}

// newService hands the bridge a root logger moved to the configured level.
func newService(cfg bridge.ServiceConfig, level zerolog.Level, base zerolog.Logger, opts ...bridge.ServiceOption) *bridge.Service {
	opts = append([]bridge.ServiceOption{bridge.WithLogger(logging.ApplyLevel(base, level))}, opts...)
	return bridge.NewService(cfg, opts...)
}
