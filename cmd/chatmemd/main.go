// Command chatmemd runs the conversational memory service: the HTTP
// operation surface plus the background summary scheduler.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sito-labs/chatmem-go/pkg/api"
	"github.com/sito-labs/chatmem-go/pkg/core"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	var (
		cfg *core.Config
		err error
	)
	if envPath, found := core.FindEnvFile(); found {
		slog.Info("loading environment file", slog.String("path", envPath))
		cfg, err = core.LoadConfigFromEnvFile(envPath)
	} else {
		cfg, err = core.LoadConfigFromEnv()
	}
	if err != nil {
		slog.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		// Missing mandatory configuration aborts startup; nothing retries it.
		slog.Error("invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}

	engine, err := core.NewEngine(cfg)
	if err != nil {
		slog.Error("failed to initialize engine", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := engine.Close(); err != nil {
			slog.Warn("engine close failed", slog.Any("error", err))
		}
	}()

	var scheduler *core.SummaryScheduler
	if cfg.Scheduler.Enabled {
		scheduler = core.NewSummaryScheduler(engine, cfg.Scheduler)
		if err := scheduler.Start(); err != nil {
			slog.Error("failed to start summary scheduler", slog.Any("error", err))
			os.Exit(1)
		}
	}

	server := api.NewServer(engine, cfg.HTTP)
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stop:
		slog.Info("shutting down", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			slog.Error("http server failed", slog.Any("error", err))
		}
	}

	if scheduler != nil {
		scheduler.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		slog.Warn("http shutdown failed", slog.Any("error", err))
	}
}
