package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/workerbridge/workerbridge/internal/api"
	"github.com/workerbridge/workerbridge/internal/bridge"
	"github.com/workerbridge/workerbridge/internal/config"
	"github.com/workerbridge/workerbridge/internal/ws"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	slog.Info("workerbridge starting", "config", *configPath)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}

	slog.Info("config loaded",
		"http_port", cfg.Bridge.HTTPPort,
		"heartbeat_interval", cfg.Bridge.HeartbeatInterval,
		"startup_grace", cfg.Bridge.StartupGrace,
		"default_timeout", cfg.Bridge.Timeouts.Default,
		"queue_max_depth", cfg.Bridge.QueueMaxDepth,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	b := bridge.New(bridge.Options{
		Timeouts:          timeoutPolicy(cfg),
		HeartbeatInterval: cfg.Bridge.HeartbeatInterval,
		StartupGrace:      cfg.Bridge.StartupGrace,
		QueueMaxDepth:     cfg.Bridge.QueueMaxDepth,
		Logger:            logger,
	})
	go b.Run(ctx)

	// Hot-reload the timeout policy when the config file changes. The rest
	// of the configuration requires a restart.
	go func() {
		err := config.Watch(ctx, *configPath, logger.With("component", "config"),
			func(next *config.Config) {
				b.SetTimeoutPolicy(timeoutPolicy(next))
			})
		if err != nil {
			slog.Error("config watch stopped", "err", err)
		}
	}()

	// Combined HTTP server: REST API + worker WebSocket on HTTPPort.
	httpMux := http.NewServeMux()
	httpMux.Handle("/", api.New(b))
	httpMux.Handle("/ws/worker", ws.New(b, logger))

	httpSrv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Bridge.ListenAddr, cfg.Bridge.HTTPPort),
		Handler: httpMux,
	}
	go func() {
		slog.Info("HTTP server listening", "addr", httpSrv.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server stopped", "err", err)
		}
	}()

	<-ctx.Done()
	slog.Info("workerbridge shutting down")
	httpSrv.Shutdown(context.Background()) //nolint:errcheck
	b.Close()
}

// timeoutPolicy converts the config section to the bridge's policy type.
func timeoutPolicy(cfg *config.Config) bridge.TimeoutPolicy {
	return bridge.TimeoutPolicy{
		Default: cfg.Bridge.Timeouts.Default,
		PerKind: cfg.Bridge.Timeouts.PerKind,
	}
}
