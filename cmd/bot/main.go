package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	audioimpl "github.com/pomora/pomora/external/audio"
	configloader "github.com/pomora/pomora/external/config"
	"github.com/pomora/pomora/external/discord"
	renderimpl "github.com/pomora/pomora/external/render"
	repositoryimpl "github.com/pomora/pomora/external/repository"
	"github.com/pomora/pomora/internal/alert"
	"github.com/pomora/pomora/internal/bot"
	"github.com/pomora/pomora/internal/config"
	discordpkg "github.com/pomora/pomora/internal/discord"
	"github.com/pomora/pomora/internal/report"
	"github.com/pomora/pomora/internal/status"
	"github.com/pomora/pomora/internal/timer"
	"github.com/samber/do/v2"
)

const discordConnectTimeout = 20 * time.Second

func main() {
	slog.Info("startup: loading configuration")
	cfg := mustLoadConfig()
	initLogger(cfg)
	slog.Info("startup: configuration loaded", "env", cfg.Env)

	slog.Info("startup: building dependency graph")
	injector := setupDI(cfg)

	slog.Info("startup: launching pomora bot")
	runBot(cfg, injector)
}

func mustLoadConfig() *config.Config {
	cfg, err := configloader.Load()
	if err != nil {
		slog.Error("config validation failed", "error", err)
		os.Exit(1)
	}
	return cfg
}

func initLogger(cfg *config.Config) {
	logLevel := slog.LevelInfo
	if cfg.IsDevelopment() {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})))
}

func setupDI(cfg *config.Config) do.Injector {
	injector := do.New()

	do.ProvideValue(injector, cfg)
	do.ProvideValue[clockwork.Clock](injector, clockwork.NewRealClock())
	repositoryimpl.RegisterDI(injector)
	audioimpl.RegisterDI(injector)
	discord.RegisterDI(injector)
	renderimpl.RegisterDI(injector)
	timer.RegisterDI(injector)
	status.RegisterDI(injector)
	alert.RegisterDI(injector)
	report.RegisterDI(injector)
	bot.RegisterDI(injector)

	return injector
}

func runBot(cfg *config.Config, injector do.Injector) {
	dc, err := do.Invoke[discordpkg.Client](injector)
	if err != nil {
		slog.Error("failed to resolve discord client", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), discordConnectTimeout)
	defer cancel()

	slog.Info("startup: connecting to discord gateway")
	if err := dc.Connect(ctx); err != nil {
		slog.Error("discord connect failed", "error", err)
		os.Exit(1)
	}
	slog.Info("startup: discord connected")
	defer func() {
		if err := dc.Close(); err != nil {
			slog.Error("discord close failed", "error", err)
		}
	}()

	manager, err := do.Invoke[*bot.Manager](injector)
	if err != nil {
		slog.Error("failed to resolve bot manager", "error", err)
		os.Exit(1)
	}
	if err := manager.Start(); err != nil {
		slog.Error("failed to start bot manager", "error", err)
		os.Exit(1)
	}
	slog.Info("discord handlers registered")

	reporter, err := do.Invoke[*report.Reporter](injector)
	if err != nil {
		slog.Error("failed to resolve reporter", "error", err)
		os.Exit(1)
	}
	reportCtx, stopReporter := context.WithCancel(context.Background())
	defer stopReporter()
	go reporter.Run(reportCtx)

	go serveHealth(cfg.HealthPort)

	done := make(chan struct{})
	go func() {
		slog.Info("startup: entering discord run loop")
		if err := dc.Run(); err != nil {
			slog.Error("discord run failed", "error", err)
		}
		close(done)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
		slog.Info("shutting down")
	case <-done:
	}
}

// serveHealth answers the hosting platform's liveness probe.
func serveHealth(port int) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("Pomora Bot is running"))
	})
	addr := fmt.Sprintf(":%d", port)
	slog.Info("health endpoint listening", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		slog.Error("health endpoint failed", "error", err)
	}
}
