package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/paperforge/paperforge/internal/config"
	"github.com/paperforge/paperforge/internal/gateway"
	"github.com/paperforge/paperforge/internal/janitor"
	"github.com/paperforge/paperforge/internal/store"
	"github.com/paperforge/paperforge/internal/tasks"
	"github.com/paperforge/paperforge/internal/telemetry"
	"github.com/paperforge/paperforge/internal/templates"
)

func gatewayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "gateway",
		Short: "Run the WebSocket gateway",
		Run: func(cmd *cobra.Command, args []string) {
			runGateway()
		},
	}
}

func runGateway() {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})))

	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTelemetry, err := telemetry.Init(ctx, cfg.Telemetry)
	if err != nil {
		slog.Error("telemetry init failed", "error", err)
		os.Exit(1)
	}
	defer func() {
		flushCtx, flushCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer flushCancel()
		shutdownTelemetry(flushCtx)
	}()

	st, err := store.Open(cfg.DatabasePath())
	if err != nil {
		slog.Error("store open failed", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	tmpl, err := templates.New(cfg.TemplatesDir())
	if err != nil {
		slog.Error("template index failed", "error", err)
		os.Exit(1)
	}
	tmpl.Watch(ctx)

	taskTimeout := time.Duration(cfg.Agents.TaskTimeoutMin) * time.Minute
	super := tasks.NewSupervisor(taskTimeout)

	jan := janitor.New(cfg.Janitor, super, cfg.WorkspacesDir())
	go jan.Run(ctx)

	server := gateway.NewServer(cfg, st, super, tmpl)

	// Graceful shutdown on SIGINT/SIGTERM
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("shutting down", "signal", sig.String())
		cancel()
	}()

	if err := server.Start(ctx); err != nil {
		slog.Error("gateway failed", "error", err)
		os.Exit(1)
	}
}
