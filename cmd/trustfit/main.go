package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MikeSquared-Agency/trustfit/internal/api"
	"github.com/MikeSquared-Agency/trustfit/internal/config"
	"github.com/MikeSquared-Agency/trustfit/internal/hermes"
	"github.com/MikeSquared-Agency/trustfit/internal/processor"
	"github.com/MikeSquared-Agency/trustfit/internal/session"
	"github.com/MikeSquared-Agency/trustfit/internal/store"
)

func main() {
	cfg := config.Load()
	setupLogging(cfg.LogLevel)

	slog.Info("trustfit starting", "port", cfg.Port, "max_eval", cfg.MaxEvaluations)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database (optional: without it estimates live in memory only)
	var sinks []session.Sink
	var history api.History
	if cfg.DatabaseURL != "" {
		db, err := store.New(ctx, cfg.DatabaseURL)
		if err != nil {
			slog.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		if err := db.Migrate(ctx); err != nil {
			slog.Error("failed to migrate database", "error", err)
			os.Exit(1)
		}
		sinks = append(sinks, db)
		history = db
		slog.Info("database connected")
	} else {
		slog.Warn("DATABASE_URL not set, estimates are not persisted")
	}

	sessions := session.New(slog.Default(), sinks, cfg.EstimatorOptions()...)

	// NATS/Hermes
	hermesClient, err := hermes.NewClient(ctx, hermes.Options{
		URL:   cfg.NatsURL,
		Token: cfg.NatsToken,
	}, slog.Default())
	if err != nil {
		slog.Error("failed to connect to NATS", "error", err)
		os.Exit(1)
	}
	defer hermesClient.Close()
	slog.Info("NATS connected", "url", cfg.NatsURL)

	proc := processor.New(sessions, hermesClient, slog.Default())

	if err := hermesClient.Subscribe(hermes.SubjectObservation, proc.HandleObservation); err != nil {
		slog.Error("failed to subscribe to observations", "error", err)
		os.Exit(1)
	}
	if err := hermesClient.Subscribe(hermes.SubjectReset, proc.HandleReset); err != nil {
		slog.Error("failed to subscribe to session resets", "error", err)
		os.Exit(1)
	}

	// HTTP API
	srv := api.NewServer(cfg.Port, cfg.APIToken, sessions, history)
	srv.SetTransport(hermesClient)
	go func() {
		if err := srv.Start(); err != nil {
			slog.Error("HTTP server error", "error", err)
		}
	}()

	if err := hermesClient.Publish("swarm.agent.trustfit.registered", map[string]any{
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"port":      cfg.Port,
	}); err != nil {
		slog.Warn("failed to publish registration", "error", err)
	}

	slog.Info("trustfit ready", "port", cfg.Port)

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	slog.Info("shutting down")
	cancel()
	slog.Info("trustfit stopped")
}

func setupLogging(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(handler))
}
