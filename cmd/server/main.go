package main

import (
	"context"
	stdlog "log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/eternisai/assignment-relay/internal/assignments"
	"github.com/eternisai/assignment-relay/internal/config"
	"github.com/eternisai/assignment-relay/internal/discord"
	"github.com/eternisai/assignment-relay/internal/graph"
	"github.com/eternisai/assignment-relay/internal/logger"
	"github.com/eternisai/assignment-relay/internal/metrics"
	"github.com/eternisai/assignment-relay/internal/relay"
	"github.com/eternisai/assignment-relay/internal/status"
	"github.com/gin-gonic/gin"
)

func main() {
	startedAt := time.Now()

	cfg, err := config.Load()
	if err != nil {
		stdlog.Printf("Invalid configuration:\n%v", err)
		os.Exit(1)
	}

	log := logger.New(logger.FromConfig(cfg.LogLevel, cfg.LogFormat))
	gin.SetMode(cfg.GinMode)

	collector := metrics.New()
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}

	tokenProvider := graph.NewTokenProvider(graph.TokenProviderInput{
		TokenURL:     cfg.TokenURL(),
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Scope:        cfg.GraphScope,
		HTTPClient:   httpClient,
	}, log)
	graphClient := graph.NewClient(cfg.GraphAPIURL, httpClient, log)

	session, err := discord.NewSession(cfg.DiscordToken, log)
	if err != nil {
		log.Error("failed to create discord session", slog.String("error", err.Error()))
		os.Exit(1)
	}
	notifier := discord.NewNotifier(session, cfg.DiscordChannelID, log)

	scheduler := relay.NewScheduler(relay.Dependencies{
		Tokens:   tokenProvider,
		Fetcher:  graphClient,
		Notifier: notifier,
		Tracker:  assignments.NewTracker(),
		Metrics:  collector,
	}, cfg.PollInterval, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The poll loop starts once the gateway reports Ready.
	session.OnReady(func() {
		scheduler.Start(ctx)
	})

	if err := session.Open(); err != nil {
		log.Error("failed to connect to discord", slog.String("error", err.Error()))
		os.Exit(1)
	}

	var statusServer *status.Server
	if cfg.StatusEnabled() {
		statusServer = status.NewServer(cfg.StatusPort, status.NewHandler(scheduler, session), collector, log)
		statusServer.Start()
	}

	log.Info("✅  assignment relay started",
		slog.String("channel_id", cfg.DiscordChannelID),
		slog.Duration("poll_interval", cfg.PollInterval))

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("🛑 Shutting down relay...")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if scheduler.State() != relay.StateIdle {
		select {
		case <-scheduler.Done():
			log.Info("✅ Poll loop stopped")
		case <-shutdownCtx.Done():
			log.Warn("poll loop did not stop before shutdown timeout")
		}
	}

	if err := session.Close(); err != nil {
		log.Error("failed to close discord session", slog.String("error", err.Error()))
	}

	if statusServer != nil {
		if err := statusServer.Shutdown(shutdownCtx); err != nil {
			log.Error("status server forced to shutdown", slog.String("error", err.Error()))
		}
	}

	log.Info("✅ Relay exited", slog.Duration("uptime", time.Since(startedAt)))
}
