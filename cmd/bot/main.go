package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/beryozskin/studio-bot/internal/app/bootstrap"
	"github.com/beryozskin/studio-bot/internal/booking"
	"github.com/beryozskin/studio-bot/internal/catalog"
	appconfig "github.com/beryozskin/studio-bot/internal/config"
	"github.com/beryozskin/studio-bot/internal/gcal"
	"github.com/beryozskin/studio-bot/internal/notify"
	"github.com/beryozskin/studio-bot/internal/observability/metrics"
	"github.com/beryozskin/studio-bot/internal/schedule"
	"github.com/beryozskin/studio-bot/internal/sheets"
	"github.com/beryozskin/studio-bot/internal/telegram"
	"github.com/beryozskin/studio-bot/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting studio-bot", "env", cfg.Env)

	loc, err := time.LoadLocation(cfg.TimeZone)
	if err != nil {
		logger.Error("invalid time zone", "tz", cfg.TimeZone, "error", err)
		os.Exit(1)
	}

	cat := catalog.Default()
	if cfg.CatalogFile != "" {
		cat, err = catalog.LoadFile(cfg.CatalogFile)
		if err != nil {
			logger.Error("failed to load catalog", "file", cfg.CatalogFile, "error", err)
			os.Exit(1)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	bookingMetrics := metrics.NewBookingMetrics(registry)

	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	sessionStore := bootstrap.BuildSessionStore(redisClient, cfg, logger)
	loyaltyStore := bootstrap.BuildLoyaltyStore(redisClient, cfg, logger)

	calendarClient, err := gcal.New(ctx, cfg.GoogleCredentialsFile, cfg.CalendarID, loc, cfg.ExternalCallTimeout, logger)
	if err != nil {
		logger.Error("failed to init calendar client", "error", err)
		os.Exit(1)
	}

	var ledger booking.Ledger
	if cfg.SpreadsheetID != "" {
		sheetsLedger, err := sheets.New(ctx, cfg.GoogleCredentialsFile, cfg.SpreadsheetID, cfg.SheetRange, cfg.ExternalCallTimeout, logger)
		if err != nil {
			logger.Error("failed to init sheets ledger", "error", err)
			os.Exit(1)
		}
		ledger = sheetsLedger
	} else {
		logger.Warn("no spreadsheet configured, ledger rows disabled")
	}

	bot, err := telegram.NewBot(cfg.TelegramToken, logger)
	if err != nil {
		logger.Error("failed to init telegram bot", "error", err)
		os.Exit(1)
	}
	if err := bot.SetCommands(); err != nil {
		logger.Warn("failed to register bot commands", "error", err)
	}

	notifier := notify.NewService(bot, cfg.OperatorChatID, loc, logger)

	resolver, err := schedule.NewResolver(calendarClient, loc, cfg.WorkdayStart, cfg.WorkdayEnd, cfg.SlotGranularity, cfg.SlotBlockWidth, logger)
	if err != nil {
		logger.Error("invalid schedule configuration", "error", err)
		os.Exit(1)
	}

	committerOpts := []booking.CommitterOption{}
	if cfg.RevalidateOnCommit {
		committerOpts = append(committerOpts, booking.WithRevalidation(resolver))
	}
	committer := booking.NewCommitter(calendarClient, ledger, notifier, loc, logger, bookingMetrics, committerOpts...)
	machine := booking.NewMachine(sessionStore, cat, resolver, loc, logger)

	handler := telegram.NewHandler(bot, machine, committer, cat, loyaltyStore, cfg.LoyaltyInfoText, loc, logger, bookingMetrics)

	opsSrv := opsServer(cfg.OpsPort, registry)
	go func() {
		logger.Info("ops server listening", "addr", opsSrv.Addr)
		if err := opsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("ops server error", "error", err)
			os.Exit(1)
		}
	}()

	botDone := make(chan struct{})
	go func() {
		defer close(botDone)
		bot.Run(ctx, handler)
	}()
	logger.Info("bot polling for updates")

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	select {
	case <-botDone:
		logger.Info("update loop stopped")
	case <-shutdownCtx.Done():
		logger.Error("update loop shutdown timed out", "error", shutdownCtx.Err())
	}

	if err := opsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("ops server forced to shutdown", "error", err)
	}

	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			logger.Error("redis close failed", "error", err)
		}
	}
	logger.Info("stopped")
}

func opsServer(port string, registry *prometheus.Registry) *http.Server {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	return &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}
