package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"CatalogBot/internal/backend"
	"CatalogBot/internal/bot"
	"CatalogBot/internal/category"
	"CatalogBot/internal/chain"
	"CatalogBot/internal/config"
	"CatalogBot/internal/logging"
	"CatalogBot/internal/metrics"
	"CatalogBot/internal/scheduler"
	"CatalogBot/internal/session"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

const shutdownTimeout = 5 * time.Second

func main() {
	envPath, envErr := config.LoadEnv()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	if envErr != nil {
		logger.Warn("continuing with system environment variables", zap.Error(envErr))
	} else {
		logger.Info("loaded .env", zap.String("path", envPath))
	}

	if err := run(cfg, logger); err != nil {
		logger.Fatal("bot stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	collector := metrics.NewCollector("catalog")

	store, err := backend.Open(ctx, cfg.Storage, collector, logger)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := store.Close(closeCtx); err != nil {
			logger.Error("failed to close storage", zap.Error(err))
		}
	}()

	sessions, err := session.New(cfg.SessionTTL)
	if err != nil {
		return err
	}
	defer sessions.Close()

	api, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return err
	}
	logger.Info("authorized", zap.String("account", api.Self.UserName))

	webhook, err := tgbotapi.NewWebhook(cfg.WebhookURL)
	if err != nil {
		return err
	}
	if _, err := api.Request(webhook); err != nil {
		return err
	}

	info, err := api.GetWebhookInfo()
	if err != nil {
		return err
	}
	if info.LastErrorDate != 0 {
		logger.Warn("telegram webhook error", zap.String("message", info.LastErrorMessage))
	}

	categories := category.NewRepository(store.Categories, logger.Named("category"))
	chains := chain.NewRepository(store.Chains, logger.Named("chain"))

	handler := bot.NewUpdateHandler(
		api,
		categories,
		chains,
		sessions,
		cfg.IsAdmin,
		logger.Named("bot"),
		bot.WithMetrics(collector),
	)
	defer handler.Flush()

	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	updates := make(chan tgbotapi.Update, api.Buffer)
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		update, err := api.HandleUpdate(r)
		if err != nil {
			logger.Warn("bad webhook request", zap.Error(err))
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		select {
		case updates <- *update:
		case <-ctx.Done():
			http.Error(w, "shutting down", http.StatusServiceUnavailable)
		}
	})

	server := &http.Server{Addr: ":" + cfg.HTTPPort, Handler: mux}
	go func() {
		logger.Info("listening", zap.String("port", cfg.HTTPPort))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", zap.Error(err))
			stop()
		}
	}()

	go handler.HandleUpdates(ctx, updates)

	notify := func(chatID int64, text string) error {
		_, err := api.Send(tgbotapi.NewMessage(chatID, text))
		return err
	}
	maintenance := scheduler.NewScheduler(
		categories,
		store,
		cfg.AuditInterval,
		logger.Named("scheduler"),
		scheduler.WithNotifications(notify, cfg.AdminIDs),
		scheduler.WithAutoRepair(),
	)
	maintenance.Start(ctx)

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logger.Info("server gracefully stopped")
	return nil
}
