package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Freeeeeet/coach_scheduler/internal/app"
	"github.com/Freeeeeet/coach_scheduler/internal/controller"
	"github.com/Freeeeeet/coach_scheduler/internal/events"
	"github.com/Freeeeeet/coach_scheduler/internal/metrics"
	"github.com/Freeeeeet/coach_scheduler/internal/negotiation"
	"github.com/Freeeeeet/coach_scheduler/internal/repository"
	"github.com/Freeeeeet/coach_scheduler/internal/scheduling"
	"github.com/Freeeeeet/coach_scheduler/internal/service"
)

const shutdownTimeout = 5 * time.Second

func newServeCmd() *cobra.Command {
	var skipMigrations bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the Telegram bot with background workers and the metrics endpoint",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), skipMigrations)
		},
	}
	cmd.Flags().BoolVar(&skipMigrations, "skip-migrations", false, "do not apply migrations on start")
	return cmd
}

func serve(ctx context.Context, skipMigrations bool) error {
	rt, err := newRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	cfg, logger := rt.cfg, rt.logger
	if err := cfg.RequireTelegram(); err != nil {
		return err
	}

	logger.Info("Starting coach scheduler",
		zap.String("environment", cfg.Environment),
		zap.Int("token_length", len(cfg.TelegramToken)),
	)

	if !skipMigrations {
		if _, err := rt.migrate(ctx); err != nil {
			return err
		}
	}

	b, err := bot.New(cfg.TelegramToken,
		bot.WithDefaultHandler(func(context.Context, *bot.Bot, *models.Update) {}),
		bot.WithErrorsHandler(func(err error) {
			logger.Warn("Telegram polling error", zap.Error(err))
		}),
	)
	if err != nil {
		return fmt.Errorf("create bot: %w", err)
	}

	m := metrics.MustNewMetrics(prometheus.DefaultRegisterer)
	messenger := controller.NewMessenger(b, rt.users, rt.sessions, logger.Named("messenger"))

	availabilityService, err := rt.availabilityService()
	if err != nil {
		return err
	}

	negotiator := negotiation.New(negotiation.Dependencies{
		Sessions:     rt.sessions,
		Availability: availabilityService,
		Negotiations: rt.negotiations,
		Users:        rt.users,
		Tx:           rt.tx,
		Messenger:    messenger,
		Publisher:    repository.NewPgNotifier(rt.pool),
		Recommender:  scheduling.NewRecommender(cfg.RecommendWindowDays, cfg.RecommendCount),
		Metrics:      m,
		Logger:       logger.Named("negotiation"),
	})

	userService := service.NewUserService(rt.users, rt.sessions, rt.tx, cfg.DefaultTimezone, logger)
	sessionService := service.NewSessionService(rt.sessions, rt.users, negotiator, rt.tx, logger)

	botController := controller.NewBotController(b, userService, availabilityService, sessionService, negotiator, logger)
	if err := botController.RegisterHandlers(ctx); err != nil {
		return fmt.Errorf("register handlers: %w", err)
	}

	bus := events.NewBus()
	listener := app.NewListener(rt.pool, bus, logger.Named("listener"))
	monitor := app.NewMonitor(negotiator, messenger, m, cfg.MonitorInterval, cfg.StaleAfter, logger.Named("monitor"))

	metricsServer := &http.Server{
		Addr:              cfg.MetricsAddr,
		Handler:           metricsHandler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return botController.Start(gctx) })
	g.Go(func() error { return listener.Run(gctx) })
	g.Go(func() error { return monitor.Run(gctx) })
	g.Go(func() error { return messenger.Run(gctx, bus) })
	g.Go(func() error {
		logger.Info("Serving metrics", zap.String("addr", cfg.MetricsAddr))
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down")
		monitor.Stop()
		bus.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return metricsServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func metricsHandler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return mux
}
