package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/fjod/go_cart/settlement-service/internal/config"
	h "github.com/fjod/go_cart/settlement-service/internal/http"
	"github.com/fjod/go_cart/settlement-service/pkg/logger"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

func newServeCmd(load func() (*config.Config, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the outbox poller",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config) error {
	log := logger.Default()
	log.Info("settlement service starting", "port", cfg.HTTPPort, "currency", cfg.Currency)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{}))

	a, err := buildApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.close(context.Background())

	router := h.NewRouter(h.Handlers{
		Checkout:      h.NewCheckoutHandler(a.service, a.carts, cfg.Currency, cfg.RequestTimeout),
		Cart:          h.NewCartHandler(a.carts, a.calc, cfg.RequestTimeout),
		Orders:        h.NewOrdersHandler(a.repo, cfg.RequestTimeout),
		PaymentIntent: h.NewPaymentIntentHandler(a.stripe, cfg.Currency, cfg.RequestTimeout),
		Health: map[string]h.HealthCheck{
			"postgres": a.repo.Ping,
			"mongodb":  func(ctx context.Context) error { return a.mongoDB.Client().Ping(ctx, nil) },
			"redis":    func(ctx context.Context) error { return a.redis.Ping(ctx).Err() },
		},
	}, cfg.RequestTimeout)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	pollerCtx, stopPoller := context.WithCancel(context.Background())
	pollerDone := make(chan struct{})
	go func() {
		defer close(pollerDone)
		a.poller.Run(pollerCtx)
	}()

	serveErr := make(chan error, 1)
	go func() {
		log.Info("settlement service listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			stopPoller()
			<-pollerDone
			return err
		}
	}

	log.Info("shutting down settlement service")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	err = srv.Shutdown(shutdownCtx)

	// Stop the poller only after in-flight requests drained.
	stopPoller()
	<-pollerDone
	if err != nil {
		return err
	}
	log.Info("settlement service stopped")
	return nil
}
