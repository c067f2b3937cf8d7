package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ravepay/internal/checkout"
	"ravepay/internal/config"
	"ravepay/internal/logger"
	"ravepay/internal/metrics"
	"ravepay/internal/rave"
	"ravepay/internal/reconcile"

	"go.uber.org/zap"
)

const (
	orderTTL       = 24 * time.Hour
	shutdownMargin = 5 * time.Second
)

var startServerFunc = func(srv *http.Server) error {
	return srv.ListenAndServe()
}

type server struct {
	handler    http.Handler
	reconciler *reconcile.Reconciler
}

func newServer(cfg *config.Config) (*server, error) {
	client, err := rave.NewClient(rave.Options{
		PublicKey:          cfg.PublicKey,
		SecretKey:          cfg.SecretKey,
		Environment:        rave.ParseEnvironment(cfg.Environment),
		Logo:               cfg.Logo,
		Title:              cfg.Title,
		RequeryDelay:       cfg.RequeryDelay,
		MaxRequeryAttempts: cfg.RequeryAttempts,
		Timeout:            cfg.VerifyTimeout,
		Events:             rave.MultiHandler{rave.LogHandler{}, metrics.EventHandler{}},
	})
	if err != nil {
		return nil, err
	}

	rec := reconcile.NewReconciler(client, cfg.ReconcileInterval, orderTTL, func(ctx context.Context, res *rave.RequeryResult) {
		logger.FromCtx(ctx).Info("pending transaction resolved",
			zap.String("txref", res.TxRef),
			zap.Stringer("status", res.Status),
		)
	})

	orders := checkout.NewMemoryOrders(orderTTL)
	h := checkout.NewHandler(client, orders, rec, cfg.Prefix, cfg.RedirectURL)

	return &server{handler: checkout.NewRouter(h), reconciler: rec}, nil
}

func run(ctx context.Context) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	logger.Init(cfg.AppEnv)
	defer logger.Sync()

	metrics.MustRegister(nil)

	s, err := newServer(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go s.reconciler.Start(ctx)

	srv := &http.Server{
		Addr:              ":" + cfg.AppPort,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.L().Info("checkout server running",
		zap.String("port", cfg.AppPort),
		zap.String("environment", cfg.Environment),
	)
	return serve(ctx, srv, cfg.VerifyTimeout+shutdownMargin)
}

// serve runs srv until ctx is done, then drains in-flight requests for at
// most grace before returning.
func serve(ctx context.Context, srv *http.Server, grace time.Duration) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	shutdownErr := make(chan error, 1)
	go func() {
		<-ctx.Done()
		shutdownCtx, stop := context.WithTimeout(context.Background(), grace)
		defer stop()
		shutdownErr <- srv.Shutdown(shutdownCtx)
	}()

	serveErr := startServerFunc(srv)
	cancel()
	err := <-shutdownErr

	if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
		return serveErr
	}
	if err != nil {
		logger.L().Error("server shutdown", zap.Error(err))
		return err
	}
	logger.L().Info("server stopped")
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		logger.L().Fatal("server exited", zap.Error(err))
	}
}
