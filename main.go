package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"fragmentone/config"
	"fragmentone/config/database"
	"fragmentone/internal/auth"
	"fragmentone/pkg/logger"
	"fragmentone/pkg/metrics"
	"fragmentone/router"
	"fragmentone/socket"

	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Init("info")
		logger.Sugar.Fatalf("Invalid configuration: %v", err)
	}
	logger.Init(cfg.LogLevel)
	defer logger.Log.Sync()

	db := database.Connect(cfg.DSN())
	defer db.Close()
	if err := database.Migrate(db); err != nil {
		logger.Sugar.Fatalf("Migration failed: %v", err)
	}

	collector := metrics.NewCollector("fragment")

	// The hub announces new fragments to connected listeners.
	hub := socket.NewHub(collector)
	go hub.Run()
	defer hub.Stop()

	handler := router.Setup(router.Deps{
		DB:             db,
		Hub:            hub,
		Issuer:         auth.NewIssuer(cfg.JWTSecret, cfg.TokenTTL),
		Metrics:        collector,
		AllowedOrigins: cfg.AllowedOrigins,
	})

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Sugar.Infof("Fragment server listening on %s", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Sugar.Errorf("Server failed: %v", err)
	}
	logger.Sugar.Info("Server stopped")
}
