package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"mpesa-gateway/config"
	"mpesa-gateway/internal/handlers"
	"mpesa-gateway/internal/middleware"
	"mpesa-gateway/internal/repository"
	"mpesa-gateway/internal/services"
	"mpesa-gateway/internal/services/mpesa"
	"mpesa-gateway/migrations"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func Start() error {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Warn("no .env file loaded", "error", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if dir := filepath.Dir(cfg.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	if err := repository.RunMigrations(cfg.DBPath, migrations.FS); err != nil {
		return err
	}
	db, err := repository.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()

	daraja := mpesa.New(&mpesa.Config{
		BaseURL:        cfg.BaseURL,
		ConsumerKey:    cfg.ConsumerKey,
		ConsumerSecret: cfg.ConsumerSecret,
		ShortCode:      cfg.ShortCode,
		Passkey:        cfg.Passkey,
		CallbackURL:    cfg.CallbackURL,
		Timeout:        cfg.MpesaTimeout,
	})

	repo := repository.NewTransactionRepository(db)
	paymentService := services.NewPaymentService(repo, daraja)
	paymentHandler := handlers.NewPaymentHandler(paymentService)

	e := echo.New()
	e.Use(middleware.Recover(), middleware.Logging())

	e.POST("/payment", paymentHandler.InitiatePayment)
	e.POST("/callback", paymentHandler.Callback)
	e.POST("/status", paymentHandler.Status)

	if cfg.EnableMetrics {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			slog.Info("metrics listener started", "port", cfg.MetricsPort)
			if err := http.ListenAndServe(":"+cfg.MetricsPort, mux); err != nil {
				slog.Error("metrics listener stopped", "error", err)
			}
		}()
	}

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: e,
		// The initiation path blocks on provider calls, so the write
		// timeout has to outlast the provider timeout.
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.MpesaTimeout + 10*time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server started", "port", cfg.Port, "environment", cfg.Environment)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	slog.Info("server stopped gracefully")
	return nil
}
