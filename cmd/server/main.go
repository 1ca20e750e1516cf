package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"shopledger/backend/internal/bootstrap"
	"shopledger/backend/internal/config"
	"shopledger/backend/internal/httpapi"
	"shopledger/backend/internal/logger"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("server failed")
	}
}

func run() error {
	// A missing .env is fine; the environment may already be set.
	_ = godotenv.Load()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	logCloser, err := logger.Setup(cfg.LogConfig())
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer logCloser.Close()

	srvLog := logger.WithComponent("server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	closers := make([]func() error, 0, 2)
	gw, err := bootstrap.OpenGateway(ctx, cfg, srvLog)
	if err != nil {
		return err
	}
	closers = append(closers, gw.Close)

	reports, closeCache := bootstrap.OpenCache(ctx, cfg, srvLog)
	if closeCache != nil {
		closers = append(closers, closeCache)
	}

	svc, err := bootstrap.Service(cfg, gw, reports)
	if err != nil {
		return err
	}
	api := httpapi.New(svc, cfg.AllowedOrigin)

	server := newServer(cfg, api.Handler())
	serveErr := make(chan error, 1)
	go func() {
		srvLog.Info().Str("addr", cfg.Address()).Str("base_currency", cfg.BaseCurrency).Msg("shopledger listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case err := <-serveErr:
		if err != nil {
			srvLog.Error().Err(err).Msg("server error")
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		srvLog.Error().Err(err).Msg("shutdown error")
	}

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			srvLog.Error().Err(err).Msg("close error")
		}
	}

	srvLog.Info().Msg("server stopped")
	return nil
}

func newServer(cfg config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Address(),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
