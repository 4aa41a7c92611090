// Package main is the entry point for the AI gateway server.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aigateway/aigateway/internal/api"
	"github.com/aigateway/aigateway/internal/config"
	"github.com/aigateway/aigateway/internal/observability"
	"github.com/aigateway/aigateway/internal/provider/cerebras"
	"github.com/aigateway/aigateway/internal/provider/custom"
	"github.com/aigateway/aigateway/internal/provider/ollama"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to configuration file")
	flag.Parse()

	bootLogger := observability.NewLogger(observability.LoggerConfig{
		Level:      "info",
		Output:     os.Stdout,
		JSONFormat: true,
	})

	cfgManager, err := config.NewManager(*configPath, bootLogger)
	if err != nil {
		bootLogger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	cfg := cfgManager.Get()

	logger := observability.NewLogger(observability.LoggerConfig{
		Level:      cfg.Logging.Level,
		Output:     os.Stdout,
		JSONFormat: cfg.Logging.Format != "text",
	})
	logger.Info("starting gateway", "version", "0.1.0")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := cfgManager.Watch(ctx); err != nil {
		logger.Warn("config hot-reload disabled", "error", err)
	}

	tracerProvider, err := observability.InitTracing(ctx, observability.TracingConfig{
		Enabled:     cfg.Tracing.Enabled,
		Endpoint:    cfg.Tracing.Endpoint,
		ServiceName: cfg.Tracing.ServiceName,
		SampleRate:  cfg.Tracing.SampleRate,
		Insecure:    cfg.Tracing.Insecure,
	})
	if err != nil {
		logger.Error("failed to initialize tracing", "error", err)
		os.Exit(1)
	}

	// Wire each namespace to its provider. The streamer slot stays nil for
	// providers that cannot stream; those requests get a 501.
	customProvider := custom.New(logger)
	cerebrasProvider := cerebras.New(cerebras.Config{
		APIKey:  cfg.Cerebras.APIKey,
		BaseURL: cfg.Cerebras.BaseURL,
		Timeout: cfg.Cerebras.Timeout,
		Logger:  logger,
	})
	ollamaProvider := ollama.New(ollama.Config{
		Host:     cfg.Ollama.Host,
		Timeout:  cfg.Ollama.Timeout,
		CacheTTL: cfg.Ollama.CacheTTL,
		Logger:   logger,
	})

	backends := []api.Backend{
		{Name: "custom", Provider: customProvider},
		{Name: "cerebras", Provider: cerebrasProvider},
		{Name: "ollama", Provider: ollamaProvider, Streamer: ollamaProvider},
	}
	for _, b := range backends {
		logger.Info("provider registered", "name", b.Name, "streaming", b.Streamer != nil)
	}

	handler := api.NewHandler(logger)
	mux := http.NewServeMux()
	registerRoutes(mux, handler, backends, cfg)

	stack := buildMiddlewareStack(cfg, logger)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      stack(mux),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("server listening", "port", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}
	if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
		logger.Error("tracer shutdown error", "error", err)
	}

	cfgManager.Close()
	logger.Info("server stopped")
}
