package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/joho/godotenv"

	"github.com/brpix/pix-processor/api"
	tracerConfig "github.com/brpix/pix-processor/config"
	"github.com/brpix/pix-processor/processors"
	"github.com/brpix/pix-processor/utils"
)

const (
	envEnv                      = "ENV"
	envSentryDsn                = "SENTRY_DSN"
	envOtelExporterOtlpEndpoint = "OTEL_EXPORTER_OTLP_ENDPOINT"
	envOtelInsecure             = "OTEL_INSECURE"
	envOtelServiceName          = "OTEL_SERVICE_NAME"

	envAPIAddr      = "PIX_API_ADDR"
	envMasterAPIKey = "PIX_API_KEY"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil)).
		With("service", "pix_processor")
	slog.SetDefault(logger)

	setupGracefulShutdown(cancel, logger)

	otelEndpoint := os.Getenv(envOtelExporterOtlpEndpoint)
	if otelEndpoint != "" {
		telemetryCfg := tracerConfig.TracerConfig{
			ServiceName: os.Getenv(envOtelServiceName),
			EndpointURL: otelEndpoint,
			Insecure:    os.Getenv(envOtelInsecure),
		}
		tracerConfig.InitOTLPTracer(telemetryCfg)
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              os.Getenv(envSentryDsn),
		Environment:      os.Getenv(envEnv),
		Debug:            false,
		AttachStacktrace: true,
	})

	if err != nil {
		fmt.Printf("Sentry initialization failed: %v\n", err)
	}

	defer sentry.Flush(2 * time.Second)

	runtime := processors.Start(ctx, &processors.Config{
		Logger:       logger,
		UseTelemetry: otelEndpoint != "",
	})
	defer runtime.Stop()

	router := api.NewRouter(runtime.Issuer, runtime.Store, api.RouterConfig{
		MasterAPIKey: os.Getenv(envMasterAPIKey),
		ArtifactDir:  runtime.Renderer.Dir(),
	})

	server := &http.Server{
		Addr:    utils.GetEnv(envAPIAddr, ":3000"),
		Handler: router,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("error shutting down the API server", slog.String("error", err.Error()))
		}
	}()

	logger.Info("API server listening", slog.String("addr", server.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		utils.LogAndPanic(logger, err, "API server failed")
	}

	logger.Info("pix processor stopped")
}

func setupGracefulShutdown(cancel context.CancelFunc, logger *slog.Logger) {
	signChan := make(chan os.Signal, 1)
	signal.Notify(signChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-signChan
		logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		cancel()
	}()
}
