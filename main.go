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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"github.com/mahirjain10/go-assets/config"
	"github.com/mahirjain10/go-assets/internal/assets"
	"github.com/mahirjain10/go-assets/internal/aws"
	"github.com/mahirjain10/go-assets/internal/fetch"
	"github.com/mahirjain10/go-assets/internal/observability"
	"github.com/mahirjain10/go-assets/internal/queue"
	"github.com/mahirjain10/go-assets/internal/queue/handlers"
	"github.com/mahirjain10/go-assets/internal/version"
)

const serviceName = "go-assets"

type App struct {
	config          *config.Config
	logger          zerolog.Logger
	metrics         *observability.Metrics
	store           *assets.Store
	versionChecker  *version.Checker
	rabbitMqService *queue.RabbitMqService
}

// NewApp creates and initializes a new App instance with all dependencies
func NewApp(ctx context.Context) (*App, error) {
	envConfig, loaded, err := config.InitializeEnvs()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize environment config: %w", err)
	}

	logger := observability.NewLogger(serviceName, version.Current, envConfig.LogLevel, os.Stdout)
	if loaded != "" {
		logger.Info().Str("file", loaded).Msg("loaded env file")
	} else {
		logger.Info().Msg("no env file found, using system environment variables")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(registry)

	store, err := assets.NewStore(envConfig.AssetsFolder, observability.Component(logger, "assets"), metrics)
	if err != nil {
		return nil, err
	}

	httpClient := &http.Client{Timeout: envConfig.HTTPTimeout}
	app := &App{
		config:         envConfig,
		logger:         logger,
		metrics:        metrics,
		store:          store,
		versionChecker: version.NewChecker(httpClient, envConfig.UpdateURL, version.Current),
	}

	if envConfig.RabbitMqURL == "" {
		return app, nil
	}

	var mirror handlers.Mirror
	if envConfig.AwsBucketName != "" {
		awsConfig, err := config.InitializeAws(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize AWS config: %w", err)
		}
		s3Client := aws.NewS3Client(awsConfig, envConfig.S3Endpoint)
		mirror = aws.NewS3Service(s3Client, envConfig.AwsBucketName, observability.Component(logger, "s3"))
	}

	fetcher := fetch.NewFetcher(httpClient, envConfig.HTTPTimeout, envConfig.TempFolder, observability.Component(logger, "fetch"), metrics)
	handler := handlers.NewThumbnailHandler(store, fetcher, mirror, envConfig.ThumbnailSize, observability.Component(logger, "handler"))

	conn, err := queue.NewRabbitMQClient(envConfig.RabbitMqURL)
	if err != nil {
		return nil, err
	}
	app.rabbitMqService = queue.NewRabbitMqService(conn, envConfig, handler, metrics, observability.Component(logger, "queue"))
	return app, nil
}

func (a *App) checkVersion(ctx context.Context) {
	if a.config.UpdateURL == "" {
		a.logger.Debug().Msg("UPDATE_URL not set, skipping version check")
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	latest, err := a.versionChecker.Check(ctx)
	switch {
	case err != nil:
		a.logger.Warn().Err(err).Msg("version check failed")
	case latest != "":
		a.logger.Info().Str("latest", latest).Msg("a newer release is available")
	default:
		a.logger.Debug().Msg("running the latest release")
	}
}

func (a *App) serveMetrics(ctx context.Context) {
	if a.config.MetricsAddr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", a.metrics.Handler())
	srv := &http.Server{Addr: a.config.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()
	go func() {
		a.logger.Info().Str("addr", a.config.MetricsAddr).Msg("serving metrics")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error().Err(err).Msg("metrics server stopped")
		}
	}()
}

func (a *App) Run(ctx context.Context) error {
	a.serveMetrics(ctx)
	go a.checkVersion(ctx)

	if a.rabbitMqService == nil {
		a.logger.Info().Str("assets", a.store.Root()).Msg("no RABBITMQ_URL configured, idling")
		<-ctx.Done()
		return nil
	}
	return a.rabbitMqService.Start(ctx)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := NewApp(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to initialize application:", err)
		os.Exit(1)
	}
	app.logger.Info().Msg("application initialized successfully")

	if err := app.Run(ctx); err != nil {
		app.logger.Fatal().Err(err).Msg("failed to run application")
	}
}
