package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.temporal.io/sdk/client"
	temporalotel "go.temporal.io/sdk/contrib/opentelemetry"
	workerlog "go.temporal.io/sdk/log"

	"github.com/mmesim/provisioning-api/internal/domains/provisioning/adapters/backend"
	provhttp "github.com/mmesim/provisioning-api/internal/domains/provisioning/adapters/http"
	provmemory "github.com/mmesim/provisioning-api/internal/domains/provisioning/adapters/memory"
	provobs "github.com/mmesim/provisioning-api/internal/domains/provisioning/adapters/observability"
	provpostgres "github.com/mmesim/provisioning-api/internal/domains/provisioning/adapters/persistence/postgres"
	provworkflows "github.com/mmesim/provisioning-api/internal/domains/provisioning/adapters/workflows"
	provapp "github.com/mmesim/provisioning-api/internal/domains/provisioning/application"
	provports "github.com/mmesim/provisioning-api/internal/domains/provisioning/ports"
	platformobservability "github.com/mmesim/provisioning-api/internal/platform/observability"
	platformpostgres "github.com/mmesim/provisioning-api/internal/platform/postgres"
)

// Run boots the provisioning HTTP API with observability, repositories, and
// the verification orchestrator wired.
func Run(ctx context.Context) error {
	const serviceName = "provisioning-api"
	instruments, shutdown, err := platformobservability.Init(ctx, serviceName)
	if err != nil {
		return fmt.Errorf("failed to initialize observability: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			instruments.Logger.Error("failed to shutdown observability", slog.String("error", err.Error()))
		}
	}()
	logger := instruments.Logger

	cfg, err := LoadConfig()
	if err != nil {
		logger.Error("invalid configuration", slog.String("error", err.Error()))
		return err
	}

	flowRepo, cleanupRepo := buildFlowRepository(ctx, cfg, logger)
	defer cleanupRepo()

	backendClient, err := backend.NewClient(cfg.BackendBaseURL, &http.Client{Timeout: cfg.BackendTimeout})
	if err != nil {
		logger.Error("failed to configure backend client", slog.String("error", err.Error()))
		return err
	}

	coreService := provapp.NewService(flowRepo, backendClient)
	service := provobs.New(
		coreService,
		provobs.WithLogger(logger),
		provobs.WithTracer(instruments.Tracer("internal.provisioning.application")),
		provobs.WithMeter(instruments.Meter("internal.provisioning.application")),
	)

	var resolver provports.VerificationOrchestrator = provworkflows.NewInlineVerificationResolver(service, cfg.VerificationPoll, logger)
	if temporalClient, err := connectTemporalClient(cfg, instruments); err != nil {
		logger.Warn("Temporal unavailable, resolving verifications inline", slog.String("error", err.Error()))
	} else {
		defer temporalClient.Close()
		resolver = provworkflows.NewTemporalVerificationResolver(temporalClient, service, cfg.VerificationPoll)
		logger.Info("Temporal verification workflows enabled", slog.String("namespace", cfg.TemporalNamespace))
	}

	router := gin.Default()
	router.Use(otelgin.Middleware(serviceName))
	provhttp.NewHandler(service, resolver).RegisterRoutes(router)

	addr := ":" + cfg.Port
	logger.Info("provisioning API listening", slog.String("addr", addr))
	if err := router.Run(addr); err != nil {
		logger.Error("provisioning API server exited", slog.String("addr", addr), slog.String("error", err.Error()))
		return err
	}
	return nil
}

func buildFlowRepository(ctx context.Context, cfg Config, logger *slog.Logger) (provports.Repository, func()) {
	if cfg.PostgresDSN == "" {
		logger.Warn("POSTGRES_DSN not set, falling back to in-memory flow repository")
		return provmemory.NewRepository(), func() {}
	}
	db, err := platformpostgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Warn("failed to connect to postgres, falling back to memory", slog.String("error", err.Error()))
		return provmemory.NewRepository(), func() {}
	}
	sqlDB, err := db.DB()
	if err != nil {
		logger.Warn("failed to unwrap postgres connection, falling back to memory", slog.String("error", err.Error()))
		return provmemory.NewRepository(), func() {}
	}
	logger.Info("flow repository configured with postgres")
	return provpostgres.NewRepository(db), func() { _ = sqlDB.Close() }
}

func connectTemporalClient(cfg Config, instruments *platformobservability.Instruments) (client.Client, error) {
	if cfg.TemporalDisabled {
		return nil, errors.New("temporal disabled via TEMPORAL_DISABLED env")
	}
	tracerOptions := temporalotel.TracerOptions{}
	if instruments != nil {
		tracerOptions.Tracer = instruments.Tracer("temporal-client")
	}
	tracingInterceptor, err := temporalotel.NewTracingInterceptor(tracerOptions)
	if err != nil {
		return nil, err
	}
	logger := workerlog.NewStructuredLogger(effectiveLogger(instruments))
	options := client.Options{
		HostPort:  cfg.TemporalAddress,
		Namespace: cfg.TemporalNamespace,
		Logger:    logger,
	}
	options.Interceptors = append(options.Interceptors, tracingInterceptor)
	return client.Dial(options)
}

func effectiveLogger(instruments *platformobservability.Instruments) *slog.Logger {
	if instruments != nil && instruments.Logger != nil {
		return instruments.Logger
	}
	return slog.New(slog.NewTextHandler(os.Stdout, nil))
}
