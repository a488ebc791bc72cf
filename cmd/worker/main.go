package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/client"
	temporalotel "go.temporal.io/sdk/contrib/opentelemetry"
	workerlog "go.temporal.io/sdk/log"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"

	"github.com/mmesim/provisioning-api/internal/domains/provisioning/adapters/backend"
	provmemory "github.com/mmesim/provisioning-api/internal/domains/provisioning/adapters/memory"
	provobs "github.com/mmesim/provisioning-api/internal/domains/provisioning/adapters/observability"
	provpostgres "github.com/mmesim/provisioning-api/internal/domains/provisioning/adapters/persistence/postgres"
	provapp "github.com/mmesim/provisioning-api/internal/domains/provisioning/application"
	provports "github.com/mmesim/provisioning-api/internal/domains/provisioning/ports"
	provactivities "github.com/mmesim/provisioning-api/internal/durable/temporal/activities/provisioning"
	provworkflows "github.com/mmesim/provisioning-api/internal/durable/temporal/workflows/provisioning"
	platformobservability "github.com/mmesim/provisioning-api/internal/platform/observability"
	platformpostgres "github.com/mmesim/provisioning-api/internal/platform/postgres"
)

func main() {
	ctx := context.Background()
	const serviceName = "provisioning-worker"
	instruments, shutdown, err := platformobservability.Init(ctx, serviceName)
	if err != nil {
		log.Fatalf("failed to initialize observability: %v", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			instruments.Logger.Error("failed to shutdown observability", slog.String("error", err.Error()))
		}
	}()
	logger := instruments.Logger

	flowRepo, cleanupRepo := buildFlowRepository(ctx, logger)
	defer cleanupRepo()
	backendClient, err := backend.NewClient(os.Getenv("BACKEND_BASE_URL"), &http.Client{Timeout: 10 * time.Second})
	if err != nil {
		logger.Error("failed to configure backend client", slog.String("error", err.Error()))
		os.Exit(1)
	}
	service := provobs.New(
		provapp.NewService(flowRepo, backendClient),
		provobs.WithLogger(logger),
		provobs.WithTracer(instruments.Tracer("internal.provisioning.application")),
		provobs.WithMeter(instruments.Meter("internal.provisioning.application")),
	)
	activities := provactivities.NewActivities(service)

	tracerOptions := temporalotel.TracerOptions{Tracer: instruments.Tracer("temporal-worker")}
	tracingInterceptor, err := temporalotel.NewTracingInterceptor(tracerOptions)
	if err != nil {
		logger.Error("failed to configure Temporal tracing interceptor", slog.String("error", err.Error()))
		os.Exit(1)
	}
	clientOptions := client.Options{
		HostPort:  envOrDefault("TEMPORAL_ADDRESS", client.DefaultHostPort),
		Namespace: envOrDefault("TEMPORAL_NAMESPACE", client.DefaultNamespace),
		Logger:    workerlog.NewStructuredLogger(logger),
	}
	clientOptions.Interceptors = append(clientOptions.Interceptors, tracingInterceptor)
	temporalClient, err := client.Dial(clientOptions)
	if err != nil {
		logger.Error("failed to create Temporal client", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer temporalClient.Close()

	w := worker.New(temporalClient, provworkflows.VerificationTaskQueue, worker.Options{})
	w.RegisterWorkflowWithOptions(provworkflows.VerificationWorkflow, workflow.RegisterOptions{Name: provworkflows.VerificationWorkflowName})
	w.RegisterActivityWithOptions(activities.CheckVerification, activity.RegisterOptions{Name: provactivities.CheckVerificationActivityName})
	w.RegisterActivityWithOptions(activities.IssueCredential, activity.RegisterOptions{Name: provactivities.IssueCredentialActivityName})
	w.RegisterActivityWithOptions(activities.TimeoutVerification, activity.RegisterOptions{Name: provactivities.TimeoutVerificationActivityName})

	logger.Info("worker listening", slog.String("taskQueue", provworkflows.VerificationTaskQueue), slog.String("namespace", clientOptions.Namespace))
	if err := w.Run(worker.InterruptCh()); err != nil {
		logger.Error("Temporal worker exited with error", slog.String("error", err.Error()))
		return
	}
	logger.Info("Temporal worker stopped")
}

func buildFlowRepository(ctx context.Context, logger *slog.Logger) (provports.Repository, func()) {
	dsn := strings.TrimSpace(os.Getenv("POSTGRES_DSN"))
	if dsn == "" {
		logger.Warn("POSTGRES_DSN not set, falling back to in-memory flow repository")
		return provmemory.NewRepository(), func() {}
	}
	db, err := platformpostgres.Connect(ctx, dsn)
	if err != nil {
		logger.Warn("worker failed to connect to postgres (falling back to memory)", slog.String("error", err.Error()))
		return provmemory.NewRepository(), func() {}
	}
	sqlDB, err := db.DB()
	if err != nil {
		logger.Warn("worker failed to unwrap postgres connection (falling back to memory)", slog.String("error", err.Error()))
		return provmemory.NewRepository(), func() {}
	}
	logger.Info("worker flow repository configured with postgres")
	return provpostgres.NewRepository(db), func() { _ = sqlDB.Close() }
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
