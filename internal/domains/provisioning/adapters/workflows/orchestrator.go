package workflows

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	oteltrace "go.opentelemetry.io/otel/trace"
	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/client"

	provtypes "github.com/mmesim/provisioning-api/internal/domains/provisioning/application/types"
	"github.com/mmesim/provisioning-api/internal/domains/provisioning/domain"
	"github.com/mmesim/provisioning-api/internal/domains/provisioning/ports"
	provworkflows "github.com/mmesim/provisioning-api/internal/durable/temporal/workflows/provisioning"
	"github.com/mmesim/provisioning-api/internal/shared/polling"
)

var (
	_ ports.VerificationOrchestrator = (*TemporalVerificationResolver)(nil)
	_ ports.VerificationOrchestrator = (*InlineVerificationResolver)(nil)
)

// TemporalVerificationResolver runs the post-payment continuation as a
// durable workflow: polling, timeout, and issuance survive process restarts.
type TemporalVerificationResolver struct {
	client    client.Client
	service   ports.Service
	taskQueue string
	poll      polling.Config
}

// NewTemporalVerificationResolver wires a Temporal client into the resolver.
func NewTemporalVerificationResolver(c client.Client, service ports.Service, poll polling.Config) *TemporalVerificationResolver {
	return &TemporalVerificationResolver{
		client:    c,
		service:   service,
		taskQueue: provworkflows.VerificationTaskQueue,
		poll:      poll,
	}
}

// SubmitPayment runs the payment step, then starts the verification workflow
// without waiting for it: the flow snapshot returns in verifying state and
// the presentation polls GetFlow for progress.
func (r *TemporalVerificationResolver) SubmitPayment(ctx context.Context, input provtypes.PaymentInput) (*provtypes.FlowSnapshot, error) {
	if r == nil || r.client == nil || r.service == nil {
		return nil, errors.New("temporal verification resolver not configured")
	}
	snapshot, err := r.service.SubmitPayment(ctx, input)
	if err != nil {
		return nil, err
	}
	options := client.StartWorkflowOptions{
		ID:        verificationWorkflowID(input.FlowID),
		TaskQueue: r.taskQueue,
	}
	workflowInput := provworkflows.VerificationWorkflowInput{
		FlowID:       input.FlowID,
		PollInterval: r.poll.Interval,
		MaxAttempts:  r.poll.MaxAttempts,
		TraceID:      traceComponent(ctx),
	}
	_, err = r.client.ExecuteWorkflow(ctx, options, provworkflows.VerificationWorkflow, workflowInput)
	if err != nil {
		var alreadyStarted *serviceerror.WorkflowExecutionAlreadyStarted
		if errors.As(err, &alreadyStarted) {
			return snapshot, nil
		}
		return nil, domain.NewTransportError("verify_payment", "failed to schedule verification", err)
	}
	return snapshot, nil
}

// Cancel requests cancellation of the flow's verification workflow.
func (r *TemporalVerificationResolver) Cancel(ctx context.Context, flowID string) error {
	if r == nil || r.client == nil {
		return nil
	}
	err := r.client.CancelWorkflow(ctx, verificationWorkflowID(flowID), "")
	var notFound *serviceerror.NotFound
	if errors.As(err, &notFound) {
		return nil
	}
	return err
}

func verificationWorkflowID(flowID string) string {
	return fmt.Sprintf("esim-verification-%s", flowID)
}

func traceComponent(ctx context.Context) string {
	spanCtx := oteltrace.SpanFromContext(ctx).SpanContext()
	if !spanCtx.IsValid() || !spanCtx.TraceID().IsValid() {
		return ""
	}
	return spanCtx.TraceID().String()
}

// InlineVerificationResolver drives the continuation in-process with a
// cancellable goroutine per flow, useful for tests and dev fallbacks when no
// Temporal cluster is reachable.
type InlineVerificationResolver struct {
	service ports.Service
	poll    polling.Config
	logger  *slog.Logger

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
	done    sync.WaitGroup
}

// NewInlineVerificationResolver wraps the provisioning service for in-process resolution.
func NewInlineVerificationResolver(service ports.Service, poll polling.Config, logger *slog.Logger) *InlineVerificationResolver {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stdout, nil))
	}
	return &InlineVerificationResolver{
		service: service,
		poll:    poll,
		logger:  logger,
		cancels: map[string]context.CancelFunc{},
	}
}

// SubmitPayment runs the payment step and schedules in-process resolution.
func (r *InlineVerificationResolver) SubmitPayment(ctx context.Context, input provtypes.PaymentInput) (*provtypes.FlowSnapshot, error) {
	if r == nil || r.service == nil {
		return nil, errors.New("inline verification resolver not configured")
	}
	snapshot, err := r.service.SubmitPayment(ctx, input)
	if err != nil {
		return nil, err
	}
	r.schedule(input.FlowID)
	return snapshot, nil
}

// Cancel stops the flow's resolution goroutine if one is running.
func (r *InlineVerificationResolver) Cancel(_ context.Context, flowID string) error {
	r.mu.Lock()
	cancel, ok := r.cancels[flowID]
	delete(r.cancels, flowID)
	r.mu.Unlock()
	if ok {
		cancel()
	}
	return nil
}

// Wait blocks until every scheduled resolution finished. Test helper.
func (r *InlineVerificationResolver) Wait() {
	r.done.Wait()
}

func (r *InlineVerificationResolver) schedule(flowID string) {
	ctx, cancel := context.WithCancel(context.Background())
	r.mu.Lock()
	if previous, ok := r.cancels[flowID]; ok {
		previous()
	}
	r.cancels[flowID] = cancel
	r.mu.Unlock()

	r.done.Add(1)
	go func() {
		defer r.done.Done()
		defer func() { _ = r.Cancel(context.Background(), flowID) }()
		r.resolve(ctx, flowID)
	}()
}

func (r *InlineVerificationResolver) resolve(ctx context.Context, flowID string) {
	identifier := provtypes.FlowIdentifier{FlowID: flowID}
	status, err := polling.Poll(ctx, r.poll, func(ctx context.Context) (domain.VerificationStatus, bool, error) {
		progress, err := r.service.CheckVerification(ctx, identifier)
		if err != nil {
			if errors.Is(err, ports.ErrNotFound) {
				// Flow was abandoned between polls.
				return "", false, err
			}
			// A transient poll failure spends one attempt; the overall
			// budget still bounds the wait.
			r.logger.Warn("verification poll failed", slog.String("flowId", flowID), slog.String("error", err.Error()))
			return domain.VerificationPending, false, nil
		}
		if progress.Status == domain.VerificationPending {
			return progress.Status, false, nil
		}
		return progress.Status, true, nil
	})
	switch {
	case errors.Is(err, polling.ErrExhausted):
		if _, timeoutErr := r.service.TimeoutVerification(ctx, identifier); timeoutErr != nil {
			r.logger.Error("failed to record verification timeout", slog.String("flowId", flowID), slog.String("error", timeoutErr.Error()))
		}
		return
	case err != nil:
		return
	}
	if status != domain.VerificationVerified {
		return
	}
	if _, err := r.service.IssueCredential(ctx, identifier); err != nil {
		r.logger.Error("credential issuance failed", slog.String("flowId", flowID), slog.String("error", err.Error()))
	}
}
