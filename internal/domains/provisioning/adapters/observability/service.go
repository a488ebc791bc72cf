package observability

import (
	"context"
	"io"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	nooptrace "go.opentelemetry.io/otel/trace/noop"

	provtypes "github.com/mmesim/provisioning-api/internal/domains/provisioning/application/types"
	"github.com/mmesim/provisioning-api/internal/domains/provisioning/domain"
	"github.com/mmesim/provisioning-api/internal/domains/provisioning/ports"
)

const tracerName = "github.com/mmesim/provisioning-api/internal/domains/provisioning/adapters/observability/service"

// Service decorates a provisioning application port with tracing, logging, and metrics.
type Service struct {
	inner   ports.Service
	tracer  trace.Tracer
	logger  *slog.Logger
	metrics serviceMetrics
}

type Option func(*Service)

// WithLogger injects a slog logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithTracer injects a tracer implementation.
func WithTracer(tr trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = tr
	}
}

// WithMeter injects the meter used to create service metrics instruments.
func WithMeter(m metric.Meter) Option {
	return func(s *Service) {
		s.metrics = newServiceMetrics(m)
	}
}

// New wires a decorator around the core service.
func New(inner ports.Service, opts ...Option) ports.Service {
	s := &Service{
		inner:   inner,
		tracer:  nooptrace.NewTracerProvider().Tracer(tracerName),
		logger:  defaultLogger(),
		metrics: newServiceMetrics(nil),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	if s.tracer == nil {
		s.tracer = nooptrace.NewTracerProvider().Tracer(tracerName)
	}
	if s.logger == nil {
		s.logger = defaultLogger()
	}
	return s
}

// StartFlow opens a new provisioning flow with instrumentation.
func (s *Service) StartFlow(ctx context.Context, input provtypes.StartFlowInput) (*provtypes.FlowSnapshot, error) {
	ctx, span := s.startSpan(ctx, "Service.StartFlow", attribute.String("flow.provider", input.Provider))
	defer span.End()

	s.logInfo(ctx, "starting flow", slog.String("provider", input.Provider))
	result, err := s.inner.StartFlow(ctx, input)
	if err != nil {
		return nil, s.handleError(ctx, span, "select_provider", err, "failed to start flow", slog.String("provider", input.Provider))
	}
	if result != nil {
		s.metrics.recordFlowStarted(ctx, result.Provider)
		span.SetAttributes(attribute.String("flow.id", result.FlowID))
		s.logInfo(ctx, "flow started", slog.String("flowId", result.FlowID), slog.String("provider", string(result.Provider)))
	}
	return result, nil
}

// SubmitPhone runs the phone validation step.
func (s *Service) SubmitPhone(ctx context.Context, input provtypes.PhoneInput) (*provtypes.FlowSnapshot, error) {
	ctx, span := s.startSpan(ctx, "Service.SubmitPhone", attribute.String("flow.id", input.FlowID))
	defer span.End()

	s.logInfo(ctx, "submitting phone", slog.String("flowId", input.FlowID))
	result, err := s.inner.SubmitPhone(ctx, input)
	if err != nil {
		return nil, s.handleError(ctx, span, "validate_phone", err, "phone validation failed", slog.String("flowId", input.FlowID))
	}
	s.logState(ctx, span, "phone validated", result)
	return result, nil
}

// SubmitDevice runs the device compatibility step.
func (s *Service) SubmitDevice(ctx context.Context, input provtypes.DeviceInput) (*provtypes.FlowSnapshot, error) {
	ctx, span := s.startSpan(ctx, "Service.SubmitDevice",
		attribute.String("flow.id", input.FlowID),
		attribute.String("device.type", input.DeviceType),
	)
	defer span.End()

	s.logInfo(ctx, "submitting device", slog.String("flowId", input.FlowID), slog.String("deviceType", input.DeviceType))
	result, err := s.inner.SubmitDevice(ctx, input)
	if err != nil {
		return nil, s.handleError(ctx, span, "check_device", err, "device check failed", slog.String("flowId", input.FlowID))
	}
	if result != nil && result.RequiresReview {
		span.SetAttributes(attribute.Bool("device.requires_review", true))
	}
	s.logState(ctx, span, "device checked", result)
	return result, nil
}

// RegisterOrder creates the backend order for the flow.
func (s *Service) RegisterOrder(ctx context.Context, input provtypes.RegisterInput) (*provtypes.FlowSnapshot, error) {
	ctx, span := s.startSpan(ctx, "Service.RegisterOrder", attribute.String("flow.id", input.FlowID))
	defer span.End()

	s.logInfo(ctx, "registering order", slog.String("flowId", input.FlowID))
	result, err := s.inner.RegisterOrder(ctx, input)
	if err != nil {
		return nil, s.handleError(ctx, span, "register_order", err, "order registration failed", slog.String("flowId", input.FlowID))
	}
	if result != nil {
		span.SetAttributes(attribute.String("order.id", result.OrderID))
	}
	s.logState(ctx, span, "order registered", result)
	return result, nil
}

// SubmitPayment verifies the MMQR payment and opens verification.
func (s *Service) SubmitPayment(ctx context.Context, input provtypes.PaymentInput) (*provtypes.FlowSnapshot, error) {
	ctx, span := s.startSpan(ctx, "Service.SubmitPayment", attribute.String("flow.id", input.FlowID))
	defer span.End()

	s.logInfo(ctx, "submitting payment", slog.String("flowId", input.FlowID))
	result, err := s.inner.SubmitPayment(ctx, input)
	if err != nil {
		return nil, s.handleError(ctx, span, "verify_payment", err, "payment verification failed", slog.String("flowId", input.FlowID))
	}
	s.logState(ctx, span, "payment verified", result)
	return result, nil
}

// CheckVerification polls the flow's verification status once.
func (s *Service) CheckVerification(ctx context.Context, input provtypes.FlowIdentifier) (*provtypes.VerificationProgress, error) {
	ctx, span := s.startSpan(ctx, "Service.CheckVerification", attribute.String("flow.id", input.FlowID))
	defer span.End()

	result, err := s.inner.CheckVerification(ctx, input)
	if err != nil {
		return nil, s.handleError(ctx, span, "verification", err, "verification check failed", slog.String("flowId", input.FlowID))
	}
	if result != nil {
		span.SetAttributes(attribute.String("verification.status", string(result.Status)))
		s.logInfo(ctx, "verification checked", slog.String("flowId", input.FlowID), slog.String("status", string(result.Status)))
	}
	return result, nil
}

// IssueCredential closes a verified flow with its eSIM profile.
func (s *Service) IssueCredential(ctx context.Context, input provtypes.FlowIdentifier) (*provtypes.FlowSnapshot, error) {
	ctx, span := s.startSpan(ctx, "Service.IssueCredential", attribute.String("flow.id", input.FlowID))
	defer span.End()

	s.logInfo(ctx, "issuing credential", slog.String("flowId", input.FlowID))
	result, err := s.inner.IssueCredential(ctx, input)
	if err != nil {
		return nil, s.handleError(ctx, span, "issue_credential", err, "credential issuance failed", slog.String("flowId", input.FlowID))
	}
	if result != nil && result.State == domain.StateIssued {
		s.metrics.recordCredentialIssued(ctx, result.Provider)
	}
	s.logState(ctx, span, "credential issued", result)
	return result, nil
}

// TimeoutVerification records an exhausted verification poll budget.
func (s *Service) TimeoutVerification(ctx context.Context, input provtypes.FlowIdentifier) (*provtypes.FlowSnapshot, error) {
	ctx, span := s.startSpan(ctx, "Service.TimeoutVerification", attribute.String("flow.id", input.FlowID))
	defer span.End()

	result, err := s.inner.TimeoutVerification(ctx, input)
	if err != nil {
		return nil, s.handleError(ctx, span, "verification", err, "failed to record verification timeout", slog.String("flowId", input.FlowID))
	}
	s.metrics.recordVerificationTimeout(ctx)
	s.logState(ctx, span, "verification timed out", result)
	return result, nil
}

// GetFlow loads the current flow snapshot.
func (s *Service) GetFlow(ctx context.Context, input provtypes.FlowIdentifier) (*provtypes.FlowSnapshot, error) {
	ctx, span := s.startSpan(ctx, "Service.GetFlow", attribute.String("flow.id", input.FlowID))
	defer span.End()

	result, err := s.inner.GetFlow(ctx, input)
	if err != nil {
		return nil, s.handleError(ctx, span, "", err, "failed to load flow", slog.String("flowId", input.FlowID))
	}
	if result != nil {
		span.SetAttributes(attribute.String("flow.state", string(result.State)))
	}
	return result, nil
}

// AbandonFlow discards a flow and its state.
func (s *Service) AbandonFlow(ctx context.Context, input provtypes.FlowIdentifier) error {
	ctx, span := s.startSpan(ctx, "Service.AbandonFlow", attribute.String("flow.id", input.FlowID))
	defer span.End()

	s.logInfo(ctx, "abandoning flow", slog.String("flowId", input.FlowID))
	if err := s.inner.AbandonFlow(ctx, input); err != nil {
		return s.handleError(ctx, span, "", err, "failed to abandon flow", slog.String("flowId", input.FlowID))
	}
	s.metrics.recordFlowAbandoned(ctx)
	s.logInfo(ctx, "flow abandoned", slog.String("flowId", input.FlowID))
	return nil
}

func (s *Service) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	tracer := s.tracer
	if tracer == nil {
		tracer = nooptrace.NewTracerProvider().Tracer(tracerName)
	}
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func (s *Service) logState(ctx context.Context, span trace.Span, msg string, snapshot *provtypes.FlowSnapshot) {
	if snapshot == nil {
		return
	}
	span.SetAttributes(attribute.String("flow.state", string(snapshot.State)))
	s.logInfo(ctx, msg, slog.String("flowId", snapshot.FlowID), slog.String("state", string(snapshot.State)))
}

func (s *Service) logInfo(ctx context.Context, msg string, attrs ...slog.Attr) {
	if s.logger == nil {
		return
	}
	s.logger.LogAttrs(ctx, slog.LevelInfo, msg, attrs...)
}

func (s *Service) logError(ctx context.Context, msg string, err error, attrs ...slog.Attr) {
	if s.logger == nil {
		return
	}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	s.logger.LogAttrs(ctx, slog.LevelError, msg, attrs...)
}

// handleError records the failure on the span, counts recoverable step
// errors by kind, and logs before returning the error unchanged.
func (s *Service) handleError(ctx context.Context, span trace.Span, step string, err error, msg string, attrs ...slog.Attr) error {
	if err == nil {
		return nil
	}
	if span != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	if stepErr, ok := domain.AsStepError(err); ok {
		if step == "" {
			step = stepErr.Step
		}
		s.metrics.recordStepFailure(ctx, step, stepErr.Kind)
		attrs = append(attrs, slog.String("errorKind", string(stepErr.Kind)))
	}
	s.logError(ctx, msg, err, attrs...)
	return err
}

func defaultLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var _ ports.Service = (*Service)(nil)
