package observability

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/mmesim/provisioning-api/internal/domains/provisioning/domain"
)

type serviceMetrics struct {
	flowsStarted         metric.Int64Counter
	flowsAbandoned       metric.Int64Counter
	stepFailures         metric.Int64Counter
	credentialsIssued    metric.Int64Counter
	verificationTimeouts metric.Int64Counter
}

func newServiceMetrics(m metric.Meter) serviceMetrics {
	if m == nil {
		return serviceMetrics{}
	}
	flowsStarted, _ := m.Int64Counter("provisioning.flows.started", metric.WithDescription("Number of provisioning flows started"))
	flowsAbandoned, _ := m.Int64Counter("provisioning.flows.abandoned", metric.WithDescription("Number of provisioning flows abandoned"))
	stepFailures, _ := m.Int64Counter("provisioning.steps.failed", metric.WithDescription("Number of failed workflow steps"))
	credentialsIssued, _ := m.Int64Counter("provisioning.credentials.issued", metric.WithDescription("Number of eSIM credentials issued"))
	verificationTimeouts, _ := m.Int64Counter("provisioning.verification.timeouts", metric.WithDescription("Number of verification attempts that ran out of polls"))
	return serviceMetrics{
		flowsStarted:         flowsStarted,
		flowsAbandoned:       flowsAbandoned,
		stepFailures:         stepFailures,
		credentialsIssued:    credentialsIssued,
		verificationTimeouts: verificationTimeouts,
	}
}

func (m serviceMetrics) recordFlowStarted(ctx context.Context, provider domain.Provider) {
	addCounter(ctx, m.flowsStarted, 1, attribute.String("flow.provider", string(provider)))
}

func (m serviceMetrics) recordFlowAbandoned(ctx context.Context) {
	addCounter(ctx, m.flowsAbandoned, 1)
}

func (m serviceMetrics) recordStepFailure(ctx context.Context, step string, kind domain.ErrorKind) {
	addCounter(ctx, m.stepFailures, 1,
		attribute.String("flow.step", step),
		attribute.String("error.kind", string(kind)),
	)
}

func (m serviceMetrics) recordCredentialIssued(ctx context.Context, provider domain.Provider) {
	addCounter(ctx, m.credentialsIssued, 1, attribute.String("flow.provider", string(provider)))
}

func (m serviceMetrics) recordVerificationTimeout(ctx context.Context) {
	addCounter(ctx, m.verificationTimeouts, 1)
}

func addCounter(ctx context.Context, counter metric.Int64Counter, value int64, attrs ...attribute.KeyValue) {
	if counter == nil {
		return
	}
	counter.Add(ctx, value, metric.WithAttributes(attrs...))
}
