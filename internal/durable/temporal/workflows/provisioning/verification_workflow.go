package provisioning

import (
	"time"

	"go.temporal.io/sdk/workflow"

	"github.com/mmesim/provisioning-api/internal/durable/temporal/sequences"
)

const (
	// VerificationWorkflowName is the public identifier for registering the workflow.
	VerificationWorkflowName = "provisioning.workflows.Verification"
	// VerificationTaskQueue is the queue consumed by the worker resolving verifications.
	VerificationTaskQueue = "ESIM_VERIFICATION"
)

// VerificationWorkflowInput captures the flow to resolve plus its poll bounds.
type VerificationWorkflowInput struct {
	FlowID       string
	PollInterval time.Duration
	MaxAttempts  int
	TraceID      string
}

// VerificationWorkflow resolves the asynchronous verification of one flow:
// it polls the status resource to a terminal answer, issues the credential
// on success, and records a timeout when the attempt budget runs out.
func VerificationWorkflow(ctx workflow.Context, input VerificationWorkflowInput) error {
	logger := workflow.GetLogger(ctx)
	logger.Info("VerificationWorkflow started", withTraceID(input.TraceID, "flowId", input.FlowID)...)
	err := sequences.RunVerificationSequence(ctx, sequences.VerificationSequenceInput{
		FlowID:       input.FlowID,
		PollInterval: input.PollInterval,
		MaxAttempts:  input.MaxAttempts,
	})
	if err != nil {
		logger.Error("VerificationWorkflow failed", withTraceID(input.TraceID, "flowId", input.FlowID, "error", err)...)
		return err
	}
	logger.Info("VerificationWorkflow completed", withTraceID(input.TraceID, "flowId", input.FlowID)...)
	return nil
}

func withTraceID(traceID string, keyvals ...interface{}) []interface{} {
	if traceID == "" {
		return keyvals
	}
	return append(keyvals, "traceId", traceID)
}
