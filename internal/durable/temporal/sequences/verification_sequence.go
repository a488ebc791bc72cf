package sequences

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/mmesim/provisioning-api/internal/domains/provisioning/domain"
	provactivities "github.com/mmesim/provisioning-api/internal/durable/temporal/activities/provisioning"
)

// VerificationSequenceInput bounds the poll loop for one flow.
type VerificationSequenceInput struct {
	FlowID       string
	PollInterval time.Duration
	MaxAttempts  int
}

func (in VerificationSequenceInput) normalize() VerificationSequenceInput {
	if in.PollInterval <= 0 {
		in.PollInterval = 3 * time.Second
	}
	if in.MaxAttempts <= 0 {
		in.MaxAttempts = 20
	}
	return in
}

// RunVerificationSequence polls the verification status activity on a fixed
// interval until it reports a terminal status or the attempt budget is
// spent. Verified flows continue into credential issuance; exhausted ones
// are marked timed out rather than failed.
func RunVerificationSequence(ctx workflow.Context, input VerificationSequenceInput) error {
	logger := workflow.GetLogger(ctx)
	input = input.normalize()
	logger.Info("verification sequence started", "flowId", input.FlowID, "maxAttempts", input.MaxAttempts)

	options := workflow.ActivityOptions{
		StartToCloseTimeout: time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    2 * time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    10 * time.Second,
			MaximumAttempts:    3,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, options)

	for attempt := 1; attempt <= input.MaxAttempts; attempt++ {
		var status domain.VerificationStatus
		if err := workflow.ExecuteActivity(ctx, provactivities.CheckVerificationActivityName, input.FlowID).Get(ctx, &status); err != nil {
			logger.Error("verification status check failed", "flowId", input.FlowID, "attempt", attempt, "error", err)
			return err
		}
		switch status {
		case domain.VerificationVerified:
			logger.Info("verification resolved", "flowId", input.FlowID, "attempt", attempt)
			return workflow.ExecuteActivity(ctx, provactivities.IssueCredentialActivityName, input.FlowID).Get(ctx, nil)
		case domain.VerificationFailed:
			// The check activity already moved the flow to failed.
			logger.Info("verification failed", "flowId", input.FlowID, "attempt", attempt)
			return nil
		}
		if attempt < input.MaxAttempts {
			if err := workflow.Sleep(ctx, input.PollInterval); err != nil {
				return err
			}
		}
	}
	logger.Info("verification attempts exhausted", "flowId", input.FlowID)
	return workflow.ExecuteActivity(ctx, provactivities.TimeoutVerificationActivityName, input.FlowID).Get(ctx, nil)
}
