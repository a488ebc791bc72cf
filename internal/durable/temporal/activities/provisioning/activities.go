package provisioning

import (
	"context"
	"errors"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"

	provtypes "github.com/mmesim/provisioning-api/internal/domains/provisioning/application/types"
	"github.com/mmesim/provisioning-api/internal/domains/provisioning/domain"
	provports "github.com/mmesim/provisioning-api/internal/domains/provisioning/ports"
)

const (
	// CheckVerificationActivityName performs one idempotent status poll.
	CheckVerificationActivityName = "provisioning.activities.CheckVerification"
	// IssueCredentialActivityName fetches the eSIM profile for a verified flow.
	IssueCredentialActivityName = "provisioning.activities.IssueCredential"
	// TimeoutVerificationActivityName records an exhausted poll budget.
	TimeoutVerificationActivityName = "provisioning.activities.TimeoutVerification"
)

// Activities bundles the verification continuation steps around the
// provisioning service.
type Activities struct {
	service provports.Service
}

// NewActivities wires the provisioning service into the activity bundle.
func NewActivities(service provports.Service) *Activities {
	return &Activities{service: service}
}

// CheckVerification polls the verification resource once and returns the
// reported status. Fatal step errors are non-retryable: the flow has already
// reached a terminal answer and retrying the poll cannot change it.
func (a *Activities) CheckVerification(ctx context.Context, flowID string) (domain.VerificationStatus, error) {
	logger := activity.GetLogger(ctx)
	if a == nil || a.service == nil {
		return "", errors.New("verification activity not initialized")
	}
	progress, err := a.service.CheckVerification(ctx, provtypes.FlowIdentifier{FlowID: flowID})
	if err != nil {
		logger.Error("CheckVerification activity failed", "flowId", flowID, "error", err)
		return "", nonRetryableIfTerminal(err)
	}
	logger.Info("CheckVerification activity completed", "flowId", flowID, "status", string(progress.Status))
	return progress.Status, nil
}

// IssueCredential closes a verified flow with its eSIM profile.
func (a *Activities) IssueCredential(ctx context.Context, flowID string) error {
	logger := activity.GetLogger(ctx)
	if a == nil || a.service == nil {
		return errors.New("issuance activity not initialized")
	}
	if _, err := a.service.IssueCredential(ctx, provtypes.FlowIdentifier{FlowID: flowID}); err != nil {
		logger.Error("IssueCredential activity failed", "flowId", flowID, "error", err)
		return nonRetryableIfTerminal(err)
	}
	logger.Info("IssueCredential activity completed", "flowId", flowID)
	return nil
}

// TimeoutVerification records that polling exceeded its bound.
func (a *Activities) TimeoutVerification(ctx context.Context, flowID string) error {
	logger := activity.GetLogger(ctx)
	if a == nil || a.service == nil {
		return errors.New("timeout activity not initialized")
	}
	if _, err := a.service.TimeoutVerification(ctx, provtypes.FlowIdentifier{FlowID: flowID}); err != nil {
		logger.Error("TimeoutVerification activity failed", "flowId", flowID, "error", err)
		return nonRetryableIfTerminal(err)
	}
	logger.Info("TimeoutVerification activity completed", "flowId", flowID)
	return nil
}

func nonRetryableIfTerminal(err error) error {
	if errors.Is(err, provports.ErrNotFound) {
		return temporal.NewNonRetryableApplicationError("flow abandoned", "FlowNotFound", err)
	}
	if stepErr, ok := domain.AsStepError(err); ok && !stepErr.Kind.Recoverable() {
		return temporal.NewNonRetryableApplicationError(stepErr.Message, string(stepErr.Kind), err)
	}
	return err
}
