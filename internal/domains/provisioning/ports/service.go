package ports

import (
	"context"

	provtypes "github.com/mmesim/provisioning-api/internal/domains/provisioning/application/types"
)

// Service defines the provisioning use cases exposed to adapters (inbound
// port). Every Submit* operation runs the local validator, calls exactly one
// collaborator, and advances the flow exactly one state on success.
type Service interface {
	StartFlow(ctx context.Context, input provtypes.StartFlowInput) (*provtypes.FlowSnapshot, error)
	SubmitPhone(ctx context.Context, input provtypes.PhoneInput) (*provtypes.FlowSnapshot, error)
	SubmitDevice(ctx context.Context, input provtypes.DeviceInput) (*provtypes.FlowSnapshot, error)
	RegisterOrder(ctx context.Context, input provtypes.RegisterInput) (*provtypes.FlowSnapshot, error)
	SubmitPayment(ctx context.Context, input provtypes.PaymentInput) (*provtypes.FlowSnapshot, error)
	CheckVerification(ctx context.Context, input provtypes.FlowIdentifier) (*provtypes.VerificationProgress, error)
	IssueCredential(ctx context.Context, input provtypes.FlowIdentifier) (*provtypes.FlowSnapshot, error)
	TimeoutVerification(ctx context.Context, input provtypes.FlowIdentifier) (*provtypes.FlowSnapshot, error)
	GetFlow(ctx context.Context, input provtypes.FlowIdentifier) (*provtypes.FlowSnapshot, error)
	AbandonFlow(ctx context.Context, input provtypes.FlowIdentifier) error
}
