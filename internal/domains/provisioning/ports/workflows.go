package ports

import (
	"context"

	provtypes "github.com/mmesim/provisioning-api/internal/domains/provisioning/application/types"
)

// VerificationOrchestrator owns the auto-advancing continuation after
// payment acceptance: it delegates the payment step to the service and then
// drives verification polling plus credential issuance to a terminal
// outcome, without further user input.
type VerificationOrchestrator interface {
	// SubmitPayment runs the payment step and, on success, schedules
	// verification resolution for the flow.
	SubmitPayment(ctx context.Context, input provtypes.PaymentInput) (*provtypes.FlowSnapshot, error)
	// Cancel stops any in-flight resolution for the flow, e.g. when the
	// user abandons it. Cancelling an unknown flow is a no-op.
	Cancel(ctx context.Context, flowID string) error
}
