package application

import (
	"errors"
	"fmt"

	"github.com/mmesim/provisioning-api/internal/domains/provisioning/domain"
)

// Step identifiers used in error reporting and traces.
const (
	StepSelectProvider  = "select_provider"
	StepValidatePhone   = "validate_phone"
	StepCheckDevice     = "check_device"
	StepRegisterOrder   = "register_order"
	StepVerifyPayment   = "verify_payment"
	StepVerification    = "verification"
	StepIssueCredential = "issue_credential"
)

// stepConflict rejects a submission that does not match the flow's current
// state. This runs before the collaborator call, so resubmitting an already
// completed step never re-triggers remote side effects.
func stepConflict(step string, state domain.State) *domain.StepError {
	if state == domain.StateFailed {
		return domain.NewFatal(step, "flow has failed and accepts no further steps")
	}
	return domain.NewValidationError(step, fmt.Sprintf("step %s is not valid while the flow is %s", step, state))
}

// mapDomainError normalizes aggregate guard failures into step errors.
func mapDomainError(step string, err error) error {
	if err == nil {
		return nil
	}
	var stepErr *domain.StepError
	if errors.As(err, &stepErr) {
		return err
	}
	if errors.Is(err, domain.ErrFlowTerminal) {
		return domain.NewFatal(step, "flow is already in a terminal state")
	}
	var transition *domain.TransitionError
	if errors.As(err, &transition) {
		return domain.NewValidationError(step, transition.Error())
	}
	return domain.NewValidationError(step, err.Error())
}
