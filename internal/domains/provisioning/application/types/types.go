// Package types carries the transport-agnostic inputs and projections of the
// provisioning use cases, shared by the application core, ports, and adapters.
package types

import (
	"time"

	"github.com/mmesim/provisioning-api/internal/domains/provisioning/domain"
)

// StartFlowInput opens a new provisioning flow for a carrier.
type StartFlowInput struct {
	Provider string
}

// PhoneInput submits the subscriber number for remote validation.
type PhoneInput struct {
	FlowID      string
	PhoneNumber string
}

// DeviceInput submits the device fields for the compatibility check.
type DeviceInput struct {
	FlowID      string
	DeviceType  string
	DeviceModel string
	OSVersion   string
}

// RegisterInput requests order registration for a device-checked flow.
type RegisterInput struct {
	FlowID string
}

// PaymentInput submits the MMQR payload plus an optional screenshot.
type PaymentInput struct {
	FlowID     string
	Payload    string
	Screenshot []byte
}

// FlowIdentifier addresses an existing flow.
type FlowIdentifier struct {
	FlowID string
}

// Action is a forward step the presentation layer may offer for a state.
type Action string

const (
	ActionSubmitPhone       Action = "submit_phone"
	ActionSubmitDevice      Action = "submit_device"
	ActionRegisterOrder     Action = "register_order"
	ActionSubmitPayment     Action = "submit_payment"
	ActionAwaitVerification Action = "await_verification"
	ActionDismissError      Action = "dismiss_error"
)

// ActionsForState returns exactly the forward action valid for the state,
// plus the ever-present error dismissal. Terminal states offer no step.
func ActionsForState(state domain.State) []Action {
	actions := []Action{}
	switch state {
	case domain.StateProviderSelected:
		actions = append(actions, ActionSubmitPhone)
	case domain.StatePhoneValidated:
		actions = append(actions, ActionSubmitDevice)
	case domain.StateDeviceChecked:
		actions = append(actions, ActionRegisterOrder)
	case domain.StateRegistered:
		actions = append(actions, ActionSubmitPayment)
	case domain.StatePaymentVerified, domain.StateVerifying, domain.StateVerified:
		actions = append(actions, ActionAwaitVerification)
	}
	return append(actions, ActionDismissError)
}

// FlowSnapshot is the presentation adapter's view of one flow.
type FlowSnapshot struct {
	FlowID              string
	OrderID             string
	State               domain.State
	Provider            domain.Provider
	PhoneNumber         string
	Device              domain.DeviceInfo
	RequiresReview      bool
	VerificationResults []domain.VerificationResult
	Credential          *domain.Credential
	Failure             *domain.Failure
	AllowedActions      []Action
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// SnapshotFromOrder projects an order for rendering.
func SnapshotFromOrder(order *domain.Order) *FlowSnapshot {
	if order == nil {
		return nil
	}
	clone := order.Clone()
	return &FlowSnapshot{
		FlowID:              clone.FlowID,
		OrderID:             clone.OrderID,
		State:               clone.State,
		Provider:            clone.Provider,
		PhoneNumber:         clone.PhoneNumber,
		Device:              clone.Device,
		RequiresReview:      clone.RequiresReview,
		VerificationResults: clone.VerificationResults,
		Credential:          clone.Credential,
		Failure:             clone.Failure,
		AllowedActions:      ActionsForState(clone.State),
		CreatedAt:           clone.CreatedAt,
		UpdatedAt:           clone.UpdatedAt,
	}
}

// VerificationProgress reports the outcome of one status poll.
type VerificationProgress struct {
	Status   domain.VerificationStatus
	Snapshot *FlowSnapshot
}
