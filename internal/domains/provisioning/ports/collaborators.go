package ports

import (
	"context"

	"github.com/mmesim/provisioning-api/internal/domains/provisioning/domain"
)

// The provisioning backend is reached through one narrow interface per step.
// Implementations normalize every transport-level failure into a
// domain.StepError so the orchestrator only ever branches on error kinds.

// PhoneValidation is the phone validation service's positive answer.
type PhoneValidation struct {
	NormalizedPhone string
	Message         string
}

// PhoneValidator checks a subscriber number against the carrier's rules.
type PhoneValidator interface {
	ValidatePhone(ctx context.Context, phoneNumber string, provider domain.Provider) (*PhoneValidation, error)
}

// DeviceCheckResult is the compatibility service's positive answer.
// RequiresReview flags a pass that operations should look at manually.
type DeviceCheckResult struct {
	RequiresReview bool
	Message        string
}

// DeviceChecker verifies the device can host an eSIM profile.
type DeviceChecker interface {
	CheckDevice(ctx context.Context, device domain.DeviceInfo) (*DeviceCheckResult, error)
}

// RegistrationRequest carries the order fields registration requires.
type RegistrationRequest struct {
	PhoneNumber string
	Provider    domain.Provider
	Device      domain.DeviceInfo
}

// Registration is the backend's acknowledgement with the assigned order id.
type Registration struct {
	OrderID string
	Message string
}

// OrderRegistrar registers the order with the backend.
type OrderRegistrar interface {
	RegisterOrder(ctx context.Context, request RegistrationRequest) (*Registration, error)
}

// PaymentRequest carries the MMQR payload for an assigned order.
type PaymentRequest struct {
	OrderID string
	Payment domain.PaymentReference
}

// PaymentAcceptance means the verification process was accepted for
// execution, not that verification completed.
type PaymentAcceptance struct {
	Message string
}

// PaymentVerifier submits the payment proof for verification.
type PaymentVerifier interface {
	VerifyPayment(ctx context.Context, request PaymentRequest) (*PaymentAcceptance, error)
}

// VerificationReport is one snapshot of the asynchronous verification resource.
type VerificationReport struct {
	Status           domain.VerificationStatus
	SubVerifications []domain.VerificationResult
}

// VerificationStatusProvider queries verification progress. Querying must be
// side-effect free; the same order id may be polled any number of times.
type VerificationStatusProvider interface {
	VerificationStatus(ctx context.Context, orderID string) (*VerificationReport, error)
}

// CredentialIssuer fetches the eSIM profile once verification passed.
type CredentialIssuer interface {
	IssueCredential(ctx context.Context, orderID string) (*domain.Credential, error)
}

// Backend bundles every collaborator for wiring convenience.
type Backend interface {
	PhoneValidator
	DeviceChecker
	OrderRegistrar
	PaymentVerifier
	VerificationStatusProvider
	CredentialIssuer
}
