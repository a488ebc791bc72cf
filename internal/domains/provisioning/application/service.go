package application

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"

	provtypes "github.com/mmesim/provisioning-api/internal/domains/provisioning/application/types"
	"github.com/mmesim/provisioning-api/internal/domains/provisioning/domain"
	"github.com/mmesim/provisioning-api/internal/domains/provisioning/ports"
)

// Service is the workflow orchestrator. It owns step sequencing and the flow
// aggregate; every remote interaction goes through a collaborator port and
// every state change through a domain transition. A per-flow mutex keeps at
// most one step in flight per flow.
type Service struct {
	repo      ports.Repository
	phones    ports.PhoneValidator
	devices   ports.DeviceChecker
	registrar ports.OrderRegistrar
	payments  ports.PaymentVerifier
	status    ports.VerificationStatusProvider
	issuer    ports.CredentialIssuer

	newFlowID func() string

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// Option customizes service construction.
type Option func(*Service)

// WithFlowIDGenerator overrides flow id generation for deterministic tests.
func WithFlowIDGenerator(generate func() string) Option {
	return func(s *Service) {
		if generate != nil {
			s.newFlowID = generate
		}
	}
}

// NewService wires the orchestrator with its flow store and collaborators.
func NewService(repo ports.Repository, backend ports.Backend, opts ...Option) *Service {
	s := &Service{
		repo:      repo,
		phones:    backend,
		devices:   backend,
		registrar: backend,
		payments:  backend,
		status:    backend,
		issuer:    backend,
		newFlowID: uuid.NewString,
		locks:     map[string]*sync.Mutex{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

var _ ports.Service = (*Service)(nil)

func (s *Service) lockFlow(flowID string) func() {
	s.mu.Lock()
	lock, ok := s.locks[flowID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[flowID] = lock
	}
	s.mu.Unlock()
	lock.Lock()
	return lock.Unlock
}

func (s *Service) forgetFlow(flowID string) {
	s.mu.Lock()
	delete(s.locks, flowID)
	s.mu.Unlock()
}

// StartFlow creates the flow aggregate at provider selection.
func (s *Service) StartFlow(ctx context.Context, input provtypes.StartFlowInput) (*provtypes.FlowSnapshot, error) {
	if stepErr := validateStartFlow(input); stepErr != nil {
		return nil, stepErr
	}
	provider := domain.Provider(strings.ToLower(strings.TrimSpace(input.Provider)))
	order, err := domain.NewOrder(s.newFlowID(), provider)
	if err != nil {
		return nil, mapDomainError(StepSelectProvider, err)
	}
	saved, err := s.repo.Save(ctx, order)
	if err != nil {
		return nil, err
	}
	return provtypes.SnapshotFromOrder(saved), nil
}

// SubmitPhone validates the number locally, asks the carrier-side validator,
// and on success stores the normalized number.
func (s *Service) SubmitPhone(ctx context.Context, input provtypes.PhoneInput) (*provtypes.FlowSnapshot, error) {
	if stepErr := validatePhoneInput(input); stepErr != nil {
		return nil, stepErr
	}
	unlock := s.lockFlow(input.FlowID)
	defer unlock()

	order, err := s.repo.GetByFlowID(ctx, input.FlowID)
	if err != nil {
		return nil, err
	}
	if order.State != domain.StateProviderSelected {
		return nil, stepConflict(StepValidatePhone, order.State)
	}
	result, err := s.phones.ValidatePhone(ctx, strings.TrimSpace(input.PhoneNumber), order.Provider)
	if err != nil {
		return nil, err
	}
	normalized := result.NormalizedPhone
	if normalized == "" {
		normalized = strings.TrimSpace(input.PhoneNumber)
	}
	if err := order.MarkPhoneValidated(normalized); err != nil {
		return nil, mapDomainError(StepValidatePhone, err)
	}
	saved, err := s.repo.Save(ctx, order)
	if err != nil {
		return nil, err
	}
	return provtypes.SnapshotFromOrder(saved), nil
}

// SubmitDevice runs the compatibility check. A requires_review answer counts
// as a pass; the flag stays on the order for downstream surfaces.
func (s *Service) SubmitDevice(ctx context.Context, input provtypes.DeviceInput) (*provtypes.FlowSnapshot, error) {
	if stepErr := validateDeviceInput(input); stepErr != nil {
		return nil, stepErr
	}
	unlock := s.lockFlow(input.FlowID)
	defer unlock()

	order, err := s.repo.GetByFlowID(ctx, input.FlowID)
	if err != nil {
		return nil, err
	}
	if order.State != domain.StatePhoneValidated {
		return nil, stepConflict(StepCheckDevice, order.State)
	}
	device := deviceFromInput(input)
	result, err := s.devices.CheckDevice(ctx, device)
	if err != nil {
		return nil, err
	}
	if err := order.MarkDeviceChecked(device, result.RequiresReview); err != nil {
		return nil, mapDomainError(StepCheckDevice, err)
	}
	saved, err := s.repo.Save(ctx, order)
	if err != nil {
		return nil, err
	}
	return provtypes.SnapshotFromOrder(saved), nil
}

// RegisterOrder asks the backend to create the order and records the
// assigned order id.
func (s *Service) RegisterOrder(ctx context.Context, input provtypes.RegisterInput) (*provtypes.FlowSnapshot, error) {
	unlock := s.lockFlow(input.FlowID)
	defer unlock()

	order, err := s.repo.GetByFlowID(ctx, input.FlowID)
	if err != nil {
		return nil, err
	}
	if order.State != domain.StateDeviceChecked {
		return nil, stepConflict(StepRegisterOrder, order.State)
	}
	registration, err := s.registrar.RegisterOrder(ctx, ports.RegistrationRequest{
		PhoneNumber: order.PhoneNumber,
		Provider:    order.Provider,
		Device:      order.Device,
	})
	if err != nil {
		return nil, err
	}
	if err := order.MarkRegistered(registration.OrderID); err != nil {
		return nil, mapDomainError(StepRegisterOrder, err)
	}
	saved, err := s.repo.Save(ctx, order)
	if err != nil {
		return nil, err
	}
	return provtypes.SnapshotFromOrder(saved), nil
}

// SubmitPayment submits the MMQR proof. Acceptance means the verification
// process started, so the flow advances through payment_verified straight
// into verifying; resolution is the verification orchestrator's job.
func (s *Service) SubmitPayment(ctx context.Context, input provtypes.PaymentInput) (*provtypes.FlowSnapshot, error) {
	if stepErr := validatePaymentInput(input); stepErr != nil {
		return nil, stepErr
	}
	unlock := s.lockFlow(input.FlowID)
	defer unlock()

	order, err := s.repo.GetByFlowID(ctx, input.FlowID)
	if err != nil {
		return nil, err
	}
	if order.State != domain.StateRegistered {
		return nil, stepConflict(StepVerifyPayment, order.State)
	}
	payment := domain.PaymentReference{
		Payload:    strings.TrimSpace(input.Payload),
		Screenshot: input.Screenshot,
	}
	if _, err := s.payments.VerifyPayment(ctx, ports.PaymentRequest{OrderID: order.OrderID, Payment: payment}); err != nil {
		return nil, err
	}
	if err := order.MarkPaymentVerified(payment); err != nil {
		return nil, mapDomainError(StepVerifyPayment, err)
	}
	if err := order.BeginVerification(); err != nil {
		return nil, mapDomainError(StepVerifyPayment, err)
	}
	saved, err := s.repo.Save(ctx, order)
	if err != nil {
		return nil, err
	}
	return provtypes.SnapshotFromOrder(saved), nil
}

// CheckVerification performs one idempotent status poll. It records the
// sub-verification results and resolves the flow when the resource reports a
// terminal status: verified moves forward, failed ends the flow fatally.
func (s *Service) CheckVerification(ctx context.Context, input provtypes.FlowIdentifier) (*provtypes.VerificationProgress, error) {
	unlock := s.lockFlow(input.FlowID)
	defer unlock()

	order, err := s.repo.GetByFlowID(ctx, input.FlowID)
	if err != nil {
		return nil, err
	}
	switch order.State {
	case domain.StateVerified, domain.StateIssued:
		return &provtypes.VerificationProgress{Status: domain.VerificationVerified, Snapshot: provtypes.SnapshotFromOrder(order)}, nil
	case domain.StateFailed:
		return &provtypes.VerificationProgress{Status: domain.VerificationFailed, Snapshot: provtypes.SnapshotFromOrder(order)}, nil
	case domain.StateVerifying:
	default:
		return nil, stepConflict(StepVerification, order.State)
	}

	report, err := s.status.VerificationStatus(ctx, order.OrderID)
	if err != nil {
		return nil, err
	}
	if err := order.RecordVerificationResults(report.SubVerifications); err != nil {
		return nil, mapDomainError(StepVerification, err)
	}
	switch report.Status {
	case domain.VerificationVerified:
		if err := order.MarkVerified(); err != nil {
			return nil, mapDomainError(StepVerification, err)
		}
	case domain.VerificationFailed:
		failure := domain.Failure{Kind: domain.ErrorFatal, Message: "verification failed"}
		if err := order.MarkFailed(failure); err != nil {
			return nil, mapDomainError(StepVerification, err)
		}
	}
	saved, err := s.repo.Save(ctx, order)
	if err != nil {
		return nil, err
	}
	return &provtypes.VerificationProgress{Status: report.Status, Snapshot: provtypes.SnapshotFromOrder(saved)}, nil
}

// IssueCredential fetches the eSIM profile for a verified flow and closes
// it. Calling it again on an issued flow returns the stored snapshot.
func (s *Service) IssueCredential(ctx context.Context, input provtypes.FlowIdentifier) (*provtypes.FlowSnapshot, error) {
	unlock := s.lockFlow(input.FlowID)
	defer unlock()

	order, err := s.repo.GetByFlowID(ctx, input.FlowID)
	if err != nil {
		return nil, err
	}
	if order.State == domain.StateIssued {
		return provtypes.SnapshotFromOrder(order), nil
	}
	if order.State != domain.StateVerified {
		return nil, stepConflict(StepIssueCredential, order.State)
	}
	credential, err := s.issuer.IssueCredential(ctx, order.OrderID)
	if err != nil {
		return nil, err
	}
	if err := order.MarkIssued(*credential); err != nil {
		return nil, mapDomainError(StepIssueCredential, err)
	}
	saved, err := s.repo.Save(ctx, order)
	if err != nil {
		return nil, err
	}
	return provtypes.SnapshotFromOrder(saved), nil
}

// TimeoutVerification records an exhausted poll budget. The outcome is
// terminal but distinct from a hard failure: the backend may still complete
// the verification out-of-band, so the presentation renders it as "still
// processing, contact support".
func (s *Service) TimeoutVerification(ctx context.Context, input provtypes.FlowIdentifier) (*provtypes.FlowSnapshot, error) {
	unlock := s.lockFlow(input.FlowID)
	defer unlock()

	order, err := s.repo.GetByFlowID(ctx, input.FlowID)
	if err != nil {
		return nil, err
	}
	if order.State.Terminal() {
		return provtypes.SnapshotFromOrder(order), nil
	}
	if order.State != domain.StateVerifying {
		return nil, stepConflict(StepVerification, order.State)
	}
	failure := domain.Failure{
		Kind:    domain.ErrorVerificationTimeout,
		Message: "verification is still processing; contact support with your order id",
	}
	if err := order.MarkFailed(failure); err != nil {
		return nil, mapDomainError(StepVerification, err)
	}
	saved, err := s.repo.Save(ctx, order)
	if err != nil {
		return nil, err
	}
	return provtypes.SnapshotFromOrder(saved), nil
}

// GetFlow returns the presentation snapshot for the flow.
func (s *Service) GetFlow(ctx context.Context, input provtypes.FlowIdentifier) (*provtypes.FlowSnapshot, error) {
	order, err := s.repo.GetByFlowID(ctx, input.FlowID)
	if err != nil {
		return nil, err
	}
	return provtypes.SnapshotFromOrder(order), nil
}

// AbandonFlow discards the flow. The front end keeps no state beyond the
// flow's lifetime, so abandoning simply deletes the aggregate.
func (s *Service) AbandonFlow(ctx context.Context, input provtypes.FlowIdentifier) error {
	unlock := s.lockFlow(input.FlowID)
	defer unlock()

	if err := s.repo.Delete(ctx, input.FlowID); err != nil && !errors.Is(err, ports.ErrNotFound) {
		return err
	}
	s.forgetFlow(input.FlowID)
	return nil
}
