package domain

import (
	"errors"
	"fmt"
	"time"
)

// State enumerates the provisioning workflow states in strict forward order.
type State string

const (
	StateProviderSelected State = "provider_selected"
	StatePhoneValidated   State = "phone_validated"
	StateDeviceChecked    State = "device_checked"
	StateRegistered       State = "registered"
	StatePaymentVerified  State = "payment_verified"
	StateVerifying        State = "verifying"
	StateVerified         State = "verified"
	StateIssued           State = "issued"
	StateFailed           State = "failed"
)

// Terminal reports whether no further forward transition is defined.
func (s State) Terminal() bool {
	return s == StateIssued || s == StateFailed
}

// VerificationStatus mirrors the states the AI verification resource reports.
type VerificationStatus string

const (
	VerificationPending  VerificationStatus = "pending"
	VerificationVerified VerificationStatus = "verified"
	VerificationFailed   VerificationStatus = "failed"
)

// VerificationResult records the outcome of one sub-verification.
type VerificationResult struct {
	Kind   string
	Status VerificationStatus
}

// PaymentReference holds the raw MMQR payload plus an optional screenshot.
type PaymentReference struct {
	Payload    string
	Screenshot []byte
}

// Credential is the issued eSIM profile plus human-readable activation steps.
type Credential struct {
	ProfileData     string
	ActivationSteps []string
}

// Failure captures why an order reached the terminal failed state.
type Failure struct {
	Kind    ErrorKind
	Message string
}

var (
	ErrUnknownProvider   = errors.New("unknown provider")
	ErrEmptyPhone        = errors.New("phone number is empty")
	ErrIncompleteDevice  = errors.New("device type, model, and os version are all required")
	ErrEmptyOrderID      = errors.New("order id is empty")
	ErrOrderIDAssigned   = errors.New("order id is immutable once assigned")
	ErrEmptyPayment      = errors.New("payment payload is empty")
	ErrMissingCredential = errors.New("credential is missing")
	ErrFlowTerminal      = errors.New("flow is in a terminal state")
)

// Order is the aggregate record of one provisioning attempt. All mutation
// goes through the transition methods below; each guards the strict forward
// order of the workflow.
type Order struct {
	FlowID              string
	OrderID             string
	Provider            Provider
	PhoneNumber         string
	Device              DeviceInfo
	Payment             PaymentReference
	RequiresReview      bool
	State               State
	VerificationResults []VerificationResult
	Credential          *Credential
	Failure             *Failure
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// NewOrder starts a flow at provider selection.
func NewOrder(flowID string, provider Provider) (*Order, error) {
	if flowID == "" {
		return nil, errors.New("flow id is required")
	}
	if !isValidProvider(provider) {
		return nil, ErrUnknownProvider
	}
	now := time.Now()
	return &Order{
		FlowID:    flowID,
		Provider:  provider,
		State:     StateProviderSelected,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// TransitionError signals a step submission that does not match the current state.
type TransitionError struct {
	From State
	To   State
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot transition from %s to %s", e.From, e.To)
}

func (o *Order) guard(from, to State) error {
	if o.State.Terminal() {
		return ErrFlowTerminal
	}
	if o.State != from {
		return &TransitionError{From: o.State, To: to}
	}
	return nil
}

func (o *Order) advance(to State) {
	o.State = to
	o.UpdatedAt = time.Now()
}

// MarkPhoneValidated records the validator-normalized phone number. The
// number is immutable afterwards.
func (o *Order) MarkPhoneValidated(normalized string) error {
	if err := o.guard(StateProviderSelected, StatePhoneValidated); err != nil {
		return err
	}
	if normalized == "" {
		return ErrEmptyPhone
	}
	o.PhoneNumber = normalized
	o.advance(StatePhoneValidated)
	return nil
}

// MarkDeviceChecked stores the device fields and the review flag returned by
// the compatibility service. requires_review still counts as a pass.
func (o *Order) MarkDeviceChecked(device DeviceInfo, requiresReview bool) error {
	if err := o.guard(StatePhoneValidated, StateDeviceChecked); err != nil {
		return err
	}
	if !device.Complete() {
		return ErrIncompleteDevice
	}
	o.Device = device
	o.RequiresReview = requiresReview
	o.advance(StateDeviceChecked)
	return nil
}

// MarkRegistered assigns the backend order id.
func (o *Order) MarkRegistered(orderID string) error {
	if err := o.guard(StateDeviceChecked, StateRegistered); err != nil {
		return err
	}
	if orderID == "" {
		return ErrEmptyOrderID
	}
	if o.OrderID != "" {
		return ErrOrderIDAssigned
	}
	o.OrderID = orderID
	o.advance(StateRegistered)
	return nil
}

// MarkPaymentVerified stores the payment reference once the backend accepted
// it for verification.
func (o *Order) MarkPaymentVerified(payment PaymentReference) error {
	if err := o.guard(StateRegistered, StatePaymentVerified); err != nil {
		return err
	}
	if payment.Payload == "" {
		return ErrEmptyPayment
	}
	o.Payment = payment
	o.advance(StatePaymentVerified)
	return nil
}

// BeginVerification moves into the polling phase. Payment acceptance means
// the verification process started, not that it completed.
func (o *Order) BeginVerification() error {
	if err := o.guard(StatePaymentVerified, StateVerifying); err != nil {
		return err
	}
	o.advance(StateVerifying)
	return nil
}

// RecordVerificationResults replaces the sub-verification list with the
// latest report. Safe to call on every poll; it never moves the state.
func (o *Order) RecordVerificationResults(results []VerificationResult) error {
	if o.State != StateVerifying {
		return &TransitionError{From: o.State, To: StateVerifying}
	}
	o.VerificationResults = append(o.VerificationResults[:0], results...)
	o.UpdatedAt = time.Now()
	return nil
}

// MarkVerified resolves the polling phase successfully.
func (o *Order) MarkVerified() error {
	if err := o.guard(StateVerifying, StateVerified); err != nil {
		return err
	}
	o.advance(StateVerified)
	return nil
}

// MarkIssued attaches the credential and closes the flow.
func (o *Order) MarkIssued(credential Credential) error {
	if err := o.guard(StateVerified, StateIssued); err != nil {
		return err
	}
	if credential.ProfileData == "" {
		return ErrMissingCredential
	}
	o.Credential = &credential
	o.advance(StateIssued)
	return nil
}

// MarkFailed moves the order to the terminal failed state from any
// non-terminal state, recording the failure kind for the presentation layer.
func (o *Order) MarkFailed(failure Failure) error {
	if o.State.Terminal() {
		return ErrFlowTerminal
	}
	o.Failure = &failure
	o.advance(StateFailed)
	return nil
}

// Clone returns a deep copy so repositories never hand out shared state.
func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	clone := *o
	clone.VerificationResults = append([]VerificationResult(nil), o.VerificationResults...)
	clone.Payment.Screenshot = append([]byte(nil), o.Payment.Screenshot...)
	if o.Credential != nil {
		credential := *o.Credential
		credential.ActivationSteps = append([]string(nil), o.Credential.ActivationSteps...)
		clone.Credential = &credential
	}
	if o.Failure != nil {
		failure := *o.Failure
		clone.Failure = &failure
	}
	return &clone
}
