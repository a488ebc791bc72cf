package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmesim/provisioning-api/internal/domains/provisioning/domain"
)

func newOrder(t *testing.T) *domain.Order {
	t.Helper()
	order, err := domain.NewOrder("flow-1", domain.ProviderMPT)
	require.NoError(t, err)
	return order
}

func advanceTo(t *testing.T, order *domain.Order, state domain.State) {
	t.Helper()
	steps := []struct {
		target  domain.State
		advance func() error
	}{
		{domain.StatePhoneValidated, func() error { return order.MarkPhoneValidated("+959123456789") }},
		{domain.StateDeviceChecked, func() error {
			return order.MarkDeviceChecked(domain.DeviceInfo{Type: domain.DeviceIOS, Model: "iphone 15", OSVersion: "17.2"}, false)
		}},
		{domain.StateRegistered, func() error { return order.MarkRegistered("ORD-1001") }},
		{domain.StatePaymentVerified, func() error {
			return order.MarkPaymentVerified(domain.PaymentReference{Payload: "00020101mmqr"})
		}},
		{domain.StateVerifying, func() error { return order.BeginVerification() }},
		{domain.StateVerified, func() error { return order.MarkVerified() }},
		{domain.StateIssued, func() error {
			return order.MarkIssued(domain.Credential{ProfileData: "LPA:1$rsp.example.com$X"})
		}},
	}
	start := 0
	for i, step := range steps {
		if step.target == order.State {
			start = i + 1
		}
	}
	for _, step := range steps[start:] {
		if order.State == state {
			return
		}
		require.NoError(t, step.advance())
	}
	require.Equal(t, state, order.State)
}

func TestNewOrder(t *testing.T) {
	order, err := domain.NewOrder("flow-1", domain.ProviderOoredoo)
	require.NoError(t, err)
	assert.Equal(t, domain.StateProviderSelected, order.State)
	assert.Equal(t, domain.ProviderOoredoo, order.Provider)
	assert.False(t, order.CreatedAt.IsZero())
}

func TestNewOrder_RejectsUnknownProvider(t *testing.T) {
	_, err := domain.NewOrder("flow-1", domain.Provider("verizon"))
	assert.ErrorIs(t, err, domain.ErrUnknownProvider)
}

func TestNewOrder_RequiresFlowID(t *testing.T) {
	_, err := domain.NewOrder("", domain.ProviderMPT)
	assert.Error(t, err)
}

func TestOrder_HappyPathTransitions(t *testing.T) {
	order := newOrder(t)
	advanceTo(t, order, domain.StateIssued)

	assert.Equal(t, domain.StateIssued, order.State)
	assert.True(t, order.State.Terminal())
	assert.Equal(t, "+959123456789", order.PhoneNumber)
	assert.Equal(t, "ORD-1001", order.OrderID)
	require.NotNil(t, order.Credential)
	assert.Equal(t, "LPA:1$rsp.example.com$X", order.Credential.ProfileData)
}

func TestOrder_TransitionsRejectWrongState(t *testing.T) {
	tests := []struct {
		name     string
		from     domain.State
		mutation func(o *domain.Order) error
	}{
		{"phone from device_checked", domain.StateDeviceChecked, func(o *domain.Order) error { return o.MarkPhoneValidated("+959") }},
		{"device from provider_selected", domain.StateProviderSelected, func(o *domain.Order) error {
			return o.MarkDeviceChecked(domain.DeviceInfo{Type: domain.DeviceAndroid, Model: "pixel 8", OSVersion: "14"}, false)
		}},
		{"register from phone_validated", domain.StatePhoneValidated, func(o *domain.Order) error { return o.MarkRegistered("ORD-2") }},
		{"payment from device_checked", domain.StateDeviceChecked, func(o *domain.Order) error {
			return o.MarkPaymentVerified(domain.PaymentReference{Payload: "qr"})
		}},
		{"begin verification from registered", domain.StateRegistered, func(o *domain.Order) error { return o.BeginVerification() }},
		{"verified from registered", domain.StateRegistered, func(o *domain.Order) error { return o.MarkVerified() }},
		{"issued from verifying", domain.StateVerifying, func(o *domain.Order) error {
			return o.MarkIssued(domain.Credential{ProfileData: "LPA:1$x$y"})
		}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			order := newOrder(t)
			advanceTo(t, order, tc.from)
			err := tc.mutation(order)
			var transitionErr *domain.TransitionError
			require.ErrorAs(t, err, &transitionErr)
			assert.Equal(t, tc.from, transitionErr.From)
			assert.Equal(t, tc.from, order.State, "failed transition must not move the state")
		})
	}
}

func TestOrder_TerminalStatesRejectEverything(t *testing.T) {
	issued := newOrder(t)
	advanceTo(t, issued, domain.StateIssued)
	assert.ErrorIs(t, issued.MarkVerified(), domain.ErrFlowTerminal)
	assert.ErrorIs(t, issued.MarkFailed(domain.Failure{Kind: domain.ErrorFatal}), domain.ErrFlowTerminal)

	failed := newOrder(t)
	require.NoError(t, failed.MarkFailed(domain.Failure{Kind: domain.ErrorFatal, Message: "boom"}))
	assert.ErrorIs(t, failed.MarkPhoneValidated("+959"), domain.ErrFlowTerminal)
	assert.ErrorIs(t, failed.MarkFailed(domain.Failure{Kind: domain.ErrorFatal}), domain.ErrFlowTerminal)
}

func TestOrder_MarkFailedFromAnyNonTerminalState(t *testing.T) {
	states := []domain.State{
		domain.StateProviderSelected,
		domain.StatePhoneValidated,
		domain.StateDeviceChecked,
		domain.StateRegistered,
		domain.StatePaymentVerified,
		domain.StateVerifying,
		domain.StateVerified,
	}
	for _, state := range states {
		t.Run(string(state), func(t *testing.T) {
			order := newOrder(t)
			advanceTo(t, order, state)
			require.NoError(t, order.MarkFailed(domain.Failure{Kind: domain.ErrorVerificationTimeout, Message: "still processing"}))
			assert.Equal(t, domain.StateFailed, order.State)
			require.NotNil(t, order.Failure)
			assert.Equal(t, domain.ErrorVerificationTimeout, order.Failure.Kind)
		})
	}
}

func TestOrder_OrderIDImmutable(t *testing.T) {
	order := newOrder(t)
	advanceTo(t, order, domain.StateDeviceChecked)
	order.OrderID = "ORD-EXISTING"
	assert.ErrorIs(t, order.MarkRegistered("ORD-OTHER"), domain.ErrOrderIDAssigned)
}

func TestOrder_FieldGuards(t *testing.T) {
	order := newOrder(t)
	assert.ErrorIs(t, order.MarkPhoneValidated(""), domain.ErrEmptyPhone)

	advanceTo(t, order, domain.StatePhoneValidated)
	assert.ErrorIs(t, order.MarkDeviceChecked(domain.DeviceInfo{Type: domain.DeviceIOS}, false), domain.ErrIncompleteDevice)

	advanceTo(t, order, domain.StateDeviceChecked)
	assert.ErrorIs(t, order.MarkRegistered(""), domain.ErrEmptyOrderID)

	advanceTo(t, order, domain.StateRegistered)
	assert.ErrorIs(t, order.MarkPaymentVerified(domain.PaymentReference{}), domain.ErrEmptyPayment)

	advanceTo(t, order, domain.StateVerified)
	assert.ErrorIs(t, order.MarkIssued(domain.Credential{}), domain.ErrMissingCredential)
}

func TestOrder_RecordVerificationResultsReplaces(t *testing.T) {
	order := newOrder(t)
	advanceTo(t, order, domain.StateVerifying)

	require.NoError(t, order.RecordVerificationResults([]domain.VerificationResult{
		{Kind: "payment_amount", Status: domain.VerificationPending},
	}))
	require.NoError(t, order.RecordVerificationResults([]domain.VerificationResult{
		{Kind: "payment_amount", Status: domain.VerificationVerified},
		{Kind: "screenshot_authenticity", Status: domain.VerificationVerified},
	}))
	require.Len(t, order.VerificationResults, 2)
	assert.Equal(t, domain.StateVerifying, order.State, "recording results never moves the state")
}

func TestOrder_CloneIsDeep(t *testing.T) {
	order := newOrder(t)
	advanceTo(t, order, domain.StateIssued)
	order.Payment.Screenshot = []byte{1, 2, 3}

	clone := order.Clone()
	clone.Payment.Screenshot[0] = 9
	clone.Credential.ActivationSteps = append(clone.Credential.ActivationSteps, "extra")
	clone.State = domain.StateFailed

	assert.EqualValues(t, 1, order.Payment.Screenshot[0])
	assert.Equal(t, domain.StateIssued, order.State)
}

func TestState_Terminal(t *testing.T) {
	assert.True(t, domain.StateIssued.Terminal())
	assert.True(t, domain.StateFailed.Terminal())
	assert.False(t, domain.StateVerifying.Terminal())
	assert.False(t, domain.StateProviderSelected.Terminal())
}
