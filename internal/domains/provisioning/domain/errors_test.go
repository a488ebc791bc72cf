package domain_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmesim/provisioning-api/internal/domains/provisioning/domain"
)

func TestErrorKind_Recoverable(t *testing.T) {
	assert.True(t, domain.ErrorValidation.Recoverable())
	assert.True(t, domain.ErrorRejected.Recoverable())
	assert.True(t, domain.ErrorTransport.Recoverable())
	assert.False(t, domain.ErrorVerificationTimeout.Recoverable())
	assert.False(t, domain.ErrorFatal.Recoverable())
}

func TestAsStepError_UnwrapsChains(t *testing.T) {
	inner := domain.NewRejection("check_device", "device is not eSIM compatible")
	wrapped := fmt.Errorf("submit device: %w", inner)

	stepErr, ok := domain.AsStepError(wrapped)
	require.True(t, ok)
	assert.Equal(t, domain.ErrorRejected, stepErr.Kind)
	assert.Equal(t, "check_device", stepErr.Step)
}

func TestKindOf_DefaultsToTransport(t *testing.T) {
	assert.Equal(t, domain.ErrorTransport, domain.KindOf(fmt.Errorf("connection reset")))
	assert.Equal(t, domain.ErrorValidation, domain.KindOf(domain.NewValidationError("validate_phone", "required")))
}

func TestStepError_Message(t *testing.T) {
	err := domain.NewTransportError("register_order", "backend unreachable", fmt.Errorf("dial tcp"))
	assert.Contains(t, err.Error(), "register_order")
	assert.Contains(t, err.Error(), "transport")
	assert.ErrorContains(t, err.Unwrap(), "dial tcp")
}
