package application

import (
	"strings"

	provtypes "github.com/mmesim/provisioning-api/internal/domains/provisioning/application/types"
	"github.com/mmesim/provisioning-api/internal/domains/provisioning/domain"
)

// Step validators are pure contract checks run before any collaborator call.
// They never perform I/O; a failure here means the remote was never reached.

func validateStartFlow(input provtypes.StartFlowInput) *domain.StepError {
	provider := domain.Provider(strings.ToLower(strings.TrimSpace(input.Provider)))
	for _, known := range domain.Providers() {
		if provider == known {
			return nil
		}
	}
	return domain.NewValidationError(StepSelectProvider, "provider must be one of mpt, atom, ooredoo, mytel")
}

// Phone format rules belong to the carrier; locally a number only has to be
// non-empty before it is handed to the remote validator.
func validatePhoneInput(input provtypes.PhoneInput) *domain.StepError {
	if strings.TrimSpace(input.PhoneNumber) == "" {
		return domain.NewValidationError(StepValidatePhone, "phone number is required")
	}
	return nil
}

func validateDeviceInput(input provtypes.DeviceInput) *domain.StepError {
	device := deviceFromInput(input)
	if !device.Complete() {
		return domain.NewValidationError(StepCheckDevice, "device type, model, and os version are all required")
	}
	return nil
}

func validatePaymentInput(input provtypes.PaymentInput) *domain.StepError {
	if strings.TrimSpace(input.Payload) == "" {
		return domain.NewValidationError(StepVerifyPayment, "payment payload is required")
	}
	return nil
}

func deviceFromInput(input provtypes.DeviceInput) domain.DeviceInfo {
	return domain.DeviceInfo{
		Type:      domain.DeviceType(strings.ToLower(strings.TrimSpace(input.DeviceType))),
		Model:     strings.TrimSpace(input.DeviceModel),
		OSVersion: strings.TrimSpace(input.OSVersion),
	}
}
