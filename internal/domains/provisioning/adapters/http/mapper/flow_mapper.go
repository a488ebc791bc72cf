// Package mapper translates between the HTTP payloads and the application's
// transport-agnostic inputs and snapshots.
package mapper

import (
	"encoding/base64"
	"errors"
	"strings"
	"time"

	provtypes "github.com/mmesim/provisioning-api/internal/domains/provisioning/application/types"
)

var errBadScreenshot = errors.New("screenshot must be base64 encoded")

// StartFlowRequest opens a flow for a carrier.
type StartFlowRequest struct {
	Provider string `json:"provider"`
}

// PhoneRequest submits the subscriber number.
type PhoneRequest struct {
	PhoneNumber string `json:"phone_number"`
}

// DeviceRequest submits the device fields for the compatibility check.
type DeviceRequest struct {
	DeviceType  string `json:"device_type"`
	DeviceModel string `json:"device_model"`
	OSVersion   string `json:"os_version"`
}

// PaymentRequest submits the MMQR payload plus an optional screenshot.
type PaymentRequest struct {
	PaymentPayload string `json:"payment_payload"`
	Screenshot     string `json:"screenshot,omitempty"`
}

// Device is the HTTP representation of the checked device.
type Device struct {
	DeviceType  string `json:"device_type"`
	DeviceModel string `json:"device_model"`
	OSVersion   string `json:"os_version"`
}

// VerificationResult reports one sub-verification outcome.
type VerificationResult struct {
	Kind   string `json:"kind"`
	Status string `json:"status"`
}

// Credential carries the issued eSIM profile.
type Credential struct {
	ProfileData     string   `json:"profile_data"`
	ActivationSteps []string `json:"activation_steps,omitempty"`
}

// FlowError describes the failure recorded on a flow.
type FlowError struct {
	Kind    string `json:"kind"`
	Message string `json:"message,omitempty"`
}

// Flow is the HTTP representation of one provisioning flow.
type Flow struct {
	FlowID              string               `json:"flow_id"`
	OrderID             string               `json:"order_id,omitempty"`
	State               string               `json:"state"`
	Provider            string               `json:"provider"`
	PhoneNumber         string               `json:"phone_number,omitempty"`
	Device              *Device              `json:"device,omitempty"`
	RequiresReview      bool                 `json:"requires_review,omitempty"`
	VerificationResults []VerificationResult `json:"verification_results,omitempty"`
	Credential          *Credential          `json:"credential,omitempty"`
	LastError           *FlowError           `json:"last_error,omitempty"`
	AllowedActions      []string             `json:"allowed_actions"`
	CreatedAt           time.Time            `json:"created_at"`
	UpdatedAt           time.Time            `json:"updated_at"`
}

// ToStartFlowInput converts the start payload into an application input.
func ToStartFlowInput(req StartFlowRequest) provtypes.StartFlowInput {
	return provtypes.StartFlowInput{Provider: req.Provider}
}

// ToPhoneInput converts the phone payload into an application input.
func ToPhoneInput(flowID string, req PhoneRequest) provtypes.PhoneInput {
	return provtypes.PhoneInput{FlowID: flowID, PhoneNumber: req.PhoneNumber}
}

// ToDeviceInput converts the device payload into an application input.
func ToDeviceInput(flowID string, req DeviceRequest) provtypes.DeviceInput {
	return provtypes.DeviceInput{
		FlowID:      flowID,
		DeviceType:  req.DeviceType,
		DeviceModel: req.DeviceModel,
		OSVersion:   req.OSVersion,
	}
}

// ToPaymentInput decodes the payment payload into an application input.
func ToPaymentInput(flowID string, req PaymentRequest) (provtypes.PaymentInput, error) {
	input := provtypes.PaymentInput{FlowID: flowID, Payload: req.PaymentPayload}
	if raw := strings.TrimSpace(req.Screenshot); raw != "" {
		decoded, err := base64.StdEncoding.DecodeString(raw)
		if err != nil {
			return provtypes.PaymentInput{}, errBadScreenshot
		}
		input.Screenshot = decoded
	}
	return input, nil
}

// FromSnapshot maps a flow snapshot into the transport representation.
func FromSnapshot(snapshot *provtypes.FlowSnapshot) Flow {
	if snapshot == nil {
		return Flow{}
	}
	flow := Flow{
		FlowID:         snapshot.FlowID,
		OrderID:        snapshot.OrderID,
		State:          string(snapshot.State),
		Provider:       string(snapshot.Provider),
		PhoneNumber:    snapshot.PhoneNumber,
		RequiresReview: snapshot.RequiresReview,
		AllowedActions: actions(snapshot.AllowedActions),
		CreatedAt:      snapshot.CreatedAt,
		UpdatedAt:      snapshot.UpdatedAt,
	}
	if snapshot.Device.Complete() {
		flow.Device = &Device{
			DeviceType:  string(snapshot.Device.Type),
			DeviceModel: snapshot.Device.Model,
			OSVersion:   snapshot.Device.OSVersion,
		}
	}
	for _, result := range snapshot.VerificationResults {
		flow.VerificationResults = append(flow.VerificationResults, VerificationResult{
			Kind:   result.Kind,
			Status: string(result.Status),
		})
	}
	if snapshot.Credential != nil {
		flow.Credential = &Credential{
			ProfileData:     snapshot.Credential.ProfileData,
			ActivationSteps: append([]string{}, snapshot.Credential.ActivationSteps...),
		}
	}
	if snapshot.Failure != nil {
		flow.LastError = &FlowError{
			Kind:    string(snapshot.Failure.Kind),
			Message: snapshot.Failure.Message,
		}
	}
	return flow
}

func actions(in []provtypes.Action) []string {
	out := make([]string, 0, len(in))
	for _, action := range in {
		out = append(out, string(action))
	}
	return out
}
