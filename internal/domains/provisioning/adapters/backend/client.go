// Package backend holds the remote step executors: one thin HTTP adapter per
// external collaborator of the provisioning workflow. Each executor builds
// its request from order fields, calls the backend, and normalizes every
// transport-level failure into the same domain.StepError shape used for
// domain-level rejections. The orchestrator never sees transport types.
package backend

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mmesim/provisioning-api/internal/domains/provisioning/domain"
	"github.com/mmesim/provisioning-api/internal/domains/provisioning/ports"
)

const defaultTimeout = 10 * time.Second

// statusRequiresReview is the compatibility service's "passed, but look at
// it" answer. Per the observed contract it still advances the flow.
const statusRequiresReview = "requires_review"

var _ ports.Backend = (*Client)(nil)

// Client calls the provisioning backend's step endpoints.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient wires the backend client with sane defaults. The timeout bounds
// every step call; the poll loop has its own overall bound.
func NewClient(baseURL string, httpClient *http.Client) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("backend base URL is required")
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{baseURL: baseURL, http: httpClient}, nil
}

type envelope struct {
	Success         bool     `json:"success"`
	Status          string   `json:"status,omitempty"`
	Message         string   `json:"message,omitempty"`
	NormalizedPhone string   `json:"normalized_phone,omitempty"`
	OrderID         string   `json:"order_id,omitempty"`
	Credential      *payload `json:"credential,omitempty"`
}

type payload struct {
	ProfileData            string   `json:"profile_data"`
	ActivationInstructions []string `json:"activation_instructions"`
}

// ValidatePhone asks the carrier-side validator to accept the number.
func (c *Client) ValidatePhone(ctx context.Context, phoneNumber string, provider domain.Provider) (*ports.PhoneValidation, error) {
	body := map[string]any{"phone_number": phoneNumber, "provider": string(provider)}
	resp, err := c.post(ctx, "validate_phone", "/api/v1/phone/validate", body)
	if err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, domain.NewRejection("validate_phone", messageOr(resp.Message, "phone number rejected"))
	}
	return &ports.PhoneValidation{NormalizedPhone: resp.NormalizedPhone, Message: resp.Message}, nil
}

// CheckDevice runs the compatibility check.
func (c *Client) CheckDevice(ctx context.Context, device domain.DeviceInfo) (*ports.DeviceCheckResult, error) {
	body := map[string]any{
		"device_type":  string(device.Type),
		"device_model": device.Model,
		"os_version":   device.OSVersion,
	}
	resp, err := c.post(ctx, "check_device", "/api/v1/devices/check", body)
	if err != nil {
		return nil, err
	}
	if resp.Status == statusRequiresReview {
		return &ports.DeviceCheckResult{RequiresReview: true, Message: resp.Message}, nil
	}
	if !resp.Success {
		return nil, domain.NewRejection("check_device", messageOr(resp.Message, "device is not eSIM compatible"))
	}
	return &ports.DeviceCheckResult{Message: resp.Message}, nil
}

// RegisterOrder creates the order with the backend and returns its id.
func (c *Client) RegisterOrder(ctx context.Context, request ports.RegistrationRequest) (*ports.Registration, error) {
	body := map[string]any{
		"phone_number": request.PhoneNumber,
		"provider":     string(request.Provider),
		"device_info": map[string]string{
			"device_type":  string(request.Device.Type),
			"device_model": request.Device.Model,
			"os_version":   request.Device.OSVersion,
		},
	}
	resp, err := c.post(ctx, "register_order", "/api/v1/orders", body)
	if err != nil {
		return nil, err
	}
	if !resp.Success || resp.OrderID == "" {
		return nil, domain.NewRejection("register_order", messageOr(resp.Message, "order registration rejected"))
	}
	return &ports.Registration{OrderID: resp.OrderID, Message: resp.Message}, nil
}

// VerifyPayment submits the MMQR payload. Success means the verification
// process was accepted for execution.
func (c *Client) VerifyPayment(ctx context.Context, request ports.PaymentRequest) (*ports.PaymentAcceptance, error) {
	body := map[string]any{"payment_payload": request.Payment.Payload}
	if len(request.Payment.Screenshot) > 0 {
		body["screenshot"] = base64.StdEncoding.EncodeToString(request.Payment.Screenshot)
	}
	path := fmt.Sprintf("/api/v1/orders/%s/payment", request.OrderID)
	resp, err := c.post(ctx, "verify_payment", path, body)
	if err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, domain.NewRejection("verify_payment", messageOr(resp.Message, "payment rejected"))
	}
	return &ports.PaymentAcceptance{Message: resp.Message}, nil
}

type verificationResponse struct {
	Status           string `json:"status"`
	SubVerifications []struct {
		Kind   string `json:"kind"`
		Status string `json:"status"`
	} `json:"sub_verifications"`
}

// VerificationStatus queries the asynchronous verification resource. A
// "failed" answer is data, not an error; the orchestrator decides what it
// means for the flow.
func (c *Client) VerificationStatus(ctx context.Context, orderID string) (*ports.VerificationReport, error) {
	const step = "verification"
	path := fmt.Sprintf("/api/v1/orders/%s/verification", orderID)
	raw, err := c.do(ctx, step, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	var resp verificationResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, domain.NewTransportError(step, "malformed verification status response", err)
	}
	report := &ports.VerificationReport{Status: domain.VerificationStatus(resp.Status)}
	switch report.Status {
	case domain.VerificationPending, domain.VerificationVerified, domain.VerificationFailed:
	default:
		return nil, domain.NewTransportError(step, fmt.Sprintf("unknown verification status %q", resp.Status), nil)
	}
	for _, sub := range resp.SubVerifications {
		report.SubVerifications = append(report.SubVerifications, domain.VerificationResult{
			Kind:   sub.Kind,
			Status: domain.VerificationStatus(sub.Status),
		})
	}
	return report, nil
}

// IssueCredential fetches the eSIM profile for a verified order.
func (c *Client) IssueCredential(ctx context.Context, orderID string) (*domain.Credential, error) {
	path := fmt.Sprintf("/api/v1/orders/%s/esim", orderID)
	resp, err := c.post(ctx, "issue_credential", path, map[string]any{})
	if err != nil {
		return nil, err
	}
	if !resp.Success || resp.Credential == nil || resp.Credential.ProfileData == "" {
		return nil, domain.NewRejection("issue_credential", messageOr(resp.Message, "credential issuance rejected"))
	}
	return &domain.Credential{
		ProfileData:     resp.Credential.ProfileData,
		ActivationSteps: resp.Credential.ActivationInstructions,
	}, nil
}

func (c *Client) post(ctx context.Context, step, path string, body map[string]any) (*envelope, error) {
	raw, err := c.do(ctx, step, http.MethodPost, path, body)
	if err != nil {
		return nil, err
	}
	var resp envelope
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, domain.NewTransportError(step, "malformed backend response", err)
	}
	return &resp, nil
}

// do performs the HTTP exchange and applies the normalization discipline:
// network/timeout and 5xx become transport errors, 4xx become domain
// rejections carrying the backend's message.
func (c *Client) do(ctx context.Context, step, method, path string, body map[string]any) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, domain.NewTransportError(step, "encode request", err)
		}
		reader = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, domain.NewTransportError(step, "build request", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	res, err := c.http.Do(req)
	if err != nil {
		return nil, domain.NewTransportError(step, "backend unreachable", err)
	}
	defer res.Body.Close()
	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, domain.NewTransportError(step, "read response", err)
	}
	switch {
	case res.StatusCode >= http.StatusInternalServerError:
		return nil, domain.NewTransportError(step, fmt.Sprintf("backend returned %s", res.Status), nil)
	case res.StatusCode >= http.StatusBadRequest:
		return nil, domain.NewRejection(step, rejectionMessage(raw, res.Status))
	}
	return raw, nil
}

func rejectionMessage(raw []byte, fallback string) string {
	var resp envelope
	if err := json.Unmarshal(raw, &resp); err == nil && strings.TrimSpace(resp.Message) != "" {
		return resp.Message
	}
	return fallback
}

func messageOr(message, fallback string) string {
	if strings.TrimSpace(message) != "" {
		return message
	}
	return fallback
}
