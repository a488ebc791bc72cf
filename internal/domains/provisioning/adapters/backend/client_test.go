package backend_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmesim/provisioning-api/internal/domains/provisioning/adapters/backend"
	"github.com/mmesim/provisioning-api/internal/domains/provisioning/domain"
	"github.com/mmesim/provisioning-api/internal/domains/provisioning/ports"
)

func newClient(t *testing.T, handler http.Handler) (*backend.Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client, err := backend.NewClient(server.URL, server.Client())
	require.NoError(t, err)
	return client, server
}

func TestNewClient_RequiresBaseURL(t *testing.T) {
	_, err := backend.NewClient("  ", nil)
	assert.Error(t, err)
}

func TestValidatePhone(t *testing.T) {
	client, _ := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/phone/validate", r.URL.Path)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "09123456789", body["phone_number"])
		assert.Equal(t, "mpt", body["provider"])
		json.NewEncoder(w).Encode(map[string]any{"success": true, "normalized_phone": "+959123456789"})
	}))

	result, err := client.ValidatePhone(context.Background(), "09123456789", domain.ProviderMPT)
	require.NoError(t, err)
	assert.Equal(t, "+959123456789", result.NormalizedPhone)
}

func TestValidatePhone_RejectionCarriesMessage(t *testing.T) {
	client, _ := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"success": false, "message": "number not recognized by carrier"})
	}))

	_, err := client.ValidatePhone(context.Background(), "0000", domain.ProviderMPT)
	stepErr, ok := domain.AsStepError(err)
	require.True(t, ok)
	assert.Equal(t, domain.ErrorRejected, stepErr.Kind)
	assert.Equal(t, "number not recognized by carrier", stepErr.Message)
}

func TestCheckDevice_RequiresReviewCountsAsPass(t *testing.T) {
	client, _ := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"success": false, "status": "requires_review", "message": "manual review queued"})
	}))

	result, err := client.CheckDevice(context.Background(), domain.DeviceInfo{Type: domain.DeviceAndroid, Model: "pixel 8", OSVersion: "14"})
	require.NoError(t, err)
	assert.True(t, result.RequiresReview)
	assert.Equal(t, "manual review queued", result.Message)
}

func TestCheckDevice_IncompatibleDeviceIsRejection(t *testing.T) {
	client, _ := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"success": false, "message": "device does not support eSIM"})
	}))

	_, err := client.CheckDevice(context.Background(), domain.DeviceInfo{Type: domain.DeviceIOS, Model: "iphone 6", OSVersion: "12"})
	stepErr, ok := domain.AsStepError(err)
	require.True(t, ok)
	assert.Equal(t, domain.ErrorRejected, stepErr.Kind)
}

func TestRegisterOrder(t *testing.T) {
	client, _ := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/orders", r.URL.Path)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		device, ok := body["device_info"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "ios", device["device_type"])
		json.NewEncoder(w).Encode(map[string]any{"success": true, "order_id": "ORD-1001"})
	}))

	registration, err := client.RegisterOrder(context.Background(), ports.RegistrationRequest{
		PhoneNumber: "+959123456789",
		Provider:    domain.ProviderMPT,
		Device:      domain.DeviceInfo{Type: domain.DeviceIOS, Model: "iphone 15", OSVersion: "17.2"},
	})
	require.NoError(t, err)
	assert.Equal(t, "ORD-1001", registration.OrderID)
}

func TestRegisterOrder_MissingOrderIDIsRejection(t *testing.T) {
	client, _ := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"success": true})
	}))

	_, err := client.RegisterOrder(context.Background(), ports.RegistrationRequest{})
	stepErr, ok := domain.AsStepError(err)
	require.True(t, ok)
	assert.Equal(t, domain.ErrorRejected, stepErr.Kind)
}

func TestVerifyPayment_EncodesScreenshot(t *testing.T) {
	screenshot := []byte{0x89, 0x50, 0x4e, 0x47}
	client, _ := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/orders/ORD-1001/payment", r.URL.Path)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, base64.StdEncoding.EncodeToString(screenshot), body["screenshot"])
		json.NewEncoder(w).Encode(map[string]any{"success": true})
	}))

	_, err := client.VerifyPayment(context.Background(), ports.PaymentRequest{
		OrderID: "ORD-1001",
		Payment: domain.PaymentReference{Payload: "00020101mmqr", Screenshot: screenshot},
	})
	require.NoError(t, err)
}

func TestVerificationStatus(t *testing.T) {
	client, _ := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/v1/orders/ORD-1001/verification", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]any{
			"status": "pending",
			"sub_verifications": []map[string]string{
				{"kind": "payment_amount", "status": "verified"},
				{"kind": "screenshot_authenticity", "status": "pending"},
			},
		})
	}))

	report, err := client.VerificationStatus(context.Background(), "ORD-1001")
	require.NoError(t, err)
	assert.Equal(t, domain.VerificationPending, report.Status)
	require.Len(t, report.SubVerifications, 2)
	assert.Equal(t, domain.VerificationVerified, report.SubVerifications[0].Status)
}

func TestVerificationStatus_UnknownStatusIsTransportError(t *testing.T) {
	client, _ := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"status": "limbo"})
	}))

	_, err := client.VerificationStatus(context.Background(), "ORD-1001")
	stepErr, ok := domain.AsStepError(err)
	require.True(t, ok)
	assert.Equal(t, domain.ErrorTransport, stepErr.Kind)
}

func TestIssueCredential(t *testing.T) {
	client, _ := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/orders/ORD-1001/esim", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"credential": map[string]any{
				"profile_data":            "LPA:1$rsp.example.com$MATCHING-ID",
				"activation_instructions": []string{"Open Settings", "Add eSIM"},
			},
		})
	}))

	credential, err := client.IssueCredential(context.Background(), "ORD-1001")
	require.NoError(t, err)
	assert.Equal(t, "LPA:1$rsp.example.com$MATCHING-ID", credential.ProfileData)
	assert.Len(t, credential.ActivationSteps, 2)
}

func TestErrorNormalization(t *testing.T) {
	t.Run("5xx is transport", func(t *testing.T) {
		client, _ := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		_, err := client.ValidatePhone(context.Background(), "09123456789", domain.ProviderMPT)
		assert.Equal(t, domain.ErrorTransport, domain.KindOf(err))
	})

	t.Run("4xx is rejection with backend message", func(t *testing.T) {
		client, _ := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnprocessableEntity)
			json.NewEncoder(w).Encode(map[string]any{"message": "Invalid MMQR data"})
		}))
		_, err := client.VerifyPayment(context.Background(), ports.PaymentRequest{OrderID: "ORD-1", Payment: domain.PaymentReference{Payload: "bad"}})
		stepErr, ok := domain.AsStepError(err)
		require.True(t, ok)
		assert.Equal(t, domain.ErrorRejected, stepErr.Kind)
		assert.Equal(t, "Invalid MMQR data", stepErr.Message)
	})

	t.Run("unreachable backend is transport", func(t *testing.T) {
		server := httptest.NewServer(http.NotFoundHandler())
		server.Close()
		client, err := backend.NewClient(server.URL, nil)
		require.NoError(t, err)
		_, err = client.ValidatePhone(context.Background(), "09123456789", domain.ProviderMPT)
		assert.Equal(t, domain.ErrorTransport, domain.KindOf(err))
	})

	t.Run("malformed body is transport", func(t *testing.T) {
		client, _ := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("not json"))
		}))
		_, err := client.ValidatePhone(context.Background(), "09123456789", domain.ProviderMPT)
		assert.Equal(t, domain.ErrorTransport, domain.KindOf(err))
	})
}
