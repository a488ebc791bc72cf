//go:build pact
// +build pact

package pacttest

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

const (
	// The provisioning API is the provider for the mobile application pact.
	ProviderName = "provisioning-api"
	ConsumerName = "esim-mobile-app"

	// The same API acts as consumer of the upstream order backend.
	BackendProviderName = "mmesim-backend"

	StateFlowsBaseline = "no flows exist"
	StateFlowExists    = "flow f-pact-1 awaits a phone number"
	StateFlowMissing   = "no flow with id f-missing"

	StateBackendReachable = "backend accepts provisioning requests"
	StateOrderVerified    = "order ORD-PACT-1 passed verification"
)

const (
	ExistingFlowID = "f-pact-1"
	MissingFlowID  = "f-missing"

	ExampleOrderID   = "ORD-PACT-1"
	ExamplePhone     = "09123456789"
	ExamplePhoneE164 = "+959123456789"
)

// PactDir returns the workspace-level directory for generated pact files.
func PactDir(t testing.TB) string {
	t.Helper()
	dir := filepath.Join(projectRoot(t), "pacts")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("create pact dir: %v", err)
	}
	return dir
}

// PactFile returns the canonical pact file path for the mobile app consumer.
func PactFile(t testing.TB) string {
	t.Helper()
	return filepath.Join(PactDir(t), ConsumerName+"-"+ProviderName+".json")
}

// LogDir returns the log output directory for pact-go.
func LogDir(t testing.TB) string {
	t.Helper()
	dir := filepath.Join(projectRoot(t), "bin", "pact-logs")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("create pact log dir: %v", err)
	}
	return dir
}

// ExampleFlowPayload provides stable test data for flow interactions.
func ExampleFlowPayload() map[string]any {
	return map[string]any{
		"flow_id":  ExistingFlowID,
		"state":    "provider_selected",
		"provider": "mpt",
	}
}

// projectRoot walks up from this file to the workspace root.
func projectRoot(t testing.TB) string {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("cannot determine caller for pact paths")
	}
	return filepath.Clean(filepath.Join(filepath.Dir(file), "..", ".."))
}
