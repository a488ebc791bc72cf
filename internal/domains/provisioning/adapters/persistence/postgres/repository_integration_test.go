//go:build integration
// +build integration

// To enable gopls support for this file, add the following to your VSCode settings.json:
// "gopls": {
//   "buildFlags": ["-tags=integration"]
// }

package postgres_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	provpostgres "github.com/mmesim/provisioning-api/internal/domains/provisioning/adapters/persistence/postgres"
	"github.com/mmesim/provisioning-api/internal/domains/provisioning/domain"
	"github.com/mmesim/provisioning-api/internal/domains/provisioning/ports"
	"github.com/mmesim/provisioning-api/internal/platform/migrations"
)

func setupPostgresContainer(t *testing.T) (*gorm.DB, func()) {
	ctx := context.Background()

	pgContainer, err := tcpostgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:15-alpine"),
		tcpostgres.WithDatabase("provisioning_test"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)

	dsn, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	// Run migrations
	err = migrations.Run(db)
	require.NoError(t, err)

	cleanup := func() {
		sqlDB, _ := db.DB()
		if sqlDB != nil {
			sqlDB.Close()
		}
		pgContainer.Terminate(ctx)
	}

	return db, cleanup
}

func newIssuedOrder(t *testing.T, flowID string) *domain.Order {
	t.Helper()
	order, err := domain.NewOrder(flowID, domain.ProviderMPT)
	require.NoError(t, err)
	require.NoError(t, order.MarkPhoneValidated("+959123456789"))
	require.NoError(t, order.MarkDeviceChecked(domain.DeviceInfo{
		Type:      domain.DeviceIOS,
		Model:     "iphone 15",
		OSVersion: "17.2",
	}, false))
	require.NoError(t, order.MarkRegistered("ORD-1001"))
	require.NoError(t, order.MarkPaymentVerified(domain.PaymentReference{Payload: "00020101mmqr", Screenshot: []byte{0x89, 0x50}}))
	require.NoError(t, order.BeginVerification())
	require.NoError(t, order.RecordVerificationResults([]domain.VerificationResult{
		{Kind: "payment_amount", Status: domain.VerificationVerified},
		{Kind: "screenshot_authenticity", Status: domain.VerificationVerified},
	}))
	require.NoError(t, order.MarkVerified())
	require.NoError(t, order.MarkIssued(domain.Credential{
		ProfileData:     "LPA:1$rsp.example.com$MATCHING-ID",
		ActivationSteps: []string{"Open Settings", "Add eSIM", "Scan the QR code"},
	}))
	return order
}

func TestPostgresRepository_SaveAndGetByFlowID(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	db, cleanup := setupPostgresContainer(t)
	defer cleanup()

	repo := provpostgres.NewRepository(db)
	ctx := context.Background()

	order := newIssuedOrder(t, "flow-1")

	saved, err := repo.Save(ctx, order)
	require.NoError(t, err)
	require.NotNil(t, saved)
	assert.Equal(t, domain.StateIssued, saved.State)

	retrieved, err := repo.GetByFlowID(ctx, "flow-1")
	require.NoError(t, err)
	assert.Equal(t, "ORD-1001", retrieved.OrderID)
	assert.Equal(t, domain.ProviderMPT, retrieved.Provider)
	assert.Equal(t, "+959123456789", retrieved.PhoneNumber)
	assert.Equal(t, domain.DeviceIOS, retrieved.Device.Type)
	assert.Equal(t, []byte{0x89, 0x50}, retrieved.Payment.Screenshot)
	assert.Len(t, retrieved.VerificationResults, 2)
	require.NotNil(t, retrieved.Credential)
	assert.Equal(t, "LPA:1$rsp.example.com$MATCHING-ID", retrieved.Credential.ProfileData)
	assert.Len(t, retrieved.Credential.ActivationSteps, 3)
}

func TestPostgresRepository_UpdateKeepsCreatedAt(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	db, cleanup := setupPostgresContainer(t)
	defer cleanup()

	repo := provpostgres.NewRepository(db)
	ctx := context.Background()

	order, err := domain.NewOrder("flow-2", domain.ProviderATOM)
	require.NoError(t, err)
	saved, err := repo.Save(ctx, order)
	require.NoError(t, err)
	originalCreatedAt := saved.CreatedAt

	// Sleep briefly to ensure different timestamps
	time.Sleep(10 * time.Millisecond)

	require.NoError(t, order.MarkPhoneValidated("+959987654321"))
	updated, err := repo.Save(ctx, order)
	require.NoError(t, err)

	assert.Equal(t, domain.StatePhoneValidated, updated.State)
	assert.Equal(t, originalCreatedAt.Unix(), updated.CreatedAt.Unix())
	assert.True(t, updated.UpdatedAt.After(originalCreatedAt))
}

func TestPostgresRepository_RecordsFailure(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	db, cleanup := setupPostgresContainer(t)
	defer cleanup()

	repo := provpostgres.NewRepository(db)
	ctx := context.Background()

	order, err := domain.NewOrder("flow-3", domain.ProviderOoredoo)
	require.NoError(t, err)
	require.NoError(t, order.MarkFailed(domain.Failure{
		Kind:    domain.ErrorVerificationTimeout,
		Message: "verification is still processing; contact support with your order id",
	}))

	_, err = repo.Save(ctx, order)
	require.NoError(t, err)

	retrieved, err := repo.GetByFlowID(ctx, "flow-3")
	require.NoError(t, err)
	assert.Equal(t, domain.StateFailed, retrieved.State)
	require.NotNil(t, retrieved.Failure)
	assert.Equal(t, domain.ErrorVerificationTimeout, retrieved.Failure.Kind)
}

func TestPostgresRepository_Delete(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	db, cleanup := setupPostgresContainer(t)
	defer cleanup()

	repo := provpostgres.NewRepository(db)
	ctx := context.Background()

	order, err := domain.NewOrder("flow-4", domain.ProviderMytel)
	require.NoError(t, err)
	_, err = repo.Save(ctx, order)
	require.NoError(t, err)

	err = repo.Delete(ctx, "flow-4")
	require.NoError(t, err)

	_, err = repo.GetByFlowID(ctx, "flow-4")
	assert.ErrorIs(t, err, ports.ErrNotFound)

	// Delete again should error
	err = repo.Delete(ctx, "flow-4")
	assert.ErrorIs(t, err, ports.ErrNotFound)
}

func TestPostgresRepository_List(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	db, cleanup := setupPostgresContainer(t)
	defer cleanup()

	repo := provpostgres.NewRepository(db)
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		order, err := domain.NewOrder(fmt.Sprintf("flow-%d", i), domain.ProviderMPT)
		require.NoError(t, err)
		_, err = repo.Save(ctx, order)
		require.NoError(t, err)
	}

	all, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 5)
}

func TestPostgresRepository_DeleteStale(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	db, cleanup := setupPostgresContainer(t)
	defer cleanup()

	repo := provpostgres.NewRepository(db)
	ctx := context.Background()

	stale, err := domain.NewOrder("flow-stale", domain.ProviderMPT)
	require.NoError(t, err)
	_, err = repo.Save(ctx, stale)
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond)
	cutoff := time.Now()

	fresh, err := domain.NewOrder("flow-fresh", domain.ProviderATOM)
	require.NoError(t, err)
	_, err = repo.Save(ctx, fresh)
	require.NoError(t, err)

	reaped, err := repo.DeleteStale(ctx, cutoff)
	require.NoError(t, err)
	assert.EqualValues(t, 1, reaped)

	_, err = repo.GetByFlowID(ctx, "flow-stale")
	assert.ErrorIs(t, err, ports.ErrNotFound)
	_, err = repo.GetByFlowID(ctx, "flow-fresh")
	require.NoError(t, err)
}
