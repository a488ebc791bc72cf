package postgres

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/lib/pq"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mmesim/provisioning-api/internal/domains/provisioning/domain"
	"github.com/mmesim/provisioning-api/internal/domains/provisioning/ports"
)

var _ ports.Repository = (*Repository)(nil)

// Repository persists provisioning flows in PostgreSQL using GORM-mapped columns.
type Repository struct {
	db *gorm.DB
}

// NewRepository wires a PostgreSQL-backed repository. The caller owns the DB lifecycle.
func NewRepository(db *gorm.DB) *Repository {
	repo := &Repository{db: db}
	if db != nil {
		if err := db.AutoMigrate(&flowRecord{}); err != nil {
			log.Printf("postgres repository migration failed: %v", err)
		}
	}
	return repo
}

type verificationResultRecord struct {
	Kind   string `json:"kind"`
	Status string `json:"status"`
}

type flowRecord struct {
	FlowID              string                     `gorm:"primaryKey;column:flow_id;size:64"`
	OrderID             string                     `gorm:"column:order_id;size:64;index"`
	Provider            string                     `gorm:"column:provider;type:varchar(32)"`
	PhoneNumber         string                     `gorm:"column:phone_number;size:32"`
	DeviceType          string                     `gorm:"column:device_type;type:varchar(16)"`
	DeviceModel         string                     `gorm:"column:device_model"`
	OSVersion           string                     `gorm:"column:os_version"`
	PaymentPayload      string                     `gorm:"column:payment_payload"`
	PaymentScreenshot   []byte                     `gorm:"column:payment_screenshot"`
	RequiresReview      bool                       `gorm:"column:requires_review"`
	State               string                     `gorm:"column:state;type:varchar(32);index"`
	VerificationResults []verificationResultRecord `gorm:"column:verification_results;type:jsonb;serializer:json"`
	ProfileData         string                     `gorm:"column:profile_data"`
	ActivationSteps     pq.StringArray             `gorm:"column:activation_steps;type:text[]"`
	FailureKind         string                     `gorm:"column:failure_kind;type:varchar(32)"`
	FailureMessage      string                     `gorm:"column:failure_message"`
	CreatedAt           time.Time                  `gorm:"column:created_at"`
	UpdatedAt           time.Time                  `gorm:"column:updated_at;index"`
}

func (flowRecord) TableName() string { return "provisioning_flows" }

func newFlowRecord(order *domain.Order) flowRecord {
	rec := flowRecord{
		FlowID:            order.FlowID,
		OrderID:           order.OrderID,
		Provider:          string(order.Provider),
		PhoneNumber:       order.PhoneNumber,
		DeviceType:        string(order.Device.Type),
		DeviceModel:       order.Device.Model,
		OSVersion:         order.Device.OSVersion,
		PaymentPayload:    order.Payment.Payload,
		PaymentScreenshot: append([]byte(nil), order.Payment.Screenshot...),
		RequiresReview:    order.RequiresReview,
		State:             string(order.State),
		CreatedAt:         order.CreatedAt,
		UpdatedAt:         order.UpdatedAt,
	}
	for _, result := range order.VerificationResults {
		rec.VerificationResults = append(rec.VerificationResults, verificationResultRecord{
			Kind:   result.Kind,
			Status: string(result.Status),
		})
	}
	if order.Credential != nil {
		rec.ProfileData = order.Credential.ProfileData
		rec.ActivationSteps = copyStringArray(order.Credential.ActivationSteps)
	}
	if order.Failure != nil {
		rec.FailureKind = string(order.Failure.Kind)
		rec.FailureMessage = order.Failure.Message
	}
	return rec
}

// Save inserts or updates a flow aggregate.
func (r *Repository) Save(ctx context.Context, order *domain.Order) (*domain.Order, error) {
	if err := r.ensureDB(); err != nil {
		return nil, err
	}
	if order == nil {
		return nil, errors.New("cannot save nil order")
	}
	record := newFlowRecord(order)
	if err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "flow_id"}},
			DoUpdates: clause.Assignments(map[string]any{
				"order_id":             record.OrderID,
				"provider":             record.Provider,
				"phone_number":         record.PhoneNumber,
				"device_type":          record.DeviceType,
				"device_model":         record.DeviceModel,
				"os_version":           record.OSVersion,
				"payment_payload":      record.PaymentPayload,
				"payment_screenshot":   record.PaymentScreenshot,
				"requires_review":      record.RequiresReview,
				"state":                record.State,
				"verification_results": record.VerificationResults,
				"profile_data":         record.ProfileData,
				"activation_steps":     record.ActivationSteps,
				"failure_kind":         record.FailureKind,
				"failure_message":      record.FailureMessage,
				"updated_at":           record.UpdatedAt,
			}),
		}).Create(&record).Error; err != nil {
		return nil, err
	}
	return r.GetByFlowID(ctx, order.FlowID)
}

// GetByFlowID fetches a flow by identifier.
func (r *Repository) GetByFlowID(ctx context.Context, flowID string) (*domain.Order, error) {
	if err := r.ensureDB(); err != nil {
		return nil, err
	}
	var record flowRecord
	if err := r.db.WithContext(ctx).First(&record, "flow_id = ?", flowID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ports.ErrNotFound
		}
		return nil, err
	}
	return record.toDomain(), nil
}

// Delete removes a flow by identifier.
func (r *Repository) Delete(ctx context.Context, flowID string) error {
	if err := r.ensureDB(); err != nil {
		return err
	}
	result := r.db.WithContext(ctx).Delete(&flowRecord{}, "flow_id = ?", flowID)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ports.ErrNotFound
	}
	return nil
}

// List returns every persisted flow.
func (r *Repository) List(ctx context.Context) ([]*domain.Order, error) {
	if err := r.ensureDB(); err != nil {
		return nil, err
	}
	var records []flowRecord
	if err := r.db.WithContext(ctx).Find(&records).Error; err != nil {
		return nil, err
	}
	orders := make([]*domain.Order, 0, len(records))
	for i := range records {
		orders = append(orders, records[i].toDomain())
	}
	return orders, nil
}

// DeleteStale removes flows not touched since the cutoff, returning how many
// were reaped.
func (r *Repository) DeleteStale(ctx context.Context, before time.Time) (int64, error) {
	if err := r.ensureDB(); err != nil {
		return 0, err
	}
	result := r.db.WithContext(ctx).Delete(&flowRecord{}, "updated_at < ?", before)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

func (r *flowRecord) toDomain() *domain.Order {
	if r == nil {
		return nil
	}
	order := &domain.Order{
		FlowID:      r.FlowID,
		OrderID:     r.OrderID,
		Provider:    domain.Provider(r.Provider),
		PhoneNumber: r.PhoneNumber,
		Device: domain.DeviceInfo{
			Type:      domain.DeviceType(r.DeviceType),
			Model:     r.DeviceModel,
			OSVersion: r.OSVersion,
		},
		Payment: domain.PaymentReference{
			Payload:    r.PaymentPayload,
			Screenshot: append([]byte(nil), r.PaymentScreenshot...),
		},
		RequiresReview: r.RequiresReview,
		State:          domain.State(r.State),
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
	for _, result := range r.VerificationResults {
		order.VerificationResults = append(order.VerificationResults, domain.VerificationResult{
			Kind:   result.Kind,
			Status: domain.VerificationStatus(result.Status),
		})
	}
	if r.ProfileData != "" {
		order.Credential = &domain.Credential{
			ProfileData:     r.ProfileData,
			ActivationSteps: append([]string(nil), r.ActivationSteps...),
		}
	}
	if r.FailureKind != "" || r.FailureMessage != "" {
		order.Failure = &domain.Failure{
			Kind:    domain.ErrorKind(r.FailureKind),
			Message: r.FailureMessage,
		}
	}
	return order
}

func (r *Repository) ensureDB() error {
	if r == nil || r.db == nil {
		return errors.New("postgres repository not configured")
	}
	return nil
}

func copyStringArray(values []string) pq.StringArray {
	if len(values) == 0 {
		return nil
	}
	dup := append([]string{}, values...)
	return pq.StringArray(dup)
}
