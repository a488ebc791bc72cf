package migrations

import (
	"time"

	"github.com/lib/pq"
	"gorm.io/gorm"
)

// Run applies the schema for the bounded contexts. Intended to replace adapter-level automigrate.
func Run(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	return db.AutoMigrate(
		&flowRecord{},
	)
}

// Flow schema mirrors the provisioning Postgres adapter.
type flowRecord struct {
	FlowID              string         `gorm:"primaryKey;column:flow_id;size:64"`
	OrderID             string         `gorm:"column:order_id;size:64;index"`
	Provider            string         `gorm:"column:provider;type:varchar(32)"`
	PhoneNumber         string         `gorm:"column:phone_number;size:32"`
	DeviceType          string         `gorm:"column:device_type;type:varchar(16)"`
	DeviceModel         string         `gorm:"column:device_model"`
	OSVersion           string         `gorm:"column:os_version"`
	PaymentPayload      string         `gorm:"column:payment_payload"`
	PaymentScreenshot   []byte         `gorm:"column:payment_screenshot"`
	RequiresReview      bool           `gorm:"column:requires_review"`
	State               string         `gorm:"column:state;type:varchar(32);index"`
	VerificationResults []byte         `gorm:"column:verification_results;type:jsonb"`
	ProfileData         string         `gorm:"column:profile_data"`
	ActivationSteps     pq.StringArray `gorm:"column:activation_steps;type:text[]"`
	FailureKind         string         `gorm:"column:failure_kind;type:varchar(32)"`
	FailureMessage      string         `gorm:"column:failure_message"`
	CreatedAt           time.Time      `gorm:"column:created_at"`
	UpdatedAt           time.Time      `gorm:"column:updated_at;index"`
}

func (flowRecord) TableName() string { return "provisioning_flows" }
