package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tabletally/tabletally-backend/pkg/enums"
)

// PaymentRecord is the durable ledger entry for one payment attempt against a
// set of order groups. GroupSetKey is the normalized sorted join of the id set
// and is the record's idempotency signature: re-delivered webhooks upsert the
// same row instead of creating a duplicate.
type PaymentRecord struct {
	ID             uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	GroupSetKey    string              `gorm:"column:group_set_key;not null;uniqueIndex:ux_payment_records_group_set"`
	OrderGroupIDs  []string            `gorm:"column:order_group_ids;type:jsonb;serializer:json;not null"`
	Amount         decimal.Decimal     `gorm:"column:amount;type:numeric(12,2);not null"`
	Method         enums.PaymentMethod `gorm:"column:method;type:text;not null;default:'bank_transfer'"`
	Status         enums.PaymentStatus `gorm:"column:status;type:text;not null;default:'pending'"`
	ProviderTxnID  *int64              `gorm:"column:provider_txn_id"`
	ReferenceCode  *string             `gorm:"column:reference_code"`
	TransactionAt  *time.Time          `gorm:"column:transaction_at"`
	InstructionURL string              `gorm:"column:instruction_url"`
	CreatedAt      time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
