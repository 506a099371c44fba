package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tabletally/tabletally-backend/pkg/enums"
)

// Order is a single line on an order group's bill.
type Order struct {
	ID           uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderGroupID string            `gorm:"column:order_group_id;type:char(24);not null;index"`
	ItemName     string            `gorm:"column:item_name;not null"`
	Quantity     int               `gorm:"column:quantity;not null;default:1"`
	Price        decimal.Decimal   `gorm:"column:price;type:numeric(12,2);not null"`
	Status       enums.OrderStatus `gorm:"column:status;type:text;not null;default:'pending'"`
	CreatedAt    time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}
