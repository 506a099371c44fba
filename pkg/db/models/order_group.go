package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/tabletally/tabletally-backend/pkg/enums"
)

// OrderGroup bundles the orders sharing one bill and, for dine-in, one table
// session. Its id is the 24-hex token embedded in payment references.
type OrderGroup struct {
	ID          string                 `gorm:"column:id;type:char(24);primaryKey"`
	TableNumber *int                   `gorm:"column:table_number"`
	GuestID     *string                `gorm:"column:guest_id;type:char(24)"`
	CustomerID  *string                `gorm:"column:customer_id;type:char(24)"`
	Status      enums.OrderGroupStatus `gorm:"column:status;type:text;not null;default:'pending'"`
	TotalAmount decimal.Decimal        `gorm:"column:total_amount;type:numeric(12,2);not null"`
	Orders      []Order                `gorm:"foreignKey:OrderGroupID;constraint:OnDelete:CASCADE"`
	CreatedAt   time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}

// OwnerAccountID returns the account driving notification routing, preferring
// the customer id when both a customer and a guest are attached.
func (g OrderGroup) OwnerAccountID() (string, bool) {
	if g.CustomerID != nil && *g.CustomerID != "" {
		return *g.CustomerID, true
	}
	if g.GuestID != nil && *g.GuestID != "" {
		return *g.GuestID, true
	}
	return "", false
}
