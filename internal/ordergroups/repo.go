package ordergroups

import (
	"context"

	"github.com/tabletally/tabletally-backend/pkg/db/models"
	"github.com/tabletally/tabletally-backend/pkg/enums"
	"gorm.io/gorm"
)

// Repository manages persistence for order groups and their child orders.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByID(ctx context.Context, id string) (*models.OrderGroup, error)
	UpdateStatus(ctx context.Context, id string, status enums.OrderGroupStatus) error
	UpdateOrdersStatus(ctx context.Context, groupID string, status enums.OrderStatus) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an order-group repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindByID(ctx context.Context, id string) (*models.OrderGroup, error) {
	var group models.OrderGroup
	err := r.db.WithContext(ctx).
		Preload("Orders").
		Where("id = ?", id).
		First(&group).Error
	if err != nil {
		return nil, err
	}
	return &group, nil
}

func (r *repository) UpdateStatus(ctx context.Context, id string, status enums.OrderGroupStatus) error {
	return r.db.WithContext(ctx).
		Model(&models.OrderGroup{}).
		Where("id = ?", id).
		Update("status", status).Error
}

func (r *repository) UpdateOrdersStatus(ctx context.Context, groupID string, status enums.OrderStatus) error {
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("order_group_id = ?", groupID).
		Update("status", status).Error
}
