package tables

import (
	"context"

	"github.com/tabletally/tabletally-backend/pkg/db/models"
	"github.com/tabletally/tabletally-backend/pkg/enums"
	"gorm.io/gorm"
)

// Repository manages persistence for dining tables.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByNumber(ctx context.Context, number int) (*models.DiningTable, error)
	UpdateStatus(ctx context.Context, number int, status enums.TableStatus) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a dining-table repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindByNumber(ctx context.Context, number int) (*models.DiningTable, error) {
	var table models.DiningTable
	err := r.db.WithContext(ctx).
		Where("number = ?", number).
		First(&table).Error
	if err != nil {
		return nil, err
	}
	return &table, nil
}

func (r *repository) UpdateStatus(ctx context.Context, number int, status enums.TableStatus) error {
	return r.db.WithContext(ctx).
		Model(&models.DiningTable{}).
		Where("number = ?", number).
		Update("status", status).Error
}
