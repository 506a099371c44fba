package ledger

import (
	"context"

	"github.com/tabletally/tabletally-backend/pkg/db/models"
	"github.com/tabletally/tabletally-backend/pkg/enums"
	"github.com/tabletally/tabletally-backend/pkg/pagination"
	"gorm.io/gorm"
)

// Repository manages persistence for payment records.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, record *models.PaymentRecord) error
	Update(ctx context.Context, record *models.PaymentRecord) error
	FindBySetKey(ctx context.Context, setKey string) (*models.PaymentRecord, error)
	ExistsSuccessForGroup(ctx context.Context, groupID string) (bool, error)
	List(ctx context.Context, cursor *pagination.Cursor, limit int) ([]models.PaymentRecord, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a payment-record repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, record *models.PaymentRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

func (r *repository) Update(ctx context.Context, record *models.PaymentRecord) error {
	return r.db.WithContext(ctx).Save(record).Error
}

func (r *repository) FindBySetKey(ctx context.Context, setKey string) (*models.PaymentRecord, error) {
	var record models.PaymentRecord
	err := r.db.WithContext(ctx).
		Where("group_set_key = ?", setKey).
		First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// ExistsSuccessForGroup reports whether any successful record settles the
// given group. The set key is the sorted join of fixed-width hex ids, so a
// substring match on the key is an exact membership test.
func (r *repository) ExistsSuccessForGroup(ctx context.Context, groupID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.PaymentRecord{}).
		Where("status = ?", enums.PaymentStatusSuccess).
		Where("group_set_key LIKE ?", "%"+groupID+"%").
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repository) List(ctx context.Context, cursor *pagination.Cursor, limit int) ([]models.PaymentRecord, error) {
	query := r.db.WithContext(ctx).
		Model(&models.PaymentRecord{}).
		Order("created_at DESC, id DESC").
		Limit(limit)
	if cursor != nil {
		query = query.Where(
			"(created_at < ?) OR (created_at = ? AND id < ?)",
			cursor.CreatedAt, cursor.CreatedAt, cursor.ID,
		)
	}

	var records []models.PaymentRecord
	if err := query.Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}
