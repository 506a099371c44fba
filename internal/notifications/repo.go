package notifications

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/tabletally/tabletally-backend/pkg/db/models"
	"github.com/tabletally/tabletally-backend/pkg/pagination"
	"gorm.io/gorm"
)

// Repository manages persistence for the management notification feed.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, notification *models.Notification) error
	List(ctx context.Context, params listParams) ([]models.Notification, *pagination.Cursor, error)
	MarkRead(ctx context.Context, id uuid.UUID, readAt time.Time) (bool, error)
	MarkAllRead(ctx context.Context, readAt time.Time) (int64, error)
}

type listParams struct {
	Limit      int
	Cursor     *pagination.Cursor
	UnreadOnly bool
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a notifications repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, notification *models.Notification) error {
	return r.db.WithContext(ctx).Create(notification).Error
}

func (r *repository) List(ctx context.Context, params listParams) ([]models.Notification, *pagination.Cursor, error) {
	query := r.db.WithContext(ctx).
		Model(&models.Notification{}).
		Order("created_at DESC, id DESC").
		Limit(params.Limit)
	if params.UnreadOnly {
		query = query.Where("read_at IS NULL")
	}
	if params.Cursor != nil {
		query = query.Where(
			"(created_at < ?) OR (created_at = ? AND id < ?)",
			params.Cursor.CreatedAt, params.Cursor.CreatedAt, params.Cursor.ID,
		)
	}

	var rows []models.Notification
	if err := query.Find(&rows).Error; err != nil {
		return nil, nil, err
	}

	// the query over-fetches by one row to detect the next page
	if params.Limit > 0 && len(rows) == params.Limit {
		last := rows[len(rows)-1]
		rows = rows[:len(rows)-1]
		next := &pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID}
		return rows, next, nil
	}
	return rows, nil, nil
}

func (r *repository) MarkRead(ctx context.Context, id uuid.UUID, readAt time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("id = ?", id).
		Update("read_at", readAt)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) MarkAllRead(ctx context.Context, readAt time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("read_at IS NULL").
		Update("read_at", readAt)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}
