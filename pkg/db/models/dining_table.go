package models

import (
	"time"

	"github.com/tabletally/tabletally-backend/pkg/enums"
)

// DiningTable tracks occupancy by table number, the floor plan's natural key.
type DiningTable struct {
	Number    int               `gorm:"column:number;primaryKey"`
	Seats     int               `gorm:"column:seats;not null;default:2"`
	Status    enums.TableStatus `gorm:"column:status;type:text;not null;default:'available'"`
	CreatedAt time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName overrides gorm's pluralization.
func (DiningTable) TableName() string { return "dining_tables" }
