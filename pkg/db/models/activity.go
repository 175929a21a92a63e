package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/entrenaapp/entrena-backend/pkg/enums"
)

// Activity is a purchasable offering published by a coach. Catalog CRUD
// lives outside this service; the settlement pipeline only reads it.
type Activity struct {
	ID        uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CoachID   uuid.UUID          `gorm:"column:coach_id;type:uuid;not null;index"`
	Title     string             `gorm:"column:title;not null"`
	Type      enums.ActivityType `gorm:"column:type;type:activity_type;not null;default:'sesion'"`
	Price     decimal.Decimal    `gorm:"column:price;type:numeric(12,2);not null"`
	Currency  string             `gorm:"column:currency;not null;default:'ARS'"`
	CreatedAt time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

func (Activity) TableName() string {
	return "activities"
}
