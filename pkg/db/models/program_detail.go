package models

import (
	"time"

	"github.com/google/uuid"
)

// ProgramDetail is one day/block row of a program activity. Template rows
// (EnrollmentID nil) belong to the coach's master program; on activation
// they are duplicated into enrollment-scoped copies the client can track
// progress against.
type ProgramDetail struct {
	ID           uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ActivityID   uuid.UUID  `gorm:"column:activity_id;type:uuid;not null;index"`
	EnrollmentID *uuid.UUID `gorm:"column:enrollment_id;type:uuid;index"`
	DayNumber    int        `gorm:"column:day_number;not null"`
	Title        string     `gorm:"column:title;not null"`
	Content      string     `gorm:"column:content"`
	CreatedAt    time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (ProgramDetail) TableName() string {
	return "program_details"
}
