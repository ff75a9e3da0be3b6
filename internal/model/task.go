package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Task is a to-do item owned by exactly one user. Every access path must
// match UserID against the identity in the caller's token.
type Task struct {
	ID          uuid.UUID `json:"id" gorm:"type:char(36);primaryKey"`
	UserID      uuid.UUID `json:"user_id" gorm:"type:char(36);not null;index"`
	Title       string    `json:"title" gorm:"size:255;not null"`
	Description string    `json:"description" gorm:"type:text"`
	Completed   bool      `json:"completed" gorm:"default:false"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// BeforeCreate sets UUID before creating the record.
func (t *Task) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}
