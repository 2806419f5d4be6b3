package models

import (
	"time"

	"github.com/google/uuid"
)

// User is owned by the external auth service; this module only reads it.
type User struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Username    string    `gorm:"not null;uniqueIndex" json:"username"`
	DisplayName string    `json:"display_name"`
	Avatar      string    `json:"avatar"`
	NetworkID   uuid.UUID `gorm:"type:uuid;not null;index" json:"network_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
