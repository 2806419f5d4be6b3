package models

import (
	"time"

	"github.com/google/uuid"
)

// Network is the tenant scope every user, community and post belongs to.
type Network struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name      string    `gorm:"not null" json:"name"`
	Domain    string    `gorm:"uniqueIndex" json:"domain"`
	CreatedAt time.Time `json:"created_at"`
}

type Community struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"not null;uniqueIndex:idx_community_name_network" json:"name"`
	DisplayName string    `json:"display_name"`
	Description string    `gorm:"type:text" json:"description"`
	CreatorID   uint      `gorm:"index" json:"creator_id"`
	NetworkID   uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_community_name_network" json:"network_id"`
	CreatedAt   time.Time `json:"created_at"`
}
