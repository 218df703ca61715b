package model

import (
	"time"

	"github.com/google/uuid"
)

// Site represents a construction site. Every expense belongs to one
// site; site managers approve tier-1 for their own site only.
type Site struct {
	ID        uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Code      string     `gorm:"type:varchar(30);uniqueIndex;not null" json:"code"`
	Name      string     `gorm:"type:varchar(100);not null" json:"name"`
	Region    *string    `gorm:"type:varchar(50)" json:"region"`
	Address   *string    `gorm:"type:varchar(255)" json:"address"`
	IsActive  bool       `gorm:"not null;default:true" json:"is_active"`
	ManagerID *uuid.UUID `gorm:"type:uuid" json:"manager_id"`
	Manager   *User      `gorm:"foreignKey:ManagerID" json:"manager,omitempty"`
	CreatedAt time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}
