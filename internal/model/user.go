package model

import (
	"time"

	"github.com/google/uuid"
)

// Role name constants. The role set is fixed configuration; there is no
// database-driven role taxonomy.
const (
	RoleSubmitter   = "submitter"
	RoleSiteManager = "site_manager"
	RoleHQAdmin     = "hq_admin"
	RoleAuditor     = "auditor"
)

// UserStatus enum constants
const (
	UserStatusActive   = "ACTIVE"
	UserStatusInactive = "INACTIVE"
)

// ValidRole reports whether name is one of the known role names.
func ValidRole(name string) bool {
	switch name {
	case RoleSubmitter, RoleSiteManager, RoleHQAdmin, RoleAuditor:
		return true
	}
	return false
}

// User represents an account that files, approves, or audits expenses.
// site_id binds site-scoped roles to a construction site; hq_admin and
// auditor accounts are typically not site-bound.
type User struct {
	ID           uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Email        string     `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	FullName     string     `gorm:"type:varchar(100);not null" json:"full_name"`
	Phone        *string    `gorm:"type:varchar(20)" json:"phone"`
	PasswordHash string     `gorm:"type:varchar(255);not null" json:"-"`
	Role         string     `gorm:"type:varchar(30);not null;index" json:"role"`
	SiteID       *uuid.UUID `gorm:"type:uuid;index" json:"site_id"`
	Site         *Site      `gorm:"foreignKey:SiteID" json:"site,omitempty"`
	Status       string     `gorm:"type:varchar(20);not null;default:'ACTIVE'" json:"status"`
	CreatedAt    time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// Actor is the authenticated principal carried through a request.
// It is derived from the JWT claims, never from request payloads.
type Actor struct {
	ID     uuid.UUID
	Role   string
	SiteID *uuid.UUID
}

// HasSite reports whether the actor is bound to siteID.
func (a Actor) HasSite(siteID uuid.UUID) bool {
	return a.SiteID != nil && *a.SiteID == siteID
}
