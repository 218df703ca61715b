// Package policy is the single source of truth for role-scoped access
// rules over expenses. Services and the list filter both delegate here
// instead of duplicating role conditionals.
package policy

import (
	"siteexpense/internal/model"

	"github.com/google/uuid"
)

// editableStatuses are the statuses in which the owner may still modify
// the expense record. APPROVED is final.
var editableStatuses = map[string]bool{
	model.StatusDraft:        true,
	model.StatusPendingSite:  true,
	model.StatusPendingHQ:    true,
	model.StatusRejectedSite: true,
	model.StatusRejectedHQ:   true,
}

// resubmittableStatuses are the statuses from which a submitter may
// re-enter the approval pipeline.
var resubmittableStatuses = map[string]bool{
	model.StatusDraft:        true,
	model.StatusRejectedSite: true,
	model.StatusRejectedHQ:   true,
}

// Editable reports whether an expense in the given status may still be
// modified by its owner.
func Editable(status string) bool {
	return editableStatuses[status]
}

// Resubmittable reports whether a submitter may re-enter the approval
// pipeline from the given status.
func Resubmittable(status string) bool {
	return resubmittableStatuses[status]
}

// SubmitterStatusAllowed reports whether a submitter may set status via
// the update endpoint. The editable set plus PENDING_SITE (resubmit);
// a submitter can never jump an expense to PENDING_HQ or APPROVED.
func SubmitterStatusAllowed(status string) bool {
	return editableStatuses[status] || status == model.StatusPendingSite
}

// CanRead reports whether the actor may read an expense owned by
// ownerID at siteID. Submitters see only their own expenses; site
// managers only their bound site; hq_admin and auditor see everything.
func CanRead(actor model.Actor, ownerID, siteID uuid.UUID) bool {
	if actor.Role == model.RoleSubmitter && ownerID != actor.ID {
		return false
	}
	if actor.Role == model.RoleSiteManager && actor.SiteID != nil && siteID != *actor.SiteID {
		return false
	}
	return true
}

// CanEdit reports whether the actor may modify the expense record.
// Ownership gates edit, not role: a manager or admin editing their own
// expense is treated like any other owner.
func CanEdit(actor model.Actor, ownerID uuid.UUID, status string) bool {
	if ownerID != actor.ID {
		return false
	}
	switch actor.Role {
	case model.RoleSubmitter, model.RoleSiteManager, model.RoleHQAdmin:
		return editableStatuses[status]
	}
	return false
}

// CanResubmit reports whether the actor may push the expense back into
// the approval pipeline. Only submitters resubmit.
func CanResubmit(actor model.Actor, ownerID uuid.UUID, status string) bool {
	return actor.Role == model.RoleSubmitter && ownerID == actor.ID && resubmittableStatuses[status]
}

// CanWriteAttachment reports whether the actor may add or delete
// attachments on an expense owned by ownerID at siteID.
func CanWriteAttachment(actor model.Actor, ownerID, siteID uuid.UUID) bool {
	switch actor.Role {
	case model.RoleHQAdmin:
		return true
	case model.RoleSiteManager:
		return actor.SiteID != nil && siteID == *actor.SiteID
	case model.RoleSubmitter:
		return ownerID == actor.ID
	}
	return false
}

// AllowUserFilterOverride reports whether the actor may narrow a list
// query to userID's expenses. Unauthorized overrides are silently
// ignored by the filter, not rejected.
func AllowUserFilterOverride(actor model.Actor, userID uuid.UUID) bool {
	switch {
	case actor.Role == model.RoleHQAdmin:
		return true
	case actor.Role == model.RoleAuditor:
		return true
	case actor.Role == model.RoleSiteManager && actor.SiteID != nil:
		return true
	case actor.ID == userID:
		return true
	}
	return false
}

// Permissions is the per-row permissions block returned to clients.
type Permissions struct {
	CanEdit     bool `json:"canEdit"`
	CanResubmit bool `json:"canResubmit"`
}

// PermissionsFor computes the permissions block for one expense row.
func PermissionsFor(actor model.Actor, ownerID uuid.UUID, status string) Permissions {
	return Permissions{
		CanEdit:     CanEdit(actor, ownerID, status),
		CanResubmit: CanResubmit(actor, ownerID, status),
	}
}
