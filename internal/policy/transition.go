package policy

import (
	"strings"

	"siteexpense/internal/model"
	"siteexpense/pkg/apperror"

	"github.com/google/uuid"
)

// Action is an approval-tier action requested by a manager or admin.
type Action string

const (
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
)

// Transition is the outcome of a permitted approval action: the next
// expense status plus the audit row to append.
type Transition struct {
	Next    string
	Step    int
	Action  string
	Comment *string
}

// Decide evaluates the two-tier transition table for a single expense.
// Site managers act on PENDING_SITE expenses of their own site (step 1),
// hq admins on PENDING_HQ expenses anywhere (step 2). Rejection requires
// a non-empty comment after trimming; an approval comment is optional.
func Decide(actor model.Actor, siteID uuid.UUID, status string, action Action, comment string) (Transition, error) {
	trimmed := strings.TrimSpace(comment)

	switch actor.Role {
	case model.RoleSiteManager:
		if actor.SiteID == nil || *actor.SiteID != siteID {
			return Transition{}, apperror.Forbidden("You are not authorized to act on expenses for this site.")
		}
		if status != model.StatusPendingSite {
			return Transition{}, apperror.Conflict("Only expenses awaiting site-manager approval can be processed.")
		}
		if action == ActionApprove {
			return Transition{
				Next:    model.StatusPendingHQ,
				Step:    model.StepSiteManager,
				Action:  model.ApprovalActionApproved,
				Comment: optionalComment(trimmed),
			}, nil
		}
		if trimmed == "" {
			return Transition{}, apperror.Validation("A rejection reason is required.")
		}
		return Transition{
			Next:    model.StatusRejectedSite,
			Step:    model.StepSiteManager,
			Action:  model.ApprovalActionRejected,
			Comment: &trimmed,
		}, nil

	case model.RoleHQAdmin:
		if status != model.StatusPendingHQ {
			return Transition{}, apperror.Conflict("Only expenses awaiting headquarters approval can be processed.")
		}
		if action == ActionApprove {
			return Transition{
				Next:    model.StatusApproved,
				Step:    model.StepHQAdmin,
				Action:  model.ApprovalActionApproved,
				Comment: optionalComment(trimmed),
			}, nil
		}
		if trimmed == "" {
			return Transition{}, apperror.Validation("A rejection reason is required.")
		}
		return Transition{
			Next:    model.StatusRejectedHQ,
			Step:    model.StepHQAdmin,
			Action:  model.ApprovalActionRejected,
			Comment: &trimmed,
		}, nil
	}

	return Transition{}, apperror.Forbidden("Your role is not authorized to approve or reject expenses.")
}

func optionalComment(trimmed string) *string {
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
