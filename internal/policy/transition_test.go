package policy

import (
	"testing"

	"siteexpense/internal/model"
	"siteexpense/pkg/apperror"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecideSiteManager(t *testing.T) {
	siteID := uuid.New()
	manager := model.Actor{ID: uuid.New(), Role: model.RoleSiteManager, SiteID: &siteID}

	t.Run("approve advances to PENDING_HQ", func(t *testing.T) {
		tr, err := Decide(manager, siteID, model.StatusPendingSite, ActionApprove, "")
		require.NoError(t, err)
		assert.Equal(t, model.StatusPendingHQ, tr.Next)
		assert.Equal(t, model.StepSiteManager, tr.Step)
		assert.Equal(t, model.ApprovalActionApproved, tr.Action)
		assert.Nil(t, tr.Comment)
	})

	t.Run("approve keeps optional comment", func(t *testing.T) {
		tr, err := Decide(manager, siteID, model.StatusPendingSite, ActionApprove, "  looks fine  ")
		require.NoError(t, err)
		require.NotNil(t, tr.Comment)
		assert.Equal(t, "looks fine", *tr.Comment)
	})

	t.Run("reject requires a reason", func(t *testing.T) {
		_, err := Decide(manager, siteID, model.StatusPendingSite, ActionReject, "   ")
		require.Error(t, err)
		assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))
	})

	t.Run("reject moves to REJECTED_SITE", func(t *testing.T) {
		tr, err := Decide(manager, siteID, model.StatusPendingSite, ActionReject, "missing receipt")
		require.NoError(t, err)
		assert.Equal(t, model.StatusRejectedSite, tr.Next)
		assert.Equal(t, model.ApprovalActionRejected, tr.Action)
		require.NotNil(t, tr.Comment)
		assert.Equal(t, "missing receipt", *tr.Comment)
	})

	t.Run("wrong site is forbidden", func(t *testing.T) {
		_, err := Decide(manager, uuid.New(), model.StatusPendingSite, ActionApprove, "")
		require.Error(t, err)
		assert.Equal(t, apperror.KindForbidden, apperror.KindOf(err))
	})

	t.Run("unbound manager is forbidden", func(t *testing.T) {
		unbound := model.Actor{ID: uuid.New(), Role: model.RoleSiteManager}
		_, err := Decide(unbound, siteID, model.StatusPendingSite, ActionApprove, "")
		require.Error(t, err)
		assert.Equal(t, apperror.KindForbidden, apperror.KindOf(err))
	})

	t.Run("wrong status conflicts", func(t *testing.T) {
		for _, status := range []string{model.StatusDraft, model.StatusPendingHQ, model.StatusApproved, model.StatusRejectedSite} {
			_, err := Decide(manager, siteID, status, ActionApprove, "")
			require.Error(t, err, status)
			assert.Equal(t, apperror.KindConflict, apperror.KindOf(err), status)
		}
	})
}

func TestDecideHQAdmin(t *testing.T) {
	admin := model.Actor{ID: uuid.New(), Role: model.RoleHQAdmin}
	siteID := uuid.New()

	t.Run("approve finalizes", func(t *testing.T) {
		tr, err := Decide(admin, siteID, model.StatusPendingHQ, ActionApprove, "")
		require.NoError(t, err)
		assert.Equal(t, model.StatusApproved, tr.Next)
		assert.Equal(t, model.StepHQAdmin, tr.Step)
	})

	t.Run("reject moves to REJECTED_HQ", func(t *testing.T) {
		tr, err := Decide(admin, siteID, model.StatusPendingHQ, ActionReject, "over budget")
		require.NoError(t, err)
		assert.Equal(t, model.StatusRejectedHQ, tr.Next)
	})

	t.Run("reject without reason fails", func(t *testing.T) {
		_, err := Decide(admin, siteID, model.StatusPendingHQ, ActionReject, "")
		require.Error(t, err)
		assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))
	})

	t.Run("acts on any site", func(t *testing.T) {
		_, err := Decide(admin, uuid.New(), model.StatusPendingHQ, ActionApprove, "")
		assert.NoError(t, err)
	})

	t.Run("cannot touch tier-1 queue", func(t *testing.T) {
		_, err := Decide(admin, siteID, model.StatusPendingSite, ActionApprove, "")
		require.Error(t, err)
		assert.Equal(t, apperror.KindConflict, apperror.KindOf(err))
	})
}

func TestDecideOtherRoles(t *testing.T) {
	siteID := uuid.New()
	for _, role := range []string{model.RoleSubmitter, model.RoleAuditor} {
		actor := model.Actor{ID: uuid.New(), Role: role, SiteID: &siteID}
		_, err := Decide(actor, siteID, model.StatusPendingSite, ActionApprove, "")
		require.Error(t, err, role)
		assert.Equal(t, apperror.KindForbidden, apperror.KindOf(err), role)
	}
}
