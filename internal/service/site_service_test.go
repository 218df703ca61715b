package service

import (
	"context"
	"testing"

	"siteexpense/internal/model"
	"siteexpense/pkg/apperror"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSiteFixture() (*fakeStore, SiteService) {
	store := newFakeStore()
	svc := NewSiteService(
		&fakeSiteRepo{store: store},
		&fakeUserRepo{store: store},
		&fakeAuditRepo{store: store},
		&fakeTxManager{store: store},
	)
	return store, svc
}

func TestCreateSite(t *testing.T) {
	store, svc := newSiteFixture()
	admin := model.Actor{ID: uuid.New(), Role: model.RoleHQAdmin}

	site, err := svc.Create(context.Background(), admin, SiteRequest{Code: "S001", Name: "강남 현장"})
	require.NoError(t, err)
	assert.Equal(t, "S001", site.Code)
	assert.True(t, site.IsActive)

	require.Len(t, store.audits, 1)
	assert.Equal(t, model.ActionCreateSite, store.audits[0].Action)
}

func TestCreateSiteManagerRoleCheck(t *testing.T) {
	store, svc := newSiteFixture()
	admin := model.Actor{ID: uuid.New(), Role: model.RoleHQAdmin}

	submitter := &model.User{ID: uuid.New(), Email: "s@a.co", FullName: "홍길동", Role: model.RoleSubmitter, Status: model.UserStatusActive}
	manager := &model.User{ID: uuid.New(), Email: "m@a.co", FullName: "박팀장", Role: model.RoleSiteManager, Status: model.UserStatusActive}
	store.users[submitter.ID] = submitter
	store.users[manager.ID] = manager

	t.Run("submitter cannot manage a site", func(t *testing.T) {
		id := submitter.ID.String()
		_, err := svc.Create(context.Background(), admin, SiteRequest{Code: "S002", Name: "부산 현장", ManagerID: &id})
		require.Error(t, err)
		assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))
	})

	t.Run("site manager can", func(t *testing.T) {
		id := manager.ID.String()
		site, err := svc.Create(context.Background(), admin, SiteRequest{Code: "S003", Name: "울산 현장", ManagerID: &id})
		require.NoError(t, err)
		require.NotNil(t, site)
	})

	t.Run("unknown manager fails", func(t *testing.T) {
		id := uuid.NewString()
		_, err := svc.Create(context.Background(), admin, SiteRequest{Code: "S004", Name: "제주 현장", ManagerID: &id})
		require.Error(t, err)
		assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))
	})
}

func TestUpdateSite(t *testing.T) {
	store, svc := newSiteFixture()
	admin := model.Actor{ID: uuid.New(), Role: model.RoleHQAdmin}

	created, err := svc.Create(context.Background(), admin, SiteRequest{Code: "S001", Name: "강남 현장"})
	require.NoError(t, err)

	inactive := false
	updated, err := svc.Update(context.Background(), admin, created.ID, SiteRequest{
		Code: "S001", Name: "강남 제2현장", IsActive: &inactive,
	})
	require.NoError(t, err)
	assert.Equal(t, "강남 제2현장", updated.Name)
	assert.False(t, updated.IsActive)

	require.Len(t, store.audits, 2)
	assert.Equal(t, model.ActionUpdateSite, store.audits[1].Action)

	_, err = svc.Update(context.Background(), admin, uuid.NewString(), SiteRequest{Code: "X", Name: "X"})
	require.Error(t, err)
	assert.Equal(t, apperror.KindNotFound, apperror.KindOf(err))
}

func TestDeleteSite(t *testing.T) {
	store, svc := newSiteFixture()
	admin := model.Actor{ID: uuid.New(), Role: model.RoleHQAdmin}

	created, err := svc.Create(context.Background(), admin, SiteRequest{Code: "S001", Name: "강남 현장"})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), admin, created.ID))
	assert.Empty(t, store.sites)
	assert.Equal(t, model.ActionDeleteSite, store.audits[len(store.audits)-1].Action)
}

func TestListSitesActiveOnly(t *testing.T) {
	store, svc := newSiteFixture()
	active := uuid.New()
	closed := uuid.New()
	store.sites[active] = &model.Site{ID: active, Code: "S001", Name: "A", IsActive: true}
	store.sites[closed] = &model.Site{ID: closed, Code: "S002", Name: "B", IsActive: false}

	all, err := svc.List(context.Background(), false)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	onlyActive, err := svc.List(context.Background(), true)
	require.NoError(t, err)
	require.Len(t, onlyActive, 1)
	assert.Equal(t, "S001", onlyActive[0].Code)
}
