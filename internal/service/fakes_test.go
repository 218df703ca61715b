package service

import (
	"context"
	"sort"

	"siteexpense/internal/model"
	"siteexpense/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// fakeStore is a shared in-memory backing for the repository fakes so a
// transaction rollback can restore every table at once.
type fakeStore struct {
	expenses    map[uuid.UUID]*model.Expense
	approvals   []model.Approval
	audits      []model.AuditLog
	users       map[uuid.UUID]*model.User
	sites       map[uuid.UUID]*model.Site
	attachments map[uuid.UUID]*model.Attachment
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		expenses:    make(map[uuid.UUID]*model.Expense),
		users:       make(map[uuid.UUID]*model.User),
		sites:       make(map[uuid.UUID]*model.Site),
		attachments: make(map[uuid.UUID]*model.Attachment),
	}
}

func (s *fakeStore) clone() *fakeStore {
	c := newFakeStore()
	for id, e := range s.expenses {
		copied := *e
		c.expenses[id] = &copied
	}
	for id, u := range s.users {
		copied := *u
		c.users[id] = &copied
	}
	for id, site := range s.sites {
		copied := *site
		c.sites[id] = &copied
	}
	for id, a := range s.attachments {
		copied := *a
		c.attachments[id] = &copied
	}
	c.approvals = append([]model.Approval(nil), s.approvals...)
	c.audits = append([]model.AuditLog(nil), s.audits...)
	return c
}

func (s *fakeStore) addExpense(e model.Expense) *model.Expense {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	s.expenses[e.ID] = &e
	return &e
}

// fakeTxManager snapshots the store before fn and restores it when fn
// fails, mimicking a rollback.
type fakeTxManager struct {
	store *fakeStore
}

func (t *fakeTxManager) RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	snapshot := t.store.clone()
	if err := fn(ctx); err != nil {
		*t.store = *snapshot
		return err
	}
	return nil
}

// --- expense repository fake ---

type fakeExpenseRepo struct {
	store *fakeStore
}

func (r *fakeExpenseRepo) Create(_ context.Context, expense *model.Expense) error {
	if expense.ID == uuid.Nil {
		expense.ID = uuid.New()
	}
	for i := range expense.Items {
		if expense.Items[i].ID == uuid.Nil {
			expense.Items[i].ID = uuid.New()
		}
		expense.Items[i].ExpenseID = expense.ID
	}
	copied := *expense
	r.store.expenses[expense.ID] = &copied
	return nil
}

func (r *fakeExpenseRepo) Save(_ context.Context, expense *model.Expense) error {
	stored, ok := r.store.expenses[expense.ID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	items := stored.Items
	copied := *expense
	copied.Items = items
	r.store.expenses[expense.ID] = &copied
	return nil
}

func (r *fakeExpenseRepo) ReplaceItems(_ context.Context, expenseID uuid.UUID, items []model.ExpenseItem) error {
	stored, ok := r.store.expenses[expenseID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	for i := range items {
		items[i].ID = uuid.New()
		items[i].ExpenseID = expenseID
	}
	stored.Items = items
	return nil
}

func (r *fakeExpenseRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Expense, error) {
	stored, ok := r.store.expenses[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *stored
	return &copied, nil
}

func (r *fakeExpenseRepo) FindDetail(ctx context.Context, id uuid.UUID) (*model.Expense, error) {
	expense, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	for i := range r.store.approvals {
		if r.store.approvals[i].ExpenseID == id {
			expense.Approvals = append(expense.Approvals, r.store.approvals[i])
		}
	}
	for _, a := range r.store.attachments {
		if a.ExpenseID == id {
			expense.Attachments = append(expense.Attachments, *a)
		}
	}
	return expense, nil
}

func (r *fakeExpenseRepo) FindByIDs(_ context.Context, ids []uuid.UUID, _ bool) ([]model.Expense, error) {
	var result []model.Expense
	for _, id := range ids {
		if stored, ok := r.store.expenses[id]; ok {
			result = append(result, *stored)
		}
	}
	return result, nil
}

func (r *fakeExpenseRepo) UpdateStatus(_ context.Context, id uuid.UUID, status string) error {
	stored, ok := r.store.expenses[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	stored.Status = status
	return nil
}

func (r *fakeExpenseRepo) List(_ context.Context, filter repository.ExpenseFilter) ([]model.Expense, error) {
	var result []model.Expense
	for _, e := range r.store.expenses {
		if !matchesFilter(e, filter) {
			continue
		}
		result = append(result, *e)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].UpdatedAt.After(result[j].UpdatedAt)
	})
	return result, nil
}

func (r *fakeExpenseRepo) ListByStatus(_ context.Context, status string, siteID *uuid.UUID) ([]model.Expense, error) {
	var result []model.Expense
	for _, e := range r.store.expenses {
		if e.Status != status {
			continue
		}
		if siteID != nil && e.SiteID != *siteID {
			continue
		}
		result = append(result, *e)
	}
	return result, nil
}

func (r *fakeExpenseRepo) Count(_ context.Context, scope repository.Scope) (int64, error) {
	var count int64
	for _, e := range r.store.expenses {
		if matchesScope(e, scope) {
			count++
		}
	}
	return count, nil
}

func (r *fakeExpenseRepo) CountByStatus(_ context.Context, scope repository.Scope, status string) (int64, error) {
	var count int64
	for _, e := range r.store.expenses {
		if matchesScope(e, scope) && e.Status == status {
			count++
		}
	}
	return count, nil
}

func (r *fakeExpenseRepo) Recent(_ context.Context, scope repository.Scope, limit int) ([]model.Expense, error) {
	var result []model.Expense
	for _, e := range r.store.expenses {
		if matchesScope(e, scope) {
			result = append(result, *e)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].UpdatedAt.After(result[j].UpdatedAt)
	})
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func matchesScope(e *model.Expense, scope repository.Scope) bool {
	if scope.UserID != nil && e.UserID != *scope.UserID {
		return false
	}
	if scope.SiteID != nil && e.SiteID != *scope.SiteID {
		return false
	}
	return true
}

func matchesFilter(e *model.Expense, filter repository.ExpenseFilter) bool {
	if filter.UserID != nil {
		if e.UserID != *filter.UserID {
			return false
		}
	} else if filter.Scope.UserID != nil && e.UserID != *filter.Scope.UserID {
		return false
	}
	if filter.SiteID != nil {
		if e.SiteID != *filter.SiteID {
			return false
		}
	} else if filter.Scope.SiteID != nil && e.SiteID != *filter.Scope.SiteID {
		return false
	}
	if len(filter.Statuses) > 0 {
		found := false
		for _, s := range filter.Statuses {
			if e.Status == s {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if filter.DateFrom != nil && e.UsageDate.Before(*filter.DateFrom) {
		return false
	}
	if filter.DateTo != nil && e.UsageDate.After(*filter.DateTo) {
		return false
	}
	if filter.AmountMin != nil && e.TotalAmount.LessThan(*filter.AmountMin) {
		return false
	}
	if filter.AmountMax != nil && e.TotalAmount.GreaterThan(*filter.AmountMax) {
		return false
	}
	return true
}

// --- approval repository fake ---

type fakeApprovalRepo struct {
	store *fakeStore
}

func (r *fakeApprovalRepo) Create(_ context.Context, approval *model.Approval) error {
	if approval.ID == uuid.Nil {
		approval.ID = uuid.New()
	}
	r.store.approvals = append(r.store.approvals, *approval)
	return nil
}

// --- attachment repository fake ---

type fakeAttachmentRepo struct {
	store *fakeStore
}

func (r *fakeAttachmentRepo) Create(_ context.Context, attachment *model.Attachment) error {
	if attachment.ID == uuid.Nil {
		attachment.ID = uuid.New()
	}
	copied := *attachment
	r.store.attachments[attachment.ID] = &copied
	return nil
}

func (r *fakeAttachmentRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Attachment, error) {
	stored, ok := r.store.attachments[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *stored
	return &copied, nil
}

func (r *fakeAttachmentRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(r.store.attachments, id)
	return nil
}

// --- site repository fake ---

type fakeSiteRepo struct {
	store *fakeStore
}

func (r *fakeSiteRepo) List(_ context.Context, activeOnly bool) ([]model.Site, error) {
	var result []model.Site
	for _, s := range r.store.sites {
		if activeOnly && !s.IsActive {
			continue
		}
		result = append(result, *s)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

func (r *fakeSiteRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Site, error) {
	stored, ok := r.store.sites[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *stored
	return &copied, nil
}

func (r *fakeSiteRepo) Create(_ context.Context, site *model.Site) error {
	if site.ID == uuid.Nil {
		site.ID = uuid.New()
	}
	copied := *site
	r.store.sites[site.ID] = &copied
	return nil
}

func (r *fakeSiteRepo) Save(_ context.Context, site *model.Site) error {
	copied := *site
	r.store.sites[site.ID] = &copied
	return nil
}

func (r *fakeSiteRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(r.store.sites, id)
	return nil
}

// --- user repository fake ---

type fakeUserRepo struct {
	store *fakeStore
}

func (r *fakeUserRepo) Create(_ context.Context, user *model.User) error {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	copied := *user
	r.store.users[user.ID] = &copied
	return nil
}

func (r *fakeUserRepo) Save(_ context.Context, user *model.User) error {
	copied := *user
	r.store.users[user.ID] = &copied
	return nil
}

func (r *fakeUserRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(r.store.users, id)
	return nil
}

func (r *fakeUserRepo) FindByID(_ context.Context, id uuid.UUID) (*model.User, error) {
	stored, ok := r.store.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *stored
	return &copied, nil
}

func (r *fakeUserRepo) FindByEmail(_ context.Context, email string) (*model.User, error) {
	for _, u := range r.store.users {
		if u.Email == email {
			copied := *u
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeUserRepo) List(_ context.Context, filter repository.UserListFilter) ([]model.User, error) {
	var result []model.User
	for _, u := range r.store.users {
		if filter.SiteID != nil && (u.SiteID == nil || *u.SiteID != *filter.SiteID) {
			continue
		}
		if filter.Role != "" && u.Role != filter.Role {
			continue
		}
		if filter.Status != "" && u.Status != filter.Status {
			continue
		}
		result = append(result, *u)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].FullName < result[j].FullName })
	return result, nil
}

// --- audit repository fake ---

type fakeAuditRepo struct {
	store *fakeStore
}

func (r *fakeAuditRepo) Log(_ context.Context, entry *model.AuditLog) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	r.store.audits = append(r.store.audits, *entry)
	return nil
}

func (r *fakeAuditRepo) List(_ context.Context, page, limit int) ([]model.AuditLog, int64, error) {
	total := int64(len(r.store.audits))
	start := (page - 1) * limit
	if start >= len(r.store.audits) {
		return nil, total, nil
	}
	end := start + limit
	if end > len(r.store.audits) {
		end = len(r.store.audits)
	}
	return append([]model.AuditLog(nil), r.store.audits[start:end]...), total, nil
}
