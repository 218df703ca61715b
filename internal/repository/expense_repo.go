package repository

import (
	"context"

	"siteexpense/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ExpenseRepository interface {
	Create(ctx context.Context, expense *model.Expense) error
	Save(ctx context.Context, expense *model.Expense) error
	ReplaceItems(ctx context.Context, expenseID uuid.UUID, items []model.ExpenseItem) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Expense, error)
	FindDetail(ctx context.Context, id uuid.UUID) (*model.Expense, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID, forUpdate bool) ([]model.Expense, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
	List(ctx context.Context, filter ExpenseFilter) ([]model.Expense, error)
	ListByStatus(ctx context.Context, status string, siteID *uuid.UUID) ([]model.Expense, error)
	Count(ctx context.Context, scope Scope) (int64, error)
	CountByStatus(ctx context.Context, scope Scope, status string) (int64, error)
	Recent(ctx context.Context, scope Scope, limit int) ([]model.Expense, error)
}

type expenseRepository struct {
	db *gorm.DB
}

func NewExpenseRepository(db *gorm.DB) ExpenseRepository {
	return &expenseRepository{db: db}
}

func (r *expenseRepository) Create(ctx context.Context, expense *model.Expense) error {
	return GetDB(ctx, r.db).Create(expense).Error
}

func (r *expenseRepository) Save(ctx context.Context, expense *model.Expense) error {
	return GetDB(ctx, r.db).Omit("Items", "Approvals", "Attachments").Save(expense).Error
}

// ReplaceItems deletes and recreates the item set. Item IDs do not
// survive an update.
func (r *expenseRepository) ReplaceItems(ctx context.Context, expenseID uuid.UUID, items []model.ExpenseItem) error {
	db := GetDB(ctx, r.db)
	if err := db.Where("expense_id = ?", expenseID).Delete(&model.ExpenseItem{}).Error; err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}
	for i := range items {
		items[i].ExpenseID = expenseID
	}
	return db.Create(&items).Error
}

func (r *expenseRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Expense, error) {
	var expense model.Expense
	if err := GetDB(ctx, r.db).First(&expense, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &expense, nil
}

// FindDetail loads the full relation graph: items by usage date,
// approvals by decision time, attachments by creation time.
func (r *expenseRepository) FindDetail(ctx context.Context, id uuid.UUID) (*model.Expense, error) {
	var expense model.Expense
	err := GetDB(ctx, r.db).
		Preload("Site").
		Preload("User").
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("usage_date ASC")
		}).
		Preload("Approvals", func(db *gorm.DB) *gorm.DB {
			return db.Order("acted_at ASC")
		}).
		Preload("Approvals.Approver").
		Preload("Attachments", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC")
		}).
		First(&expense, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &expense, nil
}

// FindByIDs returns the expenses matching ids. With forUpdate the rows
// are locked for the remainder of the transaction, so two concurrent
// batches cannot both advance an expense past the same gate.
func (r *expenseRepository) FindByIDs(ctx context.Context, ids []uuid.UUID, forUpdate bool) ([]model.Expense, error) {
	db := GetDB(ctx, r.db)
	if forUpdate {
		db = db.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var expenses []model.Expense
	if err := db.Where("id IN ?", ids).Find(&expenses).Error; err != nil {
		return nil, err
	}
	return expenses, nil
}

func (r *expenseRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	return GetDB(ctx, r.db).Model(&model.Expense{}).Where("id = ?", id).Update("status", status).Error
}

func (r *expenseRepository) List(ctx context.Context, filter ExpenseFilter) ([]model.Expense, error) {
	var expenses []model.Expense
	err := filter.apply(GetDB(ctx, r.db)).
		Preload("Site").
		Preload("User").
		Preload("Items").
		Preload("Approvals").
		Order("expenses.updated_at DESC").
		Find(&expenses).Error
	if err != nil {
		return nil, err
	}
	return expenses, nil
}

// ListByStatus feeds the pending-approval queue.
func (r *expenseRepository) ListByStatus(ctx context.Context, status string, siteID *uuid.UUID) ([]model.Expense, error) {
	db := GetDB(ctx, r.db).Where("status = ?", status)
	if siteID != nil {
		db = db.Where("site_id = ?", *siteID)
	}
	var expenses []model.Expense
	err := db.
		Preload("User").
		Preload("Site").
		Preload("Items").
		Preload("Approvals").
		Order("updated_at DESC").
		Find(&expenses).Error
	if err != nil {
		return nil, err
	}
	return expenses, nil
}

func (r *expenseRepository) Count(ctx context.Context, scope Scope) (int64, error) {
	return r.count(ctx, scope, "")
}

func (r *expenseRepository) CountByStatus(ctx context.Context, scope Scope, status string) (int64, error) {
	return r.count(ctx, scope, status)
}

func (r *expenseRepository) count(ctx context.Context, scope Scope, status string) (int64, error) {
	db := GetDB(ctx, r.db).Model(&model.Expense{})
	if scope.UserID != nil {
		db = db.Where("user_id = ?", *scope.UserID)
	}
	if scope.SiteID != nil {
		db = db.Where("site_id = ?", *scope.SiteID)
	}
	if status != "" {
		db = db.Where("status = ?", status)
	}
	var total int64
	if err := db.Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

// Recent returns the most-recently-updated expenses in scope with the
// relation data a dashboard summary row needs.
func (r *expenseRepository) Recent(ctx context.Context, scope Scope, limit int) ([]model.Expense, error) {
	db := GetDB(ctx, r.db)
	if scope.UserID != nil {
		db = db.Where("user_id = ?", *scope.UserID)
	}
	if scope.SiteID != nil {
		db = db.Where("site_id = ?", *scope.SiteID)
	}
	var expenses []model.Expense
	err := db.
		Preload("Site").
		Preload("User").
		Preload("Items").
		Preload("Approvals").
		Order("updated_at DESC").
		Limit(limit).
		Find(&expenses).Error
	if err != nil {
		return nil, err
	}
	return expenses, nil
}
