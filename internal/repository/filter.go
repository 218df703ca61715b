package repository

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Scope is the mandatory role-derived restriction applied before any
// explicit filter. A nil field means unrestricted on that axis.
type Scope struct {
	UserID *uuid.UUID
	SiteID *uuid.UUID
}

// ExpenseFilter combines the role scope with optional explicit filters.
// All criteria compose with AND; the same filter drives both the list
// view and the export so the two always return the same row set.
type ExpenseFilter struct {
	Scope     Scope
	SiteID    *uuid.UUID
	Statuses  []string
	DateFrom  *time.Time
	DateTo    *time.Time // already normalized to end-of-day by the caller
	AmountMin *decimal.Decimal
	AmountMax *decimal.Decimal
	Category  string
	UserID    *uuid.UUID // authorized owner override; replaces Scope.UserID
	Keyword   string     // trimmed; empty means no keyword criterion
}

// apply translates the filter into gorm conditions on the expenses table.
// Relation criteria (category, keyword across user/site/items/approvals)
// use subqueries so the row set stays free of join duplicates.
func (f ExpenseFilter) apply(db *gorm.DB) *gorm.DB {
	if f.UserID != nil {
		db = db.Where("expenses.user_id = ?", *f.UserID)
	} else if f.Scope.UserID != nil {
		db = db.Where("expenses.user_id = ?", *f.Scope.UserID)
	}

	if f.SiteID != nil {
		db = db.Where("expenses.site_id = ?", *f.SiteID)
	} else if f.Scope.SiteID != nil {
		db = db.Where("expenses.site_id = ?", *f.Scope.SiteID)
	}

	if len(f.Statuses) > 0 {
		db = db.Where("expenses.status IN ?", f.Statuses)
	}

	if f.DateFrom != nil {
		db = db.Where("expenses.usage_date >= ?", *f.DateFrom)
	}
	if f.DateTo != nil {
		db = db.Where("expenses.usage_date <= ?", *f.DateTo)
	}

	if f.AmountMin != nil {
		db = db.Where("expenses.total_amount >= ?", *f.AmountMin)
	}
	if f.AmountMax != nil {
		db = db.Where("expenses.total_amount <= ?", *f.AmountMax)
	}

	if f.Category != "" {
		db = db.Where("expenses.id IN (SELECT expense_id FROM expense_items WHERE category = ?)", f.Category)
	}

	if f.Keyword != "" {
		kw := "%" + f.Keyword + "%"
		db = db.Where(`expenses.vendor ILIKE ?
			OR expenses.purpose_detail ILIKE ?
			OR expenses.user_id IN (SELECT id FROM users WHERE full_name ILIKE ? OR email ILIKE ?)
			OR expenses.site_id IN (SELECT id FROM sites WHERE name ILIKE ? OR code ILIKE ?)
			OR expenses.id IN (SELECT expense_id FROM expense_items WHERE description ILIKE ?)
			OR expenses.id IN (SELECT expense_id FROM approvals WHERE comment ILIKE ?)`,
			kw, kw, kw, kw, kw, kw, kw, kw)
	}

	return db
}
