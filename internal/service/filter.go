package service

import (
	"strings"
	"time"

	"siteexpense/internal/model"
	"siteexpense/internal/policy"
	"siteexpense/internal/repository"
	"siteexpense/pkg/apperror"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ListExpenseQuery is the raw filter input from the list and export
// endpoints. All fields are optional; values arrive as query strings.
type ListExpenseQuery struct {
	Status    []string
	SiteID    string
	DateFrom  string
	DateTo    string
	AmountMin string
	AmountMax string
	Category  string
	UserID    string
	Keyword   string
}

// buildExpenseFilter derives the mandatory role scope and layers the
// explicit filters on top. The same filter serves the list view and the
// export, so the two always agree for a given actor and query.
func buildExpenseFilter(actor model.Actor, q ListExpenseQuery) (repository.ExpenseFilter, error) {
	var filter repository.ExpenseFilter

	switch actor.Role {
	case model.RoleSubmitter:
		id := actor.ID
		filter.Scope.UserID = &id
	case model.RoleSiteManager:
		filter.Scope.SiteID = actor.SiteID
	case model.RoleHQAdmin:
		// unrestricted
	default:
		// site-locked when bound, unrestricted otherwise
		filter.Scope.SiteID = actor.SiteID
	}

	// Explicit site filter cannot widen a site-locked scope.
	if q.SiteID != "" && filter.Scope.SiteID == nil {
		siteID, err := uuid.Parse(q.SiteID)
		if err != nil {
			return filter, apperror.Validation("Invalid site filter.")
		}
		filter.SiteID = &siteID
	}

	for _, status := range q.Status {
		status = strings.TrimSpace(status)
		if status == "" {
			continue
		}
		if !model.ValidStatus(status) {
			return filter, apperror.Validation("Unknown expense status: " + status)
		}
		filter.Statuses = append(filter.Statuses, status)
	}

	if q.DateFrom != "" {
		from, err := parseDate(q.DateFrom)
		if err != nil {
			return filter, apperror.Validation("Invalid start date.")
		}
		filter.DateFrom = &from
	}
	if q.DateTo != "" {
		to, err := parseDate(q.DateTo)
		if err != nil {
			return filter, apperror.Validation("Invalid end date.")
		}
		to = endOfDay(to)
		filter.DateTo = &to
	}

	if q.AmountMin != "" {
		min, err := decimal.NewFromString(q.AmountMin)
		if err != nil {
			return filter, apperror.Validation("Invalid minimum amount.")
		}
		filter.AmountMin = &min
	}
	if q.AmountMax != "" {
		max, err := decimal.NewFromString(q.AmountMax)
		if err != nil {
			return filter, apperror.Validation("Invalid maximum amount.")
		}
		filter.AmountMax = &max
	}

	filter.Category = strings.TrimSpace(q.Category)

	// Unauthorized owner overrides are silently ignored, not rejected.
	if q.UserID != "" {
		userID, err := uuid.Parse(q.UserID)
		if err != nil {
			return filter, apperror.Validation("Invalid user filter.")
		}
		if policy.AllowUserFilterOverride(actor, userID) {
			filter.UserID = &userID
		}
	}

	filter.Keyword = strings.TrimSpace(q.Keyword)

	return filter, nil
}

// parseDate accepts a date-only value or a full RFC 3339 timestamp.
func parseDate(value string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", value); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, value)
}

// endOfDay pushes an inclusive upper bound to 23:59:59.999.
func endOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, 999_000_000, t.Location())
}
