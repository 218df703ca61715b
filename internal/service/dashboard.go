package service

import (
	"context"
	"fmt"
	"math"

	"siteexpense/internal/model"
	"siteexpense/internal/repository"
)

type DashboardMetrics struct {
	ApprovalRate int   `json:"approvalRate"`
	PendingSite  int64 `json:"pendingSite"`
	PendingHq    int64 `json:"pendingHq"`
	Approved     int64 `json:"approved"`
}

type DashboardResponse struct {
	Metrics DashboardMetrics  `json:"metrics"`
	Recent  []ExpenseResponse `json:"recent"`
}

const recentLimit = 10

// Dashboard aggregates per-tier pending counts, the approved count and
// the approval rate over the actor's visibility scope, plus the most
// recent expenses.
func (s *expenseService) Dashboard(ctx context.Context, actor model.Actor) (*DashboardResponse, error) {
	scope := dashboardScope(actor)

	total, err := s.expenseRepo.Count(ctx, scope)
	if err != nil {
		return nil, fmt.Errorf("failed to count expenses: %w", err)
	}

	counts := make(map[string]int64, 3)
	for _, status := range []string{
		model.StatusPendingSite, model.StatusPendingHQ, model.StatusApproved,
	} {
		n, countErr := s.expenseRepo.CountByStatus(ctx, scope, status)
		if countErr != nil {
			return nil, fmt.Errorf("failed to count %s expenses: %w", status, countErr)
		}
		counts[status] = n
	}

	recent, err := s.expenseRepo.Recent(ctx, scope, recentLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to load recent expenses: %w", err)
	}

	resp := &DashboardResponse{
		Metrics: DashboardMetrics{
			ApprovalRate: ApprovalRate(counts[model.StatusApproved], total),
			PendingSite:  counts[model.StatusPendingSite],
			PendingHq:    counts[model.StatusPendingHQ],
			Approved:     counts[model.StatusApproved],
		},
		Recent: make([]ExpenseResponse, 0, len(recent)),
	}

	for i := range recent {
		resp.Recent = append(resp.Recent, toExpenseResponse(&recent[i], actor))
	}
	return resp, nil
}

// ApprovalRate is the whole-percent share of approved expenses, rounded
// half away from zero. Zero when nothing has been filed yet.
func ApprovalRate(approved, total int64) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(100 * float64(approved) / float64(total)))
}

// dashboardScope narrows the counts to the submitter's own expenses or
// the site manager's site. Admins and auditors see the whole company on
// the dashboard even when the list view scopes them.
func dashboardScope(actor model.Actor) repository.Scope {
	var scope repository.Scope
	switch actor.Role {
	case model.RoleSubmitter:
		id := actor.ID
		scope.UserID = &id
	case model.RoleSiteManager:
		scope.SiteID = actor.SiteID
	}
	return scope
}
