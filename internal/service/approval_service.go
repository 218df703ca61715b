package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"siteexpense/internal/model"
	"siteexpense/internal/policy"
	"siteexpense/internal/repository"
	"siteexpense/internal/websocket"
	"siteexpense/pkg/apperror"

	"github.com/google/uuid"
)

type BatchDecisionRequest struct {
	ExpenseIDs []string `json:"expenseIds" binding:"required,min=1"`
	Comment    string   `json:"comment"`
}

type BatchDecisionItem struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type BatchDecisionResponse struct {
	Count int                 `json:"count"`
	Items []BatchDecisionItem `json:"items"`
}

type ApprovalService interface {
	Approve(ctx context.Context, actor model.Actor, req BatchDecisionRequest) (*BatchDecisionResponse, error)
	Reject(ctx context.Context, actor model.Actor, req BatchDecisionRequest) (*BatchDecisionResponse, error)
}

type approvalService struct {
	expenseRepo  repository.ExpenseRepository
	approvalRepo repository.ApprovalRepository
	auditRepo    repository.AuditRepository
	txManager    repository.TransactionManager
	hub          *websocket.Hub
}

func NewApprovalService(
	expenseRepo repository.ExpenseRepository,
	approvalRepo repository.ApprovalRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
	hub *websocket.Hub,
) ApprovalService {
	return &approvalService{
		expenseRepo:  expenseRepo,
		approvalRepo: approvalRepo,
		auditRepo:    auditRepo,
		txManager:    txManager,
		hub:          hub,
	}
}

func (s *approvalService) Approve(ctx context.Context, actor model.Actor, req BatchDecisionRequest) (*BatchDecisionResponse, error) {
	return s.decide(ctx, actor, req, policy.ActionApprove)
}

func (s *approvalService) Reject(ctx context.Context, actor model.Actor, req BatchDecisionRequest) (*BatchDecisionResponse, error) {
	return s.decide(ctx, actor, req, policy.ActionReject)
}

// decide runs one batch decision. The batch is all-or-nothing: every
// expense is locked and re-evaluated against the transition table
// inside a single transaction, and one ineligible expense rolls back
// the whole batch.
func (s *approvalService) decide(ctx context.Context, actor model.Actor, req BatchDecisionRequest, action policy.Action) (*BatchDecisionResponse, error) {
	ids, err := parseExpenseIDs(req.ExpenseIDs)
	if err != nil {
		return nil, err
	}

	result := &BatchDecisionResponse{Items: make([]BatchDecisionItem, 0, len(ids))}
	var event *websocket.ExpenseEvent

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		expenses, findErr := s.expenseRepo.FindByIDs(txCtx, ids, true)
		if findErr != nil {
			return fmt.Errorf("failed to load expenses: %w", findErr)
		}
		if missing := missingIDs(ids, expenses); len(missing) > 0 {
			return apperror.Conflict("Some expenses no longer exist: " + strings.Join(missing, ", "))
		}

		now := time.Now()
		decided := make([]uuid.UUID, 0, len(expenses))
		var lastStatus string

		for i := range expenses {
			expense := &expenses[i]
			transition, decideErr := policy.Decide(actor, expense.SiteID, expense.Status, action, req.Comment)
			if decideErr != nil {
				return decideErr
			}

			if updateErr := s.expenseRepo.UpdateStatus(txCtx, expense.ID, transition.Next); updateErr != nil {
				return fmt.Errorf("failed to update expense status: %w", updateErr)
			}

			actedAt := now
			approval := &model.Approval{
				ExpenseID:  expense.ID,
				Step:       transition.Step,
				ApproverID: actor.ID,
				Action:     transition.Action,
				Comment:    transition.Comment,
				ActedAt:    &actedAt,
			}
			if createErr := s.approvalRepo.Create(txCtx, approval); createErr != nil {
				return fmt.Errorf("failed to record approval: %w", createErr)
			}

			decided = append(decided, expense.ID)
			lastStatus = transition.Next
			result.Items = append(result.Items, BatchDecisionItem{ID: expense.ID.String(), Status: transition.Next})
		}
		result.Count = len(result.Items)

		auditAction := model.ActionApproveExpenses
		eventType := "expense.approved"
		if action == policy.ActionReject {
			auditAction = model.ActionRejectExpenses
			eventType = "expense.rejected"
		}
		if auditErr := s.logBatchAudit(txCtx, actor, auditAction, decided, req.Comment); auditErr != nil {
			return auditErr
		}

		event = &websocket.ExpenseEvent{Type: eventType, ExpenseIDs: decided, Status: lastStatus}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Broadcast only after the transaction has committed.
	if s.hub != nil && event != nil {
		s.hub.Publish(*event)
	}
	return result, nil
}

func (s *approvalService) logBatchAudit(ctx context.Context, actor model.Actor, action string, ids []uuid.UUID, comment string) error {
	idStrings := make([]string, 0, len(ids))
	for _, id := range ids {
		idStrings = append(idStrings, id.String())
	}
	details := map[string]interface{}{
		"expense_ids": idStrings,
		"count":       len(idStrings),
	}
	if trimmed := strings.TrimSpace(comment); trimmed != "" {
		details["comment"] = trimmed
	}
	payload, _ := json.Marshal(details)
	actorID := actor.ID
	entry := &model.AuditLog{
		UserID:   &actorID,
		Action:   action,
		EntityID: strings.Join(idStrings, ","),
		Details:  string(payload),
	}
	if err := s.auditRepo.Log(ctx, entry); err != nil {
		return fmt.Errorf("failed to write audit log: %w", err)
	}
	return nil
}

// parseExpenseIDs validates and de-duplicates the incoming ID list
// while preserving order.
func parseExpenseIDs(raw []string) ([]uuid.UUID, error) {
	seen := make(map[uuid.UUID]bool, len(raw))
	ids := make([]uuid.UUID, 0, len(raw))
	for _, value := range raw {
		id, err := uuid.Parse(strings.TrimSpace(value))
		if err != nil {
			return nil, apperror.Validation("Invalid expense ID: " + value)
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return nil, apperror.Validation("At least one expense ID is required.")
	}
	return ids, nil
}

func missingIDs(requested []uuid.UUID, found []model.Expense) []string {
	present := make(map[uuid.UUID]bool, len(found))
	for i := range found {
		present[found[i].ID] = true
	}
	var missing []string
	for _, id := range requested {
		if !present[id] {
			missing = append(missing, id.String())
		}
	}
	return missing
}
