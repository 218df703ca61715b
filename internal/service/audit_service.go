package service

import (
	"context"
	"fmt"
	"time"

	"siteexpense/internal/model"
	"siteexpense/internal/repository"
)

type AuditEntryResponse struct {
	ID         string   `json:"id"`
	Actor      *UserRef `json:"actor,omitempty"`
	Action     string   `json:"action"`
	EntityID   string   `json:"entityId"`
	EntityName string   `json:"entityName,omitempty"`
	Details    string   `json:"details"`
	CreatedAt  string   `json:"createdAt"`
}

type AuditPage struct {
	Entries []AuditEntryResponse `json:"entries"`
	Total   int64                `json:"total"`
	Page    int                  `json:"page"`
	Limit   int                  `json:"limit"`
}

type AuditService interface {
	List(ctx context.Context, page, limit int) (*AuditPage, error)
}

type auditService struct {
	auditRepo repository.AuditRepository
}

func NewAuditService(auditRepo repository.AuditRepository) AuditService {
	return &auditService{auditRepo: auditRepo}
}

func (s *auditService) List(ctx context.Context, page, limit int) (*AuditPage, error) {
	entries, total, err := s.auditRepo.List(ctx, page, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}

	result := &AuditPage{
		Entries: make([]AuditEntryResponse, 0, len(entries)),
		Total:   total,
		Page:    page,
		Limit:   limit,
	}
	for i := range entries {
		result.Entries = append(result.Entries, toAuditEntry(&entries[i]))
	}
	return result, nil
}

func toAuditEntry(entry *model.AuditLog) AuditEntryResponse {
	return AuditEntryResponse{
		ID:         entry.ID.String(),
		Actor:      toUserRef(entry.User),
		Action:     entry.Action,
		EntityID:   entry.EntityID,
		EntityName: entry.EntityName,
		Details:    entry.Details,
		CreatedAt:  entry.CreatedAt.Format(time.RFC3339),
	}
}
