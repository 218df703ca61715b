package repository

import (
	"context"

	"siteexpense/internal/model"

	"gorm.io/gorm"
)

// ApprovalRepository appends decision audit rows. Approvals are never
// updated or deleted; history from earlier cycles is preserved.
type ApprovalRepository interface {
	Create(ctx context.Context, approval *model.Approval) error
}

type approvalRepository struct {
	db *gorm.DB
}

func NewApprovalRepository(db *gorm.DB) ApprovalRepository {
	return &approvalRepository{db: db}
}

func (r *approvalRepository) Create(ctx context.Context, approval *model.Approval) error {
	return GetDB(ctx, r.db).Create(approval).Error
}
