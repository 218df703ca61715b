package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"siteexpense/internal/model"
	"siteexpense/internal/policy"
	"siteexpense/internal/repository"
	"siteexpense/pkg/apperror"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// --- DTOs ---

type ExpenseItemInput struct {
	Category      string  `json:"category" binding:"required"`
	PaymentMethod string  `json:"paymentMethod" binding:"required,oneof=CORPORATE_CARD PERSONAL_CARD CASH OTHER"`
	Amount        float64 `json:"amount" binding:"required,gt=0"`
	UsageDate     string  `json:"usageDate" binding:"required"`
	Vendor        string  `json:"vendor" binding:"required,max=100"`
	Description   *string `json:"description" binding:"omitempty,max=255"`
}

type CreateExpenseRequest struct {
	Status        string             `json:"status"`
	TotalAmount   float64            `json:"totalAmount" binding:"required,gt=0"`
	UsageDate     string             `json:"usageDate" binding:"required"`
	Vendor        string             `json:"vendor" binding:"required,max=100"`
	PurposeDetail string             `json:"purposeDetail" binding:"required,max=500"`
	Items         []ExpenseItemInput `json:"items" binding:"required,min=1,dive"`
	SiteID        string             `json:"siteId"`
}

// UpdateExpenseRequest carries a full replacement of the record. Items
// are deleted and recreated, never patched.
type UpdateExpenseRequest struct {
	Status        string             `json:"status"`
	TotalAmount   float64            `json:"totalAmount" binding:"required,gt=0"`
	UsageDate     string             `json:"usageDate" binding:"required"`
	Vendor        string             `json:"vendor" binding:"required,max=100"`
	PurposeDetail string             `json:"purposeDetail" binding:"required,max=500"`
	Items         []ExpenseItemInput `json:"items" binding:"required,min=1,dive"`
	SiteID        string             `json:"siteId"`
}

type SiteRef struct {
	ID   string `json:"id"`
	Code string `json:"code"`
	Name string `json:"name"`
}

type UserRef struct {
	ID       string `json:"id"`
	FullName string `json:"fullName"`
	Email    string `json:"email"`
}

type ExpenseItemResponse struct {
	ID            string  `json:"id"`
	Category      string  `json:"category"`
	PaymentMethod string  `json:"paymentMethod"`
	Amount        string  `json:"amount"`
	UsageDate     string  `json:"usageDate"`
	Vendor        string  `json:"vendor"`
	Description   *string `json:"description"`
}

type ApprovalResponse struct {
	ID       string   `json:"id"`
	Step     int      `json:"step"`
	Action   string   `json:"action"`
	Comment  *string  `json:"comment"`
	ActedAt  *string  `json:"actedAt"`
	Approver *UserRef `json:"approver,omitempty"`
}

type AttachmentResponse struct {
	ID           string `json:"id"`
	OriginalName string `json:"originalName"`
	MimeType     string `json:"mimeType"`
	Size         int64  `json:"size"`
	CreatedAt    string `json:"createdAt"`
}

type ExpenseResponse struct {
	ID            string                `json:"id"`
	Status        string                `json:"status"`
	TotalAmount   string                `json:"totalAmount"`
	UsageDate     string                `json:"usageDate"`
	Vendor        string                `json:"vendor"`
	PurposeDetail string                `json:"purposeDetail"`
	SiteID        string                `json:"siteId"`
	UserID        string                `json:"userId"`
	Site          *SiteRef              `json:"site,omitempty"`
	User          *UserRef              `json:"user,omitempty"`
	Items         []ExpenseItemResponse `json:"items"`
	Approvals     []ApprovalResponse    `json:"approvals"`
	Attachments   []AttachmentResponse  `json:"attachments,omitempty"`
	CreatedAt     string                `json:"createdAt"`
	UpdatedAt     string                `json:"updatedAt"`
	Permissions   policy.Permissions    `json:"permissions"`
}

type MetadataResponse struct {
	Categories []model.CategoryMeta `json:"categories"`
	Sites      []SiteRef            `json:"sites"`
	Users      []MetadataUser       `json:"users"`
}

type MetadataUser struct {
	ID       string  `json:"id"`
	FullName string  `json:"fullName"`
	Email    string  `json:"email"`
	SiteID   *string `json:"siteId"`
}

// --- Interface ---

type ExpenseService interface {
	Create(ctx context.Context, actor model.Actor, req CreateExpenseRequest) (*ExpenseResponse, error)
	Update(ctx context.Context, actor model.Actor, id string, req UpdateExpenseRequest) (*ExpenseResponse, error)
	Get(ctx context.Context, actor model.Actor, id string) (*ExpenseResponse, error)
	List(ctx context.Context, actor model.Actor, q ListExpenseQuery) ([]ExpenseResponse, error)
	Pending(ctx context.Context, actor model.Actor) ([]ExpenseResponse, error)
	Dashboard(ctx context.Context, actor model.Actor) (*DashboardResponse, error)
	Metadata(ctx context.Context, actor model.Actor) (*MetadataResponse, error)
	Export(ctx context.Context, actor model.Actor, q ListExpenseQuery) (*ExportResult, error)
}

type expenseService struct {
	expenseRepo repository.ExpenseRepository
	siteRepo    repository.SiteRepository
	userRepo    repository.UserRepository
	auditRepo   repository.AuditRepository
	txManager   repository.TransactionManager
}

func NewExpenseService(
	expenseRepo repository.ExpenseRepository,
	siteRepo repository.SiteRepository,
	userRepo repository.UserRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
) ExpenseService {
	return &expenseService{
		expenseRepo: expenseRepo,
		siteRepo:    siteRepo,
		userRepo:    userRepo,
		auditRepo:   auditRepo,
		txManager:   txManager,
	}
}

// --- Implementation ---

func (s *expenseService) Create(ctx context.Context, actor model.Actor, req CreateExpenseRequest) (*ExpenseResponse, error) {
	siteID, err := resolveSiteID(req.SiteID, actor)
	if err != nil {
		return nil, err
	}

	status := req.Status
	if status == "" {
		status = model.StatusPendingSite
	}
	if status != model.StatusDraft && status != model.StatusPendingSite {
		return nil, apperror.Validation("A new expense can only be filed as a draft or submitted for site approval.")
	}

	usageDate, err := parseDate(req.UsageDate)
	if err != nil {
		return nil, apperror.Validation("Invalid usage date.")
	}

	items, err := buildItems(req.Items)
	if err != nil {
		return nil, err
	}

	expense := model.Expense{
		UserID:        actor.ID,
		SiteID:        siteID,
		Status:        status,
		TotalAmount:   decimal.NewFromFloat(req.TotalAmount).Round(2),
		UsageDate:     usageDate,
		Vendor:        req.Vendor,
		PurposeDetail: req.PurposeDetail,
		Items:         items,
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if createErr := s.expenseRepo.Create(txCtx, &expense); createErr != nil {
			return fmt.Errorf("failed to create expense: %w", createErr)
		}
		return s.logAudit(txCtx, actor, model.ActionCreateExpense, expense.ID.String(), expense.Vendor, map[string]interface{}{
			"status":       expense.Status,
			"total_amount": expense.TotalAmount.StringFixed(2),
			"site_id":      expense.SiteID.String(),
			"item_count":   len(expense.Items),
		})
	})
	if err != nil {
		return nil, err
	}

	return s.loadDetail(ctx, actor, expense.ID)
}

func (s *expenseService) Update(ctx context.Context, actor model.Actor, id string, req UpdateExpenseRequest) (*ExpenseResponse, error) {
	expenseID, err := uuid.Parse(id)
	if err != nil {
		return nil, apperror.Validation("Invalid expense ID.")
	}

	expense, err := s.expenseRepo.FindByID(ctx, expenseID)
	if err != nil {
		return nil, notFoundOr(err, "Expense not found.")
	}

	if expense.UserID != actor.ID {
		return nil, apperror.Forbidden("You do not have permission to edit this expense.")
	}
	if !policy.CanEdit(actor, expense.UserID, expense.Status) {
		return nil, apperror.Conflict("This expense can no longer be edited in its current status.")
	}

	siteID := expense.SiteID
	if req.SiteID != "" {
		siteID, err = uuid.Parse(req.SiteID)
		if err != nil {
			return nil, apperror.Validation("Invalid site.")
		}
	}

	nextStatus := expense.Status
	if req.Status != "" {
		if !model.ValidStatus(req.Status) {
			return nil, apperror.Validation("Unknown expense status: " + req.Status)
		}
		nextStatus = req.Status
	}
	// Edits can never place an expense in a decided state. Approval and
	// rejection statuses are reachable only through the batch decision
	// endpoints, which record Approval rows.
	if !policy.SubmitterStatusAllowed(nextStatus) {
		return nil, apperror.Validation("This status change is not allowed.")
	}

	usageDate, err := parseDate(req.UsageDate)
	if err != nil {
		return nil, apperror.Validation("Invalid usage date.")
	}

	items, err := buildItems(req.Items)
	if err != nil {
		return nil, err
	}

	expense.SiteID = siteID
	expense.Status = nextStatus
	expense.TotalAmount = decimal.NewFromFloat(req.TotalAmount).Round(2)
	expense.UsageDate = usageDate
	expense.Vendor = req.Vendor
	expense.PurposeDetail = req.PurposeDetail

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if saveErr := s.expenseRepo.Save(txCtx, expense); saveErr != nil {
			return fmt.Errorf("failed to update expense: %w", saveErr)
		}
		if itemsErr := s.expenseRepo.ReplaceItems(txCtx, expense.ID, items); itemsErr != nil {
			return fmt.Errorf("failed to replace expense items: %w", itemsErr)
		}
		return s.logAudit(txCtx, actor, model.ActionUpdateExpense, expense.ID.String(), expense.Vendor, map[string]interface{}{
			"status":       expense.Status,
			"total_amount": expense.TotalAmount.StringFixed(2),
			"item_count":   len(items),
		})
	})
	if err != nil {
		return nil, err
	}

	return s.loadDetail(ctx, actor, expense.ID)
}

func (s *expenseService) Get(ctx context.Context, actor model.Actor, id string) (*ExpenseResponse, error) {
	expenseID, err := uuid.Parse(id)
	if err != nil {
		return nil, apperror.Validation("Invalid expense ID.")
	}
	return s.loadDetail(ctx, actor, expenseID)
}

func (s *expenseService) List(ctx context.Context, actor model.Actor, q ListExpenseQuery) ([]ExpenseResponse, error) {
	filter, err := buildExpenseFilter(actor, q)
	if err != nil {
		return nil, err
	}

	expenses, err := s.expenseRepo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list expenses: %w", err)
	}

	result := make([]ExpenseResponse, 0, len(expenses))
	for i := range expenses {
		result = append(result, toExpenseResponse(&expenses[i], actor))
	}
	return result, nil
}

// Pending returns the role-scoped approval queue: site managers see
// PENDING_SITE expenses of their own site, hq admins see PENDING_HQ
// everywhere, everyone else gets an empty list.
func (s *expenseService) Pending(ctx context.Context, actor model.Actor) ([]ExpenseResponse, error) {
	var (
		status string
		siteID *uuid.UUID
	)
	switch actor.Role {
	case model.RoleSiteManager:
		status = model.StatusPendingSite
		siteID = actor.SiteID
	case model.RoleHQAdmin:
		status = model.StatusPendingHQ
	default:
		return []ExpenseResponse{}, nil
	}

	expenses, err := s.expenseRepo.ListByStatus(ctx, status, siteID)
	if err != nil {
		return nil, fmt.Errorf("failed to load pending expenses: %w", err)
	}

	result := make([]ExpenseResponse, 0, len(expenses))
	for i := range expenses {
		result = append(result, toExpenseResponse(&expenses[i], actor))
	}
	return result, nil
}

func (s *expenseService) Metadata(ctx context.Context, actor model.Actor) (*MetadataResponse, error) {
	meta := &MetadataResponse{
		Categories: model.Categories,
		Sites:      []SiteRef{},
		Users:      []MetadataUser{},
	}

	if actor.Role == model.RoleHQAdmin {
		sites, err := s.siteRepo.List(ctx, true)
		if err != nil {
			return nil, fmt.Errorf("failed to load sites: %w", err)
		}
		for i := range sites {
			meta.Sites = append(meta.Sites, toSiteRef(&sites[i]))
		}
	} else if actor.SiteID != nil {
		site, err := s.siteRepo.FindByID(ctx, *actor.SiteID)
		if err == nil {
			meta.Sites = append(meta.Sites, toSiteRef(site))
		}
	}

	switch {
	case actor.Role == model.RoleHQAdmin || actor.Role == model.RoleAuditor:
		users, err := s.userRepo.List(ctx, repository.UserListFilter{Status: model.UserStatusActive})
		if err != nil {
			return nil, fmt.Errorf("failed to load users: %w", err)
		}
		meta.Users = toMetadataUsers(users)
	case actor.Role == model.RoleSiteManager && actor.SiteID != nil:
		users, err := s.userRepo.List(ctx, repository.UserListFilter{Status: model.UserStatusActive, SiteID: actor.SiteID})
		if err != nil {
			return nil, fmt.Errorf("failed to load users: %w", err)
		}
		meta.Users = toMetadataUsers(users)
	default:
		self, err := s.userRepo.FindByID(ctx, actor.ID)
		if err == nil {
			meta.Users = toMetadataUsers([]model.User{*self})
		}
	}

	return meta, nil
}

// --- Helpers ---

func (s *expenseService) loadDetail(ctx context.Context, actor model.Actor, id uuid.UUID) (*ExpenseResponse, error) {
	expense, err := s.expenseRepo.FindDetail(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "Expense not found.")
	}
	if !policy.CanRead(actor, expense.UserID, expense.SiteID) {
		return nil, apperror.Forbidden("You do not have access to this expense.")
	}
	resp := toExpenseResponse(expense, actor)
	return &resp, nil
}

func (s *expenseService) logAudit(ctx context.Context, actor model.Actor, action, entityID, entityName string, details map[string]interface{}) error {
	payload, _ := json.Marshal(details)
	actorID := actor.ID
	entry := &model.AuditLog{
		UserID:     &actorID,
		Action:     action,
		EntityID:   entityID,
		EntityName: entityName,
		Details:    string(payload),
	}
	if err := s.auditRepo.Log(ctx, entry); err != nil {
		return fmt.Errorf("failed to write audit log: %w", err)
	}
	return nil
}

func resolveSiteID(raw string, actor model.Actor) (uuid.UUID, error) {
	if raw != "" {
		siteID, err := uuid.Parse(raw)
		if err != nil {
			return uuid.Nil, apperror.Validation("Invalid site.")
		}
		return siteID, nil
	}
	if actor.SiteID != nil {
		return *actor.SiteID, nil
	}
	return uuid.Nil, apperror.Validation("A site is required to file an expense.")
}

func buildItems(inputs []ExpenseItemInput) ([]model.ExpenseItem, error) {
	items := make([]model.ExpenseItem, 0, len(inputs))
	for _, in := range inputs {
		if !model.ValidCategory(in.Category) {
			return nil, apperror.Validation("Unknown expense category: " + in.Category)
		}
		usageDate, err := parseDate(in.UsageDate)
		if err != nil {
			return nil, apperror.Validation("Invalid item usage date.")
		}
		var description *string
		if in.Description != nil {
			trimmed := strings.TrimSpace(*in.Description)
			if trimmed != "" {
				description = &trimmed
			}
		}
		items = append(items, model.ExpenseItem{
			Category:      in.Category,
			PaymentMethod: in.PaymentMethod,
			Amount:        decimal.NewFromFloat(in.Amount).Round(2),
			UsageDate:     usageDate,
			Vendor:        in.Vendor,
			Description:   description,
		})
	}
	return items, nil
}

func notFoundOr(err error, message string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperror.NotFound(message)
	}
	return err
}

func toSiteRef(site *model.Site) SiteRef {
	return SiteRef{ID: site.ID.String(), Code: site.Code, Name: site.Name}
}

func toUserRef(user *model.User) *UserRef {
	if user == nil {
		return nil
	}
	return &UserRef{ID: user.ID.String(), FullName: user.FullName, Email: user.Email}
}

func toMetadataUsers(users []model.User) []MetadataUser {
	result := make([]MetadataUser, 0, len(users))
	for i := range users {
		u := &users[i]
		var siteID *string
		if u.SiteID != nil {
			s := u.SiteID.String()
			siteID = &s
		}
		result = append(result, MetadataUser{
			ID:       u.ID.String(),
			FullName: u.FullName,
			Email:    u.Email,
			SiteID:   siteID,
		})
	}
	return result
}

func toExpenseResponse(e *model.Expense, actor model.Actor) ExpenseResponse {
	resp := ExpenseResponse{
		ID:            e.ID.String(),
		Status:        e.Status,
		TotalAmount:   e.TotalAmount.StringFixed(2),
		UsageDate:     e.UsageDate.Format(time.RFC3339),
		Vendor:        e.Vendor,
		PurposeDetail: e.PurposeDetail,
		SiteID:        e.SiteID.String(),
		UserID:        e.UserID.String(),
		Items:         make([]ExpenseItemResponse, 0, len(e.Items)),
		Approvals:     make([]ApprovalResponse, 0, len(e.Approvals)),
		CreatedAt:     e.CreatedAt.Format(time.RFC3339),
		UpdatedAt:     e.UpdatedAt.Format(time.RFC3339),
		Permissions:   policy.PermissionsFor(actor, e.UserID, e.Status),
	}

	if e.Site != nil {
		ref := toSiteRef(e.Site)
		resp.Site = &ref
	}
	resp.User = toUserRef(e.User)

	for i := range e.Items {
		item := &e.Items[i]
		resp.Items = append(resp.Items, ExpenseItemResponse{
			ID:            item.ID.String(),
			Category:      item.Category,
			PaymentMethod: item.PaymentMethod,
			Amount:        item.Amount.StringFixed(2),
			UsageDate:     item.UsageDate.Format(time.RFC3339),
			Vendor:        item.Vendor,
			Description:   item.Description,
		})
	}

	for i := range e.Approvals {
		approval := &e.Approvals[i]
		ar := ApprovalResponse{
			ID:       approval.ID.String(),
			Step:     approval.Step,
			Action:   approval.Action,
			Comment:  approval.Comment,
			Approver: toUserRef(approval.Approver),
		}
		if approval.ActedAt != nil {
			acted := approval.ActedAt.Format(time.RFC3339)
			ar.ActedAt = &acted
		}
		resp.Approvals = append(resp.Approvals, ar)
	}

	for i := range e.Attachments {
		resp.Attachments = append(resp.Attachments, toAttachmentResponse(&e.Attachments[i]))
	}

	return resp
}

func toAttachmentResponse(a *model.Attachment) AttachmentResponse {
	return AttachmentResponse{
		ID:           a.ID.String(),
		OriginalName: a.OriginalName,
		MimeType:     a.MimeType,
		Size:         a.Size,
		CreatedAt:    a.CreatedAt.Format(time.RFC3339),
	}
}
