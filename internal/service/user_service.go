package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"siteexpense/internal/model"
	"siteexpense/internal/repository"
	"siteexpense/pkg/apperror"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

type CreateUserRequest struct {
	Email    string  `json:"email" binding:"required,email"`
	FullName string  `json:"fullName" binding:"required,max=100"`
	Phone    *string `json:"phone" binding:"omitempty,max=20"`
	Password string  `json:"password" binding:"required,min=8"`
	Role     string  `json:"role" binding:"required"`
	SiteID   *string `json:"siteId"`
}

type UpdateUserRequest struct {
	FullName string  `json:"fullName" binding:"required,max=100"`
	Phone    *string `json:"phone" binding:"omitempty,max=20"`
	Role     string  `json:"role" binding:"required"`
	SiteID   *string `json:"siteId"`
	Status   string  `json:"status" binding:"omitempty,oneof=ACTIVE INACTIVE"`
	Password *string `json:"password" binding:"omitempty,min=8"`
}

type UserResponse struct {
	ID        string   `json:"id"`
	Email     string   `json:"email"`
	FullName  string   `json:"fullName"`
	Phone     *string  `json:"phone"`
	Role      string   `json:"role"`
	SiteID    *string  `json:"siteId"`
	Site      *SiteRef `json:"site,omitempty"`
	Status    string   `json:"status"`
	CreatedAt string   `json:"createdAt"`
}

type UserListQuery struct {
	SiteID string
	Role   string
	Status string
}

type UserService interface {
	List(ctx context.Context, q UserListQuery) ([]UserResponse, error)
	Get(ctx context.Context, id string) (*UserResponse, error)
	Create(ctx context.Context, actor model.Actor, req CreateUserRequest) (*UserResponse, error)
	Update(ctx context.Context, actor model.Actor, id string, req UpdateUserRequest) (*UserResponse, error)
	Delete(ctx context.Context, actor model.Actor, id string) error
}

type userService struct {
	userRepo  repository.UserRepository
	auditRepo repository.AuditRepository
	txManager repository.TransactionManager
}

func NewUserService(
	userRepo repository.UserRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
) UserService {
	return &userService{userRepo: userRepo, auditRepo: auditRepo, txManager: txManager}
}

func (s *userService) List(ctx context.Context, q UserListQuery) ([]UserResponse, error) {
	filter := repository.UserListFilter{Role: q.Role, Status: q.Status}
	if q.SiteID != "" {
		siteID, err := uuid.Parse(q.SiteID)
		if err != nil {
			return nil, apperror.Validation("Invalid site filter.")
		}
		filter.SiteID = &siteID
	}
	if q.Role != "" && !model.ValidRole(q.Role) {
		return nil, apperror.Validation("Unknown role: " + q.Role)
	}

	users, err := s.userRepo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	result := make([]UserResponse, 0, len(users))
	for i := range users {
		result = append(result, toUserResponse(&users[i]))
	}
	return result, nil
}

func (s *userService) Get(ctx context.Context, id string) (*UserResponse, error) {
	userID, err := uuid.Parse(id)
	if err != nil {
		return nil, apperror.Validation("Invalid user ID.")
	}
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, notFoundOr(err, "User not found.")
	}
	resp := toUserResponse(user)
	return &resp, nil
}

func (s *userService) Create(ctx context.Context, actor model.Actor, req CreateUserRequest) (*UserResponse, error) {
	if !model.ValidRole(req.Role) {
		return nil, apperror.Validation("Unknown role: " + req.Role)
	}
	siteID, err := parseOptionalUUID(req.SiteID, "Invalid site.")
	if err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := model.User{
		Email:        req.Email,
		FullName:     req.FullName,
		Phone:        req.Phone,
		PasswordHash: string(hash),
		Role:         req.Role,
		SiteID:       siteID,
		Status:       model.UserStatusActive,
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if createErr := s.userRepo.Create(txCtx, &user); createErr != nil {
			if repository.IsUniqueViolation(createErr) {
				return apperror.Conflict("An account with email " + req.Email + " already exists.")
			}
			return fmt.Errorf("failed to create user: %w", createErr)
		}
		return s.logUserAudit(txCtx, actor, model.ActionCreateUser, &user)
	})
	if err != nil {
		return nil, err
	}

	return s.Get(ctx, user.ID.String())
}

func (s *userService) Update(ctx context.Context, actor model.Actor, id string, req UpdateUserRequest) (*UserResponse, error) {
	userID, err := uuid.Parse(id)
	if err != nil {
		return nil, apperror.Validation("Invalid user ID.")
	}
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, notFoundOr(err, "User not found.")
	}
	if !model.ValidRole(req.Role) {
		return nil, apperror.Validation("Unknown role: " + req.Role)
	}
	siteID, err := parseOptionalUUID(req.SiteID, "Invalid site.")
	if err != nil {
		return nil, err
	}

	user.FullName = req.FullName
	user.Phone = req.Phone
	user.Role = req.Role
	user.SiteID = siteID
	if req.Status != "" {
		user.Status = req.Status
	}
	if req.Password != nil && *req.Password != "" {
		hash, hashErr := bcrypt.GenerateFromPassword([]byte(*req.Password), bcrypt.DefaultCost)
		if hashErr != nil {
			return nil, fmt.Errorf("failed to hash password: %w", hashErr)
		}
		user.PasswordHash = string(hash)
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if saveErr := s.userRepo.Save(txCtx, user); saveErr != nil {
			return fmt.Errorf("failed to update user: %w", saveErr)
		}
		return s.logUserAudit(txCtx, actor, model.ActionUpdateUser, user)
	})
	if err != nil {
		return nil, err
	}

	return s.Get(ctx, user.ID.String())
}

func (s *userService) Delete(ctx context.Context, actor model.Actor, id string) error {
	userID, err := uuid.Parse(id)
	if err != nil {
		return apperror.Validation("Invalid user ID.")
	}
	if userID == actor.ID {
		return apperror.Validation("You cannot delete your own account.")
	}
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return notFoundOr(err, "User not found.")
	}

	return s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if delErr := s.userRepo.Delete(txCtx, userID); delErr != nil {
			if repository.IsForeignKeyViolation(delErr) {
				return apperror.Validation("This user still owns expenses. Deactivate the account instead.")
			}
			return fmt.Errorf("failed to delete user: %w", delErr)
		}
		return s.logUserAudit(txCtx, actor, model.ActionDeleteUser, user)
	})
}

func (s *userService) logUserAudit(ctx context.Context, actor model.Actor, action string, user *model.User) error {
	payload, _ := json.Marshal(map[string]interface{}{
		"email":  user.Email,
		"role":   user.Role,
		"status": user.Status,
	})
	actorID := actor.ID
	entry := &model.AuditLog{
		UserID:     &actorID,
		Action:     action,
		EntityID:   user.ID.String(),
		EntityName: user.FullName,
		Details:    string(payload),
	}
	if err := s.auditRepo.Log(ctx, entry); err != nil {
		return fmt.Errorf("failed to write audit log: %w", err)
	}
	return nil
}

func parseOptionalUUID(raw *string, message string) (*uuid.UUID, error) {
	if raw == nil || *raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(*raw)
	if err != nil {
		return nil, apperror.Validation(message)
	}
	return &id, nil
}

func toUserResponse(user *model.User) UserResponse {
	resp := UserResponse{
		ID:        user.ID.String(),
		Email:     user.Email,
		FullName:  user.FullName,
		Phone:     user.Phone,
		Role:      user.Role,
		Status:    user.Status,
		CreatedAt: user.CreatedAt.Format(time.RFC3339),
	}
	if user.SiteID != nil {
		id := user.SiteID.String()
		resp.SiteID = &id
	}
	if user.Site != nil {
		ref := toSiteRef(user.Site)
		resp.Site = &ref
	}
	return resp
}
