package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"siteexpense/internal/model"
	"siteexpense/internal/repository"
	"siteexpense/pkg/apperror"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type SiteRequest struct {
	Code      string  `json:"code" binding:"required,max=30"`
	Name      string  `json:"name" binding:"required,max=100"`
	Region    *string `json:"region" binding:"omitempty,max=50"`
	Address   *string `json:"address" binding:"omitempty,max=255"`
	IsActive  *bool   `json:"isActive"`
	ManagerID *string `json:"managerId"`
}

type SiteResponse struct {
	ID        string   `json:"id"`
	Code      string   `json:"code"`
	Name      string   `json:"name"`
	Region    *string  `json:"region"`
	Address   *string  `json:"address"`
	IsActive  bool     `json:"isActive"`
	Manager   *UserRef `json:"manager,omitempty"`
	CreatedAt string   `json:"createdAt"`
}

type SiteService interface {
	List(ctx context.Context, activeOnly bool) ([]SiteResponse, error)
	Get(ctx context.Context, id string) (*SiteResponse, error)
	Create(ctx context.Context, actor model.Actor, req SiteRequest) (*SiteResponse, error)
	Update(ctx context.Context, actor model.Actor, id string, req SiteRequest) (*SiteResponse, error)
	Delete(ctx context.Context, actor model.Actor, id string) error
}

type siteService struct {
	siteRepo  repository.SiteRepository
	userRepo  repository.UserRepository
	auditRepo repository.AuditRepository
	txManager repository.TransactionManager
}

func NewSiteService(
	siteRepo repository.SiteRepository,
	userRepo repository.UserRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
) SiteService {
	return &siteService{
		siteRepo:  siteRepo,
		userRepo:  userRepo,
		auditRepo: auditRepo,
		txManager: txManager,
	}
}

func (s *siteService) List(ctx context.Context, activeOnly bool) ([]SiteResponse, error) {
	sites, err := s.siteRepo.List(ctx, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("failed to list sites: %w", err)
	}
	result := make([]SiteResponse, 0, len(sites))
	for i := range sites {
		result = append(result, toSiteResponse(&sites[i]))
	}
	return result, nil
}

func (s *siteService) Get(ctx context.Context, id string) (*SiteResponse, error) {
	siteID, err := uuid.Parse(id)
	if err != nil {
		return nil, apperror.Validation("Invalid site ID.")
	}
	site, err := s.siteRepo.FindByID(ctx, siteID)
	if err != nil {
		return nil, notFoundOr(err, "Site not found.")
	}
	resp := toSiteResponse(site)
	return &resp, nil
}

func (s *siteService) Create(ctx context.Context, actor model.Actor, req SiteRequest) (*SiteResponse, error) {
	managerID, err := s.resolveManager(ctx, req.ManagerID)
	if err != nil {
		return nil, err
	}

	site := model.Site{
		Code:      req.Code,
		Name:      req.Name,
		Region:    req.Region,
		Address:   req.Address,
		IsActive:  true,
		ManagerID: managerID,
	}
	if req.IsActive != nil {
		site.IsActive = *req.IsActive
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if createErr := s.siteRepo.Create(txCtx, &site); createErr != nil {
			if repository.IsUniqueViolation(createErr) {
				return apperror.Conflict("A site with code " + req.Code + " already exists.")
			}
			return fmt.Errorf("failed to create site: %w", createErr)
		}
		return s.logSiteAudit(txCtx, actor, model.ActionCreateSite, &site)
	})
	if err != nil {
		return nil, err
	}

	return s.Get(ctx, site.ID.String())
}

func (s *siteService) Update(ctx context.Context, actor model.Actor, id string, req SiteRequest) (*SiteResponse, error) {
	siteID, err := uuid.Parse(id)
	if err != nil {
		return nil, apperror.Validation("Invalid site ID.")
	}
	site, err := s.siteRepo.FindByID(ctx, siteID)
	if err != nil {
		return nil, notFoundOr(err, "Site not found.")
	}

	managerID, err := s.resolveManager(ctx, req.ManagerID)
	if err != nil {
		return nil, err
	}

	site.Code = req.Code
	site.Name = req.Name
	site.Region = req.Region
	site.Address = req.Address
	if req.IsActive != nil {
		site.IsActive = *req.IsActive
	}
	if req.ManagerID != nil {
		site.ManagerID = managerID
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if saveErr := s.siteRepo.Save(txCtx, site); saveErr != nil {
			if repository.IsUniqueViolation(saveErr) {
				return apperror.Conflict("A site with code " + req.Code + " already exists.")
			}
			return fmt.Errorf("failed to update site: %w", saveErr)
		}
		return s.logSiteAudit(txCtx, actor, model.ActionUpdateSite, site)
	})
	if err != nil {
		return nil, err
	}

	return s.Get(ctx, site.ID.String())
}

func (s *siteService) Delete(ctx context.Context, actor model.Actor, id string) error {
	siteID, err := uuid.Parse(id)
	if err != nil {
		return apperror.Validation("Invalid site ID.")
	}
	site, err := s.siteRepo.FindByID(ctx, siteID)
	if err != nil {
		return notFoundOr(err, "Site not found.")
	}

	return s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if delErr := s.siteRepo.Delete(txCtx, siteID); delErr != nil {
			if repository.IsForeignKeyViolation(delErr) {
				return apperror.Validation("This site still has users or expenses and cannot be deleted.")
			}
			return fmt.Errorf("failed to delete site: %w", delErr)
		}
		return s.logSiteAudit(txCtx, actor, model.ActionDeleteSite, site)
	})
}

// resolveManager validates an optional manager assignment. Only
// site_manager accounts can manage a site.
func (s *siteService) resolveManager(ctx context.Context, raw *string) (*uuid.UUID, error) {
	if raw == nil || *raw == "" {
		return nil, nil
	}
	managerID, err := uuid.Parse(*raw)
	if err != nil {
		return nil, apperror.Validation("Invalid manager ID.")
	}
	manager, err := s.userRepo.FindByID(ctx, managerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.Validation("The assigned manager does not exist.")
		}
		return nil, fmt.Errorf("failed to look up manager: %w", err)
	}
	if manager.Role != model.RoleSiteManager {
		return nil, apperror.Validation("The assigned manager must hold the site_manager role.")
	}
	return &managerID, nil
}

func (s *siteService) logSiteAudit(ctx context.Context, actor model.Actor, action string, site *model.Site) error {
	payload, _ := json.Marshal(map[string]interface{}{
		"code":      site.Code,
		"name":      site.Name,
		"is_active": site.IsActive,
	})
	actorID := actor.ID
	entry := &model.AuditLog{
		UserID:     &actorID,
		Action:     action,
		EntityID:   site.ID.String(),
		EntityName: site.Name,
		Details:    string(payload),
	}
	if err := s.auditRepo.Log(ctx, entry); err != nil {
		return fmt.Errorf("failed to write audit log: %w", err)
	}
	return nil
}

func toSiteResponse(site *model.Site) SiteResponse {
	return SiteResponse{
		ID:        site.ID.String(),
		Code:      site.Code,
		Name:      site.Name,
		Region:    site.Region,
		Address:   site.Address,
		IsActive:  site.IsActive,
		Manager:   toUserRef(site.Manager),
		CreatedAt: site.CreatedAt.Format(time.RFC3339),
	}
}
