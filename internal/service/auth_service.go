package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"siteexpense/internal/model"
	"siteexpense/internal/repository"
	"siteexpense/pkg/apperror"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const tokenTTL = 12 * time.Hour

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" binding:"required"`
	NewPassword     string `json:"newPassword" binding:"required,min=8"`
}

type AuthenticatedUser struct {
	ID       string   `json:"id"`
	Email    string   `json:"email"`
	FullName string   `json:"fullName"`
	Role     string   `json:"role"`
	SiteID   *string  `json:"siteId"`
	Site     *SiteRef `json:"site,omitempty"`
}

type LoginResponse struct {
	Token string            `json:"token"`
	User  AuthenticatedUser `json:"user"`
}

type AuthService interface {
	Login(ctx context.Context, req LoginRequest) (*LoginResponse, error)
	Me(ctx context.Context, actor model.Actor) (*AuthenticatedUser, error)
	ChangePassword(ctx context.Context, actor model.Actor, req ChangePasswordRequest) error
}

type authService struct {
	userRepo  repository.UserRepository
	jwtSecret []byte
}

func NewAuthService(userRepo repository.UserRepository, jwtSecret string) AuthService {
	return &authService{userRepo: userRepo, jwtSecret: []byte(jwtSecret)}
}

func (s *authService) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	user, err := s.userRepo.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.Unauthorized("Invalid email or password.")
		}
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	if user.Status != model.UserStatusActive {
		return nil, apperror.Unauthorized("This account has been deactivated.")
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		return nil, apperror.Unauthorized("Invalid email or password.")
	}

	token, err := s.signToken(user)
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}

	return &LoginResponse{Token: token, User: toAuthenticatedUser(user)}, nil
}

func (s *authService) Me(ctx context.Context, actor model.Actor) (*AuthenticatedUser, error) {
	user, err := s.userRepo.FindByID(ctx, actor.ID)
	if err != nil {
		return nil, notFoundOr(err, "User not found.")
	}
	resp := toAuthenticatedUser(user)
	return &resp, nil
}

func (s *authService) ChangePassword(ctx context.Context, actor model.Actor, req ChangePasswordRequest) error {
	user, err := s.userRepo.FindByID(ctx, actor.ID)
	if err != nil {
		return notFoundOr(err, "User not found.")
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.CurrentPassword)) != nil {
		return apperror.Validation("The current password is incorrect.")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	user.PasswordHash = string(hash)

	if err := s.userRepo.Save(ctx, user); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	return nil
}

func (s *authService) signToken(user *model.User) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":  user.ID.String(),
		"role": user.Role,
		"iat":  now.Unix(),
		"exp":  now.Add(tokenTTL).Unix(),
	}
	if user.SiteID != nil {
		claims["site_id"] = user.SiteID.String()
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
}

func toAuthenticatedUser(user *model.User) AuthenticatedUser {
	resp := AuthenticatedUser{
		ID:       user.ID.String(),
		Email:    user.Email,
		FullName: user.FullName,
		Role:     user.Role,
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
