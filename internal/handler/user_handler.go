package handler

import (
	"net/http"

	"siteexpense/internal/middleware"
	"siteexpense/internal/model"
	"siteexpense/internal/service"
	"siteexpense/pkg/response"

	"github.com/gin-gonic/gin"
)

type UserHandler struct {
	userService service.UserService
}

// NewUserHandler sets up the routing dependencies for User endpoints
func NewUserHandler(userService service.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

// RegisterRoutes binds the user admin endpoints to the gin RouterGroup
func (h *UserHandler) RegisterRoutes(router *gin.RouterGroup) {
	users := router.Group("/users")
	{
		users.GET("", middleware.RequireRole(model.RoleHQAdmin, model.RoleAuditor), h.ListUsers)
		users.GET("/:id", middleware.RequireRole(model.RoleHQAdmin, model.RoleAuditor), h.GetUserByID)
		users.POST("", middleware.RequireRole(model.RoleHQAdmin), h.CreateUser)
		users.PUT("/:id", middleware.RequireRole(model.RoleHQAdmin), h.UpdateUser)
		users.DELETE("/:id", middleware.RequireRole(model.RoleHQAdmin), h.DeleteUser)
	}
}

// ListUsers returns accounts filtered by site, role or status
func (h *UserHandler) ListUsers(c *gin.Context) {
	query := service.UserListQuery{
		SiteID: c.Query("siteId"),
		Role:   c.Query("role"),
		Status: c.Query("status"),
	}

	users, err := h.userService.List(c.Request.Context(), query)
	if err != nil {
		response.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, users))
}

// GetUserByID returns one account by ID
func (h *UserHandler) GetUserByID(c *gin.Context) {
	user, err := h.userService.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, user))
}

// CreateUser handles POST /users requests mapping
// @Summary      Create a new user
// @Description  Creates a new account validating role and uniqueness, hashing the password
// @Tags         users
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      service.CreateUserRequest  true  "Create User Payload"
// @Success      201      {object}  response.Response{data=service.UserResponse}
// @Failure      400      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /users [post]
func (h *UserHandler) CreateUser(c *gin.Context) {
	actor, ok := middleware.CurrentActor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Authentication required"))
		return
	}

	var req service.CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	user, err := h.userService.Create(c.Request.Context(), actor, req)
	if err != nil {
		response.Fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, user))
}

// UpdateUser updates an account's profile, role, site binding or status
func (h *UserHandler) UpdateUser(c *gin.Context) {
	actor, ok := middleware.CurrentActor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Authentication required"))
		return
	}

	var req service.UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	user, err := h.userService.Update(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, user))
}

// DeleteUser removes an account that owns no expenses
func (h *UserHandler) DeleteUser(c *gin.Context) {
	actor, ok := middleware.CurrentActor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Authentication required"))
		return
	}

	if err := h.userService.Delete(c.Request.Context(), actor, c.Param("id")); err != nil {
		response.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"deleted": true}))
}
