package handler

import (
	"net/http"

	"siteexpense/internal/middleware"
	"siteexpense/internal/model"
	"siteexpense/internal/service"
	"siteexpense/pkg/response"

	"github.com/gin-gonic/gin"
)

type SiteHandler struct {
	siteService service.SiteService
}

func NewSiteHandler(siteService service.SiteService) *SiteHandler {
	return &SiteHandler{siteService: siteService}
}

func (h *SiteHandler) RegisterRoutes(router *gin.RouterGroup) {
	sites := router.Group("/sites")
	{
		sites.GET("", middleware.RequireRole(), h.ListSites)
		sites.GET("/:id", middleware.RequireRole(), h.GetSite)
		sites.POST("", middleware.RequireRole(model.RoleHQAdmin), h.CreateSite)
		sites.PUT("/:id", middleware.RequireRole(model.RoleHQAdmin), h.UpdateSite)
		sites.DELETE("/:id", middleware.RequireRole(model.RoleHQAdmin), h.DeleteSite)
	}
}

// ListSites returns all sites; pass activeOnly=true to skip closed ones
func (h *SiteHandler) ListSites(c *gin.Context) {
	activeOnly := c.Query("activeOnly") == "true"

	sites, err := h.siteService.List(c.Request.Context(), activeOnly)
	if err != nil {
		response.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, sites))
}

// GetSite returns one site by ID
func (h *SiteHandler) GetSite(c *gin.Context) {
	site, err := h.siteService.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, site))
}

// CreateSite registers a new construction site
// @Summary      Create a site
// @Description  Registers a construction site. Site codes are unique.
// @Tags         sites
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      service.SiteRequest  true  "Site payload"
// @Success      201      {object}  response.Response{data=service.SiteResponse}
// @Failure      400      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /sites [post]
func (h *SiteHandler) CreateSite(c *gin.Context) {
	actor, ok := middleware.CurrentActor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Authentication required"))
		return
	}

	var req service.SiteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	site, err := h.siteService.Create(c.Request.Context(), actor, req)
	if err != nil {
		response.Fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, site))
}

// UpdateSite updates an existing site
func (h *SiteHandler) UpdateSite(c *gin.Context) {
	actor, ok := middleware.CurrentActor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Authentication required"))
		return
	}

	var req service.SiteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	site, err := h.siteService.Update(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, site))
}

// DeleteSite removes a site without users or expenses
func (h *SiteHandler) DeleteSite(c *gin.Context) {
	actor, ok := middleware.CurrentActor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Authentication required"))
		return
	}

	if err := h.siteService.Delete(c.Request.Context(), actor, c.Param("id")); err != nil {
		response.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"deleted": true}))
}
