package handler

import (
	"net/http"

	"siteexpense/internal/middleware"
	"siteexpense/internal/model"
	"siteexpense/internal/service"
	"siteexpense/pkg/pagination"
	"siteexpense/pkg/response"

	"github.com/gin-gonic/gin"
)

type AuditHandler struct {
	auditService service.AuditService
}

func NewAuditHandler(auditService service.AuditService) *AuditHandler {
	return &AuditHandler{auditService: auditService}
}

func (h *AuditHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/audit", middleware.RequireRole(model.RoleHQAdmin, model.RoleAuditor), h.ListAuditEntries)
}

// ListAuditEntries returns the audit trail, newest first
func (h *AuditHandler) ListAuditEntries(c *gin.Context) {
	params := pagination.Parse(c)

	page, err := h.auditService.List(c.Request.Context(), params.Page, params.Limit)
	if err != nil {
		response.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, page))
}
