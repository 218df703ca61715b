package handler

import (
	"context"
	"net/http"

	"siteexpense/internal/middleware"
	"siteexpense/internal/model"
	"siteexpense/internal/service"
	"siteexpense/pkg/response"

	"github.com/gin-gonic/gin"
)

type ExpenseHandler struct {
	expenseService    service.ExpenseService
	approvalService   service.ApprovalService
	attachmentService service.AttachmentService
}

func NewExpenseHandler(
	expenseService service.ExpenseService,
	approvalService service.ApprovalService,
	attachmentService service.AttachmentService,
) *ExpenseHandler {
	return &ExpenseHandler{
		expenseService:    expenseService,
		approvalService:   approvalService,
		attachmentService: attachmentService,
	}
}

// RegisterRoutes binds the expense endpoints to the gin RouterGroup
func (h *ExpenseHandler) RegisterRoutes(router *gin.RouterGroup) {
	expenses := router.Group("/expenses")
	{
		expenses.GET("", middleware.RequireRole(), h.ListExpenses)
		expenses.POST("", middleware.RequireRole(model.RoleSubmitter, model.RoleSiteManager, model.RoleHQAdmin), h.CreateExpense)
		expenses.GET("/meta", middleware.RequireRole(), h.GetMetadata)
		expenses.GET("/dashboard", middleware.RequireRole(), h.GetDashboard)
		expenses.GET("/pending", middleware.RequireRole(model.RoleSiteManager, model.RoleHQAdmin), h.GetPending)
		expenses.GET("/export", middleware.RequireRole(model.RoleSubmitter, model.RoleSiteManager, model.RoleHQAdmin, model.RoleAuditor), h.ExportExpenses)
		expenses.POST("/approve", middleware.RequireRole(model.RoleSiteManager, model.RoleHQAdmin), h.ApproveExpenses)
		expenses.POST("/reject", middleware.RequireRole(model.RoleSiteManager, model.RoleHQAdmin), h.RejectExpenses)
		expenses.GET("/:id", middleware.RequireRole(), h.GetExpense)
		expenses.PATCH("/:id", middleware.RequireRole(model.RoleSubmitter), h.UpdateExpense)

		expenses.POST("/:id/attachments", middleware.RequireRole(model.RoleSubmitter, model.RoleSiteManager, model.RoleHQAdmin), h.UploadAttachments)
		expenses.GET("/:id/attachments/:attachmentId", middleware.RequireRole(), h.DownloadAttachment)
		expenses.DELETE("/:id/attachments/:attachmentId", middleware.RequireRole(model.RoleSubmitter, model.RoleSiteManager, model.RoleHQAdmin), h.DeleteAttachment)
	}
}

// ListExpenses returns the actor's visible expenses with filters applied
// @Summary      List expenses
// @Description  Returns expenses visible to the caller, newest first. Supports status, site, date, amount, category, user and keyword filters.
// @Tags         expenses
// @Produce      json
// @Security     BearerAuth
// @Param        status    query     []string  false  "Status filter (repeatable)"
// @Param        keyword   query     string    false  "Keyword search"
// @Success      200       {object}  response.Response{data=[]service.ExpenseResponse}
// @Failure      400       {object}  response.Response
// @Router       /expenses [get]
func (h *ExpenseHandler) ListExpenses(c *gin.Context) {
	actor, ok := middleware.CurrentActor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Authentication required"))
		return
	}

	expenses, err := h.expenseService.List(c.Request.Context(), actor, listQueryFrom(c))
	if err != nil {
		response.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, expenses))
}

// CreateExpense files a new expense
// @Summary      Create an expense
// @Description  Files a new expense as DRAFT or PENDING_SITE for the caller.
// @Tags         expenses
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      service.CreateExpenseRequest  true  "Expense payload"
// @Success      201      {object}  response.Response{data=service.ExpenseResponse}
// @Failure      400      {object}  response.Response
// @Router       /expenses [post]
func (h *ExpenseHandler) CreateExpense(c *gin.Context) {
	actor, ok := middleware.CurrentActor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Authentication required"))
		return
	}

	var req service.CreateExpenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	expense, err := h.expenseService.Create(c.Request.Context(), actor, req)
	if err != nil {
		response.Fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, expense))
}

// GetExpense returns one expense with items, approvals and attachments
func (h *ExpenseHandler) GetExpense(c *gin.Context) {
	actor, ok := middleware.CurrentActor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Authentication required"))
		return
	}

	expense, err := h.expenseService.Get(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, expense))
}

// UpdateExpense replaces an editable expense, items included
func (h *ExpenseHandler) UpdateExpense(c *gin.Context) {
	actor, ok := middleware.CurrentActor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Authentication required"))
		return
	}

	var req service.UpdateExpenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	expense, err := h.expenseService.Update(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, expense))
}

// GetPending returns the caller's approval queue
func (h *ExpenseHandler) GetPending(c *gin.Context) {
	actor, ok := middleware.CurrentActor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Authentication required"))
		return
	}

	expenses, err := h.expenseService.Pending(c.Request.Context(), actor)
	if err != nil {
		response.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, expenses))
}

// GetDashboard returns scoped status counts and recent activity
func (h *ExpenseHandler) GetDashboard(c *gin.Context) {
	actor, ok := middleware.CurrentActor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Authentication required"))
		return
	}

	dashboard, err := h.expenseService.Dashboard(c.Request.Context(), actor)
	if err != nil {
		response.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, dashboard))
}

// GetMetadata returns form metadata scoped to the caller
func (h *ExpenseHandler) GetMetadata(c *gin.Context) {
	actor, ok := middleware.CurrentActor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Authentication required"))
		return
	}

	meta, err := h.expenseService.Metadata(c.Request.Context(), actor)
	if err != nil {
		response.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, meta))
}

// ApproveExpenses advances a batch of expenses one approval tier
// @Summary      Approve expenses
// @Description  Approves a batch of expenses atomically. One ineligible expense fails the whole batch.
// @Tags         expenses
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      service.BatchDecisionRequest  true  "Expense IDs and optional comment"
// @Success      200      {object}  response.Response{data=service.BatchDecisionResponse}
// @Failure      400      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /expenses/approve [post]
func (h *ExpenseHandler) ApproveExpenses(c *gin.Context) {
	h.decide(c, h.approvalService.Approve)
}

// RejectExpenses rejects a batch of expenses with a mandatory reason
func (h *ExpenseHandler) RejectExpenses(c *gin.Context) {
	h.decide(c, h.approvalService.Reject)
}

func (h *ExpenseHandler) decide(c *gin.Context, fn func(ctx context.Context, actor model.Actor, req service.BatchDecisionRequest) (*service.BatchDecisionResponse, error)) {
	actor, ok := middleware.CurrentActor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Authentication required"))
		return
	}

	var req service.BatchDecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	result, err := fn(c.Request.Context(), actor, req)
	if err != nil {
		response.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, result))
}

// ExportExpenses streams the filtered expense list as an xlsx workbook
func (h *ExpenseHandler) ExportExpenses(c *gin.Context) {
	actor, ok := middleware.CurrentActor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Authentication required"))
		return
	}

	result, err := h.expenseService.Export(c.Request.Context(), actor, listQueryFrom(c))
	if err != nil {
		response.Fail(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+result.Filename+`"`)
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", result.Content.Bytes())
}

// UploadAttachments stores uploaded receipt files on an expense
func (h *ExpenseHandler) UploadAttachments(c *gin.Context) {
	actor, ok := middleware.CurrentActor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Authentication required"))
		return
	}

	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid multipart payload: "+err.Error()))
		return
	}

	attachments, err := h.attachmentService.Upload(c.Request.Context(), actor, c.Param("id"), form.File["files"])
	if err != nil {
		response.Fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, attachments))
}

// DownloadAttachment streams one attachment back to the caller
func (h *ExpenseHandler) DownloadAttachment(c *gin.Context) {
	actor, ok := middleware.CurrentActor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Authentication required"))
		return
	}

	download, err := h.attachmentService.Download(c.Request.Context(), actor, c.Param("id"), c.Param("attachmentId"))
	if err != nil {
		response.Fail(c, err)
		return
	}
	defer download.Reader.Close()

	c.Header("Content-Disposition", `attachment; filename="`+download.OriginalName+`"`)
	c.DataFromReader(http.StatusOK, download.Size, download.MimeType, download.Reader, nil)
}

// DeleteAttachment removes one attachment from an expense
func (h *ExpenseHandler) DeleteAttachment(c *gin.Context) {
	actor, ok := middleware.CurrentActor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Authentication required"))
		return
	}

	if err := h.attachmentService.Delete(c.Request.Context(), actor, c.Param("id"), c.Param("attachmentId")); err != nil {
		response.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"deleted": true}))
}

func listQueryFrom(c *gin.Context) service.ListExpenseQuery {
	return service.ListExpenseQuery{
		Status:    c.QueryArray("status"),
		SiteID:    c.Query("siteId"),
		DateFrom:  c.Query("dateFrom"),
		DateTo:    c.Query("dateTo"),
		AmountMin: c.Query("amountMin"),
		AmountMax: c.Query("amountMax"),
		Category:  c.Query("category"),
		UserID:    c.Query("userId"),
		Keyword:   c.Query("keyword"),
	}
}
