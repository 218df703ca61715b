package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"siteexpense/internal/middleware"
	"siteexpense/internal/model"
	"siteexpense/internal/service"
	"siteexpense/pkg/apperror"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

// stubExpenseService lets each test plug in just the method it needs.
type stubExpenseService struct {
	create    func(actor model.Actor, req service.CreateExpenseRequest) (*service.ExpenseResponse, error)
	update    func(actor model.Actor, id string, req service.UpdateExpenseRequest) (*service.ExpenseResponse, error)
	get       func(actor model.Actor, id string) (*service.ExpenseResponse, error)
	list      func(actor model.Actor, q service.ListExpenseQuery) ([]service.ExpenseResponse, error)
	pending   func(actor model.Actor) ([]service.ExpenseResponse, error)
	dashboard func(actor model.Actor) (*service.DashboardResponse, error)
	metadata  func(actor model.Actor) (*service.MetadataResponse, error)
	export    func(actor model.Actor, q service.ListExpenseQuery) (*service.ExportResult, error)
}

func (s *stubExpenseService) Create(_ context.Context, actor model.Actor, req service.CreateExpenseRequest) (*service.ExpenseResponse, error) {
	return s.create(actor, req)
}

func (s *stubExpenseService) Update(_ context.Context, actor model.Actor, id string, req service.UpdateExpenseRequest) (*service.ExpenseResponse, error) {
	return s.update(actor, id, req)
}

func (s *stubExpenseService) Get(_ context.Context, actor model.Actor, id string) (*service.ExpenseResponse, error) {
	return s.get(actor, id)
}

func (s *stubExpenseService) List(_ context.Context, actor model.Actor, q service.ListExpenseQuery) ([]service.ExpenseResponse, error) {
	return s.list(actor, q)
}

func (s *stubExpenseService) Pending(_ context.Context, actor model.Actor) ([]service.ExpenseResponse, error) {
	return s.pending(actor)
}

func (s *stubExpenseService) Dashboard(_ context.Context, actor model.Actor) (*service.DashboardResponse, error) {
	return s.dashboard(actor)
}

func (s *stubExpenseService) Metadata(_ context.Context, actor model.Actor) (*service.MetadataResponse, error) {
	return s.metadata(actor)
}

func (s *stubExpenseService) Export(_ context.Context, actor model.Actor, q service.ListExpenseQuery) (*service.ExportResult, error) {
	return s.export(actor, q)
}

type stubApprovalService struct {
	approve func(actor model.Actor, req service.BatchDecisionRequest) (*service.BatchDecisionResponse, error)
	reject  func(actor model.Actor, req service.BatchDecisionRequest) (*service.BatchDecisionResponse, error)
}

func (s *stubApprovalService) Approve(_ context.Context, actor model.Actor, req service.BatchDecisionRequest) (*service.BatchDecisionResponse, error) {
	return s.approve(actor, req)
}

func (s *stubApprovalService) Reject(_ context.Context, actor model.Actor, req service.BatchDecisionRequest) (*service.BatchDecisionResponse, error) {
	return s.reject(actor, req)
}

func newTestRouter(expenses service.ExpenseService, approvals service.ApprovalService) *gin.Engine {
	router := gin.New()
	h := NewExpenseHandler(expenses, approvals, nil)
	h.RegisterRoutes(router.Group("/api"))
	return router
}

func bearerToken(t *testing.T, actor model.Actor) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub":  actor.ID.String(),
		"role": actor.Role,
		"exp":  time.Now().Add(time.Hour).Unix(),
	}
	if actor.SiteID != nil {
		claims["site_id"] = actor.SiteID.String()
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(middleware.GetJWTSecret())
	require.NoError(t, err)
	return "Bearer " + token
}

func doRequest(t *testing.T, router *gin.Engine, method, path string, actor *model.Actor, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if actor != nil {
		req.Header.Set("Authorization", bearerToken(t, *actor))
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestListExpensesPassesFiltersAndActor(t *testing.T) {
	siteID := uuid.New()
	actor := model.Actor{ID: uuid.New(), Role: model.RoleSiteManager, SiteID: &siteID}

	var gotActor model.Actor
	var gotQuery service.ListExpenseQuery
	stub := &stubExpenseService{
		list: func(a model.Actor, q service.ListExpenseQuery) ([]service.ExpenseResponse, error) {
			gotActor = a
			gotQuery = q
			return []service.ExpenseResponse{{ID: uuid.NewString()}}, nil
		},
	}
	router := newTestRouter(stub, &stubApprovalService{})

	w := doRequest(t, router, http.MethodGet,
		"/api/expenses?status=PENDING_SITE&status=APPROVED&keyword=cement&amountMin=100", &actor, nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, actor.ID, gotActor.ID)
	assert.Equal(t, actor.Role, gotActor.Role)
	require.NotNil(t, gotActor.SiteID)
	assert.Equal(t, siteID, *gotActor.SiteID)
	assert.Equal(t, []string{"PENDING_SITE", "APPROVED"}, gotQuery.Status)
	assert.Equal(t, "cement", gotQuery.Keyword)
	assert.Equal(t, "100", gotQuery.AmountMin)

	var body struct {
		Status string                    `json:"status"`
		Data   []service.ExpenseResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "success", body.Status)
	assert.Len(t, body.Data, 1)
}

func TestListExpensesRequiresAuth(t *testing.T) {
	router := newTestRouter(&stubExpenseService{}, &stubApprovalService{})
	w := doRequest(t, router, http.MethodGet, "/api/expenses", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCreateExpenseStatusCodes(t *testing.T) {
	actor := model.Actor{ID: uuid.New(), Role: model.RoleSubmitter}

	payload := map[string]interface{}{
		"totalAmount":   10000,
		"usageDate":     "2026-04-10",
		"vendor":        "v",
		"purposeDetail": "p",
		"items": []map[string]interface{}{
			{"category": "CAT001", "paymentMethod": "CASH", "amount": 10000, "usageDate": "2026-04-10", "vendor": "v"},
		},
	}

	t.Run("created", func(t *testing.T) {
		stub := &stubExpenseService{
			create: func(model.Actor, service.CreateExpenseRequest) (*service.ExpenseResponse, error) {
				return &service.ExpenseResponse{ID: uuid.NewString(), Status: model.StatusPendingSite}, nil
			},
		}
		router := newTestRouter(stub, &stubApprovalService{})
		w := doRequest(t, router, http.MethodPost, "/api/expenses", &actor, payload)
		assert.Equal(t, http.StatusCreated, w.Code)
	})

	t.Run("binding failure is a 400", func(t *testing.T) {
		router := newTestRouter(&stubExpenseService{}, &stubApprovalService{})
		w := doRequest(t, router, http.MethodPost, "/api/expenses", &actor, map[string]interface{}{"vendor": "v"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("service validation maps to 400", func(t *testing.T) {
		stub := &stubExpenseService{
			create: func(model.Actor, service.CreateExpenseRequest) (*service.ExpenseResponse, error) {
				return nil, apperror.Validation("Unknown expense category: CAT042")
			},
		}
		router := newTestRouter(stub, &stubApprovalService{})
		w := doRequest(t, router, http.MethodPost, "/api/expenses", &actor, payload)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "CAT042")
	})

	t.Run("auditor role is rejected by the route gate", func(t *testing.T) {
		auditor := model.Actor{ID: uuid.New(), Role: model.RoleAuditor}
		router := newTestRouter(&stubExpenseService{}, &stubApprovalService{})
		w := doRequest(t, router, http.MethodPost, "/api/expenses", &auditor, payload)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})
}

func TestGetExpenseErrorMapping(t *testing.T) {
	actor := model.Actor{ID: uuid.New(), Role: model.RoleSubmitter}

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not found", apperror.NotFound("Expense not found."), http.StatusNotFound},
		{"forbidden", apperror.Forbidden("You do not have access to this expense."), http.StatusForbidden},
		{"conflict", apperror.Conflict("no"), http.StatusConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := &stubExpenseService{
				get: func(model.Actor, string) (*service.ExpenseResponse, error) { return nil, tt.err },
			}
			router := newTestRouter(stub, &stubApprovalService{})
			w := doRequest(t, router, http.MethodGet, "/api/expenses/"+uuid.NewString(), &actor, nil)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestApproveRouteRoleGate(t *testing.T) {
	siteID := uuid.New()
	payload := map[string]interface{}{"expenseIds": []string{uuid.NewString()}}

	t.Run("submitter cannot reach the endpoint", func(t *testing.T) {
		submitter := model.Actor{ID: uuid.New(), Role: model.RoleSubmitter}
		router := newTestRouter(&stubExpenseService{}, &stubApprovalService{})
		w := doRequest(t, router, http.MethodPost, "/api/expenses/approve", &submitter, payload)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("site manager goes through", func(t *testing.T) {
		manager := model.Actor{ID: uuid.New(), Role: model.RoleSiteManager, SiteID: &siteID}
		stub := &stubApprovalService{
			approve: func(actor model.Actor, req service.BatchDecisionRequest) (*service.BatchDecisionResponse, error) {
				return &service.BatchDecisionResponse{Count: len(req.ExpenseIDs)}, nil
			},
		}
		router := newTestRouter(&stubExpenseService{}, stub)
		w := doRequest(t, router, http.MethodPost, "/api/expenses/approve", &manager, payload)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("batch conflict surfaces as 409", func(t *testing.T) {
		manager := model.Actor{ID: uuid.New(), Role: model.RoleSiteManager, SiteID: &siteID}
		stub := &stubApprovalService{
			reject: func(model.Actor, service.BatchDecisionRequest) (*service.BatchDecisionResponse, error) {
				return nil, apperror.Conflict("Some expenses no longer exist: x")
			},
		}
		router := newTestRouter(&stubExpenseService{}, stub)
		payload := map[string]interface{}{"expenseIds": []string{uuid.NewString()}, "comment": "r"}
		w := doRequest(t, router, http.MethodPost, "/api/expenses/reject", &manager, payload)
		assert.Equal(t, http.StatusConflict, w.Code)
	})
}

func TestPendingRouteRoleGate(t *testing.T) {
	t.Run("submitter is rejected", func(t *testing.T) {
		submitter := model.Actor{ID: uuid.New(), Role: model.RoleSubmitter}
		router := newTestRouter(&stubExpenseService{}, &stubApprovalService{})
		w := doRequest(t, router, http.MethodGet, "/api/expenses/pending", &submitter, nil)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("hq admin gets the queue", func(t *testing.T) {
		admin := model.Actor{ID: uuid.New(), Role: model.RoleHQAdmin}
		stub := &stubExpenseService{
			pending: func(model.Actor) ([]service.ExpenseResponse, error) {
				return []service.ExpenseResponse{}, nil
			},
		}
		router := newTestRouter(stub, &stubApprovalService{})
		w := doRequest(t, router, http.MethodGet, "/api/expenses/pending", &admin, nil)
		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestUpdateRouteIsSubmitterOnly(t *testing.T) {
	siteID := uuid.New()
	router := newTestRouter(&stubExpenseService{}, &stubApprovalService{})
	payload := map[string]interface{}{
		"totalAmount":   10000,
		"usageDate":     "2026-04-10",
		"vendor":        "v",
		"purposeDetail": "p",
		"status":        "APPROVED",
		"items": []map[string]interface{}{
			{"category": "CAT001", "paymentMethod": "CASH", "amount": 10000, "usageDate": "2026-04-10", "vendor": "v"},
		},
	}

	for _, role := range []string{model.RoleSiteManager, model.RoleHQAdmin, model.RoleAuditor} {
		t.Run(role, func(t *testing.T) {
			actor := model.Actor{ID: uuid.New(), Role: role, SiteID: &siteID}
			w := doRequest(t, router, http.MethodPatch, "/api/expenses/"+uuid.NewString(), &actor, payload)
			assert.Equal(t, http.StatusForbidden, w.Code)
		})
	}
}

func TestExportRouteAdmitsSubmitters(t *testing.T) {
	actor := model.Actor{ID: uuid.New(), Role: model.RoleSubmitter}
	stub := &stubExpenseService{
		export: func(model.Actor, service.ListExpenseQuery) (*service.ExportResult, error) {
			return &service.ExportResult{Filename: "expenses_20260410T090000.xlsx", Content: bytes.NewBuffer([]byte("xlsx"))}, nil
		},
	}
	router := newTestRouter(stub, &stubApprovalService{})

	w := doRequest(t, router, http.MethodGet, "/api/expenses/export", &actor, nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "expenses_20260410T090000.xlsx")
}

func TestInvalidTokenRejected(t *testing.T) {
	router := newTestRouter(&stubExpenseService{}, &stubApprovalService{})

	req := httptest.NewRequest(http.MethodGet, "/api/expenses", nil)
	req.Header.Set("Authorization", "Bearer not.a.token")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
