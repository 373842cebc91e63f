package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teresa-solution/tenant-provisioning-service/internal/apperr"
	"github.com/teresa-solution/tenant-provisioning-service/internal/auth"
	"github.com/teresa-solution/tenant-provisioning-service/internal/model"
	"github.com/teresa-solution/tenant-provisioning-service/internal/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeTenantAPI struct {
	created   service.CreateTenantInput
	createErr error
	tenants   map[int64]*model.Tenant
	lastAdmin int64
	updateErr error
	taken     map[string]bool
}

func newFakeTenantAPI() *fakeTenantAPI {
	return &fakeTenantAPI{
		tenants: map[int64]*model.Tenant{
			1: {ID: 1, Name: "Acme", Subdomain: "acme", SchemaName: "acme", Status: model.TenantStatusActive},
		},
		taken: map[string]bool{"acme": true},
	}
}

func (f *fakeTenantAPI) CreateTenant(ctx context.Context, in service.CreateTenantInput) (*service.ProvisioningOutcome, error) {
	f.created = in
	if f.createErr != nil {
		return nil, f.createErr
	}
	t := &model.Tenant{ID: 2, Name: in.Name, Subdomain: in.Subdomain, SchemaName: model.DeriveSchemaName(in.Subdomain), Status: model.TenantStatusActive}
	return &service.ProvisioningOutcome{Tenant: t, State: model.StateCompleted}, nil
}

func (f *fakeTenantAPI) ListTenants(ctx context.Context, adminID int64) ([]model.Tenant, error) {
	f.lastAdmin = adminID
	return []model.Tenant{*f.tenants[1]}, nil
}

func (f *fakeTenantAPI) GetTenant(ctx context.Context, id, adminID int64) (*model.Tenant, error) {
	f.lastAdmin = adminID
	t, ok := f.tenants[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return t, nil
}

func (f *fakeTenantAPI) UpdateTenant(ctx context.Context, id int64, name string, status model.TenantStatus, adminID int64) (*model.Tenant, error) {
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	t, ok := f.tenants[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	t.Name, t.Status = name, status
	return t, nil
}

func (f *fakeTenantAPI) DeleteTenant(ctx context.Context, id, adminID int64) (*model.DeletedTenant, error) {
	t, ok := f.tenants[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	delete(f.tenants, id)
	return &model.DeletedTenant{Success: true, Name: t.Name, ID: t.ID}, nil
}

func (f *fakeTenantAPI) CheckSubdomain(ctx context.Context, subdomain string) (bool, error) {
	if err := service.ValidateSubdomain(subdomain); err != nil {
		return false, err
	}
	return !f.taken[subdomain], nil
}

// withClaims simulates AuthMiddleware for handler-level tests.
func withClaims(adminID int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("claims", &auth.Claims{AdminID: adminID, Email: "root@example.com", IsSuperAdmin: true})
		c.Next()
	}
}

func newTenantsRouter(api TenantAPI) *gin.Engine {
	r := gin.New()
	h := NewTenantsHandler(api, zerolog.Nop())
	h.RegisterPublicRoutes(r.Group("/api"))
	h.RegisterRoutes(r.Group("/api", withClaims(5)))
	return r
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return body
}

const createBody = `{"name":"Beta","subdomain":"beta","adminId":99,
	"adminUser":{"firstName":"A","lastName":"B","email":"a@b.com","password":"secret1"}}`

func TestCreateTenant(t *testing.T) {
	api := newFakeTenantAPI()
	r := newTenantsRouter(api)

	w := do(r, http.MethodPost, "/api/tenants", createBody)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	body := decode(t, w)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "Tenant Beta (beta) created successfully", body["message"])
	assert.Equal(t, float64(2), body["tenantId"])

	assert.Equal(t, int64(5), api.created.AdminID, "the authenticated admin is the acting admin")
	assert.Equal(t, "secret1", api.created.AdminUser.Password)
	assert.Equal(t, "a@b.com", api.created.AdminUser.Email)
}

func TestCreateTenantErrors(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		message string
		details string
	}{
		{"invalid", apperr.Invalid("Subdomain must contain only lowercase letters, numbers, and hyphens"), http.StatusBadRequest,
			"Subdomain must contain only lowercase letters, numbers, and hyphens", ""},
		{"duplicate", apperr.ErrDuplicateTenant, http.StatusConflict, "tenant with this subdomain already exists", ""},
		{"provisioning", apperr.WithDetail(apperr.CodeProvisioningFailed, "schema provisioning failed", "application database unreachable", errors.New("dial tcp: refused")),
			http.StatusInternalServerError, "schema provisioning failed", "application database unreachable"},
		{"seed", apperr.WithDetail(apperr.CodeSeedFailed, "failed to initialize tenant data", "could not create admin user in schema beta", nil),
			http.StatusInternalServerError, "failed to initialize tenant data", "could not create admin user in schema beta"},
		{"raw", errors.New("pq: relation \"tenants\" does not exist"), http.StatusInternalServerError, "Internal server error", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := newFakeTenantAPI()
			api.createErr = tt.err
			w := do(newTenantsRouter(api), http.MethodPost, "/api/tenants", createBody)

			assert.Equal(t, tt.status, w.Code)
			body := decode(t, w)
			assert.Equal(t, tt.message, body["error"])
			if tt.details == "" {
				assert.NotContains(t, body, "details")
			} else {
				assert.Equal(t, tt.details, body["details"])
			}
			assert.NotContains(t, w.Body.String(), "dial tcp", "driver errors never reach clients")
		})
	}
}

func TestCreateTenantMalformedBody(t *testing.T) {
	w := do(newTenantsRouter(newFakeTenantAPI()), http.MethodPost, "/api/tenants", `{"name":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListAndGetTenant(t *testing.T) {
	api := newFakeTenantAPI()
	r := newTenantsRouter(api)

	w := do(r, http.MethodGet, "/api/tenants", "")
	require.Equal(t, http.StatusOK, w.Code)
	var list []model.Tenant
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Len(t, list, 1)
	assert.Equal(t, int64(5), api.lastAdmin)

	w = do(r, http.MethodGet, "/api/tenants/1", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "acme", decode(t, w)["schema_name"])

	w = do(r, http.MethodGet, "/api/tenants/42", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(r, http.MethodGet, "/api/tenants/abc", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUpdateTenant(t *testing.T) {
	api := newFakeTenantAPI()
	r := newTenantsRouter(api)

	w := do(r, http.MethodPut, "/api/tenants/1", `{"name":"Acme Corp","status":"deactivated"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, "Tenant updated successfully", body["message"])
	tenant := body["tenant"].(map[string]any)
	assert.Equal(t, "deactivated", tenant["status"])

	w = do(r, http.MethodPut, "/api/tenants/7", `{"name":"x","status":"active"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)

	api.updateErr = apperr.Invalid("Tenant name is required")
	w = do(r, http.MethodPut, "/api/tenants/1", `{"status":"active"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDeleteTenant(t *testing.T) {
	r := newTenantsRouter(newFakeTenantAPI())

	w := do(r, http.MethodDelete, "/api/tenants/1", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "Tenant deleted successfully", body["message"])
	assert.Equal(t, map[string]any{"success": true, "name": "Acme", "id": float64(1)}, body["tenant"])

	w = do(r, http.MethodDelete, "/api/tenants/1", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCheckSubdomain(t *testing.T) {
	r := newTenantsRouter(newFakeTenantAPI())

	w := do(r, http.MethodGet, "/api/tenants/check-subdomain/acme", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]any{"available": false}, decode(t, w))

	w = do(r, http.MethodGet, "/api/tenants/check-subdomain/fresh", "")
	assert.Equal(t, map[string]any{"available": true}, decode(t, w))

	w = do(r, http.MethodGet, "/api/tenants/check-subdomain/Bad_Name", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

type fakePinger struct{ err error }

func (p fakePinger) Ping(ctx context.Context) error { return p.err }

func TestHealth(t *testing.T) {
	r := gin.New()
	NewHealthHandler(map[string]Pinger{"directory": fakePinger{}, "app": fakePinger{}}, zerolog.Nop()).RegisterPublicRoutes(r)
	w := do(r, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "healthy", decode(t, w)["status"])

	r = gin.New()
	NewHealthHandler(map[string]Pinger{"directory": fakePinger{}, "app": fakePinger{err: errors.New("refused")}}, zerolog.Nop()).RegisterPublicRoutes(r)
	w = do(r, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	body := decode(t, w)
	checks := body["checks"].(map[string]any)
	assert.Equal(t, "unhealthy", checks["app"].(map[string]any)["status"])
	assert.Equal(t, "healthy", checks["directory"].(map[string]any)["status"])
}

type statsPinger struct{ fakePinger }

func (statsPinger) Health() map[string]any {
	return map[string]any{"total_conns": 4, "max_conns": 20}
}

func TestHealthIncludesPoolStats(t *testing.T) {
	r := gin.New()
	NewHealthHandler(map[string]Pinger{"directory": statsPinger{}, "app": fakePinger{}}, zerolog.Nop()).RegisterPublicRoutes(r)
	w := do(r, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, w.Code)

	checks := decode(t, w)["checks"].(map[string]any)
	stats := checks["directory"].(map[string]any)["stats"].(map[string]any)
	assert.Equal(t, float64(20), stats["max_conns"])
	assert.NotContains(t, checks["app"].(map[string]any), "stats")
}
