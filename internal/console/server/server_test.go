package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xela07ax/nft-agents-console/internal/console/handler"
	"github.com/xela07ax/nft-agents-console/internal/domain"
	"github.com/xela07ax/nft-agents-console/internal/infra/auth"
	"github.com/xela07ax/nft-agents-console/internal/session"
	"go.uber.org/zap"
)

// guardFunc: сессия на функции, токен запроса не учитывается
type guardFunc func(route, permission string) auth.Decision

func (g guardFunc) Authorize(_, route, permission string) auth.Decision { return g(route, permission) }

type staticDashboard struct{}

func (staticDashboard) Dashboard() domain.Dashboard {
	return domain.Dashboard{Agents: domain.AgentStats{Total: 6}}
}

func newServer(t *testing.T, g auth.Guardian) *ConsoleServer {
	t.Helper()
	log := zap.NewNop()
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewCounter(prometheus.CounterOpts{Name: "console_test_total", Help: "test"}))

	return NewConsoleServer(log, g, reg, Handlers{
		Auth:      handler.NewAuthHandler(nil, log, nil),
		Agents:    handler.NewAgentHandler(nil, log),
		Catalog:   handler.NewCatalogHandler(nil, log),
		Runs:      handler.NewRunHandler(nil, log),
		Admin:     handler.NewAdminHandler(nil, log),
		Dashboard: handler.NewDashboardHandler(staticDashboard{}),
		Audit:     handler.NewAuditHandler(nil, log),
	})
}

func do(s http.Handler, method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestPublicRoutes(t *testing.T) {
	s := newServer(t, guardFunc(func(string, string) auth.Decision { return auth.RedirectLogin }))

	assert.Equal(t, http.StatusOK, do(s, http.MethodGet, "/health").Code)

	rec := do(s, http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "console_test_total")
}

func TestProtectedRoutesRedirectToLogin(t *testing.T) {
	s := newServer(t, guardFunc(func(string, string) auth.Decision { return auth.RedirectLogin }))

	for _, path := range []string{"/api/v1/dashboard", "/api/v1/agents/", "/api/v1/runs/", "/api/v1/auth/me"} {
		rec := do(s, http.MethodGet, path)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)

		var body map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "/login", body["redirect"])
	}
}

func TestAdminRoutesNeedPermission(t *testing.T) {
	var asked []string
	s := newServer(t, guardFunc(func(_ string, permission string) auth.Decision {
		asked = append(asked, permission)
		if permission == "" {
			return auth.Allow
		}
		return auth.RedirectUnauthorized
	}))

	rec := do(s, http.MethodGet, "/api/v1/users/")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "/unauthorized"))
	assert.Contains(t, asked, domain.PermissionManageUsers)

	rec = do(s, http.MethodGet, "/api/v1/settings/models")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, asked, domain.PermissionManageSettings)
}

func TestAuthenticatedDashboard(t *testing.T) {
	s := newServer(t, guardFunc(func(string, string) auth.Decision { return auth.Allow }))

	rec := do(s, http.MethodGet, "/api/v1/dashboard")
	require.Equal(t, http.StatusOK, rec.Code)
	var d domain.Dashboard
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &d))
	assert.Equal(t, 6, d.Agents.Total)
	assert.NotEmpty(t, rec.Header().Get("X-Trace-ID"))
}

func TestSessionRequiresRequestCredential(t *testing.T) {
	store := session.NewStore(session.NewMemoryBackend(), nil, nil, zap.NewNop())
	require.NoError(t, store.Init(context.Background()))
	defer func() { _ = store.Teardown(context.Background()) }()

	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, domain.CustomClaims{
		UserID:           "7",
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	}).SignedString([]byte("backend-secret"))
	require.NoError(t, err)
	require.NoError(t, store.Login(context.Background(), domain.AuthResponse{Token: tok, User: domain.User{ID: "7", Username: "operator"}}))

	s := newServer(t, store)
	get := func(mod func(r *http.Request)) int {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/dashboard", nil)
		mod(req)
		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, req)
		return rec.Code
	}

	// Сессия в процессе есть, но запрос без токена не проходит
	assert.Equal(t, http.StatusUnauthorized, get(func(*http.Request) {}))
	assert.Equal(t, http.StatusUnauthorized, get(func(r *http.Request) { r.Header.Set("Authorization", "Bearer forged") }))
	assert.Equal(t, http.StatusOK, get(func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+tok) }))
	assert.Equal(t, http.StatusOK, get(func(r *http.Request) { r.AddCookie(&http.Cookie{Name: auth.SessionCookie, Value: tok}) }))

	// Без права users:manage админские маршруты закрыты и с токеном
	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
