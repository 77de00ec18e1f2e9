package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xela07ax/nft-agents-console/internal/domain"
	"go.uber.org/zap"
)

func signHS(t *testing.T, exp time.Time) string {
	t.Helper()
	claims := domain.CustomClaims{
		UserID:   "7",
		Username: "admin",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("backend-secret"))
	require.NoError(t, err)
	return s
}

func TestExpiryValidator(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	v := NewExpiryValidator(func() time.Time { return now })

	claims, err := v.VerifyToken("Bearer " + signHS(t, now.Add(time.Hour)))
	require.NoError(t, err)
	assert.Equal(t, "7", claims.UserID)

	_, err = v.VerifyToken(signHS(t, now.Add(-time.Minute)))
	var authErr *domain.AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, "token expired", authErr.Reason)

	_, err = v.VerifyToken("not-a-jwt")
	assert.True(t, domain.IsAuth(err))

	_, err = v.VerifyToken("")
	assert.True(t, domain.IsAuth(err))
}

func TestBaseValidatorRS256(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	v := NewBaseValidator(&key.PublicKey)

	claims := domain.CustomClaims{
		UserID:           "1",
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(key)
	require.NoError(t, err)

	got, err := v.VerifyToken(signed)
	require.NoError(t, err)
	assert.Equal(t, "1", got.UserID)

	// Подпись другим алгоритмом не принимается
	_, err = v.VerifyToken(signHS(t, time.Now().Add(time.Hour)))
	assert.True(t, domain.IsAuth(err))
}

func TestNewValidatorWithoutKey(t *testing.T) {
	v, err := NewValidator(nil)
	require.NoError(t, err)
	assert.IsType(t, &ExpiryValidator{}, v)

	_, err = NewValidator([]byte("garbage"))
	assert.Error(t, err)
}

type fixedGuard Decision

func (f fixedGuard) Authorize(string, string, string) Decision { return Decision(f) }

func TestMiddlewareDecisions(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusTeapot) })

	cases := map[Decision]struct {
		code     int
		redirect string
	}{
		Allow:                {http.StatusTeapot, ""},
		RedirectLogin:        {http.StatusUnauthorized, RouteLogin},
		RedirectUnauthorized: {http.StatusForbidden, RouteUnauthorized},
	}
	for d, want := range cases {
		h := NewMiddleware(fixedGuard(d), domain.PermissionManageUsers, zap.NewNop())(ok)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/users", nil))

		assert.Equal(t, want.code, rec.Code, d.String())
		if want.redirect != "" {
			assert.Contains(t, rec.Body.String(), want.redirect)
		}
	}
}

// tokenGuard пускает только запросы с заданным токеном.
type tokenGuard struct {
	want string
	got  []string
}

func (g *tokenGuard) Authorize(token, _, _ string) Decision {
	g.got = append(g.got, token)
	if token != g.want {
		return RedirectLogin
	}
	return Allow
}

func TestMiddlewareReadsCredential(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	g := &tokenGuard{want: "tok"}
	h := NewMiddleware(g, "", zap.NewNop())(ok)

	serve := func(mod func(r *http.Request)) int {
		req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
		mod(req)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusUnauthorized, serve(func(*http.Request) {}))
	assert.Equal(t, http.StatusOK, serve(func(r *http.Request) { r.Header.Set("Authorization", "Bearer tok") }))
	assert.Equal(t, http.StatusOK, serve(func(r *http.Request) { r.AddCookie(&http.Cookie{Name: SessionCookie, Value: "tok"}) }))
	assert.Equal(t, http.StatusUnauthorized, serve(func(r *http.Request) { r.Header.Set("Authorization", "Bearer other") }))
	assert.Equal(t, []string{"", "tok", "tok", "other"}, g.got)
}
