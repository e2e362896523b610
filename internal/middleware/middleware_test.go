package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/olyamironova/escrow-engine/internal/auth"
	"github.com/olyamironova/escrow-engine/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() { gin.SetMode(gin.TestMode) }

func newRouter(t *testing.T, iss *auth.Issuer, rl *RateLimiter) *gin.Engine {
	t.Helper()
	r := gin.New()
	r.Use(CORS("https://app.example"))
	api := r.Group("/api", Auth(iss, zap.NewNop()), rl.Middleware())
	api.GET("/me", func(c *gin.Context) {
		caller, ok := CallerOf(c)
		require.True(t, ok)
		fromCtx, ok := auth.CallerFrom(c.Request.Context())
		require.True(t, ok)
		assert.Equal(t, caller, fromCtx)
		c.String(http.StatusOK, caller.AccountID)
	})
	api.GET("/admin", RequireAdmin(), func(c *gin.Context) { c.Status(http.StatusNoContent) })
	return r
}

func do(r http.Handler, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthMiddleware(t *testing.T) {
	iss, err := auth.NewIssuer("0123456789abcdef", time.Hour)
	require.NoError(t, err)
	r := newRouter(t, iss, NewRateLimiter(1000, 1000))

	user, err := iss.Issue("alice", false)
	require.NoError(t, err)
	admin, err := iss.Issue("root", true)
	require.NoError(t, err)

	tests := []struct {
		name   string
		path   string
		token  string
		status int
	}{
		{name: "NoToken", path: "/api/me", status: http.StatusUnauthorized},
		{name: "Garbage", path: "/api/me", token: "not-a-jwt", status: http.StatusUnauthorized},
		{name: "User", path: "/api/me", token: user, status: http.StatusOK},
		{name: "UserOnAdmin", path: "/api/admin", token: user, status: http.StatusForbidden},
		{name: "Admin", path: "/api/admin", token: admin, status: http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(r, http.MethodGet, tt.path, tt.token)
			assert.Equal(t, tt.status, w.Code)
			if tt.status == http.StatusUnauthorized {
				assert.Contains(t, w.Body.String(), `"kind":"unauthorized"`)
			}
		})
	}
}

func TestRateLimiterPerAccount(t *testing.T) {
	iss, err := auth.NewIssuer("0123456789abcdef", time.Hour)
	require.NoError(t, err)
	r := newRouter(t, iss, NewRateLimiter(0.001, 2))

	alice, _ := iss.Issue("alice", false)
	bob, _ := iss.Issue("bob", false)

	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/api/me", alice).Code)
	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/api/me", alice).Code)
	limited := do(r, http.MethodGet, "/api/me", alice)
	assert.Equal(t, http.StatusTooManyRequests, limited.Code)
	assert.Contains(t, limited.Body.String(), "rate_limited")

	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/api/me", bob).Code)
}

func TestRateLimiterCleanup(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	rl.getLimiter("a")
	rl.visitors["a"].lastSeen = time.Now().Add(-time.Hour)
	rl.getLimiter("b")
	rl.Cleanup()
	assert.NotContains(t, rl.visitors, "a")
	assert.Contains(t, rl.visitors, "b")
}

func TestCORSPreflight(t *testing.T) {
	r := gin.New()
	r.Use(CORS("https://app.example"))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/x", nil)
	req.Header.Set("Origin", "https://app.example")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://app.example", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Origin", "https://evil.example")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCallerOfMissing(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	_, ok := CallerOf(c)
	assert.False(t, ok)
	c.Set(callerKey, domain.Caller{AccountID: "x"})
	got, ok := CallerOf(c)
	assert.True(t, ok)
	assert.Equal(t, "x", got.AccountID)
}
