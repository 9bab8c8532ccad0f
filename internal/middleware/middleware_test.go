package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/gin-gonic/gin"
	"github.com/stemsi/toeic-session/internal/config"
	"github.com/stemsi/toeic-session/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newAuth() *service.AuthService {
	return service.NewAuthService(&config.Config{JWTSecret: "mw-secret", JWTExpiry: time.Hour}, nil)
}

func serve(r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestBrotli_CompressesLargeJSON(t *testing.T) {
	body := strings.Repeat("listening ", 500)
	r := gin.New()
	r.Use(Brotli())
	r.GET("/items", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"text": body}) })

	req := httptest.NewRequest(http.MethodGet, "/items", nil)
	req.Header.Set("Accept-Encoding", "gzip, br;q=1.0")
	w := serve(r, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "br", w.Header().Get("Content-Encoding"))

	plain, err := io.ReadAll(brotli.NewReader(w.Body))
	require.NoError(t, err)
	assert.Contains(t, string(plain), body)
}

func TestBrotli_SmallBodyUntouched(t *testing.T) {
	r := gin.New()
	r.Use(Brotli())
	r.GET("/x", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": true}) })

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Accept-Encoding", "br")
	w := serve(r, req)

	assert.Empty(t, w.Header().Get("Content-Encoding"))
	assert.JSONEq(t, `{"ok":true}`, w.Body.String())
}

func TestBrotli_SkipsEventStream(t *testing.T) {
	r := gin.New()
	r.Use(Brotli())
	r.GET("/sse", func(c *gin.Context) { c.String(http.StatusOK, strings.Repeat("x", 4096)) })

	req := httptest.NewRequest(http.MethodGet, "/sse", nil)
	req.Header.Set("Accept-Encoding", "br")
	req.Header.Set("Accept", "text/event-stream")
	w := serve(r, req)

	assert.Empty(t, w.Header().Get("Content-Encoding"))
	assert.Len(t, w.Body.String(), 4096)
}

func TestRateLimiter_RefillsPerInterval(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute)
	now := time.Unix(0, 0)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow("1.2.3.4"))
	assert.True(t, rl.Allow("1.2.3.4"))
	assert.False(t, rl.Allow("1.2.3.4"))
	assert.True(t, rl.Allow("5.6.7.8"), "buckets are per key")

	now = now.Add(time.Minute)
	assert.True(t, rl.Allow("1.2.3.4"))

	now = now.Add(10 * time.Minute)
	rl.cleanup()
	assert.Empty(t, rl.visitors)
}

func TestRequireLearnerJWT(t *testing.T) {
	auth := newAuth()
	r := gin.New()
	r.GET("/me", RequireLearnerJWT(auth), func(c *gin.Context) {
		learner, ok := GetLearner(c)
		require.True(t, ok)
		c.JSON(http.StatusOK, gin.H{"id": learner.UserID, "email": learner.Email})
	})

	learnerTok, _ := auth.GenerateLearnerToken(5, "a@example.com")
	adminTok, _ := auth.GenerateAdminToken(1, nil)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+learnerTok)
	w := serve(r, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"id":5,"email":"a@example.com"}`, w.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+adminTok)
	assert.Equal(t, http.StatusForbidden, serve(r, req).Code)

	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	assert.Equal(t, http.StatusUnauthorized, serve(r, req).Code)
}

func TestRequireLearnerWSAuth(t *testing.T) {
	auth := newAuth()
	r := gin.New()
	r.GET("/ws", RequireLearnerWSAuth(auth), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	tok, _ := auth.GenerateLearnerToken(5, "a@example.com")
	assert.Equal(t, http.StatusNoContent, serve(r, httptest.NewRequest(http.MethodGet, "/ws?token="+tok, nil)).Code)
	assert.Equal(t, http.StatusUnauthorized, serve(r, httptest.NewRequest(http.MethodGet, "/ws", nil)).Code)
	assert.Equal(t, http.StatusUnauthorized, serve(r, httptest.NewRequest(http.MethodGet, "/ws?token=garbage", nil)).Code)
}

func TestRequirePermission(t *testing.T) {
	auth := newAuth()
	r := gin.New()
	r.GET("/monitor", RequireAdminJWT(auth), RequirePermission(service.PermissionTestsMonitor), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	allowed, _ := auth.GenerateAdminToken(1, []string{service.PermissionTestsMonitor})
	denied, _ := auth.GenerateAdminToken(2, []string{service.PermissionTestsWrite})

	assert.Equal(t, http.StatusNoContent, serve(r, httptest.NewRequest(http.MethodGet, "/monitor?token="+allowed, nil)).Code)
	assert.Equal(t, http.StatusForbidden, serve(r, httptest.NewRequest(http.MethodGet, "/monitor?token="+denied, nil)).Code)
}
