package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/fatflowers/paysync/pkg/logctx"
)

func sign(t *testing.T, secret string, method jwt.SigningMethod, claims jwt.RegisteredClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func TestAdminAuthMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(AdminAuthMiddleware("admin-secret"))
	r.GET("/admin", func(c *gin.Context) { c.String(http.StatusOK, c.GetString(OperatorKey)) })

	valid := jwt.RegisteredClaims{Subject: "ops@example.com", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))}
	cases := []struct {
		name   string
		header string
		code   int
		body   string
	}{
		{"valid", "Bearer " + sign(t, "admin-secret", jwt.SigningMethodHS256, valid), http.StatusOK, "ops@example.com"},
		{"missing", "", http.StatusUnauthorized, ""},
		{"not bearer", "Basic abc", http.StatusUnauthorized, ""},
		{"wrong secret", "Bearer " + sign(t, "other", jwt.SigningMethodHS256, valid), http.StatusUnauthorized, ""},
		{"wrong alg", "Bearer " + sign(t, "admin-secret", jwt.SigningMethodHS512, valid), http.StatusUnauthorized, ""},
		{"expired", "Bearer " + sign(t, "admin-secret", jwt.SigningMethodHS256, jwt.RegisteredClaims{
			Subject: "ops", ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		}), http.StatusUnauthorized, ""},
		{"no expiry", "Bearer " + sign(t, "admin-secret", jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "ops"}), http.StatusUnauthorized, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/admin", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tc.code, w.Code)
			if tc.body != "" {
				assert.Equal(t, tc.body, w.Body.String())
			}
		})
	}
}

func TestAdminAuthMiddleware_Disabled(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(AdminAuthMiddleware(""))
	r.GET("/admin", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestTraceAndRequestLogger(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zapcore.InfoLevel)
	base := zap.New(core).Sugar()

	r := gin.New()
	r.Use(TraceMiddleware(), RequestLoggerMiddleware(base), AccessLogMiddleware())
	r.GET("/ping", func(c *gin.Context) {
		assert.Equal(t, "trace-123", logctx.TraceID(c.Request.Context()))
		logctx.FromCtx(c.Request.Context(), zap.NewNop().Sugar()).Infow("inside handler")
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("X-Request-ID", "trace-123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "trace-123", w.Header().Get("X-Request-ID"))
	inside := logs.FilterMessage("inside handler").All()
	require.Len(t, inside, 1)
	assert.Equal(t, "trace-123", inside[0].ContextMap()["trace_id"])
	access := logs.FilterMessage("http_access").All()
	require.Len(t, access, 1)
	assert.Equal(t, "/ping", access[0].ContextMap()["path"])
}

func TestTraceMiddleware_GeneratesID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(TraceMiddleware())
	var seen string
	r.GET("/", func(c *gin.Context) { seen = c.GetString(logctx.GinTraceIDKey) })

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Len(t, seen, 36)
}
