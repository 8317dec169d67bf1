package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ytsoob/internal/core/apperror"
	appctx "ytsoob/internal/core/context"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestJWT_RoundTrip(t *testing.T) {
	svc := NewJWTService(JWTConfig{Secret: "s3cret", Issuer: "identity"})
	tok, err := svc.GenerateToken(42, "alice", []string{"admin", "writer"}, time.Minute)
	require.NoError(t, err)

	user, err := svc.ValidateToken(tok)
	require.NoError(t, err)
	require.NotNil(t, user.ActorID)
	assert.Equal(t, int64(42), *user.ActorID)
	assert.Equal(t, "alice", user.UserName)
	assert.Equal(t, []string{"admin", "writer"}, user.Roles)
}

func TestJWT_Rejects(t *testing.T) {
	svc := NewJWTService(JWTConfig{Secret: "s3cret", Issuer: "identity"})

	other, err := NewJWTService(JWTConfig{Secret: "other", Issuer: "identity"}).GenerateToken(1, "x", nil, time.Minute)
	require.NoError(t, err)
	_, err = svc.ValidateToken(other)
	assert.Error(t, err, "wrong secret")

	foreign, err := NewJWTService(JWTConfig{Secret: "s3cret", Issuer: "elsewhere"}).GenerateToken(1, "x", nil, time.Minute)
	require.NoError(t, err)
	_, err = svc.ValidateToken(foreign)
	assert.Error(t, err, "issuer mismatch")

	expired, err := svc.GenerateToken(1, "x", nil, -time.Minute)
	require.NoError(t, err)
	_, err = svc.ValidateToken(expired)
	assert.Error(t, err, "expired")

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"nameid": "1"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = svc.ValidateToken(none)
	assert.Error(t, err, "alg none")
}

func TestJWT_ExternalClaimShapes(t *testing.T) {
	svc := NewJWTService(JWTConfig{Secret: "k"})
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"nameid": float64(7),
		"role":   "admin",
		"email":  "a@b.c",
	}).SignedString([]byte("k"))
	require.NoError(t, err)

	user, err := svc.ValidateToken(tok)
	require.NoError(t, err)
	require.NotNil(t, user.ActorID)
	assert.Equal(t, int64(7), *user.ActorID)
	assert.Equal(t, []string{"admin"}, user.Roles)
	assert.Equal(t, "a@b.c", user.Email)

	anon, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"nameid": "not-a-number"}).
		SignedString([]byte("k"))
	require.NoError(t, err)
	user, err = svc.ValidateToken(anon)
	require.NoError(t, err)
	assert.Nil(t, user.ActorID)
}

func newEngine(handlers ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(Recovery(), Trace(), ErrorHandler())
	r.GET("/x", handlers...)
	return r
}

func serve(r *gin.Engine, header string) (*httptest.ResponseRecorder, map[string]any) {
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var body map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	return w, body
}

func TestAuth(t *testing.T) {
	svc := NewJWTService(JWTConfig{Secret: "k"})
	var seen *int64
	r := newEngine(Auth(svc), func(c *gin.Context) {
		seen = appctx.ActorID(c.Request.Context())
		c.Status(http.StatusNoContent)
	})

	w, body := serve(r, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, apperror.CodeUnauthorized, body["code"])

	w, _ = serve(r, "Basic abc")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	tok, err := svc.GenerateToken(9, "u", nil, time.Minute)
	require.NoError(t, err)
	w, _ = serve(r, "bearer "+tok)
	assert.Equal(t, http.StatusNoContent, w.Code)
	require.NotNil(t, seen)
	assert.Equal(t, int64(9), *seen)
}

func TestOptionalAuth_InvalidTokenIsAnonymous(t *testing.T) {
	svc := NewJWTService(JWTConfig{Secret: "k"})
	called := false
	r := newEngine(OptionalAuth(svc), func(c *gin.Context) {
		called = true
		assert.Nil(t, appctx.GetUser(c.Request.Context()))
		c.Status(http.StatusOK)
	})

	w, _ := serve(r, "Bearer junk")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, called)
}

func TestRequireRole(t *testing.T) {
	svc := NewJWTService(JWTConfig{Secret: "k"})
	r := newEngine(Auth(svc), RequireRole("admin"), func(c *gin.Context) { c.Status(http.StatusOK) })

	plain, _ := svc.GenerateToken(1, "u", []string{"reader"}, time.Minute)
	w, body := serve(r, "Bearer "+plain)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, apperror.CodeForbidden, body["code"])

	admin, _ := svc.GenerateToken(1, "u", []string{"admin"}, time.Minute)
	w, _ = serve(r, "Bearer "+admin)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRecovery_RendersInternalError(t *testing.T) {
	r := newEngine(func(*gin.Context) { panic("boom") })

	w, body := serve(r, "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, apperror.CodeInternal, body["code"])
	assert.NotContains(t, w.Body.String(), "boom")
	details, _ := body["details"].(map[string]any)
	assert.NotEmpty(t, details["request_id"])
}

func TestErrorHandler_PlainError(t *testing.T) {
	r := newEngine(func(c *gin.Context) {
		_ = c.Error(assert.AnError)
	})

	w, body := serve(r, "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, apperror.CodeInternal, body["code"])
	assert.NotContains(t, w.Body.String(), assert.AnError.Error())
}
