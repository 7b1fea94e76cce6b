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
	"go.uber.org/zap/zaptest/observer"

	"github.com/noah-isme/swim-eval-api/internal/models"
)

const testSecret = "test-secret"

func signToken(t *testing.T, secret string, claims models.JWTClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func validClaims(role models.UserRole, userID string) models.JWTClaims {
	return models.JWTClaims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "identity",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
}

func newRouter(handlers ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handlers = append(handlers, func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/students/:id", handlers...)
	return r
}

func do(r http.Handler, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestJWTVerifiesTokens(t *testing.T) {
	verifier := NewTokenVerifier(testSecret, "identity")
	r := newRouter(JWT(verifier))

	assert.Equal(t, http.StatusUnauthorized, do(r, "/students/s1", "").Code)
	assert.Equal(t, http.StatusUnauthorized, do(r, "/students/s1", "garbage").Code)
	assert.Equal(t, http.StatusUnauthorized, do(r, "/students/s1", signToken(t, "other", validClaims(models.RoleAdmin, "a1"))).Code)

	wrongIssuer := validClaims(models.RoleAdmin, "a1")
	wrongIssuer.Issuer = "someone"
	assert.Equal(t, http.StatusUnauthorized, do(r, "/students/s1", signToken(t, testSecret, wrongIssuer)).Code)

	expired := validClaims(models.RoleAdmin, "a1")
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
	assert.Equal(t, http.StatusUnauthorized, do(r, "/students/s1", signToken(t, testSecret, expired)).Code)

	assert.Equal(t, http.StatusUnauthorized, do(r, "/students/s1", signToken(t, testSecret, validClaims("JANITOR", "x"))).Code)
	assert.Equal(t, http.StatusOK, do(r, "/students/s1", signToken(t, testSecret, validClaims(models.RoleProfessor, "p1"))).Code)
}

func TestRBACAllowsRolesAndSelf(t *testing.T) {
	verifier := NewTokenVerifier(testSecret, "")
	r := newRouter(JWT(verifier), RBAC(string(models.RoleAdmin), string(models.RoleProfessor), SelfStudent))

	assert.Equal(t, http.StatusOK, do(r, "/students/s1", signToken(t, testSecret, validClaims(models.RoleProfessor, "p1"))).Code)
	assert.Equal(t, http.StatusOK, do(r, "/students/s1", signToken(t, testSecret, validClaims(models.RoleStudent, "s1"))).Code)
	assert.Equal(t, http.StatusForbidden, do(r, "/students/s2", signToken(t, testSecret, validClaims(models.RoleStudent, "s1"))).Code)

	writers := newRouter(JWT(verifier), RequireRoles(models.RoleAdmin))
	assert.Equal(t, http.StatusForbidden, do(writers, "/students/s1", signToken(t, testSecret, validClaims(models.RoleProfessor, "p1"))).Code)
}

type observedRequest struct {
	method, path string
	status       int
}

type observerStub struct{ requests []observedRequest }

func (o *observerStub) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	o.requests = append(o.requests, observedRequest{method, path, status})
}

func TestMetricsUsesRouteTemplate(t *testing.T) {
	obs := &observerStub{}
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Metrics(obs))
	r.GET("/students/:id", func(c *gin.Context) { c.Status(http.StatusOK) })
	do(r, "/students/s1", "")
	do(r, "/nowhere", "")
	require.Len(t, obs.requests, 2)
	assert.Equal(t, observedRequest{http.MethodGet, "/students/:id", http.StatusOK}, obs.requests[0])
	assert.Equal(t, "unmatched", obs.requests[1].path)
	assert.Equal(t, http.StatusNotFound, obs.requests[1].status)
}

func TestAuditLogsSuccessfulWrites(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	verifier := NewTokenVerifier(testSecret, "")
	r := newRouter(JWT(verifier), Audit(zap.New(core), "read", "student"))

	do(r, "/students/s1", signToken(t, testSecret, validClaims(models.RoleAdmin, "a1")))
	do(r, "/students/s1", "")

	entries := logs.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "s1", fields["resource_id"])
	assert.Equal(t, "a1", fields["actor_id"])
}

func TestResponseMetaRecordsCacheHit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(WithResponseMeta())
	var meta map[string]interface{}
	r.GET("/x", func(c *gin.Context) {
		SetCacheHit(c, true)
		meta = ResponseMeta(c, time.Now())
		c.Status(http.StatusOK)
	})
	do(r, "/x", "")
	require.NotNil(t, meta)
	assert.Equal(t, true, meta[cacheHitKey])
	assert.Contains(t, meta, "processing_time_ms")
}
