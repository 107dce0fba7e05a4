package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/hostel-allocation-api/internal/models"
	appErrors "github.com/noah-isme/hostel-allocation-api/pkg/errors"
)

type validatorStub struct {
	claims *models.JWTClaims
}

func (v validatorStub) ValidateToken(token string) (*models.JWTClaims, error) {
	if token != "good" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")
	}
	return v.claims, nil
}

type auditRecorder struct {
	logs []*models.AuditLog
}

func (a *auditRecorder) CreateAuditLog(_ context.Context, log *models.AuditLog) error {
	a.logs = append(a.logs, log)
	return nil
}

type observerStub struct {
	paths []string
}

func (o *observerStub) ObserveHTTPRequest(_ string, path string, _ int, _ time.Duration) {
	o.paths = append(o.paths, path)
}

func newRouter(role models.UserRole, handlers ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	chain := append([]gin.HandlerFunc{JWT(validatorStub{claims: &models.JWTClaims{UserID: "u-1", Role: role}})}, handlers...)
	chain = append(chain, func(c *gin.Context) { c.Status(http.StatusNoContent) })
	r.GET("/rooms/:id", chain...)
	return r
}

func serve(r http.Handler, authorization string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/rooms/room-1", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	r.ServeHTTP(w, req)
	return w
}

func TestJWTRejectsMissingAndMalformedHeaders(t *testing.T) {
	r := newRouter(models.RoleWarden)
	assert.Equal(t, http.StatusUnauthorized, serve(r, "").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(r, "Token good").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(r, "Bearer bad").Code)
	assert.Equal(t, http.StatusNoContent, serve(r, "bearer good").Code)
}

func TestRequireRoles(t *testing.T) {
	cases := []struct {
		role models.UserRole
		want int
	}{
		{models.RoleSuperAdmin, http.StatusNoContent},
		{models.RoleAdmin, http.StatusNoContent},
		{models.RoleWarden, http.StatusForbidden},
		{models.RoleStudent, http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(string(tc.role), func(t *testing.T) {
			r := newRouter(tc.role, RequireRoles(AdminRoles...))
			assert.Equal(t, tc.want, serve(r, "Bearer good").Code)
		})
	}
}

func TestRequireRolesWithoutClaims(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	RequireRoles(StaffRoles...)(c)
	assert.True(t, c.IsAborted())
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestOptionalJWTNeverBlocks(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	var seen *models.JWTClaims
	r.GET("/rooms/:id", OptionalJWT(validatorStub{claims: &models.JWTClaims{UserID: "u-2"}}), func(c *gin.Context) {
		if v, ok := c.Get(ContextUserKey); ok {
			seen = v.(*models.JWTClaims)
		}
		c.Status(http.StatusNoContent)
	})
	assert.Equal(t, http.StatusNoContent, serve(r, "Bearer bad").Code)
	assert.Nil(t, seen)
	assert.Equal(t, http.StatusNoContent, serve(r, "Bearer good").Code)
	require.NotNil(t, seen)
	assert.Equal(t, "u-2", seen.UserID)
}

func TestAuditRecordsSuccessfulRequests(t *testing.T) {
	recorder := &auditRecorder{}
	r := newRouter(models.RoleWarden, Audit(recorder, models.AuditActionExportDownload, "export"))

	serve(r, "Bearer bad")
	assert.Empty(t, recorder.logs)

	serve(r, "Bearer good")
	require.Len(t, recorder.logs, 1)
	log := recorder.logs[0]
	assert.Equal(t, models.AuditActionExportDownload, log.Action)
	require.NotNil(t, log.UserID)
	assert.Equal(t, "u-1", *log.UserID)
	require.NotNil(t, log.ResourceID)
	assert.Equal(t, "room-1", *log.ResourceID)
	assert.Contains(t, string(log.NewValues), `"status":204`)
}

func TestMetricsUsesRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	observer := &observerStub{}
	r := gin.New()
	r.Use(Metrics(observer))
	r.GET("/rooms/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	serve(r, "")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nowhere", nil))
	assert.Equal(t, []string{"/rooms/:id", "unmatched"}, observer.paths)
}

func TestResponseMeta(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	assert.Nil(t, ExtractMeta(c))

	WithResponseMeta()(c)
	SetMeta(c, "rows", 3)
	meta := ExtractMeta(c)
	assert.Equal(t, 3, meta["rows"])
	assert.Contains(t, meta, "processing_time_ms")
}
