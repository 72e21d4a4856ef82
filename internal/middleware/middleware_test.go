package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-enrollment-wizard/internal/models"
	appErrors "github.com/noah-isme/sma-enrollment-wizard/pkg/errors"
)

type stubValidator map[string]*models.JWTClaims

func (s stubValidator) ValidateToken(token string) (*models.JWTClaims, error) {
	claims, ok := s[token]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")
	}
	return claims, nil
}

type recordingAudit struct {
	mu   sync.Mutex
	logs []*models.AuditLog
}

func (r *recordingAudit) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logs = append(r.logs, log)
	return nil
}

func protectedRouter(extra ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	validator := stubValidator{
		"staff":   {UserID: "u-staff", Role: models.RoleStaff},
		"teacher": {UserID: "u-teacher", Role: models.RoleTeacher},
	}
	router := gin.New()
	handlers := append([]gin.HandlerFunc{JWT(validator), RequireRoles(EnrollmentRoles...)}, extra...)
	handlers = append(handlers, func(c *gin.Context) {
		c.String(http.StatusOK, Claims(c).UserID)
	})
	router.GET("/people/guardians", handlers...)
	return router
}

func serve(router *gin.Engine, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/people/guardians?document=98765432100", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestJWTAndRoles(t *testing.T) {
	router := protectedRouter()

	assert.Equal(t, http.StatusUnauthorized, serve(router, "").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(router, "forged").Code)
	assert.Equal(t, http.StatusForbidden, serve(router, "teacher").Code)

	rec := serve(router, "staff")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u-staff", rec.Body.String())
}

func TestJWTRejectsMalformedHeader(t *testing.T) {
	router := protectedRouter()
	req := httptest.NewRequest(http.MethodGet, "/people/guardians", nil)
	req.Header.Set("Authorization", "Token staff")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuditRecordsSuccessfulRequests(t *testing.T) {
	audit := &recordingAudit{}
	router := protectedRouter(Audit(audit, models.AuditActionGuardianLookup, "person", "document"))

	serve(router, "teacher")
	assert.Empty(t, audit.logs)

	serve(router, "staff")
	require.Len(t, audit.logs, 1)
	log := audit.logs[0]
	assert.Equal(t, models.AuditActionGuardianLookup, log.Action)
	require.NotNil(t, log.UserID)
	assert.Equal(t, "u-staff", *log.UserID)
	assert.Contains(t, string(log.NewValues), `"document":"98765432100"`)
}
