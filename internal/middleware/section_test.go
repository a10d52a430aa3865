package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/stitchworks/garment-docs-api/internal/models"
)

func runSectionMiddleware(t *testing.T, claims *models.JWTClaims, section models.SectionID, level models.AccessLevel) int {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/documents", nil)
	if claims != nil {
		c.Set(ContextUserKey, claims)
	}
	RequireSection(section, level)(c)
	return w.Code
}

func TestRequireSectionAllowsRoleDefault(t *testing.T) {
	claims := &models.JWTClaims{UserID: "u1", Role: models.RoleQC}
	code := runSectionMiddleware(t, claims, models.SectionQCInspect, models.AccessFull)
	assert.Equal(t, http.StatusOK, code)
}

func TestRequireSectionDeniesInsufficientLevel(t *testing.T) {
	claims := &models.JWTClaims{UserID: "u1", Role: models.RoleViewer}
	code := runSectionMiddleware(t, claims, models.SectionQCInspect, models.AccessFull)
	assert.Equal(t, http.StatusForbidden, code)
}

func TestRequireSectionOverrideWins(t *testing.T) {
	claims := &models.JWTClaims{
		UserID: "u1",
		Role:   models.RoleViewer,
		SectionOverride: models.SectionAccessMap{
			models.SectionQCInspect: models.AccessFull,
		},
	}
	code := runSectionMiddleware(t, claims, models.SectionQCInspect, models.AccessFull)
	assert.Equal(t, http.StatusOK, code)

	// an override can also revoke what the role would grant
	claims = &models.JWTClaims{
		UserID: "u1",
		Role:   models.RoleQC,
		SectionOverride: models.SectionAccessMap{
			models.SectionQCInspect: models.AccessNone,
		},
	}
	code = runSectionMiddleware(t, claims, models.SectionQCInspect, models.AccessView)
	assert.Equal(t, http.StatusForbidden, code)
}

func TestRequireSectionUnknownSectionFailsClosed(t *testing.T) {
	claims := &models.JWTClaims{UserID: "u1", Role: models.RoleSuperAdmin}
	code := runSectionMiddleware(t, claims, models.SectionID("warehouse"), models.AccessView)
	assert.Equal(t, http.StatusForbidden, code)
}

func TestRequireSectionMissingClaims(t *testing.T) {
	code := runSectionMiddleware(t, nil, models.SectionQCInspect, models.AccessView)
	assert.Equal(t, http.StatusUnauthorized, code)
}
