package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/stitchworks/garment-docs-api/internal/models"
	"github.com/stitchworks/garment-docs-api/internal/service"
	appErrors "github.com/stitchworks/garment-docs-api/pkg/errors"
	"github.com/stitchworks/garment-docs-api/pkg/response"
)

// RequireSection guards a route behind the caller's effective access to
// one document section. Unknown sections and missing claims fail closed.
func RequireSection(section models.SectionID, required models.AccessLevel) gin.HandlerFunc {
	return func(c *gin.Context) {
		claimsValue, exists := c.Get(ContextUserKey)
		if !exists {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		claims := claimsValue.(*models.JWTClaims)

		access := service.EffectiveAccess(claims.Role, claims.SectionOverride)
		if !service.HasAccess(access, section, required) {
			response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "insufficient section access"))
			c.Abort()
			return
		}
		c.Next()
	}
}
