package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/hostel-allocation-api/internal/models"
	appErrors "github.com/noah-isme/hostel-allocation-api/pkg/errors"
	"github.com/noah-isme/hostel-allocation-api/pkg/response"
)

// Role groups used by the route table.
var (
	// StaffRoles may read projections and run allocations.
	StaffRoles = []models.UserRole{models.RoleSuperAdmin, models.RoleAdmin, models.RoleWarden}
	// AdminRoles may change the catalog and run destructive lifecycle operations.
	AdminRoles = []models.UserRole{models.RoleSuperAdmin, models.RoleAdmin}
)

// RequireRoles rejects requests whose claims carry none of the given roles. SUPERADMIN always
// passes.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	allowed := make(map[models.UserRole]struct{}, len(roles)+1)
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	allowed[models.RoleSuperAdmin] = struct{}{}

	return func(c *gin.Context) {
		claims := Claims(c)
		if claims == nil {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		if _, ok := allowed[claims.Role]; !ok {
			response.Error(c, appErrors.ErrForbidden)
			c.Abort()
			return
		}
		c.Next()
	}
}
