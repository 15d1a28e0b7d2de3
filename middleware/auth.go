package middleware

import (
	"social-autoreply-platform/utils"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	tenantIDKey = "tenant_id"
	claimsKey   = "claims"
)

type AuthMiddleware struct {
	jwtSecret string
}

func NewAuthMiddleware(jwtSecret string) *AuthMiddleware {
	return &AuthMiddleware{jwtSecret: jwtSecret}
}

// RequireAuth accepts a bearer token whose subject is a tenant id.
func (a *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := utils.ExtractTokenFromHeader(c.GetHeader("Authorization"))
		if tokenString == "" {
			utils.RespondWithUnauthorized(c, "Authentication token is required")
			c.Abort()
			return
		}

		claims, err := utils.ValidateJWT(tokenString, a.jwtSecret)
		if err != nil {
			utils.RespondWithError(c, 401, "invalid_token", "Invalid or expired token", gin.H{"error": err.Error()})
			c.Abort()
			return
		}

		tenantID, err := primitive.ObjectIDFromHex(claims.TenantID())
		if err != nil {
			utils.RespondWithError(c, 401, "invalid_token", "Token subject is not a tenant id", nil)
			c.Abort()
			return
		}

		c.Set(tenantIDKey, tenantID)
		c.Set(claimsKey, claims)
		c.Next()
	}
}

// GetTenantID returns the authenticated tenant, if any.
func GetTenantID(c *gin.Context) (primitive.ObjectID, bool) {
	v, exists := c.Get(tenantIDKey)
	if !exists {
		return primitive.NilObjectID, false
	}
	id, ok := v.(primitive.ObjectID)
	return id, ok
}
