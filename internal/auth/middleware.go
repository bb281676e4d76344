package auth

import (
	"net/http"
	"strings"

	"socialprofiles/backend/internal/profiles"
	"socialprofiles/backend/pkg/jwt"

	"github.com/gin-gonic/gin"
)

// UserIDKey is the gin context key holding the authenticated user's id.
const UserIDKey = "userID"

// AuthMiddleware rejects requests without a valid bearer token.
func AuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, ok := bearerToken(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			return
		}

		userID, err := jwt.ParseToken(tokenString, secret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}

		c.Set(UserIDKey, userID)
		c.Next()
	}
}

// ActorFrom returns the authenticated user set by one of the middlewares.
func ActorFrom(c *gin.Context) (profiles.Actor, bool) {
	v, ok := c.Get(UserIDKey)
	if !ok {
		return profiles.Actor{}, false
	}
	userID, ok := v.(uint)
	if !ok || userID == 0 {
		return profiles.Actor{}, false
	}
	return profiles.Actor{UserID: userID}, true
}

func bearerToken(c *gin.Context) (string, bool) {
	parts := strings.SplitN(c.GetHeader("Authorization"), " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}
