// middleware/group_auth.go
package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/dgrijalva/jwt-go"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	logger "github.com/controlcoreio/control-core-012025-sub001/logging"
	"github.com/controlcoreio/control-core-012025-sub001/util"
)

// AdminClaims are the claims an administrator token must carry.
type AdminClaims struct {
	jwt.StandardClaims
	Groups []string `json:"groups"`
}

// GroupAuthMiddleware admits requests bearing an HMAC-signed token whose
// groups claim contains one of requiredGroups. The token subject is stored
// under util.ContextUserID.
func GroupAuthMiddleware(secret []byte, requiredGroups []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := c.GetHeader("Authorization")
		if tokenString == "" {
			logger.Warn("No Authorization token provided", zap.String("path", c.Request.URL.Path))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}

		claims, err := parseToken(tokenString, secret)
		if err != nil {
			logger.Warn("Rejected token", zap.Error(err), zap.String("path", c.Request.URL.Path))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}

		if !isUserInGroups(claims, requiredGroups) {
			logger.Warn("User does not have the required groups",
				zap.String("sub", claims.Subject),
				zap.Strings("groups", claims.Groups))
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Forbidden"})
			return
		}

		c.Set(util.ContextUserID, claims.Subject)
		c.Next()
	}
}

func parseToken(tokenString string, secret []byte) (*AdminClaims, error) {
	tokenString = strings.TrimPrefix(tokenString, "Bearer ")
	token, err := jwt.ParseWithClaims(tokenString, &AdminClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*AdminClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token or wrong claims type")
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("token has no subject")
	}
	return claims, nil
}

func isUserInGroups(claims *AdminClaims, requiredGroups []string) bool {
	for _, group := range requiredGroups {
		for _, userGroup := range claims.Groups {
			if userGroup == group {
				return true
			}
		}
	}
	return false
}
