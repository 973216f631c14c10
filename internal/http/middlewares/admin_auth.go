package middlewares

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// adminClaims is the minimal claim set carried by the long-lived admin API
// token: no subject identity beyond "this bearer may administer jobs".
type adminClaims struct {
	Scope string `json:"scope"`
	jwt.RegisteredClaims
}

// RequireAdminToken guards the /admin/* surface with a single HS256-signed
// token instead of per-user auth, since jobs administration has no concept
// of individual operators. secret is the HMAC signing key (ADMIN_API_TOKEN);
// the bearer token itself is minted out-of-band and must carry scope=admin.
func RequireAdminToken(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{
				"error": gin.H{
					"code":    "admin_disabled",
					"message": "Admin API token is not configured",
				},
			})
			return
		}

		header := c.GetHeader("Authorization")
		raw := strings.TrimSpace(strings.TrimPrefix(header, "Bearer"))
		if raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": gin.H{
					"code":    "unauthorized",
					"message": "Missing admin bearer token",
				},
			})
			return
		}

		token, err := jwt.ParseWithClaims(raw, &adminClaims{}, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, errors.New("unexpected signing method")
			}
			return []byte(secret), nil
		})
		if err != nil || !token.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": gin.H{
					"code":    "unauthorized",
					"message": "Invalid or expired admin token",
				},
			})
			return
		}

		claims, ok := token.Claims.(*adminClaims)
		if !ok || claims.Scope != "admin" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": gin.H{
					"code":    "forbidden",
					"message": "Token missing admin scope",
				},
			})
			return
		}

		c.Next()
	}
}
