package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"gin-gorm-user-service/internal/core/auth"
	"gin-gorm-user-service/internal/domain"
	resp "gin-gorm-user-service/internal/transport/http/response"
)

const keyPrincipal = "principal"

// TokenParser validates a bearer token. *auth.JWTer implements it.
type TokenParser interface {
	Parse(token string) (*auth.Claims, error)
}

// AuthJWT rejects requests without a valid bearer token with 401 and stores
// the caller's Principal for the handlers behind it.
func AuthJWT(j TokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		ah := c.GetHeader("Authorization")
		if !strings.HasPrefix(ah, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, resp.Error(http.StatusUnauthorized, ""))
			return
		}
		claims, err := j.Parse(strings.TrimSpace(strings.TrimPrefix(ah, "Bearer ")))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, resp.Error(http.StatusUnauthorized, ""))
			return
		}
		p, err := claims.Principal()
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, resp.Error(http.StatusUnauthorized, ""))
			return
		}
		SetPrincipal(c, p)
		c.Next()
	}
}

func SetPrincipal(c *gin.Context, p domain.Principal) { c.Set(keyPrincipal, p) }

func PrincipalFrom(c *gin.Context) (domain.Principal, bool) {
	v, ok := c.Get(keyPrincipal)
	if !ok {
		return domain.Principal{}, false
	}
	p, ok := v.(domain.Principal)
	return p, ok
}
