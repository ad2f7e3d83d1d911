package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	resp "gin-gorm-user-service/internal/transport/http/response"
)

// MaxBodyBytes limits the request body; reading past n fails with *http.MaxBytesError.
func MaxBodyBytes(n int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > n {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, resp.Error(http.StatusRequestEntityTooLarge, ""))
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, n)
		c.Next()
	}
}
