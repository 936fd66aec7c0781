package middleware

import (
	"github.com/gin-gonic/gin"
)

// NoStore keeps intermediaries from caching API responses, which carry
// tokens, answer keys and results.
func NoStore() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Cache-Control", "no-store")
		c.Next()
	}
}
