package middleware

import (
	"github.com/gin-gonic/gin"
)

const (
	apiKeyHeader           = "X-API-KEY"
	AdminIDContextValueKey = "adminId"
)

// AuthenticationMiddleware resolves the caller's API key against the set of
// admin keys. Unauthenticated requests go through; handlers guarding
// management operations check the context value themselves.
func AuthenticationMiddleware(adminKeys []string) gin.HandlerFunc {
	keys := make(map[string]struct{}, len(adminKeys))
	for _, k := range adminKeys {
		keys[k] = struct{}{}
	}

	return func(c *gin.Context) {
		apiKey := c.GetHeader(apiKeyHeader)
		if apiKey != "" {
			if _, ok := keys[apiKey]; ok {
				c.Set(AdminIDContextValueKey, apiKey)
			}
		}
		c.Next()
	}
}

// AdminID returns the admin identity set by AuthenticationMiddleware, or ""
// when the caller did not present a known admin key.
func AdminID(c *gin.Context) string {
	id, exists := c.Get(AdminIDContextValueKey)
	if !exists {
		return ""
	}
	return id.(string)
}
