package middleware

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/telspan/vpn-provision/internal/identity"
	"github.com/telspan/vpn-provision/internal/secret"
)

// SecretAuth gates a route on the derived per-identity token. The parameter
// names say which path segments carry the identity and the token, so the
// same guard composes onto any protected route. A failed check answers 401
// without revealing whether the identity exists.
func SecretAuth(deriver *secret.Deriver, identityParam, tokenParam string) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param(identityParam)
		token := c.Param(tokenParam)

		if id == "" || token == "" {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "missing required parameters"})
			return
		}

		if identity.Validate(id) != nil || !deriver.Verify(id, token) {
			slog.Warn("Rejected request with invalid token",
				"route", c.FullPath(),
				"client_ip", c.ClientIP())
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		c.Next()
	}
}
