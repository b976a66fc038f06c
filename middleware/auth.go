// middleware/auth.go
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fedhealth/gatekeeper/auth"
	gw_errors "github.com/fedhealth/gatekeeper/errors"
	logger "github.com/fedhealth/gatekeeper/logging"
	"github.com/fedhealth/gatekeeper/util"
)

const bearerPrefix = "Bearer "

// Authenticate extracts and verifies the bearer token, storing the verified
// identity in the request context. Responses expose the stable error code
// and documented detail only, never the underlying failure text.
func Authenticate(verifier *auth.TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, bearerPrefix) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": string(gw_errors.AuthMissingToken)})
			c.Abort()
			return
		}

		rawToken := strings.TrimPrefix(header, bearerPrefix)
		identity, err := verifier.Verify(c.Request.Context(), rawToken)
		if err != nil {
			authErr, ok := gw_errors.AsAuthError(err)
			if !ok {
				authErr = gw_errors.NewAuthError(gw_errors.AuthMalformed, "")
			}

			status := http.StatusUnauthorized
			if authErr.Kind == gw_errors.AuthKeyUnavailable {
				// The key set endpoint is down, not the caller's fault
				status = http.StatusBadGateway
			}

			body := gin.H{"error": authErr.Code()}
			if authErr.Detail != "" {
				body["detail"] = authErr.Detail
			}
			c.JSON(status, body)
			c.Abort()
			return
		}

		logger.Debug("Request authenticated",
			zap.String("sub", identity.Subject),
			zap.String("path", c.Request.URL.Path))
		c.Set(util.IdentityContextKey, identity)
		c.Next()
	}
}
