// util/http_util.go
package util

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	logger "github.com/fedhealth/gatekeeper/logging"
	"github.com/fedhealth/gatekeeper/model"
)

// IdentityContextKey is where the auth middleware stores the verified identity
const IdentityContextKey = "verifiedIdentity"

func RespondWithError(c *gin.Context, code int, message string, err error) {
	logger.Error(message,
		zap.Error(err),
		zap.String("path", c.Request.URL.Path),
		zap.String("method", c.Request.Method))
	c.JSON(code, gin.H{"error": message})
}

// GetIdentityFromContext returns the verified identity set by the auth
// middleware, or nil if the request was not authenticated
func GetIdentityFromContext(c *gin.Context) *model.VerifiedIdentity {
	value, exists := c.Get(IdentityContextKey)
	if !exists {
		return nil
	}
	identity, ok := value.(*model.VerifiedIdentity)
	if !ok {
		return nil
	}
	return identity
}
