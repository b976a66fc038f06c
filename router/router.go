// router/router.go

package router

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/fedhealth/gatekeeper/auth"
	"github.com/fedhealth/gatekeeper/controller"
	"github.com/fedhealth/gatekeeper/middleware"
)

func SetupRouter(
	controllers *controller.Controllers,
	verifier *auth.TokenVerifier,
	rateLimitEnabled bool,
	rateLimitRequests int,
	rateLimitDuration time.Duration,
) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger())
	if rateLimitEnabled {
		router.Use(middleware.RateLimiter(rateLimitRequests, rateLimitDuration))
	}

	api := router.Group("/api/v1")
	api.Use(middleware.Authenticate(verifier))
	controllers.Query.RegisterRoutes(api)

	proxy := router.Group(controller.MountPrefix)
	proxy.Use(middleware.Authenticate(verifier))
	controllers.Proxy.RegisterRoutes(proxy)

	return router
}
