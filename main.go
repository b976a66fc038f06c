package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fedhealth/gatekeeper/auth"
	"github.com/fedhealth/gatekeeper/config"
	"github.com/fedhealth/gatekeeper/controller"
	"github.com/fedhealth/gatekeeper/db"
	"github.com/fedhealth/gatekeeper/federation"
	logger "github.com/fedhealth/gatekeeper/logging"
	"github.com/fedhealth/gatekeeper/pdp/engine"
	"github.com/fedhealth/gatekeeper/router"
	"github.com/fedhealth/gatekeeper/service"
	"github.com/fedhealth/gatekeeper/util"
)

func main() {
	// Initialize configuration
	if err := config.InitConfig(); err != nil {
		log.Fatalf("Failed to initialize config: %v", err)
	}
	cfg := config.GetConfig()

	// Initialize logger
	logger.InitLogger("logging")
	defer logger.Sync()

	if len(cfg.Federation.Endpoints) == 0 {
		logger.Fatal("No federation endpoints configured")
	}

	// Initialize Redis for rate limiting
	if cfg.RateLimit.Enabled {
		if err := db.InitRedis(); err != nil {
			logger.Fatal("Failed to initialize Redis", zap.Error(err))
		}
		defer db.CloseRedis()
	}

	// Initialize EventBus
	eventBus := util.NewEventBus()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	eventBus.Start(ctx)

	// Initialize token verification
	keyResolver := auth.NewKeyResolver(cfg.Auth.JwksURI, cfg.Auth.JwksTimeout)
	verifier := auth.NewTokenVerifier(&cfg.Auth, keyResolver)

	// Initialize policy engine and federation
	evaluator := engine.NewPolicyEvaluator()
	queryRouter := federation.NewRouter(&cfg.Federation)

	// Initialize services
	queryService := service.NewQueryService(queryRouter, evaluator, eventBus, &cfg.Federation)

	// Initialize controllers
	queryController := controller.NewQueryController(queryService)
	proxyController, err := controller.NewProxyController(cfg.Proxy.Upstream, cfg.Auth.RequiredRole, evaluator)
	if err != nil {
		logger.Fatal("Failed to initialize proxy", zap.Error(err))
	}
	controllers := &controller.Controllers{
		Query: queryController,
		Proxy: proxyController,
	}

	// Set up Gin
	gin.SetMode(gin.ReleaseMode)
	ginRouter := router.SetupRouter(
		controllers,
		verifier,
		cfg.RateLimit.Enabled,
		cfg.RateLimit.Requests,
		cfg.RateLimit.Window,
	)

	// Set up the server
	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: ginRouter,
	}

	// Start the server in a goroutine
	go func() {
		logger.Info("Starting server",
			zap.String("port", cfg.Server.Port),
			zap.String("issuer", cfg.Auth.Issuer),
			zap.Int("endpoints", len(cfg.Federation.Endpoints)))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	// The context is used to inform the server it has 5 seconds to finish
	// the request it is currently handling
	ctx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exiting")
}
