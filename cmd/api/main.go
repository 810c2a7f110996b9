// main.go - The entry point and router setup.

package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bosocmputer/product_identify/configs"
	"github.com/bosocmputer/product_identify/internal/api"
	"github.com/bosocmputer/product_identify/internal/app"
	"github.com/bosocmputer/product_identify/internal/auth"
	"github.com/bosocmputer/product_identify/internal/common"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

func main() {
	// Step 0: Load configuration from environment variables
	cfg := configs.Load()
	common.InitLogging(cfg.LogLevel)

	if cfg.GinMode == gin.ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	}

	// Step 1: Connect providers, cache and optional collaborators
	startCtx, cancelStart := context.WithTimeout(context.Background(), 30*time.Second)
	controller, cleanup, err := app.Build(startCtx, cfg)
	cancelStart()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to build identification pipeline")
	}
	defer cleanup()

	// Step 2: Initialize the Gin router
	router := gin.New()
	router.Use(gin.Recovery(), api.RequestLogger(), api.CORS(cfg.AllowedOrigins))

	var authMiddleware gin.HandlerFunc
	if verifier := auth.NewHMACVerifier(cfg.AuthJWTSecret); verifier != nil {
		authMiddleware = auth.Middleware(verifier, cfg.AuthRequired)
	} else if cfg.AuthRequired {
		logrus.Fatal("AUTH_REQUIRED is set but AUTH_JWT_SECRET is empty")
	}

	// Step 3: Define the API routes
	api.NewHandler(controller, cfg.RequestTimeout).Register(router, authMiddleware)

	// Step 4: Setup HTTP server with timeouts
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second, // large base64 bodies
		WriteTimeout:      cfg.RequestTimeout + 10*time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	go func() {
		logrus.Infof("Starting server on :%s", cfg.Port)
		logrus.Info("API Endpoints:")
		logrus.Info("  POST /api/v1/identify-product")
		logrus.Info("  POST /api/v1/identify-products")
		logrus.Info("  GET  /health, /metrics")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.WithError(err).Fatal("Failed to start server")
		}
	}()

	// Setup graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logrus.WithError(err).Error("Server forced to shutdown")
	}

	logrus.Info("Server exited")
}
