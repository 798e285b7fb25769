package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/pipeworks_backend/config"
	"github.com/mmdatafocus/pipeworks_backend/handlers"
	"github.com/mmdatafocus/pipeworks_backend/middlewares"
	"github.com/mmdatafocus/pipeworks_backend/models"
	"github.com/mmdatafocus/pipeworks_backend/workflow"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
)

const defaultPort = "8080"

var tracer = otel.Tracer("pipeworks-backend")

func customNotFoundHandler(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "route not found"})
}

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = defaultPort
	}

	logger := config.GetLogger()

	// Cloud Run sends SIGTERM on revision shutdown.
	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	if !strings.EqualFold(strings.TrimSpace(os.Getenv("GO_ENV")), "development") {
		gin.SetMode(gin.ReleaseMode)
	}

	// Start the HTTP server before dependencies are ready; app routes return
	// 503 until the database is connected.
	r := gin.New()
	r.Use(middlewares.CorrelationMiddleware())
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	r.Use(requireDatabase)

	r.Use(cors.New(corsFromEnv()))

	// RATE_LIMIT_ENABLED=true turns on the per-IP limiter.
	if strings.EqualFold(strings.TrimSpace(os.Getenv("RATE_LIMIT_ENABLED")), "true") {
		r.Use(middlewares.RateLimiterFromEnv().Middleware())
	}

	r.Use(customErrorLogger(logger))
	r.Use(gin.Recovery())

	handlers.New(tracer).Register(r)
	r.NoRoute(customNotFoundHandler)

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}
	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- srv.ListenAndServe()
	}()

	// Redis only backs caches, locks and logout; the API runs without it.
	go config.ConnectRedisWithRetry(sigCtx)
	config.ConnectDatabaseWithRetry()

	db := config.GetDB()
	sqlDB, _ := db.DB()
	defer func() {
		if sqlDB != nil {
			_ = sqlDB.Close()
		}
	}()
	// AutoMigrate can hold table locks; run it as a separate job with SKIP_MIGRATIONS=true.
	if !strings.EqualFold(strings.TrimSpace(os.Getenv("SKIP_MIGRATIONS")), "true") {
		models.MigrateTable()
	} else {
		logger.WithFields(logrus.Fields{"field": "migrations"}).Warn("SKIP_MIGRATIONS=true; skipping AutoMigrate on startup")
	}

	dispatcherCtx, cancelDispatcher := context.WithCancel(context.Background())
	defer cancelDispatcher()
	if config.OutboxEnabled() {
		go workflow.NewOutboxDispatcher(db, logger).Run(dispatcherCtx)
	}

	log.Println("Server started successfully on port " + port)

	select {
	case <-sigCtx.Done():
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithFields(logrus.Fields{"field": "http"}).Error("server stopped unexpectedly: " + err.Error())
		}
	}

	// Stop the dispatcher before draining requests.
	cancelDispatcher()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithFields(logrus.Fields{"field": "http"}).Error("graceful shutdown failed: " + err.Error())
	}

	config.ClosePubSub()
	if rdb := config.GetRedisDB(); rdb != nil {
		_ = rdb.Close()
	}
}

// requireDatabase answers 503 until ConnectDatabaseWithRetry has finished.
func requireDatabase(c *gin.Context) {
	if config.GetDB() == nil {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"success": false, "message": "starting up"})
		return
	}
	c.Next()
}

// customErrorLogger logs only requests that recorded gin errors.
func customErrorLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		if len(c.Errors) > 0 {
			logger.Error(c.Errors.String())
		}
	}
}

// corsFromEnv allows every origin outside production. Production only allows
// the CORS_ALLOWED_ORIGINS list, which may be empty.
func corsFromEnv() cors.Config {
	cfg := cors.DefaultConfig()
	if strings.EqualFold(strings.TrimSpace(os.Getenv("GO_ENV")), "production") {
		cfg.AllowOrigins = splitAndTrim(os.Getenv("CORS_ALLOWED_ORIGINS"))
		if cfg.AllowOrigins == nil {
			cfg.AllowOrigins = []string{}
		}
	} else {
		cfg.AllowAllOrigins = true
	}
	cfg.AddAllowMethods(http.MethodPut, http.MethodPatch, http.MethodDelete)
	cfg.AddAllowHeaders("Authorization", middlewares.CorrelationHeader, "Idempotency-Key")
	cfg.AddExposeHeaders("Content-Disposition", middlewares.CorrelationHeader, "Retry-After")
	cfg.AllowCredentials = true
	return cfg
}

func splitAndTrim(csv string) []string {
	if strings.TrimSpace(csv) == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
