// main.go - StudyHub API server
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"studyhub/cache"
	"studyhub/config"
	"studyhub/database"
	"studyhub/handlers"
	"studyhub/logging"
	"studyhub/metrics"
	"studyhub/middleware"
	"studyhub/realtime"
	"studyhub/services"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "FATAL:", err)
		os.Exit(1)
	}

	log, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		fmt.Fprintln(os.Stderr, "FATAL: logger:", err)
		os.Exit(1)
	}
	defer log.Sync()

	if cfg.IsProduction() && (cfg.Server.CORSOrigins == "" || cfg.Server.CORSOrigins == "*") {
		log.Warn("CORS_ORIGINS not properly configured for production")
	}

	// Initialize database
	db, err := database.InitDB(cfg.Database, log)
	if err != nil {
		log.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer database.CloseDB()

	// Leaderboard cache is optional
	var lbCache *cache.LeaderboardCache
	if cfg.Redis.URL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		client, err := cache.NewRedisClient(ctx, cfg.Redis.URL)
		cancel()
		if err != nil {
			log.Warn("⚠️ Redis unavailable, leaderboard cache disabled", zap.Error(err))
		} else {
			defer client.Close()
			lbCache = cache.NewLeaderboardCache(client, cfg.Redis.LeaderboardTTL)
			log.Info("✅ Redis connected")
		}
	}

	m := metrics.New()
	hub := realtime.NewHub(log, m)
	svcs := services.New(services.Deps{
		DB:       db,
		Log:      log,
		Metrics:  m,
		Notifier: hub,
		Cache:    lbCache,
	})

	auth := middleware.NewAuth(cfg.Auth)
	handlers.Init(svcs, auth, log)
	handlers.SetPresence(hub)

	scheduler := services.NewScheduler(svcs, cfg.Streak.ResetAt, log)
	if err := scheduler.Start(); err != nil {
		log.Fatal("Failed to start scheduler", zap.Error(err))
	}
	defer scheduler.Stop()

	stop := make(chan struct{})
	rateLimit := middleware.NewRateLimit(cfg.RateLimit)
	rateLimit.Start(stop)

	// Create Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: handlers.ErrorHandler(cfg.IsProduction()),
		BodyLimit:    cfg.Server.BodyLimit,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(middleware.RequestLogger(log))
	app.Use(m.Middleware())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.CORSOrigins,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: cfg.Server.CORSOrigins != "*",
	}))
	app.Use(rateLimit.General())

	app.Get("/health", func(c *fiber.Ctx) error {
		status := "healthy"
		if sqlDB, err := db.DB(); err != nil || sqlDB.Ping() != nil {
			status = "degraded"
		}
		return c.JSON(fiber.Map{
			"status":    status,
			"timestamp": time.Now().Unix(),
			"online":    hub.OnlineCount(),
		})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})))
	app.Get("/ws", auth.WebSocket(), hub.Upgrade(), hub.Handler())

	handlers.SetupRoutes(app, handlers.RouteOptions{
		RateLimit: rateLimit,
		StaticDir: cfg.Server.StaticDir,
	})
	app.Static("/", cfg.Server.StaticDir)
	app.Use(handlers.NotFound(cfg.Server.StaticDir))

	go func() {
		log.Info("🚀 HTTP server starting",
			zap.String("port", cfg.Server.Port),
			zap.String("env", cfg.Server.Env),
			zap.String("db", cfg.Database.Type),
			zap.Bool("redis", lbCache != nil))
		if err := app.Listen(":" + cfg.Server.Port); err != nil {
			log.Fatal("Failed to start HTTP server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info("🛑 Shutting down")
	close(stop)
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Error("Server shutdown failed", zap.Error(err))
	}
}
