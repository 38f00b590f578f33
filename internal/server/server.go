// Package server contains HTTP and WebSocket handlers for the application's API endpoints.
package server

import (
	"context"
	"fmt"
	"log"
	"time"

	"terrace/internal/cache"
	"terrace/internal/config"
	"terrace/internal/database"
	"terrace/internal/middleware"
	"terrace/internal/models"
	"terrace/internal/notifications"
	"terrace/internal/repository"
	"terrace/internal/service"
	"terrace/internal/workers"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	shutdownCtx    context.Context
	shutdownFn     context.CancelFunc

	userRepo    repository.UserRepository
	matchRepo   repository.MatchRepository
	battleRepo  repository.BattleRepository
	commentRepo repository.CommentRepository

	presence    *notifications.PresenceTracker
	hub         *notifications.Hub
	notifier    *notifications.Notifier
	broadcaster *notifications.RoomBroadcaster

	battleService  *service.BattleService
	commentService *service.CommentService

	sweeper *workers.ExpirySweeper
}

// NewServer creates a new server instance with all dependencies
func NewServer(cfg *config.Config) (*Server, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	cache.InitRedis(cfg.RedisURL)
	return NewServerWithDeps(cfg, db, cache.GetClient())
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// Tests and bootstrap layers use this to supply their own DB and Redis.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) (*Server, error) {
	server := &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		promMiddleware: middleware.InitMetrics("terrace-api"),
		userRepo:       repository.NewUserRepository(db),
		matchRepo:      repository.NewMatchRepository(db),
		battleRepo:     repository.NewBattleRepository(db),
		commentRepo:    repository.NewCommentRepository(db),
	}

	server.presence = notifications.NewPresenceTracker()
	server.hub = notifications.NewHub(server.presence)
	server.notifier = notifications.NewNotifier(redisClient)
	server.broadcaster = notifications.NewRoomBroadcaster(server.hub, server.notifier)

	server.battleService = service.NewBattleService(
		server.battleRepo, server.matchRepo, server.userRepo, server.broadcaster)
	server.commentService = service.NewCommentService(
		server.commentRepo, server.matchRepo, server.broadcaster)

	sweepInterval := time.Duration(cfg.BattleSweepSeconds) * time.Second
	if sweepInterval <= 0 {
		sweepInterval = 30 * time.Second
	}
	server.sweeper = workers.NewExpirySweeper(server.battleService, sweepInterval)

	return server, nil
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	// Panic recovery
	app.Use(recover.New())

	// Request ID for tracing
	app.Use(requestid.New(requestid.Config{
		Generator: uuid.NewString,
	}))

	// Context Middleware to propagate Request ID and User ID
	app.Use(middleware.ContextMiddleware())

	// Prometheus Metrics
	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	// Security headers
	app.Use(helmet.New())

	// Structured Logging middleware (after requestid and context middleware)
	app.Use(middleware.StructuredLogger())

	// CORS middleware should run before middlewares that can short-circuit
	// so browser clients still receive CORS headers on error responses.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000"
	}

	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, Upgrade, Connection, Sec-WebSocket-Key, Sec-WebSocket-Version",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	// Global rate limiting (100 requests per minute per IP)
	app.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
		// Never rate-limit preflight requests; they are handled by CORS.
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests, please try again later.",
			})
		},
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	api := app.Group("/api")

	// Health checks
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)
	app.Get("/health", s.ReadinessCheck)

	// Metrics endpoint for Prometheus
	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}
	api.Get("/metrics/dashboard", monitor.New(monitor.Config{
		Title: "Terrace Metrics Dashboard",
	}))

	// Protected routes
	protected := api.Group("", middleware.AuthRequired(s.config))

	// Battle routes
	battles := protected.Group("/battles")
	battles.Post("/", middleware.RateLimit(
		s.redis, 5, time.Minute, "create_battle"), s.CreateBattle)
	// Define specific /:id/:resource routes BEFORE generic /:id route
	battles.Post("/:id/accept", s.AcceptBattle)
	battles.Post("/:id/arguments", middleware.RateLimit(
		s.redis, 10, time.Minute, "add_argument"), s.AddArgument)
	battles.Post("/:id/votes", s.CastVote)
	battles.Post("/:id/gifts", middleware.RateLimit(
		s.redis, 20, time.Minute, "send_gift"), s.SendGift)
	battles.Post("/:id/end", s.EndBattle)
	battles.Get("/:id", s.GetBattle)

	// Match-scoped routes
	matches := protected.Group("/matches")
	matches.Get("/:matchId/battles", s.GetMatchBattles)
	matches.Get("/:matchId/comments", s.GetComments)
	matches.Post("/:matchId/comments", middleware.RateLimit(
		s.redis, 15, time.Minute, "create_comment"), s.CreateComment)
	matches.Get("/:matchId/presence", s.GetMatchPresence)

	// Comment routes
	comments := protected.Group("/comments")
	comments.Post("/:id/like", s.ToggleCommentLike)
	comments.Get("/:id/replies", s.GetCommentReplies)

	// Websocket endpoint - authenticated at handshake
	ws := api.Group("/ws", middleware.WebSocketAuthRequired(s.config))
	ws.Get("/", s.WebsocketHandler())
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck handles readiness probe requests
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	sqlDB, err := s.db.DB()
	if err != nil {
		dbStatus = "unhealthy"
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "healthy"
	if s.redis != nil {
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	} else {
		// Fanout degrades to single-process without Redis; still report it.
		redisStatus = "unavailable"
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if dbStatus == "unhealthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overallStatus,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"time": time.Now(),
	})
}

// Start starts the server
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.shutdownCtx = ctx
	s.shutdownFn = cancel

	app := fiber.New(fiber.Config{
		AppName: "Terrace API",
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			log.Printf("Error: %v", err)
			return models.RespondWithError(c, models.StatusForError(err), err)
		},
	})
	s.app = app

	s.SetupMiddleware(app)
	s.SetupRoutes(app)

	// Route cross-process room events back into the local hub.
	if s.notifier.Ready() {
		go func() {
			if err := s.broadcaster.StartWiring(s.shutdownCtx); err != nil {
				log.Printf("failed to start room subscriber: %v", err)
			}
		}()
	}

	if err := s.sweeper.Start(s.shutdownCtx); err != nil {
		return fmt.Errorf("failed to start battle expiry sweeper: %w", err)
	}

	log.Printf("Server starting on port %s...", s.config.Port)
	return app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	// Cancel the server-scoped context to stop all wiring goroutines
	if s.shutdownFn != nil {
		s.shutdownFn()
	}

	if s.sweeper != nil {
		if err := s.sweeper.Stop(); err != nil {
			log.Printf("error stopping expiry sweeper: %v", err)
		}
	}

	// Shutdown the HTTP/WS server
	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			log.Printf("error shutting down HTTP server: %v", err)
		}
	}

	// Close database connection
	if sqlDB, err := s.db.DB(); err == nil {
		if cerr := sqlDB.Close(); cerr != nil {
			log.Printf("error closing sql DB: %v", cerr)
		}
	}

	// Close Redis connection
	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			log.Printf("error closing redis: %v", rerr)
		}
	}

	log.Println("Server shutdown complete")
	return nil
}
