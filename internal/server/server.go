// Package server binds the engine's operations to HTTP routes.
package server

import (
	"context"
	"log/slog"
	"time"

	_ "github.com/v1mal/open-scene-engine-sub000/docs" // swagger docs
	"github.com/v1mal/open-scene-engine-sub000/internal/bootstrap"
	"github.com/v1mal/open-scene-engine-sub000/internal/config"
	"github.com/v1mal/open-scene-engine-sub000/internal/featureflags"
	"github.com/v1mal/open-scene-engine-sub000/internal/middleware"
	"github.com/v1mal/open-scene-engine-sub000/internal/models"
	"github.com/v1mal/open-scene-engine-sub000/internal/ratelimit"
	"github.com/v1mal/open-scene-engine-sub000/internal/service"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/swagger"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const (
	searchRateLimit  = 10
	searchRateWindow = time.Minute
)

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	runtime        *bootstrap.Runtime
	db             *gorm.DB
	redis          *redis.Client
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	limiter        *ratelimit.Limiter
	featureFlags   *featureflags.Manager
	svc            *service.Services
}

// NewServer connects to storage and builds a server over it.
func NewServer(cfg *config.Config) (*Server, error) {
	rt, err := bootstrap.InitRuntime(cfg, bootstrap.Options{ApplySchema: true})
	if err != nil {
		return nil, err
	}
	return newServer(rt), nil
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// Use this in tests or when a bootstrap layer establishes DB/Redis itself.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) (*Server, error) {
	return newServer(bootstrap.NewRuntime(cfg, db, nil, redisClient)), nil
}

func newServer(rt *bootstrap.Runtime) *Server {
	middleware.InitMiddleware(rt.Config)
	return &Server{
		config:         rt.Config,
		runtime:        rt,
		db:             rt.DB,
		redis:          rt.Redis,
		promMiddleware: middleware.InitMetrics("community-api"),
		limiter:        rt.Limiter,
		featureFlags:   rt.Flags,
		svc:            rt.Services,
	}
}

// Services exposes the wired services to the process that owns the server.
func (s *Server) Services() *service.Services {
	return s.svc
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())

	// Tracing runs before the context middleware so the trace id reaches
	// the request context.
	app.Use(middleware.TracingMiddleware())
	app.Use(middleware.ContextMiddleware())

	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	app.Use(helmet.New())
	app.Use(middleware.StructuredLogger())

	// CORS runs before anything that can short-circuit so error responses
	// still carry the headers.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000,http://127.0.0.1:5173"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		ExposeHeaders:    "X-Trace-ID, Retry-After",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	// Coarse per-IP flood guard. The per-operation buckets live in the
	// services.
	app.Use(limiter.New(limiter.Config{
		Max:        300,
		Expiration: 1 * time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return !s.config.RateLimitEnabled || c.Method() == fiber.MethodOptions
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return ratelimit.NormalizeAddr(c.IP())
		},
		LimitReached: func(c *fiber.Ctx) error {
			return models.RespondWithError(c, fiber.StatusTooManyRequests,
				models.NewRateLimitedError("requests"))
		},
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)
	app.Get("/health", s.ReadinessCheck)

	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}

	api := app.Group("/api")
	api.Get("/swagger/*", swagger.HandlerDefault)

	// Specific /:id/:resource routes are registered before the generic /:id.
	posts := api.Group("/posts")
	posts.Get("/", middleware.AuthOptional, s.GetFeed)
	posts.Get("/search", middleware.AuthOptional,
		middleware.RateLimit(s.limiter, "search", searchRateLimit, searchRateWindow), s.SearchPosts)
	posts.Post("/", middleware.AuthRequired, s.CreatePost)
	posts.Get("/:id/comments", middleware.AuthOptional, s.GetComments)
	posts.Get("/:id/comments/:commentId/children", middleware.AuthOptional, s.GetCommentChildren)
	posts.Post("/:id/comments", middleware.AuthRequired, s.CreateComment)
	posts.Post("/:id/vote", middleware.AuthRequired, s.VotePost)
	posts.Put("/:id/vote", middleware.AuthRequired, s.VotePost)
	posts.Put("/:id/event", middleware.AuthRequired, s.UpsertEvent)
	posts.Delete("/:id/event", middleware.AuthRequired, s.DeleteEvent)
	posts.Post("/:id/report", middleware.AuthRequired, s.ReportPost)
	posts.Delete("/:id/reports", middleware.AuthRequired, s.ClearReports)
	posts.Post("/:id/lock", middleware.AuthRequired, s.LockPost)
	posts.Post("/:id/sticky", middleware.AuthRequired, s.StickyPost)
	posts.Post("/:id/save", middleware.AuthRequired, s.SavePost)
	posts.Delete("/:id/save", middleware.AuthRequired, s.UnsavePost)
	posts.Get("/:id", middleware.AuthOptional, s.GetPost)
	posts.Put("/:id", middleware.AuthRequired, s.UpdatePost)
	posts.Delete("/:id", middleware.AuthRequired, s.DeletePost)

	comments := api.Group("/comments", middleware.AuthRequired)
	comments.Post("/:id/vote", s.VoteComment)
	comments.Delete("/:id", s.DeleteComment)

	communities := api.Group("/communities")
	communities.Get("/", middleware.AuthOptional, s.GetCommunities)
	communities.Post("/", middleware.AuthRequired, s.CreateCommunity)
	communities.Get("/:id/posts", middleware.AuthOptional, s.GetCommunityFeed)
	communities.Post("/:id/enable", middleware.AuthRequired, s.EnableCommunity)
	communities.Post("/:id/disable", middleware.AuthRequired, s.DisableCommunity)
	communities.Get("/:slug", middleware.AuthOptional, s.GetCommunityBySlug)
	communities.Put("/:id", middleware.AuthRequired, s.UpdateCommunity)
	communities.Delete("/:id", middleware.AuthRequired, s.DeleteCommunity)

	moderation := api.Group("/moderation", middleware.AuthRequired)
	moderation.Post("/bans", s.BanUser)
	moderation.Delete("/bans", s.UnbanUser)
	moderation.Get("/logs", s.GetModerationLogs)

	api.Get("/users/me/saved", middleware.AuthRequired, s.GetSavedPosts)

	admin := api.Group("/admin", middleware.AuthRequired, s.AdminRequired())
	admin.Get("/feature-flags", s.GetFeatureFlags)
	admin.Post("/maintenance/reconcile", s.ReconcileAggregates)
	admin.Post("/maintenance/cleanup", s.CleanupOrphans)
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck pings the database and Redis. Redis is optional: without
// it the cache passes through and the limiter applies its failure policy,
// so only the database gates readiness.
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
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
		redisStatus = "unavailable"
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	switch {
	case dbStatus != "healthy":
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	case redisStatus != "healthy":
		overallStatus = "degraded"
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

// AdminRequired rejects callers without the admin role. It must run after
// AuthRequired.
func (s *Server) AdminRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if middleware.ActorFrom(c).Role != models.RoleAdmin {
			return models.RespondWithError(c, fiber.StatusForbidden,
				models.NewForbiddenError("Admin access required"))
		}
		return c.Next()
	}
}

// NewApp returns a Fiber app whose error handler renders the standard
// error body.
func NewApp() *fiber.App {
	return fiber.New(fiber.Config{
		AppName:   "Community API",
		BodyLimit: 1 * 1024 * 1024,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if fe, ok := err.(*fiber.Error); ok {
				return models.RespondWithError(c, fe.Code, &models.AppError{
					Code:    codeForStatus(fe.Code),
					Message: fe.Message,
				})
			}
			middleware.Logger.ErrorContext(c.UserContext(), "unhandled error", slog.String("error", err.Error()))
			return models.RespondWithError(c, fiber.StatusInternalServerError, models.NewInternalError(err))
		},
	})
}

// Start builds the app and listens on the configured port.
func (s *Server) Start() error {
	app := NewApp()
	s.app = app

	s.SetupMiddleware(app)
	s.SetupRoutes(app)

	middleware.Logger.Info("Server starting", slog.String("port", s.config.Port))
	return app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			middleware.Logger.Error("error shutting down HTTP server", slog.String("error", err.Error()))
		}
	}

	if s.runtime != nil {
		if err := s.runtime.Close(); err != nil {
			middleware.Logger.Error("error closing connections", slog.String("error", err.Error()))
		}
	}

	middleware.Logger.Info("Server shutdown complete")
	return nil
}
