// Package server contains the HTTP handlers for the comment API.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"commentservice/internal/auth"
	"commentservice/internal/cache"
	"commentservice/internal/config"
	"commentservice/internal/database"
	"commentservice/internal/middleware"
	"commentservice/internal/models"
	"commentservice/internal/notifications"
	"commentservice/internal/repository"
	"commentservice/internal/service"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
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
	verifier       middleware.TokenVerifier
	events         *notifications.Dispatcher
	commentService *service.CommentService
	likeService    *service.LikeService
}

// NewServer creates a new server instance with all dependencies
func NewServer(cfg *config.Config) (*Server, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	redisClient := cache.Connect(cfg.RedisURL)

	verifier, err := NewVerifier(cfg)
	if err != nil {
		return nil, err
	}

	return NewServerWithDeps(cfg, db, redisClient, verifier, NewDispatcher(cfg, redisClient)), nil
}

// NewVerifier builds the token validator backed by a JWKS cache.
func NewVerifier(cfg *config.Config) (*auth.Validator, error) {
	keys := auth.NewKeySetCache(auth.NewHTTPFetcher(nil),
		auth.WithTTL(cfg.JWKSCacheTTL),
		auth.WithFetchTimeout(cfg.JWKSFetchTimeout),
		auth.WithCacheLogger(middleware.Logger),
	)
	v, err := auth.NewValidator(keys, auth.ValidatorConfig{
		Issuer:         cfg.Issuer(),
		ClientID:       cfg.CognitoClientID,
		TrustedIssuers: cfg.TrustedIssuerList(),
		Leeway:         cfg.ClockSkew,
		Logger:         middleware.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("token validator: %w", err)
	}
	return v, nil
}

// NewDispatcher wires the event sinks enabled by cfg.
func NewDispatcher(cfg *config.Config, redisClient *redis.Client) *notifications.Dispatcher {
	var sinks []notifications.Sink
	if redisClient != nil {
		sinks = append(sinks, notifications.NewRedisPublisher(redisClient))
	}
	if brokers := cfg.KafkaBrokerList(); len(brokers) > 0 {
		sinks = append(sinks, notifications.NewKafkaPublisher(
			notifications.NewKafkaWriter(brokers, cfg.KafkaTopic)))
	}
	if cfg.PostServiceURL != "" {
		sinks = append(sinks, notifications.NewPostServiceNotifier(cfg.PostServiceURL, nil))
	}
	return notifications.NewDispatcher(notifications.DefaultSinkTimeout, sinks...)
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// redisClient and events may be nil.
func NewServerWithDeps(
	cfg *config.Config,
	db *gorm.DB,
	redisClient *redis.Client,
	verifier middleware.TokenVerifier,
	events *notifications.Dispatcher,
) *Server {
	if events == nil {
		events = notifications.NewDispatcher(0)
	}
	commentRepo := repository.NewCommentRepository(db)
	likeRepo := repository.NewLikeRepository(db)

	return &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		promMiddleware: middleware.InitMetrics("comment-service"),
		verifier:       verifier,
		events:         events,
		commentService: service.NewCommentService(commentRepo, events),
		likeService:    service.NewLikeService(commentRepo, likeRepo, events),
	}
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())

	// Tracing runs first so the trace id is available to the context middleware.
	app.Use(middleware.TracingMiddleware())
	app.Use(middleware.ContextMiddleware())

	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	app.Use(helmet.New())
	app.Use(middleware.StructuredLogger())

	// CORS must precede anything that can short-circuit so error responses carry the headers.
	app.Use(cors.New(cors.Config{
		AllowOrigins: s.config.AllowedOrigins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET,POST,PATCH,DELETE,OPTIONS",
		MaxAge:       86400,
	}))

	app.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return models.RespondWithError(c, fiber.StatusTooManyRequests,
				&models.AppError{Code: models.CodeRateLimited, Message: "Too many requests, please try again later"})
		},
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	app.Get("/health", s.HealthCheck)
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)

	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}

	api := app.Group("/api/v1")
	api.Get("/metrics/dashboard", monitor.New(monitor.Config{
		Title: "Comment Service Metrics",
	}))

	requireAuth := middleware.AuthRequired(s.verifier)

	posts := api.Group("/posts")
	posts.Get("/:postId/comments", s.ListPostComments)
	posts.Post("/:postId/comments", requireAuth, middleware.RateLimit(
		s.redis, 10, time.Minute, "create_comment"), s.CreateComment)

	ws := api.Group("/ws", requireUpgrade)
	ws.Get("/posts/:postId/comments", s.CommentStream())

	comments := api.Group("/comments", requireAuth)
	// Specific routes before /:commentId.
	comments.Get("/my", s.GetMyComments)
	comments.Post("/:commentId/like", middleware.RateLimit(
		s.redis, 30, time.Minute, "toggle_like"), s.ToggleLike)
	comments.Get("/:commentId/like/status", s.GetLikeStatus)
	comments.Patch("/:commentId", s.UpdateComment)
	comments.Delete("/:commentId", s.DeleteComment)
}

// errorHandler is the outermost catch-all. Fiber's own errors keep their
// status; anything else becomes a generic 500 with the detail logged.
func errorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) && fe.Code < fiber.StatusInternalServerError {
		code := "BAD_REQUEST"
		switch fe.Code {
		case fiber.StatusNotFound:
			code = models.CodeNotFound
		case fiber.StatusMethodNotAllowed:
			code = "METHOD_NOT_ALLOWED"
		case fiber.StatusUpgradeRequired:
			code = "UPGRADE_REQUIRED"
		}
		return models.RespondWithError(c, fe.Code, &models.AppError{Code: code, Message: fe.Message})
	}

	middleware.Logger.ErrorContext(c.UserContext(), "unhandled error",
		slog.String("path", c.Path()),
		slog.String("error", err.Error()),
	)
	return models.RespondWithError(c, fiber.StatusInternalServerError, models.NewInternalError(err))
}

// App returns the configured Fiber app, building it on first use.
func (s *Server) App() *fiber.App {
	if s.app != nil {
		return s.app
	}
	app := fiber.New(fiber.Config{
		AppName:      "Comment Service",
		ErrorHandler: errorHandler,
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	s.app = app
	return app
}

// Start starts the server
func (s *Server) Start() error {
	app := s.App()
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

	if err := s.events.Close(); err != nil {
		middleware.Logger.Error("error closing event sinks", slog.String("error", err.Error()))
	}

	if sqlDB, err := s.db.DB(); err == nil {
		if cerr := sqlDB.Close(); cerr != nil {
			middleware.Logger.Error("error closing sql DB", slog.String("error", cerr.Error()))
		}
	}

	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			middleware.Logger.Error("error closing redis", slog.String("error", rerr.Error()))
		}
	}

	middleware.Logger.Info("Server shutdown complete")
	return nil
}
