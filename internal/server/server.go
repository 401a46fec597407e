// Package server contains HTTP and WebSocket handlers for the application's API endpoints.
package server

import (
	"context"
	"fmt"
	"log"
	"time"

	"campuschat/internal/bootstrap"
	"campuschat/internal/config"
	"campuschat/internal/featureflags"
	"campuschat/internal/middleware"
	"campuschat/internal/models"
	"campuschat/internal/notifications"
	"campuschat/internal/repository"
	"campuschat/internal/service"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
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
	shutdownCtx    context.Context
	shutdownFn     context.CancelFunc

	userRepo       repository.UserRepository
	adminRepo      repository.AdminRepository
	moderationRepo repository.ModerationRepository
	settingsRepo   repository.SettingsRepository

	chatHub  *notifications.ChatHub
	channels *repository.MemoryChannelStore
	sweeper  *service.RetentionSweeper

	featureFlags *featureflags.Manager
	chatService  *service.ChatService
	authService  *service.AuthService
	userService  *service.UserService
	adminService *service.AdminService
}

// NewServer creates a new server instance with all dependencies
func NewServer(cfg *config.Config) (*Server, error) {
	db, rdb, err := bootstrap.InitRuntime(context.Background(), cfg, bootstrap.Options{SeedDemoSettings: true})
	if err != nil {
		return nil, err
	}
	return NewServerWithDeps(cfg, db, rdb)
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// Use this in tests or when a bootstrap layer establishes DB/Redis.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) (*Server, error) {
	if cfg == nil || db == nil {
		return nil, fmt.Errorf("config and database are required")
	}

	ttl := cfg.SettingsCacheTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}

	server := &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		promMiddleware: middleware.InitMetrics("campuschat-api"),
		userRepo:       repository.NewUserRepository(db, redisClient),
		adminRepo:      repository.NewAdminRepository(db),
		moderationRepo: repository.NewModerationRepository(db),
		settingsRepo:   repository.NewSettingsRepository(db, redisClient, ttl),
		chatHub:        notifications.NewChatHub(),
		channels:       repository.NewMemoryChannelStore(),
		featureFlags:   featureflags.NewManager(cfg.FeatureFlags),
	}

	server.sweeper = service.NewRetentionSweeper(server.channels, server.settingsRepo, cfg.RetentionSweepInterval)
	server.chatService = service.NewChatService(
		server.userRepo,
		server.moderationRepo,
		server.settingsRepo,
		server.channels,
		server.chatHub,
		server.featureFlags,
	)
	server.authService = service.NewAuthService(server.userRepo, server.adminRepo, cfg.EmailDomain)
	server.userService = service.NewUserService(server.userRepo, server.moderationRepo, server.settingsRepo)
	server.adminService = service.NewAdminService(server.userRepo, server.adminRepo, server.settingsRepo)

	return server, nil
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	// Panic recovery
	app.Use(recover.New())

	// Request ID for tracing
	app.Use(requestid.New())

	// Server span per request; sets the trace id local read below.
	app.Use(middleware.TracingMiddleware())

	// Context Middleware to propagate Request ID and Trace ID
	app.Use(middleware.ContextMiddleware())

	// Prometheus Metrics
	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	// Security headers
	app.Use(helmet.New())

	app.Use(middleware.StructuredLogger())

	// CORS runs before the limiter so rejected requests still carry CORS headers.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5000,http://127.0.0.1:5000"
	}

	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, Upgrade, Connection, Sec-WebSocket-Key, Sec-WebSocket-Version",
		AllowCredentials: origins != "*",
		MaxAge:           86400,
	}))

	// Global rate limiting (100 requests per minute per IP)
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

	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}

	// Auth routes
	auth := api.Group("/auth")
	auth.Get("/verification-questions", s.GetVerificationQuestions)
	auth.Post("/verify-answers", middleware.RateLimit(
		s.redis, 10, 10*time.Minute, "verify_answers"), s.VerifyAnswers)
	auth.Post("/register", middleware.RateLimit(
		s.redis, 3, 10*time.Minute, "register"), s.Register)
	auth.Post("/login", middleware.RateLimit(
		s.redis, 10, 5*time.Minute, "login"), s.Login)
	auth.Post("/admin/login", middleware.RateLimit(
		s.redis, 10, 5*time.Minute, "admin_login"), s.AdminLogin)
	auth.Post("/logout", s.AuthRequired(), s.Logout)
	auth.Get("/check-session", s.AuthRequired(), s.CheckSession)

	// WebSocket ticket issuance
	api.Post("/ws/ticket", s.AuthRequired(), s.UserRequired(), s.IssueWSTicket)

	ws := api.Group("/ws", s.AuthRequired(), s.UserRequired())
	ws.Get("/chat", s.WebSocketChatHandler())

	// Student routes
	user := api.Group("/user", s.AuthRequired(), s.UserRequired())
	user.Get("/profile", s.GetMyProfile)
	user.Post("/profile", s.UpdateMyProfile)
	user.Get("/faculty-users", s.GetFacultyUsers)
	user.Get("/user/:id", s.GetUserProfile)
	user.Get("/is-blocked/:userId", s.GetIsBlocked)
	user.Get("/settings", s.GetPublicSettings)

	// Admin routes
	admin := api.Group("/admin", s.AuthRequired(), s.AdminRequired())
	admin.Get("/users", s.GetAllUsers)
	admin.Post("/users/:id/toggle-status", s.ToggleUserStatus)
	admin.Get("/reported-users", s.GetReportedUsers)
	admin.Get("/settings", s.GetSettings)
	admin.Post("/settings/:key", s.UpdateSetting)
	admin.Get("/feature-flags", s.GetFeatureFlags)
	admin.Post("/feature-flags/:name", s.UpdateFeatureFlag)

	subAdmins := admin.Group("/sub-admins", s.SuperAdminRequired())
	subAdmins.Get("/", s.GetSubAdmins)
	subAdmins.Post("/", s.CreateSubAdmin)
	subAdmins.Delete("/:id", s.DeleteSubAdmin)
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
		// Tickets and token revocation need Redis.
		redisStatus = "unavailable"
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if dbStatus == "unhealthy" || redisStatus != "healthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overallStatus,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"sessions": s.chatHub.SessionCount(),
		"time":     time.Now(),
	})
}

// App builds the Fiber application with middleware and routes installed.
func (s *Server) App() *fiber.App {
	if s.app != nil {
		return s.app
	}
	app := fiber.New(fiber.Config{
		AppName: "campuschat",
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if fe, ok := err.(*fiber.Error); ok {
				return c.Status(fe.Code).JSON(models.ErrorResponse{Error: fe.Message})
			}
			middleware.Logger.ErrorContext(c.UserContext(), "unhandled error", "error", err)
			return models.RespondWithError(c, fiber.StatusInternalServerError,
				models.NewInternalError(err))
		},
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	s.app = app
	return app
}

// Start starts the retention sweeper and serves HTTP until the app is shut down.
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.shutdownCtx = ctx
	s.shutdownFn = cancel

	app := s.App()
	s.sweeper.Start(s.shutdownCtx)

	log.Printf("Server starting on port %s...", s.config.Port)
	return app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.shutdownFn != nil {
		s.shutdownFn()
	}
	s.sweeper.Stop()

	// Tell clients first so the notice is queued before the listener closes.
	if err := s.chatHub.Shutdown(ctx); err != nil {
		log.Printf("error shutting down %s: %v", s.chatHub.Name(), err)
	}

	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			log.Printf("error shutting down HTTP server: %v", err)
		}
	}

	if sqlDB, err := s.db.DB(); err == nil {
		if cerr := sqlDB.Close(); cerr != nil {
			log.Printf("error closing sql DB: %v", cerr)
		}
	}

	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			log.Printf("error closing redis: %v", rerr)
		}
	}

	log.Println("Server shutdown complete")
	return nil
}
