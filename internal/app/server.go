// internal/app/server.go
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"stocksense-service/internal/config"
	"stocksense-service/internal/db"
	authHandler "stocksense-service/internal/handlers/auth"
	dashboardHandler "stocksense-service/internal/handlers/dashboard"
	rtHandler "stocksense-service/internal/handlers/realtime"
	"stocksense-service/internal/middleware"
	"stocksense-service/internal/pkg/jwt"
	"stocksense-service/internal/pkg/session"
	"stocksense-service/internal/realtime"
	"stocksense-service/internal/repository/postgres"
	authUsecase "stocksense-service/internal/service/auth"
	"stocksense-service/internal/service/email"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Server struct {
	cfg    config.AppConfig
	engine *gin.Engine
	logger *zap.Logger
	http   *http.Server
}

func NewServer() (*Server, error) {
	cfg := config.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}

	gin.SetMode(gin.ReleaseMode)
	return &Server{cfg: cfg, engine: gin.New(), logger: logger}, nil
}

func (s *Server) Start(ctx context.Context) error {
	// ----- PostgreSQL -----
	pool, err := db.ConnectDB(ctx, s.cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	// ----- Redis -----
	redisClient, err := db.NewRedisClient(db.RedisConfig{
		Addr:     s.cfg.RedisAddr,
		Password: s.cfg.RedisPass,
		DB:       s.cfg.RedisDB,
		PoolSize: 10,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}
	s.logger.Info("redis connected", zap.String("addr", s.cfg.RedisAddr))

	// ----- JWT Manager -----
	jwtManager, err := jwt.LoadAndBuild(s.cfg.JWT)
	if err != nil {
		return fmt.Errorf("failed to load JWT manager: %w", err)
	}

	// ----- Repositories -----
	authRepo := postgres.NewAuthRepository(pool)
	profileRepo := postgres.NewProfileRepository(pool)

	// ----- Session Manager, Rate Limiter, Broker -----
	sessionManager := session.NewManager(redisClient, authRepo, s.logger)
	rateLimiter := session.NewRateLimiter(redisClient)
	broker := session.NewBroker(redisClient, s.logger)

	// ----- Email -----
	var mailer authUsecase.Mailer
	if s.cfg.SMTPHost != "" {
		mailer = email.NewSender(
			s.cfg.SMTPHost,
			s.cfg.SMTPPort,
			s.cfg.SMTPUser,
			s.cfg.SMTPPass,
			s.cfg.SMTPFromName,
			s.cfg.SMTPSecure,
		)
	}
	emailHelper := authUsecase.NewEmailHelper(mailer, s.cfg.BaseURL, s.logger)

	// ----- Auth Service -----
	authService := authUsecase.NewAuthService(
		authRepo,
		profileRepo,
		jwtManager,
		sessionManager,
		rateLimiter,
		broker,
		emailHelper,
		s.logger,
	)

	// ----- Admin bootstrap -----
	bootstrapCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	err = authService.EnsureAdminExists(bootstrapCtx, s.cfg.AdminEmail, s.cfg.AdminPassword, s.cfg.AdminName)
	cancel()
	if err != nil {
		// Startup continues; admin routes just have nobody to use them.
		s.logger.Error("failed to bootstrap admin account", zap.Error(err))
	}

	// ----- Realtime hub -----
	hub := realtime.NewHub(authService, broker, s.cfg.StartupCheckTimeout, s.logger)
	go hub.Run(ctx)

	// ----- Handlers -----
	authHandlerInst := authHandler.NewAuthHandler(authService, s.logger)
	dashboardHandlerInst := dashboardHandler.NewDashboardHandler(authService, s.logger)
	wsHandlerInst := rtHandler.NewWebSocketHandler(hub, s.logger)

	// ----- Middlewares -----
	authMiddleware := middleware.NewAuthMiddleware(authService)

	s.engine.Use(
		middleware.RecoveryMiddleware(s.logger),
		middleware.LoggingMiddleware(s.logger),
		middleware.CORSMiddleware(s.cfg.AllowedOrigin),
	)

	// ----- Router -----
	SetupRouter(s.engine, &Handlers{
		AuthHandler:      authHandlerInst,
		DashboardHandler: dashboardHandlerInst,
		WSHandler:        wsHandlerInst,
		AuthMiddleware:   authMiddleware,
	})

	// ----- Start HTTP -----
	s.http = &http.Server{
		Addr:    s.cfg.HTTPAddr,
		Handler: s.engine,
	}

	s.logger.Info("server listening", zap.String("addr", s.cfg.HTTPAddr))
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops accepting connections and drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	defer s.logger.Sync()
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}
