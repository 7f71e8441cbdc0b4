package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/suvankar11223/chatzi-sub000/internal/config"
	"github.com/suvankar11223/chatzi-sub000/internal/database"
	"github.com/suvankar11223/chatzi-sub000/internal/handlers"
	"github.com/suvankar11223/chatzi-sub000/internal/middleware"
	"github.com/suvankar11223/chatzi-sub000/internal/realtime"
	"github.com/suvankar11223/chatzi-sub000/internal/routes"
	"github.com/suvankar11223/chatzi-sub000/internal/services"
	"github.com/suvankar11223/chatzi-sub000/internal/storage"
	"github.com/suvankar11223/chatzi-sub000/pkg/logger"
	"github.com/suvankar11223/chatzi-sub000/pkg/utils"
	"gorm.io/gorm"
)

const tokenTTL = 7 * 24 * time.Hour

func main() {
	// 0. Load Config & Initialize Logger
	cfg := config.LoadConfig()
	logger.Init(cfg.Env)
	logger.Info().Str("environment", cfg.Env).Msg("Starting Chatzi Backend...")

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	if cfg.JWTSecret == "" {
		logger.Fatal().Msg("JWT_SECRET is required")
	}

	ctx := context.Background()

	// 1. Connect Database
	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to database")
	}
	if err := database.Migrate(db); err != nil {
		logger.Fatal().Err(err).Msg("Failed to migrate database")
	}
	logger.Info().Msg("Database ready")

	// 2. Redis backs the per-user message rate limit. Without it chat runs
	// unthrottled.
	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb, err = database.NewRedis(ctx, cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			logger.Warn().Err(err).Msg("Redis unavailable, socket rate limiting disabled")
		} else {
			defer rdb.Close()
		}
	}
	limiter := database.NewRedisLimiter(rdb, cfg.MessageRatePerMinute, time.Minute)

	// 3. Core services
	tokens := utils.NewJWTVerifier(cfg.JWTSecret, tokenTTL)
	hosts := cfg.AllowedAttachmentHosts()

	hub := realtime.NewHub()
	participants := services.NewParticipants(db)
	membership := realtime.NewMembership(hub, participants)
	directory := services.NewDirectory(db, participants, hub, membership, hosts)
	pipeline := services.NewPipeline(db, participants, hub, hosts)
	notifier := services.NewNotifier(db, hub)

	issuer := services.NewLiveKitIssuer(cfg.LiveKitAPIKey, cfg.LiveKitAPISecret)
	if !issuer.Configured() {
		logger.Warn().Msg("LiveKit credentials missing, calls will be refused")
	}
	calls := services.NewCallService(db, participants, hub, hub, issuer, cfg.CallTokenTTL())
	users := services.NewUsers(db, hosts)

	var uploader *storage.Uploader
	if s3Client, err := storage.NewR2Client(ctx, cfg); err != nil {
		logger.Warn().Err(err).Msg("Object storage disabled")
	} else {
		uploader = storage.NewUploader(s3Client, cfg.R2BucketName, cfg.R2PublicURL)
	}

	// 4. Socket.io
	socketHandler := &handlers.SocketHandler{
		Hub:       hub,
		Gate:      realtime.NewGate(tokens),
		Rooms:     membership,
		Directory: directory,
		Messages:  pipeline,
		Calls:     calls,
		Notifier:  notifier,
		Limiter:   limiter,
	}
	socketServer := handlers.InitSocketServer(socketHandler, middleware.AllowedOrigin(cfg.FrontendURL))
	go func() {
		if err := socketServer.Serve(); err != nil {
			logger.Error().Err(err).Msg("Socket server stopped")
		}
	}()
	defer socketServer.Close()

	// 5. Setup Router
	r := gin.New()

	r.Use(middleware.LoggingMiddleware())
	r.Use(middleware.ErrorHandlerMiddleware())
	r.Use(gin.Recovery())
	r.Use(middleware.CORSMiddleware(cfg.FrontendURL))
	r.Use(middleware.SecurityHeaders())

	// Exempt /socket.io from rate limiting
	r.Use(func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/socket.io") {
			c.Next()
			return
		}
		middleware.GeneralRateLimit()(c)
	})

	api := r.Group("/api")
	{
		auth := api.Group("/auth")
		auth.Use(middleware.AuthRateLimit())
		routes.RegisterAuthRoutes(auth, &handlers.AuthHandler{Users: users, Tokens: tokens})

		protected := api.Group("")
		protected.Use(middleware.AuthMiddleware(tokens))

		routes.RegisterUserRoutes(protected, &handlers.UserHandler{Users: users, Hub: hub})
		routes.RegisterChatRoutes(protected, &handlers.ChatHandler{Directory: directory, Messages: pipeline})
		routes.RegisterCallRoutes(protected, &handlers.CallHandler{Calls: calls})
		routes.RegisterUploadRoutes(protected, &handlers.UploadHandler{Uploader: uploader})
	}

	r.GET("/health", healthCheck(db, rdb))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/socket.io/*any", handlers.SocketRoute(socketServer))
	r.POST("/socket.io/*any", handlers.SocketRoute(socketServer))

	// 6. Start Server with graceful shutdown
	srv := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     r,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		logger.Info().Str("port", cfg.Port).Str("env", cfg.Env).Msg("Server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("Shutting down server gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Server forced to shutdown")
	}

	logger.Info().Msg("Server exited gracefully")
}

func healthCheck(db *gorm.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		dbStatus := "ok"
		if err := database.Ping(db); err != nil {
			dbStatus = "error"
		}

		redisStatus := "not configured"
		if rdb != nil {
			redisStatus = "ok"
			if err := rdb.Ping(c.Request.Context()).Err(); err != nil {
				redisStatus = "error"
			}
		}

		status := "ok"
		if dbStatus != "ok" || redisStatus == "error" {
			status = "degraded"
		}

		c.JSON(http.StatusOK, gin.H{
			"status": status,
			"checks": gin.H{
				"database": dbStatus,
				"redis":    redisStatus,
			},
		})
	}
}
