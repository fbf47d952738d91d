// internal/app/server.go
package app

import (
	"context"
	"fmt"

	"coupon-service/internal/cache"
	"coupon-service/internal/config"
	"coupon-service/internal/db"
	couponHandler "coupon-service/internal/handlers/coupon"
	"coupon-service/internal/middleware"
	"coupon-service/internal/pkg/jwt"
	"coupon-service/internal/repository/postgres"
	couponService "coupon-service/internal/service/coupon"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Server struct {
	cfg    config.AppConfig
	engine *gin.Engine
	logger *zap.Logger
}

func NewServer() *Server {
	cfg := config.Load()
	engine := gin.New()
	return &Server{cfg: cfg, engine: engine}
}

func (s *Server) Start() error {
	ctx := context.Background()

	// ----- Logger -----
	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer logger.Sync()
	s.logger = logger

	// ----- PostgreSQL -----
	pool, err := db.ConnectDB(ctx, s.cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	logger.Info("connected to PostgreSQL")

	// ----- Redis -----
	redisClient, err := db.NewRedisClient(db.RedisConfig{
		Addr:     s.cfg.RedisAddr,
		Password: s.cfg.RedisPass,
		DB:       s.cfg.RedisDB,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}
	logger.Info("connected to Redis")

	// ----- JWT Manager -----
	tokenManager, err := jwt.NewManager(s.cfg.JWT)
	if err != nil {
		return fmt.Errorf("failed to build token manager: %w", err)
	}

	// ----- Repositories -----
	couponRepo := postgres.NewCouponRepository(pool)
	userCouponRepo := postgres.NewUserCouponRepository(pool)
	redemptionRepo := postgres.NewRedemptionRepository(pool)
	ledgerStore := postgres.NewLedgerStore(pool, redemptionRepo)

	// ----- Services -----
	couponCache := cache.NewCouponCache(redisClient, s.cfg.CouponCacheTTL, logger)
	ledger := couponService.NewLedger(ledgerStore, logger, s.cfg.LedgerMaxAttempts, s.cfg.LedgerRetryBackoff)
	svc := couponService.NewService(couponRepo, userCouponRepo, redemptionRepo, ledger, couponCache, logger)

	// ----- Handlers & Middleware -----
	handler := couponHandler.NewCouponHandler(svc)
	authMiddleware := middleware.NewAuthMiddleware(tokenManager)

	s.engine.Use(
		middleware.RecoveryMiddleware(logger),
		middleware.LoggingMiddleware(logger),
		middleware.CORSMiddleware(),
	)

	SetupRouter(s.engine, &Handlers{
		CouponHandler:  handler,
		AuthMiddleware: authMiddleware,
	})

	// ----- Start HTTP -----
	logger.Info("server starting", zap.String("addr", s.cfg.HTTPAddr))
	return s.engine.Run(s.cfg.HTTPAddr)
}
