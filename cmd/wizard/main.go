package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"ceramica-booking/internal/auth"
	"ceramica-booking/internal/booking"
	"ceramica-booking/internal/config"
	"ceramica-booking/internal/logging"
	"ceramica-booking/internal/metrics"
	"ceramica-booking/internal/reservations"
	"ceramica-booking/internal/server"
	"ceramica-booking/internal/wizard"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger, err := logging.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if cfg.JWTSecret == "" {
		logger.Fatal("JWT_HMAC_SECRET required")
	}

	var (
		store   wizard.Store
		gate    wizard.Gate
		notices wizard.Notifier
		rdb     *redis.Client
	)
	if cfg.UseMemoryStore {
		logger.Warn("USE_MEMORY_STORE set, wizard sessions live in this process only")
		store = wizard.NewMemoryStore(cfg.SessionTTL, nil)
		gate = wizard.NewMemoryGate(nil)
		notices = wizard.NewMemoryNotices()
	} else {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			logger.Fatal("redis unreachable", zap.String("addr", cfg.RedisAddr), zap.Error(err))
		}
		store = wizard.NewRedisStore(rdb, cfg.SessionTTL)
		gate = wizard.NewRedisGate(rdb)
		notices = wizard.NewRedisNotices(rdb, cfg.SessionTTL, logger)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	api := reservations.NewClient(cfg.ReservationsURL, logger)
	ctrl := wizard.NewController(api, store, gate, notices, wizard.Options{
		SuccessCooldown: cfg.SuccessCooldown,
		SubmitLockTTL:   cfg.SubmitLockTTL,
		Metrics:         metrics.NewWizardMetrics(reg),
		Logger:          logger,
	})

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	if err := router.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		logger.Fatal("invalid TRUSTED_PROXIES", zap.Error(err))
	}
	router.Use(gin.Recovery(), server.RequestLogger(logger), server.CORS(cfg.AllowedOrigins))
	router.Use(auth.Middleware(cfg.JWTSecret))

	router.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	limiter := server.NewRateLimiter(cfg.SubmitPerMinute, 3)
	wizard.NewHandler(ctrl, logger).Register(router.Group("/api/wizard"), limiter.Middleware(logger))

	slot := &auth.HandlerSlot{}
	deregister := slot.Register(func(_ context.Context, user booking.User) (string, error) {
		return auth.Issue(cfg.JWTSecret, user, cfg.TokenTTL)
	})
	if google := auth.NewGoogleSignIn(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleRedirectURL, slot, logger); google != nil {
		router.GET("/auth/google", google.AuthHandler)
		router.GET("/auth/google/callback", google.CallbackHandler)
	} else {
		logger.Warn("google sign-in not configured")
	}

	err = server.Run(router, cfg.WizardPort, logger, deregister, func() {
		if rdb != nil {
			_ = rdb.Close()
		}
	})
	if err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}
