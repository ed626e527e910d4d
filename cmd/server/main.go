package main

import (
	"context"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"ceramica-booking/internal/auth"
	"ceramica-booking/internal/calendar"
	"ceramica-booking/internal/config"
	"ceramica-booking/internal/logging"
	"ceramica-booking/internal/metrics"
	"ceramica-booking/internal/notify"
	"ceramica-booking/internal/reservation"
	"ceramica-booking/internal/server"
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

	if cfg.DatabaseURL == "" {
		logger.Fatal("DATABASE_URL required")
	}
	if cfg.JWTSecret == "" {
		logger.Fatal("JWT_HMAC_SECRET required")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("failed to connect to db", zap.Error(err))
	}
	defer pool.Close()

	store := reservation.NewStore(pool)
	if err := store.EnsureSchema(ctx); err != nil {
		logger.Fatal("schema setup failed", zap.Error(err))
	}

	var sender notify.EmailSender = notify.NewStubEmailSender(logger)
	if sg := notify.NewSendGridSender(notify.SendGridConfig{
		APIKey:    cfg.SendGridAPIKey,
		FromEmail: cfg.SendGridFromEmail,
		FromName:  cfg.SendGridFromName,
	}, logger); sg != nil {
		sender = sg
	} else {
		logger.Warn("SENDGRID_API_KEY not set, instructor e-mails are only logged")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	opts := []reservation.ServiceOption{reservation.WithMetrics(metrics.NewReservationMetrics(reg))}
	publisher, err := calendar.NewPublisher(ctx, calendar.Config{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RefreshToken: cfg.CalendarRefreshToken,
		Timezone:     cfg.CalendarTimezone,
	}, logger)
	switch {
	case err != nil:
		logger.Warn("calendar sync disabled", zap.Error(err))
	case publisher != nil:
		opts = append(opts, reservation.WithCalendar(publisher))
	}

	svc := reservation.NewService(store, notify.NewInstructorNotifier(sender), logger, opts...)

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
	reservation.NewHandlers(svc, logger).Register(router)

	if err := server.Run(router, cfg.Port, logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}
