package app

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/GreenViva/esiriplus-sub002/domain"
	"github.com/GreenViva/esiriplus-sub002/internal/config"
	httpx "github.com/GreenViva/esiriplus-sub002/internal/http"
	"github.com/GreenViva/esiriplus-sub002/internal/http/handlers"
	"github.com/GreenViva/esiriplus-sub002/internal/http/middleware"
	"github.com/GreenViva/esiriplus-sub002/internal/infrastructure/audit"
	"github.com/GreenViva/esiriplus-sub002/internal/infrastructure/auth"
	"github.com/GreenViva/esiriplus-sub002/internal/infrastructure/database"
	"github.com/GreenViva/esiriplus-sub002/internal/infrastructure/identity"
	"github.com/GreenViva/esiriplus-sub002/internal/infrastructure/notifications"
	"github.com/GreenViva/esiriplus-sub002/internal/infrastructure/payments"
	"github.com/GreenViva/esiriplus-sub002/internal/infrastructure/repositories"
	"github.com/GreenViva/esiriplus-sub002/internal/services"
)

// Container holds the wired dependency graph.
type Container struct {
	Router    *gin.Engine
	PolicySvc domain.PolicyService

	auditSink *audit.SinkImpl
}

// Close drains components that buffer work.
func (c *Container) Close() {
	c.auditSink.Close()
}

// BuildContainer wires repositories, services, and handlers.
func BuildContainer(cfg *config.Config, logger zerolog.Logger) (*Container, error) {
	gdb, err := database.Open(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	if err := database.AutoMigrate(gdb); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	cas, err := auth.NewCasbinService(gdb, cfg.CasbinModelPath)
	if err != nil {
		return nil, fmt.Errorf("casbin: %w", err)
	}

	rdb := database.NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err := rdb.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}

	clock := services.NewSystemClock()
	scheduler := services.NewTimerScheduler()
	auditSink := audit.NewSink(logger, 1024)

	hasher := auth.NewSecretHasher(cfg.KDFIterations)
	signer := auth.NewHMACSigner(cfg.TokenSecret, cfg.TokenIssuer)

	sessionRepo := repositories.NewSessionRepository(gdb)
	doctorRepo := repositories.NewDoctorRepository(gdb)
	requestRepo := repositories.NewRequestRepository(gdb)
	consultationRepo := repositories.NewConsultationRepository(gdb)

	idp := identity.NewProvider(cfg.IdentityProviderURL, cfg.IdentityCacheTTL, cfg.StaticStaff)
	verifier := auth.NewCredentialVerifier(signer, sessionRepo, hasher, idp, clock)

	notifier := notifications.NewPushService(cfg.TwilioSID, cfg.TwilioToken, cfg.TwilioFrom, doctorRepo, logger)
	gateway := payments.NewMockGateway(scheduler, cfg.PaymentCallbackDelay, logger)

	limiter := services.NewRateLimiter(rdb.Client, services.RateLimitConfig{
		Window:        cfg.RateLimitWindow,
		MutateLimit:   cfg.MutateLimit,
		RecoveryLimit: cfg.RecoveryLimit,
		ReadLimit:     cfg.ReadLimit,
	}, clock, logger)
	guard := services.NewRecoveryGuard(rdb.Client, cfg.RecoveryLockThreshold, cfg.RecoveryLockWindow)

	tokenSvc := services.NewTokenService(sessionRepo, hasher, signer, auditSink, clock, cfg.AccessTTL, cfg.RefreshCeiling)
	recoverySvc := services.NewRecoveryService(sessionRepo, hasher, signer, guard, auditSink, clock, cfg.AccessTTL, cfg.RefreshCeiling)
	matcherSvc := services.NewMatcherService(requestRepo, consultationRepo, doctorRepo, notifier, auditSink, clock, services.MatcherConfig{
		RequestTTL:             cfg.RequestTTL,
		BaseFee:                cfg.BaseFee,
		DefaultDurationMinutes: cfg.DefaultDurationMinutes,
	}, logger)
	consultationSvc := services.NewConsultationService(consultationRepo, gateway, notifier, auditSink, clock, services.ConsultationConfig{
		ExtensionMinutes: cfg.ExtensionMinutes,
		ExtensionFee:     cfg.ExtensionFee,
		GracePeriod:      cfg.GracePeriod,
	}, logger)
	policySvc := services.NewPolicyService(cas.E)

	sessionH := handlers.NewSessionHandlers(tokenSvc, recoverySvc)
	consultationH := handlers.NewConsultationHandlers(matcherSvc, consultationSvc, consultationRepo, limiter, auditSink)
	doctorH := handlers.NewDoctorHandlers(doctorRepo)
	policyH := handlers.NewPolicyHandlers(policySvc)

	authMW := middleware.NewAuthMW(verifier, auditSink)
	policyMW := middleware.NewPolicyMW(services.NewEnforcerWrapper(cas.E))
	rateMW := middleware.NewRateLimitMW(limiter, auditSink)

	router := httpx.BuildRouter(sessionH, consultationH, doctorH, policyH, authMW, policyMW, rateMW, cfg.AllowedOrigin)

	return &Container{
		Router:    router,
		PolicySvc: policySvc,
		auditSink: auditSink,
	}, nil
}
