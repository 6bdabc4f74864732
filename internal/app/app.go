package app

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/GreenViva/esiriplus-sub002/internal/config"
)

// Run builds the full dependency graph, seeds default policies, and serves
// until SIGINT/SIGTERM, then drains in-flight requests and the audit sink.
func Run(cfg *config.Config) error {
	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", "esiriplus").Logger()

	if cfg.GinMode != "" {
		gin.SetMode(cfg.GinMode)
	}

	container, err := BuildContainer(cfg, logger)
	if err != nil {
		return err
	}
	defer container.Close()

	seedPolicies(container, logger)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           container.Router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}

func seedPolicies(c *Container, logger zerolog.Logger) {
	policies := c.PolicySvc.GetPolicies()
	if len(policies) > 0 {
		return
	}
	defaults := [][3]string{
		{"role_admin", "/admin/*", "(GET|POST|DELETE)"},
		{"role_doctor", "/consultation-request", "POST"},
		{"role_doctor", "/consultation", "POST"},
		{"role_doctor", "/consultation/*", "GET"},
		{"role_doctor", "/doctor/availability", "POST"},
	}
	for _, p := range defaults {
		if err := c.PolicySvc.AddPolicy(p[0], p[1], p[2]); err != nil {
			logger.Warn().Err(err).Str("role", p[0]).Str("path", p[1]).Msg("policy seed failed")
		}
	}
	logger.Info().Msg("seeded default route policies")
}
