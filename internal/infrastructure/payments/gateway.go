package payments

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/GreenViva/esiriplus-sub002/domain"
)

// MockGatewayImpl implements domain.PaymentGateway for environments without
// a live provider. InitiateExtension is idempotent per consultation and
// extension ordinal; the provider-side completion is simulated by a task on
// the injected scheduler, never an ambient timer, so tests advance time
// deterministically.
type MockGatewayImpl struct {
	mu            sync.Mutex
	payments      map[string]domain.PaymentStatus
	initiated     map[string]string // idempotency key -> payment id
	scheduler     domain.Scheduler
	callbackDelay time.Duration
	logger        zerolog.Logger
}

// NewMockGateway creates a new mock payment gateway.
func NewMockGateway(scheduler domain.Scheduler, callbackDelay time.Duration, logger zerolog.Logger) *MockGatewayImpl {
	return &MockGatewayImpl{
		payments:      make(map[string]domain.PaymentStatus),
		initiated:     make(map[string]string),
		scheduler:     scheduler,
		callbackDelay: callbackDelay,
		logger:        logger.With().Str("component", "payment_gateway").Logger(),
	}
}

// InitiateExtension implements domain.PaymentGateway.
func (g *MockGatewayImpl) InitiateExtension(ctx context.Context, consultationID string, amount int64) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	key := fmt.Sprintf("%s:%d", consultationID, amount)
	if paymentID, ok := g.initiated[key]; ok {
		if g.payments[paymentID] == domain.PaymentPending {
			return paymentID, nil
		}
	}

	paymentID := "pay_" + uuid.NewString()
	g.payments[paymentID] = domain.PaymentPending
	g.initiated[key] = paymentID

	g.scheduler.Schedule(g.callbackDelay, func() {
		g.mu.Lock()
		defer g.mu.Unlock()
		if g.payments[paymentID] == domain.PaymentPending {
			g.payments[paymentID] = domain.PaymentSucceeded
			g.logger.Info().Str("payment_id", paymentID).Msg("simulated provider completion")
		}
	})

	g.logger.Info().
		Str("payment_id", paymentID).
		Str("consultation_id", consultationID).
		Int64("amount", amount).
		Msg("extension payment initiated")
	return paymentID, nil
}

// VerifyPayment implements domain.PaymentGateway.
func (g *MockGatewayImpl) VerifyPayment(ctx context.Context, paymentID string) (domain.PaymentStatus, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	status, ok := g.payments[paymentID]
	if !ok {
		return domain.PaymentFailed, fmt.Errorf("unknown payment %s", paymentID)
	}
	return status, nil
}

// Abandon marks a pending payment failed so a cancelled grace period cannot
// later confirm it.
func (g *MockGatewayImpl) Abandon(paymentID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.payments[paymentID] == domain.PaymentPending {
		g.payments[paymentID] = domain.PaymentFailed
	}
}
