package payments

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/GreenViva/esiriplus-sub002/domain"
	"github.com/GreenViva/esiriplus-sub002/internal/mocks"
)

func newGatewayForTest() (*MockGatewayImpl, *mocks.FakeScheduler) {
	scheduler := mocks.NewFakeScheduler()
	return NewMockGateway(scheduler, 2*time.Second, zerolog.Nop()), scheduler
}

func TestMockGatewayImpl_InitiateExtension(t *testing.T) {
	ctx := context.Background()

	t.Run("a payment starts pending and settles when the provider calls back", func(t *testing.T) {
		gateway, scheduler := newGatewayForTest()

		paymentID, err := gateway.InitiateExtension(ctx, "cons-1", 1500)
		if err != nil {
			t.Fatalf("InitiateExtension failed: %v", err)
		}
		status, err := gateway.VerifyPayment(ctx, paymentID)
		if err != nil {
			t.Fatalf("VerifyPayment failed: %v", err)
		}
		if status != domain.PaymentPending {
			t.Errorf("status = %q, want pending before the callback", status)
		}

		scheduler.RunAll()

		status, err = gateway.VerifyPayment(ctx, paymentID)
		if err != nil {
			t.Fatalf("VerifyPayment failed: %v", err)
		}
		if status != domain.PaymentSucceeded {
			t.Errorf("status = %q, want succeeded after the callback", status)
		}
	})

	t.Run("re-initiating an open payment returns the same id", func(t *testing.T) {
		gateway, scheduler := newGatewayForTest()

		first, err := gateway.InitiateExtension(ctx, "cons-1", 1500)
		if err != nil {
			t.Fatalf("InitiateExtension failed: %v", err)
		}
		second, err := gateway.InitiateExtension(ctx, "cons-1", 1500)
		if err != nil {
			t.Fatalf("InitiateExtension failed: %v", err)
		}
		if first != second {
			t.Errorf("payment ids differ: %q vs %q", first, second)
		}
		if scheduler.Pending() != 1 {
			t.Errorf("scheduled callbacks = %d, want 1", scheduler.Pending())
		}
	})

	t.Run("a settled payment is not reused for the next extension", func(t *testing.T) {
		gateway, scheduler := newGatewayForTest()

		first, err := gateway.InitiateExtension(ctx, "cons-1", 1500)
		if err != nil {
			t.Fatalf("InitiateExtension failed: %v", err)
		}
		scheduler.RunAll()

		second, err := gateway.InitiateExtension(ctx, "cons-1", 1500)
		if err != nil {
			t.Fatalf("InitiateExtension failed: %v", err)
		}
		if first == second {
			t.Error("settled payment id was handed out again")
		}
	})
}

func TestMockGatewayImpl_VerifyPayment(t *testing.T) {
	gateway, _ := newGatewayForTest()

	if _, err := gateway.VerifyPayment(context.Background(), "pay_unknown"); err == nil {
		t.Error("unknown payment verified")
	}
}

func TestMockGatewayImpl_Abandon(t *testing.T) {
	ctx := context.Background()
	gateway, scheduler := newGatewayForTest()

	paymentID, err := gateway.InitiateExtension(ctx, "cons-1", 1500)
	if err != nil {
		t.Fatalf("InitiateExtension failed: %v", err)
	}
	gateway.Abandon(paymentID)
	// The late provider callback must not resurrect an abandoned payment.
	scheduler.RunAll()

	status, err := gateway.VerifyPayment(ctx, paymentID)
	if err != nil {
		t.Fatalf("VerifyPayment failed: %v", err)
	}
	if status != domain.PaymentFailed {
		t.Errorf("status = %q, want failed", status)
	}
}
