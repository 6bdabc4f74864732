package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/GreenViva/esiriplus-sub002/domain"
	"github.com/GreenViva/esiriplus-sub002/internal/mocks"
)

// consultationFixture backs the mock repository with a single in-memory row
// so conditional updates behave like the real store across repeated calls.
type consultationFixture struct {
	row      *domain.Consultation
	gateway  *mocks.MockPaymentGateway
	notifier *mocks.MockNotifier
	sink     *mocks.MockAuditSink
	clock    *mocks.FakeClock
	markers  []string
	svc      domain.ConsultationService
}

func newConsultationFixture(t *testing.T) *consultationFixture {
	t.Helper()
	clock := mocks.NewFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	f := &consultationFixture{
		row: &domain.Consultation{
			ID:                      "cons-1",
			PatientSessionID:        "sess-1",
			DoctorID:                "doc-1",
			ServiceType:             "general",
			ConsultationFee:         3000,
			Status:                  domain.ConsultationActive,
			ScheduledEndAt:          clock.Now().Add(30 * time.Minute),
			OriginalDurationMinutes: 30,
			SessionStartTime:        clock.Now(),
		},
		gateway:  mocks.NewMockPaymentGateway(),
		notifier: mocks.NewMockNotifier(),
		sink:     mocks.NewMockAuditSink(),
		clock:    clock,
	}

	repo := mocks.NewMockConsultationRepository()
	repo.FindByIDFunc = func(ctx context.Context, id string) (*domain.Consultation, error) {
		if id != f.row.ID {
			return nil, domain.ErrConsultationNotFound
		}
		snap := *f.row
		return &snap, nil
	}
	repo.TransitionFunc = func(ctx context.Context, id string, from, to domain.ConsultationStatus) error {
		if f.row.Status != from {
			return domain.ErrStaleTransition
		}
		f.row.Status = to
		return nil
	}
	repo.EnterGraceFunc = func(ctx context.Context, id string, graceEndsAt time.Time) error {
		if f.row.Status != domain.ConsultationAwaitingExtension {
			return domain.ErrStaleTransition
		}
		f.row.Status = domain.ConsultationGracePeriod
		f.row.GracePeriodEndAt = &graceEndsAt
		return nil
	}
	repo.CancelGraceFunc = func(ctx context.Context, id string) error {
		if f.row.Status != domain.ConsultationGracePeriod {
			return domain.ErrStaleTransition
		}
		f.row.Status = domain.ConsultationAwaitingExtension
		f.row.GracePeriodEndAt = nil
		return nil
	}
	repo.ApplyExtensionFunc = func(ctx context.Context, id string, newScheduledEnd time.Time) error {
		if f.row.Status != domain.ConsultationGracePeriod {
			return domain.ErrStaleTransition
		}
		f.row.Status = domain.ConsultationActive
		f.row.ScheduledEndAt = newScheduledEnd
		f.row.GracePeriodEndAt = nil
		f.row.ExtensionCount++
		return nil
	}
	repo.CompleteFunc = func(ctx context.Context, id string) error {
		if f.row.Status == domain.ConsultationCompleted {
			return domain.ErrStaleTransition
		}
		f.row.Status = domain.ConsultationCompleted
		return nil
	}
	repo.AppendTranscriptFunc = func(ctx context.Context, entry *domain.TranscriptEntry) error {
		f.markers = append(f.markers, entry.Body)
		return nil
	}

	f.svc = NewConsultationService(
		repo, f.gateway, f.notifier, f.sink, clock,
		ConsultationConfig{ExtensionMinutes: 15, ExtensionFee: 1500, GracePeriod: 5 * time.Minute},
		testLogger,
	)
	return f
}

func TestConsultationServiceImpl_TimerExpired(t *testing.T) {
	t.Run("before the deadline the flip is refused", func(t *testing.T) {
		f := newConsultationFixture(t)
		_, err := f.svc.TimerExpired(context.Background(), patient, "cons-1")
		var verr *domain.ValidationError
		if !errors.As(err, &verr) || verr.Code != "timer_not_due" {
			t.Fatalf("error = %v, want validation error timer_not_due", err)
		}
		if f.row.Status != domain.ConsultationActive {
			t.Errorf("status = %q, want active", f.row.Status)
		}
	})

	t.Run("past the deadline the consultation awaits an extension decision", func(t *testing.T) {
		f := newConsultationFixture(t)
		f.clock.Advance(31 * time.Minute)

		state, err := f.svc.TimerExpired(context.Background(), patient, "cons-1")
		if err != nil {
			t.Fatalf("TimerExpired failed: %v", err)
		}
		if state.Consultation.Status != domain.ConsultationAwaitingExtension {
			t.Errorf("status = %q, want awaiting_extension", state.Consultation.Status)
		}
		if !state.ServerTime.Equal(f.clock.Now()) {
			t.Errorf("server_time = %v, want %v", state.ServerTime, f.clock.Now())
		}
	})

	t.Run("a repeated report is idempotent", func(t *testing.T) {
		f := newConsultationFixture(t)
		f.clock.Advance(31 * time.Minute)

		if _, err := f.svc.TimerExpired(context.Background(), patient, "cons-1"); err != nil {
			t.Fatalf("first TimerExpired failed: %v", err)
		}
		state, err := f.svc.TimerExpired(context.Background(), doctor, "cons-1")
		if err != nil {
			t.Fatalf("second TimerExpired failed: %v", err)
		}
		if state.Consultation.Status != domain.ConsultationAwaitingExtension {
			t.Errorf("status = %q, want awaiting_extension", state.Consultation.Status)
		}
		if got := len(f.markers); got != 1 {
			t.Errorf("markers written = %d, want 1", got)
		}
	})
}

func TestConsultationServiceImpl_ExtensionFlow(t *testing.T) {
	f := newConsultationFixture(t)
	ctx := context.Background()
	originalEnd := f.row.ScheduledEndAt
	f.clock.Advance(31 * time.Minute)

	if _, err := f.svc.TimerExpired(ctx, doctor, "cons-1"); err != nil {
		t.Fatalf("TimerExpired failed: %v", err)
	}
	if _, err := f.svc.RequestExtension(ctx, doctor, "cons-1"); err != nil {
		t.Fatalf("RequestExtension failed: %v", err)
	}
	if f.row.Status != domain.ConsultationAwaitingExtension {
		t.Fatalf("offer changed status to %q", f.row.Status)
	}
	if len(f.notifier.PatientDeliveries) == 0 {
		t.Error("patient was not notified of the offer")
	}

	state, err := f.svc.AcceptExtension(ctx, patient, "cons-1")
	if err != nil {
		t.Fatalf("AcceptExtension failed: %v", err)
	}
	if state.PaymentID != "pay_cons-1" {
		t.Errorf("payment_id = %q, want pay_cons-1", state.PaymentID)
	}
	if f.row.Status != domain.ConsultationGracePeriod {
		t.Fatalf("status = %q, want grace_period", f.row.Status)
	}
	if want := f.clock.Now().Add(5 * time.Minute); f.row.GracePeriodEndAt == nil || !f.row.GracePeriodEndAt.Equal(want) {
		t.Errorf("grace deadline = %v, want %v", f.row.GracePeriodEndAt, want)
	}

	state, err = f.svc.PaymentConfirmed(ctx, patient, "cons-1", state.PaymentID)
	if err != nil {
		t.Fatalf("PaymentConfirmed failed: %v", err)
	}
	if state.Consultation.Status != domain.ConsultationActive {
		t.Errorf("status = %q, want active", state.Consultation.Status)
	}
	if state.Consultation.ExtensionCount != 1 {
		t.Errorf("extension_count = %d, want 1", state.Consultation.ExtensionCount)
	}
	if want := originalEnd.Add(15 * time.Minute); !state.Consultation.ScheduledEndAt.Equal(want) {
		t.Errorf("scheduled_end_at = %v, want %v", state.Consultation.ScheduledEndAt, want)
	}
	if want := "Session extended by 15 minutes"; f.markers[len(f.markers)-1] != want {
		t.Errorf("last marker = %q, want %q", f.markers[len(f.markers)-1], want)
	}
}

func TestConsultationServiceImpl_PaymentConfirmed(t *testing.T) {
	enterGrace := func(t *testing.T, f *consultationFixture) string {
		t.Helper()
		ctx := context.Background()
		f.clock.Advance(31 * time.Minute)
		if _, err := f.svc.TimerExpired(ctx, patient, "cons-1"); err != nil {
			t.Fatalf("TimerExpired failed: %v", err)
		}
		state, err := f.svc.AcceptExtension(ctx, patient, "cons-1")
		if err != nil {
			t.Fatalf("AcceptExtension failed: %v", err)
		}
		return state.PaymentID
	}

	t.Run("an unsettled payment does not extend", func(t *testing.T) {
		f := newConsultationFixture(t)
		paymentID := enterGrace(t, f)
		f.gateway.VerifyPaymentFunc = func(ctx context.Context, id string) (domain.PaymentStatus, error) {
			return domain.PaymentPending, nil
		}

		if _, err := f.svc.PaymentConfirmed(context.Background(), patient, "cons-1", paymentID); err != domain.ErrPaymentNotConfirmed {
			t.Fatalf("error = %v, want ErrPaymentNotConfirmed", err)
		}
		if f.row.Status != domain.ConsultationGracePeriod {
			t.Errorf("status = %q, want grace_period", f.row.Status)
		}
	})

	t.Run("an elapsed grace window folds back to awaiting_extension", func(t *testing.T) {
		f := newConsultationFixture(t)
		paymentID := enterGrace(t, f)
		f.clock.Advance(6 * time.Minute)

		_, err := f.svc.PaymentConfirmed(context.Background(), patient, "cons-1", paymentID)
		var conflict *domain.StateConflictError
		if !errors.As(err, &conflict) || conflict.Current != string(domain.ConsultationAwaitingExtension) {
			t.Fatalf("error = %v, want state conflict with current=awaiting_extension", err)
		}
		if f.row.Status != domain.ConsultationAwaitingExtension {
			t.Errorf("status = %q, want awaiting_extension", f.row.Status)
		}
	})

	t.Run("only the patient may confirm", func(t *testing.T) {
		f := newConsultationFixture(t)
		paymentID := enterGrace(t, f)

		if _, err := f.svc.PaymentConfirmed(context.Background(), doctor, "cons-1", paymentID); err != domain.ErrInsufficientRole {
			t.Fatalf("error = %v, want ErrInsufficientRole", err)
		}
	})
}

func TestConsultationServiceImpl_CancelPayment(t *testing.T) {
	f := newConsultationFixture(t)
	ctx := context.Background()
	f.clock.Advance(31 * time.Minute)
	if _, err := f.svc.TimerExpired(ctx, patient, "cons-1"); err != nil {
		t.Fatalf("TimerExpired failed: %v", err)
	}
	if _, err := f.svc.AcceptExtension(ctx, patient, "cons-1"); err != nil {
		t.Fatalf("AcceptExtension failed: %v", err)
	}

	state, err := f.svc.CancelPayment(ctx, patient, "cons-1")
	if err != nil {
		t.Fatalf("CancelPayment failed: %v", err)
	}
	if state.Consultation.Status != domain.ConsultationAwaitingExtension {
		t.Errorf("status = %q, want awaiting_extension", state.Consultation.Status)
	}
	if state.Consultation.GracePeriodEndAt != nil {
		t.Error("grace deadline survived the cancellation")
	}
}

func TestConsultationServiceImpl_DeclineExtension(t *testing.T) {
	f := newConsultationFixture(t)
	ctx := context.Background()
	f.clock.Advance(31 * time.Minute)
	if _, err := f.svc.TimerExpired(ctx, patient, "cons-1"); err != nil {
		t.Fatalf("TimerExpired failed: %v", err)
	}

	if _, err := f.svc.DeclineExtension(ctx, doctor, "cons-1"); err != domain.ErrInsufficientRole {
		t.Fatalf("doctor decline error = %v, want ErrInsufficientRole", err)
	}
	state, err := f.svc.DeclineExtension(ctx, patient, "cons-1")
	if err != nil {
		t.Fatalf("DeclineExtension failed: %v", err)
	}
	if state.Consultation.Status != domain.ConsultationAwaitingExtension {
		t.Errorf("decline changed status to %q", state.Consultation.Status)
	}
	if len(f.notifier.DoctorDeliveries) == 0 {
		t.Error("doctor was not notified of the decline")
	}
}

func TestConsultationServiceImpl_End(t *testing.T) {
	t.Run("doctor ends from any open state", func(t *testing.T) {
		f := newConsultationFixture(t)
		state, err := f.svc.End(context.Background(), doctor, "cons-1")
		if err != nil {
			t.Fatalf("End failed: %v", err)
		}
		if state.Consultation.Status != domain.ConsultationCompleted {
			t.Errorf("status = %q, want completed", state.Consultation.Status)
		}
	})

	t.Run("patients cannot end", func(t *testing.T) {
		f := newConsultationFixture(t)
		if _, err := f.svc.End(context.Background(), patient, "cons-1"); err != domain.ErrInsufficientRole {
			t.Fatalf("error = %v, want ErrInsufficientRole", err)
		}
	})

	t.Run("ending a completed consultation is refused", func(t *testing.T) {
		f := newConsultationFixture(t)
		f.row.Status = domain.ConsultationCompleted
		if _, err := f.svc.End(context.Background(), doctor, "cons-1"); err != domain.ErrConsultationClosed {
			t.Fatalf("error = %v, want ErrConsultationClosed", err)
		}
	})
}

func TestConsultationServiceImpl_Sync(t *testing.T) {
	t.Run("snapshot carries the server clock", func(t *testing.T) {
		f := newConsultationFixture(t)
		state, err := f.svc.Sync(context.Background(), patient, "cons-1")
		if err != nil {
			t.Fatalf("Sync failed: %v", err)
		}
		if !state.ServerTime.Equal(f.clock.Now()) {
			t.Errorf("server_time = %v, want %v", state.ServerTime, f.clock.Now())
		}
		if state.PaymentID != "" {
			t.Errorf("payment_id = %q, want empty outside grace", state.PaymentID)
		}
	})

	t.Run("in grace the open payment id is surfaced", func(t *testing.T) {
		f := newConsultationFixture(t)
		ctx := context.Background()
		f.clock.Advance(31 * time.Minute)
		if _, err := f.svc.TimerExpired(ctx, patient, "cons-1"); err != nil {
			t.Fatalf("TimerExpired failed: %v", err)
		}
		if _, err := f.svc.AcceptExtension(ctx, patient, "cons-1"); err != nil {
			t.Fatalf("AcceptExtension failed: %v", err)
		}

		state, err := f.svc.Sync(ctx, patient, "cons-1")
		if err != nil {
			t.Fatalf("Sync failed: %v", err)
		}
		if state.PaymentID != "pay_cons-1" {
			t.Errorf("payment_id = %q, want pay_cons-1", state.PaymentID)
		}
	})

	t.Run("outsiders are refused", func(t *testing.T) {
		f := newConsultationFixture(t)
		outsider := domain.Caller{Kind: domain.CallerPatient, SessionID: "sess-other"}
		if _, err := f.svc.Sync(context.Background(), outsider, "cons-1"); err != domain.ErrNotParticipant {
			t.Fatalf("error = %v, want ErrNotParticipant", err)
		}
	})
}
