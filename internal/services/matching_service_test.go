package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/GreenViva/esiriplus-sub002/domain"
	"github.com/GreenViva/esiriplus-sub002/internal/mocks"
)

type matcherFixture struct {
	requestRepo      *mocks.MockRequestRepository
	consultationRepo *mocks.MockConsultationRepository
	doctorRepo       *mocks.MockDoctorRepository
	notifier         *mocks.MockNotifier
	sink             *mocks.MockAuditSink
	clock            *mocks.FakeClock
	svc              domain.MatcherService
}

func newMatcherFixture(t *testing.T) *matcherFixture {
	t.Helper()
	f := &matcherFixture{
		requestRepo:      mocks.NewMockRequestRepository(),
		consultationRepo: mocks.NewMockConsultationRepository(),
		doctorRepo:       mocks.NewMockDoctorRepository(),
		notifier:         mocks.NewMockNotifier(),
		sink:             mocks.NewMockAuditSink(),
		clock:            mocks.NewFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)),
	}
	f.doctorRepo.FindByIDFunc = func(ctx context.Context, id string) (*domain.Doctor, error) {
		return &domain.Doctor{ID: id, IsVerified: true, IsAvailable: true}, nil
	}
	f.svc = NewMatcherService(
		f.requestRepo, f.consultationRepo, f.doctorRepo,
		f.notifier, f.sink, f.clock,
		MatcherConfig{RequestTTL: 2 * time.Minute, BaseFee: 3000, DefaultDurationMinutes: 30},
		testLogger,
	)
	return f
}

var (
	patient = domain.Caller{Kind: domain.CallerPatient, SessionID: "sess-1"}
	doctor  = domain.Caller{Kind: domain.CallerStaff, StaffID: "doc-1", Role: "doctor"}
)

func pendingRequest(f *matcherFixture) *domain.ConsultationRequest {
	return &domain.ConsultationRequest{
		ID:               "req-1",
		PatientSessionID: "sess-1",
		DoctorID:         "doc-1",
		ServiceType:      "general",
		Status:           domain.RequestPending,
		ExpiresAt:        f.clock.Now().Add(2 * time.Minute),
	}
}

func TestMatcherServiceImpl_Create(t *testing.T) {
	t.Run("creates a pending request with the configured TTL", func(t *testing.T) {
		f := newMatcherFixture(t)
		var created *domain.ConsultationRequest
		f.requestRepo.CreateFunc = func(ctx context.Context, r *domain.ConsultationRequest) error {
			created = r
			return nil
		}

		request, err := f.svc.Create(context.Background(), patient, "doc-1", "general")
		if err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		if created == nil {
			t.Fatal("request not persisted")
		}
		if request.Status != domain.RequestPending {
			t.Errorf("status = %q, want pending", request.Status)
		}
		if want := f.clock.Now().Add(2 * time.Minute); !request.ExpiresAt.Equal(want) {
			t.Errorf("expires_at = %v, want %v", request.ExpiresAt, want)
		}
		if len(f.notifier.DoctorDeliveries) != 1 {
			t.Errorf("doctor notifications = %d, want 1", len(f.notifier.DoctorDeliveries))
		}
	})

	t.Run("staff callers cannot create", func(t *testing.T) {
		f := newMatcherFixture(t)
		if _, err := f.svc.Create(context.Background(), doctor, "doc-1", "general"); err != domain.ErrInsufficientRole {
			t.Fatalf("error = %v, want ErrInsufficientRole", err)
		}
	})

	t.Run("live pending request blocks a second one", func(t *testing.T) {
		f := newMatcherFixture(t)
		f.requestRepo.FindPendingBySessionFunc = func(ctx context.Context, sessionID string) (*domain.ConsultationRequest, error) {
			return pendingRequest(f), nil
		}
		if _, err := f.svc.Create(context.Background(), patient, "doc-1", "general"); err != domain.ErrRequestPending {
			t.Fatalf("error = %v, want ErrRequestPending", err)
		}
	})

	t.Run("stale pending request is lazily expired and replaced", func(t *testing.T) {
		f := newMatcherFixture(t)
		stale := pendingRequest(f)
		f.requestRepo.FindPendingBySessionFunc = func(ctx context.Context, sessionID string) (*domain.ConsultationRequest, error) {
			return stale, nil
		}
		flipped := false
		f.requestRepo.TransitionFunc = func(ctx context.Context, id string, from, to domain.RequestStatus) error {
			if id == stale.ID && from == domain.RequestPending && to == domain.RequestExpired {
				flipped = true
			}
			return nil
		}
		f.clock.Advance(3 * time.Minute)

		if _, err := f.svc.Create(context.Background(), patient, "doc-1", "general"); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		if !flipped {
			t.Error("stale pending request was not expired")
		}
	})

	t.Run("mid-consultation doctor yields the busy conflict", func(t *testing.T) {
		f := newMatcherFixture(t)
		f.consultationRepo.FindOpenByDoctorFunc = func(ctx context.Context, doctorID string) (*domain.Consultation, error) {
			return &domain.Consultation{ID: "cons-9", DoctorID: doctorID, Status: domain.ConsultationActive}, nil
		}
		if _, err := f.svc.Create(context.Background(), patient, "doc-1", "general"); err != domain.ErrDoctorBusy {
			t.Fatalf("error = %v, want ErrDoctorBusy", err)
		}
	})

	t.Run("unverified doctor is rejected", func(t *testing.T) {
		f := newMatcherFixture(t)
		f.doctorRepo.FindByIDFunc = func(ctx context.Context, id string) (*domain.Doctor, error) {
			return &domain.Doctor{ID: id, IsVerified: false, IsAvailable: true}, nil
		}
		if _, err := f.svc.Create(context.Background(), patient, "doc-1", "general"); err != domain.ErrDoctorUnverified {
			t.Fatalf("error = %v, want ErrDoctorUnverified", err)
		}
	})
}

func TestMatcherServiceImpl_Accept(t *testing.T) {
	t.Run("accept within TTL builds the consultation atomically", func(t *testing.T) {
		f := newMatcherFixture(t)
		req := pendingRequest(f)
		f.requestRepo.FindByIDFunc = func(ctx context.Context, id string) (*domain.ConsultationRequest, error) {
			return req, nil
		}
		var accepted *domain.Consultation
		f.consultationRepo.AcceptRequestFunc = func(ctx context.Context, request *domain.ConsultationRequest, consultation *domain.Consultation) error {
			accepted = consultation
			return nil
		}

		consultation, err := f.svc.Accept(context.Background(), doctor, "req-1")
		if err != nil {
			t.Fatalf("Accept failed: %v", err)
		}
		if accepted == nil {
			t.Fatal("accept transaction not executed")
		}
		if consultation.Status != domain.ConsultationActive {
			t.Errorf("status = %q, want active", consultation.Status)
		}
		if want := f.clock.Now().Add(30 * time.Minute); !consultation.ScheduledEndAt.Equal(want) {
			t.Errorf("scheduled_end_at = %v, want %v", consultation.ScheduledEndAt, want)
		}
		if consultation.ConsultationFee != 3000 {
			t.Errorf("fee = %d, want 3000", consultation.ConsultationFee)
		}
	})

	t.Run("accept after TTL flips the row expired instead of accepting", func(t *testing.T) {
		f := newMatcherFixture(t)
		req := pendingRequest(f)
		f.requestRepo.FindByIDFunc = func(ctx context.Context, id string) (*domain.ConsultationRequest, error) {
			return req, nil
		}
		flipped := false
		f.requestRepo.TransitionFunc = func(ctx context.Context, id string, from, to domain.RequestStatus) error {
			if to == domain.RequestExpired {
				flipped = true
			}
			return nil
		}
		acceptRan := false
		f.consultationRepo.AcceptRequestFunc = func(ctx context.Context, request *domain.ConsultationRequest, consultation *domain.Consultation) error {
			acceptRan = true
			return nil
		}
		f.clock.Advance(3 * time.Minute)

		_, err := f.svc.Accept(context.Background(), doctor, "req-1")
		var conflict *domain.StateConflictError
		if !errors.As(err, &conflict) || conflict.Current != string(domain.RequestExpired) {
			t.Fatalf("error = %v, want state conflict with current=expired", err)
		}
		if !flipped {
			t.Error("expired row was not stamped")
		}
		if acceptRan {
			t.Error("consultation was created from an expired request")
		}
	})

	t.Run("lost accept race reports the authoritative status", func(t *testing.T) {
		f := newMatcherFixture(t)
		req := pendingRequest(f)
		f.requestRepo.FindByIDFunc = func(ctx context.Context, id string) (*domain.ConsultationRequest, error) {
			if req.Status == domain.RequestPending {
				// Second read after the lost race sees the winner's write.
				snap := *req
				req.Status = domain.RequestRejected
				return &snap, nil
			}
			return req, nil
		}
		f.consultationRepo.AcceptRequestFunc = func(ctx context.Context, request *domain.ConsultationRequest, consultation *domain.Consultation) error {
			return domain.ErrStaleTransition
		}

		_, err := f.svc.Accept(context.Background(), doctor, "req-1")
		var conflict *domain.StateConflictError
		if !errors.As(err, &conflict) {
			t.Fatalf("error = %v, want state conflict", err)
		}
		if conflict.Current != string(domain.RequestRejected) {
			t.Errorf("current = %q, want rejected", conflict.Current)
		}
	})

	t.Run("only the assigned doctor may accept", func(t *testing.T) {
		f := newMatcherFixture(t)
		req := pendingRequest(f)
		f.requestRepo.FindByIDFunc = func(ctx context.Context, id string) (*domain.ConsultationRequest, error) {
			return req, nil
		}
		other := domain.Caller{Kind: domain.CallerStaff, StaffID: "doc-2", Role: "doctor"}
		if _, err := f.svc.Accept(context.Background(), other, "req-1"); err != domain.ErrNotParticipant {
			t.Fatalf("error = %v, want ErrNotParticipant", err)
		}
	})
}

func TestMatcherServiceImpl_Expire(t *testing.T) {
	t.Run("expire before the TTL elapses is refused", func(t *testing.T) {
		f := newMatcherFixture(t)
		req := pendingRequest(f)
		f.requestRepo.FindByIDFunc = func(ctx context.Context, id string) (*domain.ConsultationRequest, error) {
			return req, nil
		}
		if _, err := f.svc.Expire(context.Background(), patient, "req-1"); err != domain.ErrRequestNotDue {
			t.Fatalf("error = %v, want ErrRequestNotDue", err)
		}
	})

	t.Run("expire after the TTL flips the status", func(t *testing.T) {
		f := newMatcherFixture(t)
		req := pendingRequest(f)
		f.requestRepo.FindByIDFunc = func(ctx context.Context, id string) (*domain.ConsultationRequest, error) {
			return req, nil
		}
		f.clock.Advance(3 * time.Minute)

		request, err := f.svc.Expire(context.Background(), patient, "req-1")
		if err != nil {
			t.Fatalf("Expire failed: %v", err)
		}
		if request.Status != domain.RequestExpired {
			t.Errorf("status = %q, want expired", request.Status)
		}
	})

	t.Run("expire on a finalized request is a no-op returning current status", func(t *testing.T) {
		f := newMatcherFixture(t)
		req := pendingRequest(f)
		req.Status = domain.RequestAccepted
		f.requestRepo.FindByIDFunc = func(ctx context.Context, id string) (*domain.ConsultationRequest, error) {
			return req, nil
		}
		transitioned := false
		f.requestRepo.TransitionFunc = func(ctx context.Context, id string, from, to domain.RequestStatus) error {
			transitioned = true
			return nil
		}

		request, err := f.svc.Expire(context.Background(), patient, "req-1")
		if err != nil {
			t.Fatalf("Expire failed: %v", err)
		}
		if request.Status != domain.RequestAccepted {
			t.Errorf("status = %q, want accepted", request.Status)
		}
		if transitioned {
			t.Error("no-op expire wrote a transition")
		}
	})
}

func TestMatcherServiceImpl_Status(t *testing.T) {
	f := newMatcherFixture(t)
	req := pendingRequest(f)
	f.requestRepo.FindByIDFunc = func(ctx context.Context, id string) (*domain.ConsultationRequest, error) {
		return req, nil
	}

	if _, err := f.svc.Status(context.Background(), patient, "req-1"); err != nil {
		t.Errorf("patient participant refused: %v", err)
	}
	if _, err := f.svc.Status(context.Background(), doctor, "req-1"); err != nil {
		t.Errorf("doctor participant refused: %v", err)
	}
	outsider := domain.Caller{Kind: domain.CallerPatient, SessionID: "sess-other"}
	if _, err := f.svc.Status(context.Background(), outsider, "req-1"); err != domain.ErrNotParticipant {
		t.Errorf("error = %v, want ErrNotParticipant", err)
	}
}
