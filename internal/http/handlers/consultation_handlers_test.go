package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/GreenViva/esiriplus-sub002/domain"
	"github.com/GreenViva/esiriplus-sub002/internal/http/middleware"
	"github.com/GreenViva/esiriplus-sub002/internal/mocks"
)

var (
	patientCaller = domain.Caller{Kind: domain.CallerPatient, SessionID: "sess-1"}
	doctorCaller  = domain.Caller{Kind: domain.CallerStaff, StaffID: "doc-1", Role: "doctor"}
)

func newConsultationHandlers() (*ConsultationHandlers, *mocks.MockMatcherService, *mocks.MockConsultationService, *mocks.MockRateLimiter) {
	matcherSvc := mocks.NewMockMatcherService()
	consultationSvc := mocks.NewMockConsultationService()
	limiter := mocks.NewMockRateLimiter()
	h := NewConsultationHandlers(matcherSvc, consultationSvc, mocks.NewMockConsultationRepository(), limiter, mocks.NewMockAuditSink())
	return h, matcherSvc, consultationSvc, limiter
}

func TestConsultationHandlers_RequestAction(t *testing.T) {
	t.Run("create returns the pending request", func(t *testing.T) {
		h, matcherSvc, _, _ := newConsultationHandlers()
		matcherSvc.CreateFunc = func(ctx context.Context, caller domain.Caller, doctorID, serviceType string) (*domain.ConsultationRequest, error) {
			return &domain.ConsultationRequest{
				ID:          "req-1",
				DoctorID:    doctorID,
				ServiceType: serviceType,
				Status:      domain.RequestPending,
				ExpiresAt:   time.Now().Add(2 * time.Minute),
			}, nil
		}

		w := postJSON(t, h.RequestAction, "/consultation-request",
			RequestActionRequest{Action: "create", DoctorID: "doc-1", ServiceType: "general"}, &patientCaller)
		if w.Code != http.StatusCreated {
			t.Fatalf("status = %d, want 201", w.Code)
		}
		body := decodeBody(t, w)
		if body["request_id"] != "req-1" {
			t.Errorf("request_id = %v, want req-1", body["request_id"])
		}
		if body["status"] != string(domain.RequestPending) {
			t.Errorf("status = %v, want pending", body["status"])
		}
	})

	t.Run("create without a doctor is rejected before the service runs", func(t *testing.T) {
		h, matcherSvc, _, _ := newConsultationHandlers()
		called := false
		matcherSvc.CreateFunc = func(ctx context.Context, caller domain.Caller, doctorID, serviceType string) (*domain.ConsultationRequest, error) {
			called = true
			return nil, nil
		}

		w := postJSON(t, h.RequestAction, "/consultation-request",
			RequestActionRequest{Action: "create", ServiceType: "general"}, &patientCaller)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", w.Code)
		}
		if called {
			t.Error("service ran despite the missing doctor_id")
		}
	})

	t.Run("busy doctor yields 409 with the booking hint", func(t *testing.T) {
		h, matcherSvc, _, _ := newConsultationHandlers()
		matcherSvc.CreateFunc = func(ctx context.Context, caller domain.Caller, doctorID, serviceType string) (*domain.ConsultationRequest, error) {
			return nil, domain.ErrDoctorBusy
		}

		w := postJSON(t, h.RequestAction, "/consultation-request",
			RequestActionRequest{Action: "create", DoctorID: "doc-1", ServiceType: "general"}, &patientCaller)
		if w.Code != http.StatusConflict {
			t.Fatalf("status = %d, want 409", w.Code)
		}
		body := decodeBody(t, w)
		if body["code"] != "doctor_busy" {
			t.Errorf("code = %v, want doctor_busy", body["code"])
		}
		if body["suggest_booking"] != true {
			t.Errorf("suggest_booking = %v, want true", body["suggest_booking"])
		}
	})

	t.Run("accept returns the consultation", func(t *testing.T) {
		h, matcherSvc, _, _ := newConsultationHandlers()
		matcherSvc.AcceptFunc = func(ctx context.Context, caller domain.Caller, requestID string) (*domain.Consultation, error) {
			return &domain.Consultation{
				ID:             "cons-1",
				DoctorID:       caller.StaffID,
				Status:         domain.ConsultationActive,
				ScheduledEndAt: time.Now().Add(30 * time.Minute),
			}, nil
		}

		w := postJSON(t, h.RequestAction, "/consultation-request",
			RequestActionRequest{Action: "accept", RequestID: "req-1"}, &doctorCaller)
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", w.Code)
		}
		body := decodeBody(t, w)
		if body["consultation_id"] != "cons-1" {
			t.Errorf("consultation_id = %v, want cons-1", body["consultation_id"])
		}
		if body["status"] != string(domain.ConsultationActive) {
			t.Errorf("status = %v, want active", body["status"])
		}
	})

	t.Run("unknown action is a hard validation error", func(t *testing.T) {
		h, _, _, _ := newConsultationHandlers()
		w := postJSON(t, h.RequestAction, "/consultation-request",
			RequestActionRequest{Action: "frob", RequestID: "req-1"}, &patientCaller)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", w.Code)
		}
		if body := decodeBody(t, w); body["code"] != "unknown_action" {
			t.Errorf("code = %v, want unknown_action", body["code"])
		}
	})

	t.Run("an exhausted budget answers 429 with Retry-After", func(t *testing.T) {
		h, _, _, limiter := newConsultationHandlers()
		limiter.AllowFunc = func(ctx context.Context, callerKey string, class domain.LimitClass) (*domain.RateLimitDecision, error) {
			return &domain.RateLimitDecision{Allowed: false, RetryAfter: 42 * time.Second}, nil
		}

		w := postJSON(t, h.RequestAction, "/consultation-request",
			RequestActionRequest{Action: "create", DoctorID: "doc-1", ServiceType: "general"}, &patientCaller)
		if w.Code != http.StatusTooManyRequests {
			t.Fatalf("status = %d, want 429", w.Code)
		}
		if got := w.Header().Get("Retry-After"); got != "42" {
			t.Errorf("Retry-After = %q, want 42", got)
		}
	})

	t.Run("a broken limiter fails open", func(t *testing.T) {
		h, matcherSvc, _, limiter := newConsultationHandlers()
		limiter.AllowFunc = func(ctx context.Context, callerKey string, class domain.LimitClass) (*domain.RateLimitDecision, error) {
			return nil, context.DeadlineExceeded
		}
		matcherSvc.StatusFunc = func(ctx context.Context, caller domain.Caller, requestID string) (*domain.ConsultationRequest, error) {
			return &domain.ConsultationRequest{ID: requestID, Status: domain.RequestPending}, nil
		}

		w := postJSON(t, h.RequestAction, "/consultation-request",
			RequestActionRequest{Action: "status", RequestID: "req-1"}, &patientCaller)
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200 on fail-open", w.Code)
		}
	})
}

func TestConsultationHandlers_Action(t *testing.T) {
	t.Run("sync draws from the read budget", func(t *testing.T) {
		h, _, consultationSvc, limiter := newConsultationHandlers()
		var gotClass domain.LimitClass
		limiter.AllowFunc = func(ctx context.Context, callerKey string, class domain.LimitClass) (*domain.RateLimitDecision, error) {
			gotClass = class
			return &domain.RateLimitDecision{Allowed: true}, nil
		}
		consultationSvc.SyncFunc = func(ctx context.Context, caller domain.Caller, consultationID string) (*domain.ConsultationState, error) {
			return &domain.ConsultationState{
				Consultation: &domain.Consultation{ID: consultationID, Status: domain.ConsultationActive},
				ServerTime:   time.Now(),
			}, nil
		}

		w := postJSON(t, h.Action, "/consultation",
			ConsultationActionRequest{Action: "sync", ConsultationID: "cons-1"}, &patientCaller)
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", w.Code)
		}
		if gotClass != domain.LimitClassRead {
			t.Errorf("limit class = %q, want read", gotClass)
		}
		if body := decodeBody(t, w); body["server_time"] == nil {
			t.Error("response missing server_time")
		}
	})

	t.Run("state-changing actions draw from the mutate budget", func(t *testing.T) {
		h, _, consultationSvc, limiter := newConsultationHandlers()
		var gotClass domain.LimitClass
		limiter.AllowFunc = func(ctx context.Context, callerKey string, class domain.LimitClass) (*domain.RateLimitDecision, error) {
			gotClass = class
			return &domain.RateLimitDecision{Allowed: true}, nil
		}
		consultationSvc.TimerExpiredFunc = func(ctx context.Context, caller domain.Caller, consultationID string) (*domain.ConsultationState, error) {
			return &domain.ConsultationState{
				Consultation: &domain.Consultation{ID: consultationID, Status: domain.ConsultationAwaitingExtension},
				ServerTime:   time.Now(),
			}, nil
		}

		w := postJSON(t, h.Action, "/consultation",
			ConsultationActionRequest{Action: "timer_expired", ConsultationID: "cons-1"}, &patientCaller)
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", w.Code)
		}
		if gotClass != domain.LimitClassMutate {
			t.Errorf("limit class = %q, want mutate", gotClass)
		}
	})

	t.Run("accept_extension surfaces the payment id", func(t *testing.T) {
		h, _, consultationSvc, _ := newConsultationHandlers()
		consultationSvc.AcceptExtensionFunc = func(ctx context.Context, caller domain.Caller, consultationID string) (*domain.ConsultationState, error) {
			return &domain.ConsultationState{
				Consultation: &domain.Consultation{ID: consultationID, Status: domain.ConsultationGracePeriod},
				ServerTime:   time.Now(),
				PaymentID:    "pay_cons-1",
			}, nil
		}

		w := postJSON(t, h.Action, "/consultation",
			ConsultationActionRequest{Action: "accept_extension", ConsultationID: "cons-1"}, &patientCaller)
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", w.Code)
		}
		if body := decodeBody(t, w); body["payment_id"] != "pay_cons-1" {
			t.Errorf("payment_id = %v, want pay_cons-1", body["payment_id"])
		}
	})

	t.Run("payment_confirmed without a payment id is rejected", func(t *testing.T) {
		h, _, consultationSvc, _ := newConsultationHandlers()
		called := false
		consultationSvc.PaymentConfirmedFunc = func(ctx context.Context, caller domain.Caller, consultationID, paymentID string) (*domain.ConsultationState, error) {
			called = true
			return nil, nil
		}

		w := postJSON(t, h.Action, "/consultation",
			ConsultationActionRequest{Action: "payment_confirmed", ConsultationID: "cons-1"}, &patientCaller)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", w.Code)
		}
		if called {
			t.Error("service ran despite the missing payment_id")
		}
	})

	t.Run("unknown action is a hard validation error", func(t *testing.T) {
		h, _, _, _ := newConsultationHandlers()
		w := postJSON(t, h.Action, "/consultation",
			ConsultationActionRequest{Action: "pause", ConsultationID: "cons-1"}, &patientCaller)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", w.Code)
		}
		if body := decodeBody(t, w); body["code"] != "unknown_action" {
			t.Errorf("code = %v, want unknown_action", body["code"])
		}
	})

	t.Run("state conflicts report the authoritative status", func(t *testing.T) {
		h, _, consultationSvc, _ := newConsultationHandlers()
		consultationSvc.PaymentConfirmedFunc = func(ctx context.Context, caller domain.Caller, consultationID, paymentID string) (*domain.ConsultationState, error) {
			return nil, &domain.StateConflictError{Current: string(domain.ConsultationAwaitingExtension)}
		}

		w := postJSON(t, h.Action, "/consultation",
			ConsultationActionRequest{Action: "payment_confirmed", ConsultationID: "cons-1", PaymentID: "pay_1"}, &patientCaller)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", w.Code)
		}
		if body := decodeBody(t, w); body["code"] != "state_conflict" {
			t.Errorf("code = %v, want state_conflict", body["code"])
		}
	})
}

func TestConsultationHandlers_Transcript(t *testing.T) {
	newTranscriptContext := func(t *testing.T, caller domain.Caller) (*httptest.ResponseRecorder, *gin.Context) {
		t.Helper()
		gin.SetMode(gin.TestMode)
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodGet, "/consultation/cons-1/transcript", nil)
		c.Params = gin.Params{{Key: "id", Value: "cons-1"}}
		c.Set(middleware.CallerKey, caller)
		return w, c
	}

	repo := func() *mocks.MockConsultationRepository {
		repo := mocks.NewMockConsultationRepository()
		repo.FindByIDFunc = func(ctx context.Context, id string) (*domain.Consultation, error) {
			return &domain.Consultation{ID: id, PatientSessionID: "sess-1", DoctorID: "doc-1", Status: domain.ConsultationActive}, nil
		}
		repo.TranscriptFunc = func(ctx context.Context, consultationID string) ([]domain.TranscriptEntry, error) {
			return []domain.TranscriptEntry{
				{ConsultationID: consultationID, Kind: domain.TranscriptKindSystem, Body: "Consultation started, scheduled for 30 minutes"},
			}, nil
		}
		return repo
	}

	t.Run("participants read the transcript", func(t *testing.T) {
		h := NewConsultationHandlers(mocks.NewMockMatcherService(), mocks.NewMockConsultationService(),
			repo(), mocks.NewMockRateLimiter(), mocks.NewMockAuditSink())
		w, c := newTranscriptContext(t, patientCaller)
		h.Transcript(c)
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", w.Code)
		}
		body := decodeBody(t, w)
		entries, ok := body["entries"].([]interface{})
		if !ok || len(entries) != 1 {
			t.Fatalf("entries = %v, want one entry", body["entries"])
		}
	})

	t.Run("outsiders are refused", func(t *testing.T) {
		h := NewConsultationHandlers(mocks.NewMockMatcherService(), mocks.NewMockConsultationService(),
			repo(), mocks.NewMockRateLimiter(), mocks.NewMockAuditSink())
		outsider := domain.Caller{Kind: domain.CallerPatient, SessionID: "sess-other"}
		w, c := newTranscriptContext(t, outsider)
		h.Transcript(c)
		if w.Code != http.StatusForbidden {
			t.Fatalf("status = %d, want 403", w.Code)
		}
	})
}
