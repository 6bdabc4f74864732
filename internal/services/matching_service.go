package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/GreenViva/esiriplus-sub002/domain"
)

// MatcherConfig carries the matcher's design constants.
type MatcherConfig struct {
	RequestTTL             time.Duration
	BaseFee                int64
	DefaultDurationMinutes int
}

// MatcherServiceImpl implements domain.MatcherService. Every transition out
// of pending is a conditional update so it happens exactly once even under
// concurrent retries, and expiry is re-checked at the moment of the write
// rather than at request entry.
type MatcherServiceImpl struct {
	requestRepo      domain.RequestRepository
	consultationRepo domain.ConsultationRepository
	doctorRepo       domain.DoctorRepository
	notifier         domain.Notifier
	auditSink        domain.AuditSink
	clock            domain.Clock
	cfg              MatcherConfig
	logger           zerolog.Logger
}

// NewMatcherService creates a new request matcher service
func NewMatcherService(
	requestRepo domain.RequestRepository,
	consultationRepo domain.ConsultationRepository,
	doctorRepo domain.DoctorRepository,
	notifier domain.Notifier,
	auditSink domain.AuditSink,
	clock domain.Clock,
	cfg MatcherConfig,
	logger zerolog.Logger,
) domain.MatcherService {
	return &MatcherServiceImpl{
		requestRepo:      requestRepo,
		consultationRepo: consultationRepo,
		doctorRepo:       doctorRepo,
		notifier:         notifier,
		auditSink:        auditSink,
		clock:            clock,
		cfg:              cfg,
		logger:           logger.With().Str("component", "matcher").Logger(),
	}
}

// Create implements domain.MatcherService
func (s *MatcherServiceImpl) Create(ctx context.Context, caller domain.Caller, doctorID, serviceType string) (*domain.ConsultationRequest, error) {
	if caller.Kind != domain.CallerPatient {
		return nil, domain.ErrInsufficientRole
	}

	now := s.clock.Now()

	// One pending request per patient. A stale pending row is flipped
	// lazily here rather than by a background reaper.
	if existing, err := s.requestRepo.FindPendingBySession(ctx, caller.SessionID); err == nil {
		if !existing.Expired(now) {
			return nil, domain.ErrRequestPending
		}
		if err := s.requestRepo.Transition(ctx, existing.ID, domain.RequestPending, domain.RequestExpired); err != nil && err != domain.ErrStaleTransition {
			return nil, err
		}
	} else if err != domain.ErrRequestNotFound {
		return nil, err
	}

	doctor, err := s.doctorRepo.FindByID(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	if !doctor.IsVerified {
		return nil, domain.ErrDoctorUnverified
	}
	// Mid-consultation is a distinct soft conflict: the caller should fall
	// back to scheduled booking instead of immediate matching.
	if _, err := s.consultationRepo.FindOpenByDoctor(ctx, doctorID); err == nil {
		return nil, domain.ErrDoctorBusy
	} else if err != domain.ErrConsultationNotFound {
		return nil, err
	}
	if !doctor.IsAvailable {
		return nil, domain.ErrDoctorUnavailable
	}

	request := &domain.ConsultationRequest{
		ID:               uuid.NewString(),
		PatientSessionID: caller.SessionID,
		DoctorID:         doctorID,
		ServiceType:      serviceType,
		Status:           domain.RequestPending,
		ExpiresAt:        now.Add(s.cfg.RequestTTL),
	}
	if err := s.requestRepo.Create(ctx, request); err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	request.CreatedAt = now

	s.notify(func() error {
		return s.notifier.NotifyDoctor(ctx, doctorID, "New consultation request",
			fmt.Sprintf("A patient is requesting an immediate %s consultation.", serviceType))
	})
	s.auditSink.Record(&domain.AuditEvent{
		EventType: domain.RequestCreatedEvent,
		SessionID: caller.SessionID,
		RequestID: request.ID,
		Success:   true,
		Metadata:  map[string]interface{}{"doctor_id": doctorID, "service_type": serviceType},
	})
	return request, nil
}

// Accept implements domain.MatcherService. Expiry is enforced at the moment
// of the DB-side transition: an accept arriving after expiresAt flips the
// row to expired and reports failure, never creates a consultation.
func (s *MatcherServiceImpl) Accept(ctx context.Context, caller domain.Caller, requestID string) (*domain.Consultation, error) {
	request, err := s.assignedRequest(ctx, caller, requestID)
	if err != nil {
		return nil, err
	}
	if request.Status != domain.RequestPending {
		return nil, &domain.StateConflictError{Current: string(request.Status)}
	}

	now := s.clock.Now()
	if request.Expired(now) {
		return nil, s.flipExpired(ctx, request)
	}

	consultation := &domain.Consultation{
		ID:                      uuid.NewString(),
		PatientSessionID:        request.PatientSessionID,
		DoctorID:                request.DoctorID,
		ServiceType:             request.ServiceType,
		ConsultationFee:         s.cfg.BaseFee,
		Status:                  domain.ConsultationActive,
		ScheduledEndAt:          now.Add(time.Duration(s.cfg.DefaultDurationMinutes) * time.Minute),
		OriginalDurationMinutes: s.cfg.DefaultDurationMinutes,
		SessionStartTime:        now,
	}

	if err := s.consultationRepo.AcceptRequest(ctx, request, consultation); err != nil {
		if err == domain.ErrStaleTransition {
			return nil, s.currentStatusConflict(ctx, requestID)
		}
		return nil, fmt.Errorf("failed to accept request: %w", err)
	}

	s.appendMarker(ctx, consultation.ID,
		fmt.Sprintf("Consultation started, scheduled for %d minutes", consultation.OriginalDurationMinutes))
	s.notify(func() error {
		return s.notifier.NotifyPatient(ctx, request.PatientSessionID, "Request accepted",
			"Your doctor has accepted the consultation request.")
	})
	s.auditSink.Record(&domain.AuditEvent{
		EventType:      domain.RequestAcceptedEvent,
		StaffID:        caller.StaffID,
		RequestID:      request.ID,
		ConsultationID: consultation.ID,
		Success:        true,
	})
	return consultation, nil
}

// Reject implements domain.MatcherService
func (s *MatcherServiceImpl) Reject(ctx context.Context, caller domain.Caller, requestID string) (*domain.ConsultationRequest, error) {
	request, err := s.assignedRequest(ctx, caller, requestID)
	if err != nil {
		return nil, err
	}
	if request.Status != domain.RequestPending {
		return nil, &domain.StateConflictError{Current: string(request.Status)}
	}
	if request.Expired(s.clock.Now()) {
		return nil, s.flipExpired(ctx, request)
	}

	if err := s.requestRepo.Transition(ctx, requestID, domain.RequestPending, domain.RequestRejected); err != nil {
		if err == domain.ErrStaleTransition {
			return nil, s.currentStatusConflict(ctx, requestID)
		}
		return nil, err
	}
	request.Status = domain.RequestRejected

	s.notify(func() error {
		return s.notifier.NotifyPatient(ctx, request.PatientSessionID, "Request declined",
			"The doctor is unable to take your consultation right now.")
	})
	s.auditSink.Record(&domain.AuditEvent{
		EventType: domain.RequestRejectedEvent,
		StaffID:   caller.StaffID,
		RequestID: request.ID,
		Success:   true,
	})
	return request, nil
}

// Expire implements domain.MatcherService. Idempotent: a request already out
// of pending reports its current status as a no-op. The TTL must actually
// have elapsed on the server clock; a client-asserted expiry is not trusted.
func (s *MatcherServiceImpl) Expire(ctx context.Context, caller domain.Caller, requestID string) (*domain.ConsultationRequest, error) {
	request, err := s.participantRequest(ctx, caller, requestID)
	if err != nil {
		return nil, err
	}
	if request.Status != domain.RequestPending {
		return request, nil
	}
	if !request.Expired(s.clock.Now()) {
		return nil, domain.ErrRequestNotDue
	}

	if err := s.requestRepo.Transition(ctx, requestID, domain.RequestPending, domain.RequestExpired); err != nil {
		if err == domain.ErrStaleTransition {
			return s.requestRepo.FindByID(ctx, requestID)
		}
		return nil, err
	}
	request.Status = domain.RequestExpired

	s.auditSink.Record(&domain.AuditEvent{
		EventType: domain.RequestExpiredEvent,
		RequestID: request.ID,
		Success:   true,
	})
	return request, nil
}

// Status implements domain.MatcherService
func (s *MatcherServiceImpl) Status(ctx context.Context, caller domain.Caller, requestID string) (*domain.ConsultationRequest, error) {
	return s.participantRequest(ctx, caller, requestID)
}

// assignedRequest loads the request and authorizes the assigned doctor.
func (s *MatcherServiceImpl) assignedRequest(ctx context.Context, caller domain.Caller, requestID string) (*domain.ConsultationRequest, error) {
	if caller.Kind != domain.CallerStaff {
		return nil, domain.ErrInsufficientRole
	}
	request, err := s.requestRepo.FindByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if request.DoctorID != caller.StaffID {
		return nil, domain.ErrNotParticipant
	}
	return request, nil
}

// participantRequest loads the request and authorizes either participant.
func (s *MatcherServiceImpl) participantRequest(ctx context.Context, caller domain.Caller, requestID string) (*domain.ConsultationRequest, error) {
	request, err := s.requestRepo.FindByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	switch caller.Kind {
	case domain.CallerPatient:
		if request.PatientSessionID != caller.SessionID {
			return nil, domain.ErrNotParticipant
		}
	case domain.CallerStaff:
		if request.DoctorID != caller.StaffID {
			return nil, domain.ErrNotParticipant
		}
	default:
		return nil, domain.ErrNotParticipant
	}
	return request, nil
}

// flipExpired opportunistically stamps a stale pending row expired and
// reports the conflict.
func (s *MatcherServiceImpl) flipExpired(ctx context.Context, request *domain.ConsultationRequest) error {
	if err := s.requestRepo.Transition(ctx, request.ID, domain.RequestPending, domain.RequestExpired); err != nil && err != domain.ErrStaleTransition {
		return err
	}
	s.auditSink.Record(&domain.AuditEvent{
		EventType: domain.RequestExpiredEvent,
		RequestID: request.ID,
		Success:   true,
		ErrorMsg:  "expired at transition time",
	})
	return &domain.StateConflictError{Current: string(domain.RequestExpired)}
}

// currentStatusConflict reports the authoritative status after a lost race.
func (s *MatcherServiceImpl) currentStatusConflict(ctx context.Context, requestID string) error {
	current, err := s.requestRepo.FindByID(ctx, requestID)
	if err != nil {
		return err
	}
	return &domain.StateConflictError{Current: string(current.Status)}
}

// appendMarker writes a system entry into the consultation transcript.
// Best-effort: the transition has already committed.
func (s *MatcherServiceImpl) appendMarker(ctx context.Context, consultationID, body string) {
	entry := &domain.TranscriptEntry{
		ConsultationID: consultationID,
		Kind:           domain.TranscriptKindSystem,
		Body:           body,
	}
	if err := s.consultationRepo.AppendTranscript(ctx, entry); err != nil {
		s.logger.Warn().Err(err).Str("consultation_id", consultationID).Msg("transcript marker write failed")
	}
}

// notify runs a best-effort notification. Delivery failure never fails the
// transition that triggered it.
func (s *MatcherServiceImpl) notify(send func() error) {
	if err := send(); err != nil {
		s.logger.Warn().Err(err).Msg("notification delivery failed")
	}
}
