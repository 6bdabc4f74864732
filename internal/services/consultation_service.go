package services

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/GreenViva/esiriplus-sub002/domain"
)

// ConsultationConfig carries the engine's timing and pricing constants.
type ConsultationConfig struct {
	ExtensionMinutes int
	ExtensionFee     int64
	GracePeriod      time.Duration
}

// ConsultationServiceImpl implements domain.ConsultationService. Deadlines
// are data checked at the moment of transition, never scheduled callbacks,
// so expiry stays race-safe under delayed client calls. Every transition is
// a conditional update and every transition writes a transcript marker.
type ConsultationServiceImpl struct {
	consultationRepo domain.ConsultationRepository
	paymentGateway   domain.PaymentGateway
	notifier         domain.Notifier
	auditSink        domain.AuditSink
	clock            domain.Clock
	cfg              ConsultationConfig
	logger           zerolog.Logger
}

// NewConsultationService creates a new timed consultation engine
func NewConsultationService(
	consultationRepo domain.ConsultationRepository,
	paymentGateway domain.PaymentGateway,
	notifier domain.Notifier,
	auditSink domain.AuditSink,
	clock domain.Clock,
	cfg ConsultationConfig,
	logger zerolog.Logger,
) domain.ConsultationService {
	return &ConsultationServiceImpl{
		consultationRepo: consultationRepo,
		paymentGateway:   paymentGateway,
		notifier:         notifier,
		auditSink:        auditSink,
		clock:            clock,
		cfg:              cfg,
		logger:           logger.With().Str("component", "consultation").Logger(),
	}
}

// Sync implements domain.ConsultationService. Read-only: the snapshot
// carries the server clock so clients reconcile countdowns against it
// instead of trusting their own.
func (s *ConsultationServiceImpl) Sync(ctx context.Context, caller domain.Caller, consultationID string) (*domain.ConsultationState, error) {
	consultation, err := s.load(ctx, caller, consultationID)
	if err != nil {
		return nil, err
	}
	state := s.snapshot(consultation)
	if consultation.Status == domain.ConsultationGracePeriod {
		// The gateway is idempotent per consultation and amount, so
		// re-initiating surfaces the already-open payment id.
		if paymentID, err := s.paymentGateway.InitiateExtension(ctx, consultation.ID, s.cfg.ExtensionFee); err == nil {
			state.PaymentID = paymentID
		}
	}
	return state, nil
}

// End implements domain.ConsultationService
func (s *ConsultationServiceImpl) End(ctx context.Context, caller domain.Caller, consultationID string) (*domain.ConsultationState, error) {
	consultation, err := s.load(ctx, caller, consultationID)
	if err != nil {
		return nil, err
	}
	if caller.Kind != domain.CallerStaff {
		return nil, domain.ErrInsufficientRole
	}
	if consultation.Status == domain.ConsultationCompleted {
		return nil, domain.ErrConsultationClosed
	}

	if err := s.consultationRepo.Complete(ctx, consultationID); err != nil {
		if err == domain.ErrStaleTransition {
			return s.snapshotCurrent(ctx, caller, consultationID)
		}
		return nil, err
	}
	consultation.Status = domain.ConsultationCompleted

	s.appendMarker(ctx, consultationID, "Consultation ended by doctor")
	s.notify(func() error {
		return s.notifier.NotifyPatient(ctx, consultation.PatientSessionID, "Consultation ended",
			"Your doctor has ended the consultation.")
	})
	s.auditSink.Record(&domain.AuditEvent{
		EventType:      domain.ConsultationEndedEvent,
		StaffID:        caller.StaffID,
		ConsultationID: consultationID,
		Success:        true,
	})
	return s.snapshot(consultation), nil
}

// TimerExpired implements domain.ConsultationService. Idempotent: a second
// call while already awaiting_extension returns the current state unchanged.
func (s *ConsultationServiceImpl) TimerExpired(ctx context.Context, caller domain.Caller, consultationID string) (*domain.ConsultationState, error) {
	consultation, err := s.load(ctx, caller, consultationID)
	if err != nil {
		return nil, err
	}
	switch consultation.Status {
	case domain.ConsultationAwaitingExtension:
		return s.snapshot(consultation), nil
	case domain.ConsultationActive:
	case domain.ConsultationCompleted:
		return nil, domain.ErrConsultationClosed
	default:
		return nil, &domain.StateConflictError{Current: string(consultation.Status)}
	}
	// The countdown is client-observed but the deadline is server-owned.
	if s.clock.Now().Before(consultation.ScheduledEndAt) {
		return nil, domain.NewValidationError("timer_not_due", "scheduled end has not been reached")
	}

	if err := s.consultationRepo.Transition(ctx, consultationID, domain.ConsultationActive, domain.ConsultationAwaitingExtension); err != nil {
		if err == domain.ErrStaleTransition {
			// A concurrent caller may have won the flip. If it landed in
			// awaiting_extension the operation stays idempotent.
			current, rerr := s.load(ctx, caller, consultationID)
			if rerr != nil {
				return nil, rerr
			}
			if current.Status == domain.ConsultationAwaitingExtension {
				return s.snapshot(current), nil
			}
			return nil, &domain.StateConflictError{Current: string(current.Status)}
		}
		return nil, err
	}
	consultation.Status = domain.ConsultationAwaitingExtension

	s.appendMarker(ctx, consultationID, "Scheduled time ended, awaiting extension decision")
	return s.snapshot(consultation), nil
}

// RequestExtension implements domain.ConsultationService. The offer itself
// does not change status; the patient must act on it.
func (s *ConsultationServiceImpl) RequestExtension(ctx context.Context, caller domain.Caller, consultationID string) (*domain.ConsultationState, error) {
	consultation, err := s.load(ctx, caller, consultationID)
	if err != nil {
		return nil, err
	}
	if caller.Kind != domain.CallerStaff {
		return nil, domain.ErrInsufficientRole
	}
	if err := s.requireStatus(consultation, domain.ConsultationAwaitingExtension); err != nil {
		return nil, err
	}

	s.appendMarker(ctx, consultationID,
		fmt.Sprintf("Doctor offered a %d minute extension for %s", s.cfg.ExtensionMinutes, formatFee(s.cfg.ExtensionFee)))
	s.notify(func() error {
		return s.notifier.NotifyPatient(ctx, consultation.PatientSessionID, "Extension offered",
			fmt.Sprintf("Your doctor offered to extend the consultation by %d minutes for %s.",
				s.cfg.ExtensionMinutes, formatFee(s.cfg.ExtensionFee)))
	})
	s.auditSink.Record(&domain.AuditEvent{
		EventType:      domain.ExtensionRequestedEvent,
		StaffID:        caller.StaffID,
		ConsultationID: consultationID,
		Success:        true,
		Metadata:       map[string]interface{}{"fee": s.cfg.ExtensionFee, "minutes": s.cfg.ExtensionMinutes},
	})
	return s.snapshot(consultation), nil
}

// AcceptExtension implements domain.ConsultationService. Entering the grace
// period opens a bounded payment window and initiates the payment.
func (s *ConsultationServiceImpl) AcceptExtension(ctx context.Context, caller domain.Caller, consultationID string) (*domain.ConsultationState, error) {
	consultation, err := s.load(ctx, caller, consultationID)
	if err != nil {
		return nil, err
	}
	if caller.Kind != domain.CallerPatient {
		return nil, domain.ErrInsufficientRole
	}
	if err := s.requireStatus(consultation, domain.ConsultationAwaitingExtension); err != nil {
		return nil, err
	}

	graceEndsAt := s.clock.Now().Add(s.cfg.GracePeriod)
	if err := s.consultationRepo.EnterGrace(ctx, consultationID, graceEndsAt); err != nil {
		if err == domain.ErrStaleTransition {
			return s.snapshotCurrent(ctx, caller, consultationID)
		}
		return nil, err
	}
	consultation.Status = domain.ConsultationGracePeriod
	consultation.GracePeriodEndAt = &graceEndsAt

	paymentID, err := s.paymentGateway.InitiateExtension(ctx, consultationID, s.cfg.ExtensionFee)
	if err != nil {
		// Roll the window back so the patient can retry instead of being
		// stuck in a grace period with no payment attached.
		if cerr := s.consultationRepo.CancelGrace(ctx, consultationID); cerr != nil {
			s.logger.Error().Err(cerr).Str("consultation_id", consultationID).Msg("grace rollback failed")
		}
		return nil, fmt.Errorf("failed to initiate extension payment: %w", err)
	}

	s.appendMarker(ctx, consultationID, "Patient accepted the extension, awaiting payment")
	s.auditSink.Record(&domain.AuditEvent{
		EventType:      domain.ExtensionAcceptedEvent,
		SessionID:      caller.SessionID,
		ConsultationID: consultationID,
		Success:        true,
		Metadata:       map[string]interface{}{"payment_id": paymentID},
	})
	state := s.snapshot(consultation)
	state.PaymentID = paymentID
	return state, nil
}

// DeclineExtension implements domain.ConsultationService. Status is left
// untouched; the doctor observes the marker and ends the consultation.
func (s *ConsultationServiceImpl) DeclineExtension(ctx context.Context, caller domain.Caller, consultationID string) (*domain.ConsultationState, error) {
	consultation, err := s.load(ctx, caller, consultationID)
	if err != nil {
		return nil, err
	}
	if caller.Kind != domain.CallerPatient {
		return nil, domain.ErrInsufficientRole
	}
	if err := s.requireStatus(consultation, domain.ConsultationAwaitingExtension); err != nil {
		return nil, err
	}

	s.appendMarker(ctx, consultationID, "Patient declined the extension")
	s.notify(func() error {
		return s.notifier.NotifyDoctor(ctx, consultation.DoctorID, "Extension declined",
			"The patient declined the extension offer.")
	})
	s.auditSink.Record(&domain.AuditEvent{
		EventType:      domain.ExtensionDeclinedEvent,
		SessionID:      caller.SessionID,
		ConsultationID: consultationID,
		Success:        true,
	})
	return s.snapshot(consultation), nil
}

// PaymentConfirmed implements domain.ConsultationService. The gateway is the
// source of truth for payment success; the client's claim alone never
// extends a consultation.
func (s *ConsultationServiceImpl) PaymentConfirmed(ctx context.Context, caller domain.Caller, consultationID, paymentID string) (*domain.ConsultationState, error) {
	consultation, err := s.load(ctx, caller, consultationID)
	if err != nil {
		return nil, err
	}
	if caller.Kind != domain.CallerPatient {
		return nil, domain.ErrInsufficientRole
	}
	if err := s.requireStatus(consultation, domain.ConsultationGracePeriod); err != nil {
		return nil, err
	}
	if consultation.GracePeriodEndAt != nil && s.clock.Now().After(*consultation.GracePeriodEndAt) {
		// Window elapsed. Fold back to awaiting_extension and report the
		// conflict so the client re-decides instead of silently extending.
		if err := s.consultationRepo.CancelGrace(ctx, consultationID); err != nil && err != domain.ErrStaleTransition {
			return nil, err
		}
		return nil, &domain.StateConflictError{Current: string(domain.ConsultationAwaitingExtension)}
	}

	status, err := s.paymentGateway.VerifyPayment(ctx, paymentID)
	if err != nil {
		return nil, fmt.Errorf("failed to verify payment: %w", err)
	}
	if status != domain.PaymentSucceeded {
		return nil, domain.ErrPaymentNotConfirmed
	}

	newEnd := consultation.ScheduledEndAt.Add(time.Duration(s.cfg.ExtensionMinutes) * time.Minute)
	if err := s.consultationRepo.ApplyExtension(ctx, consultationID, newEnd); err != nil {
		if err == domain.ErrStaleTransition {
			return s.snapshotCurrent(ctx, caller, consultationID)
		}
		return nil, err
	}
	consultation.Status = domain.ConsultationActive
	consultation.ScheduledEndAt = newEnd
	consultation.GracePeriodEndAt = nil
	consultation.ExtensionCount++

	s.appendMarker(ctx, consultationID, fmt.Sprintf("Session extended by %d minutes", s.cfg.ExtensionMinutes))
	s.notify(func() error {
		return s.notifier.NotifyDoctor(ctx, consultation.DoctorID, "Extension paid",
			fmt.Sprintf("The session was extended by %d minutes.", s.cfg.ExtensionMinutes))
	})
	s.auditSink.Record(&domain.AuditEvent{
		EventType:      domain.ExtensionPaidEvent,
		SessionID:      caller.SessionID,
		ConsultationID: consultationID,
		Success:        true,
		Metadata:       map[string]interface{}{"payment_id": paymentID, "extension_count": consultation.ExtensionCount},
	})
	return s.snapshot(consultation), nil
}

// CancelPayment implements domain.ConsultationService
func (s *ConsultationServiceImpl) CancelPayment(ctx context.Context, caller domain.Caller, consultationID string) (*domain.ConsultationState, error) {
	consultation, err := s.load(ctx, caller, consultationID)
	if err != nil {
		return nil, err
	}
	if caller.Kind != domain.CallerPatient {
		return nil, domain.ErrInsufficientRole
	}
	if err := s.requireStatus(consultation, domain.ConsultationGracePeriod); err != nil {
		return nil, err
	}

	if err := s.consultationRepo.CancelGrace(ctx, consultationID); err != nil {
		if err == domain.ErrStaleTransition {
			return s.snapshotCurrent(ctx, caller, consultationID)
		}
		return nil, err
	}
	consultation.Status = domain.ConsultationAwaitingExtension
	consultation.GracePeriodEndAt = nil

	s.appendMarker(ctx, consultationID, "Extension payment cancelled")
	s.auditSink.Record(&domain.AuditEvent{
		EventType:      domain.ExtensionPaymentAbandoned,
		SessionID:      caller.SessionID,
		ConsultationID: consultationID,
		Success:        true,
	})
	return s.snapshot(consultation), nil
}

// load fetches the consultation and authorizes the caller as a participant.
func (s *ConsultationServiceImpl) load(ctx context.Context, caller domain.Caller, consultationID string) (*domain.Consultation, error) {
	consultation, err := s.consultationRepo.FindByID(ctx, consultationID)
	if err != nil {
		return nil, err
	}
	if !consultation.IsParticipant(caller) {
		return nil, domain.ErrNotParticipant
	}
	return consultation, nil
}

// requireStatus rejects an action arriving in the wrong state, keeping
// completed as its own terminal error.
func (s *ConsultationServiceImpl) requireStatus(consultation *domain.Consultation, want domain.ConsultationStatus) error {
	if consultation.Status == want {
		return nil
	}
	if consultation.Status == domain.ConsultationCompleted {
		return domain.ErrConsultationClosed
	}
	return domain.ErrInvalidTransition
}

func (s *ConsultationServiceImpl) snapshot(consultation *domain.Consultation) *domain.ConsultationState {
	return &domain.ConsultationState{
		Consultation: consultation,
		ServerTime:   s.clock.Now(),
	}
}

// snapshotCurrent re-reads after a lost race and reports the authoritative
// state as a conflict.
func (s *ConsultationServiceImpl) snapshotCurrent(ctx context.Context, caller domain.Caller, consultationID string) (*domain.ConsultationState, error) {
	current, err := s.load(ctx, caller, consultationID)
	if err != nil {
		return nil, err
	}
	return nil, &domain.StateConflictError{Current: string(current.Status)}
}

func (s *ConsultationServiceImpl) appendMarker(ctx context.Context, consultationID, body string) {
	entry := &domain.TranscriptEntry{
		ConsultationID: consultationID,
		Kind:           domain.TranscriptKindSystem,
		Body:           body,
	}
	if err := s.consultationRepo.AppendTranscript(ctx, entry); err != nil {
		s.logger.Warn().Err(err).Str("consultation_id", consultationID).Msg("transcript marker write failed")
	}
}

func (s *ConsultationServiceImpl) notify(send func() error) {
	if err := send(); err != nil {
		s.logger.Warn().Err(err).Msg("notification delivery failed")
	}
}

// formatFee renders a minor-unit amount as a display string.
func formatFee(cents int64) string {
	return fmt.Sprintf("%d.%02d", cents/100, cents%100)
}
