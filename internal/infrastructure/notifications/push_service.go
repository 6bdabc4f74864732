package notifications

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/GreenViva/esiriplus-sub002/domain"
)

// PushServiceImpl implements domain.Notifier. Doctor notifications go out as
// SMS through Twilio when credentials are configured; patient sessions are
// anonymous with no reachable address, so their notifications are delivered
// through the in-app channel (the transcript) and only logged here. When
// Twilio is not configured everything is logged instead of sent.
type PushServiceImpl struct {
	client     *twilio.RestClient
	fromNumber string
	doctorRepo domain.DoctorRepository
	logger     zerolog.Logger
}

// NewPushService creates a new push notification service.
func NewPushService(accountSID, authToken, fromNumber string, doctorRepo domain.DoctorRepository, logger zerolog.Logger) domain.Notifier {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})

	return &PushServiceImpl{
		client:     client,
		fromNumber: fromNumber,
		doctorRepo: doctorRepo,
		logger:     logger.With().Str("component", "notifier").Logger(),
	}
}

// NotifyDoctor implements domain.Notifier.
func (s *PushServiceImpl) NotifyDoctor(ctx context.Context, doctorID, title, body string) error {
	if s.fromNumber == "" {
		s.logger.Info().Str("doctor_id", doctorID).Str("title", title).Str("body", body).
			Msg("mock doctor notification")
		return nil
	}

	doctor, err := s.doctorRepo.FindByID(ctx, doctorID)
	if err != nil {
		return fmt.Errorf("failed to resolve doctor contact: %w", err)
	}
	if doctor.ContactNumber == "" {
		return fmt.Errorf("doctor %s has no contact number", doctorID)
	}

	params := &twilioApi.CreateMessageParams{}
	params.SetTo(doctor.ContactNumber)
	params.SetFrom(s.fromNumber)
	params.SetBody(title + ": " + body)

	if _, err := s.client.Api.CreateMessage(params); err != nil {
		return fmt.Errorf("failed to send SMS: %w", err)
	}
	return nil
}

// NotifyPatient implements domain.Notifier.
func (s *PushServiceImpl) NotifyPatient(ctx context.Context, sessionID, title, body string) error {
	s.logger.Info().Str("session_id", sessionID).Str("title", title).Str("body", body).
		Msg("patient notification queued for in-app delivery")
	return nil
}
