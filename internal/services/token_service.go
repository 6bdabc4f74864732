package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/GreenViva/esiriplus-sub002/domain"
)

// TokenServiceImpl implements domain.TokenService
type TokenServiceImpl struct {
	issuer         *secretIssuer
	sessionRepo    domain.SessionRepository
	hasher         domain.SecretHasher
	auditSink      domain.AuditSink
	clock          domain.Clock
	accessTTL      time.Duration
	refreshCeiling time.Duration
}

// NewTokenService creates a new token service
func NewTokenService(
	sessionRepo domain.SessionRepository,
	hasher domain.SecretHasher,
	signer domain.CredentialSigner,
	auditSink domain.AuditSink,
	clock domain.Clock,
	accessTTL, refreshCeiling time.Duration,
) domain.TokenService {
	return &TokenServiceImpl{
		issuer: &secretIssuer{
			sessionRepo: sessionRepo,
			hasher:      hasher,
			signer:      signer,
			clock:       clock,
			accessTTL:   accessTTL,
		},
		sessionRepo:    sessionRepo,
		hasher:         hasher,
		auditSink:      auditSink,
		clock:          clock,
		accessTTL:      accessTTL,
		refreshCeiling: refreshCeiling,
	}
}

// CreateSession implements domain.TokenService. Both cleartext secrets leave
// the server exactly once, in the returned bundle; only their hashes are
// persisted.
func (s *TokenServiceImpl) CreateSession(ctx context.Context) (*domain.TokenBundle, error) {
	access, refresh, err := s.issuer.issue(ctx)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	session := &domain.PatientSession{
		ID:                   uuid.NewString(),
		AccessTokenHash:      access.fastHash,
		AccessTokenVerifier:  access.verifier,
		RefreshTokenHash:     refresh.fastHash,
		RefreshTokenVerifier: refresh.verifier,
		IsActive:             true,
		AccessExpiresAt:      now.Add(s.accessTTL),
		RefreshExpiresAt:     now.Add(s.refreshCeiling),
		LastSeenAt:           now,
	}
	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	bundle, err := s.issuer.bundle(session.ID, access, refresh, session.AccessExpiresAt, session.RefreshExpiresAt)
	if err != nil {
		return nil, err
	}

	s.auditSink.Record(&domain.AuditEvent{
		EventType: domain.SessionCreatedEvent,
		SessionID: session.ID,
		Success:   true,
	})
	return bundle, nil
}

// Refresh implements domain.TokenService. Rotation replaces both secret hash
// pairs atomically, which makes every refresh secret single-use: a replay
// fails the fast-hash lookup because the row no longer matches. The absolute
// refresh ceiling set at creation is never extended.
func (s *TokenServiceImpl) Refresh(ctx context.Context, sessionID, refreshToken string) (*domain.TokenBundle, error) {
	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		s.auditRefreshFailure(sessionID, "session not found")
		return nil, domain.ErrUnauthorized
	}
	if !session.IsActive || session.IsLocked {
		s.auditRefreshFailure(sessionID, "session inactive or locked")
		return nil, domain.ErrUnauthorized
	}

	// Fast hash narrows, slow hash confirms: a fast-hash collision alone
	// does not pass.
	providedFastHash := s.hasher.FastHash(refreshToken)
	if providedFastHash != session.RefreshTokenHash {
		s.auditRefreshFailure(sessionID, "refresh secret mismatch")
		return nil, domain.ErrUnauthorized
	}
	if !s.hasher.SlowCompare(session.RefreshTokenVerifier, refreshToken) {
		s.auditRefreshFailure(sessionID, "refresh verifier mismatch")
		return nil, domain.ErrUnauthorized
	}

	now := s.clock.Now()
	if now.After(session.RefreshExpiresAt) {
		// Ceiling exhausted: the session is done, the caller re-onboards.
		if err := s.sessionRepo.Deactivate(ctx, sessionID); err != nil {
			return nil, fmt.Errorf("failed to deactivate exhausted session: %w", err)
		}
		s.auditSink.Record(&domain.AuditEvent{
			EventType: domain.SessionExpiredEvent,
			SessionID: sessionID,
			Success:   true,
			ErrorMsg:  "refresh ceiling reached",
		})
		return nil, domain.ErrUnauthorized
	}

	access, refresh, err := s.issuer.issue(ctx)
	if err != nil {
		return nil, err
	}

	rotated := domain.RotatedSecrets{
		AccessTokenHash:      access.fastHash,
		AccessTokenVerifier:  access.verifier,
		RefreshTokenHash:     refresh.fastHash,
		RefreshTokenVerifier: refresh.verifier,
		AccessExpiresAt:      now.Add(s.accessTTL),
	}
	if err := s.sessionRepo.RotateSecrets(ctx, sessionID, providedFastHash, rotated); err != nil {
		if err == domain.ErrRefreshReplayed {
			// Lost the rotation race: a concurrent call consumed this
			// secret first.
			s.auditRefreshFailure(sessionID, "refresh secret already consumed")
			return nil, domain.ErrUnauthorized
		}
		return nil, fmt.Errorf("failed to rotate secrets: %w", err)
	}

	bundle, err := s.issuer.bundle(sessionID, access, refresh, rotated.AccessExpiresAt, session.RefreshExpiresAt)
	if err != nil {
		return nil, err
	}

	s.auditSink.Record(&domain.AuditEvent{
		EventType: domain.SessionRefreshedEvent,
		SessionID: sessionID,
		Success:   true,
	})
	return bundle, nil
}

func (s *TokenServiceImpl) auditRefreshFailure(sessionID, detail string) {
	s.auditSink.Record(&domain.AuditEvent{
		EventType: domain.RefreshRejectedEvent,
		SessionID: sessionID,
		Success:   false,
		ErrorMsg:  detail,
	})
}
