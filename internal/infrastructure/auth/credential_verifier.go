package auth

import (
	"context"

	"github.com/GreenViva/esiriplus-sub002/domain"
)

// CredentialVerifierImpl implements domain.CredentialVerifier. Two credential
// shapes exist: the anonymous session credential signed with the backend's
// symmetric key, and the opaque staff credential delegated to the external
// identity provider. Every failure path returns the same ErrUnauthorized so
// responses never reveal which check failed.
type CredentialVerifierImpl struct {
	signer      *HMACSignerImpl
	sessionRepo domain.SessionRepository
	hasher      domain.SecretHasher
	identity    domain.IdentityProvider
	clock       domain.Clock
}

// NewCredentialVerifier creates a new credential verifier.
func NewCredentialVerifier(
	signer *HMACSignerImpl,
	sessionRepo domain.SessionRepository,
	hasher domain.SecretHasher,
	identity domain.IdentityProvider,
	clock domain.Clock,
) domain.CredentialVerifier {
	return &CredentialVerifierImpl{
		signer:      signer,
		sessionRepo: sessionRepo,
		hasher:      hasher,
		identity:    identity,
		clock:       clock,
	}
}

// Verify implements domain.CredentialVerifier.
func (v *CredentialVerifierImpl) Verify(ctx context.Context, bearer string) (*domain.Caller, error) {
	if bearer == "" {
		return nil, domain.ErrUnauthorized
	}

	isSession, exp := v.signer.classify(bearer)
	if !isSession {
		return v.verifyStaff(ctx, bearer)
	}

	// Expiry claim is checked before signature verification so obviously
	// dead tokens never reach the key.
	if !exp.IsZero() && exp.Before(v.clock.Now()) {
		return nil, domain.ErrUnauthorized
	}

	return v.verifySession(ctx, bearer)
}

func (v *CredentialVerifierImpl) verifySession(ctx context.Context, bearer string) (*domain.Caller, error) {
	claims, err := v.signer.verifySessionToken(bearer)
	if err != nil {
		return nil, domain.ErrUnauthorized
	}

	session, err := v.sessionRepo.FindByID(ctx, claims.SessionID)
	if err != nil {
		return nil, domain.ErrUnauthorized
	}
	if !session.IsActive || session.IsLocked {
		return nil, domain.ErrUnauthorized
	}
	if session.AccessExpiresAt.Before(v.clock.Now()) {
		return nil, domain.ErrUnauthorized
	}

	// Fast hash narrows the match, the slow verifier confirms it. Both must
	// pass: a fast-hash collision alone is not enough.
	if v.hasher.FastHash(claims.AccessSecret) != session.AccessTokenHash {
		return nil, domain.ErrUnauthorized
	}
	if !v.hasher.SlowCompare(session.AccessTokenVerifier, claims.AccessSecret) {
		return nil, domain.ErrUnauthorized
	}

	// Best effort; a failed touch never rejects the call.
	_ = v.sessionRepo.TouchLastSeen(ctx, session.ID)

	return &domain.Caller{
		Kind:      domain.CallerPatient,
		SessionID: session.ID,
		Role:      "patient",
	}, nil
}

func (v *CredentialVerifierImpl) verifyStaff(ctx context.Context, bearer string) (*domain.Caller, error) {
	identity, err := v.identity.Validate(ctx, bearer)
	if err != nil {
		return nil, domain.ErrUnauthorized
	}
	return &domain.Caller{
		Kind:    domain.CallerStaff,
		StaffID: identity.ID,
		Role:    identity.Role,
	}, nil
}
