package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/GreenViva/esiriplus-sub002/domain"
)

// secretPair is one freshly generated secret with both of its stored hashes.
type secretPair struct {
	secret   string
	fastHash string
	verifier string
}

// secretIssuer generates session secrets and their two-tier hashes. Shared
// by the token service (create/refresh) and the recovery service (re-issue)
// so all three paths mint credentials identically.
type secretIssuer struct {
	sessionRepo domain.SessionRepository
	hasher      domain.SecretHasher
	signer      domain.CredentialSigner
	clock       domain.Clock
	accessTTL   time.Duration
}

// secretCollisionRetries bounds the lookup-collision loop. A SHA-256
// collision on fresh 32-byte secrets is astronomically unlikely but the
// guard must exist structurally.
const secretCollisionRetries = 5

// newSecretPair generates a high-entropy secret (32 random bytes plus a
// uniqueness component) and both hashes, retrying until the fast lookup
// hash is unique across all sessions.
func (i *secretIssuer) newSecretPair(ctx context.Context) (*secretPair, error) {
	for attempt := 0; attempt < secretCollisionRetries; attempt++ {
		raw := make([]byte, 32)
		if _, err := rand.Read(raw); err != nil {
			return nil, fmt.Errorf("failed to generate secret: %w", err)
		}
		secret := hex.EncodeToString(raw) + "." + uuid.NewString()

		fastHash := i.hasher.FastHash(secret)
		exists, err := i.sessionRepo.FastHashExists(ctx, fastHash)
		if err != nil {
			return nil, fmt.Errorf("failed collision check: %w", err)
		}
		if exists {
			continue
		}

		verifier, err := i.hasher.SlowHash(secret)
		if err != nil {
			return nil, fmt.Errorf("failed to derive verifier: %w", err)
		}
		return &secretPair{secret: secret, fastHash: fastHash, verifier: verifier}, nil
	}
	return nil, fmt.Errorf("could not find a unique secret hash after %d attempts", secretCollisionRetries)
}

// issue generates a fresh access/refresh pair for the session.
func (i *secretIssuer) issue(ctx context.Context) (access, refresh *secretPair, err error) {
	access, err = i.newSecretPair(ctx)
	if err != nil {
		return nil, nil, err
	}
	refresh, err = i.newSecretPair(ctx)
	if err != nil {
		return nil, nil, err
	}
	return access, refresh, nil
}

// bundle signs the access credential and assembles the one-time response
// carrying both cleartext secrets.
func (i *secretIssuer) bundle(sessionID string, access, refresh *secretPair, accessExpiresAt, refreshExpiresAt time.Time) (*domain.TokenBundle, error) {
	signed, err := i.signer.SignSessionToken(sessionID, access.secret, accessExpiresAt)
	if err != nil {
		return nil, fmt.Errorf("failed to sign access credential: %w", err)
	}
	return &domain.TokenBundle{
		SessionID:        sessionID,
		AccessToken:      signed,
		RefreshToken:     refresh.secret,
		TokenType:        "Bearer",
		ExpiresIn:        int64(i.accessTTL.Seconds()),
		AccessExpiresAt:  accessExpiresAt,
		RefreshExpiresAt: refreshExpiresAt,
	}, nil
}
