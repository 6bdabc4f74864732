package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/pbkdf2"

	"github.com/GreenViva/esiriplus-sub002/domain"
)

const (
	saltBytes   = 16
	digestBytes = 32
	encPrefix   = "pbkdf2-sha256"
)

// SecretHasherImpl implements domain.SecretHasher with the two-tier pattern:
// SHA-256 for the indexed lookup hash and PBKDF2-SHA256 for the slow,
// timing-safe verifier. The iteration count makes comparison deliberately
// expensive and uniform regardless of input.
type SecretHasherImpl struct {
	iterations int
}

// NewSecretHasher creates a new secret hasher. Iterations below 100k are a
// configuration error caught at config load.
func NewSecretHasher(iterations int) domain.SecretHasher {
	return &SecretHasherImpl{iterations: iterations}
}

// FastHash implements domain.SecretHasher.
func (h *SecretHasherImpl) FastHash(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

// SlowHash implements domain.SecretHasher. The encoding carries the scheme,
// iteration count, and salt so old digests stay verifiable after the
// configured cost changes.
func (h *SecretHasherImpl) SlowHash(secret string) (string, error) {
	salt := make([]byte, saltBytes)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}
	digest := pbkdf2.Key([]byte(secret), salt, h.iterations, digestBytes, sha256.New)
	return fmt.Sprintf("%s$%d$%s$%s",
		encPrefix,
		h.iterations,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(digest),
	), nil
}

// SlowCompare implements domain.SecretHasher.
func (h *SecretHasherImpl) SlowCompare(encoded, secret string) bool {
	parts := strings.Split(encoded, "$")
	if len(parts) != 4 || parts[0] != encPrefix {
		return false
	}
	iterations, err := strconv.Atoi(parts[1])
	if err != nil || iterations <= 0 {
		return false
	}
	salt, err := base64.RawStdEncoding.DecodeString(parts[2])
	if err != nil {
		return false
	}
	want, err := base64.RawStdEncoding.DecodeString(parts[3])
	if err != nil {
		return false
	}
	got := pbkdf2.Key([]byte(secret), salt, iterations, len(want), sha256.New)
	return hmac.Equal(got, want)
}

// NewSalt implements domain.SecretHasher.
func (h *SecretHasherImpl) NewSalt() (string, error) {
	salt := make([]byte, saltBytes)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}
	return hex.EncodeToString(salt), nil
}

// SlowHashWithSalt implements domain.SecretHasher.
func (h *SecretHasherImpl) SlowHashWithSalt(secret, salt string) string {
	rawSalt, err := hex.DecodeString(salt)
	if err != nil {
		// A corrupt stored salt can never verify; hash with the literal
		// bytes so comparison still burns uniform time.
		rawSalt = []byte(salt)
	}
	digest := pbkdf2.Key([]byte(secret), rawSalt, h.iterations, digestBytes, sha256.New)
	return base64.RawStdEncoding.EncodeToString(digest)
}

// SlowCompareWithSalt implements domain.SecretHasher.
func (h *SecretHasherImpl) SlowCompareWithSalt(digest, salt, secret string) bool {
	got := h.SlowHashWithSalt(secret, salt)
	return hmac.Equal([]byte(got), []byte(digest))
}
