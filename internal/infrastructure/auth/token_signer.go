package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/GreenViva/esiriplus-sub002/domain"
)

// sessionTokenType is the claim value that marks the anonymous session shape.
const sessionTokenType = "patient_session"

// HMACSignerImpl implements domain.CredentialSigner with an HS256 credential
// embedding the session id and the access secret. The symmetric key is known
// only to the backend.
type HMACSignerImpl struct {
	secretKey []byte
	issuer    string
}

// NewHMACSigner creates a new session credential signer.
func NewHMACSigner(secretKey, issuer string) *HMACSignerImpl {
	return &HMACSignerImpl{secretKey: []byte(secretKey), issuer: issuer}
}

// SignSessionToken implements domain.CredentialSigner.
func (s *HMACSignerImpl) SignSessionToken(sessionID, accessSecret string, expiresAt time.Time) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"typ": sessionTokenType,
		"sid": sessionID,
		"sec": accessSecret,
		"iss": s.issuer,
		"iat": now.Unix(),
		"exp": expiresAt.Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secretKey)
}

// sessionClaims is the verified claim set of an anonymous session credential.
type sessionClaims struct {
	SessionID    string
	AccessSecret string
	ExpiresAt    time.Time
}

// classify decodes the unverified claim set to decide the credential shape
// before any signature work. A credential that does not parse as a JWT or
// does not carry the session type claim is treated as an opaque staff
// credential.
func (s *HMACSignerImpl) classify(bearer string) (isSession bool, exp time.Time) {
	token, _, err := jwt.NewParser().ParseUnverified(bearer, jwt.MapClaims{})
	if err != nil {
		return false, time.Time{}
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return false, time.Time{}
	}
	if typ, _ := claims["typ"].(string); typ != sessionTokenType {
		return false, time.Time{}
	}
	if expVal, ok := claims["exp"].(float64); ok {
		exp = time.Unix(int64(expVal), 0)
	}
	return true, exp
}

// verifySessionToken checks the HMAC signature over header+payload and
// extracts the embedded session identifier and access secret. The jwt
// library performs a constant-time signature comparison.
func (s *HMACSignerImpl) verifySessionToken(bearer string) (*sessionClaims, error) {
	token, err := jwt.Parse(bearer, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, domain.ErrUnauthorized
		}
		return s.secretKey, nil
	})
	if err != nil || !token.Valid {
		return nil, domain.ErrUnauthorized
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, domain.ErrUnauthorized
	}
	sid, _ := claims["sid"].(string)
	sec, _ := claims["sec"].(string)
	exp, _ := claims["exp"].(float64)
	if sid == "" || sec == "" {
		return nil, domain.ErrUnauthorized
	}
	return &sessionClaims{
		SessionID:    sid,
		AccessSecret: sec,
		ExpiresAt:    time.Unix(int64(exp), 0),
	}, nil
}
