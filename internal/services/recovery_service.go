package services

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/GreenViva/esiriplus-sub002/domain"
)

// recoveryIDAlphabet excludes visually ambiguous characters (0/O, 1/I/L) so
// the identifier survives being written down.
const recoveryIDAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

const recoveryIDRetries = 10

// RecoveryServiceImpl implements domain.RecoveryService
type RecoveryServiceImpl struct {
	issuer         *secretIssuer
	sessionRepo    domain.SessionRepository
	hasher         domain.SecretHasher
	guard          domain.RecoveryGuard
	auditSink      domain.AuditSink
	clock          domain.Clock
	accessTTL      time.Duration
	refreshCeiling time.Duration
}

// NewRecoveryService creates a new recovery service
func NewRecoveryService(
	sessionRepo domain.SessionRepository,
	hasher domain.SecretHasher,
	signer domain.CredentialSigner,
	guard domain.RecoveryGuard,
	auditSink domain.AuditSink,
	clock domain.Clock,
	accessTTL, refreshCeiling time.Duration,
) domain.RecoveryService {
	return &RecoveryServiceImpl{
		issuer: &secretIssuer{
			sessionRepo: sessionRepo,
			hasher:      hasher,
			signer:      signer,
			clock:       clock,
			accessTTL:   accessTTL,
		},
		sessionRepo:    sessionRepo,
		hasher:         hasher,
		guard:          guard,
		auditSink:      auditSink,
		clock:          clock,
		accessTTL:      accessTTL,
		refreshCeiling: refreshCeiling,
	}
}

// Setup implements domain.RecoveryService. Requires exactly five answers
// with distinct keys from the fixed question set; the generated recovery
// identifier is returned to the caller exactly once and cannot be recovered
// server-side if lost.
func (s *RecoveryServiceImpl) Setup(ctx context.Context, sessionID string, answers map[string]string) (string, error) {
	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return "", err
	}
	if session.RecoverySetupComplete {
		return "", domain.ErrRecoveryAlreadySetup
	}

	if len(answers) != domain.RecoveryAnswerCount {
		return "", domain.NewValidationError("recovery_answer_count",
			"exactly %d answers are required, got %d", domain.RecoveryAnswerCount, len(answers))
	}
	for key, answer := range answers {
		if !validQuestionKey(key) {
			return "", domain.NewValidationError("recovery_question_key", "unknown question key %q", key)
		}
		if normalizeAnswer(answer) == "" {
			return "", domain.NewValidationError("recovery_answer_empty", "answer for %q is empty", key)
		}
	}

	recoveryID, recoveryIDHash, err := s.newRecoveryID(ctx)
	if err != nil {
		return "", err
	}

	questions := make([]domain.RecoveryQuestion, 0, len(answers))
	for key, answer := range answers {
		salt, err := s.hasher.NewSalt()
		if err != nil {
			return "", err
		}
		questions = append(questions, domain.RecoveryQuestion{
			SessionID:   sessionID,
			QuestionKey: key,
			AnswerHash:  s.hasher.SlowHashWithSalt(normalizeAnswer(answer), salt),
			AnswerSalt:  salt,
		})
	}

	if err := s.sessionRepo.SaveRecoverySetup(ctx, sessionID, recoveryID, recoveryIDHash, questions); err != nil {
		return "", err
	}

	s.auditSink.Record(&domain.AuditEvent{
		EventType: domain.RecoverySetupEvent,
		SessionID: sessionID,
		Success:   true,
	})
	return recoveryID, nil
}

// RecoverByID implements domain.RecoveryService. The not-found path returns
// the same generic error whether or not the identifier exists.
func (s *RecoveryServiceImpl) RecoverByID(ctx context.Context, recoveryID, origin string) (*domain.TokenBundle, error) {
	idHash := s.hasher.FastHash(normalizeRecoveryID(recoveryID))
	if err := s.guard.CheckLocked(ctx, idHash, origin); err != nil {
		s.auditRecoveryLocked(idHash, origin)
		return nil, err
	}

	session, err := s.sessionRepo.FindByRecoveryIDHash(ctx, idHash)
	if err != nil {
		s.failAttempt(ctx, idHash, origin, "", "identifier not found")
		return nil, domain.ErrRecoveryNotFound
	}

	bundle, err := s.reissue(ctx, session)
	if err != nil {
		return nil, err
	}

	if err := s.guard.RecordAttempt(ctx, idHash, origin, true); err != nil {
		return nil, err
	}
	s.auditSink.Record(&domain.AuditEvent{
		EventType: domain.RecoverySucceededEvent,
		SessionID: session.ID,
		Origin:    origin,
		Success:   true,
		Metadata:  map[string]interface{}{"path": "by_id"},
	})
	return bundle, nil
}

// RecoverByQuestions implements domain.RecoveryService. Every stored
// question is compared with the slow verifier regardless of which answers
// were provided, so comparison cost does not leak which keys exist or
// match. At least RecoveryAnswerThreshold must be correct.
func (s *RecoveryServiceImpl) RecoverByQuestions(ctx context.Context, recoveryID string, answers map[string]string, origin string) (*domain.TokenBundle, string, error) {
	idHash := s.hasher.FastHash(normalizeRecoveryID(recoveryID))
	if err := s.guard.CheckLocked(ctx, idHash, origin); err != nil {
		s.auditRecoveryLocked(idHash, origin)
		return nil, "", err
	}

	for key := range answers {
		if !validQuestionKey(key) {
			return nil, "", domain.NewValidationError("recovery_question_key", "unknown question key %q", key)
		}
	}
	if len(answers) < domain.RecoveryAnswerThreshold {
		return nil, "", domain.NewValidationError("recovery_answer_count",
			"at least %d answers are required", domain.RecoveryAnswerThreshold)
	}

	session, err := s.sessionRepo.FindByRecoveryIDHash(ctx, idHash)
	if err != nil {
		s.failAttempt(ctx, idHash, origin, "", "identifier not found")
		return nil, "", domain.ErrRecoveryNotFound
	}

	stored, err := s.sessionRepo.RecoveryQuestions(ctx, session.ID)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load recovery questions: %w", err)
	}

	correct := 0
	for _, q := range stored {
		provided := normalizeAnswer(answers[q.QuestionKey])
		if s.hasher.SlowCompareWithSalt(q.AnswerHash, q.AnswerSalt, provided) {
			correct++
		}
	}

	if correct < domain.RecoveryAnswerThreshold {
		s.failAttempt(ctx, idHash, origin, session.ID,
			fmt.Sprintf("answer threshold not met: %d of %d", correct, domain.RecoveryAnswerThreshold))
		return nil, "", &domain.InsufficientAnswersError{Got: correct, Need: domain.RecoveryAnswerThreshold}
	}

	bundle, err := s.reissue(ctx, session)
	if err != nil {
		return nil, "", err
	}

	if err := s.guard.RecordAttempt(ctx, idHash, origin, true); err != nil {
		return nil, "", err
	}
	s.auditSink.Record(&domain.AuditEvent{
		EventType: domain.RecoverySucceededEvent,
		SessionID: session.ID,
		Origin:    origin,
		Success:   true,
		Metadata:  map[string]interface{}{"path": "by_questions", "correct": correct},
	})
	// The caller may have forgotten the identifier; remind them.
	return bundle, session.PublicRecoveryID, nil
}

// reissue mints a fresh secret pair and reactivates the session, exactly as
// session creation does.
func (s *RecoveryServiceImpl) reissue(ctx context.Context, session *domain.PatientSession) (*domain.TokenBundle, error) {
	access, refresh, err := s.issuer.issue(ctx)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	rotated := domain.RotatedSecrets{
		AccessTokenHash:      access.fastHash,
		AccessTokenVerifier:  access.verifier,
		RefreshTokenHash:     refresh.fastHash,
		RefreshTokenVerifier: refresh.verifier,
		AccessExpiresAt:      now.Add(s.accessTTL),
	}
	refreshExpiresAt := now.Add(s.refreshCeiling)
	if err := s.sessionRepo.Reissue(ctx, session.ID, rotated, refreshExpiresAt); err != nil {
		return nil, fmt.Errorf("failed to re-issue session secrets: %w", err)
	}

	return s.issuer.bundle(session.ID, access, refresh, rotated.AccessExpiresAt, refreshExpiresAt)
}

func (s *RecoveryServiceImpl) newRecoveryID(ctx context.Context) (string, string, error) {
	for attempt := 0; attempt < recoveryIDRetries; attempt++ {
		id, err := randomRecoveryID()
		if err != nil {
			return "", "", err
		}
		hash := s.hasher.FastHash(normalizeRecoveryID(id))
		if _, err := s.sessionRepo.FindByRecoveryIDHash(ctx, hash); err == domain.ErrSessionNotFound {
			return id, hash, nil
		} else if err != nil {
			return "", "", err
		}
	}
	return "", "", fmt.Errorf("could not generate a unique recovery identifier after %d attempts", recoveryIDRetries)
}

func (s *RecoveryServiceImpl) failAttempt(ctx context.Context, idHash, origin, sessionID, detail string) {
	// Guard write errors must not mask the generic caller-facing failure.
	_ = s.guard.RecordAttempt(ctx, idHash, origin, false)
	s.auditSink.Record(&domain.AuditEvent{
		EventType: domain.RecoveryFailedEvent,
		SessionID: sessionID,
		Origin:    origin,
		Success:   false,
		ErrorMsg:  detail,
	})
}

func (s *RecoveryServiceImpl) auditRecoveryLocked(idHash, origin string) {
	s.auditSink.Record(&domain.AuditEvent{
		EventType: domain.RecoveryLockedEvent,
		Origin:    origin,
		Success:   false,
		Metadata:  map[string]interface{}{"id_hash": idHash},
	})
}

// randomRecoveryID draws 10 characters from the restricted alphabet and
// groups them for readability, e.g. "KM4X-9PTH-W2".
func randomRecoveryID() (string, error) {
	chars := make([]byte, 10)
	max := big.NewInt(int64(len(recoveryIDAlphabet)))
	for i := range chars {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to generate recovery id: %w", err)
		}
		chars[i] = recoveryIDAlphabet[n.Int64()]
	}
	raw := string(chars)
	return raw[0:4] + "-" + raw[4:8] + "-" + raw[8:10], nil
}

// normalizeRecoveryID strips grouping and case so the identifier matches
// however the user writes it back.
func normalizeRecoveryID(id string) string {
	return strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(id), "-", ""))
}

// normalizeAnswer makes recovery forgiving: lowercase, trimmed, inner runs
// of whitespace collapsed.
func normalizeAnswer(answer string) string {
	return strings.Join(strings.Fields(strings.ToLower(answer)), " ")
}

func validQuestionKey(key string) bool {
	for _, k := range domain.RecoveryQuestionKeys {
		if k == key {
			return true
		}
	}
	return false
}
