package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/GreenViva/esiriplus-sub002/domain"
	"github.com/GreenViva/esiriplus-sub002/internal/http/middleware"
)

// SessionHandlers handles anonymous session issuance, refresh, and recovery.
type SessionHandlers struct {
	tokenSvc    domain.TokenService
	recoverySvc domain.RecoveryService
}

// NewSessionHandlers creates new session handlers
func NewSessionHandlers(tokenSvc domain.TokenService, recoverySvc domain.RecoveryService) *SessionHandlers {
	return &SessionHandlers{tokenSvc: tokenSvc, recoverySvc: recoverySvc}
}

// RefreshRequest represents a token refresh request
type RefreshRequest struct {
	SessionID    string `json:"session_id" binding:"required"`
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// RecoverySetupRequest carries the five secret answers chosen at setup
type RecoverySetupRequest struct {
	Answers map[string]string `json:"answers" binding:"required"`
}

// RecoverByIDRequest represents recovery by the public identifier
type RecoverByIDRequest struct {
	PatientID string `json:"patient_id" binding:"required"`
}

// RecoverByQuestionsRequest represents recovery by secret answers
type RecoverByQuestionsRequest struct {
	PatientID string            `json:"patient_id" binding:"required"`
	Answers   map[string]string `json:"answers" binding:"required"`
}

func tokenBundleJSON(bundle *domain.TokenBundle) gin.H {
	return gin.H{
		"patient_id":         bundle.SessionID,
		"access_token":       bundle.AccessToken,
		"refresh_token":      bundle.RefreshToken,
		"token_type":         bundle.TokenType,
		"expires_in":         bundle.ExpiresIn,
		"expires_at":         bundle.AccessExpiresAt,
		"refresh_expires_at": bundle.RefreshExpiresAt,
	}
}

// Create handles anonymous session creation. No credential is required; this
// is the entry point into the system.
func (h *SessionHandlers) Create(c *gin.Context) {
	bundle, err := h.tokenSvc.CreateSession(c.Request.Context())
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, tokenBundleJSON(bundle))
}

// Refresh handles single-use refresh token rotation
func (h *SessionHandlers) Refresh(c *gin.Context) {
	var req RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": "invalid_request"})
		return
	}

	bundle, err := h.tokenSvc.Refresh(c.Request.Context(), req.SessionID, req.RefreshToken)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tokenBundleJSON(bundle))
}

// RecoverySetup stores the secret answers and mints the public recovery
// identifier. Authenticated: only the session owner can configure recovery.
func (h *SessionHandlers) RecoverySetup(c *gin.Context) {
	caller, ok := middleware.CallerFrom(c)
	if !ok || caller.Kind != domain.CallerPatient {
		RespondError(c, domain.ErrInsufficientRole)
		return
	}

	var req RecoverySetupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": "invalid_request"})
		return
	}

	recoveryID, err := h.recoverySvc.Setup(c.Request.Context(), caller.SessionID, req.Answers)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"patient_id": recoveryID})
}

// RecoverByID handles credential-free recovery by the public identifier.
// Every failure path returns the same generic body.
func (h *SessionHandlers) RecoverByID(c *gin.Context) {
	var req RecoverByIDRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id or not found", "code": "recovery_failed"})
		return
	}

	bundle, err := h.recoverySvc.RecoverByID(c.Request.Context(), req.PatientID, c.ClientIP())
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tokenBundleJSON(bundle))
}

// RecoverByQuestions handles credential-free recovery by secret answers.
func (h *SessionHandlers) RecoverByQuestions(c *gin.Context) {
	var req RecoverByQuestionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id or not found", "code": "recovery_failed"})
		return
	}

	bundle, recoveryID, err := h.recoverySvc.RecoverByQuestions(c.Request.Context(), req.PatientID, req.Answers, c.ClientIP())
	if err != nil {
		RespondError(c, err)
		return
	}

	body := tokenBundleJSON(bundle)
	// Reminder of the public identifier for patients who recovered by
	// answers because they lost the id itself.
	body["recovery_id"] = recoveryID
	c.JSON(http.StatusOK, body)
}
