package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/GreenViva/esiriplus-sub002/domain"
	"github.com/GreenViva/esiriplus-sub002/internal/http/middleware"
)

// DoctorHandlers covers the small staff self-service surface.
type DoctorHandlers struct {
	doctorRepo domain.DoctorRepository
}

// NewDoctorHandlers creates new doctor handlers
func NewDoctorHandlers(doctorRepo domain.DoctorRepository) *DoctorHandlers {
	return &DoctorHandlers{doctorRepo: doctorRepo}
}

// AvailabilityRequest represents a manual availability flip
type AvailabilityRequest struct {
	Available *bool `json:"available" binding:"required"`
}

// SetAvailability handles POST /doctor/availability. The doctor flips their
// own flag; accept and complete transitions also flip it around consultations.
func (h *DoctorHandlers) SetAvailability(c *gin.Context) {
	caller, ok := middleware.CallerFrom(c)
	if !ok || caller.Kind != domain.CallerStaff {
		RespondError(c, domain.ErrInsufficientRole)
		return
	}

	var req AvailabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": "invalid_request"})
		return
	}

	if err := h.doctorRepo.SetAvailability(c.Request.Context(), caller.StaffID, *req.Available); err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"doctor_id": caller.StaffID, "available": *req.Available})
}
