package handler

import (
	"net/http"

	"intro_sales_backend/internal/intros/service"
	"intro_sales_backend/platform/httpkit"
	"intro_sales_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
	msgInvalidID        = "invalid id"
)

// Handler handles HTTP requests for intro attribution, audit and follow-ups.
type Handler struct {
	svc *service.Service
	val *validator.Validator
}

// New creates a new intros handler
func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// RegisterRoutes registers the intro routes. write wraps mutating endpoints.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, write gin.HandlerFunc) {
	rg.GET("/followups", h.FollowUpQueue)
	rg.GET("/followups/counts", h.FollowUpCounts)
	rg.GET("/audit", h.Audit)
	rg.GET("/runs/:id/link-candidates", h.LinkCandidates)

	w := rg.Group("")
	if write != nil {
		w.Use(write)
	}
	w.POST("/followups/:bookingId/dismiss", h.DismissFollowUp)
	w.PUT("/followups/:bookingId/reschedule-contact", h.SetRescheduleContact)
	w.POST("/followups/:bookingId/contacts", h.LogContact)

	w.POST("/audit/autofix", h.AutoFix)
	w.POST("/audit/booked-by", h.AssignBookedBy)

	w.PUT("/bookings/:id/owner", h.OverrideOwner)
	w.PATCH("/bookings/:id/status", h.UpdateBookingStatus)
	w.POST("/bookings/:id/ignore", h.SetBookingIgnored)
	w.POST("/bookings/:id/archive", h.ArchiveBooking)
	w.DELETE("/bookings/:id", h.HardDeleteBooking)

	w.POST("/runs", h.LogRun)
	w.PUT("/runs/:id/link", h.LinkRun)
	w.POST("/runs/:id/booking", h.CreateBookingFromRun)
	w.PUT("/runs/:id/result", h.ResolveOutcome)
	w.POST("/runs/:id/ignore", h.SetRunIgnored)
	w.POST("/runs/:id/archive", h.ArchiveRun)
	w.DELETE("/runs/:id", h.HardDeleteRun)
}

// bindJSON decodes and validates a request body, writing the error response.
func (h *Handler) bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return false
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, validator.FieldErrors(err))
		return false
	}
	return true
}

func parseID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return uuid.UUID{}, false
	}
	return id, true
}

// editorName returns the staff name stamped into audit fields, or "" after
// aborting with 401.
func editorName(c *gin.Context) (string, bool) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return "", false
	}
	return identity.DisplayName(), true
}
