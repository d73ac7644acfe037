package handler

import (
	"net/http"

	"intro_sales_backend/internal/intros/transport"
	"intro_sales_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
)

// OverrideOwner handles PUT /api/v1/intros/bookings/:id/owner
func (h *Handler) OverrideOwner(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req transport.OverrideOwnerRequest
	if !h.bindJSON(c, &req) {
		return
	}
	editor, ok := editorName(c)
	if !ok {
		return
	}

	change, err := h.svc.OverrideOwner(c.Request.Context(), id, req, editor)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToOwnerChangeResponse(change))
}

// UpdateBookingStatus handles PATCH /api/v1/intros/bookings/:id/status
func (h *Handler) UpdateBookingStatus(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req transport.UpdateBookingStatusRequest
	if !h.bindJSON(c, &req) {
		return
	}
	editor, ok := editorName(c)
	if !ok {
		return
	}

	b, err := h.svc.UpdateBookingStatus(c.Request.Context(), id, req, editor)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToBookingResponse(b))
}

// SetBookingIgnored handles POST /api/v1/intros/bookings/:id/ignore
func (h *Handler) SetBookingIgnored(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req transport.SetIgnoredRequest
	if !h.bindJSON(c, &req) {
		return
	}
	editor, ok := editorName(c)
	if !ok {
		return
	}

	b, err := h.svc.SetBookingIgnored(c.Request.Context(), id, req.Ignore, editor)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToBookingResponse(b))
}

// ArchiveBooking handles POST /api/v1/intros/bookings/:id/archive
func (h *Handler) ArchiveBooking(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	editor, ok := editorName(c)
	if !ok {
		return
	}

	b, err := h.svc.ArchiveBooking(c.Request.Context(), id, editor)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToBookingResponse(b))
}

// HardDeleteBooking handles DELETE /api/v1/intros/bookings/:id
func (h *Handler) HardDeleteBooking(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req transport.HardDeleteRequest
	if !h.bindJSON(c, &req) {
		return
	}
	if _, ok := editorName(c); !ok {
		return
	}

	if httpkit.HandleError(c, h.svc.HardDeleteBooking(c.Request.Context(), id, req)) {
		return
	}
	c.Status(http.StatusNoContent)
}

// LogRun handles POST /api/v1/intros/runs
func (h *Handler) LogRun(c *gin.Context) {
	var req transport.CreateRunRequest
	if !h.bindJSON(c, &req) {
		return
	}
	editor, ok := editorName(c)
	if !ok {
		return
	}

	run, saga, err := h.svc.LogRun(c.Request.Context(), req, editor)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusCreated, transport.ToRunLoggedResponse(run, saga))
}

// LinkRun handles PUT /api/v1/intros/runs/:id/link
func (h *Handler) LinkRun(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req transport.LinkRunRequest
	if !h.bindJSON(c, &req) {
		return
	}
	editor, ok := editorName(c)
	if !ok {
		return
	}

	run, saga, err := h.svc.LinkRun(c.Request.Context(), id, req, editor)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToRunLoggedResponse(run, saga))
}

// CreateBookingFromRun handles POST /api/v1/intros/runs/:id/booking
func (h *Handler) CreateBookingFromRun(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	editor, ok := editorName(c)
	if !ok {
		return
	}

	b, saga, err := h.svc.CreateBookingFromRun(c.Request.Context(), id, editor)
	if httpkit.HandleError(c, err) {
		return
	}
	resp := transport.ToRunLoggedResponse(saga.Run, saga)
	booking := transport.ToBookingResponse(b)
	resp.Booking = &booking
	httpkit.JSON(c, http.StatusCreated, resp)
}

// ResolveOutcome handles PUT /api/v1/intros/runs/:id/result
func (h *Handler) ResolveOutcome(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req transport.ResolveOutcomeRequest
	if !h.bindJSON(c, &req) {
		return
	}
	editor, ok := editorName(c)
	if !ok {
		return
	}

	run, err := h.svc.ResolveOutcome(c.Request.Context(), id, req, editor)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToRunResponse(run))
}

// SetRunIgnored handles POST /api/v1/intros/runs/:id/ignore
func (h *Handler) SetRunIgnored(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req transport.SetIgnoredRequest
	if !h.bindJSON(c, &req) {
		return
	}
	editor, ok := editorName(c)
	if !ok {
		return
	}

	run, err := h.svc.SetRunIgnored(c.Request.Context(), id, req.Ignore, editor)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToRunResponse(run))
}

// ArchiveRun handles POST /api/v1/intros/runs/:id/archive
func (h *Handler) ArchiveRun(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	editor, ok := editorName(c)
	if !ok {
		return
	}

	run, err := h.svc.ArchiveRun(c.Request.Context(), id, editor)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToRunResponse(run))
}

// HardDeleteRun handles DELETE /api/v1/intros/runs/:id
func (h *Handler) HardDeleteRun(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req transport.HardDeleteRequest
	if !h.bindJSON(c, &req) {
		return
	}
	if _, ok := editorName(c); !ok {
		return
	}

	if httpkit.HandleError(c, h.svc.HardDeleteRun(c.Request.Context(), id, req)) {
		return
	}
	c.Status(http.StatusNoContent)
}
