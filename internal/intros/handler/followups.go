package handler

import (
	"net/http"

	"intro_sales_backend/internal/intros/followup"
	"intro_sales_backend/internal/intros/transport"
	"intro_sales_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
)

// FollowUpQueue handles GET /api/v1/intros/followups
func (h *Handler) FollowUpQueue(c *gin.Context) {
	var query transport.FollowUpQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(query); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, nil)
		return
	}

	today, result, err := h.svc.FollowUpQueue(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}

	resp := transport.ToFollowUpQueueResponse(today, result)
	if query.Bucket != "" {
		resp = narrow(resp, followup.Bucket(query.Bucket))
	}
	httpkit.OK(c, resp)
}

// narrow empties every bucket except b; counts stay whole.
func narrow(resp transport.FollowUpQueueResponse, b followup.Bucket) transport.FollowUpQueueResponse {
	empty := []transport.FollowUpItemResponse{}
	if b != followup.BucketNoShow {
		resp.NoShow = empty
	}
	if b != followup.BucketFollowUp {
		resp.FollowUp = empty
	}
	if b != followup.BucketSecondIntro {
		resp.SecondIntro = empty
	}
	if b != followup.BucketReschedule {
		resp.Reschedule = empty
	}
	return resp
}

// FollowUpCounts handles GET /api/v1/intros/followups/counts
func (h *Handler) FollowUpCounts(c *gin.Context) {
	counts, err := h.svc.FollowUpCounts(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToFollowUpCountsResponse(counts))
}

// DismissFollowUp handles POST /api/v1/intros/followups/:bookingId/dismiss
func (h *Handler) DismissFollowUp(c *gin.Context) {
	id, ok := parseID(c, "bookingId")
	if !ok {
		return
	}
	editor, ok := editorName(c)
	if !ok {
		return
	}

	b, err := h.svc.DismissFollowUp(c.Request.Context(), id, editor)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToBookingResponse(b))
}

// SetRescheduleContact handles PUT /api/v1/intros/followups/:bookingId/reschedule-contact
func (h *Handler) SetRescheduleContact(c *gin.Context) {
	id, ok := parseID(c, "bookingId")
	if !ok {
		return
	}
	var req transport.RescheduleContactRequest
	if !h.bindJSON(c, &req) {
		return
	}
	editor, ok := editorName(c)
	if !ok {
		return
	}

	b, err := h.svc.SetRescheduleContactDate(c.Request.Context(), id, req, editor)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToBookingResponse(b))
}

// LogContact handles POST /api/v1/intros/followups/:bookingId/contacts
func (h *Handler) LogContact(c *gin.Context) {
	id, ok := parseID(c, "bookingId")
	if !ok {
		return
	}
	var req transport.LogContactRequest
	if !h.bindJSON(c, &req) {
		return
	}
	editor, ok := editorName(c)
	if !ok {
		return
	}

	rec, err := h.svc.LogContact(c.Request.Context(), id, req, editor)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusCreated, gin.H{
		"id":        rec.ID,
		"bookingId": rec.BookingID,
		"channel":   rec.Channel,
		"summary":   rec.Summary,
		"sentBy":    rec.SentBy,
		"sentAt":    rec.SentAt,
	})
}
