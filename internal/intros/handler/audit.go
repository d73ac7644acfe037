package handler

import (
	"net/http"

	"intro_sales_backend/internal/intros/service"
	"intro_sales_backend/internal/intros/transport"
	"intro_sales_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
)

// Audit handles GET /api/v1/intros/audit
func (h *Handler) Audit(c *gin.Context) {
	report, err := h.svc.Audit(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToAuditReportResponse(report))
}

// AutoFix handles POST /api/v1/intros/audit/autofix
func (h *Handler) AutoFix(c *gin.Context) {
	var query transport.AutoFixQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	editor, ok := editorName(c)
	if !ok {
		return
	}

	if query.Async {
		if httpkit.HandleError(c, h.svc.EnqueueAutoFix(c.Request.Context(), editor)) {
			return
		}
		httpkit.JSON(c, http.StatusAccepted, transport.QueuedResponse{Queued: true})
		return
	}

	result, err := h.svc.AutoFix(c.Request.Context(), editor, service.TriggerManual)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToBatchResultResponse(result))
}

// AssignBookedBy handles POST /api/v1/intros/audit/booked-by
func (h *Handler) AssignBookedBy(c *gin.Context) {
	var req transport.AssignBookedByRequest
	if !h.bindJSON(c, &req) {
		return
	}
	editor, ok := editorName(c)
	if !ok {
		return
	}

	result, err := h.svc.AssignBookedBy(c.Request.Context(), req, editor)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToBatchResultResponse(result))
}

// LinkCandidates handles GET /api/v1/intros/runs/:id/link-candidates
func (h *Handler) LinkCandidates(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	cands, err := h.svc.LinkCandidates(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToCandidateResponses(cands))
}
