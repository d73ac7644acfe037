package transport

import (
	"time"

	"intro_sales_backend/internal/intros/attribution"
	"intro_sales_backend/internal/intros/audit"
	"intro_sales_backend/internal/intros/domain"
	"intro_sales_backend/internal/intros/followup"

	"github.com/google/uuid"
)

// BookingResponse is the API view of a booking.
type BookingResponse struct {
	ID                    uuid.UUID  `json:"id"`
	MemberName            string     `json:"memberName"`
	ClassDate             string     `json:"classDate"`
	IntroTime             *string    `json:"introTime,omitempty"`
	Status                string     `json:"status"`
	BookingType           string     `json:"bookingType"`
	IntroOwner            *string    `json:"introOwner,omitempty"`
	IntroOwnerLocked      bool       `json:"introOwnerLocked"`
	OriginatingBookingID  *uuid.UUID `json:"originatingBookingId,omitempty"`
	LeadSource            *string    `json:"leadSource,omitempty"`
	CoachName             *string    `json:"coachName,omitempty"`
	BookedBy              *string    `json:"bookedBy,omitempty"`
	RescheduleContactDate *string    `json:"rescheduleContactDate,omitempty"`
	FollowUpDismissedAt   *time.Time `json:"followupDismissedAt,omitempty"`
	IgnoreFromMetrics     bool       `json:"ignoreFromMetrics"`
	DeletedAt             *time.Time `json:"deletedAt,omitempty"`
	LastEditedAt          *time.Time `json:"lastEditedAt,omitempty"`
	LastEditedBy          *string    `json:"lastEditedBy,omitempty"`
	LastEditReason        *string    `json:"lastEditReason,omitempty"`
}

// RunResponse is the API view of a run.
type RunResponse struct {
	ID                uuid.UUID  `json:"id"`
	MemberName        string     `json:"memberName"`
	LinkedBookingID   *uuid.UUID `json:"linkedBookingId,omitempty"`
	RunDate           string     `json:"runDate"`
	ClassTime         *string    `json:"classTime,omitempty"`
	Result            string     `json:"result"`
	IntroOwner        *string    `json:"introOwner,omitempty"`
	IntroOwnerLocked  bool       `json:"introOwnerLocked"`
	RanBy             *string    `json:"ranBy,omitempty"`
	LeadSource        *string    `json:"leadSource,omitempty"`
	CommissionAmount  *float64   `json:"commissionAmount,omitempty"`
	Notes             *string    `json:"notes,omitempty"`
	IgnoreFromMetrics bool       `json:"ignoreFromMetrics"`
	DeletedAt         *time.Time `json:"deletedAt,omitempty"`
	LastEditedAt      *time.Time `json:"lastEditedAt,omitempty"`
	LastEditedBy      *string    `json:"lastEditedBy,omitempty"`
}

// FollowUpItemResponse is one row of a follow-up bucket.
type FollowUpItemResponse struct {
	MemberName         string     `json:"memberName"`
	BookingID          uuid.UUID  `json:"bookingId"`
	RunID              *uuid.UUID `json:"runId,omitempty"`
	Date               string     `json:"date"`
	Time               *string    `json:"time,omitempty"`
	Coach              *string    `json:"coach,omitempty"`
	LeadSource         *string    `json:"leadSource,omitempty"`
	Phone              string     `json:"phone,omitempty"`
	Badge              string     `json:"badge,omitempty"`
	LastContactAt      *time.Time `json:"lastContactAt,omitempty"`
	LastContactSummary *string    `json:"lastContactSummary,omitempty"`
	NextContactDate    *string    `json:"nextContactDate,omitempty"`
	DedupKey           string     `json:"dedupKey"`
}

// FollowUpCountsResponse carries per-bucket sizes.
type FollowUpCountsResponse struct {
	NoShow      int `json:"noShow"`
	FollowUp    int `json:"followUp"`
	SecondIntro int `json:"secondIntro"`
	Reschedule  int `json:"reschedule"`
	Total       int `json:"total"`
}

// FollowUpQueueResponse is the full queue.
type FollowUpQueueResponse struct {
	Today       string                 `json:"today"`
	NoShow      []FollowUpItemResponse `json:"noShow"`
	FollowUp    []FollowUpItemResponse `json:"followUp"`
	SecondIntro []FollowUpItemResponse `json:"secondIntro"`
	Reschedule  []FollowUpItemResponse `json:"reschedule"`
	Counts      FollowUpCountsResponse `json:"counts"`
}

// CandidateResponse is a booking an unlinked run could be linked to.
type CandidateResponse struct {
	BookingID  uuid.UUID `json:"bookingId"`
	ClassDate  string    `json:"classDate"`
	ExactDate  bool      `json:"exactDate"`
	DaysApart  int       `json:"daysApart"`
	MemberName string    `json:"memberName"`
}

// AuditIssueResponse is one detected inconsistency.
type AuditIssueResponse struct {
	Kind        string              `json:"kind"`
	BookingID   *uuid.UUID          `json:"bookingId,omitempty"`
	RunID       *uuid.UUID          `json:"runId,omitempty"`
	MemberName  string              `json:"memberName"`
	Current     string              `json:"current,omitempty"`
	Suggested   string              `json:"suggested,omitempty"`
	AutoFixable bool                `json:"autoFixable"`
	Locked      bool                `json:"locked"`
	Candidates  []CandidateResponse `json:"candidates,omitempty"`
}

// AuditReportResponse is the audit result.
type AuditReportResponse struct {
	Total  int                  `json:"total"`
	Counts map[string]int       `json:"counts"`
	Issues []AuditIssueResponse `json:"issues"`
}

// FixResultResponse reports one record of a batch.
type FixResultResponse struct {
	Kind     string    `json:"kind"`
	RecordID uuid.UUID `json:"recordId"`
	Applied  bool      `json:"applied"`
	Error    string    `json:"error,omitempty"`
}

// BatchResultResponse reports a bulk operation.
type BatchResultResponse struct {
	Attempted int                 `json:"attempted"`
	Succeeded int                 `json:"succeeded"`
	Failed    int                 `json:"failed"`
	Items     []FixResultResponse `json:"items"`
}

// QueuedResponse acknowledges an enqueued background task.
type QueuedResponse struct {
	Queued bool `json:"queued"`
}

// OwnerChangeResponse reports an attribution write.
type OwnerChangeResponse struct {
	Booking       BookingResponse `json:"booking"`
	PreviousOwner string          `json:"previousOwner,omitempty"`
	Written       bool            `json:"written"`
}

// RunLoggedResponse reports a new run and the owner credit that followed.
type RunLoggedResponse struct {
	Run        RunResponse      `json:"run"`
	Booking    *BookingResponse `json:"booking,omitempty"`
	Attributed string           `json:"attribution"`
	Owner      string           `json:"owner,omitempty"`
}

// ToBookingResponse maps a booking.
func ToBookingResponse(b domain.Booking) BookingResponse {
	return BookingResponse{
		ID:                    b.ID,
		MemberName:            b.MemberName,
		ClassDate:             domain.FormatDate(b.ClassDate),
		IntroTime:             b.IntroTime,
		Status:                string(b.Status),
		BookingType:           string(b.Type),
		IntroOwner:            b.IntroOwner,
		IntroOwnerLocked:      b.IntroOwnerLocked,
		OriginatingBookingID:  b.OriginatingBookingID,
		LeadSource:            b.LeadSource,
		CoachName:             b.CoachName,
		BookedBy:              b.BookedBy,
		RescheduleContactDate: formatDatePtr(b.RescheduleContactDate),
		FollowUpDismissedAt:   b.FollowUpDismissedAt,
		IgnoreFromMetrics:     b.IgnoreFromMetrics,
		DeletedAt:             b.DeletedAt,
		LastEditedAt:          b.LastEditedAt,
		LastEditedBy:          b.LastEditedBy,
		LastEditReason:        b.LastEditedReason,
	}
}

// ToRunResponse maps a run.
func ToRunResponse(r domain.Run) RunResponse {
	return RunResponse{
		ID:                r.ID,
		MemberName:        r.MemberName,
		LinkedBookingID:   r.LinkedBookingID,
		RunDate:           domain.FormatDate(r.RunDate),
		ClassTime:         r.ClassTime,
		Result:            r.Result,
		IntroOwner:        r.IntroOwner,
		IntroOwnerLocked:  r.IntroOwnerLocked,
		RanBy:             r.RanBy,
		LeadSource:        r.LeadSource,
		CommissionAmount:  r.CommissionAmount,
		Notes:             r.Notes,
		IgnoreFromMetrics: r.IgnoreFromMetrics,
		DeletedAt:         r.DeletedAt,
		LastEditedAt:      r.LastEditedAt,
		LastEditedBy:      r.LastEditedBy,
	}
}

// ToFollowUpQueueResponse maps an engine result.
func ToFollowUpQueueResponse(today time.Time, res followup.Result) FollowUpQueueResponse {
	return FollowUpQueueResponse{
		Today:       domain.FormatDate(today),
		NoShow:      toItems(res.NoShow),
		FollowUp:    toItems(res.FollowUp),
		SecondIntro: toItems(res.SecondIntro),
		Reschedule:  toItems(res.Reschedule),
		Counts:      ToFollowUpCountsResponse(res.Counts),
	}
}

// ToFollowUpCountsResponse maps bucket counts.
func ToFollowUpCountsResponse(c followup.Counts) FollowUpCountsResponse {
	return FollowUpCountsResponse{
		NoShow:      c.NoShow,
		FollowUp:    c.FollowUp,
		SecondIntro: c.SecondIntro,
		Reschedule:  c.Reschedule,
		Total:       c.Total,
	}
}

func toItems(items []followup.Item) []FollowUpItemResponse {
	out := make([]FollowUpItemResponse, 0, len(items))
	for _, it := range items {
		out = append(out, FollowUpItemResponse{
			MemberName:         it.MemberName,
			BookingID:          it.BookingID,
			RunID:              it.RunID,
			Date:               domain.FormatDate(it.Date),
			Time:               it.Time,
			Coach:              it.Coach,
			LeadSource:         it.LeadSource,
			Phone:              it.Phone,
			Badge:              string(it.Badge),
			LastContactAt:      it.LastContactAt,
			LastContactSummary: it.LastContactSummary,
			NextContactDate:    formatDatePtr(it.NextContactDate),
			DedupKey:           it.DedupKey,
		})
	}
	return out
}

// ToCandidateResponses maps link candidates.
func ToCandidateResponses(cands []audit.Candidate) []CandidateResponse {
	out := make([]CandidateResponse, 0, len(cands))
	for _, c := range cands {
		out = append(out, CandidateResponse{
			BookingID:  c.BookingID,
			ClassDate:  domain.FormatDate(c.ClassDate),
			ExactDate:  c.ExactDate,
			DaysApart:  c.DaysApart,
			MemberName: c.MemberName,
		})
	}
	return out
}

// ToAuditReportResponse maps an audit report.
func ToAuditReportResponse(r audit.Report) AuditReportResponse {
	counts := make(map[string]int, len(r.Counts))
	for kind, n := range r.Counts {
		counts[string(kind)] = n
	}
	issues := make([]AuditIssueResponse, 0, len(r.Issues))
	for _, is := range r.Issues {
		var cands []CandidateResponse
		if len(is.Candidates) > 0 {
			cands = ToCandidateResponses(is.Candidates)
		}
		issues = append(issues, AuditIssueResponse{
			Kind:        string(is.Kind),
			BookingID:   is.BookingID,
			RunID:       is.RunID,
			MemberName:  is.MemberName,
			Current:     is.Current,
			Suggested:   is.Suggested,
			AutoFixable: is.AutoFixable,
			Locked:      is.Locked,
			Candidates:  cands,
		})
	}
	return AuditReportResponse{Total: r.Total(), Counts: counts, Issues: issues}
}

// ToBatchResultResponse maps a batch result.
func ToBatchResultResponse(b audit.BatchResult) BatchResultResponse {
	items := make([]FixResultResponse, 0, len(b.Items))
	for _, it := range b.Items {
		items = append(items, FixResultResponse{
			Kind:     string(it.Kind),
			RecordID: it.RecordID,
			Applied:  it.Applied,
			Error:    it.Error,
		})
	}
	return BatchResultResponse{
		Attempted: b.Attempted(),
		Succeeded: b.Succeeded,
		Failed:    b.Failed,
		Items:     items,
	}
}

// ToOwnerChangeResponse maps an attribution change.
func ToOwnerChangeResponse(c attribution.Change) OwnerChangeResponse {
	return OwnerChangeResponse{
		Booking:       ToBookingResponse(c.Booking),
		PreviousOwner: c.PreviousOwner,
		Written:       c.Written,
	}
}

// ToRunLoggedResponse maps a run together with its owner saga.
func ToRunLoggedResponse(run domain.Run, saga *attribution.Saga) RunLoggedResponse {
	resp := RunLoggedResponse{Run: ToRunResponse(run), Attributed: string(attribution.SagaSkipped)}
	if saga == nil {
		return resp
	}
	resp.Run = ToRunResponse(saga.Run)
	resp.Attributed = string(saga.State)
	resp.Owner = saga.Owner
	if saga.Booking.ID != uuid.Nil {
		b := ToBookingResponse(saga.Booking)
		resp.Booking = &b
	}
	return resp
}

func formatDatePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := domain.FormatDate(*t)
	return &s
}
