package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"intro_sales_backend/internal/intros/domain"
	"intro_sales_backend/internal/intros/introstest"
	"intro_sales_backend/internal/intros/service"
	"intro_sales_backend/internal/intros/transport"
	"intro_sales_backend/platform/httpkit"
	"intro_sales_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type stubConfig struct{}

func (stubConfig) GetFollowUpLookbackDays() int      { return 90 }
func (stubConfig) GetStudioLocation() *time.Location { return time.UTC }
func (stubConfig) GetPhoneDefaultRegion() string     { return "US" }

func newRouter(t *testing.T, store *introstest.Store, authenticated bool) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	val := validator.New()
	if err := transport.RegisterValidations(val); err != nil {
		t.Fatalf("register validations: %v", err)
	}
	svc := service.New(store, nil, stubConfig{}, nil).WithClock(func() time.Time {
		return introstest.Today.Add(12 * time.Hour)
	})

	engine := gin.New()
	group := engine.Group("/intros")
	if authenticated {
		group.Use(func(c *gin.Context) {
			c.Set(httpkit.ContextUserIDKey, uuid.New())
			c.Set(httpkit.ContextUserNameKey, "Manager Kim")
			c.Next()
		})
	}
	New(svc, val).RegisterRoutes(group, nil)
	return engine
}

func do(engine *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, into interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), into); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

func TestOverrideLockedOwnerWithoutReason(t *testing.T) {
	b := introstest.NewBooking("Alex Park", -1)
	b.IntroOwner = domain.StringPtr("Dana")
	b.IntroOwnerLocked = true
	store := introstest.NewStore([]domain.Booking{b}, nil)
	engine := newRouter(t, store, true)

	rec := do(engine, http.MethodPut, "/intros/bookings/"+b.ID.String()+"/owner", map[string]interface{}{"owner": "Sam"})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", rec.Code, rec.Body.String())
	}
	var body httpkit.ErrorResponse
	decode(t, rec, &body)
	if body.Code != "owner_override_reason_required" {
		t.Fatalf("expected reason-required code, got %q", body.Code)
	}
	if store.Booking(b.ID).Owner() != "Dana" {
		t.Fatal("owner must be unchanged")
	}
}

func TestOverrideOwnerNullClears(t *testing.T) {
	b := introstest.NewBooking("Alex Park", -1)
	b.IntroOwner = domain.StringPtr("Dana")
	store := introstest.NewStore([]domain.Booking{b}, nil)
	engine := newRouter(t, store, true)

	rec := do(engine, http.MethodPut, "/intros/bookings/"+b.ID.String()+"/owner", map[string]interface{}{"owner": nil})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if store.Booking(b.ID).IntroOwner != nil {
		t.Fatal("expected owner cleared")
	}
}

func TestHardDeleteConfirmationMismatch(t *testing.T) {
	b := introstest.NewBooking("Alex Park", -1)
	store := introstest.NewStore([]domain.Booking{b}, nil)
	engine := newRouter(t, store, true)

	rec := do(engine, http.MethodDelete, "/intros/bookings/"+b.ID.String(), map[string]string{"confirmation": "yes"})
	var body httpkit.ErrorResponse
	decode(t, rec, &body)
	if rec.Code != http.StatusUnprocessableEntity || body.Code != service.CodeHardDeleteConfirmation {
		t.Fatalf("expected 422 confirmation mismatch, got %d %q", rec.Code, body.Code)
	}

	rec = do(engine, http.MethodDelete, "/intros/bookings/"+b.ID.String(), map[string]string{"confirmation": "DELETE"})
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
}

func TestLogRunCreditsOwner(t *testing.T) {
	b := introstest.NewBooking("Alex Park", 0)
	store := introstest.NewStore([]domain.Booking{b}, nil)
	engine := newRouter(t, store, true)

	rec := do(engine, http.MethodPost, "/intros/runs", map[string]interface{}{
		"memberName":      "Alex Park",
		"linkedBookingId": b.ID,
		"runDate":         "2025-06-15",
		"result":          "Closed",
		"ranBy":           "Dana",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var body transport.RunLoggedResponse
	decode(t, rec, &body)
	if body.Attributed != "completed" || body.Owner != "Dana" {
		t.Fatalf("expected completed attribution to Dana, got %+v", body)
	}
}

func TestLogRunRejectsTimestampStaff(t *testing.T) {
	store := introstest.NewStore(nil, nil)
	engine := newRouter(t, store, true)

	rec := do(engine, http.MethodPost, "/intros/runs", map[string]interface{}{
		"memberName": "Alex Park",
		"runDate":    "2025-06-15",
		"result":     "Closed",
		"ranBy":      "2025-06-13 10:42",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestFollowUpQueueAndBucketFilter(t *testing.T) {
	followUp := introstest.NewBooking("Alex Park", -3)
	noShow := introstest.NewBooking("Sam Lee", -2)
	store := introstest.NewStore(
		[]domain.Booking{followUp, noShow},
		[]domain.Run{
			introstest.NewRun(followUp, "Follow-up needed", "Dana"),
			introstest.NewRun(noShow, "No-show", "Dana"),
		},
	)
	engine := newRouter(t, store, true)

	rec := do(engine, http.MethodGet, "/intros/followups?bucket=no_show", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var body transport.FollowUpQueueResponse
	decode(t, rec, &body)
	if len(body.NoShow) != 1 || len(body.FollowUp) != 0 {
		t.Fatalf("expected only the no-show bucket, got %+v", body)
	}
	if body.Counts.Total != 2 || body.Today != "2025-06-15" {
		t.Fatalf("expected whole counts for 2025-06-15, got %+v today=%s", body.Counts, body.Today)
	}

	rec = do(engine, http.MethodGet, "/intros/followups?bucket=everything", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown bucket, got %d", rec.Code)
	}
}

func TestAsyncAutoFixWithoutQueue(t *testing.T) {
	engine := newRouter(t, introstest.NewStore(nil, nil), true)

	rec := do(engine, http.MethodPost, "/intros/audit/autofix?async=true", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestWritesRequireIdentity(t *testing.T) {
	b := introstest.NewBooking("Alex Park", -1)
	engine := newRouter(t, introstest.NewStore([]domain.Booking{b}, nil), false)

	rec := do(engine, http.MethodPost, "/intros/bookings/"+b.ID.String()+"/archive", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestInvalidID(t *testing.T) {
	engine := newRouter(t, introstest.NewStore(nil, nil), true)

	rec := do(engine, http.MethodPost, "/intros/runs/not-a-uuid/archive", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}
