package domain

import (
	"testing"
	"time"
)

func TestIdentityKeyOf(t *testing.T) {
	cases := map[string]string{
		"Dana Smith":      "danasmith",
		"  dana   SMITH ": "danasmith",
		"Dana\tSmith\n":   "danasmith",
		"O'Neil  MacLeod": "o'neilmacleod",
		"":                "",
	}
	for in, want := range cases {
		if got := IdentityKeyOf(in); got != want {
			t.Fatalf("IdentityKeyOf(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestLooksLikeTimestamp(t *testing.T) {
	cases := []struct {
		in   string
		want bool
	}{
		{"2024-01-05T10:00:00", true},
		{"1/5/2024 10:00", true},
		{"Dana", false},
		{"Mary-Jo", false},
		{"10:00", false},
		{"", false},
	}
	for _, tc := range cases {
		if got := LooksLikeTimestamp(tc.in); got != tc.want {
			t.Fatalf("LooksLikeTimestamp(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestIsUsableStaffValue(t *testing.T) {
	for _, v := range []string{"", "  ", "Unknown", "N/A", "tbd", "-", "2024-01-05 10:00"} {
		if IsUsableStaffValue(v) {
			t.Fatalf("expected %q to be unusable", v)
		}
	}
	if !IsUsableStaffValue("Dana") {
		t.Fatal("expected Dana to be usable")
	}
}

func TestCanonicalOutcome(t *testing.T) {
	cases := []struct {
		in   string
		want Outcome
	}{
		{"Closed", OutcomeSale},
		{"Premier + Recovery", OutcomeSale},
		{"elite", OutcomeSale},
		{"Follow-up needed", OutcomeFollowUpNeeded},
		{"follow up", OutcomeFollowUpNeeded},
		{"Booked 2nd intro", OutcomeSecondIntroBooked},
		{"No-show", OutcomeNoShow},
		{"No Show", OutcomeNoShow},
		{"noshow", OutcomeNoShow},
		{"Plans to Reschedule", OutcomePlansToReschedule},
		{"Not Interested", OutcomeNotInterested},
		{"", OutcomeUnresolved},
		{"   ", OutcomeUnresolved},
		{"purple", OutcomeUnknown},
	}
	for _, tc := range cases {
		if got := CanonicalOutcome(tc.in); got != tc.want {
			t.Fatalf("CanonicalOutcome(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestVocabularyLookupReturnsCanonicalLiteral(t *testing.T) {
	canonical, outcome, ok := DefaultVocabulary().Lookup("folow up needed")
	if !ok {
		t.Fatal("expected misspelling to resolve")
	}
	if canonical != "Follow-up needed" || outcome != OutcomeFollowUpNeeded {
		t.Fatalf("unexpected lookup: %q %q", canonical, outcome)
	}
}

func TestVocabularyNearest(t *testing.T) {
	v := DefaultVocabulary()
	if got := v.Nearest("Not Intersted"); got != "Not Interested" {
		t.Fatalf("expected Not Interested, got %q", got)
	}
	if got := v.Nearest("purple elephant"); got != DefaultRemediationOutcome {
		t.Fatalf("expected default remediation, got %q", got)
	}
	if got := v.Nearest("No-show"); got != "No-show" {
		t.Fatalf("expected known literal to map to itself, got %q", got)
	}
}

func TestLoadVocabularyRejectsDuplicateAliases(t *testing.T) {
	doc := []byte(`
outcomes:
  - canonical: Closed
    code: sale
    aliases: [done]
  - canonical: Not Interested
    code: not_interested
    aliases: [done]
`)
	if _, err := LoadVocabulary(doc); err == nil {
		t.Fatal("expected duplicate alias error")
	}
}

func TestOutcomeIsTerminal(t *testing.T) {
	if !OutcomeSale.IsTerminal() || !OutcomeNotInterested.IsTerminal() {
		t.Fatal("sale and not interested must be terminal")
	}
	if OutcomeFollowUpNeeded.IsTerminal() || OutcomeUnresolved.IsTerminal() {
		t.Fatal("unresolved outcomes must not be terminal")
	}
}

func TestBookingHasLockedOwnerNeedsValue(t *testing.T) {
	b := Booking{IntroOwnerLocked: true}
	if b.HasLockedOwner() {
		t.Fatal("lock without owner must not count")
	}
	b.IntroOwner = StringPtr("Dana")
	if !b.HasLockedOwner() {
		t.Fatal("expected locked owner")
	}
}

func TestRunEffectiveOwnerFallsBackToRanBy(t *testing.T) {
	r := Run{RanBy: StringPtr("Coach Lee")}
	if r.EffectiveOwner() != "Coach Lee" {
		t.Fatalf("expected ranBy fallback, got %q", r.EffectiveOwner())
	}
	r.IntroOwner = StringPtr("Dana")
	if r.EffectiveOwner() != "Dana" {
		t.Fatalf("expected run owner to win, got %q", r.EffectiveOwner())
	}
}

func TestDateOfUsesLocation(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	instant := time.Date(2025, 3, 10, 2, 30, 0, 0, time.UTC) // 22:30 on the 9th in New York
	got := DateOf(instant, loc)
	if FormatDate(got) != "2025-03-09" {
		t.Fatalf("expected 2025-03-09, got %s", FormatDate(got))
	}
}
