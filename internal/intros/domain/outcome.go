package domain

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Outcome is the canonical meaning of a run result literal.
type Outcome string

const (
	// OutcomeUnresolved is a blank result: the session has no recorded outcome yet.
	OutcomeUnresolved Outcome = ""
	// OutcomeUnknown is a non-blank literal outside the controlled vocabulary.
	OutcomeUnknown Outcome = "unknown"

	OutcomeSale              Outcome = "sale"
	OutcomeFollowUpNeeded    Outcome = "follow_up_needed"
	OutcomeSecondIntroBooked Outcome = "second_intro_booked"
	OutcomeNoShow            Outcome = "no_show"
	OutcomePlansToReschedule Outcome = "plans_to_reschedule"
	OutcomeNotInterested     Outcome = "not_interested"
)

// DefaultRemediationOutcome is written when an invalid literal has no close match.
const DefaultRemediationOutcome = "Follow-up needed"

// IsTerminal reports outcomes that end the follow-up flow for a prospect.
func (o Outcome) IsTerminal() bool {
	return o == OutcomeSale || o == OutcomeNotInterested
}

//go:embed outcomes.yaml
var outcomesYAML []byte

type vocabularyEntry struct {
	Canonical string   `yaml:"canonical"`
	Code      Outcome  `yaml:"code"`
	Aliases   []string `yaml:"aliases"`
}

type vocabularyFile struct {
	Outcomes []vocabularyEntry `yaml:"outcomes"`
}

// Vocabulary resolves result literals against the controlled outcome list.
type Vocabulary struct {
	entries []vocabularyEntry
	byKey   map[string]int
}

var defaultVocabulary = mustLoadVocabulary(outcomesYAML)

// DefaultVocabulary returns the embedded outcome vocabulary.
func DefaultVocabulary() *Vocabulary {
	return defaultVocabulary
}

// LoadVocabulary parses a vocabulary document.
func LoadVocabulary(data []byte) (*Vocabulary, error) {
	var file vocabularyFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse outcome vocabulary: %w", err)
	}
	if len(file.Outcomes) == 0 {
		return nil, fmt.Errorf("outcome vocabulary is empty")
	}

	v := &Vocabulary{entries: file.Outcomes, byKey: make(map[string]int)}
	for i, entry := range file.Outcomes {
		if entry.Canonical == "" || entry.Code == "" {
			return nil, fmt.Errorf("outcome vocabulary entry %d is missing canonical or code", i)
		}
		keys := append([]string{entry.Canonical}, entry.Aliases...)
		for _, k := range keys {
			nk := normalizeLiteral(k)
			if prev, dup := v.byKey[nk]; dup && prev != i {
				return nil, fmt.Errorf("outcome literal %q maps to both %q and %q", k, file.Outcomes[prev].Canonical, entry.Canonical)
			}
			v.byKey[nk] = i
		}
	}
	return v, nil
}

func mustLoadVocabulary(data []byte) *Vocabulary {
	v, err := LoadVocabulary(data)
	if err != nil {
		panic(err)
	}
	return v
}

// Lookup returns the canonical literal and outcome for raw. ok is false for
// blank or unknown literals.
func (v *Vocabulary) Lookup(raw string) (canonical string, outcome Outcome, ok bool) {
	key := normalizeLiteral(raw)
	if key == "" {
		return "", OutcomeUnresolved, false
	}
	i, found := v.byKey[key]
	if !found {
		return "", OutcomeUnknown, false
	}
	return v.entries[i].Canonical, v.entries[i].Code, true
}

// Canonicals lists every canonical literal in vocabulary order.
func (v *Vocabulary) Canonicals() []string {
	out := make([]string, 0, len(v.entries))
	for _, e := range v.entries {
		out = append(out, e.Canonical)
	}
	return out
}

// Nearest suggests the canonical literal closest to an unknown raw value.
// Falls back to DefaultRemediationOutcome when nothing is close.
func (v *Vocabulary) Nearest(raw string) string {
	if canonical, _, ok := v.Lookup(raw); ok {
		return canonical
	}
	key := normalizeLiteral(raw)
	if key == "" {
		return DefaultRemediationOutcome
	}

	best, bestDist := "", -1
	for k, i := range v.byKey {
		d := editDistance(key, k)
		if bestDist < 0 || d < bestDist || (d == bestDist && v.entries[i].Canonical < best) {
			best, bestDist = v.entries[i].Canonical, d
		}
	}
	limit := len(key) / 4
	if limit < 2 {
		limit = 2
	}
	if bestDist < 0 || bestDist > limit {
		return DefaultRemediationOutcome
	}
	return best
}

// CanonicalOutcome classifies raw using the embedded vocabulary.
func CanonicalOutcome(raw string) Outcome {
	_, outcome, _ := defaultVocabulary.Lookup(raw)
	return outcome
}

func normalizeLiteral(raw string) string {
	lowered := strings.ToLower(strings.TrimSpace(raw))
	lowered = strings.NewReplacer("-", " ", "_", " ", "'", "", "’", "").Replace(lowered)
	return strings.Join(strings.Fields(lowered), " ")
}

func editDistance(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}
