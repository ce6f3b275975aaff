package locator

import (
	"strings"
	"testing"

	"github.com/dshills/testmend/internal/schema"
)

func TestCandidates_StrictModeDisambiguates(t *testing.T) {
	// Two competing elements: one with a stable test marker, one without
	// (only an id). The test-marker candidate must rank first.
	cf := schema.ClassifiedFailure{
		ErrorKind:     schema.KindStrictModeViolation,
		FailedLocator: "locator('button')",
		Competing: []schema.CompetingElement{
			{Attribute: "id", Value: "save-draft"},
			{Attribute: "data-testid", Value: "save-primary"},
		},
	}
	cands := Candidates(cf)
	if len(cands) < 2 {
		t.Fatalf("expected at least 2 candidates (one per competing element), got %d", len(cands))
	}
	if cands[0].StrategyRank != schema.RankTestID {
		t.Errorf("first candidate rank: got %d, want %d (test-id preferred)", cands[0].StrategyRank, schema.RankTestID)
	}
	if !strings.Contains(cands[0].Expression, "getByTestId('save-primary')") {
		t.Errorf("first candidate: got %q", cands[0].Expression)
	}
	found := false
	for _, c := range cands {
		if strings.Contains(c.Expression, "#save-draft") {
			found = true
		}
	}
	if !found {
		t.Errorf("missing a disambiguating candidate for the id element: %+v", cands)
	}
}

func TestCandidates_StrictModeWithoutAttributesFallsBack(t *testing.T) {
	cf := schema.ClassifiedFailure{
		ErrorKind:     schema.KindStrictModeViolation,
		FailedLocator: "getByText('Save')",
	}
	cands := Candidates(cf)
	if len(cands) == 0 {
		t.Fatal("strict-mode violation without competing attributes must fall back to generic heuristics, not block")
	}
}

func TestCandidates_GenericHeuristics(t *testing.T) {
	cf := schema.ClassifiedFailure{
		ErrorKind:     schema.KindElementNotFound,
		FailedLocator: "getByText('Browse Foundry Models')",
	}
	cands := Candidates(cf)
	if len(cands) == 0 {
		t.Fatal("expected generic candidates")
	}
	var haveText, haveTestID bool
	for _, c := range cands {
		if strings.Contains(c.Expression, "getByText('Browse Foundry Models')") {
			haveText = true
		}
		if strings.Contains(c.Expression, `[data-testid*="browse-foundry-models"]`) {
			haveTestID = true
		}
	}
	if !haveText {
		t.Errorf("missing text-matcher candidate: %+v", cands)
	}
	if !haveTestID {
		t.Errorf("missing normalized test-marker candidate: %+v", cands)
	}
	// Candidates must be ordered by rank.
	for i := 1; i < len(cands); i++ {
		if cands[i].StrategyRank < cands[i-1].StrategyRank {
			t.Errorf("candidates out of rank order: %+v", cands)
		}
	}
}

func TestCandidates_RawSelectorLiteral(t *testing.T) {
	cf := schema.ClassifiedFailure{
		ErrorKind:     schema.KindLocatorFailure,
		FailedLocator: "locator('text=Go to full model catalog')",
	}
	cands := Candidates(cf)
	found := false
	for _, c := range cands {
		if strings.Contains(c.Expression, "getByText('Go to full model catalog')") {
			found = true
		}
	}
	if !found {
		t.Errorf("text= prefix should be stripped before wrapping: %+v", cands)
	}
}

func TestCandidates_UnknownLocatorEmpty(t *testing.T) {
	cf := schema.ClassifiedFailure{
		ErrorKind:     schema.KindUnknown,
		FailedLocator: schema.UnknownLocator,
	}
	if cands := Candidates(cf); len(cands) != 0 {
		t.Errorf("nothing to propose for the sentinel locator, got %+v", cands)
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct{ in, want string }{
		{"Browse Foundry Models", "browse-foundry-models"},
		{"Sign in!", "sign-in"},
		{"  spaced  out  ", "spaced-out"},
		{"***", ""},
	}
	for _, tt := range tests {
		if got := normalize(tt.in); got != tt.want {
			t.Errorf("normalize(%q): got %q, want %q", tt.in, got, tt.want)
		}
	}
}
