package probe

import (
	"strings"
	"testing"

	"github.com/dshills/testmend/internal/schema"
)

func TestInstruction(t *testing.T) {
	tests := []struct {
		expr string
		want string
	}{
		{
			"page.getByTestId('save-primary')",
			`document.querySelectorAll('[data-testid="save-primary"]').length`,
		},
		{
			"page.getByLabel('Save and close')",
			`document.querySelectorAll('[aria-label="Save and close"]').length`,
		},
		{
			"page.getByText('Browse Foundry Models')",
			`document.body.innerText.includes("Browse Foundry Models")`,
		},
		{
			"page.locator('#save-draft')",
			`document.querySelectorAll("#save-draft").length`,
		},
		{
			// Role queries have no plain DOM equivalent.
			"page.getByRole('button', { name: 'Save' })",
			"",
		},
	}
	for _, tt := range tests {
		if got := instruction(tt.expr); got != tt.want {
			t.Errorf("instruction(%q):\n got %q\nwant %q", tt.expr, got, tt.want)
		}
	}
}

func TestCandidateInstructions(t *testing.T) {
	decision := schema.HealingDecision{
		Candidates: [][]schema.LocatorCandidate{
			{
				{Expression: "page.getByTestId('save-primary')", StrategyRank: schema.RankTestID},
				{Expression: "page.getByRole('button', { name: 'Save' })", StrategyRank: schema.RankRole},
			},
			{
				// Duplicate of the first failure's candidate; must be deduped.
				{Expression: "page.getByTestId('save-primary')", StrategyRank: schema.RankTestID},
				{Expression: "page.getByText('Save draft')", StrategyRank: schema.RankText},
			},
		},
	}
	instrs := CandidateInstructions(decision)
	if len(instrs) != 2 {
		t.Fatalf("expected 2 deduplicated instructions, got %d: %v", len(instrs), instrs)
	}
	if !strings.Contains(instrs[0], "save-primary") {
		t.Errorf("instruction order should follow candidate order: %v", instrs)
	}
	if !strings.Contains(instrs[1], "Save draft") {
		t.Errorf("missing text probe: %v", instrs)
	}
}
