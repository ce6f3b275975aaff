package render

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/dshills/testmend/internal/schema"
)

func testRun() *Run {
	timeout := 5000
	return &Run{
		Outcome:        "healed",
		ReportPath:     "results.json",
		SchemaVariant:  schema.VariantSuitesWithSpecs,
		SourceEncoding: "utf-8",
		Decision: schema.HealingDecision{
			Failures: []schema.ClassifiedFailure{
				{
					FailureRecord: schema.FailureRecord{Index: 0, TestTitle: "saves | draft"},
					ErrorKind:     schema.KindVisibilityTimeout,
					FailedLocator: "locator('#save')",
					TimeoutMs:     &timeout,
				},
				{
					FailureRecord: schema.FailureRecord{Index: 1, TestTitle: "opens menu"},
					ErrorKind:     schema.KindElementNotFound,
					FailedLocator: schema.UnknownLocator,
				},
			},
			Candidates: [][]schema.LocatorCandidate{
				{{Expression: "page.getByTestId('save-primary')", StrategyRank: schema.RankTestID}},
				nil,
			},
		},
		HealedScriptPath: "out/checkout_healed.spec.ts",
		SummaryPath:      "out/checkout_healed_summary.md",
	}
}

func TestMarkdown(t *testing.T) {
	md := Markdown(testRun())

	for _, want := range []string{
		"**Outcome:** healed",
		"results.json",
		string(schema.VariantSuitesWithSpecs),
		"utf-8",
		string(schema.KindVisibilityTimeout),
		string(schema.KindElementNotFound),
		"5000ms",
		"saves \\| draft",
		"page.getByTestId('save-primary')",
		"out/checkout_healed.spec.ts",
		"out/checkout_healed_summary.md",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q", want)
		}
	}
}

func TestMarkdownNilTimeout(t *testing.T) {
	md := Markdown(testRun())
	// The second failure has no timeout; its row shows a dash.
	if !strings.Contains(md, "| - |") {
		t.Errorf("missing dash for absent timeout:\n%s", md)
	}
}

func TestMarkdownNil(t *testing.T) {
	if got := Markdown(nil); got != "" {
		t.Errorf("Markdown(nil) = %q", got)
	}
}

func TestJSONRoundTrip(t *testing.T) {
	b, err := JSON(testRun())
	if err != nil {
		t.Fatalf("JSON: %v", err)
	}
	var back Run
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back.Outcome != "healed" || len(back.Decision.Failures) != 2 {
		t.Errorf("round trip lost data: %+v", back)
	}
}

func TestJSONNil(t *testing.T) {
	if _, err := JSON(nil); err == nil {
		t.Fatal("expected error for nil run")
	}
}
