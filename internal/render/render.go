// Package render produces output from a completed healing run.
package render

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dshills/testmend/internal/schema"
)

// Run is the renderable record of one healing run: where the report came
// from, what was diagnosed, and what was written.
type Run struct {
	Outcome          string                 `json:"outcome"`
	ReportPath       string                 `json:"report_path"`
	SchemaVariant    schema.SchemaVariant   `json:"schema_variant"`
	SourceEncoding   string                 `json:"source_encoding"`
	Decision         schema.HealingDecision `json:"decision"`
	HealedScriptPath string                 `json:"healed_script_path,omitempty"`
	SummaryPath      string                 `json:"summary_path,omitempty"`
}

// JSON produces a pretty-printed JSON representation of the run.
func JSON(run *Run) ([]byte, error) {
	if run == nil {
		return nil, fmt.Errorf("render: nil run")
	}
	b, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("render: json marshal: %w", err)
	}
	return b, nil
}

// Markdown produces a Markdown summary of the run, suitable for terminal
// output or CI job summaries. Every diagnosed failure appears in the output.
func Markdown(run *Run) string {
	if run == nil {
		return ""
	}
	var sb strings.Builder

	sb.WriteString("## Healing Run\n\n")
	fmt.Fprintf(&sb, "**Outcome:** %s  \n", run.Outcome)
	fmt.Fprintf(&sb, "**Report:** `%s` (%s, %s)\n\n",
		run.ReportPath, run.SchemaVariant, run.SourceEncoding)

	if len(run.Decision.Failures) > 0 {
		sb.WriteString("## Diagnosed Failures\n\n")
		sb.WriteString("| # | Kind | Test | Locator | Timeout |\n")
		sb.WriteString("|---|---|---|---|---|\n")
		for _, f := range run.Decision.Failures {
			timeout := "-"
			if f.TimeoutMs != nil {
				timeout = fmt.Sprintf("%dms", *f.TimeoutMs)
			}
			fmt.Fprintf(&sb, "| %d | %s | %s | `%s` | %s |\n",
				f.Index+1, f.ErrorKind, mdEscape(f.TestTitle), mdEscape(f.FailedLocator), timeout)
		}
		sb.WriteString("\n")
	}

	for i, cands := range run.Decision.Candidates {
		if len(cands) == 0 {
			continue
		}
		fmt.Fprintf(&sb, "**Candidates for failure %d, best first:**\n\n", i+1)
		for _, c := range cands {
			fmt.Fprintf(&sb, "- `%s`\n", c.Expression)
		}
		sb.WriteString("\n")
	}

	if run.HealedScriptPath != "" {
		sb.WriteString("## Artifacts\n\n")
		fmt.Fprintf(&sb, "- Healed script: `%s`\n", run.HealedScriptPath)
		if run.SummaryPath != "" {
			fmt.Fprintf(&sb, "- Summary: `%s`\n", run.SummaryPath)
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

// mdEscape replaces characters that would break Markdown table cells.
func mdEscape(s string) string {
	s = strings.ReplaceAll(s, "|", "\\|")
	s = strings.ReplaceAll(s, "\n", " ")
	return s
}
