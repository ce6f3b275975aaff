// Package heal orchestrates the bounded-retry interaction with the generative
// repair engine: prompt construction, content-filter backoff, and validation
// plus extraction of the structured response.
package heal

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dshills/testmend/internal/fallback"
	"github.com/dshills/testmend/internal/schema"
)

// ErrExhaustedRetries is returned when every attempt up to the retry ceiling
// was rejected by the engine's content-safety filter. Recoverable in the
// sense that a later run may succeed, but terminal for this one.
var ErrExhaustedRetries = errors.New("heal: retry ceiling reached while content-filtered")

// InvalidOutputError records an engine response that failed extraction or the
// script validity contract. It carries the raw response for diagnosis and is
// terminal for the attempt: these failures are not presumed transient and are
// never retried.
type InvalidOutputError struct {
	Reason string
	Raw    string
}

func (e *InvalidOutputError) Error() string {
	return fmt.Sprintf("heal: invalid repair output: %s", e.Reason)
}

// Engine is the generative-text capability: a prompt in, text out. An error
// whose message indicates a content-safety rejection is retried; any other
// error is fatal for the attempt.
type Engine interface {
	Invoke(ctx context.Context, prompt string) (string, error)
}

// NewEngine is the factory for creating engines. It is a package-level
// variable so tests can replace it with a mock without modifying the call
// site. Tests must restore the original value; use t.Cleanup to do so safely.
var NewEngine func(providerName, model string, maxTokens int, temperature float64) (Engine, error) = defaultNewEngine

// Options configures a Heal call.
type Options struct {
	Provider    string
	Model       string
	MaxTokens   int           // engine output budget; default 8192
	Temperature float64       // default 0.1
	MaxAttempts int           // total attempts incl. the first; default 3
	Backoff     time.Duration // pause between content-filtered attempts; default 2s
	// PromptAddendum carries profile-specific wording (see internal/profile).
	PromptAddendum string
	// ProbeFindings, when non-empty, is a live-page findings block appended
	// to the prompt.
	ProbeFindings string
	Logger        *zap.Logger
}

func (o *Options) applyDefaults() {
	if o.MaxTokens <= 0 {
		o.MaxTokens = 8192
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 3
	}
	if o.Backoff <= 0 {
		o.Backoff = 2 * time.Second
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
}

// Heal builds the repair prompt, invokes the engine with bounded retry, and
// validates and extracts the structured response. scriptPath is recorded on
// the artifact; scriptText is the failing script's content.
func Heal(ctx context.Context, scriptPath, scriptText string, decision schema.HealingDecision, opts Options) (*schema.HealedArtifact, error) {
	opts.applyDefaults()

	engine, err := NewEngine(opts.Provider, opts.Model, opts.MaxTokens, opts.Temperature)
	if err != nil {
		return nil, fmt.Errorf("heal: create engine: %w", err)
	}

	prompt := buildPrompt(scriptPath, scriptText, decision, opts)

	for attempt := 1; ; attempt++ {
		raw, err := engine.Invoke(ctx, prompt)
		if err != nil {
			if !IsContentFiltered(err) {
				return nil, fmt.Errorf("heal: engine invoke: %w", err)
			}
			if attempt >= opts.MaxAttempts {
				return nil, fmt.Errorf("%w (%d attempts): %v", ErrExhaustedRetries, attempt, err)
			}
			opts.Logger.Warn("content filter rejection, backing off",
				zap.Int("attempt", attempt),
				zap.Duration("backoff", opts.Backoff),
				zap.Error(err))
			select {
			case <-time.After(opts.Backoff):
			case <-ctx.Done():
				return nil, fmt.Errorf("heal: %w", ctx.Err())
			}
			continue
		}

		summary, script, exErr := ExtractResponse(raw)
		if exErr != nil {
			// A response that fails extraction or validity is terminal: no
			// partial credit, no retry.
			return nil, exErr
		}
		opts.Logger.Info("healed script extracted",
			zap.Int("attempt", attempt),
			zap.Int("script_bytes", len(script)))
		return &schema.HealedArtifact{
			SummaryText:      summary,
			ScriptText:       script,
			SourceScriptPath: scriptPath,
		}, nil
	}
}

// contentFilterMarkers are the lower-cased substrings that identify a
// content-safety rejection in an engine error message.
var contentFilterMarkers = []string{
	"content_filter",
	"content filter",
	"content management policy",
	"responsible ai",
}

// IsContentFiltered reports whether err looks like a content-safety rejection
// rather than an ordinary engine failure.
func IsContentFiltered(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range contentFilterMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// summaryMarkerRe locates the healing-summary heading. The emoji the original
// prompt format used is tolerated but not required.
var summaryMarkerRe = regexp.MustCompile(`(?m)^#{2,3}\s*(?:\x{1F9E9}\s*)?Healing Summary\s*$`)

// fencePatterns is the ordered list of fence variants tried during script
// extraction: language-tagged primary form, shorthand tag, then an untagged
// fence. The first variant whose payload passes the validity contract wins.
var fencePatterns = []*regexp.Regexp{
	regexp.MustCompile("(?s)```typescript[ \t]*\n(.*?)\n```"),
	regexp.MustCompile("(?s)```ts[ \t]*\n(.*?)\n```"),
	regexp.MustCompile("(?s)```[a-zA-Z]*[ \t]*\n(.*?)\n```"),
}

// ExtractResponse pulls the healing summary and replacement script out of a
// raw engine response. Both parts are required: a response with a summary but
// an invalid script, or a valid script but no recognizable summary, yields an
// *InvalidOutputError.
func ExtractResponse(raw string) (summary, script string, err error) {
	loc := summaryMarkerRe.FindStringIndex(raw)
	if loc == nil {
		return "", "", &InvalidOutputError{Reason: "no healing-summary section", Raw: raw}
	}

	script, _, ferr := fallback.First(fencePatterns, func(re *regexp.Regexp) (string, error) {
		m := re.FindStringSubmatch(raw)
		if m == nil {
			return "", fmt.Errorf("pattern %s: no fenced block", re)
		}
		candidate := strings.TrimSpace(m[1])
		if verr := ValidateScript(candidate); verr != nil {
			return "", fmt.Errorf("pattern %s: %w", re, verr)
		}
		return candidate, nil
	})
	if ferr != nil {
		return "", "", &InvalidOutputError{Reason: "no fenced block passed the script validity check", Raw: raw}
	}

	// Summary runs from the marker to the next heading or the script fence.
	rest := raw[loc[1]:]
	if i := strings.Index(rest, "```"); i >= 0 {
		rest = rest[:i]
	}
	if i := strings.Index(rest, "\n###"); i >= 0 {
		rest = rest[:i]
	}
	summary = strings.TrimSpace(rest)
	if summary == "" {
		return "", "", &InvalidOutputError{Reason: "healing-summary section is empty", Raw: raw}
	}
	return summary, script, nil
}

var (
	frameworkImportRe = regexp.MustCompile(`(?m)^\s*(?:import\b[^\n]*from\s*['"]@playwright/test['"]|[^\n]*require\(\s*['"]@playwright/test['"]\s*\))`)
	testDeclRe        = regexp.MustCompile(`\btest(?:\.describe)?\s*\(`)
)

// ValidateScript enforces the validity contract on an extracted script: it
// must import the test framework and declare at least one test case.
func ValidateScript(script string) error {
	if !frameworkImportRe.MatchString(script) {
		return errors.New("missing @playwright/test import")
	}
	if !testDeclRe.MatchString(script) {
		return errors.New("no test declaration found")
	}
	return nil
}

// systemPrompt is the fixed preamble of every repair prompt.
const systemPrompt = `You are an expert test engineer healing a failing Playwright test script.

You are given the failing script, a structured diagnosis of each failure, and
ranked candidate replacement locators. Modify only the broken parts of the
script and preserve all working logic. For timeout failures increase the
timeout or add explicit waits; for broken locators use the most resilient
replacement available; ensure strict-mode compliance (unique element matches).

Respond in exactly this format:

### Healing Summary
- Failure Cause: <why the original script failed>
- Fix Applied: <the exact change made and why>
- Suggested Fix: <a long-term recommendation>

` + "```typescript" + `
<the complete, fixed Playwright script>
` + "```" + `

The summary section must come first, followed by a single fenced code block
containing the complete replacement script.`

// buildPrompt assembles the full repair prompt from the script, the decision,
// and the formatting instructions.
func buildPrompt(scriptPath, scriptText string, decision schema.HealingDecision, opts Options) string {
	var sb strings.Builder

	sb.WriteString(systemPrompt)
	if opts.PromptAddendum != "" {
		sb.WriteString("\n\n")
		sb.WriteString(opts.PromptAddendum)
	}

	fmt.Fprintf(&sb, "\n\nFailing script (%s):\n\n```typescript\n%s\n```\n", scriptPath, scriptText)

	sb.WriteString("\nDiagnosed failures, in report order:\n")
	for i, f := range decision.Failures {
		fmt.Fprintf(&sb, "\n%d. %s", i+1, f.ErrorKind)
		if f.TestTitle != "" {
			fmt.Fprintf(&sb, " in %q", f.TestTitle)
		}
		if f.Location != nil && f.Location.Line > 0 {
			fmt.Fprintf(&sb, " (line %d)", f.Location.Line)
		}
		sb.WriteString("\n")
		fmt.Fprintf(&sb, "   Locator: %s\n", f.FailedLocator)
		if f.TimeoutMs != nil {
			fmt.Fprintf(&sb, "   Timeout: %dms\n", *f.TimeoutMs)
		}
		if f.ExpectedValue != "" {
			fmt.Fprintf(&sb, "   Expected: %s\n", f.ExpectedValue)
		}
		fmt.Fprintf(&sb, "   Message: %s\n", firstLine(f.Message))
		if i < len(decision.Candidates) && len(decision.Candidates[i]) > 0 {
			sb.WriteString("   Candidate replacements, best first:\n")
			for _, c := range decision.Candidates[i] {
				fmt.Fprintf(&sb, "     - %s\n", c.Expression)
			}
		}
	}

	if opts.ProbeFindings != "" {
		sb.WriteString("\nLive-page findings for the candidates:\n")
		sb.WriteString(opts.ProbeFindings)
	}

	sb.WriteString("\nProduce the healing summary and the complete replacement script now.")
	return sb.String()
}

// firstLine truncates a message to its first line for prompt brevity; the
// full message already informed classification.
func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// defaultNewEngine dispatches to the appropriate provider implementation.
func defaultNewEngine(providerName, model string, maxTokens int, temperature float64) (Engine, error) {
	switch strings.ToLower(providerName) {
	case "anthropic", "":
		return newAnthropicEngine(model, maxTokens, temperature)
	case "openai":
		return newOpenAIEngine(model, maxTokens, temperature)
	case "google":
		return newGoogleEngine(model, maxTokens, temperature)
	default:
		return nil, fmt.Errorf("heal: unknown provider %q", providerName)
	}
}
