// Package probe exposes the optional browser-automation capability: an opaque
// "run these instructions against the current page" operation used to check
// candidate locators against a live DOM. The pipeline treats probe output as
// advisory and degrades probe failures to "no findings".
package probe

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"

	"github.com/dshills/testmend/internal/schema"
)

// Prober runs instructions against a live page and reports what it saw.
type Prober interface {
	Probe(ctx context.Context, url string, instructions []string) (string, error)
}

// Options configures the rod-backed prober.
type Options struct {
	Headless          bool
	NavigationTimeout time.Duration
	Logger            *zap.Logger
}

// PageProber is a Prober backed by a headless Chromium via rod. Each Probe
// call launches a fresh browser so no state leaks between runs.
type PageProber struct {
	opts Options
}

// New returns a PageProber. A nil logger defaults to a no-op logger; a zero
// navigation timeout defaults to 30 seconds.
func New(opts Options) *PageProber {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.NavigationTimeout <= 0 {
		opts.NavigationTimeout = 30 * time.Second
	}
	return &PageProber{opts: opts}
}

// Probe navigates to url and evaluates each instruction as a JavaScript
// expression in the page, returning a findings block suitable for inclusion
// in a repair prompt. Individual instruction failures are recorded as
// findings, not errors; only navigation-level problems fail the probe.
func (p *PageProber) Probe(ctx context.Context, url string, instructions []string) (string, error) {
	l := launcher.New().Headless(p.opts.Headless)
	controlURL, err := l.Launch()
	if err != nil {
		return "", fmt.Errorf("probe: launch browser: %w", err)
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return "", fmt.Errorf("probe: connect: %w", err)
	}
	defer func() {
		if cerr := browser.Close(); cerr != nil {
			p.opts.Logger.Warn("probe: browser close", zap.Error(cerr))
		}
	}()

	page, err := browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return "", fmt.Errorf("probe: open page: %w", err)
	}
	page = page.Context(ctx).Timeout(p.opts.NavigationTimeout)

	if err := page.Navigate(url); err != nil {
		return "", fmt.Errorf("probe: navigate %s: %w", url, err)
	}
	if err := page.WaitLoad(); err != nil {
		return "", fmt.Errorf("probe: wait load: %w", err)
	}

	var sb strings.Builder
	for _, instr := range instructions {
		obj, err := page.Eval("() => " + instr)
		if err != nil {
			p.opts.Logger.Debug("probe: eval failed", zap.String("instruction", instr), zap.Error(err))
			fmt.Fprintf(&sb, "- %s -> evaluation failed\n", instr)
			continue
		}
		fmt.Fprintf(&sb, "- %s -> %s\n", instr, obj.Value.String())
	}
	return sb.String(), nil
}

var (
	selectorCallRe = regexp.MustCompile(`locator\('([^']+)'\)`)
	testIDCallRe   = regexp.MustCompile(`getByTestId\('([^']+)'\)`)
	labelCallRe    = regexp.MustCompile(`getByLabel\('([^']+)'\)`)
	textCallRe     = regexp.MustCompile(`getByText\('([^']+)'\)`)
)

// CandidateInstructions converts a decision's locator candidates into plain
// DOM probe expressions. Candidates with no DOM-level equivalent (role
// queries) are skipped; the result may be empty.
func CandidateInstructions(decision schema.HealingDecision) []string {
	var out []string
	seen := make(map[string]bool)
	add := func(expr string) {
		if expr != "" && !seen[expr] {
			seen[expr] = true
			out = append(out, expr)
		}
	}
	for _, cands := range decision.Candidates {
		for _, c := range cands {
			add(instruction(c.Expression))
		}
	}
	return out
}

// instruction maps one candidate expression onto a DOM query counting or
// checking its target, or "" when the strategy has no DOM equivalent.
func instruction(expr string) string {
	if m := testIDCallRe.FindStringSubmatch(expr); m != nil {
		return fmt.Sprintf("document.querySelectorAll('[data-testid=%q]').length", m[1])
	}
	if m := labelCallRe.FindStringSubmatch(expr); m != nil {
		return fmt.Sprintf("document.querySelectorAll('[aria-label=%q]').length", m[1])
	}
	if m := textCallRe.FindStringSubmatch(expr); m != nil {
		return fmt.Sprintf("document.body.innerText.includes(%q)", m[1])
	}
	if m := selectorCallRe.FindStringSubmatch(expr); m != nil {
		return fmt.Sprintf("document.querySelectorAll(%q).length", m[1])
	}
	return ""
}
