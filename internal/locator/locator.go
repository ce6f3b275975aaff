// Package locator proposes replacement locator strategies for a failed
// locator. It is pure, does no I/O, and its output is advisory: the repair
// engine may use, reorder, or ignore the candidates.
package locator

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/dshills/testmend/internal/schema"
)

// literalRe pulls the quoted literal out of a locator construct such as
// getByText('Browse Foundry Models') or locator('text=Save').
var literalRe = regexp.MustCompile(`\(\s*(?:"([^"]*)"|'([^']*)')`)

// Candidates proposes replacement locators for cf, ordered by strategy rank
// (test-id first). May be empty.
func Candidates(cf schema.ClassifiedFailure) []schema.LocatorCandidate {
	var cands []schema.LocatorCandidate

	switch cf.ErrorKind {
	case schema.KindStrictModeViolation:
		cands = strictModeCandidates(cf)
	case schema.KindElementNotFound, schema.KindLocatorFailure,
		schema.KindVisibilityTimeout, schema.KindGeneralTimeout:
		cands = genericCandidates(cf.FailedLocator)
	default:
		if cf.FailedLocator != schema.UnknownLocator {
			cands = genericCandidates(cf.FailedLocator)
		}
	}

	sort.SliceStable(cands, func(i, j int) bool {
		return cands[i].StrategyRank < cands[j].StrategyRank
	})
	return cands
}

// strictModeCandidates disambiguates each competing element by its extracted
// attribute: one candidate per element, not a single generic retry. With no
// extractable attributes it falls back to the generic heuristics.
func strictModeCandidates(cf schema.ClassifiedFailure) []schema.LocatorCandidate {
	if len(cf.Competing) == 0 {
		return genericCandidates(cf.FailedLocator)
	}
	var cands []schema.LocatorCandidate
	for _, el := range cf.Competing {
		switch el.Attribute {
		case "data-testid":
			cands = append(cands, schema.LocatorCandidate{
				Expression:   fmt.Sprintf("page.getByTestId(%s)", quote(el.Value)),
				StrategyRank: schema.RankTestID,
			})
		case "aria-label":
			cands = append(cands, schema.LocatorCandidate{
				Expression:   fmt.Sprintf("page.getByLabel(%s)", quote(el.Value)),
				StrategyRank: schema.RankLabel,
			})
		case "id":
			cands = append(cands, schema.LocatorCandidate{
				Expression:   fmt.Sprintf("page.locator('#%s')", el.Value),
				StrategyRank: schema.RankCSS,
			})
		}
	}
	return cands
}

// genericCandidates applies the domain-free heuristics: wrap the failed text
// in a text matcher, propose a role-with-name match, and derive a test-marker
// selector from the normalized text.
func genericCandidates(failedLocator string) []schema.LocatorCandidate {
	text := literalText(failedLocator)
	if text == "" {
		return nil
	}
	cands := []schema.LocatorCandidate{
		{
			Expression:   fmt.Sprintf("page.getByText(%s)", quote(text)),
			StrategyRank: schema.RankText,
		},
		{
			Expression:   fmt.Sprintf("page.getByRole('button', { name: %s })", quote(text)),
			StrategyRank: schema.RankRole,
		},
	}
	if slug := normalize(text); slug != "" {
		cands = append(cands, schema.LocatorCandidate{
			Expression:   fmt.Sprintf(`page.locator('[data-testid*="%s"]')`, slug),
			StrategyRank: schema.RankTestID,
		})
	}
	return cands
}

// literalText returns the quoted literal inside a locator construct, or the
// raw locator when it is not a construct call. The sentinel yields "".
func literalText(failedLocator string) string {
	if failedLocator == "" || failedLocator == schema.UnknownLocator {
		return ""
	}
	if m := literalRe.FindStringSubmatch(failedLocator); m != nil {
		lit := m[1]
		if lit == "" {
			lit = m[2]
		}
		// Strip engine prefixes like "text=" from raw selector literals.
		if i := strings.Index(lit, "="); i >= 0 && !strings.ContainsAny(lit[:i], " '\"[]") {
			lit = lit[i+1:]
		}
		return lit
	}
	return failedLocator
}

// normalize lowers the text and joins its alphanumeric runs with hyphens,
// producing a plausible test-id fragment ("Browse Foundry Models" →
// "browse-foundry-models").
func normalize(text string) string {
	lower := strings.ToLower(text)
	fields := strings.FieldsFunc(lower, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
	return strings.Join(fields, "-")
}

// quote wraps s in single quotes, escaping embedded ones.
func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "\\'") + "'"
}
