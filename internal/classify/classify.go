// Package classify assigns each failure record a taxonomy kind and extracts
// locator, timeout, and expectation evidence from its message. Classification
// never fails: anything unrecognized degrades to the unknown kind.
package classify

import (
	"regexp"
	"strconv"

	"github.com/dshills/testmend/internal/schema"
)

var (
	timeoutRe    = regexp.MustCompile(`(?i)timeout`)
	visibilityRe = regexp.MustCompile(`(?i)toBeVisible|to be visible`)
	notFoundRe   = regexp.MustCompile(`(?i)element\(s\) not found`)
	strictRe     = regexp.MustCompile(`(?i)strict mode violation`)
	locatorRe    = regexp.MustCompile(`(?i)locator`)

	// "Locator: getByRole('button', ...)" marker lines take precedence over
	// locator-construct calls found elsewhere in the message.
	locatorMarkerRe = regexp.MustCompile(`Locator:\s*([^\n]+)`)
	locatorCallRe   = regexp.MustCompile(`getBy\w+\([^)]*\)|locator\((?:"[^"]*"|'[^']*')\)`)

	timeoutMsRe = regexp.MustCompile(`(\d+)\s*ms`)
	expectedRe  = regexp.MustCompile(`Expected:\s*(.+?)\s*(?:Received:|\n|$)`)

	// Strict-mode violation messages enumerate the competing matches as
	// "1) <tag attr=...>" lines; each line's opening tag carries the
	// attributes that disambiguate it.
	competingEntryRe = regexp.MustCompile(`(?m)^\s*\d+\)\s*(<[^>]*>)`)
	testIDAttrRe     = regexp.MustCompile(`data-testid=["']([^"']+)["']`)
	idAttrRe         = regexp.MustCompile(`\bid=["']([^"']+)["']`)
	ariaLabelAttrRe  = regexp.MustCompile(`aria-label=["']([^"']+)["']`)
)

// Classify derives the taxonomy kind and evidence for one failure record.
func Classify(rec schema.FailureRecord) schema.ClassifiedFailure {
	cf := schema.ClassifiedFailure{
		FailureRecord: rec,
		ErrorKind:     kindOf(rec.Message),
		FailedLocator: failedLocator(rec.Message),
		TimeoutMs:     timeoutMs(rec.Message),
		ExpectedValue: expectedValue(rec.Message),
	}
	if cf.ErrorKind == schema.KindStrictModeViolation {
		cf.Competing = competingElements(rec.Message)
	}
	return cf
}

// ClassifyAll classifies records preserving their order.
func ClassifyAll(records []schema.FailureRecord) []schema.ClassifiedFailure {
	out := make([]schema.ClassifiedFailure, len(records))
	for i, rec := range records {
		out[i] = Classify(rec)
	}
	return out
}

// kindOf applies the ordered classification rules. First match wins:
//
//  1. timeout indicator and visibility expectation → visibilityTimeout
//  2. timeout indicator alone → generalTimeout
//  3. zero matching elements → elementNotFound
//  4. more than one match where one was expected → strictModeViolation
//  5. any other locator reference → locatorFailure
//  6. otherwise → unknown
func kindOf(message string) schema.ErrorKind {
	switch {
	case timeoutRe.MatchString(message) && visibilityRe.MatchString(message):
		return schema.KindVisibilityTimeout
	case timeoutRe.MatchString(message):
		return schema.KindGeneralTimeout
	case notFoundRe.MatchString(message):
		return schema.KindElementNotFound
	case strictRe.MatchString(message):
		return schema.KindStrictModeViolation
	case locatorRe.MatchString(message):
		return schema.KindLocatorFailure
	default:
		return schema.KindUnknown
	}
}

// failedLocator pulls the locator out of the message: an explicit
// "Locator: <value>" marker first, then a locator-construct call, else the
// sentinel.
func failedLocator(message string) string {
	if m := locatorMarkerRe.FindStringSubmatch(message); m != nil {
		return m[1]
	}
	if m := locatorCallRe.FindString(message); m != "" {
		return m
	}
	return schema.UnknownLocator
}

// timeoutMs extracts the first integer immediately followed by a milliseconds
// unit. Absence yields nil, never an error.
func timeoutMs(message string) *int {
	m := timeoutMsRe.FindStringSubmatch(message)
	if m == nil {
		return nil
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n < 0 {
		return nil
	}
	return &n
}

// expectedValue extracts the "Expected: …" span, terminated by a "Received:"
// marker or end of message.
func expectedValue(message string) string {
	m := expectedRe.FindStringSubmatch(message)
	if m == nil {
		return ""
	}
	return m[1]
}

// competingElements extracts the distinguishing attribute of every element in
// a strict-mode violation's enumerated match list, in the order the elements
// appear. Per element the most stable attribute wins: data-testid, then id,
// then aria-label. Elements with none of those are skipped.
func competingElements(message string) []schema.CompetingElement {
	var out []schema.CompetingElement
	for _, entry := range competingEntryRe.FindAllStringSubmatch(message, -1) {
		tag := entry[1]
		if m := testIDAttrRe.FindStringSubmatch(tag); m != nil {
			out = append(out, schema.CompetingElement{Attribute: "data-testid", Value: m[1]})
			continue
		}
		if m := idAttrRe.FindStringSubmatch(tag); m != nil {
			out = append(out, schema.CompetingElement{Attribute: "id", Value: m[1]})
			continue
		}
		if m := ariaLabelAttrRe.FindStringSubmatch(tag); m != nil {
			out = append(out, schema.CompetingElement{Attribute: "aria-label", Value: m[1]})
		}
	}
	return out
}
