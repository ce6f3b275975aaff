// Package schema defines the canonical data types passed between pipeline
// stages. Each stage produces the types consumed by the next; nothing here is
// shared-mutable across stages.
package schema

// SchemaVariant identifies the recognized shape of a failure report document.
type SchemaVariant string

const (
	VariantSuitesWithSpecs SchemaVariant = "nested-suites-with-specs"
	VariantSuitesWithTests SchemaVariant = "nested-suites-with-tests"
	VariantFlatErrors      SchemaVariant = "flat-errors"
	VariantStatsOnly       SchemaVariant = "stats-only"
)

// StatusKind is the reported status of one observed failure.
type StatusKind string

const (
	StatusFailed            StatusKind = "failed"
	StatusTimedOut          StatusKind = "timedOut"
	StatusUnexpectedFailure StatusKind = "unexpectedFailure"
	StatusGlobalError       StatusKind = "globalError"
)

// ErrorKind is the classification taxonomy assigned to a failure. It is
// always set; classification degrades to KindUnknown, never to an error.
type ErrorKind string

const (
	KindVisibilityTimeout   ErrorKind = "visibilityTimeout"
	KindGeneralTimeout      ErrorKind = "generalTimeout"
	KindElementNotFound     ErrorKind = "elementNotFound"
	KindStrictModeViolation ErrorKind = "strictModeViolation"
	KindLocatorFailure      ErrorKind = "locatorFailure"
	KindUnknown             ErrorKind = "unknown"
)

// UnknownLocator is the sentinel used when no locator can be extracted from a
// failure message.
const UnknownLocator = "Unknown locator"

// Location points at a source position within a test script.
type Location struct {
	File   string `json:"file,omitempty"`
	Line   int    `json:"line,omitempty"`
	Column int    `json:"column,omitempty"`
}

// ErrorDetail is the error body attached to a result or a global error node.
type ErrorDetail struct {
	Message  string    `json:"message"`
	Stack    string    `json:"stack,omitempty"`
	Location *Location `json:"location,omitempty"`
}

// Result is one execution attempt of a test (retries produce several).
type Result struct {
	Status        string       `json:"status"`
	Error         *ErrorDetail `json:"error,omitempty"`
	ErrorLocation *Location    `json:"errorLocation,omitempty"`
}

// Test is a single test case with its retry results.
type Test struct {
	Status  string   `json:"status,omitempty"`
	Results []Result `json:"results,omitempty"`
}

// Spec groups the tests declared under one test() title.
type Spec struct {
	Title string `json:"title,omitempty"`
	File  string `json:"file,omitempty"`
	Tests []Test `json:"tests,omitempty"`
}

// Suite is a (possibly recursively nested) grouping of specs or tests.
type Suite struct {
	Title  string  `json:"title,omitempty"`
	File   string  `json:"file,omitempty"`
	Suites []Suite `json:"suites,omitempty"`
	Specs  []Spec  `json:"specs,omitempty"`
	Tests  []Test  `json:"tests,omitempty"`
}

// Stats is the aggregate counter block some runner configurations emit
// instead of per-test detail.
type Stats struct {
	Expected   int `json:"expected,omitempty"`
	Unexpected int `json:"unexpected,omitempty"`
	Flaky      int `json:"flaky,omitempty"`
	Skipped    int `json:"skipped,omitempty"`
}

// Document is the normalized in-memory form of a failure report.
type Document struct {
	Suites []Suite       `json:"suites,omitempty"`
	Errors []ErrorDetail `json:"errors,omitempty"`
	Stats  Stats         `json:"stats,omitempty"`
}

// FailureReport is the decoded report plus provenance. Immutable after
// normalization; discarded at end of run.
type FailureReport struct {
	SchemaVariant  SchemaVariant
	SourceEncoding string
	Document       Document
}

// FailureRecord is one observed failure in report order. Created by the
// extractor; read-only thereafter. Every record has a non-empty Message.
type FailureRecord struct {
	Index      int
	TestTitle  string
	FilePath   string
	StatusKind StatusKind
	Message    string
	StackTrace string
	Location   *Location
}

// CompetingElement is one of the elements a strict-mode violation resolved
// to, identified by its most stable distinguishing attribute.
type CompetingElement struct {
	Attribute string // "data-testid", "id", or "aria-label"
	Value     string
}

// ClassifiedFailure is a FailureRecord with derived diagnosis evidence.
// ErrorKind is always set, possibly to KindUnknown.
type ClassifiedFailure struct {
	FailureRecord
	ErrorKind     ErrorKind
	FailedLocator string // UnknownLocator when not extractable
	TimeoutMs     *int   // nil when the message carries no timeout
	ExpectedValue string // empty when the message carries no expectation
	Competing     []CompetingElement
}

// LocatorCandidate is a proposed replacement locator. Lower StrategyRank is
// preferred.
type LocatorCandidate struct {
	Expression   string
	StrategyRank int
}

// Candidate strategy ranks, in preference order.
const (
	RankTestID = 1
	RankRole   = 2
	RankText   = 3
	RankLabel  = 4
	RankCSS    = 5
)

// HealingDecision is the aggregate handed to the repair orchestrator:
// classified failures in extraction order, each with its advisory candidate
// list. Built fresh per run and not mutated after construction.
type HealingDecision struct {
	Failures   []ClassifiedFailure
	Candidates [][]LocatorCandidate // Candidates[i] belongs to Failures[i]
}

// HealedArtifact is the validated output of a successful repair.
type HealedArtifact struct {
	SummaryText      string
	ScriptText       string
	SourceScriptPath string
}
