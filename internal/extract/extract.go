// Package extract walks a normalized failure report and yields its failures
// as a flat, ordered sequence of records.
package extract

import (
	"errors"
	"fmt"

	"github.com/dshills/testmend/internal/schema"
)

// ErrNoFailures is returned when the report contains no failures. It is a
// terminal success signal, not a failure: callers must stop before invoking
// the repair engine.
var ErrNoFailures = errors.New("extract: no failures found; nothing to heal")

// Failures returns every failure in doc, in report order. Records with an
// empty message are discarded. Returns ErrNoFailures when nothing remains.
func Failures(doc schema.Document) ([]schema.FailureRecord, error) {
	var records []schema.FailureRecord

	add := func(r schema.FailureRecord) {
		if r.Message == "" {
			return
		}
		r.Index = len(records)
		records = append(records, r)
	}

	switch {
	case len(doc.Errors) > 0:
		// Configuration/collection-level failures with no associated test.
		for _, e := range doc.Errors {
			add(schema.FailureRecord{
				StatusKind: schema.StatusGlobalError,
				Message:    e.Message,
				StackTrace: e.Stack,
				Location:   e.Location,
			})
		}

	case len(doc.Suites) > 0:
		walkSuites(doc.Suites, add)

	case doc.Stats.Unexpected > 0:
		// Aggregate-only report: a single synthetic record carrying the count.
		add(schema.FailureRecord{
			StatusKind: schema.StatusUnexpectedFailure,
			Message:    fmt.Sprintf("%d unexpected test failures", doc.Stats.Unexpected),
		})
	}

	if len(records) == 0 {
		return nil, ErrNoFailures
	}
	return records, nil
}

// walkSuites traverses suites depth-first in document order using an explicit
// stack, so arbitrarily deep (or malformed, cyclic-looking) nesting cannot
// overflow the call stack. Within a suite, specs come before directly
// attached tests, which come before child suites.
func walkSuites(suites []schema.Suite, add func(schema.FailureRecord)) {
	stack := make([]schema.Suite, 0, len(suites))
	for i := len(suites) - 1; i >= 0; i-- {
		stack = append(stack, suites[i])
	}
	for len(stack) > 0 {
		s := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		for _, spec := range s.Specs {
			file := spec.File
			if file == "" {
				file = s.File
			}
			for _, test := range spec.Tests {
				emitResults(spec.Title, file, test.Results, add)
			}
		}
		for _, test := range s.Tests {
			emitResults(s.Title, s.File, test.Results, add)
		}

		for i := len(s.Suites) - 1; i >= 0; i-- {
			stack = append(stack, s.Suites[i])
		}
	}
}

// emitResults adds one record per non-passed result. Retries of the same test
// each carry their own result node and are all reported.
func emitResults(title, file string, results []schema.Result, add func(schema.FailureRecord)) {
	for _, res := range results {
		if res.Status == "passed" {
			continue
		}
		rec := schema.FailureRecord{
			TestTitle:  title,
			FilePath:   file,
			StatusKind: statusKind(res.Status),
		}
		if res.Error != nil {
			rec.Message = res.Error.Message
			rec.StackTrace = res.Error.Stack
			rec.Location = res.Error.Location
		}
		if rec.Location == nil {
			rec.Location = res.ErrorLocation
		}
		add(rec)
	}
}

func statusKind(status string) schema.StatusKind {
	if status == "timedOut" {
		return schema.StatusTimedOut
	}
	return schema.StatusFailed
}
