package extract

import (
	"errors"
	"testing"

	"github.com/dshills/testmend/internal/schema"
)

func failedResult(msg string) schema.Result {
	return schema.Result{
		Status: "failed",
		Error:  &schema.ErrorDetail{Message: msg},
	}
}

func TestFailures_CountAndOrder(t *testing.T) {
	doc := schema.Document{
		Suites: []schema.Suite{
			{
				Title: "auth.spec.ts",
				File:  "auth.spec.ts",
				Specs: []schema.Spec{
					{
						Title: "login works",
						Tests: []schema.Test{
							// Two retries, both failed: two records.
							{Results: []schema.Result{failedResult("first attempt"), failedResult("second attempt")}},
						},
					},
					{
						Title: "logout works",
						Tests: []schema.Test{
							{Results: []schema.Result{{Status: "passed"}}},
						},
					},
				},
				Suites: []schema.Suite{
					{
						Title: "nested",
						Specs: []schema.Spec{
							{
								Title: "deep failure",
								Tests: []schema.Test{
									{Results: []schema.Result{failedResult("nested boom")}},
								},
							},
						},
					},
				},
			},
		},
	}

	records, err := Failures(doc)
	if err != nil {
		t.Fatalf("Failures: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records (non-passed results only), got %d", len(records))
	}
	wantMsgs := []string{"first attempt", "second attempt", "nested boom"}
	for i, want := range wantMsgs {
		if records[i].Message != want {
			t.Errorf("record %d: got %q, want %q (order must follow the report)", i, records[i].Message, want)
		}
		if records[i].Index != i {
			t.Errorf("record %d: Index = %d", i, records[i].Index)
		}
	}
	if records[0].TestTitle != "login works" {
		t.Errorf("record 0 title: got %q", records[0].TestTitle)
	}
	if records[0].FilePath != "auth.spec.ts" {
		t.Errorf("record 0 file should inherit from suite, got %q", records[0].FilePath)
	}
}

func TestFailures_SuitesWithDirectTests(t *testing.T) {
	doc := schema.Document{
		Suites: []schema.Suite{
			{
				Title: "checkout",
				File:  "checkout.spec.ts",
				Tests: []schema.Test{
					{Results: []schema.Result{{
						Status: "timedOut",
						Error:  &schema.ErrorDetail{Message: "Timeout 30000ms exceeded"},
					}}},
				},
			},
		},
	}
	records, err := Failures(doc)
	if err != nil {
		t.Fatalf("Failures: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if records[0].StatusKind != schema.StatusTimedOut {
		t.Errorf("status kind: got %q, want timedOut", records[0].StatusKind)
	}
}

func TestFailures_DeepNestingDoesNotRecurse(t *testing.T) {
	// 10k nested suites would blow an unbounded recursion; the explicit
	// stack must handle any depth.
	leaf := schema.Suite{
		Specs: []schema.Spec{{
			Title: "deep",
			Tests: []schema.Test{{Results: []schema.Result{failedResult("found at depth")}}},
		}},
	}
	root := leaf
	for i := 0; i < 10000; i++ {
		root = schema.Suite{Suites: []schema.Suite{root}}
	}
	records, err := Failures(schema.Document{Suites: []schema.Suite{root}})
	if err != nil {
		t.Fatalf("Failures: %v", err)
	}
	if len(records) != 1 || records[0].Message != "found at depth" {
		t.Errorf("deep nesting lost the failure: %+v", records)
	}
}

func TestFailures_FlatErrors(t *testing.T) {
	doc := schema.Document{
		Errors: []schema.ErrorDetail{
			{Message: "config error: missing baseURL", Location: &schema.Location{Line: 3}},
			{Message: "collection failed"},
		},
	}
	records, err := Failures(doc)
	if err != nil {
		t.Fatalf("Failures: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	for i, r := range records {
		if r.StatusKind != schema.StatusGlobalError {
			t.Errorf("record %d: kind %q, want globalError", i, r.StatusKind)
		}
	}
	if records[0].Location == nil || records[0].Location.Line != 3 {
		t.Error("record 0 lost its location")
	}
}

func TestFailures_StatsOnly(t *testing.T) {
	doc := schema.Document{Stats: schema.Stats{Unexpected: 4}}
	records, err := Failures(doc)
	if err != nil {
		t.Fatalf("Failures: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 synthetic record, got %d", len(records))
	}
	r := records[0]
	if r.StatusKind != schema.StatusUnexpectedFailure {
		t.Errorf("kind: got %q, want unexpectedFailure", r.StatusKind)
	}
	if r.Message != "4 unexpected test failures" {
		t.Errorf("message: got %q", r.Message)
	}
}

func TestFailures_NoFailures(t *testing.T) {
	doc := schema.Document{
		Suites: []schema.Suite{{
			Specs: []schema.Spec{{
				Title: "all good",
				Tests: []schema.Test{{Results: []schema.Result{{Status: "passed"}}}},
			}},
		}},
	}
	_, err := Failures(doc)
	if !errors.Is(err, ErrNoFailures) {
		t.Fatalf("expected ErrNoFailures, got %v", err)
	}
}

func TestFailures_EmptyMessageDiscarded(t *testing.T) {
	doc := schema.Document{
		Suites: []schema.Suite{{
			Specs: []schema.Spec{{
				Title: "silent failure",
				Tests: []schema.Test{{Results: []schema.Result{{Status: "failed"}}}},
			}},
		}},
	}
	_, err := Failures(doc)
	if !errors.Is(err, ErrNoFailures) {
		t.Fatalf("a failure without a message must be discarded; got %v", err)
	}
}
