// Package pipeline wires the full healing flow: decode and parse the failure
// report, extract and classify failures, generate candidate locators,
// optionally probe a live page, drive the repair engine, and persist the
// healed artifacts.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/dshills/testmend/internal/artifact"
	"github.com/dshills/testmend/internal/classify"
	"github.com/dshills/testmend/internal/extract"
	"github.com/dshills/testmend/internal/heal"
	"github.com/dshills/testmend/internal/locator"
	"github.com/dshills/testmend/internal/probe"
	"github.com/dshills/testmend/internal/profile"
	"github.com/dshills/testmend/internal/render"
	"github.com/dshills/testmend/internal/report"
	"github.com/dshills/testmend/internal/schema"
)

// Outcome is the terminal state of a pipeline run.
type Outcome string

const (
	// OutcomeHealed means a repaired script and summary were written.
	OutcomeHealed Outcome = "healed"
	// OutcomeNoFailures means the report contained nothing to heal. This is
	// a successful run; the repair engine is never invoked.
	OutcomeNoFailures Outcome = "no-failures"
)

// Config holds everything a Run needs.
type Config struct {
	ReportPath  string
	ScriptPath  string
	OutDir      string
	Provider    string
	Model       string
	ProfileName string
	MaxAttempts int
	Backoff     time.Duration
	// ProbeURL, when set together with Prober, enables a live-page check of
	// the candidate locators before healing.
	ProbeURL string
	Prober   probe.Prober
	Logger   *zap.Logger
}

// Result describes a completed run.
type Result struct {
	Outcome          Outcome
	Run              *render.Run
	Artifact         *schema.HealedArtifact
	HealedScriptPath string
	SummaryPath      string
}

// Run executes the healing pipeline end to end.
func Run(ctx context.Context, cfg Config) (*Result, error) {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	raw, err := os.ReadFile(cfg.ReportPath)
	if err != nil {
		return nil, fmt.Errorf("pipeline: read report: %w", err)
	}
	rep, err := report.Parse(raw, cfg.ReportPath)
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	log.Info("report parsed",
		zap.String("variant", string(rep.SchemaVariant)),
		zap.String("encoding", rep.SourceEncoding))

	records, err := extract.Failures(rep.Document)
	if errors.Is(err, extract.ErrNoFailures) {
		log.Info("no failures in report, nothing to heal")
		return &Result{
			Outcome: OutcomeNoFailures,
			Run: &render.Run{
				Outcome:        string(OutcomeNoFailures),
				ReportPath:     cfg.ReportPath,
				SchemaVariant:  rep.SchemaVariant,
				SourceEncoding: rep.SourceEncoding,
			},
		}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}

	failures := classify.ClassifyAll(records)
	candidates := make([][]schema.LocatorCandidate, len(failures))
	for i, f := range failures {
		candidates[i] = locator.Candidates(f)
	}
	decision := schema.HealingDecision{Failures: failures, Candidates: candidates}
	log.Info("failures diagnosed", zap.Int("count", len(failures)))

	profileName := cfg.ProfileName
	if profileName == "" {
		profileName = "default"
	}
	prof, err := profile.Load(profileName)
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}

	scriptBytes, err := os.ReadFile(cfg.ScriptPath)
	if err != nil {
		return nil, fmt.Errorf("pipeline: read script: %w", err)
	}
	// Scripts exported from the same Windows tooling as the reports can carry
	// a BOM or a non-UTF-8 encoding; run them through the same decode chain.
	scriptText, _, err := report.DecodeText(scriptBytes)
	if err != nil {
		return nil, fmt.Errorf("pipeline: decode script: %w", err)
	}

	findings := probeFindings(ctx, cfg, decision, log)

	art, err := heal.Heal(ctx, cfg.ScriptPath, scriptText, decision, heal.Options{
		Provider:       cfg.Provider,
		Model:          cfg.Model,
		MaxAttempts:    cfg.MaxAttempts,
		Backoff:        cfg.Backoff,
		PromptAddendum: prof.PromptAddendum,
		ProbeFindings:  findings,
		Logger:         log,
	})
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}

	store, err := artifact.NewStore(cfg.OutDir, log)
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	scriptPath, summaryPath, err := store.Write(art)
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}

	return &Result{
		Outcome:          OutcomeHealed,
		Artifact:         art,
		HealedScriptPath: scriptPath,
		SummaryPath:      summaryPath,
		Run: &render.Run{
			Outcome:          string(OutcomeHealed),
			ReportPath:       cfg.ReportPath,
			SchemaVariant:    rep.SchemaVariant,
			SourceEncoding:   rep.SourceEncoding,
			Decision:         decision,
			HealedScriptPath: scriptPath,
			SummaryPath:      summaryPath,
		},
	}, nil
}

// probeFindings runs the optional live-page probe. Probe output is advisory:
// any failure degrades to empty findings rather than failing the run.
func probeFindings(ctx context.Context, cfg Config, decision schema.HealingDecision, log *zap.Logger) string {
	if cfg.Prober == nil || cfg.ProbeURL == "" {
		return ""
	}
	instrs := probe.CandidateInstructions(decision)
	if len(instrs) == 0 {
		return ""
	}
	findings, err := cfg.Prober.Probe(ctx, cfg.ProbeURL, instrs)
	if err != nil {
		log.Warn("live-page probe failed, continuing without findings", zap.Error(err))
		return ""
	}
	return findings
}
