// Command testmend diagnoses failed Playwright runs and writes healed test
// scripts.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dshills/testmend/internal/heal"
	"github.com/dshills/testmend/internal/pipeline"
	"github.com/dshills/testmend/internal/probe"
	"github.com/dshills/testmend/internal/render"
	"github.com/dshills/testmend/internal/report"
)

// Exit codes. Cobra reserves 1 for generic errors and 2 for usage errors.
const (
	exitCodeBadInput  = 3 // missing or unreadable inputs
	exitCodeAPIError  = 4 // engine transport or provider failure
	exitCodeBadOutput = 5 // engine produced an invalid repair
	exitCodeFiltered  = 6 // content filter exhausted the retry ceiling
)

// exitError carries an exit code alongside the underlying error.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func main() {
	// Provider API keys may live in a .env file next to the invocation.
	// A missing file is not an error.
	_ = godotenv.Load()

	root := &cobra.Command{
		Use:           "testmend",
		Short:         "Diagnose and heal failing Playwright test scripts",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newHealCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("error:"), err)
		code := 1
		var ee *exitError
		if errors.As(err, &ee) {
			code = ee.code
		}
		os.Exit(code)
	}
}

// healFlags holds the heal subcommand's flag values.
type healFlags struct {
	report      string
	script      string
	out         string
	provider    string
	model       string
	profileName string
	maxAttempts int
	backoff     time.Duration
	probeURL    string
	headless    bool
	format      string
	verbose     bool
}

func newHealCmd() *cobra.Command {
	var f healFlags

	cmd := &cobra.Command{
		Use:   "heal",
		Short: "Heal a failing script from its test-run report",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHeal(cmd.Context(), f)
		},
	}

	cmd.Flags().StringVar(&f.report, "report", "", "path to the test-run report JSON (required)")
	cmd.Flags().StringVar(&f.script, "script", "", "path to the failing test script (required)")
	cmd.Flags().StringVar(&f.out, "out", "healed", "directory for healed artifacts")
	cmd.Flags().StringVar(&f.provider, "provider", "anthropic", "repair engine provider: anthropic, openai, or google")
	cmd.Flags().StringVar(&f.model, "model", "claude-sonnet-4-20250514", "model name for the chosen provider")
	cmd.Flags().StringVar(&f.profileName, "profile", "default", "healing profile")
	cmd.Flags().IntVar(&f.maxAttempts, "max-attempts", 3, "total engine attempts when content-filtered")
	cmd.Flags().DurationVar(&f.backoff, "backoff", 2*time.Second, "pause between content-filtered attempts")
	cmd.Flags().StringVar(&f.probeURL, "probe-url", "", "optional URL to probe candidate locators against")
	cmd.Flags().BoolVar(&f.headless, "headless", true, "run the probe browser headless")
	cmd.Flags().StringVar(&f.format, "format", "markdown", "run summary format: markdown or json")
	cmd.Flags().BoolVar(&f.verbose, "verbose", false, "enable debug logging")

	return cmd
}

func runHeal(ctx context.Context, f healFlags) error {
	if f.report == "" || f.script == "" {
		return &exitError{code: exitCodeBadInput, err: errors.New("both --report and --script are required")}
	}
	if f.format != "markdown" && f.format != "json" {
		return &exitError{code: exitCodeBadInput, err: fmt.Errorf("unknown format %q", f.format)}
	}

	log, err := newLogger(f.verbose)
	if err != nil {
		return err
	}
	defer log.Sync() //nolint:errcheck // stderr sync failure is not actionable

	cfg := pipeline.Config{
		ReportPath:  f.report,
		ScriptPath:  f.script,
		OutDir:      f.out,
		Provider:    f.provider,
		Model:       f.model,
		ProfileName: f.profileName,
		MaxAttempts: f.maxAttempts,
		Backoff:     f.backoff,
		ProbeURL:    f.probeURL,
		Logger:      log,
	}
	if f.probeURL != "" {
		cfg.Prober = probe.New(probe.Options{Headless: f.headless, Logger: log})
	}

	res, err := pipeline.Run(ctx, cfg)
	if err != nil {
		return classifyRunError(err)
	}

	switch f.format {
	case "json":
		b, rerr := render.JSON(res.Run)
		if rerr != nil {
			return rerr
		}
		fmt.Println(string(b))
	default:
		fmt.Print(render.Markdown(res.Run))
	}

	switch res.Outcome {
	case pipeline.OutcomeNoFailures:
		color.Green("No failures found; nothing to heal.")
	default:
		color.Green("Healed script written to %s", res.HealedScriptPath)
	}
	return nil
}

// classifyRunError maps pipeline failures onto exit codes.
func classifyRunError(err error) error {
	var ioe *heal.InvalidOutputError
	switch {
	case errors.Is(err, heal.ErrExhaustedRetries):
		return &exitError{code: exitCodeFiltered, err: err}
	case errors.As(err, &ioe):
		return &exitError{code: exitCodeBadOutput, err: err}
	case errors.Is(err, os.ErrNotExist):
		return &exitError{code: exitCodeBadInput, err: err}
	}
	var ue *report.UnreadableError
	if errors.As(err, &ue) {
		return &exitError{code: exitCodeBadInput, err: err}
	}
	return &exitError{code: exitCodeAPIError, err: err}
}

// newLogger builds the CLI logger: human-readable development output when
// verbose, compact production output otherwise.
func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	return cfg.Build()
}
