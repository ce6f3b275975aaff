// Package artifact persists healed scripts and their summaries. Output files
// never overwrite the failing script or any earlier healed artifact: name
// collisions are resolved with a numeric suffix, and files appear atomically
// so a crash cannot leave a partial script behind.
package artifact

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/dshills/testmend/internal/schema"
)

// PersistError records a failure writing an artifact to disk.
type PersistError struct {
	Path string
	Err  error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("artifact: write %s: %v", e.Path, e.Err)
}

func (e *PersistError) Unwrap() error { return e.Err }

// Store writes artifacts into a single output directory.
type Store struct {
	Dir    string
	Logger *zap.Logger
}

// NewStore returns a Store rooted at dir, creating the directory if needed.
func NewStore(dir string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, &PersistError{Path: dir, Err: err}
	}
	return &Store{Dir: dir, Logger: logger}, nil
}

// Write persists the healed script and its summary and returns their paths.
// The script is named <base>_healed.spec.ts after the source script; when
// that name is taken a numeric suffix is appended until a free name is found.
// The summary is a sibling markdown file sharing the script's stem, so a
// repeated run adds a new pair of files rather than replacing the last one.
func (s *Store) Write(art *schema.HealedArtifact) (scriptPath, summaryPath string, err error) {
	stem := scriptStem(art.SourceScriptPath)

	scriptPath, chosen, err := s.place(stem, art.ScriptText)
	if err != nil {
		return "", "", err
	}

	summaryPath = filepath.Join(s.Dir, chosen+"_summary.md")
	if err := s.writeExclusive(summaryPath, art.SummaryText); err != nil {
		return "", "", err
	}

	s.Logger.Info("artifacts written",
		zap.String("script", scriptPath),
		zap.String("summary", summaryPath))
	return scriptPath, summaryPath, nil
}

// scriptStem derives the healed-file stem from the source script path:
// "tests/checkout.spec.ts" becomes "checkout_healed".
func scriptStem(sourcePath string) string {
	base := filepath.Base(sourcePath)
	base = strings.TrimSuffix(base, ".spec.ts")
	base = strings.TrimSuffix(base, ".ts")
	if base == "" || base == "." {
		base = "script"
	}
	return base + "_healed"
}

// place writes content as <stem>.spec.ts, falling back to <stem>_1.spec.ts,
// <stem>_2.spec.ts and so on until an unused name is claimed. It returns the
// full path and the stem variant that won.
func (s *Store) place(stem, content string) (string, string, error) {
	for n := 0; ; n++ {
		candidate := stem
		if n > 0 {
			candidate = fmt.Sprintf("%s_%d", stem, n)
		}
		path := filepath.Join(s.Dir, candidate+".spec.ts")
		err := s.writeExclusive(path, content)
		if err == nil {
			return path, candidate, nil
		}
		var perr *PersistError
		if errors.As(err, &perr) && errors.Is(perr.Err, fs.ErrExist) {
			continue
		}
		return "", "", err
	}
}

// writeExclusive creates path with content, failing if path already exists.
// Content lands in a temp file first and is linked into place, so the final
// name either does not exist or holds the complete content.
func (s *Store) writeExclusive(path, content string) error {
	tmp, err := os.CreateTemp(s.Dir, ".artifact-*")
	if err != nil {
		return &PersistError{Path: path, Err: err}
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		return &PersistError{Path: path, Err: err}
	}
	if err := tmp.Close(); err != nil {
		return &PersistError{Path: path, Err: err}
	}

	if err := os.Link(tmpName, path); err != nil {
		return &PersistError{Path: path, Err: err}
	}
	return nil
}
