// Package ui renders catalog build progress: a bubbletea view on interactive
// terminals, plain lines everywhere else.
package ui

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"
)

// Stage is a catalog build stage.
type Stage int

const (
	StageLoad Stage = iota
	StageFeatures
	StageEmbedding
	StageIndexing
	StageComplete
)

// String returns the stage name.
func (s Stage) String() string {
	switch s {
	case StageLoad:
		return "Load"
	case StageFeatures:
		return "Features"
	case StageEmbedding:
		return "Embed"
	case StageIndexing:
		return "Index"
	case StageComplete:
		return "Complete"
	default:
		return "Unknown"
	}
}

// Tag is the short label used in plain output.
func (s Stage) Tag() string {
	switch s {
	case StageLoad:
		return "LOAD"
	case StageFeatures:
		return "FEAT"
	case StageEmbedding:
		return "EMBED"
	case StageIndexing:
		return "INDEX"
	case StageComplete:
		return "DONE"
	default:
		return "???"
	}
}

// ProgressEvent is a progress update from the builder.
type ProgressEvent struct {
	Stage   Stage
	Current int
	Total   int
	Message string
}

// Summary describes a finished build.
type Summary struct {
	Products   int
	Dimensions int
	Embedder   string
	Backend    string
	Duration   time.Duration
	Timings    map[Stage]time.Duration
}

// Renderer displays build progress.
type Renderer interface {
	Start(ctx context.Context) error
	Update(event ProgressEvent)
	Complete(summary Summary)
	Stop() error
}

// Config configures renderer selection.
type Config struct {
	Output     io.Writer
	ForcePlain bool
	NoColor    bool
}

// NewRenderer returns a TUI renderer for interactive terminals and a plain
// renderer for pipes, CI, or when plain output is forced.
func NewRenderer(cfg Config) Renderer {
	if DetectNoColor() {
		cfg.NoColor = true
	}
	if cfg.ForcePlain || !IsTTY(cfg.Output) || DetectCI() {
		return NewPlainRenderer(cfg)
	}
	return NewTUIRenderer(cfg)
}

// IsTTY reports whether w is a terminal.
func IsTTY(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok || f == nil {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// DetectNoColor reports whether NO_COLOR is set.
func DetectNoColor() bool {
	_, ok := os.LookupEnv("NO_COLOR")
	return ok
}

// DetectCI reports whether a common CI variable is set.
func DetectCI() bool {
	for _, v := range []string{"CI", "GITHUB_ACTIONS", "GITLAB_CI", "JENKINS_URL", "BUILDKITE"} {
		if _, ok := os.LookupEnv(v); ok {
			return true
		}
	}
	return false
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}
	return d.Round(100 * time.Millisecond).String()
}
