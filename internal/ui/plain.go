package ui

import (
	"context"
	"fmt"
	"io"
	"sync"
)

// PlainRenderer writes one line per progress event.
type PlainRenderer struct {
	mu  sync.Mutex
	out io.Writer
}

// NewPlainRenderer creates a plain text renderer.
func NewPlainRenderer(cfg Config) *PlainRenderer {
	return &PlainRenderer{out: cfg.Output}
}

// Start implements Renderer.
func (r *PlainRenderer) Start(context.Context) error { return nil }

// Update implements Renderer.
func (r *PlainRenderer) Update(e ProgressEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch {
	case e.Total > 0 && e.Message != "":
		_, _ = fmt.Fprintf(r.out, "[%s] %d/%d - %s\n", e.Stage.Tag(), e.Current, e.Total, e.Message)
	case e.Total > 0:
		_, _ = fmt.Fprintf(r.out, "[%s] %d/%d\n", e.Stage.Tag(), e.Current, e.Total)
	case e.Message != "":
		_, _ = fmt.Fprintf(r.out, "[%s] %s\n", e.Stage.Tag(), e.Message)
	}
}

// Complete implements Renderer.
func (r *PlainRenderer) Complete(s Summary) {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, _ = fmt.Fprintf(r.out, "Complete: %d products indexed in %s\n", s.Products, formatDuration(s.Duration))
	for _, st := range []Stage{StageLoad, StageFeatures, StageEmbedding, StageIndexing} {
		if d, ok := s.Timings[st]; ok {
			_, _ = fmt.Fprintf(r.out, "  %-9s %s\n", st.String()+":", formatDuration(d))
		}
	}
	if s.Embedder != "" {
		_, _ = fmt.Fprintf(r.out, "Embedder: %s (%d dims), index: %s\n", s.Embedder, s.Dimensions, s.Backend)
	}
}

// Stop implements Renderer.
func (r *PlainRenderer) Stop() error { return nil }

var _ Renderer = (*PlainRenderer)(nil)
