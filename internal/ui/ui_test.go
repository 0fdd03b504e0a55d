package ui

import (
	"bytes"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStage_Labels(t *testing.T) {
	assert.Equal(t, "Embed", StageEmbedding.String())
	assert.Equal(t, "INDEX", StageIndexing.Tag())
	assert.Equal(t, "Unknown", Stage(99).String())
	assert.Equal(t, "???", Stage(99).Tag())
}

func TestNewRenderer_NonTTYIsPlain(t *testing.T) {
	// Given: a buffer, which is never a terminal
	r := NewRenderer(Config{Output: &bytes.Buffer{}})

	// Then: plain rendering is chosen
	_, ok := r.(*PlainRenderer)
	assert.True(t, ok)
	assert.False(t, IsTTY(&bytes.Buffer{}))
	assert.False(t, IsTTY(nil))
}

func TestDetectNoColor(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	assert.True(t, DetectNoColor())
}

func TestPlainRenderer(t *testing.T) {
	var buf bytes.Buffer
	r := NewPlainRenderer(Config{Output: &buf})
	require.NoError(t, r.Start(t.Context()))

	r.Update(ProgressEvent{Stage: StageLoad, Message: "reading products_clean.json"})
	r.Update(ProgressEvent{Stage: StageEmbedding, Current: 32, Total: 100})
	r.Update(ProgressEvent{Stage: StageIndexing})
	r.Complete(Summary{
		Products:   100,
		Dimensions: 256,
		Embedder:   "static",
		Backend:    "hnsw",
		Duration:   1500 * time.Millisecond,
		Timings:    map[Stage]time.Duration{StageEmbedding: 250 * time.Millisecond},
	})
	require.NoError(t, r.Stop())

	out := buf.String()
	assert.Contains(t, out, "[LOAD] reading products_clean.json\n")
	assert.Contains(t, out, "[EMBED] 32/100\n")
	assert.NotContains(t, out, "[INDEX]")
	assert.Contains(t, out, "Complete: 100 products indexed in 1.5s")
	assert.Contains(t, out, "Embed:    250ms")
	assert.Contains(t, out, "Embedder: static (256 dims), index: hnsw")
}

func TestBuildModel_Lifecycle(t *testing.T) {
	// Given: a model without color
	m := newBuildModel(NoColorStyles())

	// When: progress arrives
	_, cmd := m.Update(progressMsg{Stage: StageEmbedding, Current: 50, Total: 100})
	assert.Nil(t, cmd)
	view := m.View()

	// Then: completed stages are marked and the count is shown
	assert.Contains(t, view, "● Load")
	assert.Contains(t, view, "○ Index")
	assert.Contains(t, view, "50 / 100 products")

	// When: the build completes
	_, cmd = m.Update(completeMsg{Products: 100, Duration: time.Second})

	// Then: the program quits and shows the summary
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
	assert.Contains(t, m.View(), "Build complete")
}

func TestBuildModel_CtrlC(t *testing.T) {
	m := newBuildModel(NoColorStyles())

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})

	require.NotNil(t, cmd)
	assert.Equal(t, "Cancelled.\n", m.View())
}
