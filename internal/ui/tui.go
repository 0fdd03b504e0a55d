package ui

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// TUIRenderer draws build progress with bubbletea.
type TUIRenderer struct {
	mu      sync.Mutex
	cfg     Config
	model   *buildModel
	program *tea.Program
	done    chan struct{}
}

// NewTUIRenderer creates a TUI renderer. Callers should prefer NewRenderer,
// which falls back to plain output when the writer is not a terminal.
func NewTUIRenderer(cfg Config) *TUIRenderer {
	return &TUIRenderer{
		cfg:   cfg,
		model: newBuildModel(GetStyles(cfg.NoColor)),
		done:  make(chan struct{}),
	}
}

// Start implements Renderer.
func (r *TUIRenderer) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.program != nil {
		return nil
	}

	opts := []tea.ProgramOption{tea.WithContext(ctx), tea.WithInput(nil)}
	if f, ok := r.cfg.Output.(*os.File); ok {
		opts = append(opts, tea.WithOutput(f))
	}
	r.program = tea.NewProgram(r.model, opts...)

	go func() {
		defer close(r.done)
		_, _ = r.program.Run()
	}()
	return nil
}

// Update implements Renderer.
func (r *TUIRenderer) Update(e ProgressEvent) {
	r.send(progressMsg(e))
}

// Complete implements Renderer.
func (r *TUIRenderer) Complete(s Summary) {
	r.send(completeMsg(s))
}

func (r *TUIRenderer) send(msg tea.Msg) {
	r.mu.Lock()
	p := r.program
	r.mu.Unlock()
	if p != nil {
		p.Send(msg)
	}
}

// Stop implements Renderer. It waits briefly for the final frame.
func (r *TUIRenderer) Stop() error {
	r.mu.Lock()
	p := r.program
	r.mu.Unlock()
	if p == nil {
		return nil
	}
	select {
	case <-r.done:
	case <-time.After(500 * time.Millisecond):
		p.Quit()
		select {
		case <-r.done:
		case <-time.After(2 * time.Second):
		}
	}
	return nil
}

var _ Renderer = (*TUIRenderer)(nil)

type progressMsg ProgressEvent
type completeMsg Summary

// buildModel is the bubbletea model for a catalog build.
type buildModel struct {
	styles   Styles
	spinner  spinner.Model
	bar      progress.Model
	current  ProgressEvent
	summary  *Summary
	quitting bool
}

func newBuildModel(styles Styles) *buildModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = styles.Active
	return &buildModel{
		styles:  styles,
		spinner: s,
		bar: progress.New(
			progress.WithSolidFill(ColorAccent),
			progress.WithWidth(40),
			progress.WithoutPercentage(),
		),
	}
}

// Init implements tea.Model.
func (m *buildModel) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update implements tea.Model.
func (m *buildModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.quitting = true
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.bar.Width = max(20, min(60, msg.Width-20))
	case progressMsg:
		m.current = ProgressEvent(msg)
	case completeMsg:
		s := Summary(msg)
		m.summary = &s
		return m, tea.Quit
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View implements tea.Model.
func (m *buildModel) View() string {
	if m.summary != nil {
		return m.renderSummary()
	}
	if m.quitting {
		return "Cancelled.\n"
	}

	lines := []string{m.styles.Header.Render("shoprank build"), m.renderStages()}
	if e := m.current; e.Total > 0 {
		pct := float64(e.Current) / float64(e.Total)
		lines = append(lines, fmt.Sprintf("%s  %s", m.bar.ViewAs(pct), m.styles.Active.Render(fmt.Sprintf("%3.0f%%", pct*100))))
		lines = append(lines, m.styles.Label.Render(fmt.Sprintf("%d / %d products", e.Current, e.Total)))
	} else {
		lines = append(lines, m.spinner.View()+" "+m.current.Stage.String()+"...")
	}
	if m.current.Message != "" {
		lines = append(lines, m.styles.Dim.Render(m.current.Message))
	}
	return strings.Join(lines, "\n") + "\n"
}

func (m *buildModel) renderStages() string {
	var parts []string
	for _, st := range []Stage{StageLoad, StageFeatures, StageEmbedding, StageIndexing} {
		switch {
		case st < m.current.Stage:
			parts = append(parts, m.styles.Success.Render("● "+st.String()))
		case st == m.current.Stage:
			parts = append(parts, m.styles.Active.Render(m.spinner.View()+" "+st.String()))
		default:
			parts = append(parts, m.styles.Dim.Render("○ "+st.String()))
		}
	}
	return strings.Join(parts, m.styles.Dim.Render(" → "))
}

func (m *buildModel) renderSummary() string {
	s := m.summary
	lines := []string{
		m.styles.Success.Render("✓ Build complete"),
		"",
		fmt.Sprintf("%s %s", m.styles.Label.Render("Products:"), m.styles.Active.Render(fmt.Sprint(s.Products))),
		fmt.Sprintf("%s %s", m.styles.Label.Render("Duration:"), m.styles.Active.Render(formatDuration(s.Duration))),
	}
	if s.Embedder != "" {
		lines = append(lines, fmt.Sprintf("%s %s (%d dims), %s index",
			m.styles.Label.Render("Embedder:"), s.Embedder, s.Dimensions, s.Backend))
	}
	panel := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(ColorSuccess)).
		Padding(0, 2)
	return panel.Render(strings.Join(lines, "\n")) + "\n"
}
