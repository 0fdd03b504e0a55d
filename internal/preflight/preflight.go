// Package preflight diagnoses whether shoprank can serve from a data
// directory: filesystem state, catalog artifacts and the optional network
// services named by the configuration.
package preflight

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/shoprank/shoprank/internal/catalog"
	"github.com/shoprank/shoprank/internal/config"
	"github.com/shoprank/shoprank/internal/embed"
	"github.com/shoprank/shoprank/internal/store"
)

// MinDiskSpaceBytes is the free space required in the data directory.
const MinDiskSpaceBytes = 100 * 1024 * 1024

// Status is the outcome of one check.
type Status int

const (
	StatusPass Status = iota
	StatusWarn
	StatusFail
)

func (s Status) String() string {
	switch s {
	case StatusPass:
		return "PASS"
	case StatusWarn:
		return "WARN"
	case StatusFail:
		return "FAIL"
	default:
		return "UNKNOWN"
	}
}

// MarshalJSON encodes the status by name.
func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// Result is the outcome of a single check.
type Result struct {
	Name     string `json:"name"`
	Status   Status `json:"status"`
	Message  string `json:"message"`
	Details  string `json:"details,omitempty"`
	Required bool   `json:"required"`
}

// IsCritical reports a required check that failed.
func (r Result) IsCritical() bool {
	return r.Required && r.Status == StatusFail
}

// Checker runs the diagnostics.
type Checker struct {
	out     io.Writer
	verbose bool
	timeout time.Duration

	// Probes are swappable for tests.
	ollamaUp func(ctx context.Context, cfg embed.OllamaConfig) bool
	qdrantUp func(ctx context.Context, cfg store.QdrantConfig) (string, error)
	redisUp  func(ctx context.Context, addr string) error
}

// Option configures a Checker.
type Option func(*Checker)

// WithOutput sets where PrintResults writes.
func WithOutput(w io.Writer) Option {
	return func(c *Checker) { c.out = w }
}

// WithVerbose prints details under each result.
func WithVerbose(v bool) Option {
	return func(c *Checker) { c.verbose = v }
}

// WithTimeout bounds each network probe.
func WithTimeout(d time.Duration) Option {
	return func(c *Checker) { c.timeout = d }
}

// New creates a Checker.
func New(opts ...Option) *Checker {
	c := &Checker{
		out:      os.Stdout,
		timeout:  2 * time.Second,
		ollamaUp: probeOllama,
		qdrantUp: probeQdrant,
		redisUp:  probeRedis,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RunAll runs every check that applies to cfg.
func (c *Checker) RunAll(ctx context.Context, cfg *config.Config) []Result {
	results := []Result{
		c.CheckWritePermissions(cfg.Data.Dir),
		c.CheckDiskSpace(cfg.Data.Dir),
		c.CheckArtifacts(cfg.Data.Dir, cfg.Index.Backend),
		c.CheckEmbedder(ctx, cfg.Embeddings),
	}
	if cfg.Index.Backend == store.BackendQdrant {
		results = append(results, c.CheckQdrant(ctx, cfg.Index.Qdrant))
	}
	if cfg.Embeddings.RedisAddr != "" {
		results = append(results, c.CheckRedis(ctx, cfg.Embeddings.RedisAddr))
	}
	return append(results, c.CheckExplainer(cfg.Explain))
}

// CheckWritePermissions verifies build artifacts can be written to dir.
func (c *Checker) CheckWritePermissions(dir string) Result {
	r := Result{Name: "write_permissions", Required: true}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		r.Status, r.Message = StatusFail, fmt.Sprintf("cannot create %s: %v", dir, err)
		return r
	}
	f, err := os.CreateTemp(dir, ".shoprank-preflight-*")
	if err != nil {
		r.Status, r.Message = StatusFail, fmt.Sprintf("permission denied: %v", err)
		return r
	}
	_ = f.Close()
	_ = os.Remove(f.Name())
	r.Status, r.Message = StatusPass, "OK"
	return r
}

// CheckDiskSpace verifies the free space under dir.
func (c *Checker) CheckDiskSpace(dir string) Result {
	r := Result{Name: "disk_space", Required: true}
	var stat syscall.Statfs_t
	if err := syscall.Statfs(existingParent(dir), &stat); err != nil {
		r.Status, r.Message = StatusFail, fmt.Sprintf("failed to check disk space: %v", err)
		return r
	}
	free := stat.Bavail * uint64(stat.Bsize)
	r.Message = fmt.Sprintf("%s free (minimum: 100 MB)", formatBytes(free))
	if free < MinDiskSpaceBytes {
		r.Status = StatusFail
		return r
	}
	r.Status = StatusPass
	return r
}

// CheckArtifacts verifies every file the server loads is present.
func (c *Checker) CheckArtifacts(dir, backend string) Result {
	r := Result{Name: "catalog_artifacts", Required: true}
	paths := catalog.DefaultPaths(dir)
	required := []string{paths.Products, paths.Features, paths.Mappings, paths.Embeddings}
	if backend == store.BackendHNSW || backend == "" {
		required = append(required, paths.Index)
	}

	var missing []string
	for _, p := range required {
		if _, err := os.Stat(p); err != nil {
			missing = append(missing, filepath.Base(p))
		}
	}
	if len(missing) > 0 {
		r.Status = StatusFail
		r.Message = "missing " + strings.Join(missing, ", ")
		r.Details = "Run 'shoprank generate' and 'shoprank build'"
		return r
	}
	r.Status, r.Message = StatusPass, fmt.Sprintf("%d artifacts in %s", len(required), dir)
	return r
}

// CheckEmbedder probes Ollama when it is the configured provider.
func (c *Checker) CheckEmbedder(ctx context.Context, cfg config.EmbeddingsConfig) Result {
	r := Result{Name: "embedder", Required: true}
	if !strings.EqualFold(cfg.Provider, embed.ProviderOllama) {
		r.Status, r.Message = StatusPass, "static embedder (offline)"
		return r
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	if !c.ollamaUp(ctx, embed.OllamaConfig{Host: cfg.OllamaHost, Model: cfg.Model}) {
		r.Status = StatusFail
		r.Message = "Ollama not reachable at " + cfg.OllamaHost
		r.Details = fmt.Sprintf("Start Ollama and run 'ollama pull %s', or set embeddings.provider: static", cfg.Model)
		return r
	}
	r.Status, r.Message = StatusPass, fmt.Sprintf("Ollama %s (%s)", cfg.OllamaHost, cfg.Model)
	return r
}

// CheckQdrant probes the Qdrant server.
func (c *Checker) CheckQdrant(ctx context.Context, cfg config.QdrantConfig) Result {
	r := Result{Name: "qdrant", Required: true}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	version, err := c.qdrantUp(ctx, store.QdrantConfig{
		Host:       cfg.Host,
		Port:       cfg.Port,
		APIKey:     cfg.APIKey,
		UseTLS:     cfg.UseTLS,
		Collection: cfg.Collection,
	})
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	if err != nil {
		r.Status, r.Message, r.Details = StatusFail, "Qdrant not reachable at "+addr, err.Error()
		return r
	}
	r.Status, r.Message = StatusPass, fmt.Sprintf("Qdrant %s at %s", version, addr)
	return r
}

// CheckRedis probes the shared embedding cache. Search works without it.
func (c *Checker) CheckRedis(ctx context.Context, addr string) Result {
	r := Result{Name: "redis_cache"}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	if err := c.redisUp(ctx, addr); err != nil {
		r.Status, r.Message, r.Details = StatusWarn, "Redis not reachable; using in-process cache only", err.Error()
		return r
	}
	r.Status, r.Message = StatusPass, "Redis "+addr
	return r
}

// CheckExplainer reports which explanation strategy will run.
func (c *Checker) CheckExplainer(cfg config.ExplainConfig) Result {
	r := Result{Name: "explanations"}
	switch {
	case cfg.Strategy == "template":
		r.Status, r.Message = StatusPass, "template explanations"
	case cfg.APIKey == "":
		r.Status, r.Message = StatusWarn, "GROQ_API_KEY not set; falling back to template explanations"
	default:
		r.Status, r.Message = StatusPass, "LLM explanations via "+cfg.Model
	}
	return r
}

// HasCriticalFailures reports whether any required check failed.
func HasCriticalFailures(results []Result) bool {
	for _, r := range results {
		if r.IsCritical() {
			return true
		}
	}
	return false
}

// SummaryStatus is "failed", "ready_with_warnings" or "ready".
func SummaryStatus(results []Result) string {
	if HasCriticalFailures(results) {
		return "failed"
	}
	for _, r := range results {
		if r.Status != StatusPass {
			return "ready_with_warnings"
		}
	}
	return "ready"
}

// PrintResults writes a human-readable report.
func (c *Checker) PrintResults(results []Result) {
	_, _ = fmt.Fprintln(c.out, "shoprank doctor")
	_, _ = fmt.Fprintln(c.out, "===============")
	_, _ = fmt.Fprintln(c.out)
	for _, r := range results {
		_, _ = fmt.Fprintf(c.out, "[%s] %s: %s\n", r.Status, r.Name, r.Message)
		if r.Details != "" && (c.verbose || r.Status != StatusPass) {
			_, _ = fmt.Fprintf(c.out, "       %s\n", r.Details)
		}
	}
	_, _ = fmt.Fprintln(c.out)
	_, _ = fmt.Fprintf(c.out, "Status: %s\n", strings.ToUpper(SummaryStatus(results)))
}

func probeOllama(ctx context.Context, cfg embed.OllamaConfig) bool {
	e := embed.NewOllamaEmbedder(cfg)
	defer func() { _ = e.Close() }()
	return e.Available(ctx)
}

func probeQdrant(ctx context.Context, cfg store.QdrantConfig) (string, error) {
	q, err := store.NewQdrantIndex(cfg)
	if err != nil {
		return "", err
	}
	defer func() { _ = q.Close() }()
	return q.Health(ctx)
}

func probeRedis(ctx context.Context, addr string) error {
	rc, err := embed.NewRedisCache(ctx, embed.RedisConfig{Addr: addr})
	if err != nil {
		return err
	}
	return rc.Close()
}

// existingParent walks up from dir to the nearest directory that exists.
func existingParent(dir string) string {
	for {
		if _, err := os.Stat(dir); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return dir
		}
		dir = parent
	}
}

func formatBytes(b uint64) string {
	const (
		kb = 1024
		mb = 1024 * kb
		gb = 1024 * mb
	)
	switch {
	case b >= gb:
		return fmt.Sprintf("%.1f GB", float64(b)/gb)
	case b >= mb:
		return fmt.Sprintf("%.1f MB", float64(b)/mb)
	case b >= kb:
		return fmt.Sprintf("%.1f KB", float64(b)/kb)
	default:
		return fmt.Sprintf("%d bytes", b)
	}
}
