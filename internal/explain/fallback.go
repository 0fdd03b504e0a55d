package explain

import (
	"context"
	"log/slog"
	"time"

	shoperrors "github.com/shoprank/shoprank/internal/errors"
)

// FallbackExplainer runs a Generator and maps every Err to the template output.
// A circuit breaker stops calling a dead completion service until it recovers.
type FallbackExplainer struct {
	primary    Generator
	template   TemplateExplainer
	breaker    *shoperrors.CircuitBreaker
	onDegraded func(err error)
}

var _ Explainer = (*FallbackExplainer)(nil)

// FallbackOption configures a FallbackExplainer.
type FallbackOption func(*FallbackExplainer)

// WithBreaker replaces the default breaker.
func WithBreaker(cb *shoperrors.CircuitBreaker) FallbackOption {
	return func(f *FallbackExplainer) {
		f.breaker = cb
	}
}

// WithDegradedHook registers a callback run each time an explanation falls
// back to the template. Used for metrics.
func WithDegradedHook(fn func(err error)) FallbackOption {
	return func(f *FallbackExplainer) {
		f.onDegraded = fn
	}
}

// NewFallbackExplainer wraps primary. A nil primary yields template-only output.
func NewFallbackExplainer(primary Generator, opts ...FallbackOption) *FallbackExplainer {
	f := &FallbackExplainer{
		primary: primary,
		breaker: shoperrors.NewCircuitBreaker("llm-explainer",
			shoperrors.WithMaxFailures(5),
			shoperrors.WithResetTimeout(30*time.Second)),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Explain returns the primary strategy's explanation, or the template output
// with AIGenerated false when the primary fails.
func (f *FallbackExplainer) Explain(ctx context.Context, in Input) Explanation {
	if f.primary == nil {
		return f.template.Explain(ctx, in)
	}

	exp, err := shoperrors.CircuitCall(f.breaker, func() (Explanation, error) {
		return f.primary.Generate(ctx, in).Unwrap()
	})
	if err == nil {
		return exp
	}

	slog.Warn("explanation_degraded",
		slog.String("code", shoperrors.ErrCodeExplanationDegraded),
		slog.String("product_id", in.Product.ID),
		slog.Int("rank", in.Rank),
		slog.String("breaker", f.breaker.State().String()),
		slog.String("reason", err.Error()))
	if f.onDegraded != nil {
		f.onDegraded(err)
	}

	fallback := f.template.Explain(ctx, in)
	fallback.AIGenerated = false
	return fallback
}

// New picks the strategy: the LLM with template fallback when a credential is
// present, the template alone otherwise.
func New(llm *LLMExplainer, opts ...FallbackOption) Explainer {
	if llm == nil || !llm.Enabled() {
		slog.Info("llm_explainer_disabled", slog.String("reason", "no api key, using template explanations"))
		return TemplateExplainer{}
	}
	return NewFallbackExplainer(llm, opts...)
}
