package explain

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	shoperrors "github.com/shoprank/shoprank/internal/errors"
)

// Default completion service settings.
const (
	DefaultLLMURL      = "https://api.groq.com/openai/v1/chat/completions"
	DefaultLLMModel    = "llama-3.1-8b-instant"
	DefaultMaxTokens   = 60
	DefaultTemperature = 0.7
	DefaultLLMTimeout  = 5 * time.Second
)

const systemPrompt = "You are a helpful shopping assistant that explains product rankings concisely."

const userPromptTemplate = `You are a shopping assistant explaining product rankings.

User searched for: "%s"
Product ranked #%d:
- Title: %s
- Category: %s > %s
- Brand: %s
- Price: $%.2f
- Rating: %s★

Ranking scores:
- Query match: %.0f%%
- Price competitiveness: %.0f%%
- Popularity: %.0f%%

Write a single, concise sentence (max 20 words) explaining why this product is ranked #%d for this search.
Focus on the most relevant factors. Be specific and helpful.
Do not use phrases like "This product" - start directly with the reason.`

// ErrMissingCredential is returned by Generate when no API key is configured.
var ErrMissingCredential = errors.New("llm api key not configured")

// LLMConfig configures the chat completion client.
type LLMConfig struct {
	APIKey      string
	URL         string
	Model       string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
}

// LLMExplainer asks an OpenAI-compatible chat completion endpoint for the
// short sentence. Highlights and detailed factors come from the rule table so
// the output shape matches the template strategy.
type LLMExplainer struct {
	client   *http.Client
	config   LLMConfig
	template TemplateExplainer
}

var _ Generator = (*LLMExplainer)(nil)

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// NewLLMExplainer creates the client, applying defaults for unset fields.
func NewLLMExplainer(config LLMConfig) *LLMExplainer {
	if config.URL == "" {
		config.URL = DefaultLLMURL
	}
	if config.Model == "" {
		config.Model = DefaultLLMModel
	}
	if config.MaxTokens == 0 {
		config.MaxTokens = DefaultMaxTokens
	}
	if config.Temperature == 0 {
		config.Temperature = DefaultTemperature
	}
	if config.Timeout == 0 {
		config.Timeout = DefaultLLMTimeout
	}
	return &LLMExplainer{
		client: &http.Client{Timeout: config.Timeout},
		config: config,
	}
}

// Enabled reports whether a credential is configured.
func (l *LLMExplainer) Enabled() bool {
	return l.config.APIKey != ""
}

// ModelName returns the completion model.
func (l *LLMExplainer) ModelName() string {
	return l.config.Model
}

// Generate requests the short sentence. Any failure is returned as Err.
func (l *LLMExplainer) Generate(ctx context.Context, in Input) Result {
	if !l.Enabled() {
		return Err(ErrMissingCredential)
	}

	ctx, cancel := context.WithTimeout(ctx, l.config.Timeout)
	defer cancel()

	short, err := l.complete(ctx, buildPrompt(in))
	if err != nil {
		code := shoperrors.ErrCodeLLMUnavailable
		if errors.Is(err, context.DeadlineExceeded) {
			code = shoperrors.ErrCodeTimeout
		}
		return Err(shoperrors.New(code, "explanation completion failed", err))
	}

	exp := l.template.Explain(ctx, in)
	exp.Short = short
	exp.AIGenerated = true
	return Ok(exp)
}

func buildPrompt(in Input) string {
	p, b := in.Product, in.Breakdown
	return fmt.Sprintf(userPromptTemplate,
		in.Query,
		in.Rank,
		p.Title,
		p.Category, p.Subcategory,
		p.Brand,
		p.Price,
		formatRating(p.Rating),
		b.TextSimilarity*100,
		b.PriceScore*100,
		b.PopularityScore*100,
		in.Rank,
	)
}

func (l *LLMExplainer) complete(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model: l.config.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
		MaxTokens:   l.config.MaxTokens,
		Temperature: l.config.Temperature,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.config.URL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+l.config.APIKey)

	resp, err := l.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	var chat chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chat); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(chat.Choices) == 0 {
		return "", errors.New("response has no choices")
	}
	content := strings.TrimSpace(chat.Choices[0].Message.Content)
	if content == "" {
		return "", errors.New("response content is empty")
	}
	return content, nil
}
