// Package drafting holds the generative collaborators that sit around the
// deterministic engine: prose polishing of disclosure text and field
// extraction from free-text disclosures.
package drafting

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"

	"github.com/joelkehle/disclosure-drafter/internal/config"
)

const maxAttempts = 3

var ErrModelDisabled = errors.New("generative drafting is disabled")

type failureClass int

const (
	failureTimeout failureClass = iota + 1
	failureRateLimit
	failureServer
	failureClient
)

// ModelConfig is the explicit configuration handed to the model caller. It
// replaces any process-global provider state.
type ModelConfig struct {
	Model       string
	APIKey      string
	BaseURL     string
	MaxTokens   int
	Temperature float64
}

// ModelConfigFrom resolves the API key named by cfg.APIKeyEnv.
func ModelConfigFrom(cfg config.ModelConfig) (ModelConfig, error) {
	if !cfg.Enabled {
		return ModelConfig{}, ErrModelDisabled
	}
	key := strings.TrimSpace(os.Getenv(cfg.APIKeyEnv))
	if key == "" {
		return ModelConfig{}, fmt.Errorf("%s not configured", cfg.APIKeyEnv)
	}
	return ModelConfig{
		Model:       cfg.Name,
		APIKey:      key,
		BaseURL:     cfg.BaseURL,
		MaxTokens:   cfg.MaxTokens,
		Temperature: cfg.Temperature,
	}, nil
}

type LLMCaller interface {
	Generate(ctx context.Context, system, prompt string) (string, error)
}

type AnthropicMessager interface {
	New(ctx context.Context, params anthropic.MessageNewParams, opts ...option.RequestOption) (*anthropic.Message, error)
}

type AnthropicCaller struct {
	messages AnthropicMessager
	cfg      ModelConfig
}

func NewAnthropicCaller(cfg ModelConfig) *AnthropicCaller {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	c := anthropic.NewClient(opts...)
	return &AnthropicCaller{messages: &c.Messages, cfg: cfg}
}

func newAnthropicCallerWith(messages AnthropicMessager, cfg ModelConfig) *AnthropicCaller {
	return &AnthropicCaller{messages: messages, cfg: cfg}
}

func (a *AnthropicCaller) Generate(ctx context.Context, system, prompt string) (string, error) {
	model := anthropic.Model(a.cfg.Model)
	if a.cfg.Model == "" {
		model = anthropic.ModelClaudeSonnet4_20250514
	}
	maxTokens := int64(a.cfg.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	resp, err := a.messages.New(ctx, anthropic.MessageNewParams{
		Model:       model,
		MaxTokens:   maxTokens,
		System:      []anthropic.TextBlockParam{{Text: system}},
		Messages:    []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock(prompt))},
		Temperature: anthropic.Float(a.cfg.Temperature),
	})
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	for _, b := range resp.Content {
		if b.Type == "text" {
			sb.WriteString(b.Text)
		}
	}
	return sb.String(), nil
}

// retryingCaller retries transport failures that are likely transient.
type retryingCaller struct {
	caller LLMCaller
	logger *zap.Logger
	after  func(time.Duration) <-chan time.Time
}

func newRetryingCaller(caller LLMCaller, logger *zap.Logger) *retryingCaller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &retryingCaller{caller: caller, logger: logger, after: time.After}
}

func (r *retryingCaller) Generate(ctx context.Context, system, prompt string) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		out, err := r.caller.Generate(ctx, system, prompt)
		if err == nil {
			return out, nil
		}
		lastErr = err
		class := classifyTransportError(err)
		if class == failureClient || attempt == maxAttempts || ctx.Err() != nil {
			break
		}
		r.logger.Warn("model call failed, retrying",
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			return "", fmt.Errorf("model call abandoned after %v: %w", lastErr, ctx.Err())
		case <-r.after(backoffDelay(attempt)):
		}
	}
	return "", fmt.Errorf("model call failed: %w", lastErr)
}

func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		parts := strings.SplitN(s, "\n", 2)
		if len(parts) == 2 {
			s = parts[1]
		}
		s = strings.TrimPrefix(s, "json")
		s = strings.TrimSpace(strings.TrimSuffix(s, "```"))
	}
	return s
}

func classifyTransportError(err error) failureClass {
	msg := strings.ToLower(err.Error())
	if errors.Is(err, context.DeadlineExceeded) {
		return failureTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return failureTimeout
	}
	switch {
	case strings.Contains(msg, "429"):
		return failureRateLimit
	case strings.Contains(msg, "status code: 5") || strings.Contains(msg, "server error"):
		return failureServer
	case strings.Contains(msg, "status code: 4"):
		return failureClient
	default:
		return failureServer
	}
}

func backoffDelay(attempt int) time.Duration {
	if attempt <= 1 {
		return 1 * time.Second
	}
	return 2 * time.Second
}
