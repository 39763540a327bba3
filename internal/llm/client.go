package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/flitsinc/go-llms/anthropic"
	"github.com/flitsinc/go-llms/content"
	"github.com/flitsinc/go-llms/google"
	"github.com/flitsinc/go-llms/llms"
	"github.com/flitsinc/go-llms/openai"
)

type Config struct {
	Provider string
	Model    string
	// SmallModel serves SizeSmall completions; falls back to Model when empty.
	SmallModel string
	APIKey     string
	Timeout    time.Duration
}

// Client satisfies Completer on top of a go-llms provider.
type Client struct {
	config Config
}

func NewClient(cfg Config) (*Client, error) {
	// Fail fast on broken config rather than on the first turn.
	if _, err := newLLM(cfg, cfg.Model); err != nil {
		return nil, err
	}
	return &Client{config: cfg}, nil
}

func (c *Client) Complete(ctx context.Context, prompt string, size Size) (string, error) {
	model := c.config.Model
	if size == SizeSmall && strings.TrimSpace(c.config.SmallModel) != "" {
		model = c.config.SmallModel
	}
	llm, err := newLLM(c.config, model)
	if err != nil {
		return "", err
	}

	if c.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.Timeout)
		defer cancel()
	}

	updates := llm.ChatUsingMessages(ctx, []llms.Message{
		{Role: "user", Content: content.FromText(prompt)},
	})

	var out strings.Builder
	for update := range updates {
		if textUpdate, ok := update.(llms.TextUpdate); ok {
			out.WriteString(textUpdate.Text)
		}
	}
	if err := llm.Err(); err != nil {
		return "", fmt.Errorf("llm completion: %w", err)
	}
	return out.String(), nil
}

func newLLM(cfg Config, model string) (*llms.LLM, error) {
	if cfg.Provider == "" {
		return nil, fmt.Errorf("llm provider is required")
	}
	if model == "" {
		return nil, fmt.Errorf("llm model is required")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("llm api key is required")
	}

	var provider llms.Provider
	switch cfg.Provider {
	case "openai-responses":
		provider = openai.NewResponsesAPI(cfg.APIKey, model)
	case "openai-chat":
		provider = openai.NewChatCompletionsAPI(cfg.APIKey, model)
	case "anthropic":
		provider = anthropic.New(cfg.APIKey, model)
	case "google":
		provider = google.New(model).WithGeminiAPI(cfg.APIKey)
	default:
		return nil, fmt.Errorf("unsupported provider: %s", cfg.Provider)
	}
	return llms.New(provider), nil
}
