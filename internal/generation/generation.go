// Package generation wraps the external generative model behind a single
// well-typed contract: prompt in, text out. The core never branches on an
// SDK's calling convention.
package generation

import (
	"context"
	"errors"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

var (
	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrGenerationFailed indicates the model was unreachable or rejected
	// the prompt.
	ErrGenerationFailed = errors.New("generation failed")
)

// Fixed decoding parameters. These are policy constants, never computed.
const (
	Temperature     = 0.7
	MaxOutputTokens = 1000
	TopK            = 40
	TopP            = 0.95
)

// Generator produces text from a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Config holds configuration for the LLM client.
type Config struct {
	// BaseURL is an OpenAI-compatible chat completions endpoint.
	BaseURL string

	// Model is the generative model name.
	Model string

	// APIKey authenticates against the endpoint.
	APIKey string
}

// Validate validates the configuration.
func (c Config) Validate() error {
	if c.Model == "" {
		return fmt.Errorf("%w: model required", ErrInvalidConfig)
	}
	return nil
}

// Client generates answers via a langchaingo LLM binding.
type Client struct {
	llm   llms.Model
	model string
}

// NewClient creates a generation client for an OpenAI-compatible endpoint.
func NewClient(cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	opts := []openai.Option{openai.WithModel(cfg.Model)}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	if cfg.APIKey != "" {
		opts = append(opts, openai.WithToken(cfg.APIKey))
	}

	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("creating LLM client: %w", err)
	}

	return &Client{llm: llm, model: cfg.Model}, nil
}

// Generate runs one completion with the fixed decoding parameters. There are
// no retries; a terminal failure propagates to the caller.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	answer, err := llms.GenerateFromSinglePrompt(ctx, c.llm, prompt,
		llms.WithTemperature(Temperature),
		llms.WithMaxTokens(MaxOutputTokens),
		llms.WithTopK(TopK),
		llms.WithTopP(TopP),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}
	return answer, nil
}
