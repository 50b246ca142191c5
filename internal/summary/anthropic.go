package summary

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "claude-sonnet-4-20250514"

const systemPrompt = "Você é um assistente de PMO."

// ErrNoAPIKey is returned by NewAnthropicSummarizer without a key.
var ErrNoAPIKey = errors.New("anthropic API key is not set")

// AnthropicConfig configures an AnthropicSummarizer.
type AnthropicConfig struct {
	APIKey    string
	Model     string
	MaxTokens int64

	// Options are appended to the client options (base URL, retries).
	Options []option.RequestOption

	Logger *log.Logger
}

// AnthropicSummarizer summarizes with the Anthropic Messages API.
type AnthropicSummarizer struct {
	client    anthropic.Client
	model     anthropic.Model
	maxTokens int64
	logger    *log.Logger
}

// NewAnthropicSummarizer creates a summarizer. Requests use temperature 0.3.
func NewAnthropicSummarizer(config AnthropicConfig) (*AnthropicSummarizer, error) {
	if config.APIKey == "" {
		return nil, ErrNoAPIKey
	}
	if config.Model == "" {
		config.Model = DefaultModel
	}
	if config.MaxTokens <= 0 {
		config.MaxTokens = 1024
	}
	if config.Logger == nil {
		config.Logger = log.New(os.Stderr, "[summary] ", log.LstdFlags)
	}

	opts := append([]option.RequestOption{option.WithAPIKey(config.APIKey)}, config.Options...)
	return &AnthropicSummarizer{
		client:    anthropic.NewClient(opts...),
		model:     anthropic.Model(config.Model),
		maxTokens: config.MaxTokens,
		logger:    config.Logger,
	}, nil
}

// Summarize sends the digest to the model and parses the tagged reply.
// Digests shorter than ten characters are not sent.
func (s *AnthropicSummarizer) Summarize(ctx context.Context, req Request) (Sections, error) {
	if TooShort(req.Digest) {
		return Sections{Deliveries: NoData}, nil
	}

	msg, err := s.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       s.model,
		MaxTokens:   s.maxTokens,
		Temperature: anthropic.Float(0.3),
		System:      []anthropic.TextBlockParam{{Text: systemPrompt}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(Prompt(req))),
		},
	})
	if err != nil {
		return Sections{}, fmt.Errorf("failed to summarize: %w", err)
	}

	var reply strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			reply.WriteString(block.Text)
		}
	}
	s.logger.Printf("Summarized %d bytes of comments (%d output tokens)", len(req.Digest), msg.Usage.OutputTokens)
	return Parse(reply.String()), nil
}
