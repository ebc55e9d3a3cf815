package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// Request is one JSON generation call.
type Request struct {
	Tier   ModelTier
	System string
	Prompt string
}

// Client talks to an LLM provider.
type Client interface {
	// GenerateJSON returns the model's raw answer to a JSON-only request.
	GenerateJSON(ctx context.Context, req Request) (string, error)
	// Model reports the model name serving tier.
	Model(tier ModelTier) string
	Close() error
}

// NewClient builds the Client for config.Provider. A nil config uses
// DefaultConfig.
func NewClient(ctx context.Context, config *Config, apiKey string) (Client, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Provider != "" && config.Provider != ProviderGemini {
		return nil, fmt.Errorf("unsupported LLM provider %q", config.Provider)
	}
	if apiKey == "" {
		return nil, errors.New("API key is required")
	}

	gc, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &geminiClient{genai: gc, config: config}, nil
}

type geminiClient struct {
	genai  *genai.Client
	config *Config
}

func (c *geminiClient) Model(tier ModelTier) string {
	return c.config.Model(tier)
}

func (c *geminiClient) GenerateJSON(ctx context.Context, req Request) (string, error) {
	name := c.config.Model(req.Tier)
	if name == "" {
		return "", fmt.Errorf("no model configured for tier %s", req.Tier)
	}

	model := c.genai.GenerativeModel(name)
	model.SetTemperature(c.config.temperature())
	model.ResponseMIMEType = "application/json"
	if system := strings.TrimSpace(req.System); system != "" {
		model.SystemInstruction = genai.NewUserContent(genai.Text(system))
	}

	resp, err := model.GenerateContent(ctx, genai.Text(req.Prompt))
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}
	return responseText(resp)
}

func (c *geminiClient) Close() error {
	return c.genai.Close()
}

// responseText concatenates the text parts of the first candidate.
func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", errors.New("no candidates in response")
	}
	content := resp.Candidates[0].Content
	if content == nil {
		return "", errors.New("no content in response")
	}

	var b strings.Builder
	for _, part := range content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	if b.Len() == 0 {
		return "", errors.New("no text parts in response")
	}
	return b.String(), nil
}
