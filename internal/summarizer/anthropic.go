package summarizer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const DefaultAnthropicModel = "claude-haiku-4-5-20251001"

// AnthropicModel summarizes with the Messages API.
type AnthropicModel struct {
	client anthropic.Client
	model  string
}

var _ Model = (*AnthropicModel)(nil)

func (m *AnthropicModel) Name() string { return "anthropic:" + m.model }

func (m *AnthropicModel) Device() Device { return DeviceAccelerated }

func (m *AnthropicModel) Summarize(ctx context.Context, req Request) (string, error) {
	msg, err := m.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(m.model),
		MaxTokens: maxTokens(req),
		System:    []anthropic.TextBlockParam{{Text: systemPrompt}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt(req))),
		},
		Temperature: anthropic.Float(0),
	})
	if err != nil {
		return "", fmt.Errorf("messages: %w", err)
	}

	var b strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	if b.Len() == 0 {
		return "", errors.New("messages returned no text")
	}
	return b.String(), nil
}

// AnthropicLoader builds an AnthropicModel from an API key.
type AnthropicLoader struct {
	APIKey   string
	Model    string
	Endpoint string
}

var _ Loader = AnthropicLoader{}

func (l AnthropicLoader) Name() string { return "anthropic" }

// Load checks the model id against the Models API before handing it out.
func (l AnthropicLoader) Load(ctx context.Context) (Model, error) {
	apiKey := strings.TrimSpace(l.APIKey)
	if apiKey == "" {
		return nil, errors.New("anthropic api key is empty")
	}
	modelID := strings.TrimSpace(l.Model)
	if modelID == "" {
		modelID = DefaultAnthropicModel
	}

	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if endpoint := strings.TrimSpace(l.Endpoint); endpoint != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimRight(endpoint, "/")))
	}

	client := anthropic.NewClient(opts...)
	pctx, cancel := context.WithTimeout(ctx, loadCheckTimeout)
	defer cancel()
	if _, err := client.Models.Get(pctx, modelID, anthropic.ModelGetParams{}); err != nil {
		return nil, fmt.Errorf("anthropic model %s: %w", modelID, err)
	}

	return &AnthropicModel{client: client, model: modelID}, nil
}
