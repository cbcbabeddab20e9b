package summarizer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
)

const DefaultOpenAIModel = "gpt-4o-mini"

// OpenAIModel summarizes with a chat completion.
type OpenAIModel struct {
	client openai.Client
	model  string
}

var _ Model = (*OpenAIModel)(nil)

func (m *OpenAIModel) Name() string { return "openai:" + m.model }

func (m *OpenAIModel) Device() Device { return DeviceAccelerated }

func (m *OpenAIModel) Summarize(ctx context.Context, req Request) (string, error) {
	resp, err := m.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(m.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userPrompt(req)),
		},
		MaxCompletionTokens: openai.Int(maxTokens(req)),
		Temperature:         openai.Float(0),
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// OpenAILoader builds an OpenAIModel from an API key.
type OpenAILoader struct {
	APIKey   string
	Model    string
	Endpoint string
}

var _ Loader = OpenAILoader{}

func (l OpenAILoader) Name() string { return "openai" }

// Load checks that the key can see the model, so a rejected key or an
// unknown model id fails here and the engine moves on to the next loader.
func (l OpenAILoader) Load(ctx context.Context) (Model, error) {
	apiKey := strings.TrimSpace(l.APIKey)
	if apiKey == "" {
		return nil, errors.New("openai api key is empty")
	}
	modelID := strings.TrimSpace(l.Model)
	if modelID == "" {
		modelID = DefaultOpenAIModel
	}

	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if endpoint := strings.TrimSpace(l.Endpoint); endpoint != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimRight(endpoint, "/")+"/"))
	}

	client := openai.NewClient(opts...)
	pctx, cancel := context.WithTimeout(ctx, loadCheckTimeout)
	defer cancel()
	if _, err := client.Models.Get(pctx, modelID); err != nil {
		return nil, fmt.Errorf("openai model %s: %w", modelID, err)
	}

	return &OpenAIModel{client: client, model: modelID}, nil
}
