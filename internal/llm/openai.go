package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
	"go.uber.org/zap"

	"media-digest-go/pkg/config"
)

// ProviderOpenAI is the name of the OpenAI-compatible provider
const ProviderOpenAI = "openai"

// OpenAI talks to the chat completions API of OpenAI or a compatible server
type OpenAI struct {
	client openai.Client
	models config.ModelTiers
	logger *zap.Logger
}

// NewOpenAI creates the provider. SDK retries are disabled since the chain
// falls back to the next provider instead.
func NewOpenAI(cfg config.OpenAIConfig, timeout time.Duration, logger *zap.Logger, opts ...option.RequestOption) *OpenAI {
	clientOpts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if strings.TrimSpace(cfg.BaseURL) != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(cfg.BaseURL))
	}
	if timeout > 0 {
		clientOpts = append(clientOpts, option.WithRequestTimeout(timeout))
	}
	clientOpts = append(clientOpts, opts...)

	return &OpenAI{
		client: openai.NewClient(clientOpts...),
		models: cfg.Models,
		logger: logger,
	}
}

// Name implements Provider
func (o *OpenAI) Name() string {
	return ProviderOpenAI
}

// ModelFor returns the model used for tier
func (o *OpenAI) ModelFor(tier Tier) string {
	return resolveModel(ModelConfig{Tier: tier}, o.models)
}

// Complete implements Provider
func (o *OpenAI) Complete(ctx context.Context, prompt Prompt, cfg ModelConfig) (*Completion, error) {
	model := resolveModel(cfg, o.models)

	params := openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(prompt.System),
			openai.UserMessage(prompt.User),
		},
		Model:       openai.ChatModel(model),
		Temperature: openai.Float(cfg.Temperature),
	}
	if cfg.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(cfg.MaxTokens))
	}
	if cfg.JSON {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{Type: "json_object"},
		}
	}

	o.logger.Debug("Calling OpenAI", zap.String("model", model), zap.Int("max_tokens", cfg.MaxTokens))

	resp, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		status := 0
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			status = apiErr.StatusCode
		}
		return nil, &providerError{provider: ProviderOpenAI, status: status, err: err}
	}
	if len(resp.Choices) == 0 {
		return nil, &providerError{provider: ProviderOpenAI, err: errors.New("no choices in response")}
	}

	choice := resp.Choices[0]
	if choice.FinishReason == "length" && strings.TrimSpace(choice.Message.Content) == "" {
		return nil, &providerError{provider: ProviderOpenAI, err: fmt.Errorf("response cut off at max_tokens=%d", cfg.MaxTokens)}
	}

	usedModel := resp.Model
	if usedModel == "" {
		usedModel = model
	}

	return &Completion{
		Text:         strings.TrimSpace(choice.Message.Content),
		InputTokens:  int(resp.Usage.PromptTokens),
		OutputTokens: int(resp.Usage.CompletionTokens),
		Model:        usedModel,
	}, nil
}
