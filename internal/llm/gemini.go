package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"media-digest-go/pkg/config"
)

// ProviderGemini is the name of the Gemini provider
const ProviderGemini = "gemini"

type generateFunc func(ctx context.Context, key, model, prompt string, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)

// Gemini calls the Gemini API, rotating through API keys when one is rate
// limited or out of quota
type Gemini struct {
	keys     []string
	models   config.ModelTiers
	generate generateFunc
	logger   *zap.Logger

	mu         sync.Mutex
	currentKey int
	clients    map[string]*genai.Client
}

// NewGemini creates the provider
func NewGemini(cfg config.GeminiConfig, logger *zap.Logger) *Gemini {
	g := &Gemini{
		keys:    cfg.APIKeys,
		models:  cfg.Models,
		logger:  logger,
		clients: make(map[string]*genai.Client),
	}
	g.generate = g.sdkGenerate
	return g
}

// Name implements Provider
func (g *Gemini) Name() string {
	return ProviderGemini
}

// ModelFor returns the model used for tier
func (g *Gemini) ModelFor(tier Tier) string {
	return resolveModel(ModelConfig{Tier: tier}, g.models)
}

// Complete implements Provider
func (g *Gemini) Complete(ctx context.Context, prompt Prompt, cfg ModelConfig) (*Completion, error) {
	if len(g.keys) == 0 {
		return nil, &providerError{provider: ProviderGemini, status: 401, err: errors.New("no API keys configured")}
	}

	model := resolveModel(cfg, g.models)
	text := prompt.User
	if prompt.System != "" {
		text = prompt.System + "\n\n" + prompt.User
	}

	genCfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(cfg.Temperature)),
	}
	if cfg.MaxTokens > 0 {
		genCfg.MaxOutputTokens = int32(cfg.MaxTokens)
	}
	if cfg.JSON {
		genCfg.ResponseMIMEType = "application/json"
	}

	var lastErr error
	for range g.keys {
		index, key := g.key()

		result, err := g.generate(ctx, key, model, text, genCfg)
		if err != nil {
			msg := err.Error()
			if isKeyExhausted(msg) {
				g.logger.Warn("Gemini key rate limited, rotating",
					zap.Int("key", index+1),
					zap.Int("keys", len(g.keys)))
				g.rotate(index)
				lastErr = err
				continue
			}
			return nil, &providerError{provider: ProviderGemini, status: statusFromMessage(msg), err: fmt.Errorf("generate content: %w", err)}
		}

		completion, err := completionFrom(result, model)
		if err != nil {
			return nil, &providerError{provider: ProviderGemini, err: err}
		}
		return completion, nil
	}

	return nil, &providerError{provider: ProviderGemini, status: 429, err: fmt.Errorf("all API keys exhausted: %w", lastErr)}
}

func (g *Gemini) key() (int, string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.currentKey, g.keys[g.currentKey]
}

// rotate advances past index unless another caller already did
func (g *Gemini) rotate(index int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.currentKey == index {
		g.currentKey = (g.currentKey + 1) % len(g.keys)
	}
}

func (g *Gemini) sdkGenerate(ctx context.Context, key, model, prompt string, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	client, err := g.client(ctx, key)
	if err != nil {
		return nil, err
	}
	return client.Models.GenerateContent(ctx, model, genai.Text(prompt), cfg)
}

func (g *Gemini) client(ctx context.Context, key string) (*genai.Client, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if client, ok := g.clients[key]; ok {
		return client, nil
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  key,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create client: %w", err)
	}
	g.clients[key] = client
	return client, nil
}

func isKeyExhausted(msg string) bool {
	return strings.Contains(msg, "429") || strings.Contains(msg, "quota") || strings.Contains(msg, "RESOURCE_EXHAUSTED")
}

func completionFrom(result *genai.GenerateContentResponse, model string) (*Completion, error) {
	if result == nil || len(result.Candidates) == 0 || result.Candidates[0].Content == nil {
		return nil, errors.New("empty response from Gemini")
	}

	var text strings.Builder
	for _, part := range result.Candidates[0].Content.Parts {
		if part != nil && part.Text != "" {
			text.WriteString(part.Text)
		}
	}
	if text.Len() == 0 {
		if reason := result.Candidates[0].FinishReason; reason == genai.FinishReasonMaxTokens {
			return nil, errors.New("response cut off by max_tokens")
		}
		return nil, errors.New("empty response from Gemini")
	}

	completion := &Completion{
		Text:  strings.TrimSpace(text.String()),
		Model: model,
	}
	if usage := result.UsageMetadata; usage != nil {
		completion.InputTokens = int(usage.PromptTokenCount)
		completion.OutputTokens = int(usage.CandidatesTokenCount)
	}
	return completion, nil
}
