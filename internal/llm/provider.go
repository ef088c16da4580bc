// Package llm runs transcript analysis against language-model providers:
// prompt building, provider fallback, response parsing and cost accounting.
package llm

import (
	"context"
	"strings"

	"media-digest-go/pkg/config"
)

// Tier is a content-size class that maps to a model per provider
type Tier string

const (
	TierFast     Tier = "fast"
	TierBalanced Tier = "balanced"
	TierAdvanced Tier = "advanced"
)

// ModelConfig tunes one completion call
type ModelConfig struct {
	Tier        Tier
	Model       string // overrides the tier's model when set
	MaxTokens   int
	Temperature float64
	JSON        bool
}

// Prompt is a system instruction plus the user message
type Prompt struct {
	System string
	User   string
}

// Len returns the prompt size in characters
func (p Prompt) Len() int {
	return len(p.System) + len(p.User)
}

// Completion is a provider answer with its token usage
type Completion struct {
	Text         string
	InputTokens  int
	OutputTokens int
	Model        string
}

// Provider is one language-model backend
type Provider interface {
	Name() string
	Complete(ctx context.Context, prompt Prompt, cfg ModelConfig) (*Completion, error)
}

// resolveModel picks the explicit model or the tier's model
func resolveModel(cfg ModelConfig, tiers config.ModelTiers) string {
	if cfg.Model != "" {
		return cfg.Model
	}
	switch cfg.Tier {
	case TierFast:
		return tiers.Fast
	case TierAdvanced:
		return tiers.Advanced
	default:
		return tiers.Balanced
	}
}

// providerError carries a provider failure with its transport status so the
// classifier can read it
type providerError struct {
	provider string
	status   int
	err      error
}

func (e *providerError) Error() string {
	return e.provider + ": " + e.err.Error()
}

func (e *providerError) Unwrap() error {
	return e.err
}

// HTTPStatusCode exposes the provider's status code
func (e *providerError) HTTPStatusCode() int {
	return e.status
}

var statusHints = []struct {
	status int
	hints  []string
}{
	{429, []string{"429", "RESOURCE_EXHAUSTED"}},
	{401, []string{"401", "UNAUTHENTICATED"}},
	{403, []string{"403", "PERMISSION_DENIED"}},
	{504, []string{"504", "DEADLINE_EXCEEDED"}},
	{413, []string{"413"}},
	{503, []string{"503", "UNAVAILABLE"}},
}

// statusFromMessage recovers a status code from SDK error text
func statusFromMessage(msg string) int {
	for _, hint := range statusHints {
		for _, h := range hint.hints {
			if strings.Contains(msg, h) {
				return hint.status
			}
		}
	}
	return 0
}
