package llm

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"media-digest-go/internal/classify"
)

// ErrNoProviders is returned when the chain has nothing to try
var ErrNoProviders = errors.New("no providers available")

// Chain tries providers in order until one succeeds
type Chain struct {
	providers map[string]Provider
	order     []string
	preferred string
	logger    *zap.Logger
}

// NewChain builds a chain. order is the fixed fallback order and preferred
// the default first provider. Providers missing from order are appended.
func NewChain(providers []Provider, preferred string, order []string, logger *zap.Logger) *Chain {
	byName := make(map[string]Provider, len(providers))
	for _, p := range providers {
		byName[p.Name()] = p
	}

	full := append([]string(nil), order...)
	for _, p := range providers {
		if !containsName(full, p.Name()) {
			full = append(full, p.Name())
		}
	}

	return &Chain{
		providers: byName,
		order:     full,
		preferred: preferred,
		logger:    logger,
	}
}

// Providers returns the attempt order for a preferred provider: preferred
// first, then the fallback order, skipping unconfigured names
func (c *Chain) Providers(preferred string) []string {
	if preferred == "" {
		preferred = c.preferred
	}

	var names []string
	if _, ok := c.providers[preferred]; ok {
		names = append(names, preferred)
	}
	for _, name := range c.order {
		if _, ok := c.providers[name]; ok && !containsName(names, name) {
			names = append(names, name)
		}
	}
	return names
}

// tieredProvider is implemented by providers that map tiers to models
type tieredProvider interface {
	ModelFor(tier Tier) string
}

// ModelFor returns the model the first provider for preferred would use for
// tier, or "" when unknown
func (c *Chain) ModelFor(preferred string, tier Tier) string {
	names := c.Providers(preferred)
	if len(names) == 0 {
		return ""
	}
	if tiered, ok := c.providers[names[0]].(tieredProvider); ok {
		return tiered.ModelFor(tier)
	}
	return ""
}

// Complete returns the first successful completion and the provider that
// produced it. When every provider fails the error is the last provider's
// classified failure attributed to that provider.
func (c *Chain) Complete(ctx context.Context, prompt Prompt, cfg ModelConfig, preferred string) (*Completion, string, error) {
	names := c.Providers(preferred)
	if len(names) == 0 {
		if preferred == "" {
			preferred = c.preferred
		}
		err := fmt.Errorf("preferred provider %q: %w", preferred, ErrNoProviders)
		return nil, "", classify.New(classify.SubsystemLLM, classify.KindUnknown, err).WithProvider(preferred)
	}

	var last *classify.Error
	for _, name := range names {
		completion, err := c.providers[name].Complete(ctx, prompt, cfg)
		if err == nil {
			if completion.Model == "" {
				completion.Model = cfg.Model
			}
			return completion, name, nil
		}

		last = classify.Classify(classify.SubsystemLLM, err).WithProvider(name)
		c.logger.Warn("Language model provider failed",
			zap.String("provider", name),
			zap.String("kind", string(last.Kind)),
			zap.Bool("retryable", last.Retryable),
			zap.Error(err))

		if ctx.Err() != nil {
			break
		}
	}

	if len(names) == 1 {
		last.Message = fmt.Sprintf("provider %s failed: %s; %s", last.Provider, last.Message, ErrNoProviders)
	} else {
		last.Message = fmt.Sprintf("all %d providers failed, last %s: %s", len(names), last.Provider, last.Message)
	}
	return nil, last.Provider, last
}

func containsName(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}
