package llm

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Rate is a price in dollars per 1K tokens
type Rate struct {
	Input  float64 `yaml:"input"`
	Output float64 `yaml:"output"`
}

// DefaultRate applies to models missing from the table
var DefaultRate = Rate{Input: 0.001, Output: 0.002}

var defaultRates = map[string]Rate{
	"gpt-4o-mini":      {Input: 0.00015, Output: 0.0006},
	"gpt-4o":           {Input: 0.0025, Output: 0.01},
	"gpt-4-turbo":      {Input: 0.01, Output: 0.03},
	"gpt-3.5-turbo":    {Input: 0.0005, Output: 0.0015},
	"gemini-1.5-flash": {Input: 0.000075, Output: 0.0003},
	"gemini-1.5-pro":   {Input: 0.00125, Output: 0.005},
	"gemini-2.0-flash": {Input: 0.0001, Output: 0.0004},
}

// RateTable prices token usage per model
type RateTable struct {
	rates    map[string]Rate
	fallback Rate
	prefixes []string
}

type rateFile struct {
	Default *Rate           `yaml:"default"`
	Models  map[string]Rate `yaml:"models"`
}

// NewRateTable returns the built-in rates
func NewRateTable() *RateTable {
	rates := make(map[string]Rate, len(defaultRates))
	for model, rate := range defaultRates {
		rates[model] = rate
	}
	return newRateTable(rates, DefaultRate)
}

func newRateTable(rates map[string]Rate, fallback Rate) *RateTable {
	prefixes := make([]string, 0, len(rates))
	for model := range rates {
		prefixes = append(prefixes, model)
	}
	// longest first so "gpt-4o-mini-2024" matches gpt-4o-mini, not gpt-4o
	sort.Slice(prefixes, func(i, j int) bool {
		if len(prefixes[i]) != len(prefixes[j]) {
			return len(prefixes[i]) > len(prefixes[j])
		}
		return prefixes[i] < prefixes[j]
	})
	return &RateTable{rates: rates, fallback: fallback, prefixes: prefixes}
}

// LoadRateTable reads a YAML override file on top of the built-in rates.
// An empty path returns the built-in table.
func LoadRateTable(path string) (*RateTable, error) {
	if path == "" {
		return NewRateTable(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading rates file: %w", err)
	}

	var file rateFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing rates file %s: %w", path, err)
	}

	rates := make(map[string]Rate, len(defaultRates)+len(file.Models))
	for model, rate := range defaultRates {
		rates[model] = rate
	}
	for model, rate := range file.Models {
		if rate.Input < 0 || rate.Output < 0 {
			return nil, fmt.Errorf("rates file %s: negative rate for %s", path, model)
		}
		rates[strings.ToLower(model)] = rate
	}

	fallback := DefaultRate
	if file.Default != nil {
		fallback = *file.Default
	}
	return newRateTable(rates, fallback), nil
}

// Rate returns the rate of model, matching dated variants by prefix
func (t *RateTable) Rate(model string) Rate {
	model = strings.ToLower(strings.TrimSpace(model))
	model = strings.TrimPrefix(model, "models/")
	if rate, ok := t.rates[model]; ok {
		return rate
	}
	for _, prefix := range t.prefixes {
		if strings.HasPrefix(model, prefix) {
			return t.rates[prefix]
		}
	}
	return t.fallback
}

// Cost prices actual token usage
func (t *RateTable) Cost(model string, inputTokens, outputTokens int) float64 {
	rate := t.Rate(model)
	return float64(inputTokens)/1000*rate.Input + float64(outputTokens)/1000*rate.Output
}

// Estimate output sizes used before a call is made
const (
	EstimatedOutputTokens       = 500
	EstimatedOutputTokensTopics = 800
	topicsMultiplier            = 1.5
	outputRateFactor            = 5
)

// EstimateCost predicts the cost of analyzing contentLength characters with
// model. Output is priced at five times the input rate.
func (t *RateTable) EstimateCost(model string, contentLength int, includeTopics bool) float64 {
	rate := t.Rate(model)

	inputTokens := float64(contentLength) / 4
	outputTokens := float64(EstimatedOutputTokens)
	if includeTopics {
		outputTokens = EstimatedOutputTokensTopics
	}

	estimate := inputTokens/1000*rate.Input + outputTokens/1000*rate.Input*outputRateFactor
	if includeTopics {
		estimate *= topicsMultiplier
	}
	return estimate
}

// Content-size thresholds for model selection
const (
	FastContentLimit     = 1000
	BalancedContentLimit = 5000
)

// SelectModel picks a configuration for the content size
func SelectModel(contentLength int) ModelConfig {
	switch {
	case contentLength < FastContentLimit:
		return ModelConfig{Tier: TierFast, MaxTokens: 500, Temperature: 0.3, JSON: true}
	case contentLength <= BalancedContentLimit:
		return ModelConfig{Tier: TierBalanced, MaxTokens: 1000, Temperature: 0.3, JSON: true}
	default:
		return ModelConfig{Tier: TierAdvanced, MaxTokens: 2000, Temperature: 0.2, JSON: true}
	}
}
