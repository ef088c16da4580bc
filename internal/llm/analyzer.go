package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"media-digest-go/internal/classify"
	"media-digest-go/internal/model"
	"media-digest-go/pkg/config"
)

// Usage is the accounting of one analysis call
type Usage struct {
	Provider     string
	Model        string
	InputTokens  int
	OutputTokens int
	Cost         float64
	Elapsed      time.Duration
}

// SummaryAnalysis is the outcome of GenerateSummary
type SummaryAnalysis struct {
	Summary *Summary
	Parsed  bool
	Usage
}

// TopicAnalysis is the outcome of ExtractTopics
type TopicAnalysis struct {
	Topics *TopicSet
	Parsed bool
	Usage
}

// Analyzer runs the two analysis operations over a provider chain
type Analyzer struct {
	chain    *Chain
	rates    *RateTable
	budget   *Budget
	maxChars int
	logger   *zap.Logger
}

// NewAnalyzer wires an analyzer. A nil budget disables spend limits.
func NewAnalyzer(chain *Chain, rates *RateTable, budget *Budget, maxChars int, logger *zap.Logger) *Analyzer {
	if rates == nil {
		rates = NewRateTable()
	}
	return &Analyzer{
		chain:    chain,
		rates:    rates,
		budget:   budget,
		maxChars: maxChars,
		logger:   logger,
	}
}

// NewFromConfig builds providers that have credentials and wires them into
// an analyzer
func NewFromConfig(cfg config.LLMConfig, logger *zap.Logger) (*Analyzer, error) {
	var providers []Provider
	if cfg.OpenAI.APIKey != "" {
		providers = append(providers, NewOpenAI(cfg.OpenAI, cfg.Timeout, logger))
	}
	if len(cfg.Gemini.APIKeys) > 0 {
		providers = append(providers, NewGemini(cfg.Gemini, logger))
	}
	if len(providers) == 0 {
		logger.Warn("No language model provider has credentials, analysis will fail")
	}

	rates, err := LoadRateTable(cfg.RatesFile)
	if err != nil {
		return nil, err
	}

	chain := NewChain(providers, cfg.PreferredProvider, cfg.FallbackOrder, logger)
	return NewAnalyzer(chain, rates, NewBudget(cfg.MonthlyBudget), cfg.MaxTranscriptChars, logger), nil
}

// Rates exposes the rate table for pre-flight estimates
func (a *Analyzer) Rates() *RateTable {
	return a.rates
}

// EstimateCost predicts the cost of analyzing contentLength characters with
// the model the preferred provider would pick for that size
func (a *Analyzer) EstimateCost(contentLength int, includeTopics bool, preferred string) float64 {
	modelName := a.chain.ModelFor(preferred, SelectModel(contentLength).Tier)
	return a.rates.EstimateCost(modelName, contentLength, includeTopics)
}

// GenerateSummary summarizes a transcript. An unparseable answer becomes the
// single low-confidence fallback summary.
func (a *Analyzer) GenerateSummary(ctx context.Context, text string, meta *model.ItemMetadata, opts SummaryOptions) (*SummaryAnalysis, error) {
	prompt := BuildSummaryPrompt(text, meta, opts, a.maxChars)
	cfg := SelectModel(len(text))
	if opts.IncludeTopics && cfg.MaxTokens < 1000 {
		cfg.MaxTokens = 1000
	}

	completion, usage, err := a.complete(ctx, prompt, cfg, opts.IncludeTopics, opts.PreferredProvider)
	if err != nil {
		return nil, err
	}

	result := &SummaryAnalysis{Usage: usage, Parsed: true}
	summary, err := ParseSummary(completion.Text)
	if err != nil {
		a.logger.Warn("Summary response was not valid JSON, using fallback",
			zap.String("provider", usage.Provider),
			zap.Error(err))
		summary = FallbackSummary(completion.Text)
		result.Parsed = false
	}

	if opts.IncludeTopics {
		summary.Topics = MergeTopics(summary.Topics, 0, DefaultMaxTopics)
	} else {
		summary.Topics = []model.Topic{}
	}
	result.Summary = summary
	return result, nil
}

// ExtractTopics pulls topics out of one or more content pieces. An
// unparseable answer yields no topics.
func (a *Analyzer) ExtractTopics(ctx context.Context, pieces []string, opts TopicOptions) (*TopicAnalysis, error) {
	opts = opts.withDefaults()

	prompt := BuildTopicsPrompt(pieces, opts, a.maxChars)
	size := 0
	for _, piece := range pieces {
		size += len(piece)
	}
	cfg := SelectModel(size)

	completion, usage, err := a.complete(ctx, prompt, cfg, true, opts.PreferredProvider)
	if err != nil {
		return nil, err
	}

	result := &TopicAnalysis{Usage: usage, Parsed: true}
	set, err := ParseTopics(completion.Text)
	if err != nil {
		a.logger.Warn("Topics response was not valid JSON, returning no topics",
			zap.String("provider", usage.Provider),
			zap.Error(err))
		result.Topics = EmptyTopics()
		result.Parsed = false
		return result, nil
	}

	set.Topics = MergeTopics(set.Topics, opts.MinConfidence, opts.MaxTopics)
	if opts.IncludeSubtopics {
		set.Relationships = filterRelationships(set.Relationships, set.Topics)
	} else {
		set.Relationships = []model.TopicRelationship{}
	}
	result.Topics = set
	return result, nil
}

// complete reserves budget, runs the chain and prices the answer with the
// rates of the model that actually answered
func (a *Analyzer) complete(ctx context.Context, prompt Prompt, cfg ModelConfig, topics bool, preferred string) (*Completion, Usage, error) {
	modelName := cfg.Model
	if modelName == "" {
		modelName = a.chain.ModelFor(preferred, cfg.Tier)
	}
	reserved, err := a.budget.Reserve(a.rates.EstimateCost(modelName, prompt.Len(), topics))
	if err != nil {
		return nil, Usage{}, classify.New(classify.SubsystemLLM, classify.KindQuotaExceeded, err)
	}

	start := time.Now()
	completion, provider, err := a.chain.Complete(ctx, prompt, cfg, preferred)
	if err != nil {
		a.budget.Release(reserved)
		var classified *classify.Error
		if !errors.As(err, &classified) {
			err = classify.Classify(classify.SubsystemLLM, fmt.Errorf("%s: %w", provider, err))
		}
		return nil, Usage{}, err
	}

	usage := Usage{
		Provider:     provider,
		Model:        completion.Model,
		InputTokens:  completion.InputTokens,
		OutputTokens: completion.OutputTokens,
		Cost:         a.rates.Cost(completion.Model, completion.InputTokens, completion.OutputTokens),
		Elapsed:      time.Since(start),
	}
	a.budget.Settle(reserved, usage.Cost)

	a.logger.Info("Language model call completed",
		zap.String("provider", usage.Provider),
		zap.String("model", usage.Model),
		zap.Int("input_tokens", usage.InputTokens),
		zap.Int("output_tokens", usage.OutputTokens),
		zap.Float64("cost", usage.Cost),
		zap.Duration("elapsed", usage.Elapsed))

	return completion, usage, nil
}
