package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/genai"

	"media-digest-go/internal/classify"
	"media-digest-go/internal/model"
	"media-digest-go/pkg/config"
)

type fakeProvider struct {
	name       string
	completion *Completion
	err        error

	mu      sync.Mutex
	calls   int
	prompts []Prompt
	configs []ModelConfig
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) ModelFor(tier Tier) string { return "gpt-4o-mini" }

func (f *fakeProvider) Complete(ctx context.Context, prompt Prompt, cfg ModelConfig) (*Completion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.prompts = append(f.prompts, prompt)
	f.configs = append(f.configs, cfg)
	if f.err != nil {
		return nil, f.err
	}
	c := *f.completion
	return &c, nil
}

type statusErr struct {
	code int
	msg  string
}

func (e statusErr) Error() string       { return e.msg }
func (e statusErr) HTTPStatusCode() int { return e.code }

func TestChainPrefersPreferredProvider(t *testing.T) {
	a := &fakeProvider{name: "a", completion: &Completion{Text: "from a", Model: "m-a"}}
	b := &fakeProvider{name: "b", completion: &Completion{Text: "from b", Model: "m-b"}}
	chain := NewChain([]Provider{a, b}, "a", []string{"a", "b"}, zap.NewNop())

	assert.Equal(t, []string{"b", "a"}, chain.Providers("b"))
	assert.Equal(t, []string{"a", "b"}, chain.Providers(""))
	assert.Equal(t, []string{"a", "b"}, chain.Providers("unknown"))

	completion, provider, err := chain.Complete(context.Background(), Prompt{User: "x"}, ModelConfig{}, "b")
	require.NoError(t, err)
	assert.Equal(t, "b", provider)
	assert.Equal(t, "from b", completion.Text)
	assert.Equal(t, 0, a.calls)
}

func TestChainFallsBackAndKeepsFallbackUsage(t *testing.T) {
	primary := &fakeProvider{name: "primary", err: statusErr{429, "slow down"}}
	secondary := &fakeProvider{name: "secondary", completion: &Completion{Text: "ok", InputTokens: 42, OutputTokens: 7, Model: "m-2"}}
	chain := NewChain([]Provider{primary, secondary}, "primary", []string{"primary", "secondary"}, zap.NewNop())

	completion, provider, err := chain.Complete(context.Background(), Prompt{User: "x"}, ModelConfig{}, "")
	require.NoError(t, err)
	assert.Equal(t, "secondary", provider)
	assert.Equal(t, 42, completion.InputTokens)
	assert.Equal(t, 7, completion.OutputTokens)
	assert.Equal(t, 1, primary.calls)
}

func TestChainAllFailReportsLastProvider(t *testing.T) {
	first := &fakeProvider{name: "first", err: statusErr{429, "slow down"}}
	last := &fakeProvider{name: "last", err: statusErr{401, "bad key"}}
	chain := NewChain([]Provider{first, last}, "first", []string{"first", "last"}, zap.NewNop())

	_, provider, err := chain.Complete(context.Background(), Prompt{User: "x"}, ModelConfig{}, "")
	require.Error(t, err)
	assert.Equal(t, "last", provider)

	var classified *classify.Error
	require.True(t, errors.As(err, &classified))
	assert.Equal(t, classify.KindAPIKeyInvalid, classified.Kind)
	assert.Equal(t, "last", classified.Provider)
	assert.Contains(t, classified.Message, "bad key")
	assert.Contains(t, err.Error(), "last")
}

func TestChainSingleProviderFailure(t *testing.T) {
	primary := &fakeProvider{name: "primary", err: errors.New("boom")}
	chain := NewChain([]Provider{primary}, "primary", nil, zap.NewNop())

	_, _, err := chain.Complete(context.Background(), Prompt{User: "x"}, ModelConfig{}, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "primary")
	assert.Contains(t, err.Error(), "no providers available")
}

func TestChainWithoutProviders(t *testing.T) {
	chain := NewChain(nil, "primary", []string{"primary"}, zap.NewNop())

	_, _, err := chain.Complete(context.Background(), Prompt{User: "x"}, ModelConfig{}, "")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoProviders)
	assert.Contains(t, err.Error(), "primary")
	assert.Contains(t, err.Error(), "no providers available")
}

func TestRateTable(t *testing.T) {
	rates := NewRateTable()

	assert.InDelta(t, 0.00015+0.0006, rates.Cost("gpt-4o-mini", 1000, 1000), 1e-12)
	assert.Equal(t, rates.Rate("gpt-4o-mini"), rates.Rate("gpt-4o-mini-2024-07-18"))
	assert.Equal(t, rates.Rate("gemini-1.5-pro"), rates.Rate("models/gemini-1.5-pro-002"))
	assert.Equal(t, DefaultRate, rates.Rate("mystery-model"))
}

func TestLoadRateTableOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rates.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
default:
  input: 0.01
  output: 0.02
models:
  gpt-4o:
    input: 0.005
    output: 0.015
  local-llama:
    input: 0
    output: 0
`), 0o644))

	rates, err := LoadRateTable(path)
	require.NoError(t, err)
	assert.Equal(t, Rate{Input: 0.005, Output: 0.015}, rates.Rate("gpt-4o"))
	assert.Equal(t, Rate{}, rates.Rate("local-llama"))
	assert.Equal(t, Rate{Input: 0.01, Output: 0.02}, rates.Rate("unknown"))
	assert.Equal(t, defaultRates["gpt-4o-mini"], rates.Rate("gpt-4o-mini"))

	_, err = LoadRateTable(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestEstimateCost(t *testing.T) {
	rates := NewRateTable()

	plain := rates.EstimateCost("gpt-4o-mini", 4000, false)
	withTopics := rates.EstimateCost("gpt-4o-mini", 4000, true)

	assert.InDelta(t, 0.000525, plain, 1e-12)
	assert.InDelta(t, 0.001125, withTopics, 1e-12)
	assert.Greater(t, withTopics, plain)
	assert.Greater(t, rates.EstimateCost("", 0, false), 0.0)
}

func TestSelectModel(t *testing.T) {
	tests := []struct {
		length int
		tier   Tier
		tokens int
		temp   float64
	}{
		{0, TierFast, 500, 0.3},
		{999, TierFast, 500, 0.3},
		{1000, TierBalanced, 1000, 0.3},
		{5000, TierBalanced, 1000, 0.3},
		{5001, TierAdvanced, 2000, 0.2},
	}
	for _, tt := range tests {
		cfg := SelectModel(tt.length)
		assert.Equal(t, tt.tier, cfg.Tier, "length %d", tt.length)
		assert.Equal(t, tt.tokens, cfg.MaxTokens)
		assert.Equal(t, tt.temp, cfg.Temperature)
	}
}

func TestBudget(t *testing.T) {
	budget := NewBudget(1.0)
	first, err := budget.Reserve(0.6)
	require.NoError(t, err)
	_, err = budget.Reserve(0.5)
	assert.ErrorIs(t, err, ErrBudgetExceeded)

	budget.Settle(first, 0.2)
	assert.InDelta(t, 0.2, budget.Spent(), 1e-9)
	second, err := budget.Reserve(0.5)
	require.NoError(t, err)

	budget.Release(second)
	assert.InDelta(t, 0.2, budget.Spent(), 1e-9)

	var disabled *Budget
	_, err = disabled.Reserve(100)
	assert.NoError(t, err)
	_, err = NewBudget(0).Reserve(100)
	assert.NoError(t, err)
}

func TestBudgetConcurrentReservations(t *testing.T) {
	budget := NewBudget(1.0)

	var wg sync.WaitGroup
	var mu sync.Mutex
	granted := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := budget.Reserve(0.1); err == nil {
				mu.Lock()
				granted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, granted)
	assert.InDelta(t, 1.0, budget.Spent(), 1e-9)
}

func TestBudgetRollsOverMonthly(t *testing.T) {
	now := time.Date(2026, 1, 31, 23, 0, 0, 0, time.UTC)
	budget := NewBudget(1.0)
	budget.now = func() time.Time { return now }
	budget.month = monthKey(now)

	january, err := budget.Reserve(1.0)
	require.NoError(t, err)
	_, err = budget.Reserve(0.1)
	assert.Error(t, err)

	now = now.Add(2 * time.Hour)
	february, err := budget.Reserve(0.1)
	require.NoError(t, err)
	assert.InDelta(t, 0.1, budget.Spent(), 1e-9)

	// a January reservation settled in February only adds its actual cost
	budget.Settle(january, 0.3)
	assert.InDelta(t, 0.4, budget.Spent(), 1e-9)

	budget.Release(january)
	assert.InDelta(t, 0.4, budget.Spent(), 1e-9)

	budget.Settle(february, 0.05)
	assert.InDelta(t, 0.35, budget.Spent(), 1e-9)
}

func TestBudgetNeverGoesNegative(t *testing.T) {
	budget := NewBudget(1.0)
	res, err := budget.Reserve(0.2)
	require.NoError(t, err)

	budget.Release(res)
	budget.Release(res)
	assert.Equal(t, 0.0, budget.Spent())
}

func TestParseSummary(t *testing.T) {
	text := "Here you go:\n```json\n{\"title\": \"Go {generics}\", \"summary\": \"About generics.\", \"key_points\": [\"one\", \" \", \"two\"], \"confidence\": 1.7}\n```"
	summary, err := ParseSummary(text)
	require.NoError(t, err)
	assert.Equal(t, "Go {generics}", summary.Title)
	assert.Equal(t, []string{"one", "two"}, summary.KeyPoints)
	assert.Equal(t, 1.0, summary.Confidence)

	_, err = ParseSummary("I cannot answer that")
	var parseErr *ParseError
	require.True(t, errors.As(err, &parseErr))
	assert.Equal(t, "summary", parseErr.Operation)

	_, err = ParseSummary(`{"title": "x"}`)
	assert.Error(t, err)
}

func TestFallbackSummary(t *testing.T) {
	summary := FallbackSummary("  plain words  ")
	assert.Equal(t, "Summary", summary.Title)
	assert.Equal(t, "plain words", summary.Summary)
	assert.Empty(t, summary.KeyPoints)
	assert.NotNil(t, summary.KeyPoints)
	assert.Empty(t, summary.Topics)
	assert.Equal(t, 0.5, summary.Confidence)
}

func TestParseTopics(t *testing.T) {
	set, err := ParseTopics(`{"topics": [{"name": "Go", "confidence": 0.9}, {"name": ""}], "relationships": [{"parent": "Go", "child": "Go"}, {"parent": "Go", "child": "Channels"}]}`)
	require.NoError(t, err)
	require.Len(t, set.Topics, 1)
	assert.Equal(t, []model.TopicRelationship{{Parent: "Go", Child: "Channels"}}, set.Relationships)

	_, err = ParseTopics(`{"other": 1}`)
	assert.Error(t, err)

	empty := EmptyTopics()
	assert.Empty(t, empty.Topics)
	assert.Empty(t, empty.Relationships)
}

func TestMergeTopics(t *testing.T) {
	topics := []model.Topic{
		{Name: "Neural Networks", Confidence: 0.8, Frequency: 2, Keywords: []string{"nn"}},
		{Name: "neural network", Confidence: 0.95, Frequency: 1, Description: "better", Keywords: []string{"NN", "layers"}},
		{Name: "Cooking", Confidence: 0.5, Frequency: 4},
		{Name: "Training", Confidence: 0.75, Frequency: 1},
	}

	merged := MergeTopics(topics, 0.7, 10)
	require.Len(t, merged, 2)
	assert.Equal(t, "Neural Networks", merged[0].Name)
	assert.Equal(t, 0.95, merged[0].Confidence)
	assert.Equal(t, 3, merged[0].Frequency)
	assert.Equal(t, "better", merged[0].Description)
	assert.Equal(t, []string{"nn", "layers"}, merged[0].Keywords)
	assert.Equal(t, "Training", merged[1].Name)

	assert.Len(t, MergeTopics(topics, 0, 1), 1)
}

func TestFilterRelationships(t *testing.T) {
	topics := []model.Topic{{Name: "Machine Learning"}, {Name: "Neural Networks"}}
	rels := filterRelationships([]model.TopicRelationship{
		{Parent: "machine learning", Child: "neural network"},
		{Parent: "Machine Learning", Child: "Neural Networks"},
		{Parent: "Machine Learning", Child: "Cooking"},
	}, topics)
	assert.Equal(t, []model.TopicRelationship{{Parent: "Machine Learning", Child: "Neural Networks"}}, rels)
}

func TestExtractJSON(t *testing.T) {
	assert.Equal(t, `{"a": "}"}`, extractJSON(`noise {"a": "}"} trailing`))
	assert.Equal(t, `{"a": {"b": 1}}`, extractJSON("```json\n{\"a\": {\"b\": 1}}\n```"))
	assert.Equal(t, "", extractJSON("no object"))
	assert.Equal(t, "", extractJSON(`{"unbalanced": 1`))
}

func TestBuildSummaryPrompt(t *testing.T) {
	meta := &model.ItemMetadata{Title: "Intro to Go", ChannelTitle: "Gophers"}
	prompt := BuildSummaryPrompt(strings.Repeat("word ", 100), meta, SummaryOptions{
		Length:        model.SummaryShort,
		Focus:         model.FocusActionable,
		IncludeTopics: true,
	}, 50)

	assert.Contains(t, prompt.User, "Intro to Go")
	assert.Contains(t, prompt.User, "2-3 sentences")
	assert.Contains(t, prompt.User, "concrete steps")
	assert.Contains(t, prompt.User, `"topics"`)
	assert.NotContains(t, prompt.User, strings.Repeat("word ", 20))
	assert.NotEmpty(t, prompt.System)
}

func TestBuildTopicsPrompt(t *testing.T) {
	prompt := BuildTopicsPrompt([]string{"first piece", "second piece"}, TopicOptions{IncludeSubtopics: true}, 0)
	assert.Contains(t, prompt.User, "at most 10 topics")
	assert.Contains(t, prompt.User, "0.70")
	assert.Contains(t, prompt.User, "relationships")
	assert.Contains(t, prompt.User, "second piece")
}

func newTestAnalyzer(providers ...Provider) *Analyzer {
	chain := NewChain(providers, providers[0].Name(), nil, zap.NewNop())
	return NewAnalyzer(chain, NewRateTable(), nil, 0, zap.NewNop())
}

func TestGenerateSummary(t *testing.T) {
	provider := &fakeProvider{name: "openai", completion: &Completion{
		Text:         `{"title": "T", "summary": "S", "key_points": ["k"], "topics": [{"name": "Go", "confidence": 0.9}], "confidence": 0.8}`,
		InputTokens:  1000,
		OutputTokens: 1000,
		Model:        "gpt-4o-mini",
	}}
	analyzer := newTestAnalyzer(provider)

	result, err := analyzer.GenerateSummary(context.Background(), strings.Repeat("a", 1200), nil, SummaryOptions{})
	require.NoError(t, err)
	assert.True(t, result.Parsed)
	assert.Equal(t, "T", result.Summary.Title)
	assert.Empty(t, result.Summary.Topics)
	assert.Equal(t, "openai", result.Provider)
	assert.InDelta(t, 0.00075, result.Cost, 1e-12)
	assert.Equal(t, TierBalanced, provider.configs[0].Tier)
	assert.True(t, provider.configs[0].JSON)

	result, err = analyzer.GenerateSummary(context.Background(), "short", nil, SummaryOptions{IncludeTopics: true})
	require.NoError(t, err)
	require.Len(t, result.Summary.Topics, 1)
	assert.Equal(t, 1000, provider.configs[1].MaxTokens)
}

func TestGenerateSummaryFallsBackOnUnparseableAnswer(t *testing.T) {
	provider := &fakeProvider{name: "openai", completion: &Completion{Text: "Just prose.", Model: "gpt-4o"}}
	analyzer := newTestAnalyzer(provider)

	result, err := analyzer.GenerateSummary(context.Background(), "text", nil, SummaryOptions{})
	require.NoError(t, err)
	assert.False(t, result.Parsed)
	assert.Equal(t, "Summary", result.Summary.Title)
	assert.Equal(t, "Just prose.", result.Summary.Summary)
	assert.Equal(t, 0.5, result.Summary.Confidence)
}

func TestExtractTopics(t *testing.T) {
	provider := &fakeProvider{name: "openai", completion: &Completion{
		Text: `{"topics": [{"name": "Go", "confidence": 0.9}, {"name": "Rust", "confidence": 0.4}, {"name": "Channels", "confidence": 0.8}],
		        "relationships": [{"parent": "Go", "child": "Channels"}, {"parent": "Go", "child": "Rust"}]}`,
		Model: "gpt-4o-mini",
	}}
	analyzer := newTestAnalyzer(provider)

	result, err := analyzer.ExtractTopics(context.Background(), []string{"piece"}, TopicOptions{IncludeSubtopics: true})
	require.NoError(t, err)
	require.Len(t, result.Topics.Topics, 2)
	assert.Equal(t, []model.TopicRelationship{{Parent: "Go", Child: "Channels"}}, result.Topics.Relationships)

	provider.completion = &Completion{Text: "nope", Model: "gpt-4o-mini"}
	result, err = analyzer.ExtractTopics(context.Background(), []string{"piece"}, TopicOptions{})
	require.NoError(t, err)
	assert.False(t, result.Parsed)
	assert.Empty(t, result.Topics.Topics)
	assert.Empty(t, result.Topics.Relationships)
}

func TestAnalyzerBudgetBlocksCalls(t *testing.T) {
	provider := &fakeProvider{name: "openai", completion: &Completion{Text: "{}", Model: "gpt-4o"}}
	chain := NewChain([]Provider{provider}, "openai", nil, zap.NewNop())
	analyzer := NewAnalyzer(chain, NewRateTable(), NewBudget(0.000001), 0, zap.NewNop())

	_, err := analyzer.GenerateSummary(context.Background(), strings.Repeat("a", 10000), nil, SummaryOptions{})
	require.Error(t, err)

	var classified *classify.Error
	require.True(t, errors.As(err, &classified))
	assert.Equal(t, classify.KindQuotaExceeded, classified.Kind)
	assert.ErrorIs(t, err, ErrBudgetExceeded)
	assert.Equal(t, 0, provider.calls)
}

func TestAnalyzerEstimateCostUsesPreferredModel(t *testing.T) {
	provider := &fakeProvider{name: "openai", completion: &Completion{}}
	analyzer := newTestAnalyzer(provider)

	assert.Equal(t, NewRateTable().EstimateCost("gpt-4o-mini", 4000, true), analyzer.EstimateCost(4000, true, ""))
}

func TestOpenAIProvider(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"))
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "gpt-4o", body["model"])

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"chatcmpl-1","object":"chat.completion","created":1700000000,"model":"gpt-4o-2024-08-06",
			"choices":[{"index":0,"message":{"role":"assistant","content":"{\"summary\":\"s\"}"},"finish_reason":"stop"}],
			"usage":{"prompt_tokens":120,"completion_tokens":30,"total_tokens":150}}`))
	}))
	defer server.Close()

	provider := NewOpenAI(config.OpenAIConfig{
		APIKey:  "test-key",
		BaseURL: server.URL + "/v1/",
		Models:  config.ModelTiers{Fast: "gpt-4o-mini", Balanced: "gpt-4o-mini", Advanced: "gpt-4o"},
	}, 5*time.Second, zap.NewNop())

	completion, err := provider.Complete(context.Background(), Prompt{System: "sys", User: "user"}, SelectModel(6000))
	require.NoError(t, err)
	assert.Equal(t, `{"summary":"s"}`, completion.Text)
	assert.Equal(t, 120, completion.InputTokens)
	assert.Equal(t, 30, completion.OutputTokens)
	assert.Equal(t, "gpt-4o-2024-08-06", completion.Model)
}

func TestOpenAIProviderClassifiesStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"Incorrect API key provided","type":"invalid_request_error","code":"invalid_api_key"}}`))
	}))
	defer server.Close()

	provider := NewOpenAI(config.OpenAIConfig{APIKey: "bad", BaseURL: server.URL + "/v1/"}, 5*time.Second, zap.NewNop())

	_, err := provider.Complete(context.Background(), Prompt{User: "x"}, ModelConfig{Model: "gpt-4o-mini"})
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, classify.StatusCode(err))
	assert.Equal(t, classify.KindAPIKeyInvalid, classify.Classify(classify.SubsystemLLM, err).Kind)
}

func geminiResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{{Text: text}}},
		}},
		UsageMetadata: &genai.GenerateContentResponseUsageMetadata{
			PromptTokenCount:     50,
			CandidatesTokenCount: 10,
		},
	}
}

func TestGeminiRotatesKeys(t *testing.T) {
	gemini := NewGemini(config.GeminiConfig{
		APIKeys: []string{"k1", "k2"},
		Models:  config.ModelTiers{Fast: "gemini-2.0-flash", Balanced: "gemini-1.5-flash", Advanced: "gemini-1.5-pro"},
	}, zap.NewNop())

	var keys []string
	var models []string
	gemini.generate = func(ctx context.Context, key, model, prompt string, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
		keys = append(keys, key)
		models = append(models, model)
		if key == "k1" {
			return nil, errors.New("Error 429, Message: Resource has been exhausted, Status: RESOURCE_EXHAUSTED")
		}
		assert.Equal(t, "application/json", cfg.ResponseMIMEType)
		assert.Equal(t, int32(500), cfg.MaxOutputTokens)
		return geminiResponse(" answer "), nil
	}

	completion, err := gemini.Complete(context.Background(), Prompt{System: "s", User: "u"}, SelectModel(10))
	require.NoError(t, err)
	assert.Equal(t, "answer", completion.Text)
	assert.Equal(t, 50, completion.InputTokens)
	assert.Equal(t, 10, completion.OutputTokens)
	assert.Equal(t, "gemini-2.0-flash", completion.Model)
	assert.Equal(t, []string{"k1", "k2"}, keys)

	_, err = gemini.Complete(context.Background(), Prompt{User: "u"}, SelectModel(10))
	require.NoError(t, err)
	assert.Equal(t, "k2", keys[2])
}

func TestGeminiAllKeysExhausted(t *testing.T) {
	gemini := NewGemini(config.GeminiConfig{APIKeys: []string{"k1", "k2"}}, zap.NewNop())
	gemini.generate = func(ctx context.Context, key, model, prompt string, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
		return nil, errors.New("Error 429, Status: RESOURCE_EXHAUSTED, you exceeded your quota")
	}

	_, err := gemini.Complete(context.Background(), Prompt{User: "u"}, ModelConfig{Model: "gemini-1.5-pro"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all API keys exhausted")
	assert.Equal(t, classify.KindQuotaExceeded, classify.Classify(classify.SubsystemLLM, err).Kind)
}

func TestGeminiWithoutKeys(t *testing.T) {
	gemini := NewGemini(config.GeminiConfig{}, zap.NewNop())
	_, err := gemini.Complete(context.Background(), Prompt{User: "u"}, ModelConfig{})
	assert.Equal(t, classify.KindAPIKeyInvalid, classify.Classify(classify.SubsystemLLM, err).Kind)
}
