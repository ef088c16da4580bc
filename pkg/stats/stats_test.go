package stats

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamingStats(t *testing.T) {
	s := NewStreamingStats()
	assert.Equal(t, Summary{LastUpdate: s.GetSummary().LastUpdate}, s.GetSummary())

	for _, v := range []float64{2, 4, 4, 4, 5, 5, 7, 9} {
		s.Update(v)
	}

	summary := s.GetSummary()
	assert.Equal(t, int64(8), summary.Count)
	assert.Equal(t, 5.0, summary.Mean)
	assert.Equal(t, 2.0, summary.Min)
	assert.Equal(t, 9.0, summary.Max)
	assert.InDelta(t, 2.138, summary.StdDev, 0.001)

	s.Reset()
	assert.Equal(t, int64(0), s.Count())
	assert.Equal(t, 0.0, s.Mean())
}

func TestCollectorOutcomes(t *testing.T) {
	c := NewCollector()
	c.RecordOutcome(OutcomeCompleted, "")
	c.RecordOutcome(OutcomeCompleted, "")
	c.RecordOutcome(OutcomeFailed, "no_captions")
	c.RecordOutcome(OutcomeFailed, "")
	c.RecordOutcome(OutcomeAlreadyExists, "")

	summary := c.GetSummary()
	assert.Equal(t, int64(2), summary.UnitsCompleted)
	assert.Equal(t, int64(2), summary.UnitsFailed)
	assert.Equal(t, int64(1), summary.UnitsAlreadyExist)
	assert.Equal(t, 50.0, summary.SuccessRate)
	assert.Equal(t, map[string]int64{"no_captions": 1, "unknown": 1}, summary.FailureKinds)
}

func TestCollectorUsageAndSteps(t *testing.T) {
	c := NewCollector()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.RecordUsage("openai", 100, 10, 0.01)
			c.RecordStep("ai_processing", 20*time.Millisecond)
		}()
	}
	wg.Wait()
	c.RecordUsage("gemini", 1, 1, 0.001)
	c.RecordEstimate(0.5)
	c.RecordTranscript("auto")

	summary := c.GetSummary()
	assert.Equal(t, int64(20), summary.Providers["openai"].Calls)
	assert.Equal(t, int64(2000), summary.Providers["openai"].InputTokens)
	assert.InDelta(t, 0.201, summary.ActualCost, 1e-9)
	assert.Equal(t, 0.5, summary.EstimatedCost)
	assert.Equal(t, int64(20), summary.Steps["ai_processing"].Count)
	assert.Equal(t, int64(1), summary.TranscriptTypes["auto"])
	assert.Equal(t, []string{"gemini", "openai"}, c.ProviderNames())

	data, err := c.ToJSON()
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Contains(t, decoded, "step_latency_ms")

	c.Reset()
	assert.Empty(t, c.GetSummary().Providers)
}

func TestNilCollectorIsNoop(t *testing.T) {
	var c *Collector
	c.RecordStep("x", time.Second)
	c.RecordOutcome(OutcomeFailed, "x")
	c.RecordUsage("p", 1, 1, 1)
	c.RecordEstimate(1)
	c.RecordTranscript("auto")
}
