// Package stats aggregates pipeline statistics: step latency, unit outcomes,
// failure kinds and language-model usage.
package stats

import (
	"encoding/json"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Unit outcomes recorded by RecordOutcome
const (
	OutcomeCompleted     = "completed"
	OutcomeFailed        = "failed"
	OutcomeAlreadyExists = "already_exists"
)

// Collector aggregates statistics across pipeline runs. It is safe for
// concurrent use.
type Collector struct {
	// Counters
	unitsCompleted int64
	unitsFailed    int64
	unitsExisting  int64
	lastUpdate     int64

	mu           sync.RWMutex
	steps        map[string]*StreamingStats
	failureKinds map[string]int64
	transcripts  map[string]int64
	providers    map[string]*ProviderUsage
	estimated    float64
	actual       float64

	startTime time.Time
}

// ProviderUsage is the language-model usage of one provider
type ProviderUsage struct {
	Calls        int64   `json:"calls"`
	InputTokens  int64   `json:"input_tokens"`
	OutputTokens int64   `json:"output_tokens"`
	Cost         float64 `json:"cost"`
}

// NewCollector creates a new statistics collector
func NewCollector() *Collector {
	c := &Collector{}
	c.reset()
	return c
}

// RecordStep records how long a pipeline step took
func (c *Collector) RecordStep(step string, duration time.Duration) {
	if c == nil {
		return
	}
	c.mu.Lock()
	series, ok := c.steps[step]
	if !ok {
		series = NewStreamingStats()
		c.steps[step] = series
	}
	c.mu.Unlock()

	series.Update(float64(duration.Milliseconds()))
	c.touch()
}

// RecordOutcome records the final status of one unit. failureKind is only
// counted for failed outcomes.
func (c *Collector) RecordOutcome(outcome, failureKind string) {
	if c == nil {
		return
	}
	switch outcome {
	case OutcomeCompleted:
		atomic.AddInt64(&c.unitsCompleted, 1)
	case OutcomeAlreadyExists:
		atomic.AddInt64(&c.unitsExisting, 1)
	default:
		atomic.AddInt64(&c.unitsFailed, 1)
		if failureKind == "" {
			failureKind = "unknown"
		}
		c.mu.Lock()
		c.failureKinds[failureKind]++
		c.mu.Unlock()
	}
	c.touch()
}

// RecordTranscript counts how a transcript was obtained
func (c *Collector) RecordTranscript(transcriptType string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.transcripts[transcriptType]++
	c.mu.Unlock()
	c.touch()
}

// RecordUsage records one language-model call
func (c *Collector) RecordUsage(provider string, inputTokens, outputTokens int, cost float64) {
	if c == nil {
		return
	}
	c.mu.Lock()
	usage, ok := c.providers[provider]
	if !ok {
		usage = &ProviderUsage{}
		c.providers[provider] = usage
	}
	usage.Calls++
	usage.InputTokens += int64(inputTokens)
	usage.OutputTokens += int64(outputTokens)
	usage.Cost += cost
	c.actual += cost
	c.mu.Unlock()
	c.touch()
}

// RecordEstimate adds a pre-flight cost estimate
func (c *Collector) RecordEstimate(cost float64) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.estimated += cost
	c.mu.Unlock()
	c.touch()
}

// UnitsCompleted returns the number of completed units
func (c *Collector) UnitsCompleted() int64 {
	return atomic.LoadInt64(&c.unitsCompleted)
}

// UnitsFailed returns the number of failed units
func (c *Collector) UnitsFailed() int64 {
	return atomic.LoadInt64(&c.unitsFailed)
}

// SuccessRate returns completed units as a percentage of finished units
func (c *Collector) SuccessRate() float64 {
	total := c.UnitsCompleted() + c.UnitsFailed()
	if total == 0 {
		return 0
	}
	return float64(c.UnitsCompleted()) / float64(total) * 100
}

// LastUpdated returns the time of the last update
func (c *Collector) LastUpdated() time.Time {
	return time.Unix(atomic.LoadInt64(&c.lastUpdate), 0)
}

func (c *Collector) touch() {
	atomic.StoreInt64(&c.lastUpdate, time.Now().Unix())
}

// CollectorSummary is a snapshot of all statistics
type CollectorSummary struct {
	UnitsCompleted    int64                    `json:"units_completed"`
	UnitsFailed       int64                    `json:"units_failed"`
	UnitsAlreadyExist int64                    `json:"units_already_exist"`
	SuccessRate       float64                  `json:"success_rate_percent"`
	Steps             map[string]Summary       `json:"step_latency_ms"`
	FailureKinds      map[string]int64         `json:"failure_kinds"`
	TranscriptTypes   map[string]int64         `json:"transcript_types"`
	Providers         map[string]ProviderUsage `json:"providers"`
	EstimatedCost     float64                  `json:"estimated_cost"`
	ActualCost        float64                  `json:"actual_cost"`
	StartTime         time.Time                `json:"start_time"`
	LastUpdate        time.Time                `json:"last_update"`
	ElapsedTime       string                   `json:"elapsed_time"`
}

// GetSummary returns a snapshot of all statistics
func (c *Collector) GetSummary() CollectorSummary {
	c.mu.RLock()
	defer c.mu.RUnlock()

	summary := CollectorSummary{
		UnitsCompleted:    c.UnitsCompleted(),
		UnitsFailed:       c.UnitsFailed(),
		UnitsAlreadyExist: atomic.LoadInt64(&c.unitsExisting),
		SuccessRate:       c.SuccessRate(),
		Steps:             make(map[string]Summary, len(c.steps)),
		FailureKinds:      copyCounts(c.failureKinds),
		TranscriptTypes:   copyCounts(c.transcripts),
		Providers:         make(map[string]ProviderUsage, len(c.providers)),
		EstimatedCost:     c.estimated,
		ActualCost:        c.actual,
		StartTime:         c.startTime,
		LastUpdate:        c.LastUpdated(),
		ElapsedTime:       time.Since(c.startTime).String(),
	}
	for step, series := range c.steps {
		summary.Steps[step] = series.GetSummary()
	}
	for name, usage := range c.providers {
		summary.Providers[name] = *usage
	}
	return summary
}

// ProviderNames returns the providers seen so far, sorted
func (c *Collector) ProviderNames() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.providers))
	for name := range c.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ToJSON returns the summary as JSON
func (c *Collector) ToJSON() ([]byte, error) {
	return json.MarshalIndent(c.GetSummary(), "", "  ")
}

// Reset clears all statistics
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reset()
}

func (c *Collector) reset() {
	atomic.StoreInt64(&c.unitsCompleted, 0)
	atomic.StoreInt64(&c.unitsFailed, 0)
	atomic.StoreInt64(&c.unitsExisting, 0)
	c.steps = make(map[string]*StreamingStats)
	c.failureKinds = make(map[string]int64)
	c.transcripts = make(map[string]int64)
	c.providers = make(map[string]*ProviderUsage)
	c.estimated = 0
	c.actual = 0
	c.startTime = time.Now()
	atomic.StoreInt64(&c.lastUpdate, c.startTime.Unix())
}

func copyCounts(in map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
