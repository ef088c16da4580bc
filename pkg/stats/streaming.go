package stats

import (
	"math"
	"sync"
	"time"
)

// StreamingStats keeps count, mean, variance and range of a series in O(1)
// memory
type StreamingStats struct {
	mu          sync.RWMutex
	count       int64
	sum         float64
	sumSquares  float64
	min         float64
	max         float64
	lastUpdated time.Time
}

// NewStreamingStats creates a new StreamingStats instance
func NewStreamingStats() *StreamingStats {
	s := &StreamingStats{}
	s.reset()
	return s
}

// Update adds a new value to the statistics
func (s *StreamingStats) Update(value float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.count++
	s.sum += value
	s.sumSquares += value * value
	s.min = math.Min(s.min, value)
	s.max = math.Max(s.max, value)
	s.lastUpdated = time.Now()
}

// Count returns the number of values processed
func (s *StreamingStats) Count() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.count
}

// Mean returns the arithmetic mean of all values
func (s *StreamingStats) Mean() float64 {
	return s.GetSummary().Mean
}

// Summary is a snapshot of a series
type Summary struct {
	Count      int64     `json:"count"`
	Sum        float64   `json:"sum"`
	Mean       float64   `json:"mean"`
	Min        float64   `json:"min"`
	Max        float64   `json:"max"`
	StdDev     float64   `json:"std_dev"`
	LastUpdate time.Time `json:"last_update"`
}

// GetSummary returns a consistent snapshot taken under one lock
func (s *StreamingStats) GetSummary() Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summary := Summary{
		Count:      s.count,
		Sum:        s.sum,
		LastUpdate: s.lastUpdated,
	}
	if s.count == 0 {
		return summary
	}

	summary.Mean = s.sum / float64(s.count)
	summary.Min = s.min
	summary.Max = s.max
	if s.count > 1 {
		// Sample variance: (sum_squares - n * mean^2) / (n - 1)
		variance := (s.sumSquares - float64(s.count)*summary.Mean*summary.Mean) / float64(s.count-1)
		summary.StdDev = math.Sqrt(math.Max(variance, 0))
	}
	return summary
}

// Reset clears all statistics
func (s *StreamingStats) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset()
}

func (s *StreamingStats) reset() {
	s.count = 0
	s.sum = 0
	s.sumSquares = 0
	s.min = math.Inf(1)
	s.max = math.Inf(-1)
	s.lastUpdated = time.Now()
}
