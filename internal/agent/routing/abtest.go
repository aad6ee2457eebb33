package routing

import (
	"hash/fnv"
	"strconv"
	"sync/atomic"
)

// ABGroup labels which side of an A/B routing experiment a request landed
// in. Control is normal routing; Test is the inverted (second-best-choice)
// routing path.
type ABGroup string

const (
	ABGroupControl ABGroup = "control"
	ABGroupTest    ABGroup = "test"
)

// ABTestConfig configures the A/B sampler.
type ABTestConfig struct {
	Enabled    bool
	SampleRate float64 // 0.0-1.0, fraction assigned to Test
}

// DefaultABTestConfig returns a disabled sampler at a conservative 10% rate.
func DefaultABTestConfig() ABTestConfig {
	return ABTestConfig{Enabled: false, SampleRate: 0.1}
}

// ABTestSampler assigns requests to Control or Test using a thread-safe
// counter-based pseudo-random sampler: disabled, it always returns Control.
type ABTestSampler struct {
	config  ABTestConfig
	counter uint64
}

// NewABTestSampler constructs a sampler with the given configuration.
func NewABTestSampler(config ABTestConfig) *ABTestSampler {
	return &ABTestSampler{config: config}
}

// AssignGroup returns the group for the next request.
func (s *ABTestSampler) AssignGroup() ABGroup {
	if s == nil || !s.config.Enabled {
		return ABGroupControl
	}
	count := atomic.AddUint64(&s.counter, 1) - 1
	h := fnv.New64a()
	_, _ = h.Write([]byte(strconv.FormatUint(count, 10)))
	hash := h.Sum64()
	randomValue := float64(hash%10000) / 10000.0
	if randomValue < s.config.SampleRate {
		return ABGroupTest
	}
	return ABGroupControl
}

// Config returns the sampler's configuration.
func (s *ABTestSampler) Config() ABTestConfig {
	if s == nil {
		return ABTestConfig{}
	}
	return s.config
}

// ABGroupMetrics accumulates telemetry for one side of an A/B experiment.
type ABGroupMetrics struct {
	RequestCount      uint64
	TotalCost         float64
	SuccessfulRequest uint64
	FailedRequests    uint64
	TotalTokens       uint64
}

// SuccessRate returns the fraction of requests that succeeded, 0 if none.
func (m ABGroupMetrics) SuccessRate() float64 {
	if m.RequestCount == 0 {
		return 0
	}
	return float64(m.SuccessfulRequest) / float64(m.RequestCount)
}

// AvgCostPerRequest returns the mean cost per request, 0 if none.
func (m ABGroupMetrics) AvgCostPerRequest() float64 {
	if m.RequestCount == 0 {
		return 0
	}
	return m.TotalCost / float64(m.RequestCount)
}

func (m ABGroupMetrics) add(o ABGroupMetrics) ABGroupMetrics {
	return ABGroupMetrics{
		RequestCount:      m.RequestCount + o.RequestCount,
		TotalCost:         m.TotalCost + o.TotalCost,
		SuccessfulRequest: m.SuccessfulRequest + o.SuccessfulRequest,
		FailedRequests:    m.FailedRequests + o.FailedRequests,
		TotalTokens:       m.TotalTokens + o.TotalTokens,
	}
}

// ABComparisonReport summarizes the delta between an experiment's two
// groups.
type ABComparisonReport struct {
	Control                ABGroupMetrics
	Test                   ABGroupMetrics
	CostDifference         float64 // Test - Control, average cost per request
	SuccessRateDifference  float64 // Test - Control
}

// CompareGroups aggregates per-request metrics for each group and reports
// the cost and success-rate deltas between them.
func CompareGroups(controlRecords, testRecords []ABGroupMetrics) ABComparisonReport {
	var control, test ABGroupMetrics
	for _, m := range controlRecords {
		control = control.add(m)
	}
	for _, m := range testRecords {
		test = test.add(m)
	}
	return ABComparisonReport{
		Control:               control,
		Test:                  test,
		CostDifference:        test.AvgCostPerRequest() - control.AvgCostPerRequest(),
		SuccessRateDifference: test.SuccessRate() - control.SuccessRate(),
	}
}
