package analytics

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// Aggregator ingests cost records and answers summary, group-by, and
// top-N queries over them. Safe for concurrent use.
type Aggregator struct {
	mu      sync.RWMutex
	records []CostRecord
}

// NewAggregator returns an empty Aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{}
}

// Ingest appends a cost record.
func (a *Aggregator) Ingest(record CostRecord) {
	a.mu.Lock()
	a.records = append(a.records, record)
	a.mu.Unlock()
}

// IngestAll appends several cost records at once.
func (a *Aggregator) IngestAll(records []CostRecord) {
	a.mu.Lock()
	a.records = append(a.records, records...)
	a.mu.Unlock()
}

// Records returns every record within [start, end], inclusive. A zero
// start or end leaves that bound open.
func (a *Aggregator) Records(start, end time.Time) []CostRecord {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]CostRecord, 0, len(a.records))
	for _, r := range a.records {
		if inRange(r.Timestamp, start, end) {
			out = append(out, r)
		}
	}
	return out
}

func inRange(ts, start, end time.Time) bool {
	if !start.IsZero() && ts.Before(start) {
		return false
	}
	if !end.IsZero() && ts.After(end) {
		return false
	}
	return true
}

// TotalSummary returns the total cost and token usage over [start, end].
func (a *Aggregator) TotalSummary(start, end time.Time) Summary {
	records := a.Records(start, end)
	summary := Summary{Start: start, End: end, RecordCount: len(records)}
	for _, r := range records {
		summary.TotalCost += r.EstimatedCost
		summary.TotalTokens += r.TotalTokens
	}
	return summary
}

// GroupBy buckets records in [start, end] by dimension and returns one
// GroupResult per bucket, sorted by cost descending.
func (a *Aggregator) GroupBy(dimension GroupDimension, start, end time.Time) []GroupResult {
	records := a.Records(start, end)
	buckets := make(map[string]*GroupResult)
	order := make([]string, 0)

	for _, r := range records {
		key := groupKey(dimension, r)
		bucket, ok := buckets[key]
		if !ok {
			bucket = &GroupResult{Key: key}
			buckets[key] = bucket
			order = append(order, key)
		}
		bucket.Cost += r.EstimatedCost
		bucket.TotalTokens += r.TotalTokens
		bucket.Count++
	}

	results := make([]GroupResult, 0, len(order))
	for _, key := range order {
		results = append(results, *buckets[key])
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Cost > results[j].Cost
	})
	return results
}

func groupKey(dimension GroupDimension, r CostRecord) string {
	switch dimension {
	case GroupByPlan:
		return r.PlanID
	case GroupByModel:
		return r.Model
	case GroupByProvider:
		return r.Provider
	case GroupByDay:
		return r.Timestamp.UTC().Format("2006-01-02")
	case GroupByWeek:
		year, week := r.Timestamp.UTC().ISOWeek()
		return weekKey(year, week)
	case GroupByMonth:
		return r.Timestamp.UTC().Format("2006-01")
	default:
		return ""
	}
}

func weekKey(year, week int) string {
	return fmt.Sprintf("%d-W%02d", year, week)
}

// TopN returns the top n keys by cost for dimension over [start, end].
func (a *Aggregator) TopN(dimension GroupDimension, n int, start, end time.Time) []TopEntry {
	groups := a.GroupBy(dimension, start, end)
	if n > len(groups) {
		n = len(groups)
	}
	entries := make([]TopEntry, 0, n)
	for i := 0; i < n; i++ {
		entries = append(entries, TopEntry{Key: groups[i].Key, Cost: groups[i].Cost})
	}
	return entries
}
