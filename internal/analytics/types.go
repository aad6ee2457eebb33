// Package analytics aggregates per-request cost records into summaries,
// group-by breakdowns, and top-N rankings, with CSV and JSON exporters
// suitable for diffing across runs.
package analytics

import "time"

// CostRecord is one model invocation's token usage and estimated spend.
type CostRecord struct {
	Timestamp     time.Time
	AgentID       string
	PlanID        string
	Model         string
	Provider      string
	InputTokens   int64
	OutputTokens  int64
	CachedTokens  int64
	TotalTokens   int64
	EstimatedCost float64
}

// GroupDimension names a field CostRecords can be grouped by.
type GroupDimension string

const (
	GroupByPlan     GroupDimension = "plan"
	GroupByModel    GroupDimension = "model"
	GroupByProvider GroupDimension = "provider"
	GroupByDay      GroupDimension = "day"
	GroupByWeek     GroupDimension = "week"
	GroupByMonth    GroupDimension = "month"
)

// GroupResult is one key's aggregated cost and token usage within a
// group-by breakdown.
type GroupResult struct {
	Key         string
	Cost        float64
	TotalTokens int64
	Count       int
}

// Summary is the total cost/token usage over a date range.
type Summary struct {
	Start       time.Time
	End         time.Time
	TotalCost   float64
	TotalTokens int64
	RecordCount int
}

// TopEntry is one row of a top-N-by-cost ranking.
type TopEntry struct {
	Key  string
	Cost float64
}
