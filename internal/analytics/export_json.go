package analytics

import (
	"encoding/json"
	"fmt"
	"time"
)

// jsonRecord mirrors CostRecord with explicit field ordering and tags so
// the exported JSON is stable for diffing across runs.
type jsonRecord struct {
	Timestamp     string  `json:"timestamp"`
	AgentID       string  `json:"agent_id"`
	PlanID        string  `json:"plan_id"`
	Model         string  `json:"model"`
	Provider      string  `json:"provider"`
	InputTokens   int64   `json:"input_tokens"`
	OutputTokens  int64   `json:"output_tokens"`
	CachedTokens  int64   `json:"cached_tokens"`
	TotalTokens   int64   `json:"total_tokens"`
	EstimatedCost float64 `json:"estimated_cost"`
}

// ExportRecordsJSON renders records as a JSON array with a stable field
// order per object, ISO 8601 timestamps, and two-space indentation.
func ExportRecordsJSON(records []CostRecord) (string, error) {
	out := make([]jsonRecord, 0, len(records))
	for _, r := range records {
		out = append(out, jsonRecord{
			Timestamp:     r.Timestamp.UTC().Format(time.RFC3339),
			AgentID:       r.AgentID,
			PlanID:        r.PlanID,
			Model:         r.Model,
			Provider:      r.Provider,
			InputTokens:   r.InputTokens,
			OutputTokens:  r.OutputTokens,
			CachedTokens:  r.CachedTokens,
			TotalTokens:   r.TotalTokens,
			EstimatedCost: r.EstimatedCost,
		})
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return "", fmt.Errorf("analytics: marshal json records: %w", err)
	}
	return string(data), nil
}

type jsonSummary struct {
	Start       string        `json:"start"`
	End         string        `json:"end"`
	TotalCost   float64       `json:"total_cost"`
	TotalTokens int64         `json:"total_tokens"`
	RecordCount int           `json:"record_count"`
	ByProvider  []GroupResult `json:"by_provider,omitempty"`
	ByModel     []GroupResult `json:"by_model,omitempty"`
	ByPlan      []GroupResult `json:"by_plan,omitempty"`
	TopPlans    []TopEntry    `json:"top_plans,omitempty"`
}

// ExportSummaryJSON renders a summary, its breakdowns, and a top-plans
// ranking as a single stably-ordered JSON object.
func ExportSummaryJSON(summary Summary, byProvider, byModel, byPlan []GroupResult, topPlans []TopEntry) (string, error) {
	out := jsonSummary{
		Start:       summary.Start.UTC().Format(time.RFC3339),
		End:         summary.End.UTC().Format(time.RFC3339),
		TotalCost:   summary.TotalCost,
		TotalTokens: summary.TotalTokens,
		RecordCount: summary.RecordCount,
		ByProvider:  byProvider,
		ByModel:     byModel,
		ByPlan:      byPlan,
		TopPlans:    topPlans,
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return "", fmt.Errorf("analytics: marshal json summary: %w", err)
	}
	return string(data), nil
}
