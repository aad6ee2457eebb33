package analytics

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"time"
)

var csvRecordHeader = []string{
	"timestamp", "agent_id", "plan_id", "model", "provider",
	"input_tokens", "output_tokens", "cached_tokens", "total_tokens", "estimated_cost",
}

// ExportRecordsCSV renders records as CSV with a fixed column order and
// ISO 8601 timestamps, matching the header row a caller would diff
// across runs.
func ExportRecordsCSV(records []CostRecord) (string, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(csvRecordHeader); err != nil {
		return "", fmt.Errorf("analytics: write csv header: %w", err)
	}
	for _, r := range records {
		row := []string{
			r.Timestamp.UTC().Format(time.RFC3339),
			r.AgentID,
			r.PlanID,
			r.Model,
			r.Provider,
			fmt.Sprintf("%d", r.InputTokens),
			fmt.Sprintf("%d", r.OutputTokens),
			fmt.Sprintf("%d", r.CachedTokens),
			fmt.Sprintf("%d", r.TotalTokens),
			fmt.Sprintf("%.4f", r.EstimatedCost),
		}
		if err := w.Write(row); err != nil {
			return "", fmt.Errorf("analytics: write csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("analytics: flush csv: %w", err)
	}
	return buf.String(), nil
}

// ExportSummaryCSV renders a multi-section CSV report: the period totals,
// then cost-by-provider/model/plan breakdowns with percentage-of-total
// columns, then a top-plans-by-cost section if provided.
func ExportSummaryCSV(summary Summary, byProvider, byModel, byPlan []GroupResult, topPlans []TopEntry) (string, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	writeRow := func(fields ...string) error {
		return w.Write(fields)
	}

	if err := writeRow("# Period Summary"); err != nil {
		return "", err
	}
	if err := writeRow("Start Date", summary.Start.UTC().Format(time.RFC3339)); err != nil {
		return "", err
	}
	if err := writeRow("End Date", summary.End.UTC().Format(time.RFC3339)); err != nil {
		return "", err
	}
	if err := writeRow("Total Cost", fmt.Sprintf("%.4f", summary.TotalCost)); err != nil {
		return "", err
	}
	if err := writeRow("Total Tokens", fmt.Sprintf("%d", summary.TotalTokens)); err != nil {
		return "", err
	}
	if err := writeRow(); err != nil {
		return "", err
	}

	if err := writeGroupSection(w, "# Cost by Provider", "Provider", byProvider, summary.TotalCost); err != nil {
		return "", err
	}
	if err := writeGroupSection(w, "# Cost by Model", "Model", byModel, summary.TotalCost); err != nil {
		return "", err
	}
	if err := writeGroupSection(w, "# Cost by Plan", "Plan ID", byPlan, summary.TotalCost); err != nil {
		return "", err
	}

	if len(topPlans) > 0 {
		if err := writeRow("# Top Plans by Cost"); err != nil {
			return "", err
		}
		if err := writeRow("Plan ID", "Cost"); err != nil {
			return "", err
		}
		for _, entry := range topPlans {
			if err := writeRow(entry.Key, fmt.Sprintf("%.4f", entry.Cost)); err != nil {
				return "", err
			}
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("analytics: flush summary csv: %w", err)
	}
	return buf.String(), nil
}

func writeGroupSection(w *csv.Writer, title, keyHeader string, groups []GroupResult, totalCost float64) error {
	if err := w.Write([]string{title}); err != nil {
		return err
	}
	if err := w.Write([]string{keyHeader, "Cost", "Percentage"}); err != nil {
		return err
	}
	for _, g := range groups {
		percentage := 0.0
		if totalCost > 0 {
			percentage = g.Cost / totalCost * 100
		}
		if err := w.Write([]string{g.Key, fmt.Sprintf("%.4f", g.Cost), fmt.Sprintf("%.2f%%", percentage)}); err != nil {
			return err
		}
	}
	return w.Write(nil)
}
