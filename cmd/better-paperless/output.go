package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/Kenny1338/better-paperless-ngx/internal/core/domain"
)

func writeJSON(w io.Writer, payload any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(payload)
}

func resultStatus(r domain.ProcessingResult) string {
	switch {
	case r.Skipped:
		return "skipped"
	case r.Success:
		return "ok"
	default:
		return "failed"
	}
}

func renderResult(w io.Writer, r domain.ProcessingResult) {
	rows := [][]string{
		{"Document", strconv.Itoa(r.DocumentID)},
		{"Strategy", r.Strategy},
		{"Status", resultStatus(r)},
		{"Title", r.Title},
		{"Tags", strings.Join(r.Tags, ", ")},
		{"Correspondent", r.Correspondent},
	}
	if r.DocumentType != "" {
		rows = append(rows, []string{"Document type", r.DocumentType})
	}
	if date, ok := r.Metadata["document_date"].(string); ok && date != "" {
		rows = append(rows, []string{"Date", date})
	}
	if action, ok := r.Metadata["requires_action"].(bool); ok {
		rows = append(rows, []string{"Requires action", yesNo(action)})
	}
	if r.Summary != "" {
		rows = append(rows, []string{"Summary", r.Summary})
	}
	rows = append(rows,
		[]string{"Tokens", strconv.Itoa(r.TokensUsed)},
		[]string{"Cost", formatCost(r.Cost)},
		[]string{"Duration", r.ProcessingTime.Round(time.Millisecond).String()},
	)
	for _, msg := range r.Errors {
		rows = append(rows, []string{"Error", msg})
	}
	fmt.Fprintln(w, renderTable([]string{"Field", "Value"}, rows, nil))
}

func renderBatch(w io.Writer, results []domain.ProcessingResult, summary domain.BatchSummary) {
	rows := make([][]string, 0, len(results))
	for _, r := range results {
		rows = append(rows, []string{
			strconv.Itoa(r.DocumentID),
			resultStatus(r),
			r.Title,
			strings.Join(r.Tags, ", "),
			strconv.Itoa(r.TokensUsed),
			formatCost(r.Cost),
			strings.Join(r.Errors, "; "),
		})
	}
	if len(rows) > 0 {
		fmt.Fprintln(w, renderTable(
			[]string{"ID", "Status", "Title", "Tags", "Tokens", "Cost", "Errors"},
			rows,
			[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft},
		))
	}
	fmt.Fprintln(w, renderSummary(summary))
}

func renderSummary(s domain.BatchSummary) string {
	return renderTable(
		[]string{"Run", "Total", "Succeeded", "Skipped", "Failed", "Tokens", "Cost", "Avg time"},
		[][]string{{
			s.RunID,
			strconv.Itoa(s.Total),
			strconv.Itoa(s.Succeeded),
			strconv.Itoa(s.Skipped),
			strconv.Itoa(s.Failed),
			strconv.Itoa(s.TotalTokens),
			formatCost(s.TotalCost),
			s.AverageTime.Round(time.Millisecond).String(),
		}},
		[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight, alignRight, alignRight},
	)
}

func formatCost(cost float64) string {
	return fmt.Sprintf("$%.4f", cost)
}

// batchError turns a summary with failures into the command error.
func batchError(s domain.BatchSummary) error {
	if s.Failed == 0 {
		return nil
	}
	return fmt.Errorf("%d of %d documents failed", s.Failed, s.Total)
}
