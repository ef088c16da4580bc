package report

import (
	"fmt"
	"sort"
	"strings"

	"github.com/xuri/excelize/v2"

	"media-digest-go/internal/batch"
	"media-digest-go/internal/model"
)

const (
	sheetProcessed = "Processed"
	sheetErrors    = "Errors"
	sheetSummary   = "Summary"
)

var (
	processedHeader = []any{"Unit ID", "External ID", "Title", "Status", "Transcript", "Provider", "Model", "Estimated Cost", "Cost", "Topics", "Summary"}
	errorsHeader    = []any{"Reference", "External ID", "Unit ID", "Subsystem", "Kind", "Failed Step", "Retryable", "Provider", "Message", "Suggested Action"}
)

// WriteBatchReport writes the outcome of a batch as a three-sheet workbook
func WriteBatchReport(path string, result *batch.Result) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetProcessed); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(sheetErrors); err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}
	if _, err := f.NewSheet(sheetSummary); err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create style: %w", err)
	}

	processed := make([][]any, 0, len(result.Processed))
	for _, res := range result.Processed {
		row := []any{res.UnitID, res.ExternalID, res.Title, string(res.Status), string(res.TranscriptType), "", "", res.EstimatedCost, res.Cost, "", ""}
		if a := res.Analysis; a != nil {
			row[5] = a.Provider
			row[6] = a.Model
			row[9] = topicNames(a.Topics)
			row[10] = a.Summary
		}
		processed = append(processed, row)
	}
	if err := writeTable(f, sheetProcessed, processedHeader, processed, headerStyle); err != nil {
		return err
	}

	errs := make([][]any, 0, len(result.Errors))
	for _, e := range result.Errors {
		errs = append(errs, []any{e.Reference, e.ExternalID, e.UnitID, e.Subsystem, e.Kind, string(e.FailedStep), e.Retryable, e.Provider, e.Message, e.SuggestedAction})
	}
	if err := writeTable(f, sheetErrors, errorsHeader, errs, headerStyle); err != nil {
		return err
	}

	summary := [][]any{
		{"Run ID", result.RunID},
		{"Started", result.StartedAt.Format("2006-01-02 15:04:05")},
		{"Duration", result.Duration().String()},
		{"Items", result.Items},
		{"Chunks", result.Chunks},
		{"Processed", len(result.Processed)},
		{"Errors", len(result.Errors)},
		{"Total Estimated Cost", result.TotalEstimatedCost},
		{"Total Cost", result.TotalCost},
	}
	kinds := errorKinds(result)
	names := make([]string, 0, len(kinds))
	for kind := range kinds {
		names = append(names, kind)
	}
	sort.Strings(names)
	for _, kind := range names {
		summary = append(summary, []any{"Errors: " + kind, kinds[kind]})
	}
	if err := writeTable(f, sheetSummary, []any{"Metric", "Value"}, summary, headerStyle); err != nil {
		return err
	}

	if err := f.SetColWidth(sheetProcessed, "C", "C", 40); err != nil {
		return err
	}
	if err := f.SetColWidth(sheetErrors, "I", "J", 60); err != nil {
		return err
	}
	if err := f.SetColWidth(sheetSummary, "A", "A", 28); err != nil {
		return err
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save report: %w", err)
	}
	return nil
}

func writeTable(f *excelize.File, sheet string, header []any, rows [][]any, headerStyle int) error {
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("write %s header: %w", sheet, err)
	}
	last, err := excelize.CoordinatesToCellName(len(header), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", last, headerStyle); err != nil {
		return fmt.Errorf("style %s header: %w", sheet, err)
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, i+2, err)
		}
	}
	return nil
}

func errorKinds(result *batch.Result) map[string]int {
	kinds := make(map[string]int)
	for _, e := range result.Errors {
		kinds[e.Kind]++
	}
	return kinds
}

func topicNames(topics []model.Topic) string {
	names := make([]string, len(topics))
	for i, topic := range topics {
		names[i] = topic.Name
	}
	return strings.Join(names, ", ")
}
