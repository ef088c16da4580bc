package report

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"media-digest-go/internal/batch"
	"media-digest-go/internal/model"
	"media-digest-go/internal/orchestrator"
)

func TestParseReferenceLines(t *testing.T) {
	input := `# weekly list
dQw4w9WgXcQ

https://youtu.be/aaaaaaaaaaa, @creator
  PLtestlist0001  
dQw4w9WgXcQ # again
`
	refs, err := ParseReferenceLines(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, []string{"dQw4w9WgXcQ", "https://youtu.be/aaaaaaaaaaa", "@creator", "PLtestlist0001"}, refs)
}

func writeWorkbook(t *testing.T, rows [][]any) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "refs.xlsx")
	f := excelize.NewFile()
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &row))
	}
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())
	return path
}

func TestReadReferencesFromWorkbookWithHeader(t *testing.T) {
	path := writeWorkbook(t, [][]any{
		{"Notes", "URL"},
		{"first", "dQw4w9WgXcQ"},
		{"blank", ""},
		{"second", "@creator"},
	})

	refs, err := ReadReferences(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"dQw4w9WgXcQ", "@creator"}, refs)
}

func TestReadReferencesFromWorkbookWithoutHeader(t *testing.T) {
	path := writeWorkbook(t, [][]any{
		{"dQw4w9WgXcQ"},
		{"PLtestlist0001"},
	})

	refs, err := ReadReferences(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"dQw4w9WgXcQ", "PLtestlist0001"}, refs)
}

func TestReadReferencesFromTextFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "refs.txt")
	require.NoError(t, os.WriteFile(path, []byte("dQw4w9WgXcQ\n# skip\n@creator\n"), 0o644))

	refs, err := ReadReferences(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"dQw4w9WgXcQ", "@creator"}, refs)

	_, err = ReadReferences(filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}

func TestWriteBatchReport(t *testing.T) {
	started := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	result := &batch.Result{
		RunID: "run-1",
		Processed: []*orchestrator.Result{
			{
				UnitID:         "unit-1",
				ExternalID:     "dQw4w9WgXcQ",
				Title:          "A talk",
				Status:         orchestrator.StatusCompleted,
				TranscriptType: model.TranscriptAuto,
				EstimatedCost:  0.0012,
				Cost:           0.0009,
				Analysis: &model.AnalysisResult{
					Summary:  "Short summary.",
					Provider: "openai",
					Model:    "gpt-4o-mini",
					Topics:   []model.Topic{{Name: "Go"}, {Name: "Testing"}},
				},
			},
		},
		Errors: []batch.ItemError{
			{Reference: "@nobody", Subsystem: "metadata", Kind: "container_not_found", Message: "not found"},
			{Reference: "vid00000002", Subsystem: "transcript", Kind: "no_captions", FailedStep: model.StepExtractingTranscript},
		},
		TotalEstimatedCost: 0.0012,
		TotalCost:          0.0009,
		Items:              2,
		Chunks:             1,
		StartedAt:          started,
		FinishedAt:         started.Add(3 * time.Second),
	}

	path := filepath.Join(t.TempDir(), "report.xlsx")
	require.NoError(t, WriteBatchReport(path, result))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{sheetProcessed, sheetErrors, sheetSummary}, f.GetSheetList())

	rows, err := f.GetRows(sheetProcessed)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Unit ID", rows[0][0])
	assert.Equal(t, "unit-1", rows[1][0])
	assert.Equal(t, "openai", rows[1][5])
	assert.Equal(t, "Go, Testing", rows[1][9])

	rows, err = f.GetRows(sheetErrors)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "@nobody", rows[1][0])
	assert.Equal(t, "extracting_transcript", rows[2][5])

	rows, err = f.GetRows(sheetSummary)
	require.NoError(t, err)
	assert.Equal(t, []string{"Run ID", "run-1"}, rows[1])
	assert.Equal(t, []string{"Duration", "3s"}, rows[3])
	assert.Equal(t, []string{"Errors: container_not_found", "1"}, rows[len(rows)-2])
	assert.Equal(t, []string{"Errors: no_captions", "1"}, rows[len(rows)-1])
}

func documentXML(t *testing.T, path string) string {
	t.Helper()
	r, err := zip.OpenReader(path)
	require.NoError(t, err)
	defer r.Close()
	for _, f := range r.File {
		if f.Name == "word/document.xml" {
			rc, err := f.Open()
			require.NoError(t, err)
			defer rc.Close()
			body, err := io.ReadAll(rc)
			require.NoError(t, err)
			return string(body)
		}
	}
	t.Fatal("word/document.xml missing")
	return ""
}

func TestExportAnalysis(t *testing.T) {
	path := filepath.Join(t.TempDir(), "analysis.docx")
	err := ExportAnalysis(path, Export{
		Unit: &model.ContentUnit{Source: "youtube", ExternalID: "dQw4w9WgXcQ", Title: "Unit title"},
		Analysis: &model.AnalysisResult{
			Title:     "Analysis title",
			Summary:   "First paragraph.\n\nSecond paragraph.",
			KeyPoints: []string{"Point one"},
			Topics:    []model.Topic{{Name: "Concurrency", Confidence: 0.9, Description: "goroutines"}},
			Provider:  "openai",
			Model:     "gpt-4o-mini",
		},
		Transcript: &model.Transcript{ProcessedText: "Hello there.", Type: model.TranscriptAuto, Language: "en"},
	})
	require.NoError(t, err)

	xml := documentXML(t, path)
	for _, want := range []string{"Analysis title", "Second paragraph.", "Point one", "Concurrency", "Hello there."} {
		assert.Contains(t, xml, want)
	}
}

func TestExportAnalysisNeedsAnalysis(t *testing.T) {
	err := ExportAnalysis(filepath.Join(t.TempDir(), "x.docx"), Export{Unit: &model.ContentUnit{}})
	assert.Error(t, err)
}
