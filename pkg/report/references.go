// Package report reads reference lists and writes batch reports and
// analysis exports.
package report

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"media-digest-go/pkg/utils"
)

// referenceHeaders are header cells that name the reference column
var referenceHeaders = []string{"url", "link", "reference", "video", "playlist", "channel", "id"}

// ReadReferences loads references from a .xlsx workbook or a plain text file
// with one reference per line
func ReadReferences(path string) ([]string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return readWorkbookReferences(path)
	default:
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open references: %w", err)
		}
		defer f.Close()
		return ParseReferenceLines(f)
	}
}

// ParseReferenceLines reads one reference per line. Blank lines, # comments
// and repeated references are dropped. A line may hold several comma
// separated references.
func ParseReferenceLines(r io.Reader) ([]string, error) {
	var lines []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, strings.Split(line, ",")...)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read references: %w", err)
	}
	return utils.FilterReferences(lines), nil
}

func readWorkbookReferences(path string) ([]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook %s has no sheets", path)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	column, start := 0, 0
	if idx := referenceColumn(rows[0]); idx >= 0 {
		column, start = idx, 1
	}

	var cells []string
	for _, row := range rows[start:] {
		if column < len(row) {
			cells = append(cells, row[column])
		}
	}
	return utils.FilterReferences(cells), nil
}

// referenceColumn finds the reference column in a header row, -1 when the
// row is data rather than a header
func referenceColumn(header []string) int {
	for _, name := range referenceHeaders {
		for i, cell := range header {
			if strings.EqualFold(strings.TrimSpace(cell), name) {
				return i
			}
		}
	}
	for i, cell := range header {
		lower := strings.ToLower(cell)
		if strings.Contains(lower, "url") || strings.Contains(lower, "link") || strings.Contains(lower, "reference") {
			return i
		}
	}
	return -1
}
