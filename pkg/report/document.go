package report

import (
	"fmt"
	"strings"

	"github.com/gomutex/godocx"
	"github.com/gomutex/godocx/docx"

	"media-digest-go/internal/model"
)

const (
	fontName  = "Calibri"
	fontSize  = 11
	titleSize = 18
	headSize  = 14
)

// Export is what goes into an analysis document
type Export struct {
	Unit       *model.ContentUnit
	Analysis   *model.AnalysisResult
	Transcript *model.Transcript // optional
}

// ExportAnalysis writes the analysis of a unit as a .docx document
func ExportAnalysis(path string, export Export) error {
	if export.Unit == nil || export.Analysis == nil {
		return fmt.Errorf("export needs a unit and its analysis")
	}
	unit, analysis := export.Unit, export.Analysis

	doc, err := godocx.NewDocument()
	if err != nil {
		return fmt.Errorf("create document: %w", err)
	}

	title := analysis.Title
	if title == "" {
		title = unit.Title
	}
	if title == "" {
		title = unit.ExternalID
	}
	addRun(doc.AddParagraph(""), title, true, titleSize)
	addRun(doc.AddParagraph(""),
		fmt.Sprintf("%s %s · %s/%s · $%.6f", unit.Source, unit.ExternalID, analysis.Provider, analysis.Model, analysis.Cost),
		false, fontSize-2)

	heading(doc, "Summary")
	for _, para := range strings.Split(analysis.Summary, "\n\n") {
		if para = strings.TrimSpace(para); para != "" {
			addRun(doc.AddParagraph(""), para, false, fontSize)
		}
	}

	if len(analysis.KeyPoints) > 0 {
		heading(doc, "Key Points")
		for _, point := range analysis.KeyPoints {
			addRun(doc.AddParagraph(""), "• "+point, false, fontSize)
		}
	}

	if len(analysis.Topics) > 0 {
		heading(doc, "Topics")
		for _, topic := range analysis.Topics {
			p := doc.AddParagraph("")
			addRun(p, topic.Name, true, fontSize)
			line := fmt.Sprintf(" (%.0f%%)", topic.Confidence*100)
			if topic.Description != "" {
				line += ": " + topic.Description
			}
			addRun(p, line, false, fontSize)
		}
	}

	if t := export.Transcript; t != nil && t.ProcessedText != "" {
		heading(doc, "Transcript")
		addRun(doc.AddParagraph(""), fmt.Sprintf("Source: %s, language: %s", t.Type, t.Language), false, fontSize-2)
		addRun(doc.AddParagraph(""), t.ProcessedText, false, fontSize)
	}

	if err := doc.SaveTo(path); err != nil {
		return fmt.Errorf("save document: %w", err)
	}
	return nil
}

func heading(doc *docx.RootDoc, text string) {
	doc.AddParagraph("")
	addRun(doc.AddParagraph(""), text, true, headSize)
}

func addRun(p *docx.Paragraph, text string, bold bool, size uint64) {
	run := p.AddText(text).Font(fontName).Size(size).Color("000000")
	if bold {
		run.Bold(true)
	}
}
