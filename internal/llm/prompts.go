package llm

import (
	"fmt"
	"strings"

	"media-digest-go/internal/model"
	"media-digest-go/pkg/utils"
)

const systemPrompt = "You analyze transcripts of videos. Answer with a single JSON object and nothing else."

// SummaryOptions tunes GenerateSummary
type SummaryOptions struct {
	Length            model.SummaryLength
	Focus             model.SummaryFocus
	IncludeTopics     bool
	PreferredProvider string
}

// TopicOptions tunes ExtractTopics
type TopicOptions struct {
	MaxTopics         int
	MinConfidence     float64
	IncludeSubtopics  bool
	PreferredProvider string
}

// Defaults for topic extraction
const (
	DefaultMaxTopics     = 10
	DefaultMinConfidence = 0.7
)

// withDefaults fills unset topic options
func (o TopicOptions) withDefaults() TopicOptions {
	if o.MaxTopics <= 0 {
		o.MaxTopics = DefaultMaxTopics
	}
	if o.MinConfidence <= 0 {
		o.MinConfidence = DefaultMinConfidence
	}
	return o
}

var lengthGuide = map[model.SummaryLength]string{
	model.SummaryShort:  "2-3 sentences and at most 3 key points",
	model.SummaryMedium: "one or two paragraphs and 3-6 key points",
	model.SummaryLong:   "several detailed paragraphs and up to 10 key points",
}

var focusGuide = map[model.SummaryFocus]string{
	model.FocusOverview:   "Give a balanced overview of what the video covers.",
	model.FocusKeyPoints:  "Concentrate on the most important claims and facts.",
	model.FocusActionable: "Concentrate on concrete steps and advice a viewer can act on.",
}

// BuildSummaryPrompt asks for a title, summary, key points, optional topics
// and a confidence score. text is cut to maxChars when maxChars > 0.
func BuildSummaryPrompt(text string, meta *model.ItemMetadata, opts SummaryOptions, maxChars int) Prompt {
	var b strings.Builder

	b.WriteString("Summarize the transcript below.\n")
	fmt.Fprintf(&b, "Length: %s.\n", lengthGuide[opts.Length])
	b.WriteString(focusGuide[opts.Focus])
	b.WriteString("\n\nReturn JSON with these fields:\n")
	b.WriteString(`{"title": string, "summary": string, "key_points": [string]`)
	if opts.IncludeTopics {
		b.WriteString(`, "topics": [{"name": string, "description": string, "confidence": number, "frequency": number, "keywords": [string]}]`)
	}
	b.WriteString(`, "confidence": number between 0 and 1}`)
	b.WriteString("\n\n")

	if meta != nil {
		if meta.Title != "" {
			fmt.Fprintf(&b, "Video title: %s\n", meta.Title)
		}
		if meta.ChannelTitle != "" {
			fmt.Fprintf(&b, "Channel: %s\n", meta.ChannelTitle)
		}
		if meta.Description != "" {
			fmt.Fprintf(&b, "Description: %s\n", utils.TruncateString(meta.Description, 500))
		}
		b.WriteString("\n")
	}

	b.WriteString("Transcript:\n---\n")
	b.WriteString(truncate(text, maxChars))
	b.WriteString("\n---")

	return Prompt{System: systemPrompt, User: b.String()}
}

// BuildTopicsPrompt asks for up to MaxTopics topics across the pieces
func BuildTopicsPrompt(pieces []string, opts TopicOptions, maxChars int) Prompt {
	opts = opts.withDefaults()

	var b strings.Builder
	fmt.Fprintf(&b, "Extract at most %d topics discussed in the content below. ", opts.MaxTopics)
	fmt.Fprintf(&b, "Only include topics with confidence of at least %.2f.\n", opts.MinConfidence)
	b.WriteString("\nReturn JSON with these fields:\n")
	b.WriteString(`{"topics": [{"name": string, "description": string, "confidence": number, "frequency": number, "keywords": [string]}]`)
	if opts.IncludeSubtopics {
		b.WriteString(`, "relationships": [{"parent": string, "child": string}]`)
		b.WriteString("}\nUse relationships to link broad topics to their subtopics.")
	} else {
		b.WriteString("}")
	}
	b.WriteString("\n\nContent:\n")

	budget := maxChars
	for i, piece := range pieces {
		if maxChars > 0 && budget <= 0 {
			break
		}
		part := piece
		if maxChars > 0 {
			part = truncate(piece, budget)
			budget -= len(part)
		}
		fmt.Fprintf(&b, "--- piece %d ---\n%s\n", i+1, part)
	}

	return Prompt{System: systemPrompt, User: b.String()}
}

// truncate cuts text to maxChars bytes on a word boundary
func truncate(text string, maxChars int) string {
	if maxChars <= 0 || len(text) <= maxChars {
		return text
	}
	cut := text[:maxChars]
	if i := strings.LastIndexByte(cut, ' '); i > maxChars/2 {
		cut = cut[:i]
	}
	return strings.ToValidUTF8(cut, "")
}
