package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"media-digest-go/internal/model"
)

// ParseError reports a response that could not be read as the expected JSON
type ParseError struct {
	Operation string
	Raw       string
	Err       error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parsing %s response: %v", e.Operation, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Summary is a parsed summary response
type Summary struct {
	Title      string        `json:"title"`
	Summary    string        `json:"summary"`
	KeyPoints  []string      `json:"key_points"`
	Topics     []model.Topic `json:"topics"`
	Confidence float64       `json:"confidence"`
}

// TopicSet is a parsed topics response
type TopicSet struct {
	Topics        []model.Topic             `json:"topics"`
	Relationships []model.TopicRelationship `json:"relationships"`
}

// FallbackConfidence marks a summary built from an unparseable response
const FallbackConfidence = 0.5

// FallbackSummary wraps an unparseable response as a low-confidence summary
func FallbackSummary(raw string) *Summary {
	return &Summary{
		Title:      "Summary",
		Summary:    strings.TrimSpace(raw),
		KeyPoints:  []string{},
		Topics:     []model.Topic{},
		Confidence: FallbackConfidence,
	}
}

type rawSummary struct {
	Title      string        `json:"title"`
	Summary    string        `json:"summary"`
	KeyPoints  []string      `json:"key_points"`
	KeyPoints2 []string      `json:"keyPoints"`
	Topics     []model.Topic `json:"topics"`
	Confidence *float64      `json:"confidence"`
}

// ParseSummary reads a summary response
func ParseSummary(text string) (*Summary, error) {
	candidate := extractJSON(text)
	if candidate == "" {
		return nil, &ParseError{Operation: "summary", Raw: text, Err: errors.New("no JSON object found")}
	}

	var raw rawSummary
	if err := json.Unmarshal([]byte(candidate), &raw); err != nil {
		return nil, &ParseError{Operation: "summary", Raw: text, Err: err}
	}
	if strings.TrimSpace(raw.Summary) == "" {
		return nil, &ParseError{Operation: "summary", Raw: text, Err: errors.New("summary field is empty")}
	}

	summary := &Summary{
		Title:     strings.TrimSpace(raw.Title),
		Summary:   strings.TrimSpace(raw.Summary),
		KeyPoints: cleanList(raw.KeyPoints),
		Topics:    cleanTopics(raw.Topics),
	}
	if len(summary.KeyPoints) == 0 {
		summary.KeyPoints = cleanList(raw.KeyPoints2)
	}
	if summary.Title == "" {
		summary.Title = "Summary"
	}
	if raw.Confidence != nil {
		summary.Confidence = clamp01(*raw.Confidence)
	} else {
		summary.Confidence = FallbackConfidence
	}
	return summary, nil
}

// ParseTopics reads a topics response
func ParseTopics(text string) (*TopicSet, error) {
	candidate := extractJSON(text)
	if candidate == "" {
		return nil, &ParseError{Operation: "topics", Raw: text, Err: errors.New("no JSON object found")}
	}

	var set TopicSet
	if err := json.Unmarshal([]byte(candidate), &set); err != nil {
		return nil, &ParseError{Operation: "topics", Raw: text, Err: err}
	}
	if set.Topics == nil {
		return nil, &ParseError{Operation: "topics", Raw: text, Err: errors.New("topics field is missing")}
	}

	set.Topics = cleanTopics(set.Topics)
	relationships := set.Relationships[:0]
	for _, rel := range set.Relationships {
		rel.Parent = strings.TrimSpace(rel.Parent)
		rel.Child = strings.TrimSpace(rel.Child)
		if rel.Parent != "" && rel.Child != "" && !strings.EqualFold(rel.Parent, rel.Child) {
			relationships = append(relationships, rel)
		}
	}
	set.Relationships = relationships
	if set.Relationships == nil {
		set.Relationships = []model.TopicRelationship{}
	}
	return &set, nil
}

// EmptyTopics is the result of an unparseable topics response
func EmptyTopics() *TopicSet {
	return &TopicSet{Topics: []model.Topic{}, Relationships: []model.TopicRelationship{}}
}

func cleanTopics(topics []model.Topic) []model.Topic {
	out := make([]model.Topic, 0, len(topics))
	for _, topic := range topics {
		topic.Name = strings.TrimSpace(topic.Name)
		if topic.Name == "" {
			continue
		}
		topic.Description = strings.TrimSpace(topic.Description)
		topic.Confidence = clamp01(topic.Confidence)
		if topic.Frequency < 0 {
			topic.Frequency = 0
		}
		topic.Keywords = cleanList(topic.Keywords)
		out = append(out, topic)
	}
	return out
}

func cleanList(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

// extractJSON finds the first balanced JSON object in a string, skipping
// markdown fences and braces inside string literals
func extractJSON(s string) string {
	if s == "" {
		return ""
	}

	s = strings.ReplaceAll(s, "\r\n", "\n")
	for _, fence := range []string{"```json", "```JSON", "```"} {
		s = strings.ReplaceAll(s, fence, "")
	}

	start := strings.Index(s, "{")
	if start == -1 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		ch := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}

		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return strings.TrimSpace(s[start : i+1])
			}
		}
	}
	return ""
}
