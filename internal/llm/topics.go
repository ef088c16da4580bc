package llm

import (
	"sort"
	"strings"
	"unicode"

	"github.com/reiver/go-porterstemmer"

	"media-digest-go/internal/model"
)

// stemKey reduces a topic name to its stemmed words so "Neural Networks"
// and "neural network" collide
func stemKey(name string) string {
	words := strings.FieldsFunc(strings.ToLower(name), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for i, word := range words {
		words[i] = porterstemmer.StemString(word)
	}
	return strings.Join(words, " ")
}

// MergeTopics folds topics with the same stemmed name together, drops those
// under minConfidence and keeps the maxTopics most confident
func MergeTopics(topics []model.Topic, minConfidence float64, maxTopics int) []model.Topic {
	merged := make(map[string]*model.Topic)
	var order []string

	for _, topic := range topics {
		key := stemKey(topic.Name)
		if key == "" {
			continue
		}

		existing, ok := merged[key]
		if !ok {
			t := topic
			t.Keywords = append([]string(nil), topic.Keywords...)
			merged[key] = &t
			order = append(order, key)
			continue
		}

		existing.Frequency += topic.Frequency
		if topic.Confidence > existing.Confidence {
			existing.Confidence = topic.Confidence
			if topic.Description != "" {
				existing.Description = topic.Description
			}
		}
		if existing.Description == "" {
			existing.Description = topic.Description
		}
		existing.Keywords = mergeKeywords(existing.Keywords, topic.Keywords)
	}

	out := make([]model.Topic, 0, len(order))
	for _, key := range order {
		if t := merged[key]; t.Confidence >= minConfidence {
			out = append(out, *t)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Confidence > out[j].Confidence
	})
	if maxTopics > 0 && len(out) > maxTopics {
		out = out[:maxTopics]
	}
	return out
}

func mergeKeywords(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, kw := range append(a, b...) {
		key := strings.ToLower(kw)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, kw)
	}
	return out
}

// filterRelationships keeps relationships whose ends both survived merging,
// renamed to the surviving topic names
func filterRelationships(relationships []model.TopicRelationship, topics []model.Topic) []model.TopicRelationship {
	names := make(map[string]string, len(topics))
	for _, t := range topics {
		names[stemKey(t.Name)] = t.Name
	}

	out := make([]model.TopicRelationship, 0, len(relationships))
	seen := make(map[model.TopicRelationship]bool)
	for _, rel := range relationships {
		parent, okParent := names[stemKey(rel.Parent)]
		child, okChild := names[stemKey(rel.Child)]
		if !okParent || !okChild || parent == child {
			continue
		}
		r := model.TopicRelationship{Parent: parent, Child: child}
		if !seen[r] {
			seen[r] = true
			out = append(out, r)
		}
	}
	return out
}
