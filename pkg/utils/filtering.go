package utils

import (
	"strings"

	"github.com/spf13/cobra"
)

// AddAnalysisFlags adds the summary and topic flags shared by commands that
// run analysis
func AddAnalysisFlags(cmd *cobra.Command) {
	cmd.Flags().String("length", "medium", "Summary length (short, medium, long)")
	cmd.Flags().String("focus", "overview", "Summary focus (overview, key_points, actionable)")
	cmd.Flags().Bool("topics", false, "Also extract topics")
	cmd.Flags().String("provider", "", "Preferred language-model provider (openai, gemini)")
}

// AddPipelineFlags adds the analysis flags plus the batch sizing flags shared
// by ingest and watch. Zero sizes defer to the configuration.
func AddPipelineFlags(cmd *cobra.Command) {
	AddAnalysisFlags(cmd)
	cmd.Flags().Int("max-items", 0, "Maximum items taken from each channel or playlist reference (default from config)")
	cmd.Flags().Int("max-concurrent", 0, "Items processed concurrently within one chunk (default from config)")
}

// FilterReferences trims reference lines, drops blanks and '#' comments,
// and removes duplicates while keeping first-seen order
func FilterReferences(lines []string) []string {
	seen := make(map[string]bool, len(lines))
	result := make([]string, 0, len(lines))

	for _, line := range lines {
		ref := strings.TrimSpace(line)
		if idx := strings.Index(ref, " #"); idx >= 0 {
			ref = strings.TrimSpace(ref[:idx])
		}
		if ref == "" || strings.HasPrefix(ref, "#") {
			continue
		}
		if seen[ref] {
			continue
		}
		seen[ref] = true
		result = append(result, ref)
	}

	return result
}
