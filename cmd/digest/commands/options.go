package commands

import (
	"github.com/spf13/cobra"

	"media-digest-go/internal/batch"
	"media-digest-go/internal/model"
	"media-digest-go/internal/orchestrator"
	"media-digest-go/pkg/config"
	"media-digest-go/pkg/utils"
)

// maxItemsLimit caps items taken from one container
const maxItemsLimit = 500

func analysisOptions(cmd *cobra.Command) (orchestrator.Options, error) {
	lengthFlag, _ := cmd.Flags().GetString("length")
	focusFlag, _ := cmd.Flags().GetString("focus")
	topics, _ := cmd.Flags().GetBool("topics")
	provider, _ := cmd.Flags().GetString("provider")

	if err := utils.ValidateOneOf(provider, append([]string{""}, config.Providers...), "provider"); err != nil {
		return orchestrator.Options{}, err
	}
	length, err := model.ParseSummaryLength(lengthFlag)
	if err != nil {
		return orchestrator.Options{}, err
	}
	focus, err := model.ParseSummaryFocus(focusFlag)
	if err != nil {
		return orchestrator.Options{}, err
	}
	return orchestrator.Options{
		SummaryLength:     length,
		SummaryFocus:      focus,
		ExtractTopics:     topics,
		PreferredProvider: provider,
	}, nil
}

func batchOptions(cmd *cobra.Command) (batch.Options, error) {
	opts, err := analysisOptions(cmd)
	if err != nil {
		return batch.Options{}, err
	}
	maxItems, _ := cmd.Flags().GetInt("max-items")
	if err := utils.ValidateRange(maxItems, 0, maxItemsLimit, "max-items"); err != nil {
		return batch.Options{}, err
	}
	return batch.Options{
		MaxItemsPerContainer: maxItems,
		SummaryLength:        opts.SummaryLength,
		SummaryFocus:         opts.SummaryFocus,
		ExtractTopics:        opts.ExtractTopics,
		PreferredProvider:    opts.PreferredProvider,
	}, nil
}

// maxConcurrent reads --max-concurrent, zero meaning the configured value
func maxConcurrent(cmd *cobra.Command) (int, error) {
	n, _ := cmd.Flags().GetInt("max-concurrent")
	if err := utils.ValidateRange(n, 0, config.DefaultMaxReferences, "max-concurrent"); err != nil {
		return 0, err
	}
	return n, nil
}
