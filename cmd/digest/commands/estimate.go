package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"media-digest-go/internal/llm"
	"media-digest-go/pkg/config"
	"media-digest-go/pkg/utils"
)

// NewEstimateCommand creates the estimate command
func NewEstimateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "estimate",
		Short: "Estimate the analysis cost of a transcript size",
		Long: `Estimate what analyzing a transcript of --chars characters costs. The model
is the one the preferred provider picks for that size unless --model is set.`,
		RunE: runEstimate,
	}

	cmd.Flags().Int("chars", 0, "Transcript length in characters (required)")
	cmd.Flags().Bool("topics", false, "Include topic extraction")
	cmd.Flags().String("provider", "", "Preferred language model provider")
	cmd.Flags().String("model", "", "Price this model instead")
	cmd.MarkFlagRequired("chars")
	return cmd
}

func runEstimate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	logger, err := loggerFrom(ctx)
	if err != nil {
		return err
	}

	chars, _ := cmd.Flags().GetInt("chars")
	if err := utils.ValidateRange(chars, 0, 10_000_000, "chars"); err != nil {
		return err
	}
	topics, _ := cmd.Flags().GetBool("topics")
	provider, _ := cmd.Flags().GetString("provider")
	modelName, _ := cmd.Flags().GetString("model")

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if provider == "" {
		provider = cfg.LLM.PreferredProvider
	}

	tier := llm.SelectModel(chars).Tier
	if modelName != "" {
		rates, err := llm.LoadRateTable(cfg.LLM.RatesFile)
		if err != nil {
			return err
		}
		fmt.Printf("Model:    %s\n", modelName)
		fmt.Printf("Estimate: %s\n", utils.FormatCost(rates.EstimateCost(modelName, chars, topics)))
		return nil
	}

	analyzer, err := llm.NewFromConfig(cfg.LLM, logger)
	if err != nil {
		return err
	}
	fmt.Printf("Tier:     %s\n", tier)
	fmt.Printf("Provider: %s\n", provider)
	fmt.Printf("Estimate: %s\n", utils.FormatCost(analyzer.EstimateCost(chars, topics, provider)))
	return nil
}
