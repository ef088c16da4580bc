package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"media-digest-go/internal/orchestrator"
	"media-digest-go/internal/retry"
	"media-digest-go/pkg/utils"
)

// NewRetryCommand creates the retry command
func NewRetryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "retry <unit-id>",
		Short: "Retry a failed unit",
		Long: `Re-run the pipeline for a failed unit. Each unit may be retried at most
pipeline.max-retries times (3 by default). A stored transcript is reused.`,
		Args: cobra.ExactArgs(1),
		RunE: runRetry,
	}

	cmd.Flags().Bool("json", false, "Print the outcome as JSON")
	utils.AddAnalysisFlags(cmd)
	return cmd
}

func runRetry(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	logger, err := loggerFrom(ctx)
	if err != nil {
		return err
	}

	unitID := args[0]
	if err := utils.ValidateNonEmpty(unitID, "unit-id"); err != nil {
		return err
	}
	opts, err := analysisOptions(cmd)
	if err != nil {
		return err
	}

	a, err := newApp(ctx, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	outcome, err := a.retry.Retry(ctx, unitID, opts)
	switch {
	case errors.Is(err, retry.ErrUnitNotFound):
		return fmt.Errorf("unit %s does not exist", unitID)
	case errors.Is(err, retry.ErrMaxRetriesReached):
		return fmt.Errorf("unit %s has used all of its retries", unitID)
	case errors.Is(err, retry.ErrUnitBusy):
		return fmt.Errorf("unit %s is still being processed, retry once it has settled", unitID)
	case errors.Is(err, retry.ErrNotRetryable):
		return fmt.Errorf("unit %s is not in the failed step", unitID)
	case err != nil:
		return err
	}

	logger.Info("Retry finished",
		zap.String("unit_id", unitID),
		zap.Int("retry_count", outcome.RetryCount),
		zap.String("status", string(outcome.Result.Status)))

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		return printJSON(outcome)
	}

	res := outcome.Result
	fmt.Printf("Unit %s: %s (retry %d of %d)\n", unitID, res.Status, outcome.RetryCount, outcome.MaxRetries)
	if res.Status == orchestrator.StatusFailed && res.Error != nil {
		fmt.Printf("  %s\n  %s\n", res.Error.UserMessage, res.Error.SuggestedAction)
		if outcome.CanRetry {
			fmt.Println("  The unit can be retried again.")
		}
		return fmt.Errorf("retry of %s failed: %s", unitID, res.Error.Kind)
	}
	if res.Analysis != nil {
		fmt.Printf("  %s\n", res.Analysis.Summary)
	}
	return nil
}
