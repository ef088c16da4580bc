package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"media-digest-go/internal/batch"
	"media-digest-go/internal/watch"
	"media-digest-go/pkg/utils"
)

// NewWatchCommand creates the watch command
func NewWatchCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch <dir>",
		Short: "Ingest reference files dropped into a directory",
		Long: `Watch a directory for .txt, .list, .csv and .xlsx reference files. Every file
that stops changing is run as one batch and an .xlsx report is written to
report.dir.`,
		Args: cobra.ExactArgs(1),
		RunE: runWatch,
	}

	cmd.Flags().Duration("settle", watch.DefaultSettle, "How long a file must stay unchanged before it is read")
	utils.AddPipelineFlags(cmd)
	return cmd
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	logger, err := loggerFrom(ctx)
	if err != nil {
		return err
	}

	opts, err := batchOptions(cmd)
	if err != nil {
		return err
	}
	concurrency, err := maxConcurrent(cmd)
	if err != nil {
		return err
	}
	settle, _ := cmd.Flags().GetDuration("settle")

	a, err := newApp(ctx, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	handler := func(ctx context.Context, path string) error {
		result, err := runBatchFile(ctx, a, path, a.config.Report.Dir, batch.Request{Options: opts, MaxConcurrent: concurrency})
		if err != nil {
			return err
		}
		logger.Info("Reference file processed",
			zap.String("path", path),
			zap.String("run_id", result.RunID),
			zap.Int("processed", len(result.Processed)),
			zap.Int("errors", len(result.Errors)))
		return nil
	}

	w, err := watch.New(args[0], handler, settle, logger)
	if err != nil {
		return err
	}
	defer w.Close()

	fmt.Printf("Watching %s, press Ctrl+C to stop\n", args[0])
	if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
