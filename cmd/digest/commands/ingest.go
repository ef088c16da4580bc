package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"media-digest-go/internal/batch"
	"media-digest-go/pkg/report"
	"media-digest-go/pkg/utils"
)

// NewIngestCommand creates the ingest command
func NewIngestCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest [references...]",
		Short: "Process videos, playlists and channels",
		Long: `Process up to 50 references in one batch. A reference is a video URL or ID,
a playlist URL or ID, a channel URL or ID, or an @handle. Playlists and channels
are expanded into their most recent items.

Items run in chunks of --max-concurrent with a short delay between chunks.`,
		RunE: runIngest,
	}

	cmd.Flags().StringP("file", "f", "", "Read references from a text file or .xlsx workbook")
	cmd.Flags().String("report", "", "Write an .xlsx report of the batch to this path")
	cmd.Flags().Bool("json", false, "Print the batch result as JSON")
	utils.AddPipelineFlags(cmd)

	return cmd
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	logger, err := loggerFrom(ctx)
	if err != nil {
		return err
	}

	refs := append([]string{}, args...)
	if file, _ := cmd.Flags().GetString("file"); file != "" {
		fileRefs, err := report.ReadReferences(file)
		if err != nil {
			return err
		}
		logger.Info("Loaded references", zap.String("file", file), zap.Int("count", len(fileRefs)))
		refs = append(refs, fileRefs...)
	}

	opts, err := batchOptions(cmd)
	if err != nil {
		return err
	}
	concurrency, err := maxConcurrent(cmd)
	if err != nil {
		return err
	}

	a, err := newApp(ctx, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	result, err := a.batch.Run(ctx, batch.Request{
		References:    refs,
		Options:       opts,
		MaxConcurrent: concurrency,
	})
	if err != nil {
		return err
	}

	if reportPath, _ := cmd.Flags().GetString("report"); reportPath != "" {
		if err := writeReport(reportPath, result, logger); err != nil {
			return err
		}
	}

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		if err := printJSON(result); err != nil {
			return err
		}
	} else {
		printBatchResult(result)
	}

	return batchError(result)
}

// runBatchFile runs the references of one file and writes its report into dir
func runBatchFile(ctx context.Context, a *app, path, dir string, req batch.Request) (*batch.Result, error) {
	refs, err := report.ReadReferences(path)
	if err != nil {
		return nil, err
	}
	req.References = refs
	result, err := a.batch.Run(ctx, req)
	if err != nil {
		return nil, err
	}

	base := filepath.Base(path)
	name := fmt.Sprintf("%s_%s.xlsx", base[:len(base)-len(filepath.Ext(base))], result.RunID[:8])
	if err := writeReport(filepath.Join(dir, name), result, a.logger); err != nil {
		return result, err
	}
	return result, nil
}

func writeReport(path string, result *batch.Result, logger *zap.Logger) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create report directory: %w", err)
		}
	}
	if err := report.WriteBatchReport(path, result); err != nil {
		return err
	}
	logger.Info("Batch report written", zap.String("path", path))
	return nil
}

func printBatchResult(result *batch.Result) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "UNIT\tITEM\tSTATUS\tTRANSCRIPT\tCOST\tTITLE")
	for _, res := range result.Processed {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", res.UnitID, res.ExternalID, res.Status, res.TranscriptType, utils.FormatCost(res.Cost), res.Title)
	}
	w.Flush()

	if len(result.Errors) > 0 {
		fmt.Println()
		w = tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "REFERENCE\tUNIT\tKIND\tSUGGESTED ACTION")
		for _, e := range result.Errors {
			fmt.Fprintf(w, "%s\t%s\t%s/%s\t%s\n", e.Reference, e.UnitID, e.Subsystem, e.Kind, e.SuggestedAction)
		}
		w.Flush()
	}

	fmt.Printf("\nRun %s: %d processed, %d errors, estimated %s, spent %s in %s\n",
		result.RunID, len(result.Processed), len(result.Errors),
		utils.FormatCost(result.TotalEstimatedCost), utils.FormatCost(result.TotalCost),
		utils.FormatDuration(result.Duration().Seconds()))
}

// batchError fails the command when nothing in the batch succeeded
func batchError(result *batch.Result) error {
	if len(result.Processed) == 0 && len(result.Errors) > 0 {
		return fmt.Errorf("all %d references or items failed", len(result.Errors))
	}
	return nil
}
