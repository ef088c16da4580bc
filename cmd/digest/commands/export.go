package commands

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"media-digest-go/internal/model"
	"media-digest-go/internal/store"
	"media-digest-go/pkg/report"
	"media-digest-go/pkg/utils"
)

// NewExportCommand creates the export command
func NewExportCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export <unit-id>",
		Short: "Export the analysis of a completed unit as a .docx document",
		Args:  cobra.ExactArgs(1),
		RunE:  runExport,
	}

	cmd.Flags().StringP("out", "o", "", "Output path (default <report.dir>/<item>.docx)")
	cmd.Flags().Bool("transcript", false, "Append the cleaned transcript")
	return cmd
}

func runExport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	logger, err := loggerFrom(ctx)
	if err != nil {
		return err
	}

	if err := utils.ValidateNonEmpty(args[0], "unit-id"); err != nil {
		return err
	}

	a, err := newApp(ctx, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	unit, err := a.findUnit(ctx, args[0])
	if err != nil {
		return err
	}
	if unit.CurrentStep != model.StepCompleted {
		return fmt.Errorf("unit %s is %s, only completed units can be exported", unit.ID, unit.CurrentStep)
	}

	analysis, err := a.store.GetAnalysis(ctx, unit.ID)
	if err != nil {
		return fmt.Errorf("load analysis: %w", err)
	}

	export := report.Export{Unit: unit, Analysis: analysis}
	if withTranscript, _ := cmd.Flags().GetBool("transcript"); withTranscript {
		t, err := a.store.GetTranscript(ctx, unit.ID)
		switch {
		case errors.Is(err, store.ErrNotFound):
			logger.Warn("Unit has no stored transcript", zap.String("unit_id", unit.ID))
		case err != nil:
			return fmt.Errorf("load transcript: %w", err)
		default:
			export.Transcript = t
		}
	}

	out, _ := cmd.Flags().GetString("out")
	if out == "" {
		out = filepath.Join(a.config.Report.Dir, unit.ExternalID+".docx")
	}
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	if err := report.ExportAnalysis(out, export); err != nil {
		return err
	}

	logger.Info("Analysis exported", zap.String("unit_id", unit.ID), zap.String("path", out))
	fmt.Println(out)
	return nil
}
