package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"media-digest-go/internal/model"
	"media-digest-go/internal/store"
)

// NewStatusCommand creates the status command
func NewStatusCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status [unit-id]",
		Short: "Show the step of one unit or list units",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runStatus,
	}

	cmd.Flags().String("step", "", "Only list units in this step (e.g. failed)")
	cmd.Flags().Int("limit", 50, "Maximum units to list")
	cmd.Flags().Int("offset", 0, "Units to skip")
	cmd.Flags().Bool("json", false, "Print as JSON")
	return cmd
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	logger, err := loggerFrom(ctx)
	if err != nil {
		return err
	}

	a, err := newApp(ctx, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	asJSON, _ := cmd.Flags().GetBool("json")

	if len(args) == 1 {
		unit, err := a.findUnit(ctx, args[0])
		if err != nil {
			return err
		}
		state, err := a.tracker.ReadStep(ctx, unit.ID)
		if err != nil {
			return err
		}
		if asJSON {
			return printJSON(unit)
		}
		printUnit(unit, state.CanRetry)
		return nil
	}

	filter := store.ListFilter{Source: a.orchestrator.Source()}
	if stepFlag, _ := cmd.Flags().GetString("step"); stepFlag != "" {
		step, err := model.ParseStep(stepFlag)
		if err != nil {
			return err
		}
		filter.Step = step
	}
	filter.Limit, _ = cmd.Flags().GetInt("limit")
	filter.Offset, _ = cmd.Flags().GetInt("offset")

	units, err := a.store.ListUnits(ctx, filter)
	if err != nil {
		return err
	}
	if asJSON {
		return printJSON(units)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "UNIT\tITEM\tSTEP\tRETRIES\tUPDATED\tTITLE")
	for _, unit := range units {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d/%d\t%s\t%s\n",
			unit.ID, unit.ExternalID, unit.CurrentStep, unit.RetryCount, unit.MaxRetries,
			unit.UpdatedAt.Format(time.RFC3339), unit.Title)
	}
	return w.Flush()
}

// findUnit looks a unit up by its ID, then by the external item ID
func (a *app) findUnit(ctx context.Context, id string) (*model.ContentUnit, error) {
	unit, err := a.store.GetUnit(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		unit, err = a.store.GetUnitByExternalID(ctx, a.orchestrator.Source(), id)
	}
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("no unit matches %s", id)
	}
	return unit, err
}

func printUnit(unit *model.ContentUnit, canRetry bool) {
	fmt.Printf("Unit:     %s\n", unit.ID)
	fmt.Printf("Item:     %s %s\n", unit.Source, unit.ExternalID)
	fmt.Printf("Title:    %s\n", unit.Title)
	fmt.Printf("Step:     %s (%s)\n", unit.CurrentStep, unit.Status)
	fmt.Printf("Retries:  %d of %d\n", unit.RetryCount, unit.MaxRetries)
	fmt.Printf("Updated:  %s\n", unit.UpdatedAt.Format(time.RFC3339))
	if e := unit.ErrorDetails; e != nil {
		fmt.Printf("Error:    %s/%s at %s\n", e.Subsystem, e.Kind, e.FailedStep)
		fmt.Printf("          %s\n", e.UserMessage)
		fmt.Printf("Action:   %s\n", e.SuggestedAction)
		if e.Provider != "" {
			fmt.Printf("Provider: %s\n", e.Provider)
		}
	}
	if unit.CurrentStep == model.StepFailed {
		fmt.Printf("Can retry: %t\n", canRetry)
	}
}
