// Package history implements the history command, a terminal view of the
// recorded train passes and vehicle events.
package history

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/tphakala/train-spotter/internal/conf"
	"github.com/tphakala/train-spotter/internal/datastore"
)

// Command creates the history command.
func Command(settings *conf.Settings) *cobra.Command {
	var (
		limit  int
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:       "history [trains|vehicles|status]",
		Short:     "Show recorded train passes and vehicle events",
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"trains", "vehicles", "status"},
		RunE: func(cmd *cobra.Command, args []string) error {
			kind := "status"
			if len(args) == 1 {
				kind = args[0]
			}

			store, err := datastore.New(settings)
			if err != nil {
				return err
			}
			if err := store.Open(); err != nil {
				return err
			}
			defer store.Close() //nolint:errcheck // read only

			return show(cmd.OutOrStdout(), store, kind, limit, asJSON)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", datastore.DefaultHistoryLimit, "Number of rows to show")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of a table")

	return cmd
}

// show prints one history view from store.
func show(w io.Writer, store datastore.Interface, kind string, limit int, asJSON bool) error {
	var (
		data  any
		table func(*tabwriter.Writer)
	)

	switch kind {
	case "trains":
		rows, err := store.GetTrainEvents(limit)
		if err != nil {
			return err
		}
		data = rows
		table = func(tw *tabwriter.Writer) {
			fmt.Fprintln(tw, "TRAIN\tSTARTED\tENDED\tDURATION\tCOVERAGE")
			for i := range rows {
				r := &rows[i]
				fmt.Fprintf(tw, "%s\t%s\t%s\t%.1fs\t%.2f\n", r.TrainID, formatTime(r.StartedAt), formatTime(r.EndedAt), r.DurationSeconds, r.CoverageRatio)
			}
		}
	case "vehicles":
		rows, err := store.GetVehicleEvents(limit)
		if err != nil {
			return err
		}
		data = rows
		table = func(tw *tabwriter.Writer) {
			fmt.Fprintln(tw, "TRACK\tLANE\tCLASS\tENTERED\tEXITED\tDWELL")
			for i := range rows {
				r := &rows[i]
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%.1fs\n", r.TrackID, r.LaneID, r.ClassLabel, formatTime(r.EnteredAt), formatTime(r.ExitedAt), r.DurationSeconds)
			}
		}
	default:
		status, err := store.GetStatus()
		if err != nil {
			return err
		}
		data = status
		table = func(tw *tabwriter.Writer) {
			fmt.Fprintf(tw, "Train passes:\t%d\n", status.TrainCount)
			fmt.Fprintf(tw, "Vehicle events:\t%d\n", status.VehicleCount)
			fmt.Fprintf(tw, "Last heartbeat:\t%s\n", formatTimePtr(status.LastHeartbeat))
			if status.LastTrain != nil {
				fmt.Fprintf(tw, "Last train:\t%s (%.1fs)\n", formatTime(status.LastTrain.EndedAt), status.LastTrain.DurationSeconds)
			}
			if status.LastVehicle != nil {
				fmt.Fprintf(tw, "Last vehicle:\t%s in %s\n", status.LastVehicle.ClassLabel, status.LastVehicle.LaneID)
			}
		}
	}

	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(data)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	table(tw)
	return tw.Flush()
}

func formatTime(t time.Time) string {
	return t.Local().Format(time.DateTime)
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return "never"
	}
	return formatTime(*t)
}
