package replay

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/tphakala/train-spotter/internal/analysis"
	"github.com/tphakala/train-spotter/internal/conf"
	"github.com/tphakala/train-spotter/internal/datastore"
)

// Command creates the replay command for offline analysis of a recorded
// detection log.
func Command(settings *conf.Settings) *cobra.Command {
	var (
		persist bool
		quiet   bool
	)

	cmd := &cobra.Command{
		Use:   "replay [detections.jsonl]",
		Short: "Replay a recorded detection log",
		Long: "Run the analytics over a JSON lines detection log using the frame timestamps, " +
			"print every event as JSON and optionally record them in the configured database.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := analysis.ReplayOptions{Output: cmd.OutOrStdout()}
			if quiet {
				opts.Output = nil
			}

			if persist {
				store, err := datastore.New(settings)
				if err != nil {
					return err
				}
				if err := store.Open(); err != nil {
					return err
				}
				defer store.Close() //nolint:errcheck // best effort on exit
				opts.Store = store
			}

			summary, err := analysis.Replay(cmd.Context(), settings, args[0], opts)
			printSummary(cmd.ErrOrStderr(), &summary)
			return err
		},
	}

	cmd.Flags().BoolVar(&persist, "persist", false, "Record events in the configured database")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Do not print events")

	return cmd
}

func printSummary(w io.Writer, s *analysis.ReplaySummary) {
	fmt.Fprintf(w, "frames: %d, skipped lines: %d, trains: %d, vehicles: %d\n",
		s.Frames, s.Skipped, s.Trains, s.Vehicles)
	if s.TrainActive {
		fmt.Fprintln(w, "input ended while a train was passing")
	}
}
