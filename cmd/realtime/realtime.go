package realtime

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tphakala/train-spotter/internal/analysis"
	"github.com/tphakala/train-spotter/internal/buildinfo"
	"github.com/tphakala/train-spotter/internal/conf"
)

// Command creates the realtime command, the long running service.
func Command(settings *conf.Settings, info *buildinfo.Context) *cobra.Command {
	var webOnly bool

	cmd := &cobra.Command{
		Use:   "realtime",
		Short: "Analyze detections in realtime mode",
		Long: "Read detection frames from the configured input, publish train and vehicle events " +
			"and serve the dashboard API until the input ends or the process is interrupted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return analysis.RealtimeAnalysis(cmd.Context(), settings, analysis.RealtimeOptions{
				WebOnly: webOnly,
				Version: info.GetVersion(),
			})
		},
	}

	cmd.Flags().BoolVar(&webOnly, "web-only", false, "Serve the dashboard and history without reading detections")
	cmd.Flags().String("source", "", "Detection input source (file or mqtt)")
	cmd.Flags().String("input", "", "Detection JSONL file, - for stdin")
	cmd.Flags().String("port", "", "Dashboard HTTP port")
	cmd.Flags().String("roi", "", "Path to the ROI configuration")

	// Bound flags override the config file when set.
	bindFlag(cmd, "source", "input.source")
	bindFlag(cmd, "input", "input.path")
	bindFlag(cmd, "port", "webserver.port")
	bindFlag(cmd, "roi", "camera.roiconfig")

	return cmd
}

func bindFlag(cmd *cobra.Command, flag, key string) {
	if err := viper.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
		panic(err)
	}
}
