// Package roi implements the roi command group.
package roi

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/tphakala/train-spotter/internal/buildinfo"
	"github.com/tphakala/train-spotter/internal/conf"
	"github.com/tphakala/train-spotter/internal/errors"
	roiconf "github.com/tphakala/train-spotter/internal/roi"
)

// Command creates the roi command group.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "roi",
		Short: "Inspect region of interest configuration",
	}
	cmd.AddCommand(validateCommand(settings))
	return cmd
}

func validateCommand(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "validate [roi.json]",
		Short: "Validate an ROI configuration file",
		Long:  "Validate the given ROI file, or camera.roiconfig when no file is given, and list every problem found.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := settings.Camera.ROIConfig
			if len(args) == 1 {
				path = args[0]
			}

			result := Validate(path, settings.Camera.ID)
			printResult(cmd.OutOrStdout(), path, result)
			if !result.Valid {
				return fmt.Errorf("%s: %d problem(s) found", path, len(result.Errors))
			}
			return nil
		},
	}
}

// Validate loads the ROI file at path and reports errors that prevent the
// model from being built plus warnings about settings that leave parts of
// the analytics idle.
func Validate(path, cameraID string) *buildinfo.ValidationResult {
	result := buildinfo.NewValidationResult()

	cfg, err := roiconf.Load(path)
	if err != nil {
		var ve roiconf.ValidationError
		if errors.As(err, &ve) {
			for _, msg := range ve.Errors {
				result.AddError(msg)
			}
		} else {
			result.AddError(err.Error())
		}
		return result
	}

	model, err := roiconf.NewModel(cfg)
	if err != nil {
		result.AddError(err.Error())
		return result
	}

	if model.TrainZoneArea() <= 0 {
		result.AddWarning("train_roi has no area, train coverage will always be zero")
	}
	if len(model.Lanes()) == 0 {
		result.AddWarning("no road_lanes defined, vehicles will not be tracked")
	}
	if cameraID != "" && cfg.CameraID != cameraID {
		result.AddWarning(fmt.Sprintf("camera_id %q does not match camera.id %q", cfg.CameraID, cameraID))
	}
	return result
}

func printResult(w io.Writer, path string, r *buildinfo.ValidationResult) {
	for _, msg := range r.Errors {
		fmt.Fprintf(w, "error: %s\n", msg)
	}
	for _, msg := range r.Warnings {
		fmt.Fprintf(w, "warning: %s\n", msg)
	}
	if r.Valid {
		fmt.Fprintf(w, "%s is valid\n", path)
	}
}
