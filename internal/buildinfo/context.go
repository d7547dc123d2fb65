// Package buildinfo holds build-time metadata and validation reports kept
// separate from user configuration.
package buildinfo

import "runtime"

// UnknownValue is reported for metadata missing from the build.
const UnknownValue = "unknown"

// BuildInfo provides access to build-time metadata.
type BuildInfo interface {
	GetVersion() string
	GetBuildDate() string
}

// Context contains build-time metadata injected at startup through ldflags.
type Context struct {
	// Version holds the Git version tag from build
	Version string

	// BuildDate is the time when the binary was built
	BuildDate string
}

// NewContext returns build metadata.
func NewContext(version, buildDate string) *Context {
	return &Context{Version: version, BuildDate: buildDate}
}

// ValidationResult collects the outcome of validating a configuration
// document, for example an ROI file.
type ValidationResult struct {
	// Warnings are issues that don't prevent startup
	Warnings []string `json:"warnings,omitempty"`

	// Errors are critical issues that should prevent startup
	Errors []string `json:"errors,omitempty"`

	Valid bool `json:"valid"`
}

// AddWarning adds a warning to the validation result
func (r *ValidationResult) AddWarning(message string) {
	r.Warnings = append(r.Warnings, message)
}

// AddError adds an error to the validation result
func (r *ValidationResult) AddError(message string) {
	r.Errors = append(r.Errors, message)
	r.Valid = false
}

// HasIssues returns true if there are any warnings or errors
func (r *ValidationResult) HasIssues() bool {
	return len(r.Warnings) > 0 || len(r.Errors) > 0
}

// NewValidationResult creates a new validation result with Valid set to true
func NewValidationResult() *ValidationResult {
	return &ValidationResult{Valid: true}
}

// GetVersion implements BuildInfo.GetVersion
func (c *Context) GetVersion() string {
	if c == nil || c.Version == "" {
		return UnknownValue
	}
	return c.Version
}

// GetBuildDate implements BuildInfo.GetBuildDate
func (c *Context) GetBuildDate() string {
	if c == nil || c.BuildDate == "" {
		return UnknownValue
	}
	return c.BuildDate
}

// String renders the version line printed by --version.
func (c *Context) String() string {
	return c.GetVersion() + " (built " + c.GetBuildDate() + ", " + runtime.Version() + ")"
}
