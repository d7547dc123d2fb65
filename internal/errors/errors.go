// Package errors provides centralized error handling with optional telemetry integration
package errors

import (
	stderrors "errors"
	"fmt"
	"maps"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// ErrorCategory represents the type of error for better categorization
type ErrorCategory string

// CategorizedError is an interface for errors that can specify their own category
type CategorizedError interface {
	error
	ErrorCategory() ErrorCategory
}

const (
	CategoryValidation     ErrorCategory = "validation"
	CategoryConfiguration  ErrorCategory = "configuration"
	CategoryFileIO         ErrorCategory = "file-io"
	CategoryFileParsing    ErrorCategory = "file-parsing"
	CategoryNetwork        ErrorCategory = "network"
	CategoryDatabase       ErrorCategory = "database"
	CategoryHTTP           ErrorCategory = "http-request"
	CategoryMQTTConnection ErrorCategory = "mqtt-connection"
	CategoryMQTTPublish    ErrorCategory = "mqtt-publish"
	CategoryMQTTAuth       ErrorCategory = "mqtt-authentication"
	CategoryIngest         ErrorCategory = "detection-ingest"
	CategoryEventBus       ErrorCategory = "event-bus"
	CategoryGeneric        ErrorCategory = "generic"
	CategoryState          ErrorCategory = "state"
	CategoryTimeout        ErrorCategory = "timeout"
	CategoryCancellation   ErrorCategory = "cancellation"
	CategorySystem         ErrorCategory = "system-resource"
)

// Priority constants for error prioritization
const (
	PriorityLow      = "low"
	PriorityMedium   = "medium"
	PriorityHigh     = "high"
	PriorityCritical = "critical"
)

// ComponentUnknown is used when the component cannot be determined.
const ComponentUnknown = "unknown"

const modulePath = "github.com/tphakala/train-spotter/internal/errors"

// hasActiveReporting is set while a telemetry reporter is installed so that
// Build can skip stack inspection on the hot path.
var hasActiveReporting atomic.Bool

// EnhancedError wraps an error with additional context and metadata
type EnhancedError struct {
	Err       error          // Original error
	component string         // Component where error occurred
	Category  ErrorCategory  // Error category for better grouping
	Priority  string         // Explicit priority override (optional)
	Context   map[string]any // Additional context data
	Timestamp time.Time      // When the error occurred
	reported  bool
	mu        sync.RWMutex
}

// Error implements the error interface
func (ee *EnhancedError) Error() string {
	return ee.Err.Error()
}

// Unwrap implements the error unwrapping interface
func (ee *EnhancedError) Unwrap() error {
	return ee.Err
}

// Is matches another EnhancedError by category, otherwise defers to the wrapped error.
func (ee *EnhancedError) Is(target error) bool {
	if ee2, ok := target.(*EnhancedError); ok {
		return ee.Category == ee2.Category
	}
	return Is(ee.Err, target)
}

// GetComponent returns the component the error was raised in.
func (ee *EnhancedError) GetComponent() string {
	return ee.component
}

// GetCategory returns the error category
func (ee *EnhancedError) GetCategory() string {
	return string(ee.Category)
}

// GetPriority returns the explicit priority if set, empty string otherwise
func (ee *EnhancedError) GetPriority() string {
	return ee.Priority
}

// GetContext returns a copy of the error context
func (ee *EnhancedError) GetContext() map[string]any {
	ee.mu.RLock()
	defer ee.mu.RUnlock()

	if ee.Context == nil {
		return nil
	}

	contextCopy := make(map[string]any, len(ee.Context))
	maps.Copy(contextCopy, ee.Context)
	return contextCopy
}

// GetTimestamp returns when the error occurred
func (ee *EnhancedError) GetTimestamp() time.Time {
	return ee.Timestamp
}

// MarkReported marks this error as reported to telemetry
func (ee *EnhancedError) MarkReported() {
	ee.mu.Lock()
	defer ee.mu.Unlock()
	ee.reported = true
}

// IsReported returns whether this error has been reported
func (ee *EnhancedError) IsReported() bool {
	ee.mu.RLock()
	defer ee.mu.RUnlock()
	return ee.reported
}

// ErrorBuilder provides a fluent interface for creating enhanced errors
type ErrorBuilder struct {
	err       error
	component string
	category  ErrorCategory
	priority  string
	context   map[string]any
}

// New creates a new error with enhanced context
func New(err error) *ErrorBuilder {
	return &ErrorBuilder{err: err}
}

// Newf creates a new formatted error with enhanced context
func Newf(format string, args ...any) *ErrorBuilder {
	return New(fmt.Errorf(format, args...))
}

// Component sets the component name (auto-detected if not set)
func (eb *ErrorBuilder) Component(component string) *ErrorBuilder {
	eb.component = component
	return eb
}

// Category sets the error category for better grouping
func (eb *ErrorBuilder) Category(category ErrorCategory) *ErrorBuilder {
	eb.category = category
	return eb
}

// Priority sets the explicit priority override for the error.
// Unknown values fall back to medium.
func (eb *ErrorBuilder) Priority(priority string) *ErrorBuilder {
	switch priority {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		eb.priority = priority
	case "":
	default:
		eb.priority = PriorityMedium
	}
	return eb
}

// Context adds context data to the error
func (eb *ErrorBuilder) Context(key string, value any) *ErrorBuilder {
	if eb.context == nil {
		eb.context = make(map[string]any)
	}
	eb.context[key] = value
	return eb
}

// FileContext adds file-specific context (path is anonymized)
func (eb *ErrorBuilder) FileContext(filePath string) *ErrorBuilder {
	if filePath == "" {
		return eb
	}
	eb.Context("file_type", categorizeFilePath(filePath))
	eb.Context("file_extension", getFileExtension(filePath))
	return eb
}

// Build creates the EnhancedError and triggers optional telemetry reporting
func (eb *ErrorBuilder) Build() *EnhancedError {
	if !hasActiveReporting.Load() {
		ee := &EnhancedError{
			Err:       eb.err,
			component: eb.component,
			Category:  eb.category,
			Priority:  eb.priority,
			Context:   eb.context,
			Timestamp: time.Now(),
		}
		if ee.component == "" {
			ee.component = ComponentUnknown
		}
		if ee.Category == "" {
			ee.Category = CategoryGeneric
		}
		return ee
	}

	if eb.component == "" {
		eb.component = detectComponent()
	}
	if eb.category == "" {
		eb.category = detectCategory(eb.err, eb.component)
	}

	ee := &EnhancedError{
		Err:       eb.err,
		component: eb.component,
		Category:  eb.category,
		Priority:  eb.priority,
		Context:   eb.context,
		Timestamp: time.Now(),
	}

	reportToTelemetry(ee)

	return ee
}

// componentPrefixes maps package paths below the module root to component
// names.
var componentPrefixes = []struct{ pkg, component string }{
	{"internal/analysis/processor", "event-processor"},
	{"internal/analysis", "analysis"},
	{"internal/datastore", "datastore"},
	{"internal/events", "eventbus"},
	{"internal/geometry", "geometry"},
	{"internal/httpcontroller", "http-controller"},
	{"internal/ingest", "ingest"},
	{"internal/mqtt", "mqtt"},
	{"internal/overlay", "overlay"},
	{"internal/roi", "roi"},
	{"internal/telemetry", "telemetry"},
	{"internal/tracking", "vehicle-tracking"},
	{"internal/train", "train-detector"},
	{"internal/conf", "configuration"},
	{"cmd", "cli"},
}

// detectComponent names the first caller outside this package.
func detectComponent() string {
	pcs := make([]uintptr, 16)
	n := runtime.Callers(3, pcs)
	frames := runtime.CallersFrames(pcs[:n])

	for {
		frame, more := frames.Next()
		if frame.Function != "" && !strings.HasPrefix(frame.Function, modulePath+".") {
			return componentOf(frame.Function)
		}
		if !more {
			return ComponentUnknown
		}
	}
}

// componentOf maps a fully qualified function name to a component.
func componentOf(funcName string) string {
	for _, p := range componentPrefixes {
		if strings.Contains(funcName, "/"+p.pkg+".") {
			return p.component
		}
	}
	return ComponentUnknown
}

// detectCategory automatically detects error category based on error message and component
func detectCategory(err error, component string) ErrorCategory {
	if err == nil {
		return CategoryGeneric
	}

	var catErr CategorizedError
	if stderrors.As(err, &catErr) {
		return catErr.ErrorCategory()
	}

	var enhErr *EnhancedError
	if stderrors.As(err, &enhErr) && enhErr.Category != "" {
		return enhErr.Category
	}

	errorMsg := strings.ToLower(err.Error())

	switch {
	case strings.Contains(errorMsg, "validation") || strings.Contains(errorMsg, "invalid"):
		return CategoryValidation
	case strings.Contains(errorMsg, "parse") || strings.Contains(errorMsg, "unmarshal"):
		return CategoryFileParsing
	case strings.Contains(errorMsg, "file") || strings.Contains(errorMsg, "open"):
		return CategoryFileIO
	case strings.Contains(errorMsg, "timeout") || strings.Contains(errorMsg, "deadline"):
		return CategoryTimeout
	case strings.Contains(errorMsg, "connection") || strings.Contains(errorMsg, "dial"):
		return CategoryNetwork
	}

	switch component {
	case "datastore":
		return CategoryDatabase
	case "http-controller":
		return CategoryHTTP
	case "mqtt":
		return CategoryMQTTPublish
	case "roi", "configuration":
		return CategoryConfiguration
	case "ingest":
		return CategoryIngest
	}

	return CategoryGeneric
}

// categorizeFilePath anonymizes file paths while preserving useful structure info
func categorizeFilePath(path string) string {
	if strings.HasPrefix(path, "/") || strings.Contains(path, ":\\") {
		return "absolute-path"
	}
	return "relative-path"
}

// getFileExtension extracts file extension for categorization
func getFileExtension(path string) string {
	if lastDot := strings.LastIndex(path, "."); lastDot > 0 && lastDot < len(path)-1 {
		return strings.ToLower(path[lastDot+1:])
	}
	return "none"
}

// FileError creates a file I/O error with appropriate context
func FileError(err error, filePath string) *EnhancedError {
	return New(err).
		Category(CategoryFileIO).
		FileContext(filePath).
		Build()
}

// NewStd creates a new standard error (passthrough to standard library)
func NewStd(text string) error {
	return stderrors.New(text)
}

// Is reports whether any error in err's tree matches target
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// As finds the first error in err's tree that matches target
func As(err error, target any) bool {
	return stderrors.As(err, target)
}

// Unwrap returns the result of calling the Unwrap method on err
func Unwrap(err error) error {
	return stderrors.Unwrap(err)
}

// Join returns an error that wraps the given errors
func Join(errs ...error) error {
	return stderrors.Join(errs...)
}

// IsCategory checks if an error is an EnhancedError with the specified category.
func IsCategory(err error, category ErrorCategory) bool {
	var enhancedErr *EnhancedError
	return As(err, &enhancedErr) && enhancedErr.Category == category
}
