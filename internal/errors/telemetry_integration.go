// Package errors - telemetry integration (optional)
package errors

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
	"unicode"

	"github.com/getsentry/sentry-go"
)

// TelemetryReporter is an interface for reporting errors to telemetry systems
type TelemetryReporter interface {
	ReportError(err *EnhancedError)
	IsEnabled() bool
}

// SentryReporter implements TelemetryReporter for Sentry
type SentryReporter struct {
	enabled bool
}

// NewSentryReporter creates a new Sentry telemetry reporter
func NewSentryReporter(enabled bool) *SentryReporter {
	return &SentryReporter{enabled: enabled}
}

// IsEnabled returns whether Sentry telemetry is enabled
func (sr *SentryReporter) IsEnabled() bool {
	return sr.enabled
}

// ReportError reports an enhanced error to Sentry with privacy protection
func (sr *SentryReporter) ReportError(ee *EnhancedError) {
	if !sr.enabled || ee.IsReported() {
		return
	}

	message := scrubMessageForPrivacy(fmt.Sprintf("[%s] %s", ee.Category, ee.Err.Error()))
	component := ee.GetComponent()

	sentry.WithScope(func(scope *sentry.Scope) {
		title := generateErrorTitle(ee)

		scope.SetTag("error_title", title)
		scope.SetTag("component", component)
		scope.SetTag("category", string(ee.Category))
		scope.SetTag("error_type", fmt.Sprintf("%T", ee.Err))

		for key, value := range ee.GetContext() {
			if s, ok := value.(string); ok {
				value = scrubMessageForPrivacy(s)
			}
			scope.SetContext(key, map[string]any{"value": value})
		}

		level := getErrorLevel(ee.Category)
		scope.SetLevel(level)
		scope.SetFingerprint([]string{title, component, string(ee.Category)})

		event := sentry.NewEvent()
		event.Message = message
		event.Level = level
		event.Exception = []sentry.Exception{{Type: title, Value: message}}

		sentry.CaptureEvent(event)
	})

	ee.MarkReported()
}

// generateErrorTitle builds "<Component> <Category> <Operation>" for grouping.
func generateErrorTitle(ee *EnhancedError) string {
	var parts []string

	if component := ee.GetComponent(); component != "" && component != ComponentUnknown {
		parts = append(parts, titleCase(component))
	}

	if categoryTitle := formatCategoryForTitle(ee.Category); categoryTitle != "" {
		parts = append(parts, categoryTitle)
	}

	if operation, ok := ee.GetContext()["operation"].(string); ok && operation != "" {
		parts = append(parts, formatOperationForTitle(operation))
	}

	if len(parts) == 0 {
		return fmt.Sprintf("%T", ee.Err)
	}

	return strings.Join(parts, " ")
}

func formatCategoryForTitle(category ErrorCategory) string {
	switch category {
	case CategoryValidation:
		return "Validation Error"
	case CategoryConfiguration:
		return "Configuration Error"
	case CategoryDatabase:
		return "Database Error"
	case CategoryFileIO:
		return "File I/O Error"
	case CategoryNetwork:
		return "Network Error"
	case CategoryMQTTConnection, CategoryMQTTPublish, CategoryMQTTAuth:
		return "MQTT Error"
	case CategoryIngest:
		return "Ingest Error"
	default:
		return string(category)
	}
}

func formatOperationForTitle(operation string) string {
	words := strings.Fields(strings.ReplaceAll(operation, "_", " "))
	for i, word := range words {
		words[i] = titleCase(word)
	}
	return strings.Join(words, " ")
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	runes := []rune(s)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

// getErrorLevel returns appropriate Sentry level based on category
func getErrorLevel(category ErrorCategory) sentry.Level {
	switch category {
	case CategoryValidation, CategoryConfiguration, CategoryDatabase, CategorySystem:
		return sentry.LevelError
	case CategoryNetwork, CategoryMQTTConnection, CategoryMQTTPublish, CategoryTimeout:
		return sentry.LevelWarning
	case CategoryFileIO, CategoryFileParsing, CategoryIngest, CategoryHTTP:
		return sentry.LevelWarning
	default:
		return sentry.LevelError
	}
}

var (
	telemetryMu             sync.RWMutex
	globalTelemetryReporter TelemetryReporter
)

// SetTelemetryReporter sets the global telemetry reporter. Passing nil disables reporting.
func SetTelemetryReporter(reporter TelemetryReporter) {
	telemetryMu.Lock()
	defer telemetryMu.Unlock()
	globalTelemetryReporter = reporter
	hasActiveReporting.Store(reporter != nil && reporter.IsEnabled())
}

// GetTelemetryReporter returns the current telemetry reporter
func GetTelemetryReporter() TelemetryReporter {
	telemetryMu.RLock()
	defer telemetryMu.RUnlock()
	return globalTelemetryReporter
}

func reportToTelemetry(ee *EnhancedError) {
	reporter := GetTelemetryReporter()
	if reporter != nil && reporter.IsEnabled() {
		reporter.ReportError(ee)
	}
}

var (
	urlQueryRegex  = regexp.MustCompile(`(https?://[^?\s]+)\?\S*`)
	queryParamRgx  = regexp.MustCompile(`[?&]([^=\s]+)=([^&\s]+)`)
	credentialRgxs = []*regexp.Regexp{
		regexp.MustCompile(`(?i)api[_-]?key[=:]\S+`),
		regexp.MustCompile(`(?i)token[=:]\S+`),
		regexp.MustCompile(`(?i)password[=:]\S+`),
		regexp.MustCompile(`[0-9a-fA-F]{32,}`),
	}
	brokerCredsRgx = regexp.MustCompile(`(tcp|ssl|ws|wss|mysql)://[^:@/\s]+:[^@/\s]+@`)
)

// scrubMessageForPrivacy removes query strings, credentials and broker userinfo.
func scrubMessageForPrivacy(message string) string {
	scrubbed := urlQueryRegex.ReplaceAllString(message, "$1?[REDACTED]")
	scrubbed = queryParamRgx.ReplaceAllString(scrubbed, "?[REDACTED]")
	scrubbed = brokerCredsRgx.ReplaceAllString(scrubbed, "$1://[REDACTED]@")
	for _, rgx := range credentialRgxs {
		scrubbed = rgx.ReplaceAllString(scrubbed, "[REDACTED]")
	}
	return scrubbed
}
