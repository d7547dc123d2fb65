package observability

import (
	"fmt"

	"github.com/tphakala/train-spotter/internal/logger"
)

// Package-level cached logger instance.
var log = logger.Global().Module("telemetry")

// promLogger adapts the module logger to promhttp's error log.
type promLogger struct{}

func (promLogger) Println(v ...any) {
	log.Error("metrics handler error", logger.String("message", fmt.Sprint(v...)))
}
