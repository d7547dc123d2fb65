package processor

import (
	"github.com/tphakala/train-spotter/internal/logger"
)

// GetLogger returns the processor package logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("processor")
}
