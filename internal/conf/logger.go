// Package conf provides configuration management for train spotter.
package conf

import "github.com/tphakala/train-spotter/internal/logger"

// GetLogger returns the config package logger scoped to the config module.
// The logger is fetched from the global logger each time so it follows the
// central logger once that is installed.
func GetLogger() logger.Logger {
	return logger.Global().Module("config")
}
