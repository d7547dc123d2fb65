package logger

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	DefaultLevel string            `yaml:"defaultlevel" mapstructure:"defaultlevel"` // default log level for all modules
	Timezone     string            `yaml:"timezone" mapstructure:"timezone"`         // "Local", "UTC", or IANA name
	Console      *ConsoleOutput    `yaml:"console" mapstructure:"console"`
	FileOutput   *FileOutput       `yaml:"fileoutput" mapstructure:"fileoutput"`
	ModuleLevels map[string]string `yaml:"modulelevels" mapstructure:"modulelevels"` // per-module log levels
}

// ConsoleOutput represents console logging configuration.
// Console output is text without timestamps; the supervisor adds them.
type ConsoleOutput struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Level   string `yaml:"level" mapstructure:"level"`
}

// FileOutput represents file logging configuration.
// File output is JSON with RFC3339 timestamps and is rotated by size.
type FileOutput struct {
	Enabled    bool   `yaml:"enabled" mapstructure:"enabled"`
	Path       string `yaml:"path" mapstructure:"path"`
	Level      string `yaml:"level" mapstructure:"level"`
	MaxSize    int    `yaml:"maxsize" mapstructure:"maxsize"`       // MB before rotation
	MaxAge     int    `yaml:"maxage" mapstructure:"maxage"`         // days to keep rotated logs, 0 keeps all
	MaxBackups int    `yaml:"maxbackups" mapstructure:"maxbackups"` // rotated files to keep, 0 keeps all
	Compress   bool   `yaml:"compress" mapstructure:"compress"`
}

// Default values for logging configuration.
const (
	DefaultLogLevel       = "info"
	DefaultLogPath        = "logs/train-spotter.log"
	DefaultMaxSize        = 100
	DefaultMaxAge         = 30
	DefaultMaxBackups     = 10
	DefaultConsoleEnabled = true
)

// applyConfigDefaults fills nil sections so older configs keep console logging.
func applyConfigDefaults(cfg *LoggingConfig) {
	if cfg == nil {
		return
	}

	if cfg.DefaultLevel == "" {
		cfg.DefaultLevel = DefaultLogLevel
	}

	if cfg.Console == nil {
		cfg.Console = &ConsoleOutput{
			Enabled: DefaultConsoleEnabled,
			Level:   cfg.DefaultLevel,
		}
	}

	if cfg.FileOutput == nil {
		cfg.FileOutput = &FileOutput{}
	}
	if cfg.FileOutput.Enabled {
		if cfg.FileOutput.Path == "" {
			cfg.FileOutput.Path = DefaultLogPath
		}
		if cfg.FileOutput.MaxSize <= 0 {
			cfg.FileOutput.MaxSize = DefaultMaxSize
		}
		if cfg.FileOutput.Level == "" {
			cfg.FileOutput.Level = cfg.DefaultLevel
		}
	}
}
