// config.go: settings struct of the train spotter service and the functions
// to load and save it.
package conf

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/tphakala/train-spotter/internal/errors"
	"github.com/tphakala/train-spotter/internal/logger"
)

//go:embed config.yaml
var configFiles embed.FS

// EnvPrefix is prepended to environment variable overrides, for example
// TRAINSPOTTER_MQTT_BROKER.
const EnvPrefix = "TRAINSPOTTER"

// Input source names.
const (
	InputFile = "file"
	InputMQTT = "mqtt"
)

// MainSettings contains process wide settings.
type MainSettings struct {
	Name  string               `yaml:"name"`
	Debug bool                 `yaml:"debug"`
	Log   logger.LoggingConfig `yaml:"log"`
}

// CameraSettings identifies the camera and its region configuration.
type CameraSettings struct {
	ID        string `yaml:"id"`
	ROIConfig string `yaml:"roiconfig"` // path to the ROI JSON document
}

// TrainDetectionSettings holds the train presence hysteresis.
type TrainDetectionSettings struct {
	CoverageThreshold float64       `yaml:"coveragethreshold"`
	MinDuration       time.Duration `yaml:"minduration"`
	HitThreshold      int           `yaml:"hitthreshold"`
	MissThreshold     int           `yaml:"missthreshold"`
	Labels            []string      `yaml:"labels"`     // labels that count towards coverage
	MinBoxArea        float64       `yaml:"minboxarea"` // square pixels, 0 disables
}

// VehicleTrackingSettings holds the lane dwell tracking options.
type VehicleTrackingSettings struct {
	StaleTimeout        time.Duration `yaml:"staletimeout"`
	Labels              []string      `yaml:"labels"`
	ApplyExclusionZones bool          `yaml:"applyexclusionzones"`
}

// EventBusSettings sizes subscription queues.
type EventBusSettings struct {
	Capacity int `yaml:"capacity"`
}

// HeartbeatSettings controls the periodic liveness event.
type HeartbeatSettings struct {
	Interval time.Duration `yaml:"interval"`
}

// InputSettings selects where detection frames come from.
type InputSettings struct {
	Source string `yaml:"source"` // file or mqtt
	Path   string `yaml:"path"`   // JSONL file, "-" for stdin
}

// SQLiteSettings configures the SQLite backend.
type SQLiteSettings struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// MySQLSettings configures the MySQL backend.
type MySQLSettings struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

// OutputSettings selects the persistence backend.
type OutputSettings struct {
	SQLite SQLiteSettings `yaml:"sqlite"`
	MySQL  MySQLSettings  `yaml:"mysql"`
}

// MQTTSettings configures the broker used for event publishing and,
// optionally, detection ingest.
type MQTTSettings struct {
	Enabled        bool   `yaml:"enabled"`
	Broker         string `yaml:"broker"`
	ClientID       string `yaml:"clientid"`
	Username       string `yaml:"username"`
	Password       string `yaml:"password"`
	Topic          string `yaml:"topic"`          // prefix for published events
	DetectionTopic string `yaml:"detectiontopic"` // ingest topic
	Retain         bool   `yaml:"retain"`
	QoS            byte   `yaml:"qos"`
}

// WebServerSettings configures the dashboard API.
type WebServerSettings struct {
	Enabled         bool          `yaml:"enabled"`
	Port            string        `yaml:"port"`
	HistoryCacheTTL time.Duration `yaml:"historycachettl"`
}

// SentrySettings configures error reporting.
type SentrySettings struct {
	Enabled bool   `yaml:"enabled"`
	DSN     string `yaml:"dsn"`
}

// TelemetrySettings configures metrics exposure and error reporting.
type TelemetrySettings struct {
	Enabled bool           `yaml:"enabled"`
	Listen  string         `yaml:"listen"`
	Sentry  SentrySettings `yaml:"sentry"`
}

// Settings is the root configuration.
type Settings struct {
	Main            MainSettings            `yaml:"main"`
	Camera          CameraSettings          `yaml:"camera"`
	TrainDetection  TrainDetectionSettings  `yaml:"traindetection"`
	VehicleTracking VehicleTrackingSettings `yaml:"vehicletracking"`
	EventBus        EventBusSettings        `yaml:"eventbus"`
	Heartbeat       HeartbeatSettings       `yaml:"heartbeat"`
	Input           InputSettings           `yaml:"input"`
	Output          OutputSettings          `yaml:"output"`
	MQTT            MQTTSettings            `yaml:"mqtt"`
	WebServer       WebServerSettings       `yaml:"webserver"`
	Telemetry       TelemetrySettings       `yaml:"telemetry"`
}

// settingsInstance is the current settings instance
var (
	settingsInstance *Settings
	settingsMutex    sync.RWMutex
)

// Load reads the configuration file, environment variables and bound
// command line flags into a validated Settings. An empty configFile
// searches the default locations and writes the embedded defaults when
// nothing is found.
func Load(configFile string) (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	settings, err := load(viper.GetViper(), configFile, true)
	if err != nil {
		return nil, err
	}

	settingsInstance = settings
	return settings, nil
}

func load(v *viper.Viper, configFile string, createMissing bool) (*Settings, error) {
	if err := initViper(v, configFile, createMissing); err != nil {
		return nil, errors.New(fmt.Errorf("error initializing configuration: %w", err)).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Build()
	}

	settings := &Settings{}
	if err := v.Unmarshal(settings); err != nil {
		return nil, errors.New(fmt.Errorf("error unmarshaling config into struct: %w", err)).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Build()
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, errors.New(err).
			Component("conf").
			Category(errors.CategoryValidation).
			Build()
	}

	return settings, nil
}

// initViper registers defaults and env overrides and reads the config file.
func initViper(v *viper.Viper, configFile string, createMissing bool) error {
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaultConfig(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("error reading config file %s: %w", configFile, err)
		}
		return nil
	}

	v.SetConfigName("config")
	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return err
	}
	for _, path := range configPaths {
		v.AddConfigPath(path)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			if !createMissing {
				return nil
			}
			return createDefaultConfig(v, configPaths[0])
		}
		return fmt.Errorf("fatal error reading config file: %w", err)
	}

	return nil
}

// createDefaultConfig writes the embedded default config into dir and reads it.
func createDefaultConfig(v *viper.Viper, dir string) error {
	data, err := fs.ReadFile(configFiles, "config.yaml")
	if err != nil {
		return fmt.Errorf("error reading embedded config: %w", err)
	}

	configPath := filepath.Join(dir, "config.yaml")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("error creating directories for config file: %w", err)
	}
	if err := os.WriteFile(configPath, data, 0o600); err != nil {
		return fmt.Errorf("error writing default config file: %w", err)
	}

	GetLogger().Info("Created default config file", logger.String("path", configPath))
	v.SetConfigFile(configPath)
	return v.ReadInConfig()
}

// GetDefaultConfig returns the embedded default configuration document.
func GetDefaultConfig() ([]byte, error) {
	return fs.ReadFile(configFiles, "config.yaml")
}

// GetSettings returns the current settings instance.
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// SaveYAMLConfig writes settings to configPath. It overwrites the existing
// file, not preserving comments or structure.
func SaveYAMLConfig(configPath string, settings *Settings) error {
	yamlData, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("error marshaling settings to YAML: %w", err)
	}

	tempFile, err := os.CreateTemp(filepath.Dir(configPath), "config-*.yaml")
	if err != nil {
		return errors.FileError(err, configPath)
	}
	tempFileName := tempFile.Name()
	defer os.Remove(tempFileName) //nolint:errcheck // gone after a successful move

	if _, err := tempFile.Write(yamlData); err != nil {
		_ = tempFile.Close()
		return errors.FileError(err, configPath)
	}
	if err := tempFile.Close(); err != nil {
		return errors.FileError(err, configPath)
	}

	if err := moveFile(tempFileName, configPath); err != nil {
		return fmt.Errorf("error replacing config file: %w", err)
	}

	return nil
}
