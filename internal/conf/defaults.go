// conf/defaults.go default values for settings
package conf

import (
	"time"

	"github.com/spf13/viper"
)

// Sets default values for the configuration.
func setDefaultConfig(v *viper.Viper) {
	v.SetDefault("main.name", "train-spotter")
	v.SetDefault("main.debug", false)
	v.SetDefault("main.log.defaultlevel", "info")
	v.SetDefault("main.log.timezone", "Local")
	v.SetDefault("main.log.console.enabled", true)
	v.SetDefault("main.log.console.level", "info")
	v.SetDefault("main.log.fileoutput.enabled", false)
	v.SetDefault("main.log.fileoutput.path", "logs/train-spotter.log")
	v.SetDefault("main.log.fileoutput.level", "info")
	v.SetDefault("main.log.fileoutput.maxsize", 100)
	v.SetDefault("main.log.fileoutput.maxage", 30)
	v.SetDefault("main.log.fileoutput.maxbackups", 10)
	v.SetDefault("main.log.fileoutput.compress", true)

	v.SetDefault("camera.id", "camera0")
	v.SetDefault("camera.roiconfig", "config/roi.json")

	v.SetDefault("traindetection.coveragethreshold", 0.6)
	v.SetDefault("traindetection.minduration", 2*time.Second)
	v.SetDefault("traindetection.hitthreshold", 5)
	v.SetDefault("traindetection.missthreshold", 10)
	v.SetDefault("traindetection.labels", []string{"train"})
	v.SetDefault("traindetection.minboxarea", 0.0)

	v.SetDefault("vehicletracking.staletimeout", 1500*time.Millisecond)
	v.SetDefault("vehicletracking.labels", []string{"vehicle", "car", "truck", "bus", "motorcycle", "bicycle"})
	v.SetDefault("vehicletracking.applyexclusionzones", false)

	v.SetDefault("eventbus.capacity", 1024)
	v.SetDefault("heartbeat.interval", 5*time.Second)

	v.SetDefault("input.source", InputFile)
	v.SetDefault("input.path", "-")

	v.SetDefault("output.sqlite.enabled", true)
	v.SetDefault("output.sqlite.path", "data/train_spotter.db")
	v.SetDefault("output.mysql.enabled", false)
	v.SetDefault("output.mysql.host", "localhost")
	v.SetDefault("output.mysql.port", 3306)
	v.SetDefault("output.mysql.username", "")
	v.SetDefault("output.mysql.password", "")
	v.SetDefault("output.mysql.database", "train_spotter")

	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.broker", "tcp://localhost:1883")
	v.SetDefault("mqtt.clientid", "train-spotter")
	v.SetDefault("mqtt.username", "")
	v.SetDefault("mqtt.password", "")
	v.SetDefault("mqtt.topic", "train-spotter")
	v.SetDefault("mqtt.detectiontopic", "train-spotter/detections")
	v.SetDefault("mqtt.retain", false)
	v.SetDefault("mqtt.qos", 1)

	v.SetDefault("webserver.enabled", true)
	v.SetDefault("webserver.port", "8080")
	v.SetDefault("webserver.historycachettl", 10*time.Second)

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.listen", "0.0.0.0:8090")
	v.SetDefault("telemetry.sentry.enabled", false)
	v.SetDefault("telemetry.sentry.dsn", "")
}
