package config

import (
	"errors"
	"math"
	"time"
)

var (
	ErrConfigNotFound      = errors.New("config file not found")
	ErrMissingAPIKey       = errors.New("thingspeak_api_key is required")
	ErrInvalidInterval     = errors.New("send_interval_minutes must be a positive, finite number")
	ErrInvalidPollInterval = errors.New("invalid poll interval")
	ErrUnsupportedFormat   = errors.New("unsupported config format")
)

// Settings is built once at startup and passed around by value.
type Settings struct {
	ThingSpeakAPIKey    string  `yaml:"thingspeak_api_key" toml:"thingspeak_api_key"`
	ThingSpeakURL       string  `yaml:"thingspeak_url" toml:"thingspeak_url"`
	SerialPort          string  `yaml:"serial_port" toml:"serial_port"`
	BaudRate            uint    `yaml:"baud_rate" toml:"baud_rate"`
	SendIntervalMinutes float64 `yaml:"send_interval_minutes" toml:"send_interval_minutes"`
	PollIntervalSeconds float64 `yaml:"poll_interval_seconds" toml:"poll_interval_seconds"`

	// basic: temp/water/sound/light with NA markers
	// ec: adds conductivity and only uploads complete readings
	SensorProfile string `yaml:"sensor_profile" toml:"sensor_profile"`

	// Time to wait after opening the port while the board resets
	SettleSeconds float64 `yaml:"settle_seconds" toml:"settle_seconds"`

	// Optional, empty disables the component
	StatusListen string `yaml:"status_listen" toml:"status_listen"`
	MQTTBroker   string `yaml:"mqtt_broker" toml:"mqtt_broker"`
	MQTTTopic    string `yaml:"mqtt_topic" toml:"mqtt_topic"`
}

func (s Settings) SendInterval() time.Duration {
	return secondsToDuration(s.SendIntervalMinutes * 60)
}

func (s Settings) PollInterval() time.Duration {
	return secondsToDuration(s.PollIntervalSeconds)
}

func (s Settings) Settle() time.Duration {
	return secondsToDuration(s.SettleSeconds)
}

func secondsToDuration(seconds float64) time.Duration {
	return time.Duration(seconds * float64(time.Second))
}

// durationInRange reports whether seconds fits in a time.Duration.
// Infinite, NaN and oversized values would wrap around on conversion.
func durationInRange(seconds float64) bool {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		return false
	}
	return math.Abs(seconds)*float64(time.Second) < math.MaxInt64
}
