package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/NotCoffee418/thingspeak_uploader/pkg/sensor"
	"github.com/NotCoffee418/thingspeak_uploader/pkg/thingspeak"
	"gopkg.in/yaml.v3"
)

func Defaults() Settings {
	return Settings{
		ThingSpeakURL:       thingspeak.DefaultURL,
		SerialPort:          "/dev/ttyACM0",
		BaudRate:            115200,
		SendIntervalMinutes: 0.25,
		SensorProfile:       sensor.ProfileBasic,
		PollIntervalSeconds: 0.5,
		SettleSeconds:       2,
		MQTTTopic:           "thingspeak_uploader/readings",
	}
}

// Load reads a YAML or TOML file on top of the defaults and validates the result.
// Keys that are present in the file always win, even when set to a zero value.
func Load(path string) (Settings, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Settings{}, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return Settings{}, err
	}

	settings := Defaults()
	switch format(path) {
	case "yaml":
		if err := yaml.Unmarshal(raw, &settings); err != nil {
			return Settings{}, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	case "toml":
		if _, err := toml.Decode(string(raw), &settings); err != nil {
			return Settings{}, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	default:
		return Settings{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}

	if err := settings.Validate(); err != nil {
		return Settings{}, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return settings, nil
}

func (s Settings) Validate() error {
	if strings.TrimSpace(s.ThingSpeakAPIKey) == "" {
		return ErrMissingAPIKey
	}
	// Checked after conversion, the loop only ever sees the Duration
	if !durationInRange(s.SendIntervalMinutes*60) || s.SendInterval() <= 0 {
		return ErrInvalidInterval
	}
	if s.SerialPort == "" {
		return fmt.Errorf("serial_port is required")
	}
	if s.BaudRate == 0 {
		return fmt.Errorf("baud_rate must be greater than 0")
	}
	if !durationInRange(s.PollIntervalSeconds) || s.PollInterval() <= 0 {
		return fmt.Errorf("%w: poll_interval_seconds must be a positive duration", ErrInvalidPollInterval)
	}
	if !durationInRange(s.SettleSeconds) || s.SettleSeconds < 0 {
		return fmt.Errorf("settle_seconds must not be negative")
	}
	if _, err := sensor.GetProfile(s.SensorProfile); err != nil {
		return fmt.Errorf("sensor_profile: %w (expected one of %s)", err, strings.Join(sensor.ProfileNames(), ", "))
	}
	if s.MQTTBroker != "" && s.MQTTTopic == "" {
		return fmt.Errorf("mqtt_topic is required when mqtt_broker is set")
	}
	return nil
}

// WriteDefault creates a config template at path. Existing files are never overwritten.
func WriteDefault(path string) error {
	var buf bytes.Buffer
	switch format(path) {
	case "yaml":
		encoder := yaml.NewEncoder(&buf)
		encoder.SetIndent(2)
		if err := encoder.Encode(Defaults()); err != nil {
			return err
		}
		if err := encoder.Close(); err != nil {
			return err
		}
	case "toml":
		if err := toml.NewEncoder(&buf).Encode(Defaults()); err != nil {
			return err
		}
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	// The file will hold the API key, keep it private
	cfgFile, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return err
	}
	defer cfgFile.Close()

	_, err = cfgFile.Write(buf.Bytes())
	return err
}

func format(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yml", ".yaml":
		return "yaml"
	case ".toml":
		return "toml"
	default:
		return ""
	}
}
