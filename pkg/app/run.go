package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/NotCoffee418/thingspeak_uploader/pkg/config"
	"github.com/NotCoffee418/thingspeak_uploader/pkg/metrics"
	"github.com/NotCoffee418/thingspeak_uploader/pkg/mqttmirror"
	"github.com/NotCoffee418/thingspeak_uploader/pkg/port_reader"
	"github.com/NotCoffee418/thingspeak_uploader/pkg/sensor"
	"github.com/NotCoffee418/thingspeak_uploader/pkg/status"
	"github.com/NotCoffee418/thingspeak_uploader/pkg/thingspeak"
	"github.com/prometheus/client_golang/prometheus"
	jww "github.com/spf13/jwalterweatherman"
)

// Start wires up every component from settings and runs the loop until ctx
// is cancelled. The serial port is closed on every return path.
func Start(ctx context.Context, settings config.Settings, log *jww.Notepad) error {
	profile, err := sensor.GetProfile(settings.SensorProfile)
	if err != nil {
		return err
	}

	logBanner(settings, log)

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	var hub *status.Hub
	if settings.StatusListen != "" {
		hub = status.NewHub(profile.Name, log)
		if err := hub.Serve(ctx, settings.StatusListen, registry); err != nil {
			return err
		}
	}

	reader, err := port_reader.Open(ctx, settings.SerialPort, settings.BaudRate, settings.Settle())
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("%w: %w", ErrSerialPort, err)
	}
	defer func() {
		if err := reader.Close(); err != nil {
			log.WARN.Printf("Error closing serial port: %v", err)
		} else {
			log.INFO.Println("Serial port closed")
		}
	}()
	log.INFO.Printf("Connected to serial port %s at %d baud", settings.SerialPort, settings.BaudRate)

	client := thingspeak.NewClient(settings.ThingSpeakURL, settings.ThingSpeakAPIKey, log)
	a := New(settings, profile, reader, client, m, log, time.Now())

	if hub != nil {
		a.AddObserver(hub)
		a.AddUploadObserver(hub)
	}

	if mirror := startMirror(settings, profile.Name, log); mirror != nil {
		defer mirror.Close()
		a.AddObserver(mirror)
	}

	return a.Run(ctx)
}

// startMirror returns nil when no broker is configured or it can't be reached.
// The uploader keeps running without the mirror in both cases.
func startMirror(settings config.Settings, profile string, log *jww.Notepad) *mqttmirror.Mirror {
	if settings.MQTTBroker == "" {
		return nil
	}
	mirror, err := mqttmirror.Connect(settings.MQTTBroker, settings.MQTTTopic, profile, log)
	if err != nil {
		log.WARN.Printf("MQTT mirror disabled: %v", err)
		return nil
	}
	return mirror
}

func logBanner(settings config.Settings, log *jww.Notepad) {
	interval := settings.SendInterval()
	log.INFO.Println(strings.Repeat("=", 60))
	log.INFO.Println("Sensor data -> ThingSpeak uploader")
	log.INFO.Printf("Sensor profile: %s", settings.SensorProfile)
	log.INFO.Printf("Send interval: %.2f min (%.0f s)", settings.SendIntervalMinutes, interval.Seconds())
	log.INFO.Println(strings.Repeat("=", 60))
}
