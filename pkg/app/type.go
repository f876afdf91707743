package app

import (
	"errors"
	"time"

	"github.com/NotCoffee418/thingspeak_uploader/pkg/config"
	"github.com/NotCoffee418/thingspeak_uploader/pkg/metrics"
	"github.com/NotCoffee418/thingspeak_uploader/pkg/sensor"
	"github.com/NotCoffee418/thingspeak_uploader/pkg/uploader"
	jww "github.com/spf13/jwalterweatherman"
)

// ErrSerialPort marks a failure to open the serial device.
var ErrSerialPort = errors.New("serial port error")

type LineSource interface {
	Poll() (string, bool, error)
}

// RecordObserver receives a copy of every accepted reading.
type RecordObserver interface {
	Observe(record sensor.Record, at time.Time)
}

type UploadObserver interface {
	RecordUpload(outcome uploader.Outcome, at time.Time)
}

// App carries everything the polling loop touches. Only the loop goroutine
// uses it, observers get copies.
type App struct {
	settings config.Settings
	profile  sensor.Profile
	log      *jww.Notepad
	lines    LineSource
	gate     *uploader.Gate
	metrics  *metrics.Metrics

	observers       []RecordObserver
	uploadObservers []UploadObserver
}
