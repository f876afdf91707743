package app

import (
	"context"
	"fmt"
	"time"

	"github.com/NotCoffee418/thingspeak_uploader/pkg/config"
	"github.com/NotCoffee418/thingspeak_uploader/pkg/metrics"
	"github.com/NotCoffee418/thingspeak_uploader/pkg/port_reader"
	"github.com/NotCoffee418/thingspeak_uploader/pkg/sensor"
	"github.com/NotCoffee418/thingspeak_uploader/pkg/uploader"
	jww "github.com/spf13/jwalterweatherman"
)

func New(
	settings config.Settings,
	profile sensor.Profile,
	lines LineSource,
	sender uploader.Sender,
	m *metrics.Metrics,
	log *jww.Notepad,
	start time.Time,
) *App {
	return &App{
		settings: settings,
		profile:  profile,
		log:      log,
		lines:    lines,
		gate:     uploader.NewGate(profile, sender, settings.SendInterval(), start, log),
		metrics:  m,
	}
}

func (a *App) AddObserver(o RecordObserver) {
	a.observers = append(a.observers, o)
}

func (a *App) AddUploadObserver(o UploadObserver) {
	a.uploadObservers = append(a.uploadObservers, o)
}

// Run polls until ctx is cancelled or the serial stream fails.
func (a *App) Run(ctx context.Context) error {
	ticker := time.NewTicker(a.settings.PollInterval())
	defer ticker.Stop()

	for {
		if err := a.Step(ctx, time.Now()); err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			a.log.INFO.Println("Shutting down")
			return nil
		case <-ticker.C:
		}
	}
}

// Step runs one loop iteration: take at most one line, then give the gate
// a chance to upload.
func (a *App) Step(ctx context.Context, now time.Time) error {
	line, ok, err := a.lines.Poll()
	if err != nil {
		return fmt.Errorf("serial read failed: %w", err)
	}

	if ok {
		a.metrics.LineRead()
		if port_reader.ShouldDiscard(line) {
			a.metrics.LineDiscarded()
		} else if record := a.profile.Extract(line); !record.Empty() {
			a.log.DEBUG.Printf("Received: %s", line)
			a.metrics.RecordAccepted()
			for _, o := range a.observers {
				o.Observe(record.Clone(), now)
			}
			a.gate.Offer(record)
		}
	}

	// Cancellation can race the ticker, don't start an upload that is bound to fail
	if ctx.Err() != nil {
		return nil
	}

	outcome := a.gate.Tick(ctx, now)
	a.metrics.UploadOutcome(outcome, now)
	for _, o := range a.uploadObservers {
		o.RecordUpload(outcome, now)
	}
	return nil
}
