package app

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/NotCoffee418/thingspeak_uploader/pkg/config"
	"github.com/NotCoffee418/thingspeak_uploader/pkg/metrics"
	"github.com/NotCoffee418/thingspeak_uploader/pkg/sensor"
	"github.com/NotCoffee418/thingspeak_uploader/pkg/uploader"
	"github.com/prometheus/client_golang/prometheus"
	jww "github.com/spf13/jwalterweatherman"
)

// queuedLines hands out one prepared line per poll.
type queuedLines struct {
	lines []string
	err   error
}

func (q *queuedLines) Poll() (string, bool, error) {
	if len(q.lines) == 0 {
		return "", false, q.err
	}
	line := q.lines[0]
	q.lines = q.lines[1:]
	return line, true, nil
}

type recordingSender struct {
	calls []url.Values
	err   error
}

func (s *recordingSender) Update(ctx context.Context, fields url.Values) (int64, error) {
	s.calls = append(s.calls, fields)
	return 1, s.err
}

type recordingObserver struct {
	records  []sensor.Record
	outcomes []uploader.Outcome
}

func (o *recordingObserver) Observe(record sensor.Record, at time.Time) {
	o.records = append(o.records, record)
}

func (o *recordingObserver) RecordUpload(outcome uploader.Outcome, at time.Time) {
	o.outcomes = append(o.outcomes, outcome)
}

func newTestApp(t *testing.T, profileName string, lines LineSource, sender uploader.Sender, buf io.Writer) (*App, time.Time) {
	t.Helper()
	settings := config.Defaults()
	settings.ThingSpeakAPIKey = "k"
	settings.SendIntervalMinutes = 1
	settings.SensorProfile = profileName
	settings.PollIntervalSeconds = 0.01

	profile, err := sensor.GetProfile(profileName)
	if err != nil {
		t.Fatalf("profile: %v", err)
	}
	log := jww.NewNotepad(jww.LevelDebug, jww.LevelCritical, buf, io.Discard, "", 0)
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return New(settings, profile, lines, sender, metrics.New(prometheus.NewRegistry()), log, start), start
}

func TestStepFlowsLinesToUpload(t *testing.T) {
	lines := &queuedLines{lines: []string{
		"=== Seeeduino sensor board ===",
		"",
		"Temp: 25.0C | Water: 50% | Sound: 45% | Light: 123 lux",
		"boot ok",
	}}
	sender := &recordingSender{}
	observer := &recordingObserver{}
	a, start := newTestApp(t, sensor.ProfileBasic, lines, sender, io.Discard)
	a.AddObserver(observer)
	a.AddUploadObserver(observer)

	now := start
	for i := 0; i < 4; i++ {
		if err := a.Step(context.Background(), now); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		now = now.Add(500 * time.Millisecond)
	}

	if len(observer.records) != 1 {
		t.Fatalf("expected one accepted record, got %d", len(observer.records))
	}
	if len(sender.calls) != 0 {
		t.Fatalf("expected no upload before the interval, got %d", len(sender.calls))
	}

	if err := a.Step(context.Background(), start.Add(time.Minute)); err != nil {
		t.Fatalf("step: %v", err)
	}
	if len(sender.calls) != 1 {
		t.Fatalf("expected one upload, got %d", len(sender.calls))
	}
	if got := sender.calls[0].Encode(); got != "field1=25.0&field2=50&field3=123&field4=45" {
		t.Fatalf("unexpected payload %s", got)
	}
	if last := observer.outcomes[len(observer.outcomes)-1]; last != uploader.Sent {
		t.Fatalf("expected last outcome sent, got %s", last)
	}
}

func TestStepObserversGetCopies(t *testing.T) {
	lines := &queuedLines{lines: []string{"Temp: 20.0C"}}
	sender := &recordingSender{}
	observer := &recordingObserver{}
	a, start := newTestApp(t, sensor.ProfileBasic, lines, sender, io.Discard)
	a.AddObserver(observer)

	if err := a.Step(context.Background(), start); err != nil {
		t.Fatalf("step: %v", err)
	}
	observer.records[0][sensor.WaterTemp] = sensor.Value{Number: 99, Valid: true}

	if err := a.Step(context.Background(), start.Add(time.Minute)); err != nil {
		t.Fatalf("step: %v", err)
	}
	if got := sender.calls[0].Get("field1"); got != "20.0" {
		t.Fatalf("expected the gate's record to be untouched, got field1=%s", got)
	}
}

func TestStepIncompleteReadingWarns(t *testing.T) {
	lines := &queuedLines{lines: []string{"Temp: 25.0C | Water: 50% | Sound: 45% | Light: 123 lux"}}
	sender := &recordingSender{}
	buf := &bytes.Buffer{}
	a, start := newTestApp(t, sensor.ProfileEC, lines, sender, buf)

	if err := a.Step(context.Background(), start.Add(time.Minute)); err != nil {
		t.Fatalf("step: %v", err)
	}
	if len(sender.calls) != 0 {
		t.Fatalf("expected incomplete reading to stay local, got %d uploads", len(sender.calls))
	}
	if !strings.Contains(buf.String(), "Incomplete reading") {
		t.Fatalf("expected completeness warning, got %q", buf.String())
	}
}

func TestStepFailedUploadIsNotFatal(t *testing.T) {
	lines := &queuedLines{lines: []string{"Light: 5 lux"}}
	sender := &recordingSender{err: errors.New("timeout")}
	a, start := newTestApp(t, sensor.ProfileBasic, lines, sender, io.Discard)

	for _, at := range []time.Time{start.Add(time.Minute), start.Add(time.Minute + 500*time.Millisecond)} {
		if err := a.Step(context.Background(), at); err != nil {
			t.Fatalf("expected upload failures to be swallowed, got %v", err)
		}
	}
	if len(sender.calls) != 2 {
		t.Fatalf("expected a retry on the next tick, got %d attempts", len(sender.calls))
	}
}

func TestStepStreamErrorIsFatal(t *testing.T) {
	lines := &queuedLines{err: io.ErrUnexpectedEOF}
	a, start := newTestApp(t, sensor.ProfileBasic, lines, &recordingSender{}, io.Discard)

	if err := a.Step(context.Background(), start); !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("expected stream error, got %v", err)
	}
}

func TestStepSkipsUploadAfterCancel(t *testing.T) {
	lines := &queuedLines{lines: []string{"Light: 5 lux"}}
	sender := &recordingSender{}
	buf := &bytes.Buffer{}
	a, start := newTestApp(t, sensor.ProfileBasic, lines, sender, buf)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := a.Step(ctx, start.Add(time.Minute)); err != nil {
		t.Fatalf("step: %v", err)
	}
	if len(sender.calls) != 0 {
		t.Fatalf("expected no upload after cancel, got %d", len(sender.calls))
	}
	if strings.Contains(buf.String(), "Upload failed") {
		t.Fatalf("unexpected upload warning during shutdown: %q", buf.String())
	}

	// The held reading still goes out once the loop runs again
	if err := a.Step(context.Background(), start.Add(time.Minute)); err != nil {
		t.Fatalf("step: %v", err)
	}
	if len(sender.calls) != 1 {
		t.Fatalf("expected one upload, got %d", len(sender.calls))
	}
}

func TestStartReportsSerialErrorOnce(t *testing.T) {
	settings := config.Defaults()
	settings.ThingSpeakAPIKey = "k"
	settings.SerialPort = filepath.Join(t.TempDir(), "ttyMissing")
	settings.SettleSeconds = 0

	buf := &bytes.Buffer{}
	log := jww.NewNotepad(jww.LevelDebug, jww.LevelCritical, buf, io.Discard, "", 0)

	err := Start(context.Background(), settings, log)
	if !errors.Is(err, ErrSerialPort) {
		t.Fatalf("expected ErrSerialPort, got %v", err)
	}
	if !strings.Contains(err.Error(), settings.SerialPort) {
		t.Fatalf("expected the port in the error, got %v", err)
	}
	if strings.Contains(buf.String(), settings.SerialPort) {
		t.Fatalf("serial error should be left to the caller to log, got %q", buf.String())
	}
}

func TestStartMirrorDisabledWhenUnreachable(t *testing.T) {
	buf := &bytes.Buffer{}
	log := jww.NewNotepad(jww.LevelDebug, jww.LevelCritical, buf, io.Discard, "", 0)

	settings := config.Defaults()
	if mirror := startMirror(settings, sensor.ProfileBasic, log); mirror != nil {
		t.Fatalf("expected no mirror without a broker")
	}

	settings.MQTTBroker = "tcp://127.0.0.1:1"
	if mirror := startMirror(settings, sensor.ProfileBasic, log); mirror != nil {
		t.Fatalf("expected no mirror for an unreachable broker")
	}
	if !strings.Contains(buf.String(), "MQTT mirror disabled") {
		t.Fatalf("expected a warning, got %q", buf.String())
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	a, _ := newTestApp(t, sensor.ProfileBasic, &queuedLines{}, &recordingSender{}, io.Discard)

	ctx, cancel := context.WithCancel(context.Background())
	result := make(chan error, 1)
	go func() {
		result <- a.Run(ctx)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-result:
		if err != nil {
			t.Fatalf("expected clean shutdown, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("loop did not stop")
	}
}
