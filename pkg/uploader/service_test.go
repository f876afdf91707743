package uploader

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/NotCoffee418/thingspeak_uploader/pkg/sensor"
	jww "github.com/spf13/jwalterweatherman"
)

type fakeSender struct {
	calls []url.Values
	err   error
}

func (f *fakeSender) Update(ctx context.Context, fields url.Values) (int64, error) {
	f.calls = append(f.calls, fields)
	if f.err != nil {
		return 0, f.err
	}
	return int64(len(f.calls)), nil
}

func testLog(buf *bytes.Buffer) *jww.Notepad {
	return jww.NewNotepad(jww.LevelDebug, jww.LevelCritical, buf, io.Discard, "", 0)
}

func newTestGate(t *testing.T, profileName string, sender Sender, buf *bytes.Buffer) (*Gate, sensor.Profile, time.Time) {
	t.Helper()
	profile, err := sensor.GetProfile(profileName)
	if err != nil {
		t.Fatalf("profile: %v", err)
	}
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	return NewGate(profile, sender, time.Minute, start, testLog(buf)), profile, start
}

func TestTickWithoutRecord(t *testing.T) {
	sender := &fakeSender{}
	gate, _, start := newTestGate(t, sensor.ProfileBasic, sender, &bytes.Buffer{})

	if got := gate.Tick(context.Background(), start.Add(time.Hour)); got != NoRecord {
		t.Fatalf("expected NoRecord, got %s", got)
	}
	if len(sender.calls) != 0 {
		t.Fatalf("expected no uploads, got %d", len(sender.calls))
	}
}

func TestTickWaitsForInterval(t *testing.T) {
	sender := &fakeSender{}
	gate, profile, start := newTestGate(t, sensor.ProfileBasic, sender, &bytes.Buffer{})

	gate.Offer(profile.Extract("Temp: 25.0C | Water: 50% | Sound: 45% | Light: 123 lux"))

	for _, offset := range []time.Duration{0, 500 * time.Millisecond, 30 * time.Second, 59500 * time.Millisecond} {
		if got := gate.Tick(context.Background(), start.Add(offset)); got != NotDue {
			t.Fatalf("at %s: expected NotDue, got %s", offset, got)
		}
	}
	if len(sender.calls) != 0 {
		t.Fatalf("expected no uploads before the interval, got %d", len(sender.calls))
	}

	at := start.Add(time.Minute)
	if got := gate.Tick(context.Background(), at); got != Sent {
		t.Fatalf("expected Sent at 60s, got %s", got)
	}
	if last, ok := gate.LastSend(); !ok || !last.Equal(at) {
		t.Fatalf("expected last send %s, got %s (ok=%v)", at, last, ok)
	}

	// Next upload is one interval after the successful one.
	if got := gate.Tick(context.Background(), at.Add(30*time.Second)); got != NotDue {
		t.Fatalf("expected NotDue after send, got %s", got)
	}
	if got := gate.Tick(context.Background(), at.Add(time.Minute)); got != Sent {
		t.Fatalf("expected Sent one interval later, got %s", got)
	}
	if len(sender.calls) != 2 {
		t.Fatalf("expected 2 uploads, got %d", len(sender.calls))
	}
}

func TestTickRetriesSameRecordAfterFailure(t *testing.T) {
	sender := &fakeSender{err: errors.New("connection refused")}
	buf := &bytes.Buffer{}
	gate, profile, start := newTestGate(t, sensor.ProfileBasic, sender, buf)

	gate.Offer(profile.Extract("Temp: 25.0C | Water: 50%"))

	if got := gate.Tick(context.Background(), start.Add(60*time.Second)); got != Failed {
		t.Fatalf("expected Failed, got %s", got)
	}
	if _, ok := gate.LastSend(); ok {
		t.Fatalf("expected last send to stay unset after failure")
	}
	if !strings.Contains(buf.String(), "Upload failed") {
		t.Fatalf("expected failure warning in log, got %q", buf.String())
	}

	sender.err = nil
	retryAt := start.Add(60*time.Second + 500*time.Millisecond)
	if got := gate.Tick(context.Background(), retryAt); got != Sent {
		t.Fatalf("expected Sent on retry, got %s", got)
	}
	if len(sender.calls) != 2 {
		t.Fatalf("expected 2 attempts, got %d", len(sender.calls))
	}
	if sender.calls[0].Encode() != sender.calls[1].Encode() {
		t.Fatalf("expected identical payloads, got %v and %v", sender.calls[0], sender.calls[1])
	}
	if last, _ := gate.LastSend(); !last.Equal(retryAt) {
		t.Fatalf("expected last send %s, got %s", retryAt, last)
	}
}

func TestTickNullOnlyRecordUploadsEmptyPayload(t *testing.T) {
	sender := &fakeSender{}
	gate, profile, start := newTestGate(t, sensor.ProfileBasic, sender, &bytes.Buffer{})

	gate.Offer(profile.Extract("Temp: NA"))

	if got := gate.Tick(context.Background(), start.Add(time.Minute)); got != Sent {
		t.Fatalf("expected Sent, got %s", got)
	}
	if len(sender.calls) != 1 || len(sender.calls[0]) != 0 {
		t.Fatalf("expected one upload without fields, got %v", sender.calls)
	}
}

func TestTickIncompleteRecordIsSkipped(t *testing.T) {
	sender := &fakeSender{}
	buf := &bytes.Buffer{}
	gate, profile, start := newTestGate(t, sensor.ProfileEC, sender, buf)

	gate.Offer(profile.Extract("Temp: 25.0C | Water: 50% | Sound: 45% | Light: 123 lux"))

	for _, offset := range []time.Duration{time.Minute, time.Minute + 500*time.Millisecond} {
		if got := gate.Tick(context.Background(), start.Add(offset)); got != Incomplete {
			t.Fatalf("expected Incomplete, got %s", got)
		}
	}
	if len(sender.calls) != 0 {
		t.Fatalf("expected no uploads, got %d", len(sender.calls))
	}
	if last, ok := gate.LastSend(); ok || !last.Equal(start) {
		t.Fatalf("expected last send unchanged, got %s (ok=%v)", last, ok)
	}
	if !strings.Contains(buf.String(), "Incomplete reading") || !strings.Contains(buf.String(), "ec") {
		t.Fatalf("expected completeness warning naming ec, got %q", buf.String())
	}

	// A complete line makes the very next tick eligible.
	gate.Offer(profile.Extract("Temp: 25.0C | EC: 800 uS/cm | Water: 50% | Sound: 45 dB | Light: 123 lux"))
	if got := gate.Tick(context.Background(), start.Add(time.Minute+time.Second)); got != Sent {
		t.Fatalf("expected Sent, got %s", got)
	}
	if got := sender.calls[0].Get("field2"); got != "800.0" {
		t.Fatalf("expected field2=800.0, got %q", got)
	}
}

func TestOfferReplacesWholeRecord(t *testing.T) {
	sender := &fakeSender{}
	gate, profile, start := newTestGate(t, sensor.ProfileBasic, sender, &bytes.Buffer{})

	gate.Offer(profile.Extract("Temp: 25.0C | Water: 50%"))
	gate.Offer(profile.Extract("Light: 10 lux"))
	gate.Offer(profile.Extract("no data here"))

	if got := gate.Tick(context.Background(), start.Add(time.Minute)); got != Sent {
		t.Fatalf("expected Sent, got %s", got)
	}
	payload := sender.calls[0]
	if payload.Encode() != "field3=10" {
		t.Fatalf("expected only the light reading, got %v", payload)
	}
}

func TestRepeatedOfferSendsOncePerInterval(t *testing.T) {
	sender := &fakeSender{}
	gate, profile, start := newTestGate(t, sensor.ProfileBasic, sender, &bytes.Buffer{})

	line := "Temp: 25.0C | Water: 50% | Sound: 45% | Light: 123 lux"
	now := start
	for i := 0; i < 240; i++ {
		gate.Offer(profile.Extract(line))
		gate.Tick(context.Background(), now)
		now = now.Add(500 * time.Millisecond)
	}

	// 240 ticks of 0.5s cover 119.5s, so only the 60s mark is due.
	if len(sender.calls) != 1 {
		t.Fatalf("expected exactly one upload, got %d", len(sender.calls))
	}
}
