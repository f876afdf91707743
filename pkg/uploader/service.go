package uploader

import (
	"context"
	"time"

	"github.com/NotCoffee418/thingspeak_uploader/pkg/sensor"
	jww "github.com/spf13/jwalterweatherman"
)

// NewGate creates a gate whose first upload becomes due one interval after start.
func NewGate(profile sensor.Profile, sender Sender, interval time.Duration, start time.Time, log *jww.Notepad) *Gate {
	return &Gate{
		profile:  profile,
		sender:   sender,
		interval: interval,
		log:      log,
		lastSend: start,
	}
}

// Offer replaces the held record. Empty records are ignored.
func (g *Gate) Offer(record sensor.Record) {
	if record.Empty() {
		return
	}
	g.latest = record
}

func (g *Gate) Latest() sensor.Record {
	return g.latest
}

// LastSend returns the time of the last successful upload.
// ok is false until something has been sent.
func (g *Gate) LastSend() (time.Time, bool) {
	return g.lastSend, g.hasSent
}

// Tick uploads the held record when the interval has elapsed and the
// profile's policy accepts it.
func (g *Gate) Tick(ctx context.Context, now time.Time) Outcome {
	if g.latest == nil {
		return NoRecord
	}

	if now.Sub(g.lastSend) < g.interval {
		return NotDue
	}

	if !g.profile.Eligible(g.latest) {
		g.log.WARN.Printf("Incomplete reading, missing %v. Skipping upload until all fields are present", g.profile.Missing(g.latest))
		return Incomplete
	}

	uploadCtx, cancel := context.WithTimeout(ctx, UploadTimeout)
	defer cancel()

	entryID, err := g.sender.Update(uploadCtx, g.profile.Payload(g.latest))
	if err != nil {
		g.log.WARN.Printf("Upload failed, will retry: %v", err)
		return Failed
	}

	g.lastSend = now
	g.hasSent = true
	g.log.INFO.Printf("Sent to ThingSpeak (entry %d): %s", entryID, g.profile.Summary(g.latest))
	return Sent
}
