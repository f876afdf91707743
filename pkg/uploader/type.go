package uploader

import (
	"context"
	"net/url"
	"time"

	"github.com/NotCoffee418/thingspeak_uploader/pkg/sensor"
	jww "github.com/spf13/jwalterweatherman"
)

// Upper bound for a single upload, so a hanging endpoint cannot stall the loop.
const UploadTimeout = 10 * time.Second

type Sender interface {
	Update(ctx context.Context, fields url.Values) (int64, error)
}

// Outcome of a single Tick.
type Outcome int

const (
	NoRecord Outcome = iota
	NotDue
	Incomplete
	Sent
	Failed
)

func (o Outcome) String() string {
	switch o {
	case NoRecord:
		return "no_record"
	case NotDue:
		return "not_due"
	case Incomplete:
		return "incomplete"
	case Sent:
		return "sent"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Gate holds the most recent record and releases it to the sender at most
// once per interval. The last send time only moves on a successful upload.
type Gate struct {
	profile  sensor.Profile
	sender   Sender
	interval time.Duration
	log      *jww.Notepad

	latest   sensor.Record
	lastSend time.Time
	hasSent  bool
}
