package metrics

import (
	"time"

	"github.com/NotCoffee418/thingspeak_uploader/pkg/uploader"
	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	linesRead       prometheus.Counter
	linesDiscarded  prometheus.Counter
	recordsAccepted prometheus.Counter
	uploads         *prometheus.CounterVec
	lastUpload      prometheus.Gauge
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		linesRead: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tsu_serial_lines_total",
			Help: "Lines read from the serial device.",
		}),
		linesDiscarded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tsu_serial_lines_discarded_total",
			Help: "Blank or banner lines dropped before parsing.",
		}),
		recordsAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tsu_records_accepted_total",
			Help: "Lines that produced at least one sensor field.",
		}),
		uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tsu_uploads_total",
			Help: "Upload attempts by result (sent, failed, incomplete).",
		}, []string{"result"}),
		lastUpload: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tsu_last_upload_timestamp_seconds",
			Help: "Unix time of the last successful upload.",
		}),
	}

	reg.MustRegister(m.linesRead, m.linesDiscarded, m.recordsAccepted, m.uploads, m.lastUpload)
	return m
}

func (m *Metrics) LineRead() {
	m.linesRead.Inc()
}

func (m *Metrics) LineDiscarded() {
	m.linesDiscarded.Inc()
}

func (m *Metrics) RecordAccepted() {
	m.recordsAccepted.Inc()
}

// UploadOutcome counts ticks that reached the upload decision.
// Ticks without a record or before the interval are not counted.
func (m *Metrics) UploadOutcome(outcome uploader.Outcome, at time.Time) {
	switch outcome {
	case uploader.Sent:
		m.uploads.WithLabelValues(outcome.String()).Inc()
		m.lastUpload.Set(float64(at.Unix()))
	case uploader.Failed, uploader.Incomplete:
		m.uploads.WithLabelValues(outcome.String()).Inc()
	}
}
