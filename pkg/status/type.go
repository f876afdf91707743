package status

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/NotCoffee418/thingspeak_uploader/pkg/sensor"
	"github.com/gorilla/websocket"
	jww "github.com/spf13/jwalterweatherman"
)

// Snapshot is what /latest returns and what /ws streams.
type Snapshot struct {
	Profile    string        `json:"profile"`
	Reading    sensor.Record `json:"reading"`
	ReceivedAt time.Time     `json:"received_at"`
	LastUpload *time.Time    `json:"last_upload,omitempty"`
	LastResult string        `json:"last_result,omitempty"`
}

func (s Snapshot) ToJsonBytes() []byte {
	data, err := json.Marshal(s)
	if err != nil {
		return nil
	}
	return data
}

func SnapshotFromJsonBytes(data []byte) *Snapshot {
	var snapshot Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil
	}
	return &snapshot
}

// Hub keeps the latest accepted reading for HTTP clients and fans it out to
// websocket subscribers.
type Hub struct {
	profile string
	log     *jww.Notepad

	snapshotMu sync.RWMutex
	snapshot   *Snapshot
	lastUpload *time.Time
	lastResult string

	clientsMu sync.RWMutex
	clients   map[*websocket.Conn]*subscriber
}

// subscriber is one websocket client. Only its writer goroutine writes to
// conn, gorilla connections allow a single concurrent writer.
type subscriber struct {
	conn *websocket.Conn
	send chan []byte
}
