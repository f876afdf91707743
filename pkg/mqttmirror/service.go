// Package mqttmirror republishes every accepted reading to an MQTT broker so
// local consumers can follow the device without polling ThingSpeak.
package mqttmirror

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/NotCoffee418/thingspeak_uploader/pkg/sensor"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	jww "github.com/spf13/jwalterweatherman"
)

const (
	connectTimeout = 5 * time.Second
	publishTimeout = 5 * time.Second
)

type Message struct {
	Profile   string        `json:"profile"`
	Timestamp time.Time     `json:"timestamp"`
	Reading   sensor.Record `json:"reading"`
}

// publisher is the part of mqtt.Client the mirror uses.
type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

type Mirror struct {
	client  publisher
	topic   string
	profile string
	log     *jww.Notepad
}

func Connect(broker, topic, profile string, log *jww.Notepad) (*Mirror, error) {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	clientID := fmt.Sprintf("thingspeak-uploader-%s-%d", hostname, os.Getpid())

	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetConnectTimeout(connectTimeout)

	opts.OnConnectionLost = func(c mqtt.Client, err error) {
		log.WARN.Printf("MQTT connection lost: %v", err)
	}

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		client.Disconnect(0)
		return nil, fmt.Errorf("timed out connecting to MQTT broker %s", broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker %s: %w", broker, err)
	}

	log.INFO.Printf("Mirroring readings to %s on topic %s", broker, topic)
	return &Mirror{client: client, topic: topic, profile: profile, log: log}, nil
}

func EncodeMessage(profile string, record sensor.Record, at time.Time) ([]byte, error) {
	return json.Marshal(Message{
		Profile:   profile,
		Timestamp: at.UTC(),
		Reading:   record,
	})
}

// Observe publishes the reading without waiting for the broker.
// Delivery problems are logged from a separate goroutine.
func (m *Mirror) Observe(record sensor.Record, at time.Time) {
	payload, err := EncodeMessage(m.profile, record, at)
	if err != nil {
		m.log.ERROR.Printf("Error marshalling reading: %v", err)
		return
	}

	token := m.client.Publish(m.topic, 0, false, payload)
	go func() {
		if !token.WaitTimeout(publishTimeout) {
			m.log.WARN.Printf("MQTT publish to %s timed out", m.topic)
			return
		}
		if err := token.Error(); err != nil {
			m.log.WARN.Printf("Failed to publish reading: %v", err)
		}
	}()
}

func (m *Mirror) Close() {
	m.client.Disconnect(250)
}
