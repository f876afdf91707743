package status

import (
	"context"
	"errors"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
	jww "github.com/spf13/jwalterweatherman"
)

const (
	maxRetries     = 10
	baseRetryDelay = 2 * time.Second
	maxRetryDelay  = 60 * time.Second

	pingInterval = 30 * time.Second
	// Readings only arrive when the device prints a line, so allow a few missed pings
	readTimeout = 3 * pingInterval
)

var ErrGaveUp = errors.New("status stream unreachable")

// Listen follows the /ws stream of a running uploader and calls handle for
// every snapshot. Reconnects with exponential backoff and returns nil once
// ctx is cancelled.
func Listen(ctx context.Context, host string, handle func(snapshot *Snapshot), log *jww.Notepad) error {
	u := url.URL{Scheme: "ws", Host: host, Path: "/ws"}
	retryCount := 0

	for {
		if ctx.Err() != nil {
			return nil
		}

		// Calculate retry delay with exponential backoff
		retryDelay := time.Duration(1<<retryCount) * baseRetryDelay
		if retryDelay > maxRetryDelay {
			retryDelay = maxRetryDelay
		}

		if retryCount > 0 {
			log.INFO.Printf("Retrying connection in %v... (attempt %d/%d)", retryDelay, retryCount+1, maxRetries)
			select {
			case <-time.After(retryDelay):
			case <-ctx.Done():
				return nil
			}
		}

		log.INFO.Printf("Connecting to %s", u.String())

		dialer := *websocket.DefaultDialer
		dialer.HandshakeTimeout = 10 * time.Second
		c, _, err := dialer.DialContext(ctx, u.String(), nil)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.WARN.Printf("Connection failed: %v", err)
			retryCount++
			if retryCount >= maxRetries {
				return ErrGaveUp
			}
			continue
		}

		log.INFO.Println("Connected, waiting for readings")
		retryCount = 0

		connectionBroken := handleConnection(ctx, c, handle, log)
		c.Close()

		if !connectionBroken {
			return nil
		}
		log.WARN.Println("Connection lost, will retry...")
	}
}

// handleConnection returns true when the connection broke and false on shutdown.
func handleConnection(ctx context.Context, c *websocket.Conn, handle func(snapshot *Snapshot), log *jww.Notepad) bool {
	done := make(chan struct{})

	c.SetReadDeadline(time.Now().Add(readTimeout))
	c.SetPongHandler(func(string) error {
		return c.SetReadDeadline(time.Now().Add(readTimeout))
	})

	go func() {
		defer close(done)
		for {
			messageType, message, err := c.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.WARN.Printf("WebSocket error: %v", err)
				} else {
					log.DEBUG.Printf("Connection closed: %v", err)
				}
				return
			}

			c.SetReadDeadline(time.Now().Add(readTimeout))

			if messageType != websocket.TextMessage {
				log.DEBUG.Printf("Received unexpected message type: %d", messageType)
				continue
			}
			if snapshot := SnapshotFromJsonBytes(message); snapshot != nil {
				handle(snapshot)
			} else {
				log.WARN.Printf("Failed to parse snapshot: %s", string(message))
			}
		}
	}()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return true
		case <-ticker.C:
			if err := c.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				log.WARN.Printf("Failed to send ping: %v", err)
			}
		case <-ctx.Done():
			err := c.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeTimeout))
			if err != nil {
				log.DEBUG.Printf("Error sending close message: %v", err)
			}

			// Wait for close confirmation or timeout
			select {
			case <-done:
			case <-time.After(time.Second):
			}
			return false
		}
	}
}
