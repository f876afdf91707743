package port_reader

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jacobsa/go-serial/serial"
)

// Lines waiting to be polled before the read goroutine stops pulling from the port.
const lineBacklog = 64

// Marker the firmware prints around its boot banner and heartbeats.
const bannerMarker = "==="

var ErrStreamEnded = errors.New("serial stream ended")

// Open the serial port and wait for the device to settle.
// Boards like the Arduino reset when the port is opened, so anything read
// during the settle delay would be boot noise anyway.
func Open(ctx context.Context, port string, baudrate uint, settle time.Duration) (*LineReader, error) {
	options := serial.OpenOptions{
		PortName:        port,
		BaudRate:        baudrate,
		DataBits:        8,
		StopBits:        1,
		MinimumReadSize: 1,
	}

	serialPort, err := serial.Open(options)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", port, err)
	}

	select {
	case <-time.After(settle):
	case <-ctx.Done():
		serialPort.Close()
		return nil, ctx.Err()
	}

	return NewLineReader(serialPort), nil
}

// NewLineReader starts reading lines from any byte stream.
func NewLineReader(source io.ReadCloser) *LineReader {
	r := &LineReader{
		source: source,
		lines:  make(chan string, lineBacklog),
		done:   make(chan struct{}),
	}
	go r.readLoop()
	return r
}

func (r *LineReader) readLoop() {
	defer close(r.lines)
	reader := bufio.NewReader(r.source)

	for {
		raw, err := reader.ReadString('\n')
		if raw != "" {
			select {
			case r.lines <- decodeLine(raw):
			case <-r.done:
				return
			}
		}

		if err != nil {
			if !r.closed.Load() {
				r.errMu.Lock()
				r.readErr = err
				r.errMu.Unlock()
			}
			return
		}
	}
}

// Poll returns the next line if one is ready.
// ok is false when nothing has arrived yet; an empty line is returned with ok true.
// Once the stream fails, Poll keeps returning the read error.
func (r *LineReader) Poll() (string, bool, error) {
	select {
	case line, open := <-r.lines:
		if !open {
			return "", false, r.err()
		}
		return line, true, nil
	default:
		return "", false, nil
	}
}

func (r *LineReader) err() error {
	r.errMu.Lock()
	defer r.errMu.Unlock()
	if r.readErr == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrStreamEnded, r.readErr)
}

// Close releases the underlying port. Safe to call more than once.
func (r *LineReader) Close() error {
	r.closeOnce.Do(func() {
		r.closed.Store(true)
		close(r.done)
		r.closeErr = r.source.Close()
	})
	return r.closeErr
}

// ShouldDiscard reports lines that carry no sensor data: blank lines and banner markers.
func ShouldDiscard(line string) bool {
	return line == "" || strings.Contains(line, bannerMarker)
}

func decodeLine(raw string) string {
	return strings.TrimSpace(strings.ToValidUTF8(raw, "\uFFFD"))
}
