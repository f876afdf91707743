package port_reader

import (
	"io"
	"sync"
	"sync/atomic"
)

// LineReader turns a serial byte stream into trimmed text lines.
// Reading happens on its own goroutine so Poll never blocks the caller.
type LineReader struct {
	source io.ReadCloser
	lines  chan string
	done   chan struct{}

	errMu   sync.Mutex
	readErr error

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}
