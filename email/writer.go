package email

import (
	"context"
	"io"
	"sync"
)

// WriterTransport writes rendered messages to W instead of delivering them.
// It backs the CLI's dry-run mode.
type WriterTransport struct {
	W  io.Writer
	mu sync.Mutex
}

// SendMessage writes m to the underlying writer, followed by a blank line.
func (wt *WriterTransport) SendMessage(_ context.Context, m *Message) error {
	wt.mu.Lock()
	defer wt.mu.Unlock()

	if _, err := m.WriteTo(wt.W); err != nil {
		return &TransportError{Op: "write", Err: err}
	}
	if _, err := io.WriteString(wt.W, "\r\n"); err != nil {
		return &TransportError{Op: "write", Err: err}
	}
	return nil
}
