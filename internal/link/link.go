// Package link owns the serial connection to the coach controller.
//
// A Conn is not safe for concurrent use. Exactly one goroutine may own it; other
// producers go through the agent's command channel.
package link

import (
	"context"
	"io"
	"time"

	"coach-event-generator/internal/logger"
	"coach-event-generator/internal/protocol"
)

const (
	// DefaultBaudRate is the controller's UART speed.
	DefaultBaudRate = 115200
	// DefaultSettleDelay covers the reset most USB-serial bridges perform on open.
	DefaultSettleDelay = 2 * time.Second
	// DefaultReadTimeout bounds transport reads.
	DefaultReadTimeout = 1 * time.Second
)

// Manager opens connections.
type Manager struct {
	log         *logger.Logger
	open        OpenFunc
	settle      time.Duration
	readTimeout time.Duration
	sleep       func(ctx context.Context, d time.Duration) error
}

// Option configures a Manager.
type Option func(*Manager)

// WithOpener replaces the serial opener, typically with a fake in tests.
func WithOpener(fn OpenFunc) Option {
	return func(m *Manager) { m.open = fn }
}

// WithSettleDelay overrides the post-open settling delay.
func WithSettleDelay(d time.Duration) Option {
	return func(m *Manager) { m.settle = d }
}

// WithReadTimeout overrides the transport read timeout.
func WithReadTimeout(d time.Duration) Option {
	return func(m *Manager) { m.readTimeout = d }
}

// WithSleep replaces the settling wait.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(m *Manager) { m.sleep = fn }
}

// NewManager creates a Manager that opens real serial devices by default.
func NewManager(log *logger.Logger, opts ...Option) *Manager {
	m := &Manager{
		log:         log,
		open:        OpenSerial,
		settle:      DefaultSettleDelay,
		readTimeout: DefaultReadTimeout,
		sleep:       Sleep,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Open opens device at baud and waits for the peer to settle before returning.
// Cancelling ctx during the settling delay closes the port again.
func (m *Manager) Open(ctx context.Context, device string, baud int) (*Conn, error) {
	m.log.Infow("[Link] Opening serial device", "device", device, "baud", baud)

	port, err := m.open(device, baud, m.readTimeout)
	if err != nil {
		m.log.Warnw("[Link] Failed to open device", "device", device, "err", err)
		return nil, &Error{Code: ErrOpenFailed, Device: device, Original: err}
	}

	if m.settle > 0 {
		m.log.Debugw("[Link] Waiting for device to settle", "delay", m.settle)
		if err := m.sleep(ctx, m.settle); err != nil {
			_ = port.Close()
			return nil, &Error{Code: ErrOpenFailed, Device: device, Original: err}
		}
	}

	m.log.Infow("[Link] Connected", "device", device)
	return &Conn{device: device, port: port, log: m.log}, nil
}

// Conn is an open link. The zero value and a nil *Conn behave as a closed link.
type Conn struct {
	device string
	port   Port
	closed bool
	log    *logger.Logger
}

// Device returns the device path the connection was opened on.
func (c *Conn) Device() string {
	if c == nil {
		return ""
	}
	return c.device
}

// IsOpen reports whether Send may reach the transport.
func (c *Conn) IsOpen() bool {
	return c != nil && c.port != nil && !c.closed
}

// Send writes msg in a single transport write. A failed write leaves the
// connection open; the caller decides whether to carry on.
func (c *Conn) Send(msg protocol.WireMessage) error {
	if !c.IsOpen() {
		return &Error{Code: ErrNotConnected, Device: c.Device()}
	}

	payload := msg.Bytes()
	n, err := c.port.Write(payload)
	if err == nil && n != len(payload) {
		err = io.ErrShortWrite
	}
	if err != nil {
		c.log.Warnw("[Link] Write failed", "device", c.device, "line", msg.Line(), "err", err)
		return &Error{Code: ErrWriteFailed, Device: c.device, Original: err}
	}

	c.log.Debugw("[Link] Sent", "line", msg.Line())
	return nil
}

// Close releases the port. Closing a closed, zero or nil Conn is a no-op.
func (c *Conn) Close() error {
	if !c.IsOpen() {
		return nil
	}
	c.closed = true
	err := c.port.Close()
	if err != nil {
		c.log.Warnw("[Link] Close warning", "device", c.device, "err", err)
	} else {
		c.log.Infow("[Link] Disconnected", "device", c.device)
	}
	return err
}

// Sleep waits for d or until ctx is done, whichever comes first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
