// Package linktest provides an in-memory serial port for tests.
package linktest

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"coach-event-generator/internal/link"
)

// Port records every write. It is safe for concurrent use so tests can inspect
// it while an agent goroutine writes.
type Port struct {
	mu       sync.Mutex
	writes   [][]byte
	closes   int
	WriteErr error // returned by Write when set
	ShortBy  int   // Write reports this many bytes fewer than given
}

func (p *Port) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.WriteErr != nil {
		return 0, p.WriteErr
	}
	p.writes = append(p.writes, append([]byte(nil), b...))
	return len(b) - p.ShortBy, nil
}

func (p *Port) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closes++
	return nil
}

// SetWriteErr changes the write error under the port's lock.
func (p *Port) SetWriteErr(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.WriteErr = err
}

// Writes returns a copy of every payload written so far.
func (p *Port) Writes() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.writes))
	for i, w := range p.writes {
		out[i] = string(w)
	}
	return out
}

// Bytes returns the concatenation of every write, as the peer would see it.
func (p *Port) Bytes() string {
	return strings.Join(p.Writes(), "")
}

// Closes returns how many times Close was called.
func (p *Port) Closes() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closes
}

// ErrNoDevice is what Opener returns when told to fail.
var ErrNoDevice = errors.New("no such device")

// Opener hands out Ports and remembers every open request.
type Opener struct {
	mu    sync.Mutex
	Fail  bool
	Ports []*Port
	Calls []string
}

// Open satisfies link.OpenFunc.
func (o *Opener) Open(device string, baud int, _ time.Duration) (link.Port, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.Calls = append(o.Calls, device)
	if o.Fail {
		return nil, ErrNoDevice
	}
	p := &Port{}
	o.Ports = append(o.Ports, p)
	return p, nil
}

// SetFail toggles open failures.
func (o *Opener) SetFail(fail bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.Fail = fail
}

// Last returns the most recently opened port, or nil.
func (o *Opener) Last() *Port {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.Ports) == 0 {
		return nil
	}
	return o.Ports[len(o.Ports)-1]
}

// NoSleep is a settling wait that returns immediately unless ctx is done.
func NoSleep(ctx context.Context, _ time.Duration) error {
	return ctx.Err()
}
