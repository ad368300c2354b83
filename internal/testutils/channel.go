package testutils

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/srg/wbb/internal/device"
	"github.com/srg/wbb/internal/protocol"
)

// ReadStep is one scripted result of FakeChannel.Read
type ReadStep struct {
	Data []byte
	Err  error
}

// Frame scripts a report delivery
func Frame(data ...byte) ReadStep { return ReadStep{Data: data} }

// Timeout scripts an elapsed receive timeout
func Timeout() ReadStep { return ReadStep{Err: device.ErrTimeout} }

// PeerClosed scripts a zero-length read
func PeerClosed() ReadStep { return ReadStep{Err: io.EOF} }

// Fail scripts a transport failure
func Fail(msg string) ReadStep { return ReadStep{Err: errors.New(msg)} }

// FakeChannel is an in-memory device.Channel. Reads replay a script; once the
// script runs out every read times out. Writes are recorded.
type FakeChannel struct {
	mu       sync.Mutex
	script   []ReadStep
	writes   [][]byte
	reads    int
	closed   bool
	closes   int
	writeErr error
}

// NewFakeChannel creates a channel replaying steps in order
func NewFakeChannel(steps ...ReadStep) *FakeChannel {
	return &FakeChannel{script: steps}
}

// Push appends steps to the read script
func (c *FakeChannel) Push(steps ...ReadStep) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.script = append(c.script, steps...)
}

// FailWrites makes every following write fail with err
func (c *FakeChannel) FailWrites(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writeErr = err
}

func (c *FakeChannel) Read(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return 0, net.ErrClosed
	}
	c.reads++
	if len(c.script) == 0 {
		return 0, device.ErrTimeout
	}

	step := c.script[0]
	c.script = c.script[1:]
	if step.Err != nil {
		return 0, step.Err
	}
	return copy(p, step.Data), nil
}

func (c *FakeChannel) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return 0, net.ErrClosed
	}
	if c.writeErr != nil {
		return 0, c.writeErr
	}
	c.writes = append(c.writes, append([]byte(nil), p...))
	return len(p), nil
}

func (c *FakeChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.closes++
	return nil
}

// Writes returns a copy of every written buffer
func (c *FakeChannel) Writes() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([][]byte, len(c.writes))
	copy(out, c.writes)
	return out
}

// Opcodes returns the output report identifier of every written command
func (c *FakeChannel) Opcodes() []byte {
	writes := c.Writes()
	ops := make([]byte, 0, len(writes))
	for _, w := range writes {
		ops = append(ops, protocol.Command(w).Opcode())
	}
	return ops
}

// ResetWrites forgets recorded writes
func (c *FakeChannel) ResetWrites() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writes = nil
}

// Reads returns how many reads reached the channel while open
func (c *FakeChannel) Reads() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reads
}

// IsClosed reports whether Close was called
func (c *FakeChannel) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Closes returns how many times Close was called
func (c *FakeChannel) Closes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closes
}

// FakeBoard wires a control and a data channel behind a device.Dialer
type FakeBoard struct {
	Control *FakeChannel
	Data    *FakeChannel

	mu      sync.Mutex
	dials   []uint16
	dialErr map[uint16]error
}

// NewFakeBoard creates a board whose data channel replays steps
func NewFakeBoard(steps ...ReadStep) *FakeBoard {
	return &FakeBoard{
		Control: NewFakeChannel(),
		Data:    NewFakeChannel(steps...),
		dialErr: make(map[uint16]error),
	}
}

// FailDial makes dialing psm fail with err
func (b *FakeBoard) FailDial(psm uint16, err error) *FakeBoard {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.dialErr[psm] = err
	return b
}

// Dialed returns the PSMs dialed so far, in order
func (b *FakeBoard) Dialed() []uint16 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]uint16(nil), b.dials...)
}

// Dialer returns a device.Dialer serving this board's channels
func (b *FakeBoard) Dialer() device.Dialer {
	return func(ctx context.Context, addr device.Address, psm uint16, opts device.DialOptions) (device.Channel, error) {
		b.mu.Lock()
		defer b.mu.Unlock()

		b.dials = append(b.dials, psm)
		if err := b.dialErr[psm]; err != nil {
			return nil, err
		}
		switch psm {
		case device.ControlPSM:
			return b.Control, nil
		case device.DataPSM:
			return b.Data, nil
		default:
			return nil, fmt.Errorf("fake board has no psm 0x%02x", psm)
		}
	}
}
