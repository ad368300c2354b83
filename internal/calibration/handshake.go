package calibration

import (
	"errors"
	"fmt"
)

// HandshakeState tracks the two-response calibration read.
type HandshakeState int

const (
	NotRequested HandshakeState = iota
	FirstBlockPending
	SecondBlockPending
	Complete
)

func (s HandshakeState) String() string {
	switch s {
	case NotRequested:
		return "not_requested"
	case FirstBlockPending:
		return "first_block_pending"
	case SecondBlockPending:
		return "second_block_pending"
	case Complete:
		return "complete"
	default:
		return fmt.Sprintf("handshake_state(%d)", int(s))
	}
}

const (
	// firstBlockLen carries the 0 kg and 17 kg rows.
	firstBlockLen = 16
	// rowLen is one band: four 2-byte cells.
	rowLen = 8
)

var (
	// ErrShortBlock is returned when a response announces more bytes than it carries.
	ErrShortBlock = errors.New("calibration block too short")
	// ErrUnexpectedBlock is returned for a second block that arrives before the first.
	ErrUnexpectedBlock = errors.New("calibration block out of order")
)

// Handshake assembles a Matrix from the two read responses that answer a
// calibration read request. The zero value is NotRequested.
type Handshake struct {
	state  HandshakeState
	matrix Matrix
}

// State returns the current handshake state.
func (h *Handshake) State() HandshakeState {
	return h.state
}

// Matrix returns a copy of the matrix assembled so far.
func (h *Handshake) Matrix() Matrix {
	if h.state == NotRequested {
		return NewMatrix()
	}
	return h.matrix
}

// Begin clears any previous matrix and waits for the first block.
func (h *Handshake) Begin() {
	h.matrix = NewMatrix()
	h.state = FirstBlockPending
}

// Feed consumes one read response. length is the block size announced by the
// board and payload the bytes that followed it. It returns true exactly once,
// on the response that completes the matrix.
//
// A full 16-byte block carries the 0 kg and 17 kg rows; a shorter one carries
// the 34 kg row. Responses outside of a pending handshake are ignored.
func (h *Handshake) Feed(length int, payload []byte) (bool, error) {
	if h.state != FirstBlockPending && h.state != SecondBlockPending {
		return false, nil
	}

	switch {
	case length == firstBlockLen:
		if len(payload) < firstBlockLen {
			return false, fmt.Errorf("%w: first block has %d of %d bytes", ErrShortBlock, len(payload), firstBlockLen)
		}
		next := NewMatrix()
		next.setRow(Band0kg, payload[0:rowLen])
		next.setRow(Band17kg, payload[rowLen:2*rowLen])
		h.matrix = next
		h.state = SecondBlockPending
		return false, nil

	case length < firstBlockLen:
		if h.state != SecondBlockPending {
			return false, fmt.Errorf("%w: got %d-byte block before the first block", ErrUnexpectedBlock, length)
		}
		if len(payload) < rowLen {
			return false, fmt.Errorf("%w: second block has %d of %d bytes", ErrShortBlock, len(payload), rowLen)
		}
		next := h.matrix
		next.setRow(Band34kg, payload[0:rowLen])
		h.matrix = next
		h.state = Complete
		return true, nil

	default:
		return false, fmt.Errorf("%w: unexpected block length %d", ErrUnexpectedBlock, length)
	}
}
