// Package calibration converts raw load-cell counts to kilograms and assembles
// the calibration matrix the board reports over two register reads.
package calibration

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// Corner identifies one of the four load cells.
type Corner int

const (
	TopRight Corner = iota
	BottomRight
	TopLeft
	BottomLeft
)

// Corners lists the load cells in wire order.
var Corners = [4]Corner{TopRight, BottomRight, TopLeft, BottomLeft}

func (c Corner) String() string {
	switch c {
	case TopRight:
		return "top_right"
	case BottomRight:
		return "bottom_right"
	case TopLeft:
		return "top_left"
	case BottomLeft:
		return "bottom_left"
	default:
		return fmt.Sprintf("corner(%d)", int(c))
	}
}

// Band identifies one reference weight of the calibration curve.
type Band int

const (
	Band0kg Band = iota
	Band17kg
	Band34kg
)

// Reference weights in kilograms
const (
	MidReferenceKg  = 17.0
	HighReferenceKg = 34.0
)

// ReferenceKg returns the weight the band was calibrated at.
func (b Band) ReferenceKg() float64 {
	return float64(b) * MidReferenceKg
}

// Unset marks a cell the board has not reported yet. It lies outside the
// 16-bit range of decoded cells.
const Unset uint32 = math.MaxUint32

// ErrIncomplete is returned when converting with a matrix that still has unset cells.
var ErrIncomplete = errors.New("calibration incomplete")

// Matrix holds the raw reading of each corner at each reference weight.
type Matrix [3][4]uint32

// NewMatrix returns a matrix with every cell unset.
func NewMatrix() Matrix {
	var m Matrix
	for b := range m {
		m.resetRow(Band(b))
	}
	return m
}

func (m *Matrix) resetRow(b Band) {
	for c := range m[b] {
		m[b][c] = Unset
	}
}

// setRow decodes four big-endian cells into band b.
func (m *Matrix) setRow(b Band, data []byte) {
	for c := range m[b] {
		m[b][c] = uint32(binary.BigEndian.Uint16(data[2*c : 2*c+2]))
	}
}

// Complete reports whether every cell holds a reported value.
func (m Matrix) Complete() bool {
	for b := range m {
		for c := range m[b] {
			if m[b][c] == Unset {
				return false
			}
		}
	}
	return true
}

// Cells returns the 0, 17 and 34 kg readings for a corner.
func (m Matrix) Cells(corner Corner) (c0, c1, c2 uint32) {
	return m[Band0kg][corner], m[Band17kg][corner], m[Band34kg][corner]
}

// Mass converts a raw reading of one corner to kilograms.
func (m Matrix) Mass(raw uint16, corner Corner) (float64, error) {
	if !m.Complete() {
		return 0, ErrIncomplete
	}
	c0, c1, c2 := m.Cells(corner)
	return Mass(raw, c0, c1, c2), nil
}

// Reading converts the four raw corner counts, in wire order.
func (m Matrix) Reading(raw [4]uint16) (Reading, error) {
	if !m.Complete() {
		return Reading{}, ErrIncomplete
	}

	var kg [4]float64
	for i, corner := range Corners {
		c0, c1, c2 := m.Cells(corner)
		kg[i] = Mass(raw[i], c0, c1, c2)
	}
	return Reading{
		TopRight:    kg[TopRight],
		BottomRight: kg[BottomRight],
		TopLeft:     kg[TopLeft],
		BottomLeft:  kg[BottomLeft],
	}, nil
}

// Mass interpolates a raw count over the three reference points of one corner.
// A zero-width band (corrupt calibration) contributes 0 instead of dividing by zero.
func Mass(raw uint16, c0, c1, c2 uint32) float64 {
	r := float64(raw)
	switch {
	case uint32(raw) < c0:
		return 0.0
	case uint32(raw) < c1:
		if c1 == c0 {
			return 0.0
		}
		return MidReferenceKg * (r - float64(c0)) / float64(c1-c0)
	default:
		if c2 == c1 {
			return 0.0
		}
		return MidReferenceKg + MidReferenceKg*(r-float64(c1))/(float64(c2)-float64(c1))
	}
}

// Reading is the load on each corner, in kilograms.
type Reading struct {
	TopRight    float64 `json:"top_right"`
	BottomRight float64 `json:"bottom_right"`
	TopLeft     float64 `json:"top_left"`
	BottomLeft  float64 `json:"bottom_left"`
}

// Total returns the sum of the four corners.
func (r Reading) Total() float64 {
	return r.TopRight + r.BottomRight + r.TopLeft + r.BottomLeft
}

// Corner returns the load of a single corner.
func (r Reading) Corner(c Corner) float64 {
	switch c {
	case TopRight:
		return r.TopRight
	case BottomRight:
		return r.BottomRight
	case TopLeft:
		return r.TopLeft
	case BottomLeft:
		return r.BottomLeft
	default:
		return 0
	}
}

// Balance returns the centre of pressure, x from left (-1) to right (+1) and
// y from bottom (-1) to top (+1). An unloaded board is balanced at (0, 0).
func (r Reading) Balance() (x, y float64) {
	total := r.Total()
	if total <= 0 {
		return 0, 0
	}
	x = ((r.TopRight + r.BottomRight) - (r.TopLeft + r.BottomLeft)) / total
	y = ((r.TopRight + r.TopLeft) - (r.BottomRight + r.BottomLeft)) / total
	return x, y
}
