package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ----------------------------
// Input reports
// ----------------------------

// MaxFrameSize is the largest input report the board sends.
const MaxFrameSize = 25

// Tag identifies the semantic type of an input report (second byte).
type Tag byte

const (
	TagUnknown   Tag = 0x00
	TagStatus    Tag = 0x20
	TagReadData  Tag = 0x21
	TagExtension Tag = 0x32
)

func (t Tag) String() string {
	switch t {
	case TagStatus:
		return "status"
	case TagReadData:
		return "read_data"
	case TagExtension:
		return "extension"
	default:
		return "unknown"
	}
}

// Report layout
const (
	offsetTag        = 1
	offsetStatusLED  = 4
	offsetBattery    = 7
	offsetReadLength = 4
	offsetReadData   = 7
	offsetButtons    = 2
	offsetMass       = 4

	minStatusLen   = 8
	minReadDataLen = 8
	buttonLen      = 2
	massLen        = 8
)

// Bit masks and scales
const (
	LEDMask        byte    = 0x10
	ButtonDownMask byte    = 0x08
	BatteryMax     float64 = 200.0

	// CalibrationBlockSize is the size of the first calibration read response.
	CalibrationBlockSize = 16
)

// ErrMalformedFrame is returned when a report is too short for its tag.
var ErrMalformedFrame = errors.New("malformed frame")

// Frame is a decoded view over one raw input report.
type Frame struct {
	Tag Tag
	Raw []byte
}

// Decode tags a raw report. Reports shorter than two bytes carry no tag and are rejected.
func Decode(buf []byte) (Frame, error) {
	if len(buf) < 2 {
		return Frame{}, fmt.Errorf("%w: %d bytes", ErrMalformedFrame, len(buf))
	}

	tag := Tag(buf[offsetTag])
	switch tag {
	case TagStatus, TagReadData, TagExtension:
	default:
		tag = TagUnknown
	}
	return Frame{Tag: tag, Raw: buf}, nil
}

// StatusReport is the payload of a status frame.
type StatusReport struct {
	Battery byte // 0..200
	LEDBits byte
}

// BatteryPercent scales the raw battery level to 0..100.
func (s StatusReport) BatteryPercent() float64 {
	return float64(s.Battery) / BatteryMax * 100
}

// LightOn reports whether the power button LED is lit.
func (s StatusReport) LightOn() bool {
	return s.LEDBits&LEDMask != 0
}

// Status decodes a status frame.
func (f Frame) Status() (StatusReport, error) {
	if f.Tag != TagStatus {
		return StatusReport{}, fmt.Errorf("%w: %s frame is not a status report", ErrMalformedFrame, f.Tag)
	}
	if len(f.Raw) < minStatusLen {
		return StatusReport{}, fmt.Errorf("%w: status report has %d bytes, need %d", ErrMalformedFrame, len(f.Raw), minStatusLen)
	}
	return StatusReport{
		Battery: f.Raw[offsetBattery],
		LEDBits: f.Raw[offsetStatusLED],
	}, nil
}

// ReadDataReport is the payload of a register read response.
type ReadDataReport struct {
	// Length is the block size announced by the board, rounded up to 16-byte units.
	Length int
	// Payload holds up to Length bytes; fewer when the frame was truncated.
	Payload []byte
}

// ReadData decodes a register read response.
func (f Frame) ReadData() (ReadDataReport, error) {
	if f.Tag != TagReadData {
		return ReadDataReport{}, fmt.Errorf("%w: %s frame is not a read response", ErrMalformedFrame, f.Tag)
	}
	if len(f.Raw) < minReadDataLen {
		return ReadDataReport{}, fmt.Errorf("%w: read response has %d bytes, need %d", ErrMalformedFrame, len(f.Raw), minReadDataLen)
	}

	length := int(f.Raw[offsetReadLength])/16 + 1
	end := min(offsetReadData+length, len(f.Raw))
	return ReadDataReport{
		Length:  length,
		Payload: f.Raw[offsetReadData:end],
	}, nil
}

// ExtensionReport is the payload of an extension data frame.
type ExtensionReport struct {
	// Buttons holds the two button bytes; nil when the frame is too short.
	Buttons []byte
	// Mass holds raw sensor counts in corner order top-right, bottom-right,
	// top-left, bottom-left. Valid only when HasMass is true.
	Mass    [4]uint16
	HasMass bool
}

// HasButtons reports whether button bytes were present.
func (e ExtensionReport) HasButtons() bool {
	return len(e.Buttons) == buttonLen
}

// ButtonDown reports the state of the front button. Only the second button
// byte is inspected.
func (e ExtensionReport) ButtonDown() bool {
	return e.HasButtons() && e.Buttons[1]&ButtonDownMask != 0
}

// Extension decodes an extension data frame. Missing parts are reported as
// absent, never as an error.
func (f Frame) Extension() (ExtensionReport, error) {
	if f.Tag != TagExtension {
		return ExtensionReport{}, fmt.Errorf("%w: %s frame is not an extension report", ErrMalformedFrame, f.Tag)
	}

	var rep ExtensionReport
	if len(f.Raw) >= offsetButtons+buttonLen {
		rep.Buttons = f.Raw[offsetButtons : offsetButtons+buttonLen]
	}
	if len(f.Raw) >= offsetMass+massLen {
		for i := range rep.Mass {
			at := offsetMass + 2*i
			rep.Mass[i] = binary.BigEndian.Uint16(f.Raw[at : at+2])
		}
		rep.HasMass = true
	}
	return rep, nil
}
