package testutils

import (
	"encoding/binary"

	"github.com/srg/wbb/internal/protocol"
)

// dataHeader is the leading byte of every report received on the data channel.
const dataHeader = 0xA1

// Fixture calibration cells, identical for every corner column offset by
// the corner index: 0 kg row = 100+i, 17 kg row = 1000+i, 34 kg row = 1900+i.
var (
	Row0kg  = [4]uint16{100, 101, 102, 103}
	Row17kg = [4]uint16{1000, 1001, 1002, 1003}
	Row34kg = [4]uint16{1900, 1901, 1902, 1903}
)

// StatusFrame builds a status report with the given LED bits and battery level.
func StatusFrame(ledBits, battery byte) []byte {
	return []byte{dataHeader, byte(protocol.TagStatus), 0x00, 0x00, ledBits, 0x00, 0x00, battery}
}

// ReadDataFrame builds a register read response carrying payload. The
// length indicator announces len(payload) bytes.
func ReadDataFrame(payload []byte) []byte {
	frame := []byte{dataHeader, byte(protocol.TagReadData), 0x00, 0x00, byte((len(payload) - 1) << 4), 0x00, 0x24}
	return append(frame, payload...)
}

// FirstCalibrationBlock is the 16-byte response holding the 0 kg and 17 kg rows.
func FirstCalibrationBlock() []byte {
	return ReadDataFrame(append(rowBytes(Row0kg), rowBytes(Row17kg)...))
}

// SecondCalibrationBlock is the 8-byte response holding the 34 kg row.
func SecondCalibrationBlock() []byte {
	return ReadDataFrame(rowBytes(Row34kg))
}

// ExtensionFrame builds an extension report with the button bytes and four raw
// mass readings in corner order top-right, bottom-right, top-left, bottom-left.
func ExtensionFrame(buttonDown bool, mass [4]uint16) []byte {
	var buttons byte
	if buttonDown {
		buttons = protocol.ButtonDownMask
	}
	frame := []byte{dataHeader, byte(protocol.TagExtension), 0x00, buttons}
	return append(frame, rowBytes(mass)...)
}

// UniformMass returns the same raw reading for all four corners.
func UniformMass(raw uint16) [4]uint16 {
	return [4]uint16{raw, raw, raw, raw}
}

func rowBytes(row [4]uint16) []byte {
	out := make([]byte, 0, 8)
	for _, v := range row {
		out = binary.BigEndian.AppendUint16(out, v)
	}
	return out
}
