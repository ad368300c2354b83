package protocol

// ----------------------------
// Output commands
// ----------------------------

// CommandPrefix leads every command written to the control channel (HID SET_REPORT, output).
const CommandPrefix byte = 0x52

// Output report identifiers
const (
	OpLight         byte = 0x11
	OpReporting     byte = 0x12
	OpRequestStatus byte = 0x15
	OpRegister      byte = 0x16
	OpReadRegister  byte = 0x17
)

// Reporting modes and light payloads
const (
	ContinuousReporting byte = 0x04
	LightOn             byte = 0x10
	LightOff            byte = 0x00
)

var (
	// calibrationReadPayload addresses the 24-byte calibration block of the extension memory.
	calibrationReadPayload = []byte{0x04, 0xA4, 0x00, 0x24, 0x00, 0x18}

	// extensionRegisterPayload enables the balance extension so mass data is reported.
	extensionRegisterPayload = []byte{0x04, 0xA4, 0x00, 0x40, 0x00}
)

// Command is a fully framed output report, ready to be written as-is.
type Command []byte

// NewCommand frames opcode and payload behind the command prefix.
func NewCommand(op byte, payload ...byte) Command {
	cmd := make(Command, 0, 2+len(payload))
	cmd = append(cmd, CommandPrefix, op)
	return append(cmd, payload...)
}

// Opcode returns the output report identifier, or 0 for a truncated command.
func (c Command) Opcode() byte {
	if len(c) < 2 {
		return 0
	}
	return c[1]
}

// Light switches the power button LED.
func Light(on bool) Command {
	if on {
		return NewCommand(OpLight, LightOn)
	}
	return NewCommand(OpLight, LightOff)
}

// Reporting selects the data reporting mode and the input report format.
// The board needs this re-sent after every status report.
func Reporting(mode, format byte) Command {
	return NewCommand(OpReporting, mode, format)
}

// ContinuousExtensionReporting is Reporting(ContinuousReporting, TagExtension).
func ContinuousExtensionReporting() Command {
	return Reporting(ContinuousReporting, byte(TagExtension))
}

// RequestStatus asks for a status report.
func RequestStatus() Command {
	return NewCommand(OpRequestStatus, 0x00)
}

// RegisterExtension writes the extension enable register.
func RegisterExtension() Command {
	return NewCommand(OpRegister, extensionRegisterPayload...)
}

// ReadCalibration requests the calibration memory block. The board answers with
// two read-data reports.
func ReadCalibration() Command {
	return NewCommand(OpReadRegister, calibrationReadPayload...)
}
