package ezville

import "fmt"

// EncodedCommand is a sealed outbound frame plus the ack-prefix the
// command queue should expect in response, or NoAck if the command is
// fire-and-forget.
type EncodedCommand struct {
	Frame []byte
	Ack   AckPrefix
	NoAck bool
}

// EncodeLightPower builds the command frame for `ezville/light_<rid>_<sid>/power/command`.
func EncodeLightPower(room, sub int, on bool) EncodedCommand {
	s := schemas[ClassLight]
	pwr := byte(0x00)
	if on {
		pwr = 0x01
	}
	body := []byte{
		startByte, s.deviceID, 0x10 | byte(room), s.powerCmd,
		0x03, byte(sub), pwr, 0x00, 0x00, 0x00,
	}
	return EncodedCommand{
		Frame: sealFrame(body),
		Ack:   ackPrefix(s.deviceID, room, s.powerAck),
	}
}

// EncodePlugPower builds the command frame for `ezville/plug_<rid>_<sid>/power/command`.
func EncodePlugPower(room, sub int, on bool) EncodedCommand {
	s := schemas[ClassPlug]
	pwr := byte(0x00)
	if on {
		pwr = 0x01
	}
	body := []byte{
		startByte, s.deviceID, 0x10 | byte(room), s.powerCmd,
		0x02, byte(sub), pwr, 0x00, 0x00,
	}
	return EncodedCommand{
		Frame: sealFrame(body),
		Ack:   ackPrefix(s.deviceID, room, s.powerAck),
	}
}

// EncodeGasValveClose builds the command frame for closing a gas valve.
// Opening a gas valve over the bus is intentionally rejected by the
// caller (see ErrGasValveOpenRejected); this function only ever encodes
// the close command.
func EncodeGasValveClose(room int) EncodedCommand {
	s := schemas[ClassGasValve]
	body := []byte{
		startByte, s.deviceID, byte(room), s.powerCmd,
		0x01, 0x00, 0x00, 0x00,
	}
	return EncodedCommand{
		Frame: sealFrame(body),
		// The gas valve frame carries group nibble 0, and so does its ack.
		Ack: AckPrefix{startByte, s.deviceID, byte(room), s.powerAck},
	}
}

// EncodeThermostatSetTemp builds the command frame for setting the
// target temperature, an integer degree Celsius value.
func EncodeThermostatSetTemp(room, celsius int) EncodedCommand {
	s := schemas[ClassThermostat]
	body := []byte{
		startByte, s.deviceID, 0x10 | byte(room), s.targetCmd,
		0x01, byte(celsius), 0x00, 0x00,
	}
	return EncodedCommand{
		Frame: sealFrame(body),
		Ack:   ackPrefix(s.deviceID, room, s.targetAck),
	}
}

// EncodeThermostatAway builds the command frame for the away mode
// toggle. The protocol defines no ack for this command; the queue
// entry is single-shot regardless of the configured retry count.
func EncodeThermostatAway(room int, on bool) EncodedCommand {
	s := schemas[ClassThermostat]
	away := byte(0x00)
	if on {
		away = 0x01
	}
	body := []byte{
		startByte, s.deviceID, 0x10 | byte(room), s.awayCmd,
		0x01, away, 0x00, 0x00,
	}
	return EncodedCommand{Frame: sealFrame(body), NoAck: true}
}

// BatchButton identifies one of the four batch virtual buttons.
type BatchButton string

const (
	BatchElevatorUp   BatchButton = "elevator-up"
	BatchElevatorDown BatchButton = "elevator-down"
	BatchGroup        BatchButton = "group"
	BatchOuting       BatchButton = "outing"
)

// EncodeBatchButton updates the shared request latches for the pressed
// button and re-encodes the combined state-override frame. The
// wallpad acknowledges by changing its own state, which the decoder
// already handles, so the queue entry carries no ack.
func EncodeBatchButton(room int, button BatchButton, latches *BatchLatches) EncodedCommand {
	switch button {
	case BatchElevatorUp:
		latches.ElevUp = true
	case BatchElevatorDown:
		latches.ElevDown = true
	case BatchGroup:
		// Pressing "group" always requests group-on; the canonical
		// on-meaning bit value is 0 (see decodeBatch).
		latches.Group = false
	case BatchOuting:
		latches.Outing = true
	}

	var packed byte
	if latches.ElevDown {
		packed |= 1 << 5
	}
	if latches.ElevUp {
		packed |= 1 << 4
	}
	if latches.Group {
		packed |= 1 << 2
	}
	if latches.Outing {
		packed |= 1 << 1
	}

	s := schemas[ClassBatch]
	body := []byte{
		startByte, s.deviceID, byte(room), s.stateCmd,
		0x03, 0x00, packed, 0x00, 0x00, 0x00,
	}
	return EncodedCommand{Frame: sealFrame(body), NoAck: true}
}

func ackPrefix(deviceID byte, room int, ack byte) AckPrefix {
	return AckPrefix{startByte, deviceID, 0x10 | byte(room), ack}
}

// FormatCurrent renders a decoded plug current reading the way the
// broker expects it: two decimal places.
func FormatCurrent(watts float64) string {
	return fmt.Sprintf("%.2f", watts)
}
