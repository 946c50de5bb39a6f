package ezville

import (
	"fmt"
	"strconv"
	"strings"
)

// RouteCommand translates one inbound `ezville/.../command` topic and
// payload into a queue entry, consulting state to suppress commands
// that would not change anything. It returns ok=false (with no error)
// when the requested value already matches home-state; the caller
// should log that as informational, not publish anything.
func RouteCommand(inst Instance, attribute, payload string, state *HomeState, latches *BatchLatches) (entry *Entry, ok bool, err error) {
	if _, known := schemas[inst.Class]; !known {
		return nil, false, ErrUnknownClass
	}

	switch inst.Class {
	case ClassBatch:
		return routeBatch(inst, attribute, latches)
	}

	value := normalizeValue(attribute, payload)
	if current, known := state.Snapshot(inst, attribute); known && current == value {
		return nil, false, nil
	}

	cmd, err := encodeForAttribute(inst, attribute, value)
	if err != nil {
		return nil, false, err
	}
	return commandToEntry(cmd), true, nil
}

// normalizeValue applies the protocol's accepted-value aliasing: "heat"
// is read as ON for any power attribute. Thermostat power commands
// themselves have no encoder and are rejected by encodeForAttribute.
func normalizeValue(attribute, payload string) string {
	v := strings.ToUpper(strings.TrimSpace(payload))
	if attribute == "power" && v == "HEAT" {
		return "ON"
	}
	return v
}

func encodeForAttribute(inst Instance, attribute, value string) (EncodedCommand, error) {
	on := value == "ON"

	switch inst.Class {
	case ClassLight:
		if attribute != "power" {
			return EncodedCommand{}, ErrUnknownAttribute
		}
		return EncodeLightPower(inst.Room, inst.Sub, on), nil

	case ClassPlug:
		if attribute != "power" {
			return EncodedCommand{}, ErrUnknownAttribute
		}
		return EncodePlugPower(inst.Room, inst.Sub, on), nil

	case ClassGasValve:
		if attribute != "power" {
			return EncodedCommand{}, ErrUnknownAttribute
		}
		if on {
			return EncodedCommand{}, ErrGasValveOpenRejected
		}
		return EncodeGasValveClose(inst.Room), nil

	case ClassThermostat:
		switch attribute {
		case "away":
			return EncodeThermostatAway(inst.Room, on), nil
		case "setTemp":
			celsius, err := parseTemperature(value)
			if err != nil {
				return EncodedCommand{}, err
			}
			return EncodeThermostatSetTemp(inst.Room, celsius), nil
		default:
			return EncodedCommand{}, ErrUnknownAttribute
		}

	default:
		return EncodedCommand{}, ErrUnknownClass
	}
}

// parseTemperature accepts either an integer or a float string and
// truncates to whole degrees, matching the protocol's integer-Celsius
// setTemp field.
func parseTemperature(value string) (int, error) {
	if f, err := strconv.ParseFloat(value, 64); err == nil {
		return int(f), nil
	}
	return 0, fmt.Errorf("ezville: invalid setTemp value %q", value)
}

// routeBatch dispatches a batch.<button> command. Batch commands are
// unconditional: pressing a button always re-encodes and sends the
// combined latch frame, there is no home-state to compare against.
func routeBatch(inst Instance, attribute string, latches *BatchLatches) (*Entry, bool, error) {
	var button BatchButton
	switch attribute {
	case string(BatchElevatorUp):
		button = BatchElevatorUp
	case string(BatchElevatorDown):
		button = BatchElevatorDown
	case string(BatchGroup):
		button = BatchGroup
	case string(BatchOuting):
		button = BatchOuting
	default:
		return nil, false, ErrUnknownAttribute
	}

	cmd := EncodeBatchButton(inst.Room, button, latches)
	return commandToEntry(cmd), true, nil
}

func commandToEntry(cmd EncodedCommand) *Entry {
	return NewEntry(cmd.Frame, cmd.Ack, cmd.NoAck)
}
