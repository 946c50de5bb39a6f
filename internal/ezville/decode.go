package ezville

import "fmt"

// Update is one decoded attribute value for one device instance, ready
// to be compared against home-state and published.
type Update struct {
	Instance  Instance
	Attribute string
	Value     string
}

// Classification describes what kind of frame was decoded.
type Classification struct {
	Class   Class
	IsState bool
	IsAck   bool
}

// Classify determines whether a frame is a STATE or ACK frame for a
// known device class. A frame matching neither is dropped by the
// caller; ErrUnknownDevice or ErrNotStateOrAck explain why.
func Classify(f Frame) (Classification, error) {
	s, ok := stateHeader[f.DeviceID()]
	if !ok {
		return Classification{}, ErrUnknownDevice
	}
	if f.Command() == s.stateCmd {
		return Classification{Class: s.class, IsState: true}, nil
	}
	if ackMatches(s, f.Command()) {
		return Classification{Class: s.class, IsAck: true}, nil
	}
	return Classification{}, ErrNotStateOrAck
}

// ackMatches reports whether cmd is the ack code for s's class.
func ackMatches(s schema, cmd byte) bool {
	if s.hasTarget && cmd == s.targetAck {
		return true
	}
	if s.powerAck != 0 && cmd == s.powerAck {
		return true
	}
	return false
}

// AckPrefix is the first four bytes of an ACK frame: start byte, device
// id, group+room, ack command. Command-queue entries compare this
// against the prefix of every incoming ACK frame.
type AckPrefix [4]byte

// Ack returns the ack-matching prefix of an ACK frame. It is only
// meaningful when Classify reported IsAck.
func (f Frame) Ack() AckPrefix {
	var p AckPrefix
	copy(p[:], f.Raw[:4])
	return p
}

// Decode extracts every attribute update present in a STATE or ACK
// frame for the given class. latches receives the raw batch request
// bits so the encoder can reuse them on the next outbound batch
// command; it is nil for non-batch classes.
func Decode(f Frame, class Class, latches *BatchLatches) []Update {
	switch class {
	case ClassLight:
		return decodeLight(f)
	case ClassThermostat:
		return decodeThermostat(f)
	case ClassPlug:
		return decodePlug(f)
	case ClassGasValve:
		return decodeGasValve(f)
	case ClassBatch:
		return decodeBatch(f, latches)
	default:
		return nil
	}
}

func decodeLight(f Frame) []Update {
	room := f.Room()
	count := int(f.DataLength()) // one more than the room's light count
	data := f.Data()

	updates := make([]Update, 0, count)
	for id := 1; id < count; id++ {
		// byte offset 5+id within the raw frame -> data[id] since data
		// starts at raw index 5.
		if id >= len(data) {
			break
		}
		onoff := "OFF"
		if data[id] > 0 {
			onoff = "ON"
		}
		updates = append(updates, Update{
			Instance:  Instance{Class: ClassLight, Room: room, Sub: id},
			Attribute: "power",
			Value:     onoff,
		})
	}
	return updates
}

func decodeThermostat(f Frame) []Update {
	data := f.Data()
	rc := (int(f.DataLength()) - 5) / 2
	const sub = 1

	var updates []Update
	for rid := 1; rid <= rc; rid++ {
		inst := Instance{Class: ClassThermostat, Room: rid, Sub: sub}

		// bitmaps live at data offsets 1 and 2 (raw bytes 6 and 7).
		powerBitmap := data[1]
		awayBitmap := data[2]
		shift := uint(rc - rid)

		onoff := bitSelect(powerBitmap, shift)
		awayOnOff := bitSelect(awayBitmap, shift)

		// setTemp/curTemp live at raw bytes 8+2*rid and 9+2*rid ->
		// data offsets (3+2*rid) and (4+2*rid).
		setIdx := 3 + 2*rid
		curIdx := 4 + 2*rid
		setTemp := 0
		curTemp := 0
		if setIdx < len(data) {
			setTemp = int(data[setIdx])
		}
		if curIdx < len(data) {
			curTemp = int(data[curIdx])
		}

		updates = append(updates,
			Update{Instance: inst, Attribute: "power", Value: onOffString(onoff)},
			Update{Instance: inst, Attribute: "away", Value: onOffString(awayOnOff)},
			Update{Instance: inst, Attribute: "setTemp", Value: fmt.Sprintf("%d", setTemp)},
			Update{Instance: inst, Attribute: "curTemp", Value: fmt.Sprintf("%d", curTemp)},
		)
	}
	return updates
}

// bitSelect computes the zone bit test `((bitmap & 0x1F) >> shift) & 1`:
// the low five bits of the bitmap, shifted right by shift, bit 0.
func bitSelect(bitmap byte, shift uint) bool {
	if shift >= 8 {
		return false
	}
	return ((bitmap&0x1F)>>shift)&1 != 0
}

func decodePlug(f Frame) []Update {
	room := f.Room()
	data := f.Data()
	if len(data) == 0 {
		return nil
	}
	count := int(data[0]) // plug count, data offset 0 (raw byte 5)

	var updates []Update
	for id := 1; id <= count; id++ {
		// auto nibble (high) / power nibble (low) share data offset
		// 3*id-2; current (W) lives at the next two bytes, offsets
		// 3*id-1 and 3*id.
		byteIdx := 3*id - 2
		currentIdx := 3*id - 1
		if byteIdx < 0 || currentIdx+1 >= len(data) {
			break
		}
		b := data[byteIdx]
		autoNibble := b >> 4
		powerNibble := b & 0x0F

		onoff := "OFF"
		if powerNibble > 0 {
			onoff = "ON"
		}
		autoOnOff := "OFF"
		if autoNibble > 0 {
			autoOnOff = "ON"
		}

		raw := int(data[currentIdx])<<8 | int(data[currentIdx+1])
		current := float64(raw) / 100

		inst := Instance{Class: ClassPlug, Room: room, Sub: id}
		updates = append(updates,
			Update{Instance: inst, Attribute: "power", Value: onoff},
			// Corrected defect: the original publishes `power`'s value
			// under the `auto` topic. Here `auto` carries the decoded
			// auto-mode bit instead.
			Update{Instance: inst, Attribute: "auto", Value: autoOnOff},
			Update{Instance: inst, Attribute: "current", Value: FormatCurrent(current)},
		)
	}
	return updates
}

func decodeGasValve(f Frame) []Update {
	data := f.Data()
	onoff := "OFF"
	if len(data) > 1 && data[1] == 0x01 {
		onoff = "ON"
	}
	return []Update{{
		Instance:  Instance{Class: ClassGasValve, Room: 1, Sub: 1},
		Attribute: "power",
		Value:     onoff,
	}}
}

// BatchLatches holds the four sticky request bits for the batch
// singleton device, updated both by decoded bus frames and by inbound
// HA commands, and consumed by the batch command encoder.
type BatchLatches struct {
	ElevUp   bool
	ElevDown bool
	// Group is the raw protocol bit, not the on/off meaning: 0 means
	// group-on (see the polarity note in decodeBatch).
	Group  bool
	Outing bool
}

func decodeBatch(f Frame, latches *BatchLatches) []Update {
	data := f.Data()
	if len(data) < 2 {
		return nil
	}
	b := data[1] // raw byte 6, hex chars [12:14]

	if latches != nil {
		latches.ElevDown = (b>>5)&1 != 0
		latches.ElevUp = (b>>4)&1 != 0
		latches.Group = (b>>2)&1 != 0
		latches.Outing = (b>>1)&1 != 0
	}

	// Post-discovery canonical polarity: group bit 0 means ON. See the
	// corrected-defect note in SPEC_FULL.md §6.
	groupOn := "OFF"
	if latches == nil || !latches.Group {
		groupOn = "ON"
	}
	outingOn := "OFF"
	if latches != nil && latches.Outing {
		outingOn = "ON"
	}

	inst := Instance{Class: ClassBatch, Room: 1, Sub: 1}
	return []Update{
		{Instance: inst, Attribute: "group", Value: groupOn},
		{Instance: inst, Attribute: "outing", Value: outingOn},
	}
}

func onOffString(on bool) string {
	if on {
		return "ON"
	}
	return "OFF"
}
