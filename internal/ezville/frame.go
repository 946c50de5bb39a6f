package ezville

// Frame is a validated EzVille RS-485 frame: start byte, device id,
// group+room byte, command byte, data length, payload, checksum, add.
type Frame struct {
	Raw []byte // the complete frame, including checksum and add bytes
}

// DeviceID returns the frame's device-id byte (index 1).
func (f Frame) DeviceID() byte { return f.Raw[1] }

// GroupRoom returns the frame's group+room byte (index 2). The high
// nibble is the group (1 for commands, 0 for some singleton state
// frames); the low nibble is the room id.
func (f Frame) GroupRoom() byte { return f.Raw[2] }

// Room returns the room id, the low nibble of GroupRoom.
func (f Frame) Room() int { return int(f.Raw[2] & 0x0F) }

// Command returns the frame's command byte (index 3).
func (f Frame) Command() byte { return f.Raw[3] }

// DataLength returns the frame's data-length byte (index 4).
func (f Frame) DataLength() byte { return f.Raw[4] }

// Data returns the frame's payload bytes, excluding the 5-byte header
// and the trailing checksum+add bytes.
func (f Frame) Data() []byte {
	n := int(f.DataLength())
	return f.Raw[5 : 5+n]
}

// startByte marks the beginning of every EzVille frame.
const startByte = 0xF7

// headerLen is the number of bytes before the payload: start, device id,
// group+room, command, data length.
const headerLen = 5

// trailerLen is the number of bytes after the payload: checksum, add.
const trailerLen = 2

// checksumAndAdd computes the trailing (checksum, add) pair for a frame
// whose bytes are everything except those two trailing bytes: checksum
// is the XOR of every byte, add is (sum of every byte + checksum) mod 256.
func checksumAndAdd(body []byte) (checksum, add byte) {
	var sum int
	for _, b := range body {
		checksum ^= b
		sum += int(b)
	}
	add = byte((sum + int(checksum)) & 0xFF)
	return checksum, add
}

// sealFrame appends the checksum and add bytes to an encoded command
// body, completing a transmittable frame.
func sealFrame(body []byte) []byte {
	checksum, add := checksumAndAdd(body)
	out := make([]byte, len(body)+trailerLen)
	copy(out, body)
	out[len(body)] = checksum
	out[len(body)+1] = add
	return out
}

// validFrame reports whether frame's trailing checksum/add bytes match
// the values computed over everything preceding them.
func validFrame(frame []byte) bool {
	if len(frame) < trailerLen {
		return false
	}
	body := frame[:len(frame)-trailerLen]
	wantChecksum, wantAdd := checksumAndAdd(body)
	return frame[len(frame)-2] == wantChecksum && frame[len(frame)-1] == wantAdd
}

// Framer accumulates raw gateway bytes across calls and emits validated
// frames. It is reentrant per connection and stateless apart from its
// residue buffer; a single Framer must not be shared between connections.
type Framer struct {
	residue []byte
}

// NewFramer returns a Framer with an empty residue buffer.
func NewFramer() *Framer {
	return &Framer{}
}

// Feed appends newly received bytes to any residue left over from the
// previous call, extracts every complete, checksum-valid frame it can,
// and keeps whatever trailing partial data remains as the new residue.
//
// Feeding the same overall byte stream in arbitrary chunk boundaries
// yields the same sequence of frames as feeding it in one call.
func (fr *Framer) Feed(data []byte) []Frame {
	buf := append(fr.residue, data...)
	fr.residue = nil

	var frames []Frame
	k := 0
	n := len(buf)
	for k < n {
		if buf[k] != startByte {
			k++
			continue
		}
		if k+headerLen > n {
			fr.residue = append([]byte(nil), buf[k:]...)
			break
		}
		dataLength := int(buf[k+4])
		frameLen := headerLen + dataLength + trailerLen
		if k+frameLen > n {
			fr.residue = append([]byte(nil), buf[k:]...)
			break
		}

		candidate := buf[k : k+frameLen]
		if !validFrame(candidate) {
			k++
			continue
		}

		frame := make([]byte, frameLen)
		copy(frame, candidate)
		frames = append(frames, Frame{Raw: frame})
		k += frameLen
	}
	return frames
}
