package ezville

// Class identifies one of the five supported EzVille device classes.
type Class string

const (
	ClassLight      Class = "light"
	ClassThermostat Class = "thermostat"
	ClassPlug       Class = "plug"
	ClassGasValve   Class = "gasvalve"
	ClassBatch      Class = "batch"
)

// schema is the fixed device-id / command-code table for a class, built
// once from the literal device/command table in the protocol spec. It
// never changes at runtime.
type schema struct {
	class     Class
	deviceID  byte
	stateCmd  byte
	powerCmd  byte // power/press command byte, 0 if the class has none
	powerAck  byte // ack byte for powerCmd, 0 if none
	awayCmd   byte // thermostat-only away command byte
	hasAway   bool
	targetCmd byte // thermostat-only target(setTemp) command byte
	targetAck byte
	hasTarget bool
}

// schemas holds one entry per supported device class, indexed by Class.
var schemas = map[Class]schema{
	ClassLight: {
		class: ClassLight, deviceID: 0x0E, stateCmd: 0x81,
		powerCmd: 0x41, powerAck: 0xC1,
	},
	ClassThermostat: {
		class: ClassThermostat, deviceID: 0x36, stateCmd: 0x81,
		awayCmd: 0x45, hasAway: true,
		targetCmd: 0x44, targetAck: 0xC4, hasTarget: true,
	},
	ClassPlug: {
		class: ClassPlug, deviceID: 0x50, stateCmd: 0x81,
		powerCmd: 0x43, powerAck: 0xC3,
	},
	ClassGasValve: {
		class: ClassGasValve, deviceID: 0x12, stateCmd: 0x81,
		powerCmd: 0x41, powerAck: 0xC1,
	},
	ClassBatch: {
		class: ClassBatch, deviceID: 0x33, stateCmd: 0x81,
		powerCmd: 0x41, powerAck: 0xC1,
	},
}

// stateHeader maps a device id byte to the class whose STATE frames carry
// that id, built once from schemas the way the original's STATE_HEADER
// table is built from RS485_DEVICE.
var stateHeader = map[byte]schema{}

// ackHeader maps a device id byte to the class whose ACK frames carry
// that id. Light, plug, gasvalve and batch acknowledge their power/press
// command and thermostat its target command; thermostat's away command
// has no ack, matching the protocol table.
var ackHeader = map[byte]schema{}

func init() {
	for _, s := range schemas {
		stateHeader[s.deviceID] = s
		if s.powerAck != 0 {
			ackHeader[s.deviceID] = s
		}
		if s.hasTarget {
			// thermostat's ack header is keyed by the same device id;
			// target and power never collide because no class has both.
			ackHeader[s.deviceID] = s
		}
	}
}

// Instance identifies one physical device: its class, the room id decoded
// from the low nibble of frame byte 2, and a sub-id distinguishing
// multiple devices of the same class within a room. Gas valve and batch
// are singletons (room=1, sub=1).
type Instance struct {
	Class Class
	Room  int
	Sub   int
}
