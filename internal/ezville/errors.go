package ezville

import "errors"

// Sentinel errors for the EzVille protocol engine.
var (
	// ErrUnknownDevice is returned when a frame's device id byte does not
	// match any known device class.
	ErrUnknownDevice = errors.New("ezville: unknown device id")

	// ErrNotStateOrAck is returned when a frame's command byte matches
	// neither the state nor the ack code for its device class.
	ErrNotStateOrAck = errors.New("ezville: frame is neither state nor ack")

	// ErrUnknownClass is returned when a command topic names a device
	// class outside the five supported classes.
	ErrUnknownClass = errors.New("ezville: unknown device class")

	// ErrUnknownAttribute is returned when a command topic names an
	// attribute with no encoder for its device class.
	ErrUnknownAttribute = errors.New("ezville: unknown command attribute")

	// ErrGasValveOpenRejected is returned when a command requests
	// opening a gas valve over the bus; gas valves may only be closed.
	ErrGasValveOpenRejected = errors.New("ezville: gas valve open command rejected")

	// ErrNotConnected is returned when a transport operation is attempted
	// while the gateway connector is not connected.
	ErrNotConnected = errors.New("ezville: gateway not connected")

	// ErrTelnetLogin is returned when the watchdog's telnet reboot
	// session fails during login or restart.
	ErrTelnetLogin = errors.New("ezville: telnet reboot session failed")
)
