// Package ezville implements the bridge between an EzVille RS-485
// home-automation wallpad bus and an MQTT broker: frame validation,
// per-device-class state decoding and command encoding, a command
// queue with retry/ack tracking, Home Assistant discovery, and a
// watchdog that reboots the gateway over telnet when the bus goes
// stale.
package ezville
