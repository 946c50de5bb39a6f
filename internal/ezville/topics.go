package ezville

import (
	"fmt"
	"strconv"
	"strings"
)

// Topics builds the EzVille bridge's MQTT topic strings. Using these
// helpers keeps topic naming consistent between the state publisher,
// the command subscriber and the discovery publisher.
type Topics struct{}

const (
	haTopic          = "ezville"
	gatewayTopic     = "ew11"
	discoveryPrefix  = "homeassistant"
	discoveryAddonID = "ezville_wallpad"
)

// instanceID renders an instance as `<class>_<rid:02d>_<sid:02d>`.
func instanceID(inst Instance) string {
	return fmt.Sprintf("%s_%02d_%02d", inst.Class, inst.Room, inst.Sub)
}

// State returns the topic a device instance's attribute value is
// published to: `ezville/<class>_<rid>_<sid>/<attr>/state`.
func (Topics) State(inst Instance, attr string) string {
	return fmt.Sprintf("%s/%s/%s/state", haTopic, instanceID(inst), attr)
}

// CommandSubscribe returns the wildcard subscription covering every
// command topic: `ezville/#`.
func (Topics) CommandSubscribe() string {
	return haTopic + "/#"
}

// GatewayRecv is the topic raw gateway bytes are published to by the
// gateway device itself (`mqtt`/`mixed` transport modes).
func (Topics) GatewayRecv() string { return gatewayTopic + "/recv" }

// GatewaySend is the topic outbound raw command bytes are published
// to for the gateway to relay onto the bus (`mqtt` transport mode).
func (Topics) GatewaySend() string { return gatewayTopic + "/send" }

// Discovery returns the Home-Assistant MQTT-discovery config topic for
// one registration payload: `homeassistant/<integration>/ezville_wallpad/<name>/config`.
func (Topics) Discovery(integration, name string) string {
	return fmt.Sprintf("%s/%s/%s/%s/config", discoveryPrefix, integration, discoveryAddonID, name)
}

// ParseCommandTopic splits a subscribed command topic into its class,
// room, sub-id and attribute. ok is false for any topic that does not
// match the `ezville/<class>_<rid>_<sid>/<attr>/command` shape.
func ParseCommandTopic(topic string) (inst Instance, attr string, ok bool) {
	segments := strings.Split(topic, "/")
	if len(segments) != 4 || segments[0] != haTopic || segments[3] != "command" {
		return Instance{}, "", false
	}

	class, room, sub, ok := parseDeviceSegment(segments[1])
	if !ok {
		return Instance{}, "", false
	}
	return Instance{Class: class, Room: room, Sub: sub}, segments[2], true
}

// parseDeviceSegment parses `<class>_<rid>_<sid>` into its parts.
func parseDeviceSegment(seg string) (class Class, room, sub int, ok bool) {
	parts := strings.Split(seg, "_")
	if len(parts) != 3 {
		return "", 0, 0, false
	}
	c := Class(parts[0])
	if _, known := schemas[c]; !known {
		return "", 0, 0, false
	}
	room, err1 := strconv.Atoi(parts[1])
	sub, err2 := strconv.Atoi(parts[2])
	if err1 != nil || err2 != nil {
		return "", 0, 0, false
	}
	return c, room, sub, true
}
