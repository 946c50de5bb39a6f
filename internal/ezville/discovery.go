package ezville

import (
	"encoding/json"
	"fmt"
	"time"
)

// DiscoveryDuration is the one-time window, from process start, during
// which a newly observed device instance gets a Home Assistant
// discovery registration instead of a plain state publish. The
// original add-on hardcodes this as DISCOVERY_DURATION = 20 rather
// than reading it from options.json, so it stays a constant here too.
const DiscoveryDuration = 20 * time.Second

// discoveryDevice is the shared "device" block every registration
// payload embeds, identifying the bridge itself to Home Assistant.
var discoveryDevice = map[string]any{
	"ids": []string{"ezville_wallpad"},
	"name": "ezville_wallpad",
	"mf":   "EzVille",
	"mdl":  "EzVille Wallpad",
	"sw":   "ezville-bridge",
}

// discoveryTemplate is one Home-Assistant MQTT-discovery registration,
// parameterized by room/sub id before publishing.
type discoveryTemplate struct {
	integration string
	payload     map[string]any
}

// discoveryTemplates lists, per class, the registration payload
// templates published the first time an instance of that class is
// seen. Plug and batch register multiple entities per instance.
var discoveryTemplates = map[Class][]discoveryTemplate{
	ClassLight: {
		{integration: "light", payload: map[string]any{
			"~":      "ezville/light_%02d_%02d",
			"name":   "ezville_light_%02d_%02d",
			"opt":    true,
			"stat_t": "~/power/state",
			"cmd_t":  "~/power/command",
		}},
	},
	ClassThermostat: {
		{integration: "climate", payload: map[string]any{
			"~":                 "ezville/thermostat_%02d_%02d",
			"name":              "ezville_thermostat_%02d_%02d",
			"mode_stat_t":       "~/power/state",
			"temp_stat_t":       "~/setTemp/state",
			"temp_cmd_t":        "~/setTemp/command",
			"curr_temp_t":       "~/curTemp/state",
			"away_mode_stat_t":  "~/away/state",
			"away_mode_cmd_t":   "~/away/command",
			"modes":             []string{"off", "heat"},
			"min_temp":          "5",
			"max_temp":          40,
		}},
	},
	ClassPlug: {
		{integration: "switch", payload: map[string]any{
			"~":      "ezville/plug_%02d_%02d",
			"name":   "ezville_plug_%02d_%02d",
			"stat_t": "~/power/state",
			"cmd_t":  "~/power/command",
			"icon":   "mdi:leaf",
		}},
		{integration: "binary_sensor", payload: map[string]any{
			"~":      "ezville/plug_%02d_%02d",
			"name":   "ezville_plug-automode_%02d_%02d",
			"stat_t": "~/auto/state",
			"icon":   "mdi:leaf",
		}},
		{integration: "sensor", payload: map[string]any{
			"~":            "ezville/plug_%02d_%02d",
			"name":         "ezville_plug_%02d_%02d_powermeter",
			"stat_t":       "~/current/state",
			"unit_of_meas": "W",
		}},
	},
	ClassGasValve: {
		{integration: "switch", payload: map[string]any{
			"~":      "ezville/gasvalve_%02d_%02d",
			"name":   "ezville_gasvalve_%02d_%02d",
			"stat_t": "~/power/state",
			"cmd_t":  "~/power/command",
			"icon":   "mdi:valve",
		}},
	},
	ClassBatch: {
		{integration: "button", payload: map[string]any{
			"~":     "ezville/batch_%02d_%02d",
			"name":  "ezville_batch-elevator-up_%02d_%02d",
			"cmd_t": "~/elevator-up/command",
			"icon":  "mdi:elevator-up",
		}},
		{integration: "button", payload: map[string]any{
			"~":     "ezville/batch_%02d_%02d",
			"name":  "ezville_batch-elevator-down_%02d_%02d",
			"cmd_t": "~/elevator-down/command",
			"icon":  "mdi:elevator-down",
		}},
		{integration: "binary_sensor", payload: map[string]any{
			"~":      "ezville/batch_%02d_%02d",
			"name":   "ezville_batch-groupcontrol_%02d_%02d",
			"stat_t": "~/group/state",
			"icon":   "mdi:lightbulb-group",
		}},
		{integration: "binary_sensor", payload: map[string]any{
			"~":      "ezville/batch_%02d_%02d",
			"name":   "ezville_batch-outing_%02d_%02d",
			"stat_t": "~/outing/state",
			"icon":   "mdi:home-circle",
		}},
	},
}

// DiscoveryMessage is one rendered registration payload ready to be
// marshaled and published.
type DiscoveryMessage struct {
	Topic   string
	Payload []byte
}

// RenderDiscovery fills in room/sub id on every template for inst's
// class and returns one message per template.
func RenderDiscovery(inst Instance) ([]DiscoveryMessage, error) {
	templates := discoveryTemplates[inst.Class]
	msgs := make([]DiscoveryMessage, 0, len(templates))
	for _, tmpl := range templates {
		payload := make(map[string]any, len(tmpl.payload)+2)
		for k, v := range tmpl.payload {
			if s, ok := v.(string); ok && containsFormatVerb(s) {
				payload[k] = fmt.Sprintf(s, inst.Room, inst.Sub)
				continue
			}
			payload[k] = v
		}

		name, _ := payload["name"].(string)
		payload["device"] = discoveryDevice
		payload["uniq_id"] = name

		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("ezville: marshal discovery payload for %s: %w", name, err)
		}
		msgs = append(msgs, DiscoveryMessage{
			Topic:   Topics{}.Discovery(tmpl.integration, name),
			Payload: raw,
		})
	}
	return msgs, nil
}

func containsFormatVerb(s string) bool {
	for i := 0; i < len(s)-1; i++ {
		if s[i] == '%' {
			return true
		}
	}
	return false
}

// DiscoverySet tracks which device instances have already had their
// registration payload published, so re-registration is idempotent.
type DiscoverySet struct {
	seen map[Instance]bool
}

// NewDiscoverySet returns an empty set.
func NewDiscoverySet() *DiscoverySet {
	return &DiscoverySet{seen: make(map[Instance]bool)}
}

// Registered reports whether inst has already been registered.
func (d *DiscoverySet) Registered(inst Instance) bool {
	return d.seen[inst]
}

// Register marks inst as registered.
func (d *DiscoverySet) Register(inst Instance) {
	d.seen[inst] = true
}
