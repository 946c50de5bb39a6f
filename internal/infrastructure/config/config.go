package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the root configuration for the EzVille bridge. It is
// loaded once at startup from a JSON file at a fixed path; there is no
// hot-reload and no persistence across restarts.
//
// The field layout is flat and the JSON tags match the original
// Home-Assistant add-on's options.json exactly, so an existing
// options.json from that add-on is valid input here unchanged. Only
// `logging` and the ew11_log/mqtt_log-adjacent fields are additions
// beyond what the original add-on ever read.
type Config struct {
	Mode string `json:"mode"`

	MQTTServer   string `json:"mqtt_server"`
	MQTTPort     int    `json:"mqtt_port"`
	MQTTID       string `json:"mqtt_id"`
	MQTTPassword string `json:"mqtt_password"`

	EW11Server     string `json:"ew11_server"`
	EW11Port       int    `json:"ew11_port"`
	EW11ID         string `json:"ew11_id"`
	EW11Password   string `json:"ew11_password"`
	EW11BufferSize int    `json:"ew11_buffer_size"`
	EW11Timeout    int    `json:"ew11_timeout"`

	CommandSendCount  int     `json:"command_send_count"`
	CommandInterval   float64 `json:"command_interval"`
	CommandRetryCount int     `json:"command_retry_count"`
	RandomBackoff     bool    `json:"random_backoff"`

	StateLoopDelay   float64 `json:"state_loop_delay"`
	CommandLoopDelay float64 `json:"command_loop_delay"`
	SerialRecvDelay  float64 `json:"serial_recv_delay"`

	Debug   bool `json:"DEBUG"`
	MQTTLog bool `json:"mqtt_log"`
	EW11Log bool `json:"ew11_log"`

	Logging LoggingConfig `json:"logging"`
}

// LoggingConfig contains logging settings. It has no counterpart in
// the original add-on (which only ever printed to stdout); it is an
// ambient-stack addition, which is why it is the one section still
// nested rather than flattened to the original's option names.
type LoggingConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
	Output string `json:"output"`
}

// mqttClientID is the paho client identifier. The original add-on
// hardcodes this as mqtt.Client('mqtt-ezville') rather than reading it
// from options.json, so it stays a constant here too.
const mqttClientID = "mqtt-ezville"

// MQTT connection knobs the original add-on never exposed as options
// (QoS, reconnect backoff) and so are not configurable here either.
const (
	defaultMQTTQoS               = 1
	defaultReconnectInitialDelay = 1  // seconds
	defaultReconnectMaxDelay     = 60 // seconds
)

// MQTTConfig is the shape the MQTT client wrapper consumes. It is
// assembled by MQTTConnConfig from the flat option fields rather than
// unmarshaled directly from JSON, since several of its fields
// (ClientID, QoS, reconnect backoff) have no corresponding option key.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig
	Auth      MQTTAuthConfig
	QoS       int
	Reconnect MQTTReconnectConfig
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string
	Port     int
	TLS      bool
	ClientID string
}

// MQTTAuthConfig contains MQTT authentication credentials. Per the
// original add-on, mqtt_id is passed to username_pw_set as the
// username, not used as a client identifier.
type MQTTAuthConfig struct {
	Username string
	Password string
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int
	MaxDelay     int
}

// MQTTConnConfig builds the MQTT client wrapper's connection config
// from the flat option fields.
func (c *Config) MQTTConnConfig() MQTTConfig {
	return MQTTConfig{
		Broker: MQTTBrokerConfig{
			Host:     c.MQTTServer,
			Port:     c.MQTTPort,
			ClientID: mqttClientID,
		},
		Auth: MQTTAuthConfig{
			Username: c.MQTTID,
			Password: c.MQTTPassword,
		},
		QoS: defaultMQTTQoS,
		Reconnect: MQTTReconnectConfig{
			InitialDelay: defaultReconnectInitialDelay,
			MaxDelay:     defaultReconnectMaxDelay,
		},
	}
}

// Load reads configuration from a JSON file and applies environment
// variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. JSON file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern EZVILLE_KEY, e.g.
// EZVILLE_MQTT_SERVER, EZVILLE_EW11_PASSWORD.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		Mode:     "socket",
		MQTTPort: 1883,

		EW11Port:       8899,
		EW11BufferSize: 100,
		EW11Timeout:    30,

		CommandSendCount:  2,
		CommandInterval:   2,
		CommandRetryCount: 5,

		StateLoopDelay:   0.01,
		CommandLoopDelay: 0.1,
		SerialRecvDelay:  0.01,

		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the
// configuration. Environment variables follow the pattern EZVILLE_KEY,
// mirroring the JSON option name.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("EZVILLE_MODE"); v != "" {
		cfg.Mode = v
	}
	if v := os.Getenv("EZVILLE_MQTT_SERVER"); v != "" {
		cfg.MQTTServer = v
	}
	if v := os.Getenv("EZVILLE_MQTT_ID"); v != "" {
		cfg.MQTTID = v
	}
	if v := os.Getenv("EZVILLE_MQTT_PASSWORD"); v != "" {
		cfg.MQTTPassword = v
	}
	if v := os.Getenv("EZVILLE_EW11_SERVER"); v != "" {
		cfg.EW11Server = v
	}
	if v := os.Getenv("EZVILLE_EW11_PASSWORD"); v != "" {
		cfg.EW11Password = v
	}
	if v := os.Getenv("EZVILLE_EW11_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.EW11Port = n
		}
	}
}

// Validate checks the configuration for missing required settings.
// Configuration is the only fatal error kind in the bridge: every
// other failure is logged and retried.
func (c *Config) Validate() error {
	var errs []string

	switch c.Mode {
	case "socket", "mqtt", "mixed":
	default:
		errs = append(errs, fmt.Sprintf("mode must be one of socket, mqtt, mixed, got %q", c.Mode))
	}

	if c.MQTTServer == "" {
		errs = append(errs, "mqtt_server is required")
	}

	if c.Mode != "mqtt" && c.EW11Server == "" {
		errs = append(errs, "ew11_server is required for socket and mixed modes")
	}
	if c.EW11Timeout <= 0 {
		errs = append(errs, "ew11_timeout must be positive")
	}

	if c.CommandRetryCount < 0 {
		errs = append(errs, "command_retry_count must not be negative")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

// StateLoopDelayDuration returns the state loop's per-iteration sleep
// as a time.Duration.
func (c *Config) StateLoopDelayDuration() time.Duration {
	return time.Duration(c.StateLoopDelay * float64(time.Second))
}

// CommandLoopDelayDuration returns the command loop's idle sleep as a
// time.Duration.
func (c *Config) CommandLoopDelayDuration() time.Duration {
	return time.Duration(c.CommandLoopDelay * float64(time.Second))
}

// SerialRecvDelayDuration returns the receiver's per-read sleep as a
// time.Duration.
func (c *Config) SerialRecvDelayDuration() time.Duration {
	return time.Duration(c.SerialRecvDelay * float64(time.Second))
}

// GatewayTimeout returns the watchdog staleness timeout as a
// time.Duration.
func (c *Config) GatewayTimeout() time.Duration {
	return time.Duration(c.EW11Timeout) * time.Second
}

// CommandIntervalDuration returns the transmitter's ack-wait/backoff
// base interval as a time.Duration.
func (c *Config) CommandIntervalDuration() time.Duration {
	return time.Duration(c.CommandInterval * float64(time.Second))
}
