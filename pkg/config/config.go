// Package config defines the node configuration.
//
// Values come from the built-in defaults, then an optional YAML file, then
// RS485_* environment variables, then command line flags.
package config

import (
	"bytes"
	"flag"
	"fmt"
	"io/ioutil"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/robotalks/rs485.go/pkg/env"
	"github.com/robotalks/rs485.go/pkg/link/serial"
	"github.com/robotalks/rs485.go/pkg/rs485"
)

// Link kinds.
const (
	LinkSerial    = "serial"
	LinkWebSocket = "websocket"
)

// Config is the configuration of a node.
type Config struct {
	Node    string       `yaml:"node"`
	Role    string       `yaml:"role"`
	Address int          `yaml:"address"`
	Frame   FrameConfig  `yaml:"frame"`
	Timing  TimingConfig `yaml:"timing"`
	Link    LinkConfig   `yaml:"link"`
	MQTT    MQTTConfig   `yaml:"mqtt"`
}

// FrameConfig defines the frame layout. All nodes on a bus must agree.
type FrameConfig struct {
	Params  int `yaml:"params"`
	Returns int `yaml:"returns"`
}

// TimingConfig defines bus timing.
type TimingConfig struct {
	TurnaroundMs      int `yaml:"turnaround_ms"`
	CharTimeoutMs     int `yaml:"char_timeout_ms"`
	ResponseTimeoutMs int `yaml:"response_timeout_ms"`
}

// LinkConfig selects and configures the link.
type LinkConfig struct {
	Kind     string `yaml:"kind"`
	Device   string `yaml:"device"`
	Baud     int    `yaml:"baud"`
	DataBits int    `yaml:"data_bits"`
	StopBits int    `yaml:"stop_bits"`
	Parity   string `yaml:"parity"`
	Backend  string `yaml:"backend"`
	RS485    bool   `yaml:"rs485"`
	// RTSDelayUs is the delay between raising RTS and the first bit in
	// kernel RS-485 mode.
	RTSDelayUs int `yaml:"rts_delay_us"`
	GapMs      int `yaml:"gap_ms"`
	// URL of the virtual bus hub, e.g. ws://localhost:4850/bus.
	URL string `yaml:"url"`
}

// MQTTConfig configures the gateway. An empty URL disables it.
type MQTTConfig struct {
	// URL like mqtt://host:port/topic-prefix.
	URL string `yaml:"url"`
}

var defaultConfig = Config{
	Role: rs485.RoleMaster.String(),
	Frame: FrameConfig{
		Params:  rs485.DefaultParamLen,
		Returns: rs485.DefaultReturnLen,
	},
	Timing: TimingConfig{
		TurnaroundMs:      5,
		CharTimeoutMs:     20,
		ResponseTimeoutMs: 250,
	},
	Link: LinkConfig{
		Kind:     LinkSerial,
		Device:   "/dev/ttyUSB0",
		Baud:     38400,
		DataBits: 8,
		StopBits: 1,
		Parity:   "N",
		Backend:  serial.BackendGoburrow,
		GapMs:    2,
	},
}

var flags struct {
	file    string
	node    string
	role    string
	address int
	kind    string
	device  string
	baud    int
	url     string
	mqttURL string
}

func init() {
	flags.file = os.Getenv("RS485_CONFIG")
}

// SetupFlags sets up command line flags.
func SetupFlags() {
	flag.StringVar(&flags.file, "config", flags.file, "YAML configuration file.")
	flag.StringVar(&flags.node, "node", "", "Node name, defaults to the machine id.")
	flag.StringVar(&flags.role, "role", "", "Node role: master or slave.")
	flag.IntVar(&flags.address, "address", 0, "Slave address 1-127.")
	flag.StringVar(&flags.kind, "link", "", "Link kind: serial or websocket.")
	flag.StringVar(&flags.device, "device", "", "Serial device.")
	flag.IntVar(&flags.baud, "baud", 0, "Serial baud rate.")
	flag.StringVar(&flags.url, "hub-url", "", "Virtual bus hub URL.")
	flag.StringVar(&flags.mqttURL, "mqtt-url", "", "MQTT gateway URL, e.g. mqtt://localhost:1883/rs485/")
}

// Default gets the default config.
func Default() *Config {
	return &defaultConfig
}

// NewConfig creates a Config with default configurations.
func NewConfig() *Config {
	conf := defaultConfig
	return &conf
}

// Load reads a YAML file over the defaults.
func Load(path string) (*Config, error) {
	conf := NewConfig()
	if err := conf.LoadFile(path); err != nil {
		return nil, err
	}
	return conf, nil
}

// LoadFile reads a YAML file over the current values.
func (c *Config) LoadFile(path string) error {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return err
	}
	return c.Parse(data)
}

// Parse decodes YAML over the current values. Unknown keys are rejected.
func (c *Config) Parse(data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil {
		return fmt.Errorf("config: %v", err)
	}
	return nil
}

// ApplyEnv applies RS485_* environment variables.
func (c *Config) ApplyEnv() error {
	if val := os.Getenv("RS485_NODE"); val != "" {
		c.Node = val
	}
	if val := os.Getenv("RS485_ROLE"); val != "" {
		c.Role = val
	}
	if val := os.Getenv("RS485_ADDRESS"); val != "" {
		addr, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("RS485_ADDRESS: %v", err)
		}
		c.Address = addr
	}
	if val := os.Getenv("RS485_MQTT_URL"); val != "" {
		c.MQTT.URL = val
	}
	return nil
}

func (c *Config) applyFlags() {
	if flags.node != "" {
		c.Node = flags.node
	}
	if flags.role != "" {
		c.Role = flags.role
	}
	if flags.address != 0 {
		c.Address = flags.address
	}
	if flags.kind != "" {
		c.Link.Kind = flags.kind
	}
	if flags.device != "" {
		c.Link.Device = flags.device
	}
	if flags.baud != 0 {
		c.Link.Baud = flags.baud
	}
	if flags.url != "" {
		c.Link.URL = flags.url
	}
	if flags.mqttURL != "" {
		c.MQTT.URL = flags.mqttURL
	}
}

// Resolve builds the effective configuration after flag.Parse.
func Resolve() (*Config, error) {
	conf := NewConfig()
	if flags.file != "" {
		if err := conf.LoadFile(flags.file); err != nil {
			return nil, err
		}
	}
	if err := conf.ApplyEnv(); err != nil {
		return nil, err
	}
	conf.applyFlags()
	if conf.Node == "" {
		conf.Node = env.NodeID()
	}
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	return conf, nil
}

// EngineRole returns the parsed role.
func (c *Config) EngineRole() rs485.Role {
	role, _ := rs485.ParseRole(c.Role)
	return role
}

// EngineConfig returns the frame layout.
func (c *Config) EngineConfig() rs485.Config {
	return rs485.Config{ParamLen: c.Frame.Params, ReturnLen: c.Frame.Returns}
}

// SerialConfig returns the serial port configuration.
func (c *Config) SerialConfig() serial.Config {
	return serial.Config{
		Device:   c.Link.Device,
		Baud:     c.Link.Baud,
		DataBits: c.Link.DataBits,
		StopBits: c.Link.StopBits,
		Parity:   c.Link.Parity,
		Backend:  c.Link.Backend,
		RS485:    c.Link.RS485,
		RTSDelay: time.Duration(c.Link.RTSDelayUs) * time.Microsecond,
		Gap:      ms(c.Link.GapMs),
	}
}

// Turnaround returns the settle delay after switching to transmit.
func (c *Config) Turnaround() time.Duration {
	return ms(c.Timing.TurnaroundMs)
}

// CharTimeout returns the inter-character timeout.
func (c *Config) CharTimeout() time.Duration {
	return ms(c.Timing.CharTimeoutMs)
}

// ResponseTimeout returns how long the master waits for a response.
func (c *Config) ResponseTimeout() time.Duration {
	return ms(c.Timing.ResponseTimeoutMs)
}

func ms(v int) time.Duration {
	return time.Duration(v) * time.Millisecond
}
