package config

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/rs485.go/pkg/rs485"
)

const sampleYAML = `
node: pump-ctl
role: slave
address: 17
frame:
  params: 12
  returns: 4
timing:
  turnaround_ms: 8
  response_timeout_ms: 500
link:
  kind: serial
  device: /dev/ttyS1
  baud: 19200
  parity: E
  backend: tarm
  gap_ms: 3
mqtt:
  url: mqtt://broker:1883/plant/
`

func TestLoad(t *testing.T) {
	dir, err := ioutil.TempDir("", "rs485-config")
	require.NoError(t, err)
	defer os.RemoveAll(dir)
	path := filepath.Join(dir, "node.yaml")
	require.NoError(t, ioutil.WriteFile(path, []byte(sampleYAML), 0644))

	conf, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, conf.Validate())
	require.Equal(t, "pump-ctl", conf.Node)
	require.Equal(t, rs485.RoleSlave, conf.EngineRole())
	require.Equal(t, rs485.Config{ParamLen: 12, ReturnLen: 4}, conf.EngineConfig())
	require.Equal(t, 8*time.Millisecond, conf.Turnaround())
	require.Equal(t, 20*time.Millisecond, conf.CharTimeout())
	require.Equal(t, 500*time.Millisecond, conf.ResponseTimeout())

	sc := conf.SerialConfig()
	require.Equal(t, "/dev/ttyS1", sc.Device)
	require.Equal(t, 19200, sc.Baud)
	require.Equal(t, 8, sc.DataBits)
	require.Equal(t, "E", sc.Parity)
	require.Equal(t, 3*time.Millisecond, sc.Gap)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
}

func TestParseRejectsUnknownKeys(t *testing.T) {
	conf := NewConfig()
	require.Error(t, conf.Parse([]byte("frame:\n  size: 16\n")))
}

func TestValidate(t *testing.T) {
	testCases := []struct {
		name string
		mod  func(*Config)
	}{
		{"role", func(c *Config) { c.Role = "observer" }},
		{"slave broadcast address", func(c *Config) { c.Role, c.Address = "slave", 0 }},
		{"slave address range", func(c *Config) { c.Role, c.Address = "slave", 128 }},
		{"params", func(c *Config) { c.Frame.Params = 0 }},
		{"returns above params", func(c *Config) { c.Frame.Params, c.Frame.Returns = 4, 8 }},
		{"char timeout", func(c *Config) { c.Timing.CharTimeoutMs = 0 }},
		{"gap not shorter than turnaround", func(c *Config) { c.Link.GapMs = 5 }},
		{"serial device", func(c *Config) { c.Link.Device = "" }},
		{"gap below char time", func(c *Config) { c.Link.Baud = 2400 }},
		{"link kind", func(c *Config) { c.Link.Kind = "can" }},
		{"websocket url", func(c *Config) { c.Link.Kind, c.Link.URL = LinkWebSocket, "http://hub/" }},
		{"mqtt url", func(c *Config) { c.MQTT.URL = "amqp://broker/" }},
	}
	require.NoError(t, NewConfig().Validate())
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			conf := NewConfig()
			tc.mod(conf)
			require.Error(t, conf.Validate())
		})
	}

	conf := NewConfig()
	conf.Link.Kind, conf.Link.URL = LinkWebSocket, "ws://localhost:4850/bus"
	require.NoError(t, conf.Validate())
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("RS485_NODE", "n1")
	t.Setenv("RS485_ROLE", "slave")
	t.Setenv("RS485_ADDRESS", "9")
	t.Setenv("RS485_MQTT_URL", "mqtt://localhost:1883/bus/")
	conf := NewConfig()
	require.NoError(t, conf.ApplyEnv())
	require.Equal(t, "n1", conf.Node)
	require.Equal(t, "slave", conf.Role)
	require.Equal(t, 9, conf.Address)
	require.Equal(t, "mqtt://localhost:1883/bus/", conf.MQTT.URL)
	require.NoError(t, conf.Validate())

	t.Setenv("RS485_ADDRESS", "nine")
	require.Error(t, NewConfig().ApplyEnv())
}
