package serial

import (
	"fmt"
	"io"
	"strings"

	goserial "github.com/goburrow/serial"
	tarmserial "github.com/tarm/serial"
)

// Open opens the serial port and wraps it in a Link.
func Open(cfg Config) (*Link, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	var (
		port io.ReadWriteCloser
		err  error
	)
	switch cfg.Backend {
	case BackendTarm:
		port, err = openTarm(&cfg)
	default:
		port, err = openGoburrow(&cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %v", cfg.Device, err)
	}
	return New(port, cfg.Gap), nil
}

func openGoburrow(cfg *Config) (io.ReadWriteCloser, error) {
	return goserial.Open(&goserial.Config{
		Address:  cfg.Device,
		BaudRate: cfg.Baud,
		DataBits: cfg.DataBits,
		StopBits: cfg.StopBits,
		Parity:   strings.ToUpper(cfg.Parity),
		Timeout:  cfg.Gap,
		RS485: goserial.RS485Config{
			Enabled:            cfg.RS485,
			DelayRtsBeforeSend: cfg.RTSDelay,
			RtsHighDuringSend:  cfg.RS485,
		},
	})
}

func openTarm(cfg *Config) (io.ReadWriteCloser, error) {
	return tarmserial.OpenPort(&tarmserial.Config{
		Name:        cfg.Device,
		Baud:        cfg.Baud,
		Size:        byte(cfg.DataBits),
		Parity:      tarmserial.Parity(strings.ToUpper(cfg.Parity)[0]),
		StopBits:    tarmserial.StopBits(cfg.StopBits),
		ReadTimeout: cfg.Gap,
	})
}

func isIdle(err error) bool {
	return err == goserial.ErrTimeout || err == io.EOF
}
