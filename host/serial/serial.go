//go:build !tinygo

// Package serial opens the host-side trace port the simulator streams
// its event log to.
package serial

import (
	"fmt"
	"io"
	"time"

	"github.com/tarm/serial"
)

// Port is an open serial line.
type Port interface {
	io.ReadWriteCloser

	// Flush discards data not yet transmitted or read.
	Flush() error
}

// Config holds serial port configuration.
type Config struct {
	Device      string // e.g. "/dev/ttyUSB0", "COM3"
	Baud        int
	ReadTimeout time.Duration // 0 blocks
}

// DefaultConfig returns 115200 8N1 for the given device, the rate the
// controller's USART runs at.
func DefaultConfig(device string) *Config {
	return &Config{
		Device:      device,
		Baud:        115200,
		ReadTimeout: 100 * time.Millisecond,
	}
}

// Open opens the device as 8N1.
func Open(cfg *Config) (Port, error) {
	if cfg == nil {
		return nil, fmt.Errorf("serial: config cannot be nil")
	}
	if cfg.Device == "" {
		return nil, fmt.Errorf("serial: no device given")
	}

	p, err := serial.OpenPort(&serial.Config{
		Name:        cfg.Device,
		Baud:        cfg.Baud,
		ReadTimeout: cfg.ReadTimeout,
		Size:        8,
		Parity:      serial.ParityNone,
		StopBits:    serial.Stop1,
	})
	if err != nil {
		return nil, fmt.Errorf("serial: open %s: %w", cfg.Device, err)
	}
	return p, nil
}
