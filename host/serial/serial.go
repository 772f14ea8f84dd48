// Package serial abstracts the physical transport between a host console
// and the controller: a serial/USB link carrying ASCII G-code lines in
// one direction and ASCII status lines in the other, plain
// newline-terminated text with no framing.
package serial

import "io"

// Port is a byte-stream transport to the controller: native serial over
// github.com/tarm/serial, or (in tests) an in-memory mock.
type Port interface {
	io.ReadWriteCloser

	// Flush blocks until any buffered output has been written out.
	Flush() error
}

// Config holds serial port configuration.
type Config struct {
	// Device is the OS device path (e.g. "/dev/ttyACM0", "COM3").
	Device string

	// Baud is the line rate; ignored by USB-CDC devices that ignore baud
	// entirely, but required by true UART links.
	Baud int

	// ReadTimeout bounds a single Read call, in milliseconds (0 = block
	// until at least one byte arrives).
	ReadTimeout int
}

// DefaultConfig returns a Config suitable for a USB-CDC G-code link.
func DefaultConfig(device string) *Config {
	return &Config{
		Device:      device,
		Baud:        115200,
		ReadTimeout: 100,
	}
}
