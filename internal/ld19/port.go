package ld19

import (
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"go.bug.st/serial"
)

// ErrTransport wraps every connection-fatal failure: the port could not be
// opened, or a read reported a hard I/O error (including EOF).
var ErrTransport = errors.New("ld19: transport failure")

// Port is the minimal serial connection the reader needs. Read must return
// (0, nil) when its read timeout expires with no data; any non-nil error is
// treated as fatal.
type Port interface {
	io.Reader
	io.Closer
}

// Opener opens the sensor link. OpenSerial is the production implementation.
type Opener func(path string, baud int, readTimeout time.Duration) (Port, error)

// OpenSerial opens path as an 8N1 serial port and applies the per-read timeout.
func OpenSerial(path string, baud int, readTimeout time.Duration) (Port, error) {
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrTransport, path, err)
	}
	if err := port.SetReadTimeout(readTimeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("%w: set timeout on %s: %v", ErrTransport, path, err)
	}
	log.Printf("[ld19] opened %s at %d baud (read timeout %v)", path, baud, readTimeout)
	return port, nil
}

// ListPorts returns the serial devices visible to the OS.
func ListPorts() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("ld19: list ports: %w", err)
	}
	return ports, nil
}
