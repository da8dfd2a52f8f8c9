package transport

import (
	"fmt"

	"go.bug.st/serial"
)

// OpenSerial opens device at baud, 8N1.
func OpenSerial(device string, baud int) (*Stream, error) {
	if baud <= 0 {
		baud = DefaultBaud
	}
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(device, mode)
	if err != nil {
		return nil, fmt.Errorf("transport: open serial %s: %w", device, err)
	}
	return NewStream("serial:"+device, port), nil
}

// SerialPorts lists serial devices visible to the host.
func SerialPorts() ([]string, error) {
	return serial.GetPortsList()
}
