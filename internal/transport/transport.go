// Package transport provides byte-stream transports for jvs handlers.
package transport

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrClosed      = errors.New("transport: closed")
	ErrUnknownKind = errors.New("transport: unknown kind")
)

const (
	KindSerial = "serial"
	KindTCP    = "tcp"
	KindMem    = "mem"

	DefaultBaud = 115200
)

// Conn is a blocking byte stream with a non-blocking availability probe.
type Conn interface {
	Write(p []byte) (int, error)
	ReadExact(n int) ([]byte, error)
	Available() int
	Close() error
	Name() string
}

// Config selects and parameterizes a transport.
type Config struct {
	Kind    string
	Device  string
	Baud    int
	Address string
}

func (c Config) WithDefaults() Config {
	c.Kind = strings.ToLower(strings.TrimSpace(c.Kind))
	if c.Kind == "" {
		c.Kind = KindSerial
	}
	if c.Baud <= 0 {
		c.Baud = DefaultBaud
	}
	return c
}

func (c Config) Validate() error {
	c = c.WithDefaults()
	switch c.Kind {
	case KindSerial:
		if strings.TrimSpace(c.Device) == "" {
			return fmt.Errorf("transport: serial device is required")
		}
	case KindTCP:
		if strings.TrimSpace(c.Address) == "" {
			return fmt.Errorf("transport: tcp address is required")
		}
	case KindMem:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownKind, c.Kind)
	}
	return nil
}

// Open connects the transport described by cfg.
func Open(ctx context.Context, cfg Config) (Conn, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Kind {
	case KindSerial:
		return OpenSerial(cfg.Device, cfg.Baud)
	case KindTCP:
		return DialTCP(ctx, cfg.Address)
	case KindMem:
		return NewMem(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, cfg.Kind)
	}
}
