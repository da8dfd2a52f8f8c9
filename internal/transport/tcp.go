package transport

import (
	"context"
	"fmt"
	"net"
	"time"
)

const dialTimeout = 5 * time.Second

// DialTCP connects to a raw byte-stream bridge such as ser2net or an emulator.
func DialTCP(ctx context.Context, addr string) (*Stream, error) {
	d := net.Dialer{Timeout: dialTimeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("transport: dial %s: %w", addr, err)
	}
	if tcp, ok := conn.(*net.TCPConn); ok {
		_ = tcp.SetNoDelay(true)
	}
	return NewStream("tcp:"+addr, conn), nil
}
