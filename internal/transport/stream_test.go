package transport

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"testing"
	"time"
)

func waitAvailable(t *testing.T, c Conn, n int) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for c.Available() < n {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %d bytes, have %d", n, c.Available())
		}
		time.Sleep(time.Millisecond)
	}
}

func TestStreamBuffersIncomingBytes(t *testing.T) {
	local, remote := net.Pipe()
	s := NewStream("pipe", local)
	defer s.Close()

	go func() {
		_, _ = remote.Write([]byte{0xE0, 0x00, 0x02, 0x01, 0x03})
	}()
	waitAvailable(t, s, 5)

	head, err := s.ReadExact(3)
	if err != nil || !bytes.Equal(head, []byte{0xE0, 0x00, 0x02}) {
		t.Fatalf("header % X err=%v", head, err)
	}
	if s.Available() != 2 {
		t.Fatalf("unexpected available: %d", s.Available())
	}
}

func TestStreamWriteReachesPeer(t *testing.T) {
	local, remote := net.Pipe()
	s := NewStream("pipe", local)
	defer s.Close()

	got := make(chan []byte, 1)
	go func() {
		buf := make([]byte, 4)
		_, _ = io.ReadFull(remote, buf)
		got <- buf
	}()
	n, err := s.Write([]byte{0xE0, 0x00, 0x01, 0x01})
	if err != nil || n != 4 {
		t.Fatalf("write n=%d err=%v", n, err)
	}
	select {
	case b := <-got:
		if !bytes.Equal(b, []byte{0xE0, 0x00, 0x01, 0x01}) {
			t.Fatalf("unexpected bytes % X", b)
		}
	case <-time.After(time.Second):
		t.Fatalf("peer did not receive")
	}
}

func TestStreamReadAfterPeerClose(t *testing.T) {
	local, remote := net.Pipe()
	s := NewStream("pipe", local)
	defer s.Close()

	go func() {
		_, _ = remote.Write([]byte{0x01})
		_ = remote.Close()
	}()
	_, err := s.ReadExact(2)
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("expected io.ErrUnexpectedEOF, got %v", err)
	}
	if !errors.Is(s.Err(), io.EOF) {
		t.Fatalf("expected pump error io.EOF, got %v", s.Err())
	}
}

func TestStreamCloseStopsPump(t *testing.T) {
	local, _ := net.Pipe()
	s := NewStream("pipe", local)
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	select {
	case <-s.Done():
	case <-time.After(time.Second):
		t.Fatalf("pump did not stop")
	}
	if _, err := s.ReadExact(1); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	if _, err := s.Write([]byte{1}); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed on write, got %v", err)
	}
}

func TestDialTCP(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		_, _ = conn.Write([]byte{0xE0, 0x00, 0x01, 0x01})
		time.Sleep(50 * time.Millisecond)
	}()

	s, err := DialTCP(context.Background(), ln.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer s.Close()
	if s.Name() != "tcp:"+ln.Addr().String() {
		t.Fatalf("unexpected name %q", s.Name())
	}
	got, err := s.ReadExact(4)
	if err != nil || !bytes.Equal(got, []byte{0xE0, 0x00, 0x01, 0x01}) {
		t.Fatalf("read % X err=%v", got, err)
	}
}

func TestConfigValidate(t *testing.T) {
	cases := []struct {
		cfg     Config
		wantErr bool
	}{
		{cfg: Config{Kind: "serial", Device: "/dev/ttyUSB0"}},
		{cfg: Config{Device: "/dev/ttyUSB0"}},
		{cfg: Config{Kind: "serial"}, wantErr: true},
		{cfg: Config{Kind: "tcp", Address: "127.0.0.1:5000"}},
		{cfg: Config{Kind: "tcp"}, wantErr: true},
		{cfg: Config{Kind: "mem"}},
		{cfg: Config{Kind: "usb"}, wantErr: true},
	}
	for _, tc := range cases {
		err := tc.cfg.Validate()
		if (err != nil) != tc.wantErr {
			t.Fatalf("Validate(%+v) err=%v wantErr=%v", tc.cfg, err, tc.wantErr)
		}
	}
	if got := (Config{}).WithDefaults(); got.Kind != KindSerial || got.Baud != DefaultBaud {
		t.Fatalf("unexpected defaults: %+v", got)
	}
}

func TestOpenMem(t *testing.T) {
	c, err := Open(context.Background(), Config{Kind: KindMem})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer c.Close()
	if c.Name() != "mem" {
		t.Fatalf("unexpected name %q", c.Name())
	}
}
