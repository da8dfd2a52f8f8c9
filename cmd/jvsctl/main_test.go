package main

import (
	"bytes"
	"errors"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/danmuck/jvsctl/internal/protocol/jvs"
	"github.com/danmuck/jvsctl/internal/transport"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestChecksumCommand(t *testing.T) {
	out, err := run(t, "checksum", "01")
	if err != nil {
		t.Fatalf("checksum: %v", err)
	}
	if strings.TrimSpace(out) != "03" {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestEncodeCommand(t *testing.T) {
	out, err := run(t, "encode", "0x01")
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if strings.TrimSpace(out) != "E0 00 02 01 03" {
		t.Fatalf("unexpected output %q", out)
	}

	out, err = run(t, "encode")
	if err != nil {
		t.Fatalf("encode empty: %v", err)
	}
	if strings.TrimSpace(out) != "E0 00 01 01" {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestDecodeCommandAfterSync(t *testing.T) {
	out, err := run(t, "decode", "--after-sync", "00 02 01 03")
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !strings.Contains(out, "payload=01 length=1 status=true") {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestDecodeCommandChecksumFailure(t *testing.T) {
	out, err := run(t, "decode", "--after-sync", "00:02:01:04")
	if !errors.Is(err, jvs.ErrChecksumMismatch) {
		t.Fatalf("expected ErrChecksumMismatch, got %v", err)
	}
	if !strings.Contains(out, "status=false") || !strings.Contains(out, "report=E0 00 02 03 05") {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestDecodeCommandLengthCheckFlag(t *testing.T) {
	frame, err := jvs.Encode(make([]byte, 257))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	hexFrame := strings.ReplaceAll(spaced(frame), " ", "")
	if _, err := run(t, "decode", "--length-check", "low_byte", hexFrame); !errors.Is(err, jvs.ErrLengthMismatch) {
		t.Fatalf("expected ErrLengthMismatch, got %v", err)
	}
	if _, err := run(t, "decode", "--length-check", "exact", hexFrame); err != nil {
		t.Fatalf("exact check: %v", err)
	}
}

func TestDecodeCommandRejectsBadHex(t *testing.T) {
	if _, err := run(t, "decode", "e0 0"); err == nil {
		t.Fatalf("expected hex error")
	}
}

// fakePeripheral answers every frame with a fixed status payload.
func fakePeripheral(t *testing.T, ln net.Listener, reply []byte) {
	t.Helper()
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		s := transport.NewStream("fake", conn)
		defer s.Close()
		h := jvs.NewHandler(s, jvs.WithLengthCheck(jvs.LengthCheckBlocking))
		for {
			if _, err := h.Receive(); err != nil {
				return
			}
			if err := h.Send(reply); err != nil {
				return
			}
		}
	}()
}

func TestSendCommandOverTCP(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	fakePeripheral(t, ln, []byte{0x01, 0x01})

	out, err := run(t, "send", "--transport", "tcp", "--address", ln.Addr().String(), "f0 d9")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if !strings.Contains(out, "tx E0 00 03 F0 D9") {
		t.Fatalf("missing tx line: %q", out)
	}
	if !strings.Contains(out, "payload=01 01") {
		t.Fatalf("missing reply: %q", out)
	}
}

func TestProfileAppliesUnderFlags(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jvsctl.toml")
	body := "transport = \"tcp\"\naddress = \"127.0.0.1:9\"\nlength_check = \"low_byte\"\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	frame, err := jvs.Encode(make([]byte, 257))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	hexFrame := strings.ReplaceAll(spaced(frame), " ", "")

	if _, err := run(t, "decode", "--profile", path, hexFrame); !errors.Is(err, jvs.ErrLengthMismatch) {
		t.Fatalf("profile length check should apply, got %v", err)
	}
	if _, err := run(t, "decode", "--profile", path, "--length-check", "exact", hexFrame); err != nil {
		t.Fatalf("flag should override profile: %v", err)
	}
}
