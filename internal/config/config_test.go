package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/danmuck/jvsctl/internal/protocol/jvs"
	"github.com/danmuck/jvsctl/internal/testutil/testlog"
	"github.com/danmuck/jvsctl/internal/transport"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "jvsd.toml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDaemonTemplateLoadsAndConverts(t *testing.T) {
	testlog.Start(t)
	path := filepath.Join(t.TempDir(), "jvsd.toml")
	if err := WriteTemplate(path, "jvsd", false); err != nil {
		t.Fatalf("write template: %v", err)
	}
	cfg, err := LoadDaemonConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Transport.Device != "/dev/ttyUSB0" || cfg.Transport.Baud != 115200 {
		t.Fatalf("unexpected transport: %+v", cfg.Transport)
	}

	svc, err := ServiceConfig(cfg)
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if svc.LengthCheck != jvs.LengthCheckBlocking {
		t.Fatalf("unexpected length check: %v", svc.LengthCheck)
	}
	if svc.AdminListenAddr != "127.0.0.1:7020" {
		t.Fatalf("unexpected admin addr: %q", svc.AdminListenAddr)
	}
	if svc.Reopen.InitialDelay != 250*time.Millisecond || svc.Reopen.MaxDelay != 10*time.Second {
		t.Fatalf("unexpected reopen: %+v", svc.Reopen)
	}
	if svc.AdminToken != "" {
		t.Fatalf("template should leave the admin token empty")
	}
	if len(svc.CorsOrigins) != 1 {
		t.Fatalf("unexpected cors origins: %+v", svc.CorsOrigins)
	}
}

func TestWriteTemplateRefusesOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jvsd.toml")
	if err := WriteTemplate(path, "jvsd", false); err != nil {
		t.Fatalf("write template: %v", err)
	}
	if err := WriteTemplate(path, "jvsd", false); err == nil {
		t.Fatalf("expected overwrite refusal")
	}
	if err := WriteTemplate(path, "profile", true); err != nil {
		t.Fatalf("forced overwrite: %v", err)
	}
	if _, err := Template("mirage"); err == nil {
		t.Fatalf("expected unknown kind error")
	}
}

func TestLoadDaemonConfigDefaults(t *testing.T) {
	path := writeFile(t, `
[transport]
kind = "tcp"
address = "127.0.0.1:5000"
`)
	cfg, err := LoadDaemonConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Name != "jvsd" || cfg.Transport.Baud != transport.DefaultBaud {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
	if cfg.Protocol.LengthCheck != "blocking" {
		t.Fatalf("unexpected length check %q", cfg.Protocol.LengthCheck)
	}
	svc, err := ServiceConfig(cfg)
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if svc.AdminListenAddr != "" {
		t.Fatalf("admin api should be off when not configured, got %q", svc.AdminListenAddr)
	}
}

func TestLoadDaemonConfigRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"missing device": `[transport]
kind = "serial"
`,
		"bad kind": `[transport]
kind = "usb"
`,
		"bad length check": `[transport]
kind = "mem"
[protocol]
length_check = "sometimes"
`,
		"bad level": `[transport]
kind = "mem"
[log]
level = "loud"
`,
		"bad delay": `[transport]
kind = "mem"
[reopen]
initial_delay = "soon"
`,
		"bad multiplier": `[transport]
kind = "mem"
[reopen]
multiplier = 0.5
`,
	}
	for name, body := range cases {
		if _, err := LoadDaemonConfig(writeFile(t, body)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
	if _, err := LoadDaemonConfig(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestMarshalEffectiveConfig(t *testing.T) {
	cfg := DaemonConfig{
		Name:      "cab-1",
		Transport: TransportConfig{Kind: "tcp", Address: "10.0.0.5:4000", Baud: 115200},
		Protocol:  ProtocolConfig{LengthCheck: "exact"},
	}
	out, err := Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(out), "cab-1") || !strings.Contains(string(out), "length_check") {
		t.Fatalf("unexpected output:\n%s", out)
	}
}

func TestReopenJitterKeepsDefaultWhenOmitted(t *testing.T) {
	omitted := writeFile(t, "[transport]\nkind = \"mem\"\n\n[reopen]\nmax_attempts = 3\n")
	cfg, err := LoadDaemonConfig(omitted)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	svc, err := ServiceConfig(cfg)
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if !svc.Reopen.Jitter {
		t.Fatalf("expected default jitter when key is omitted")
	}

	disabled := writeFile(t, "[transport]\nkind = \"mem\"\n\n[reopen]\njitter = false\n")
	cfg, err = LoadDaemonConfig(disabled)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	svc, err = ServiceConfig(cfg)
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if svc.Reopen.Jitter {
		t.Fatalf("expected jitter disabled by explicit false")
	}
}
