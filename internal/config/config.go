package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/danmuck/jvsctl/internal/logging"
	"github.com/danmuck/jvsctl/internal/protocol/jvs"
	"github.com/danmuck/jvsctl/internal/transport"
	"github.com/pelletier/go-toml/v2"
)

type DaemonConfig struct {
	Name      string          `toml:"name"`
	Transport TransportConfig `toml:"transport"`
	Protocol  ProtocolConfig  `toml:"protocol"`
	Admin     AdminConfig     `toml:"admin"`
	Log       LogConfig       `toml:"log"`
	Reopen    ReopenConfig    `toml:"reopen"`
}

type TransportConfig struct {
	Kind    string `toml:"kind"`
	Device  string `toml:"device"`
	Baud    int    `toml:"baud"`
	Address string `toml:"address"`
}

type ProtocolConfig struct {
	LengthCheck string `toml:"length_check"`
}

type AdminConfig struct {
	Listen      string   `toml:"listen"`
	Token       string   `toml:"token"`
	CorsOrigins []string `toml:"cors_origins"`
}

type LogConfig struct {
	Level   string `toml:"level"`
	Hexdump bool   `toml:"hexdump"`
}

type ReopenConfig struct {
	InitialDelay string  `toml:"initial_delay"`
	MaxDelay     string  `toml:"max_delay"`
	Multiplier   float64 `toml:"multiplier"`
	Jitter       *bool   `toml:"jitter,omitempty"`
	MaxAttempts  int     `toml:"max_attempts"`
}

func LoadDaemonConfig(path string) (DaemonConfig, error) {
	var cfg DaemonConfig
	if err := loadToml(path, &cfg); err != nil {
		return DaemonConfig{}, err
	}
	if cfg.Name == "" {
		cfg.Name = "jvsd"
	}
	if cfg.Transport.Kind == "" {
		cfg.Transport.Kind = transport.KindSerial
	}
	if cfg.Transport.Baud == 0 {
		cfg.Transport.Baud = transport.DefaultBaud
	}
	if cfg.Protocol.LengthCheck == "" {
		cfg.Protocol.LengthCheck = jvs.LengthCheckBlocking.String()
	}
	if err := ValidateDaemonConfig(cfg); err != nil {
		return DaemonConfig{}, err
	}
	return cfg, nil
}

func loadToml(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if err := toml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	return nil
}

func ValidateDaemonConfig(cfg DaemonConfig) error {
	if strings.TrimSpace(cfg.Name) == "" {
		return fmt.Errorf("daemon config missing name")
	}
	if err := cfg.Transport.toTransport().Validate(); err != nil {
		return fmt.Errorf("transport invalid: %w", err)
	}
	if cfg.Transport.Baud < 0 {
		return fmt.Errorf("transport baud must be positive")
	}
	if _, err := jvs.ParseLengthCheck(cfg.Protocol.LengthCheck); err != nil {
		return fmt.Errorf("protocol invalid: %w", err)
	}
	if raw := strings.TrimSpace(cfg.Log.Level); raw != "" {
		if _, ok := logging.ParseLevel(raw); !ok {
			return fmt.Errorf("log level %q is not recognized", raw)
		}
	}
	if err := ValidateReopen(cfg.Reopen); err != nil {
		return fmt.Errorf("reopen invalid: %w", err)
	}
	return nil
}

func ValidateReopen(cfg ReopenConfig) error {
	for name, raw := range map[string]string{
		"initial_delay": cfg.InitialDelay,
		"max_delay":     cfg.MaxDelay,
	} {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		d, err := time.ParseDuration(strings.TrimSpace(raw))
		if err != nil {
			return fmt.Errorf("parse %s: %w", name, err)
		}
		if d < 0 {
			return fmt.Errorf("%s must not be negative", name)
		}
	}
	if cfg.Multiplier != 0 && cfg.Multiplier < 1 {
		return fmt.Errorf("multiplier must be >= 1")
	}
	if cfg.MaxAttempts < 0 {
		return fmt.Errorf("max_attempts must not be negative")
	}
	return nil
}

func (c TransportConfig) toTransport() transport.Config {
	return transport.Config{
		Kind:    c.Kind,
		Device:  c.Device,
		Baud:    c.Baud,
		Address: c.Address,
	}
}
