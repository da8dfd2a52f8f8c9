package config

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/jvsctl/internal/logging"
	"github.com/danmuck/jvsctl/internal/protocol/jvs"
	"github.com/danmuck/jvsctl/internal/transport"
	"github.com/rs/zerolog"
)

// Profile holds jvsctl defaults that flags may still override.
type Profile struct {
	Transport   transport.Config
	LengthCheck jvs.LengthCheck
	LogLevel    zerolog.Level
}

func DefaultProfile() Profile {
	return Profile{
		Transport:   transport.Config{Kind: transport.KindSerial, Device: "/dev/ttyUSB0", Baud: transport.DefaultBaud},
		LengthCheck: jvs.LengthCheckBlocking,
		LogLevel:    zerolog.WarnLevel,
	}
}

type profileFile struct {
	Transport   string `toml:"transport"`
	Device      string `toml:"device"`
	Baud        int    `toml:"baud"`
	Address     string `toml:"address"`
	LengthCheck string `toml:"length_check"`
	LogLevel    string `toml:"log_level"`
}

// LoadProfile overlays the keys present in path onto DefaultProfile.
func LoadProfile(path string) (Profile, error) {
	cfg := DefaultProfile()

	var raw profileFile
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Profile{}, fmt.Errorf("load jvsctl profile: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Profile{}, fmt.Errorf("unknown profile key %q", undecoded[0].String())
	}

	if meta.IsDefined("transport") {
		cfg.Transport.Kind = strings.TrimSpace(raw.Transport)
	}
	if meta.IsDefined("device") {
		cfg.Transport.Device = strings.TrimSpace(raw.Device)
	}
	if meta.IsDefined("baud") {
		cfg.Transport.Baud = raw.Baud
	}
	if meta.IsDefined("address") {
		cfg.Transport.Address = strings.TrimSpace(raw.Address)
	}
	if meta.IsDefined("length_check") {
		check, err := jvs.ParseLengthCheck(raw.LengthCheck)
		if err != nil {
			return Profile{}, fmt.Errorf("parse length_check: %w", err)
		}
		cfg.LengthCheck = check
	}
	if meta.IsDefined("log_level") {
		lvl, ok := logging.ParseLevel(raw.LogLevel)
		if !ok {
			return Profile{}, fmt.Errorf("parse log_level: %q is not recognized", raw.LogLevel)
		}
		cfg.LogLevel = lvl
	}

	cfg.Transport = cfg.Transport.WithDefaults()
	if err := cfg.Transport.Validate(); err != nil {
		return Profile{}, err
	}
	return cfg, nil
}
