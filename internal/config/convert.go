package config

import (
	"strings"
	"time"

	"github.com/danmuck/jvsctl/internal/bridge"
	"github.com/danmuck/jvsctl/internal/protocol/jvs"
)

// ServiceConfig maps a validated daemon file onto bridge runtime config.
// Keys left out of the file keep bridge defaults.
func ServiceConfig(cfg DaemonConfig) (bridge.ServiceConfig, error) {
	out := bridge.DefaultServiceConfig()
	out.Name = cfg.Name
	out.Transport = cfg.Transport.toTransport().WithDefaults()
	out.Hexdump = cfg.Log.Hexdump
	out.AdminListenAddr = strings.TrimSpace(cfg.Admin.Listen)
	out.AdminToken = strings.TrimSpace(cfg.Admin.Token)
	out.CorsOrigins = cfg.Admin.CorsOrigins

	check, err := jvs.ParseLengthCheck(cfg.Protocol.LengthCheck)
	if err != nil {
		return bridge.ServiceConfig{}, err
	}
	out.LengthCheck = check

	if d, ok := parseDuration(cfg.Reopen.InitialDelay); ok {
		out.Reopen.InitialDelay = d
	}
	if d, ok := parseDuration(cfg.Reopen.MaxDelay); ok {
		out.Reopen.MaxDelay = d
	}
	if cfg.Reopen.Multiplier >= 1 {
		out.Reopen.Multiplier = cfg.Reopen.Multiplier
	}
	if cfg.Reopen.Jitter != nil {
		out.Reopen.Jitter = *cfg.Reopen.Jitter
	}
	out.MaxOpenAttempts = cfg.Reopen.MaxAttempts
	return out, nil
}

func parseDuration(raw string) (time.Duration, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, false
	}
	return d, true
}
