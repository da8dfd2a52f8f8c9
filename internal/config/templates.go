package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

func Template(kind string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "jvsd", "daemon":
		return daemonTemplate, nil
	case "profile", "jvsctl":
		return profileTemplate, nil
	default:
		return "", fmt.Errorf("unknown config kind: %s", kind)
	}
}

func WriteTemplate(path, kind string, overwrite bool) error {
	template, err := Template(kind)
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}

// Marshal renders cfg back to TOML, e.g. to show the effective config.
func Marshal(cfg DaemonConfig) ([]byte, error) {
	return toml.Marshal(cfg)
}

const daemonTemplate = `name = "jvsd"

[transport]
kind = "serial"
device = "/dev/ttyUSB0"
baud = 115200
address = ""

[protocol]
# exact | low_byte | blocking
length_check = "blocking"

[admin]
listen = "127.0.0.1:7020"
# bearer token required by POST /frames; empty leaves it open
token = ""
cors_origins = ["http://localhost:3000"]

[log]
level = "info"
hexdump = false

[reopen]
initial_delay = "250ms"
max_delay = "10s"
multiplier = 2.0
jitter = true
max_attempts = 0
`

const profileTemplate = `transport = "serial"
device = "/dev/ttyUSB0"
baud = 115200
address = ""
length_check = "blocking"
log_level = "warn"
`
