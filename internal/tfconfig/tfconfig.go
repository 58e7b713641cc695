// Package tfconfig loads and validates the daemon configuration.
package tfconfig

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/skycoin/skywire-utilities/pkg/logging"
)

// Defaults applied by Ensure for fields left empty in the config file.
const (
	DefaultTunName  = "tfence0"
	DefaultTunAddr  = "10.66.0.1/24"
	DefaultStateDir = "/var/lib/tunfence"
	DefaultIPCName  = "tunfence"
	DefaultHTTPAddr = "localhost:7420"
	DefaultLogLevel = "info"
)

// ErrInvalidLogLevel occurs when the config names a log level logrus
// does not know.
var ErrInvalidLogLevel = errors.New("config has invalid log level")

// Config is the daemon configuration, read from a JSON file.
type Config struct {
	// TunName is the TUN interface name.
	TunName string `json:"tun_name"`
	// TunAddr is the CIDR assigned to the TUN interface.
	TunAddr string `json:"tun_addr"`
	// StateDir holds persisted daemon state.
	StateDir string `json:"state_dir"`
	// IPCName is the name of the local IPC socket for commands.
	IPCName string `json:"ipc_name"`
	// HTTPAddr is the listening address of the status API.
	HTTPAddr string `json:"http_addr"`
	// WebhookURL, if set, receives tunnel state notifications.
	WebhookURL string `json:"webhook_url,omitempty"`
	// LogLevel is one of logrus' levels.
	LogLevel string `json:"log_level"`
}

// MakeBaseConfig returns a Config with every default filled in.
func MakeBaseConfig() *Config {
	conf := &Config{}
	conf.Ensure()
	return conf
}

// Ensure fills defaults for unset fields.
func (c *Config) Ensure() {
	if c.TunName == "" {
		c.TunName = DefaultTunName
	}
	if c.TunAddr == "" {
		c.TunAddr = DefaultTunAddr
	}
	if c.StateDir == "" {
		c.StateDir = DefaultStateDir
	}
	if c.IPCName == "" {
		c.IPCName = DefaultIPCName
	}
	if c.HTTPAddr == "" {
		c.HTTPAddr = DefaultHTTPAddr
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
}

// Validate reports the first problem with the config.
func (c *Config) Validate() error {
	if strings.ContainsAny(c.TunName, " /") {
		return fmt.Errorf("invalid tun_name %q", c.TunName)
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%v %q: %w", ErrInvalidLogLevel, c.LogLevel, err)
	}
	return nil
}

// Level returns the parsed log level. Validate must have passed.
func (c *Config) Level() logrus.Level {
	lvl, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return lvl
}

// Parse parses a config from raw JSON, fills defaults and validates it.
func Parse(raw []byte) (*Config, error) {
	conf := new(Config)
	if err := json.Unmarshal(raw, conf); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	conf.Ensure()
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	return conf, nil
}

// ReadFile reads and parses the config at path. An empty path yields
// the base config.
func ReadFile(log *logging.Logger, path string) (*Config, error) {
	if path == "" {
		log.Info("No config file given, using defaults.")
		return MakeBaseConfig(), nil
	}
	raw, err := os.ReadFile(path) //nolint:gosec
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	conf, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	log.WithField("path", path).Info("Config loaded.")
	return conf, nil
}
