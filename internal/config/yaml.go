// SPDX-License-Identifier: MIT
package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	applog "audioroute/internal/log"
)

// Config represents the main application configuration structure, loaded from YAML.
type Config struct {
	Debug     bool            `yaml:"debug"`              // Shorthand for log_level: debug.
	LogLevel  string          `yaml:"log_level"`          // debug, info, warn or error.
	LogFormat string          `yaml:"log_format"`         // text or json.
	LogFile   string          `yaml:"log_file,omitempty"` // Empty logs to stderr.
	Hardware  HardwareConfig  `yaml:"hardware"`
	Bluetooth BluetoothConfig `yaml:"bluetooth"`
	Pulse     PulseConfig     `yaml:"pulse"`
	Transport TransportConfig `yaml:"transport"`
	TUI       TUIConfig       `yaml:"tui"`
}

// LoadConfig loads configuration from a YAML file specified by path. If path is empty,
// it searches default locations ("config.yaml"). If no file is found, it uses built-in
// defaults. After loading defaults or from file, it applies environment variable
// overrides and validates the final configuration.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		found := false
		for _, candidate := range searchPaths() {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				found = true
				break
			}
		}
		if !found {
			cfg.applyEnvOverrides()
			if err := cfg.Validate(); err != nil {
				return nil, fmt.Errorf("invalid default configuration: %w", err)
			}
			return &cfg, nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Apply environment variable overrides AFTER loading from file.
	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func searchPaths() []string {
	paths := []string{"config.yaml"}
	if dir, err := os.UserConfigDir(); err == nil {
		paths = append(paths, dir+"/audioroute/config.yaml")
	}
	return append(paths, "/etc/audioroute/config.yaml")
}

// Validate checks values that would otherwise fail late, at platform or
// transport setup.
func (c *Config) Validate() error {
	if _, ok := applog.ParseLevel(c.LogLevel); !ok {
		return fmt.Errorf("log_level %q is not a known level", c.LogLevel)
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("log_format %q must be text or json", c.LogFormat)
	}

	switch c.Hardware.Speaker {
	case SpeakerAuto, SpeakerAlways, SpeakerNever:
	default:
		return fmt.Errorf("hardware.speaker %q must be %s, %s or %s",
			c.Hardware.Speaker, SpeakerAuto, SpeakerAlways, SpeakerNever)
	}

	if c.Bluetooth.Enabled {
		if c.Bluetooth.Adapter == "" {
			return fmt.Errorf("bluetooth.adapter must be set when bluetooth is enabled")
		}
		if c.Bluetooth.VoiceProfile == "" {
			return fmt.Errorf("bluetooth.voice_profile must be set when bluetooth is enabled")
		}
	}

	if c.Transport.WebSocketEnabled {
		if _, _, err := net.SplitHostPort(c.Transport.WebSocketAddr); err != nil {
			return fmt.Errorf("transport.websocket_addr %q: %w", c.Transport.WebSocketAddr, err)
		}
	}
	if c.Transport.UDPEnabled {
		if c.Transport.UDPTargetAddress == "" {
			return fmt.Errorf("transport.udp_target_address must be set when UDP is enabled")
		}
		if _, _, err := net.SplitHostPort(c.Transport.UDPTargetAddress); err != nil {
			return fmt.Errorf("transport.udp_target_address '%s' appears invalid: %w", c.Transport.UDPTargetAddress, err)
		}
		if c.Transport.UDPSendInterval < 0 {
			return fmt.Errorf("transport.udp_send_interval must not be negative")
		}
	}

	return nil
}

// applyEnvOverrides lets ENV_* variables override file values. Unparseable
// values are ignored with a warning.
func (cfg *Config) applyEnvOverrides() {
	// ENV_DEBUG
	if val, ok := os.LookupEnv("ENV_DEBUG"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			cfg.Debug = bVal
			applog.Debugf("configuration: Overriding debug from env: %v", bVal)
		} else {
			applog.Warnf("configuration: Ignoring ENV_DEBUG=%q: %v", val, err)
		}
	}
	// ENV_LOG_LEVEL
	if val, ok := os.LookupEnv("ENV_LOG_LEVEL"); ok {
		cfg.LogLevel = val
		applog.Debugf("configuration: Overriding log_level from env: %s", val)
	}
	// ENV_LOG_FORMAT
	if val, ok := os.LookupEnv("ENV_LOG_FORMAT"); ok {
		cfg.LogFormat = val
		applog.Debugf("configuration: Overriding log_format from env: %s", val)
	}

	// ENV_TELEPHONY
	if val, ok := os.LookupEnv("ENV_TELEPHONY"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			cfg.Hardware.Telephony = bVal
			applog.Debugf("configuration: Overriding hardware.telephony from env: %v", bVal)
		}
	}
	// ENV_JACK_FILE
	if val, ok := os.LookupEnv("ENV_JACK_FILE"); ok {
		cfg.Hardware.JackFile = val
		applog.Debugf("configuration: Overriding hardware.jack_file from env: %s", val)
	}

	// ENV_BT_{...}
	// ENV_BT_ENABLED
	if val, ok := os.LookupEnv("ENV_BT_ENABLED"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			cfg.Bluetooth.Enabled = bVal
			applog.Debugf("configuration: Overriding bluetooth.enabled from env: %v", bVal)
		}
	}
	// ENV_BT_ADAPTER
	if val, ok := os.LookupEnv("ENV_BT_ADAPTER"); ok {
		cfg.Bluetooth.Adapter = val
		applog.Debugf("configuration: Overriding bluetooth.adapter from env: %s", val)
	}

	// ENV_PULSE_SERVER
	if val, ok := os.LookupEnv("ENV_PULSE_SERVER"); ok {
		cfg.Pulse.Server = val
		applog.Debugf("configuration: Overriding pulse.server from env: %s", val)
	}

	// ENV_WS_{...}
	// ENV_WS_ENABLED
	if val, ok := os.LookupEnv("ENV_WS_ENABLED"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			cfg.Transport.WebSocketEnabled = bVal
			applog.Debugf("configuration: Overriding transport.websocket_enabled from env: %v", bVal)
		}
	}
	// ENV_WS_ADDR
	if val, ok := os.LookupEnv("ENV_WS_ADDR"); ok {
		cfg.Transport.WebSocketAddr = val
		applog.Debugf("configuration: Overriding transport.websocket_addr from env: %s", val)
	}

	// ENV_UDP_{...}
	// ENV_UDP_ENABLED
	if val, ok := os.LookupEnv("ENV_UDP_ENABLED"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			cfg.Transport.UDPEnabled = bVal
			applog.Debugf("configuration: Overriding transport.udp_enabled from env: %v", bVal)
		}
	}
	// ENV_UDP_TARGET_ADDRESS
	if val, ok := os.LookupEnv("ENV_UDP_TARGET_ADDRESS"); ok {
		cfg.Transport.UDPTargetAddress = val
		applog.Debugf("configuration: Overriding transport.udp_target_address from env: %s", val)
	}
	// ENV_UDP_SEND_INTERVAL
	if val, ok := os.LookupEnv("ENV_UDP_SEND_INTERVAL"); ok {
		if dur, err := time.ParseDuration(val); err == nil {
			cfg.Transport.UDPSendInterval = dur
			applog.Debugf("configuration: Overriding transport.udp_send_interval from env: %s", dur)
		}
	}
}

// Level returns the effective log level; Debug wins over LogLevel.
func (c *Config) Level() applog.LogLevel {
	if c.Debug {
		return applog.LevelDebug
	}
	level, _ := applog.ParseLevel(c.LogLevel)
	return level
}
