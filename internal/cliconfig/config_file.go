package cliconfig

import (
	"os"
	"path/filepath"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"github.com/spf13/afero"
)

// FileConfig mirrors Config but uses strings for durations to make TOML friendly.
type FileConfig struct {
	Host              string `toml:"host"`
	Port              int    `toml:"port"`
	ConnectionTimeout string `toml:"connection_timeout"`
	SocketTimeout     string `toml:"socket_timeout"`
	MaxAttempts       int    `toml:"max_attempts"`
	RetryLow          string `toml:"retry_low"`
	RetryHigh         string `toml:"retry_high"`
	WaitAck           *bool  `toml:"wait_ack"`
	KeepOpen          *bool  `toml:"keep_open"`
	MaxConnections    int    `toml:"max_connections"`
	Encoding          string `toml:"encoding"`
	Delimiters        string `toml:"delimiters"`
	Validate          *bool  `toml:"validate"`
	TLS               *bool  `toml:"tls"`
	TLSServerName     string `toml:"tls_server_name"`
	LogLevel          string `toml:"log_level"`
	LogFormat         string `toml:"log_format"`
	MetricsAddr       string `toml:"metrics_addr"`

	Watch WatchFileConfig `toml:"watch"`
}

// WatchFileConfig is the [watch] table of the config file.
type WatchFileConfig struct {
	Pattern    string `toml:"pattern"`
	Debounce   string `toml:"debounce"`
	ArchiveDir string `toml:"archive_dir"`
}

// LoadFileConfig reads and parses a TOML config file from the given path.
func LoadFileConfig(fs afero.Fs, path string) (FileConfig, error) {
	var fc FileConfig
	b, err := afero.ReadFile(fs, path)
	if err != nil {
		return fc, err
	}
	if err := toml.Unmarshal(b, &fc); err != nil {
		return fc, err
	}

	return fc, nil
}

// DefaultConfigPath returns ~/.hl7send/config.toml, or an empty string if the user home
// directory is not accessible.
func DefaultConfigPath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".hl7send", "config.toml")
	}

	return ""
}

// ApplyFileConfig applies configuration from a file to the Config struct.
// It respects flags that have been explicitly set (changed map).
func ApplyFileConfig(cfg *Config, fc FileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("host", fc.Host, &cfg.Host)
	s.setInt("port", fc.Port, &cfg.Port)
	s.setInt("max-attempts", fc.MaxAttempts, &cfg.MaxAttempts)
	s.setInt("max-connections", fc.MaxConnections, &cfg.MaxConnections)
	s.setString("encoding", fc.Encoding, &cfg.Encoding)
	s.setString("delimiters", fc.Delimiters, &cfg.Delimiters)
	s.setString("tls-server-name", fc.TLSServerName, &cfg.TLSServerName)
	s.setString("log-level", fc.LogLevel, &cfg.LogLevel)
	s.setString("log-format", fc.LogFormat, &cfg.LogFormat)
	s.setString("metrics-addr", fc.MetricsAddr, &cfg.MetricsAddr)
	s.setString("pattern", fc.Watch.Pattern, &cfg.WatchPattern)
	s.setString("archive-dir", fc.Watch.ArchiveDir, &cfg.ArchiveDir)

	durations := []struct {
		flag  string
		value string
		dst   *time.Duration
	}{
		{"connection-timeout", fc.ConnectionTimeout, &cfg.ConnectionTimeout},
		{"socket-timeout", fc.SocketTimeout, &cfg.SocketTimeout},
		{"retry-low", fc.RetryLow, &cfg.RetryLow},
		{"retry-high", fc.RetryHigh, &cfg.RetryHigh},
		{"debounce", fc.Watch.Debounce, &cfg.WatchDebounce},
	}
	for _, d := range durations {
		if err := s.setDuration(d.flag, d.value, d.dst); err != nil {
			return err
		}
	}

	s.setBool("wait-ack", fc.WaitAck, &cfg.WaitAck)
	s.setBool("keep-open", fc.KeepOpen, &cfg.KeepOpen)
	s.setBool("validate", fc.Validate, &cfg.ValidateHeaders)
	s.setBool("tls", fc.TLS, &cfg.TLS)

	return nil
}

// FileExists checks if a file exists at the given path.
func FileExists(fs afero.Fs, p string) bool {
	_, err := fs.Stat(p)
	return err == nil
}
