package cliconfig

import (
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/arloliu/go-hl7/hl7"
	"github.com/arloliu/go-hl7/logger"
	"github.com/arloliu/go-hl7/mllpclient"
)

// Log formats accepted by Config.LogFormat.
const (
	LogFormatJSON    = "json"
	LogFormatConsole = "console"
	LogFormatZerolog = "zerolog"
)

// Config holds CLI configuration for hl7send.
type Config struct {
	Host string
	Port int

	ConnectionTimeout time.Duration
	SocketTimeout     time.Duration
	MaxAttempts       int
	RetryLow          time.Duration
	RetryHigh         time.Duration

	WaitAck         bool
	KeepOpen        bool
	MaxConnections  int
	Encoding        string
	Delimiters      string
	ValidateHeaders bool

	TLS           bool
	TLSServerName string

	LogLevel    string
	LogFormat   string
	MetricsAddr string

	WatchPattern  string
	WatchDebounce time.Duration
	ArchiveDir    string
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		Port:           2575,
		SocketTimeout:  mllpclient.DefaultSocketTimeout,
		MaxAttempts:    mllpclient.DefaultMaxAttempts,
		RetryLow:       mllpclient.DefaultRetryLow,
		RetryHigh:      mllpclient.DefaultRetryHigh,
		WaitAck:        true,
		MaxConnections: mllpclient.DefaultMaxConnections,
		Encoding:       mllpclient.DefaultEncoding,
		Delimiters:     hl7.DefaultDelimiters().String(),
		LogLevel:       "info",
		LogFormat:      LogFormatJSON,
		WatchPattern:   "*.hl7",
		WatchDebounce:  200 * time.Millisecond,
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Host == "" {
		return errors.New("host is required")
	}

	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port %d is out of range [1, 65535]", c.Port)
	}

	if _, err := hl7.ParseDelimiters(c.Delimiters); err != nil {
		return fmt.Errorf("delimiters: %w", err)
	}

	switch c.LogFormat {
	case LogFormatJSON, LogFormatConsole, LogFormatZerolog:
	default:
		return fmt.Errorf("unknown log format %q", c.LogFormat)
	}

	if c.WatchDebounce < 0 {
		return errors.New("watch debounce must not be negative")
	}

	return nil
}

// Addr returns the receiver address.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// ClientOptions converts the configuration to mllpclient options. Range checks are left to
// the options themselves.
func (c *Config) ClientOptions(l logger.Logger) ([]mllpclient.Option, error) {
	d, err := hl7.ParseDelimiters(c.Delimiters)
	if err != nil {
		return nil, err
	}

	opts := []mllpclient.Option{
		mllpclient.WithConnectionTimeout(c.ConnectionTimeout),
		mllpclient.WithSocketTimeout(c.SocketTimeout),
		mllpclient.WithMaxAttempts(c.MaxAttempts),
		mllpclient.WithRetryLow(c.RetryLow),
		mllpclient.WithRetryHigh(c.RetryHigh),
		mllpclient.WithWaitAck(c.WaitAck),
		mllpclient.WithKeepOpen(c.KeepOpen),
		mllpclient.WithMaxConnections(c.MaxConnections),
		mllpclient.WithEncoding(c.Encoding),
		mllpclient.WithDelimiters(d),
	}

	if c.ValidateHeaders {
		opts = append(opts, mllpclient.WithHeaderValidators(hl7.NewVersionValidator()))
	}

	if c.TLS {
		serverName := c.TLSServerName
		if serverName == "" {
			serverName = c.Host
		}
		opts = append(opts, mllpclient.WithTLS(&tls.Config{
			ServerName: serverName,
			MinVersion: tls.VersionTLS12,
		}))
	}

	if l != nil {
		opts = append(opts, mllpclient.WithLogger(l))
	}

	return opts, nil
}

// configSetter helps apply configuration values while respecting flag precedence.
// It only applies values if the corresponding flag hasn't been explicitly set.
type configSetter struct {
	changed map[string]bool
}

func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

// setString sets a string value if not empty and flag not changed.
func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

// setInt sets an int value if positive and flag not changed.
func (s *configSetter) setInt(flag string, value int, dst *int) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

// setDuration parses and sets a duration from string if valid and flag not changed.
func (s *configSetter) setDuration(flag, value string, dst *time.Duration) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = d

	return nil
}

// setBool sets a bool value from a pointer if not nil and flag not changed.
func (s *configSetter) setBool(flag string, value *bool, dst *bool) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

// setIntFromString parses a string to int and sets the destination if positive.
func (s *configSetter) setIntFromString(flag, value string, dst *int) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if i <= 0 {
		return nil
	}
	*dst = i

	return nil
}

// setBoolFromString parses a string to bool and sets the destination.
func (s *configSetter) setBoolFromString(flag, value string, dst *bool) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = b

	return nil
}
