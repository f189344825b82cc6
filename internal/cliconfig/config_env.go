package cliconfig

import "os"

// EnvPrefix prefixes every environment variable read by ApplyEnvConfig.
const EnvPrefix = "HL7SEND_"

// ApplyEnvConfig applies configuration from environment variables (HL7SEND_*).
// It respects flags that have been explicitly set (changed map).
// Returns error if any environment variable has an invalid format.
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)
	env := func(name string) string { return os.Getenv(EnvPrefix + name) }

	s.setString("host", env("HOST"), &cfg.Host)
	s.setString("encoding", env("ENCODING"), &cfg.Encoding)
	s.setString("delimiters", env("DELIMITERS"), &cfg.Delimiters)
	s.setString("tls-server-name", env("TLS_SERVER_NAME"), &cfg.TLSServerName)
	s.setString("log-level", env("LOG_LEVEL"), &cfg.LogLevel)
	s.setString("log-format", env("LOG_FORMAT"), &cfg.LogFormat)
	s.setString("metrics-addr", env("METRICS_ADDR"), &cfg.MetricsAddr)
	s.setString("pattern", env("WATCH_PATTERN"), &cfg.WatchPattern)
	s.setString("archive-dir", env("ARCHIVE_DIR"), &cfg.ArchiveDir)

	if err := s.setIntFromString("port", env("PORT"), &cfg.Port); err != nil {
		return err
	}
	if err := s.setIntFromString("max-attempts", env("MAX_ATTEMPTS"), &cfg.MaxAttempts); err != nil {
		return err
	}
	if err := s.setIntFromString("max-connections", env("MAX_CONNECTIONS"), &cfg.MaxConnections); err != nil {
		return err
	}

	if err := s.setDuration("connection-timeout", env("CONNECTION_TIMEOUT"), &cfg.ConnectionTimeout); err != nil {
		return err
	}
	if err := s.setDuration("socket-timeout", env("SOCKET_TIMEOUT"), &cfg.SocketTimeout); err != nil {
		return err
	}
	if err := s.setDuration("retry-low", env("RETRY_LOW"), &cfg.RetryLow); err != nil {
		return err
	}
	if err := s.setDuration("retry-high", env("RETRY_HIGH"), &cfg.RetryHigh); err != nil {
		return err
	}
	if err := s.setDuration("debounce", env("WATCH_DEBOUNCE"), &cfg.WatchDebounce); err != nil {
		return err
	}

	if err := s.setBoolFromString("wait-ack", env("WAIT_ACK"), &cfg.WaitAck); err != nil {
		return err
	}
	if err := s.setBoolFromString("keep-open", env("KEEP_OPEN"), &cfg.KeepOpen); err != nil {
		return err
	}
	if err := s.setBoolFromString("validate", env("VALIDATE"), &cfg.ValidateHeaders); err != nil {
		return err
	}

	return s.setBoolFromString("tls", env("TLS"), &cfg.TLS)
}
