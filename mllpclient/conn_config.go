package mllpclient

import (
	"crypto/tls"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/arloliu/go-hl7/hl7"
	"github.com/arloliu/go-hl7/logger"
	"github.com/benbjohnson/clock"
	"golang.org/x/text/encoding/htmlindex"
)

// Default channel configuration values.
const (
	DefaultSocketTimeout  = 10 * time.Second
	DefaultMaxAttempts    = 10
	DefaultRetryLow       = 1 * time.Second
	DefaultRetryHigh      = 30 * time.Second
	DefaultMaxConnections = 10
	DefaultEncoding       = "utf-8"
	DefaultMaxFrameSize   = 1 << 20
)

// ChannelConfig represents the configuration of an outbound channel.
//
// It is resolved once by NewChannelConfig and not changed afterwards.
type ChannelConfig struct {
	// host specifies the host of the receiver.
	host string
	// port specifies the TCP port of the receiver.
	port int

	// connectionTimeout bounds the time from the first connection attempt to ready.
	// 0 disables it. Defaults to 0.
	connectionTimeout time.Duration
	// socketTimeout bounds each connection attempt and each write.
	// Defaults to 10 seconds.
	socketTimeout time.Duration

	// maxAttempts is the retry ceiling of connection attempts and of the send guard wait.
	// Defaults to 10.
	maxAttempts int
	// retryLow and retryHigh bound the backoff delay between connection attempts.
	// Default to 1 and 30 seconds.
	retryLow  time.Duration
	retryHigh time.Duration

	// waitAck blocks a send until the acknowledgment of the previous send arrived.
	// Defaults to true.
	waitAck bool
	// keepOpen keeps the channel connected after an acknowledgment.
	// Defaults to false.
	keepOpen bool

	// maxConnections is the socket pool ceiling. Defaults to 10.
	maxConnections int
	// encoding is the text encoding of written and received frames, in WHATWG naming.
	// Defaults to utf-8.
	encoding string
	// maxFrameSize bounds buffered bytes of an incomplete inbound frame. 0 means unlimited.
	// Defaults to 1 MiB.
	maxFrameSize int

	tlsConfig  *tls.Config
	delimiters hl7.Delimiters
	validators []hl7.HeaderValidator
	dialer     Dialer
	clock      clock.Clock
	logger     logger.Logger
}

// NewChannelConfig creates a channel configuration with the given host, port number, and
// optional functional options.
//
// Defaults are set first and the options are applied in order. Cross-field constraints are
// validated after all options were applied.
//
// A port of 0 is accepted so that a configuration can serve as a template for Client;
// NewChannel requires a port in [1, 65535].
func NewChannelConfig(host string, port int, opts ...Option) (*ChannelConfig, error) {
	cfg := &ChannelConfig{
		socketTimeout:  DefaultSocketTimeout,
		maxAttempts:    DefaultMaxAttempts,
		retryLow:       DefaultRetryLow,
		retryHigh:      DefaultRetryHigh,
		waitAck:        true,
		maxConnections: DefaultMaxConnections,
		encoding:       DefaultEncoding,
		maxFrameSize:   DefaultMaxFrameSize,
		delimiters:     hl7.DefaultDelimiters(),
		clock:          clock.New(),
		logger:         logger.GetLogger(),
	}

	if err := withHost(host).apply(cfg); err != nil {
		return nil, err
	}

	if err := withPort(port).apply(cfg); err != nil {
		return nil, err
	}

	if err := cfg.apply(opts...); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (cfg *ChannelConfig) apply(opts ...Option) error {
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.apply(cfg); err != nil {
			return err
		}
	}

	return cfg.validate()
}

func (cfg *ChannelConfig) validate() error {
	if cfg.retryLow > cfg.retryHigh {
		return fmt.Errorf("retry low %s is greater than retry high %s", cfg.retryLow, cfg.retryHigh)
	}

	return nil
}

// clone returns a copy of cfg that can be modified independently.
func (cfg *ChannelConfig) clone() *ChannelConfig {
	c := *cfg
	c.validators = append([]hl7.HeaderValidator(nil), cfg.validators...)
	if cfg.tlsConfig != nil {
		c.tlsConfig = cfg.tlsConfig.Clone()
	}

	return &c
}

// Host returns the receiver host.
func (cfg *ChannelConfig) Host() string { return cfg.host }

// Port returns the receiver port.
func (cfg *ChannelConfig) Port() int { return cfg.port }

// ConnectionTimeout returns the connection timeout, 0 when disabled.
func (cfg *ChannelConfig) ConnectionTimeout() time.Duration { return cfg.connectionTimeout }

// SocketTimeout returns the per-attempt socket timeout.
func (cfg *ChannelConfig) SocketTimeout() time.Duration { return cfg.socketTimeout }

// MaxAttempts returns the retry ceiling.
func (cfg *ChannelConfig) MaxAttempts() int { return cfg.maxAttempts }

// RetryLow returns the lower backoff bound.
func (cfg *ChannelConfig) RetryLow() time.Duration { return cfg.retryLow }

// RetryHigh returns the upper backoff bound.
func (cfg *ChannelConfig) RetryHigh() time.Duration { return cfg.retryHigh }

// WaitAck returns if sends wait for the previous acknowledgment.
func (cfg *ChannelConfig) WaitAck() bool { return cfg.waitAck }

// KeepOpen returns if the channel stays connected after an acknowledgment.
func (cfg *ChannelConfig) KeepOpen() bool { return cfg.keepOpen }

// MaxConnections returns the socket pool ceiling.
func (cfg *ChannelConfig) MaxConnections() int { return cfg.maxConnections }

// Encoding returns the text encoding name.
func (cfg *ChannelConfig) Encoding() string { return cfg.encoding }

// MaxFrameSize returns the inbound frame size limit.
func (cfg *ChannelConfig) MaxFrameSize() int { return cfg.maxFrameSize }

// TLS returns if the channel uses TLS.
func (cfg *ChannelConfig) TLS() bool { return cfg.tlsConfig != nil }

// Delimiters returns the delimiter set used to validate payloads and parse acknowledgments.
func (cfg *ChannelConfig) Delimiters() hl7.Delimiters { return cfg.delimiters }

// Option represents a functional option for configuring a ChannelConfig.
type Option interface {
	apply(*ChannelConfig) error
}

type optFunc struct {
	name      string
	applyFunc func(*ChannelConfig) error
}

func (o *optFunc) apply(cfg *ChannelConfig) error {
	if cfg == nil {
		return ErrConfigNil
	}

	if err := o.applyFunc(cfg); err != nil {
		return fmt.Errorf("%s: %w", o.name, err)
	}

	return nil
}

func newOptFunc(name string, f func(*ChannelConfig) error) *optFunc {
	return &optFunc{name: name, applyFunc: f}
}

func withHost(host string) Option {
	return newOptFunc("withHost", func(cfg *ChannelConfig) error {
		host = strings.TrimSpace(host)
		if host == "" {
			return errors.New("host is empty")
		}
		cfg.host = host

		return nil
	})
}

func withPort(port int) Option {
	return newOptFunc("withPort", func(cfg *ChannelConfig) error {
		if port < 0 || port > 65535 {
			return errors.New("port is out of range [1, 65535]")
		}
		cfg.port = port

		return nil
	})
}

// WithConnectionTimeout sets the budget from the first connection attempt to ready.
// When it expires the socket is aborted and the channel fails with ErrConnectionTimeout.
// An error is returned if the value is outside the valid range (0-10 minutes).
//
// The default value is 0, which disables the timeout.
func WithConnectionTimeout(val time.Duration) Option {
	return newOptFunc("WithConnectionTimeout", func(cfg *ChannelConfig) error {
		if val < 0 || val > 10*time.Minute {
			return errors.New("connection timeout out of range [0, 10m]")
		}
		cfg.connectionTimeout = val

		return nil
	})
}

// WithSocketTimeout sets the timeout of each connection attempt and each write.
// An error is returned if the value is outside the valid range (1ms-10 minutes).
//
// The default value is 10 seconds.
func WithSocketTimeout(val time.Duration) Option {
	return newOptFunc("WithSocketTimeout", func(cfg *ChannelConfig) error {
		if val < time.Millisecond || val > 10*time.Minute {
			return errors.New("socket timeout out of range [1ms, 10m]")
		}
		cfg.socketTimeout = val

		return nil
	})
}

// WithMaxAttempts sets the maximum number of connection attempts, and the maximum number of
// polls of the send guard.
// An error is returned if the value is outside the valid range (1-50).
//
// The default value is 10.
func WithMaxAttempts(val int) Option {
	return newOptFunc("WithMaxAttempts", func(cfg *ChannelConfig) error {
		if val < 1 || val > 50 {
			return errors.New("max attempts out of range [1, 50]")
		}
		cfg.maxAttempts = val

		return nil
	})
}

// WithRetryLow sets the lower bound, and first value, of the retry backoff delay.
// An error is returned if the value is outside the valid range (1ms-10 minutes).
//
// The default value is 1 second.
func WithRetryLow(val time.Duration) Option {
	return newOptFunc("WithRetryLow", func(cfg *ChannelConfig) error {
		if val < time.Millisecond || val > 10*time.Minute {
			return errors.New("retry low out of range [1ms, 10m]")
		}
		cfg.retryLow = val

		return nil
	})
}

// WithRetryHigh sets the upper bound of the retry backoff delay.
// An error is returned if the value is outside the valid range (1ms-1 hour).
//
// The default value is 30 seconds.
func WithRetryHigh(val time.Duration) Option {
	return newOptFunc("WithRetryHigh", func(cfg *ChannelConfig) error {
		if val < time.Millisecond || val > time.Hour {
			return errors.New("retry high out of range [1ms, 1h]")
		}
		cfg.retryHigh = val

		return nil
	})
}

// WithWaitAck sets whether a send waits until the previous send was acknowledged.
//
// The default value is true.
func WithWaitAck(val bool) Option {
	return newOptFunc("WithWaitAck", func(cfg *ChannelConfig) error {
		cfg.waitAck = val
		return nil
	})
}

// WithKeepOpen sets whether the channel stays connected after an acknowledgment, so several
// messages can be sent over one connection.
//
// The default value is false: each channel does one connect, send, acknowledge, close cycle.
func WithKeepOpen(val bool) Option {
	return newOptFunc("WithKeepOpen", func(cfg *ChannelConfig) error {
		cfg.keepOpen = val
		return nil
	})
}

// WithMaxConnections sets the socket pool ceiling.
// An error is returned if the value is outside the valid range (1-1000).
//
// The default value is 10.
func WithMaxConnections(val int) Option {
	return newOptFunc("WithMaxConnections", func(cfg *ChannelConfig) error {
		if val < 1 || val > 1000 {
			return errors.New("max connections out of range [1, 1000]")
		}
		cfg.maxConnections = val

		return nil
	})
}

// WithEncoding sets the text encoding of frames by its WHATWG name, such as "utf-8" or
// "iso-8859-1". An error is returned if the encoding is unknown.
//
// The default value is utf-8.
func WithEncoding(name string) Option {
	return newOptFunc("WithEncoding", func(cfg *ChannelConfig) error {
		if _, err := htmlindex.Get(name); err != nil {
			return fmt.Errorf("unknown encoding %q: %w", name, err)
		}
		cfg.encoding = name

		return nil
	})
}

// WithTLS enables TLS with the given configuration. A nil config disables TLS.
func WithTLS(tlsCfg *tls.Config) Option {
	return newOptFunc("WithTLS", func(cfg *ChannelConfig) error {
		cfg.tlsConfig = tlsCfg
		return nil
	})
}

// WithDelimiters sets the delimiter set used to validate payloads and parse acknowledgments.
// An error is returned if the set is invalid.
//
// The default value is hl7.DefaultDelimiters().
func WithDelimiters(d hl7.Delimiters) Option {
	return newOptFunc("WithDelimiters", func(cfg *ChannelConfig) error {
		if err := d.Validate(); err != nil {
			return err
		}
		cfg.delimiters = d

		return nil
	})
}

// WithHeaderValidators appends validators that check the MSH of every message before it is sent.
func WithHeaderValidators(validators ...hl7.HeaderValidator) Option {
	return newOptFunc("WithHeaderValidators", func(cfg *ChannelConfig) error {
		for _, v := range validators {
			if v == nil {
				return errors.New("validator is nil")
			}
		}
		cfg.validators = append(cfg.validators, validators...)

		return nil
	})
}

// WithMaxFrameSize sets the limit of buffered bytes for an incomplete inbound frame.
// An error is returned if the value is outside the valid range (0-64 MiB); 0 means unlimited.
//
// The default value is 1 MiB.
func WithMaxFrameSize(val int) Option {
	return newOptFunc("WithMaxFrameSize", func(cfg *ChannelConfig) error {
		if val < 0 || val > 64<<20 {
			return errors.New("max frame size out of range [0, 64MiB]")
		}
		cfg.maxFrameSize = val

		return nil
	})
}

// WithDialer sets the dialer that opens sockets. It overrides the TCP and TLS dialers.
func WithDialer(d Dialer) Option {
	return newOptFunc("WithDialer", func(cfg *ChannelConfig) error {
		if d == nil {
			return errors.New("dialer is nil")
		}
		cfg.dialer = d

		return nil
	})
}

// WithClock sets the clock that drives retry and connection timers.
//
// The default value is the real-time clock.
func WithClock(c clock.Clock) Option {
	return newOptFunc("WithClock", func(cfg *ChannelConfig) error {
		if c == nil {
			return errors.New("clock is nil")
		}
		cfg.clock = c

		return nil
	})
}

// WithLogger sets the logger of the channel.
//
// The default logger is the global logger instance.
func WithLogger(l logger.Logger) Option {
	return newOptFunc("WithLogger", func(cfg *ChannelConfig) error {
		if l == nil {
			return errors.New("logger is nil")
		}
		cfg.logger = l

		return nil
	})
}
