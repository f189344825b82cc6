package mllpclient

import (
	"context"
	"sync/atomic"

	"github.com/arloliu/go-hl7/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/puzpuzpuz/xsync/v3"
)

// Client creates channels to one receiver host and holds their default options.
//
// Options given to NewClient apply to every channel; options given to CreateChannel override
// them for that channel only.
type Client struct {
	template *ChannelConfig
	channels *xsync.MapOf[string, *Channel]
	logger   logger.Logger
	closed   atomic.Bool

	sent         atomic.Uint64
	acknowledged atomic.Uint64
}

// NewClient creates a client for host with default channel options.
func NewClient(host string, opts ...Option) (*Client, error) {
	template, err := NewChannelConfig(host, 0, opts...)
	if err != nil {
		return nil, err
	}

	return &Client{
		template: template,
		channels: xsync.NewMapOf[string, *Channel](),
		logger:   template.logger.With("host", template.host),
	}, nil
}

// CreateChannel creates a channel to port. Unset options fall back to the client defaults.
//
// The channel is tracked by the client until it is closed.
func (cl *Client) CreateChannel(ctx context.Context, port int, handler AckHandler, opts ...Option) (*Channel, error) {
	if cl.closed.Load() {
		return nil, ErrChannelClosed
	}

	cfg := cl.template.clone()
	overrides := append([]Option{withPort(port)}, opts...)
	if err := cfg.apply(overrides...); err != nil {
		return nil, err
	}

	ch, err := NewChannel(ctx, cfg, handler)
	if err != nil {
		return nil, err
	}

	ch.AddEventHandler(func(_ *Channel, ev Event) {
		switch ev.Type {
		case EventSent:
			cl.sent.Add(1)
		case EventAcknowledged:
			cl.acknowledged.Add(1)
		}
	}, EventSent, EventAcknowledged)

	cl.channels.Store(ch.ID(), ch)
	go func() {
		<-ch.Done()
		cl.channels.Delete(ch.ID())
	}()

	// Close may have missed the channel between the check above and Store
	if cl.closed.Load() {
		_ = ch.Close()
		return nil, ErrChannelClosed
	}

	cl.logger.Debug("channel created", "channel", ch.ID(), "port", port)

	return ch, nil
}

// Channels returns the channels that are not closed yet.
func (cl *Client) Channels() []*Channel {
	list := make([]*Channel, 0, cl.channels.Size())
	cl.channels.Range(func(_ string, ch *Channel) bool {
		list = append(list, ch)
		return true
	})

	return list
}

// Config returns the default channel configuration of the client.
func (cl *Client) Config() *ChannelConfig {
	return cl.template
}

// Stats returns the sent and acknowledged totals of every channel created by the client.
func (cl *Client) Stats() Stats {
	return Stats{Sent: cl.sent.Load(), Acknowledged: cl.acknowledged.Load()}
}

// Collectors returns prometheus collectors of the client totals and the number of open
// channels, named <namespace>_client_<metric>.
func (cl *Client) Collectors(namespace string) []prometheus.Collector {
	opts := func(name, help string) prometheus.Opts {
		return prometheus.Opts{
			Namespace:   namespace,
			Subsystem:   "client",
			Name:        name,
			Help:        help,
			ConstLabels: prometheus.Labels{"host": cl.template.host},
		}
	}

	return []prometheus.Collector{
		prometheus.NewCounterFunc(prometheus.CounterOpts(opts("sent_total", "Number of HL7 frames written by all channels.")),
			func() float64 { return float64(cl.sent.Load()) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts(opts("acknowledged_total", "Number of acknowledgments received by all channels.")),
			func() float64 { return float64(cl.acknowledged.Load()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts(opts("open_channels", "Number of channels that are not closed.")),
			func() float64 { return float64(cl.channels.Size()) }),
	}
}

// Close closes every open channel. Channels cannot be created afterwards.
func (cl *Client) Close() error {
	if !cl.closed.CompareAndSwap(false, true) {
		return nil
	}

	for _, ch := range cl.Channels() {
		_ = ch.Close()
	}

	return nil
}
