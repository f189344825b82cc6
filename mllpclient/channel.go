package mllpclient

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/arloliu/go-hl7/hl7"
	"github.com/arloliu/go-hl7/internal/pool"
	"github.com/arloliu/go-hl7/logger"
	"github.com/arloliu/go-hl7/mllp"
	"github.com/avast/retry-go/v4"
	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
)

const sendableKey = "sendable"

// Channel is an outbound MLLP connection to one receiver.
//
// All methods are safe for concurrent use. Concurrent SendMessage calls share a single wait
// for the channel to become sendable and write their frames one at a time.
type Channel struct {
	id     string
	addr   string
	cfg    *ChannelConfig
	logger logger.Logger
	clock  clock.Clock
	enc    encoding.Encoding
	dialer Dialer

	ctx        context.Context
	cancel     context.CancelFunc
	stopParent func() bool

	stateMgr   *connStateMgr
	pool       *socketPool
	events     *eventRegistry
	metrics    ChannelMetrics
	ackHandler AckHandler

	sendGroup   singleflight.Group
	writeMu     sync.Mutex
	pending     atomic.Int32
	awaitingAck atomic.Bool
	closing     atomic.Bool
	done        chan struct{}
	ready       chan struct{}
	readyOnce   sync.Once

	mu         sync.Mutex
	conn       net.Conn
	socketID   string
	connecting bool
	retryCount int
	retryTimer *clock.Timer
	connTimer  *clock.Timer
	timerGen   uint64
	err        error
}

// NewChannel creates a channel from cfg. handler, if not nil, is invoked for every
// acknowledgment.
//
// The channel starts in ConnectingState and connects on the first SendMessage or Open. It is
// closed when ctx is done.
func NewChannel(ctx context.Context, cfg *ChannelConfig, handler AckHandler) (*Channel, error) {
	if cfg == nil {
		return nil, ErrConfigNil
	}

	if cfg.port < 1 {
		return nil, errors.New("port is out of range [1, 65535]")
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	enc, err := htmlindex.Get(cfg.encoding)
	if err != nil {
		return nil, fmt.Errorf("unknown encoding %q: %w", cfg.encoding, err)
	}

	dialer := cfg.dialer
	if dialer == nil {
		dialer = newDefaultDialer(cfg.tlsConfig)
	}

	id := uuid.NewString()
	addr := net.JoinHostPort(cfg.host, strconv.Itoa(cfg.port))
	l := cfg.logger.With("channel", id, "addr", addr)

	ch := &Channel{
		id:         id,
		addr:       addr,
		cfg:        cfg,
		logger:     l,
		clock:      cfg.clock,
		enc:        enc,
		dialer:     dialer,
		events:     newEventRegistry(),
		ackHandler: handler,
		done:       make(chan struct{}),
		ready:      make(chan struct{}),
	}
	ch.ctx, ch.cancel = context.WithCancel(context.Background())
	ch.stateMgr = newConnStateMgr(ch, l)
	ch.pool = newSocketPool(l, cfg.clock)
	stop := context.AfterFunc(ctx, func() {
		_ = ch.Close()
	})
	ch.mu.Lock()
	ch.stopParent = stop
	ch.mu.Unlock()

	return ch, nil
}

// ID returns the unique id of the channel.
func (c *Channel) ID() string {
	return c.id
}

// Addr returns the receiver address.
func (c *Channel) Addr() string {
	return c.addr
}

// State returns the current state.
func (c *Channel) State() ConnState {
	return c.stateMgr.State()
}

// WaitState waits until the channel reaches state or ctx is done.
//
// When the channel closes before reaching a non-terminal state, the error that closed it is
// returned, or ErrChannelClosed after an explicit close.
func (c *Channel) WaitState(ctx context.Context, state ConnState) error {
	err := c.stateMgr.WaitState(ctx, state)
	if errors.Is(err, ErrChannelClosed) {
		return c.terminalErr()
	}

	return err
}

// Done returns a channel that is closed once the channel reached ClosedState.
func (c *Channel) Done() <-chan struct{} {
	return c.done
}

// Err returns the error that closed the channel, nil while open or after an explicit close.
func (c *Channel) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.err
}

// Stats returns a snapshot of the sent and acknowledged counters.
func (c *Channel) Stats() Stats {
	return c.metrics.Stats()
}

// Metrics returns the metrics of the channel.
func (c *Channel) Metrics() *ChannelMetrics {
	return &c.metrics
}

// Config returns the configuration of the channel.
func (c *Channel) Config() *ChannelConfig {
	return c.cfg
}

// AddEventHandler registers handler for the given event types, or for all events when no
// type is given.
func (c *Channel) AddEventHandler(handler EventHandler, types ...EventType) {
	c.events.add(handler, types...)
}

// AddStateChangeHandler registers handlers invoked after every state change.
func (c *Channel) AddStateChangeHandler(handlers ...ConnStateChangeHandler) {
	c.stateMgr.AddHandler(handlers...)
}

// Open connects eagerly and waits until the channel is connected or ctx is done.
//
// A timeout of this first attempt is terminal, since no send is pending to be replayed.
func (c *Channel) Open(ctx context.Context) error {
	if err := c.ensureConnected(); err != nil {
		return err
	}

	if err := c.WaitState(ctx, ConnectedState); err != nil {
		return err
	}

	select {
	case <-c.ready:
		return nil
	case <-c.done:
		return c.terminalErr()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SendMessage serializes payload, validates its headers, and writes it as one MLLP frame.
//
// It connects first if needed and waits until the channel is connected and, with WithWaitAck,
// the previous send was acknowledged. Connection timeouts are retried with backoff while the
// call is pending. It returns once the frame was written, not when it was acknowledged; use
// the AckHandler or the EventAcknowledged event for that.
//
// ErrChannelClosed is returned when the channel is closing or closed.
func (c *Channel) SendMessage(ctx context.Context, payload hl7.Payload) error {
	if payload == nil {
		return hl7.ErrMissingInput
	}

	if c.closing.Load() {
		return ErrChannelClosed
	}

	text := payload.String()
	if err := hl7.ValidatePayload(text, c.cfg.delimiters, c.cfg.validators...); err != nil {
		return err
	}

	data, err := c.enc.NewEncoder().String(text)
	if err != nil {
		return fmt.Errorf("encode payload with %s: %w", c.cfg.encoding, err)
	}
	frame := mllp.Encode([]byte(data))

	c.pending.Add(1)
	defer c.pending.Add(-1)

	if err := c.ensureConnected(); err != nil {
		return err
	}

	for {
		if err := c.waitSendable(ctx); err != nil {
			return err
		}

		c.writeMu.Lock()
		if err := c.sendableErr(); err != nil {
			c.writeMu.Unlock()
			if errors.Is(err, errNotReady) {
				continue
			}

			return err
		}

		if c.cfg.waitAck {
			c.awaitingAck.Store(true)
		}
		err := c.writeFrame(frame)
		c.writeMu.Unlock()

		if err != nil {
			c.fail(err)
			return err
		}

		count := c.metrics.incSentCount()
		if c.logger.Level() == logger.DebugLevel {
			c.logger.Debug("frame sent", "bytes", len(frame), "count", count)
		}
		c.emit(Event{Type: EventSent, Count: count})

		return nil
	}
}

// Close closes the channel and destroys every pooled socket. Closing a closed channel is a no-op.
func (c *Channel) Close() error {
	c.shutdown(nil)
	return nil
}

// ensureConnected touches the pooled socket, or starts a connection attempt if none is running.
func (c *Channel) ensureConnected() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closing.Load() {
		return ErrChannelClosed
	}

	if c.conn != nil {
		c.pool.Touch(c.socketID)
		return nil
	}

	if c.connecting {
		return nil
	}
	c.connecting = true

	if c.cfg.connectionTimeout > 0 && c.connTimer == nil {
		gen := c.timerGen
		c.connTimer = c.clock.AfterFunc(c.cfg.connectionTimeout, func() {
			c.onConnectionTimeout(gen)
		})
	}

	go c.connect()

	return nil
}

// connect runs one connection attempt bounded by the socket timeout.
func (c *Channel) connect() {
	ctx, cancel := context.WithTimeout(c.ctx, c.cfg.socketTimeout)
	defer cancel()

	c.logger.Debug("connecting", "method", "connect")
	conn, err := c.dialer.DialContext(ctx, "tcp", c.addr)
	if err != nil {
		if c.closing.Load() {
			return
		}

		if isTimeout(err) {
			c.onSocketTimeout(err)
			return
		}

		c.fail(fmt.Errorf("dial %s: %w", c.addr, err))

		return
	}

	c.onReady(conn)
}

func (c *Channel) onReady(conn net.Conn) {
	c.mu.Lock()
	if c.closing.Load() {
		c.mu.Unlock()
		_ = conn.Close()

		return
	}

	c.timerGen++
	c.stopTimersLocked()
	c.connecting = false

	id := uuid.NewString()
	c.conn = conn
	c.socketID = id
	c.pool.Add(id, conn, false)
	c.pool.EnforceCeiling(c.cfg.maxConnections)
	c.mu.Unlock()

	c.metrics.resetConnRetryGauge()
	c.logger.Info("channel connected", "socketID", id)

	if _, err := c.stateMgr.transition(ConnectedState); err != nil {
		return
	}

	// senders stay behind the ready gate until handlers saw EventReady
	c.emit(Event{Type: EventReady})
	c.readyOnce.Do(func() { close(c.ready) })
	c.stateMgr.notify()

	go c.readLoop(conn, id)
}

// onSocketTimeout schedules a retry while a send is pending and attempts remain, and fails
// the channel otherwise.
func (c *Channel) onSocketTimeout(cause error) {
	c.mu.Lock()
	if c.closing.Load() {
		c.mu.Unlock()
		return
	}

	attempts := c.retryCount + 1
	if c.pending.Load() == 0 || attempts >= c.cfg.maxAttempts {
		c.mu.Unlock()
		c.fail(fmt.Errorf("%w after %d attempt(s): %w", ErrSocketTimeout, attempts, cause))

		return
	}

	c.retryCount++
	retryCount := c.retryCount
	if c.retryTimer != nil {
		c.retryTimer.Stop()
		c.retryTimer = nil
	}
	c.mu.Unlock()

	delay := Backoff(retryCount, c.cfg.retryLow, c.cfg.retryHigh)
	if _, err := c.stateMgr.transition(OpenState); err != nil {
		return
	}

	c.metrics.incTimeoutCount()
	c.metrics.incConnRetryGauge()
	c.logger.Warn("connection attempt timed out, retry scheduled",
		"retryCount", retryCount, "delay", delay, "error", cause,
	)
	c.emit(Event{Type: EventTimeout, Attempt: retryCount, Delay: delay, Err: cause})

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closing.Load() {
		return
	}
	gen := c.timerGen
	c.retryTimer = c.clock.AfterFunc(delay, func() {
		c.onRetryTimer(gen)
	})
}

func (c *Channel) onRetryTimer(gen uint64) {
	c.mu.Lock()
	if gen != c.timerGen || c.closing.Load() {
		c.mu.Unlock()
		return
	}
	c.retryTimer = nil
	retryCount := c.retryCount
	c.mu.Unlock()

	c.emit(Event{Type: EventRetry, Attempt: retryCount})
	c.connect()
}

func (c *Channel) onConnectionTimeout(gen uint64) {
	c.mu.Lock()
	stale := gen != c.timerGen || c.conn != nil
	if !stale {
		c.connTimer = nil
	}
	c.mu.Unlock()

	if stale || c.closing.Load() {
		return
	}

	c.fail(ErrConnectionTimeout.Wrap(nil, "not connected within "+c.cfg.connectionTimeout.String()))
}

// stopTimersLocked stops the retry and connection timers. c.mu must be held.
func (c *Channel) stopTimersLocked() {
	if c.retryTimer != nil {
		c.retryTimer.Stop()
		c.retryTimer = nil
	}

	if c.connTimer != nil {
		c.connTimer.Stop()
		c.connTimer = nil
	}
}

// waitSendable waits on the shared poll until the channel is sendable, up to maxAttempts polls.
func (c *Channel) waitSendable(ctx context.Context) error {
	if err := c.sendableErr(); !errors.Is(err, errNotReady) {
		return err
	}

	err := retry.Do(
		func() error {
			resCh := c.sendGroup.DoChan(sendableKey, c.pollSendable)
			select {
			case res := <-resCh:
				return res.Err
			case <-ctx.Done():
				return retry.Unrecoverable(ctx.Err())
			}
		},
		retry.Context(ctx),
		retry.Attempts(uint(c.cfg.maxAttempts)),
		retry.Delay(0),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return errors.Is(err, ErrNotSendable)
		}),
		retry.OnRetry(func(n uint, err error) {
			c.logger.Debug("channel not sendable yet", "attempt", n+1, "state", c.State())
		}),
	)
	if err != nil && errors.Is(err, ErrNotSendable) {
		return fmt.Errorf("%w after %d attempt(s) in state %s", err, c.cfg.maxAttempts, c.State())
	}

	return err
}

// pollSendable waits up to socketTimeout + retryHigh for the channel to become sendable.
func (c *Channel) pollSendable() (any, error) {
	timer := pool.GetTimer(c.cfg.socketTimeout + c.cfg.retryHigh)
	defer pool.PutTimer(timer)

	for {
		changed := c.stateMgr.Changed()
		err := c.sendableErr()
		if !errors.Is(err, errNotReady) {
			return nil, err
		}

		select {
		case <-changed:
		case <-timer.C:
			return nil, ErrNotSendable
		}
	}
}

// sendableErr returns nil when a frame can be written, errNotReady when it has to wait, and
// the terminal error when the channel is closing or closed.
func (c *Channel) sendableErr() error {
	state := c.State()
	if state.IsTerminal() {
		return c.terminalErr()
	}

	if state != ConnectedState || !c.isReady() {
		return errNotReady
	}

	if c.cfg.waitAck && c.awaitingAck.Load() {
		return errNotReady
	}

	return nil
}

func (c *Channel) isReady() bool {
	select {
	case <-c.ready:
		return true
	default:
		return false
	}
}

func (c *Channel) terminalErr() error {
	if err := c.Err(); err != nil {
		return err
	}

	return ErrChannelClosed
}

func (c *Channel) writeFrame(frame []byte) error {
	c.mu.Lock()
	conn, id := c.conn, c.socketID
	c.mu.Unlock()

	if conn == nil {
		return ErrChannelClosed
	}

	if err := conn.SetWriteDeadline(time.Now().Add(c.cfg.socketTimeout)); err != nil {
		return fmt.Errorf("set write deadline: %w", err)
	}

	if _, err := conn.Write(frame); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	c.pool.Touch(id)

	return nil
}

func (c *Channel) fail(err error) {
	c.shutdown(err)
}

// shutdown moves the channel to ClosingState, releases timers and sockets, emits EventError
// when cause is not nil or EventClose otherwise, and ends in ClosedState.
func (c *Channel) shutdown(cause error) {
	if !c.closing.CompareAndSwap(false, true) {
		return
	}

	c.mu.Lock()
	c.err = cause
	c.timerGen++
	c.stopTimersLocked()
	c.conn = nil
	c.connecting = false
	stopParent := c.stopParent
	c.mu.Unlock()

	if _, err := c.stateMgr.transition(ClosingState); err != nil {
		c.logger.Error("unexpected state transition failure", "state", c.State(), "error", err)
	}

	c.cancel()
	if stopParent != nil {
		stopParent()
	}
	removed := c.pool.RemoveAll()

	if cause != nil {
		c.metrics.incErrorCount()
		c.logger.Error("channel closed by error", "error", cause, "sockets", removed)
		c.emit(Event{Type: EventError, Err: cause})
	} else {
		c.logger.Info("channel closed", "sockets", removed)
		c.emit(Event{Type: EventClose})
	}

	_, _ = c.stateMgr.transition(ClosedState)
	close(c.done)
}

func (c *Channel) emit(ev Event) {
	c.events.emit(c, ev)
}
