package mllpclient

import (
	"errors"
	"fmt"
	"io"
	"net"

	"github.com/arloliu/go-hl7/hl7"
	"github.com/arloliu/go-hl7/logger"
	"github.com/arloliu/go-hl7/mllp"
)

const readChunkSize = 4096

// readLoop reads the socket until it is closed. It is the only goroutine that touches the
// decoder, so frames are handled in byte-arrival order.
func (c *Channel) readLoop(conn net.Conn, socketID string) {
	dec := mllp.NewDecoder(c.cfg.maxFrameSize)
	buf := make([]byte, readChunkSize)

	for {
		n, err := conn.Read(buf)
		if n > 0 {
			c.awaitingAck.Store(false)

			frames, decErr := dec.Feed(buf[:n])
			for _, frame := range frames {
				c.handleFrame(frame)
			}
			c.stateMgr.notify()

			if decErr != nil {
				c.fail(fmt.Errorf("decode frame: %w", decErr))
				return
			}

			if len(frames) > 0 && !c.cfg.keepOpen {
				_ = c.Close()
				return
			}
		}

		if err != nil {
			if c.closing.Load() {
				return
			}

			c.pool.Destroy(socketID)
			if errors.Is(err, io.EOF) {
				c.fail(ErrRemoteClosed)
			} else {
				c.fail(fmt.Errorf("read: %w", err))
			}

			return
		}
	}
}

// handleFrame turns one frame payload into an acknowledgment and notifies listeners.
func (c *Channel) handleFrame(frame []byte) {
	text, err := c.enc.NewDecoder().Bytes(frame)
	if err != nil {
		c.logger.Warn("failed to decode frame text, using raw bytes", "encoding", c.cfg.encoding, "error", err)
		text = frame
	}

	ack := hl7.ParseAck(string(text), c.cfg.delimiters)
	count := c.metrics.incAcknowledgedCount()

	if c.logger.Level() == logger.DebugLevel {
		c.logger.Debug("frame received", "bytes", len(frame), "ackCode", ack.Code, "controlID", ack.ControlID, "count", count)
	}

	c.emit(Event{Type: EventAcknowledged, Count: count})

	if c.ackHandler != nil {
		c.ackHandler(c, ack)
	}
}
