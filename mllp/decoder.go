package mllp

import (
	"bytes"

	"github.com/arloliu/go-hl7/internal/util"
)

// Decoder reassembles MLLP frames from stream chunks.
//
// Decoder is NOT goroutine-safe. It is meant to be fed by the single goroutine that reads
// the connection, so frames come out in byte-arrival order.
type Decoder struct {
	buf         []byte
	maxBuffered int
}

// NewDecoder creates a decoder. A positive maxBuffered bounds the bytes kept for an
// incomplete frame.
func NewDecoder(maxBuffered int) *Decoder {
	return &Decoder{maxBuffered: maxBuffered}
}

// Feed appends chunk to the receive buffer and returns the payloads of every frame that is
// now complete, in arrival order.
//
// Bytes before a start block are discarded. A partial frame is kept until a later chunk
// completes it, so markers split across chunks are handled. When the partial frame grows past
// the limit, the buffer is dropped and ErrFrameTooLarge is returned along with the frames
// decoded so far.
func (d *Decoder) Feed(chunk []byte) ([][]byte, error) {
	d.buf = append(d.buf, chunk...)

	var frames [][]byte
	off := 0
	for {
		start := bytes.IndexByte(d.buf[off:], StartBlock)
		if start < 0 {
			off = len(d.buf)
			break
		}
		start += off

		end := bytes.Index(d.buf[start+1:], endMarker)
		if end < 0 {
			off = start
			break
		}
		end += start + 1

		frames = append(frames, util.CloneSlice(d.buf[start+1:end], 0))
		off = end + len(endMarker)
	}

	d.buf = append(d.buf[:0], d.buf[off:]...)

	if d.maxBuffered > 0 && len(d.buf) > d.maxBuffered {
		d.Reset()
		return frames, ErrFrameTooLarge
	}

	return frames, nil
}

// Buffered returns the number of bytes held for an incomplete frame.
func (d *Decoder) Buffered() int {
	return len(d.buf)
}

// Reset drops any buffered bytes.
func (d *Decoder) Reset() {
	d.buf = nil
}
