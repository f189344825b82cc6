package mllp

import (
	"errors"
	"fmt"
	"io"
)

const defaultChunkSize = 4096

// Reader reads MLLP frames from an io.Reader.
//
// Reader is NOT goroutine-safe.
type Reader struct {
	r       io.Reader
	dec     *Decoder
	chunk   []byte
	pending [][]byte
}

// NewReader creates a frame reader over r. maxFrameSize is passed to the underlying Decoder.
func NewReader(r io.Reader, maxFrameSize int) *Reader {
	return &Reader{
		r:     r,
		dec:   NewDecoder(maxFrameSize),
		chunk: make([]byte, defaultChunkSize),
	}
}

// ReadFrame blocks until one complete frame is available and returns its payload.
//
// io.EOF is returned when the stream ends on a frame boundary and io.ErrUnexpectedEOF when it
// ends inside a frame.
func (r *Reader) ReadFrame() ([]byte, error) {
	for len(r.pending) == 0 {
		n, err := r.r.Read(r.chunk)
		if n > 0 {
			frames, ferr := r.dec.Feed(r.chunk[:n])
			r.pending = append(r.pending, frames...)
			if ferr != nil {
				return nil, ferr
			}
		}

		if err != nil {
			if len(r.pending) > 0 {
				break
			}
			if errors.Is(err, io.EOF) {
				if r.dec.Buffered() > 0 {
					return nil, io.ErrUnexpectedEOF
				}

				return nil, io.EOF
			}

			return nil, fmt.Errorf("read frame: %w", err)
		}
	}

	frame := r.pending[0]
	r.pending = r.pending[1:]

	return frame, nil
}
