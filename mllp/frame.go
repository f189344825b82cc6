package mllp

import (
	"bytes"
	"errors"

	"github.com/arloliu/go-hl7/internal/util"
)

// Frame markers.
const (
	StartBlock     byte = 0x0B
	EndBlock       byte = 0x1C
	CarriageReturn byte = 0x0D
)

var endMarker = []byte{EndBlock, CarriageReturn}

var (
	// ErrMissingStartBlock indicates that a frame does not begin with the start block.
	ErrMissingStartBlock = errors.New("mllp: missing start block")

	// ErrMissingEndBlock indicates that a frame does not end with the end block and carriage return.
	ErrMissingEndBlock = errors.New("mllp: missing end block")

	// ErrFrameTooLarge indicates that buffered bytes exceeded the decoder limit without
	// completing a frame.
	ErrFrameTooLarge = errors.New("mllp: frame exceeds the maximum size")
)

// Encode wraps payload in an MLLP frame.
func Encode(payload []byte) []byte {
	frame := make([]byte, 0, len(payload)+3)
	frame = append(frame, StartBlock)
	frame = append(frame, payload...)
	frame = append(frame, endMarker...)

	return frame
}

// Decode strips the markers of one complete frame and returns a copy of its payload.
func Decode(frame []byte) ([]byte, error) {
	if len(frame) == 0 || frame[0] != StartBlock {
		return nil, ErrMissingStartBlock
	}

	if len(frame) < 3 || !bytes.HasSuffix(frame, endMarker) {
		return nil, ErrMissingEndBlock
	}

	return util.CloneSlice(frame[1:len(frame)-2], 0), nil
}
