// Package mllp implements the Minimal Lower Layer Protocol framing used to carry HL7 v2
// messages over a byte stream.
//
// A frame is the start block 0x0B, the payload, and the end block 0x1C followed by a
// carriage return 0x0D. Encode and Decode handle single frames; Decoder reassembles frames
// from arbitrary stream chunks and Reader reads them from an io.Reader.
package mllp
