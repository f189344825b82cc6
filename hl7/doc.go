// Package hl7 implements the HL7 v2 text layer used by the MLLP client.
//
// It provides the delimiter Codec that escapes and unescapes reserved characters, the
// segment splitter that slices a payload at MSH, FHS, BHS, BTS and FTS boundaries, and thin
// message, batch and acknowledgment types that serialize to or parse from HL7 text.
//
// Fatal errors are *Error values with a numeric Code. They can be matched with errors.Is
// against the package sentinels such as ErrMissingInput.
package hl7
