package hl7

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Payload is anything that serializes itself to HL7 text.
//
// *Message, *Batch and *FileBatch implement Payload, and so does RawPayload.
type Payload interface {
	String() string
}

// RawPayload is HL7 text that is already serialized.
type RawPayload string

// String returns the text as is.
func (p RawPayload) String() string {
	return string(p)
}

// Field is a field value made of components.
//
// Components are escaped when the field is serialized.
type Field []string

func (f Field) writeTo(sb *strings.Builder, codec *Codec) {
	d := codec.Delimiters()
	for i, comp := range f {
		if i > 0 {
			sb.WriteByte(d.Component)
		}
		escaped, err := codec.Escape(comp)
		if err != nil {
			escaped = comp
		}
		sb.WriteString(escaped)
	}
}

// Segment is a non-MSH segment.
type Segment struct {
	Name   string
	Fields []Field
}

// Message is an HL7 v2 message: an MSH header followed by segments.
type Message struct {
	Header   Header
	Segments []Segment
}

// NewMessage creates a message with header h.
//
// A missing control id is filled by GenerateControlID and a zero timestamp by the current time.
func NewMessage(h Header) *Message {
	if h.ControlID == "" {
		h.ControlID = GenerateControlID()
	}
	if h.DateTime.IsZero() {
		h.DateTime = time.Now()
	}

	return &Message{Header: h}
}

// AddSegment appends a segment and returns the message for chaining.
//
// Each value is either a Field or a string, which is treated as a one-component field.
func (m *Message) AddSegment(name string, values ...any) *Message {
	seg := Segment{Name: name, Fields: make([]Field, 0, len(values))}
	for _, v := range values {
		switch val := v.(type) {
		case Field:
			seg.Fields = append(seg.Fields, val)
		case []string:
			seg.Fields = append(seg.Fields, Field(val))
		case string:
			seg.Fields = append(seg.Fields, Field{val})
		case nil:
			seg.Fields = append(seg.Fields, Field{})
		default:
			seg.Fields = append(seg.Fields, Field{fmt.Sprint(val)})
		}
	}
	m.Segments = append(m.Segments, seg)

	return m
}

// String serializes the message. Every segment ends with the segment terminator.
func (m *Message) String() string {
	d := m.Header.delimiters()
	codec := NewCodec(d)

	var sb strings.Builder
	sb.WriteString(m.Header.String())
	for _, seg := range m.Segments {
		sb.WriteString(seg.Name)
		for _, f := range seg.Fields {
			sb.WriteByte(d.Field)
			f.writeTo(&sb, codec)
		}
		sb.WriteByte(d.Segment)
	}

	return sb.String()
}

// EnvelopeHeader is the header of a batch (BHS) or a file (FHS).
type EnvelopeHeader struct {
	Delimiters           Delimiters
	SendingApplication   string
	SendingFacility      string
	ReceivingApplication string
	ReceivingFacility    string
	DateTime             time.Time
	Security             string
	Name                 string
	Comment              string
	ControlID            string
}

func (h *EnvelopeHeader) delimiters() Delimiters {
	if h.Delimiters == (Delimiters{}) {
		return DefaultDelimiters()
	}

	return h.Delimiters
}

func (h *EnvelopeHeader) segment(name string) string {
	d := h.delimiters()
	codec := NewCodec(d)

	var dt string
	if !h.DateTime.IsZero() {
		dt = h.DateTime.Format(DateTimeLayout)
	}

	var sb strings.Builder
	sb.WriteString(name)
	sb.WriteByte(d.Field)
	sb.WriteString(d.EncodingCharacters())
	for _, v := range []string{
		h.SendingApplication, h.SendingFacility, h.ReceivingApplication, h.ReceivingFacility,
		dt, h.Security, h.Name, h.Comment, h.ControlID,
	} {
		sb.WriteByte(d.Field)
		Field{v}.writeTo(&sb, codec)
	}
	sb.WriteByte(d.Segment)

	return sb.String()
}

func trailer(name string, count int, d Delimiters) string {
	return name + string(d.Field) + strconv.Itoa(count) + string(d.Segment)
}

// Batch is a BHS/BTS envelope around messages.
type Batch struct {
	Header   EnvelopeHeader
	Messages []*Message
}

// Add appends messages to the batch.
func (b *Batch) Add(msgs ...*Message) *Batch {
	b.Messages = append(b.Messages, msgs...)
	return b
}

// String serializes the batch, with the message count in BTS-1.
func (b *Batch) String() string {
	var sb strings.Builder
	sb.WriteString(b.Header.segment("BHS"))
	for _, m := range b.Messages {
		sb.WriteString(m.String())
	}
	sb.WriteString(trailer("BTS", len(b.Messages), b.Header.delimiters()))

	return sb.String()
}

// FileBatch is an FHS/FTS envelope around batches.
type FileBatch struct {
	Header  EnvelopeHeader
	Batches []*Batch
}

// Add appends batches to the file.
func (f *FileBatch) Add(batches ...*Batch) *FileBatch {
	f.Batches = append(f.Batches, batches...)
	return f
}

// String serializes the file, with the batch count in FTS-1.
func (f *FileBatch) String() string {
	var sb strings.Builder
	sb.WriteString(f.Header.segment("FHS"))
	for _, b := range f.Batches {
		sb.WriteString(b.String())
	}
	sb.WriteString(trailer("FTS", len(f.Batches), f.Header.delimiters()))

	return sb.String()
}
