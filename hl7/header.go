package hl7

import (
	"strings"
	"time"
)

// DateTimeLayout is the timestamp layout used in MSH-7, BHS-7 and FHS-7.
const DateTimeLayout = "20060102150405"

var dateTimeLayouts = []string{DateTimeLayout, "200601021504", "2006010215", "20060102"}

// MessageType is the MSH-9 field.
type MessageType struct {
	Code         string // MSH-9.1
	TriggerEvent string // MSH-9.2
	Structure    string // MSH-9.3
}

// Header is the MSH segment of a message.
type Header struct {
	Delimiters           Delimiters
	SendingApplication   string // MSH-3
	SendingFacility      string // MSH-4
	ReceivingApplication string // MSH-5
	ReceivingFacility    string // MSH-6
	DateTime             time.Time
	Security             string // MSH-8
	MessageType          MessageType
	ControlID            string // MSH-10
	ProcessingID         string // MSH-11
	Version              string // MSH-12
}

// delimiters returns the header delimiters, or the default set when none was given.
func (h *Header) delimiters() Delimiters {
	if h.Delimiters == (Delimiters{}) {
		return DefaultDelimiters()
	}

	return h.Delimiters
}

// String serializes the header to an MSH segment terminated by the segment terminator.
func (h *Header) String() string {
	d := h.delimiters()
	codec := NewCodec(d)

	var dt string
	if !h.DateTime.IsZero() {
		dt = h.DateTime.Format(DateTimeLayout)
	}

	msgType := Field{h.MessageType.Code, h.MessageType.TriggerEvent}
	if h.MessageType.Structure != "" {
		msgType = append(msgType, h.MessageType.Structure)
	}

	fields := []Field{
		{h.SendingApplication},
		{h.SendingFacility},
		{h.ReceivingApplication},
		{h.ReceivingFacility},
		{dt},
		{h.Security},
		msgType,
		{h.ControlID},
		{h.ProcessingID},
		{h.Version},
	}

	var sb strings.Builder
	sb.WriteString("MSH")
	sb.WriteByte(d.Field)
	sb.WriteString(d.EncodingCharacters())
	for _, f := range fields {
		sb.WriteByte(d.Field)
		f.writeTo(&sb, codec)
	}
	sb.WriteByte(d.Segment)

	return sb.String()
}

// ParseHeader parses the MSH segment at the start of text.
//
// The delimiter set is taken from MSH-1 and MSH-2; the segment terminator is the first
// carriage return or line feed found in text.
func ParseHeader(text string) (*Header, error) {
	if len(text) < 8 || !strings.HasPrefix(text, "MSH") {
		return nil, ErrInvalidHeader.Wrap(nil, "text does not start with an MSH segment")
	}

	d := Delimiters{
		Segment:      '\r',
		Field:        text[3],
		Component:    text[4],
		Repetition:   text[5],
		Escape:       text[6],
		Subcomponent: text[7],
	}

	end := strings.IndexAny(text, "\r\n")
	if end >= 0 {
		d.Segment = text[end]
	} else {
		end = len(text)
	}

	if err := d.Validate(); err != nil {
		return nil, ErrInvalidHeader.Wrap(err, "MSH-1/MSH-2")
	}

	codec := NewCodec(d)
	parts := strings.Split(text[:end], string(d.Field))
	value := func(seq int) string {
		idx := seq - 1
		if idx >= len(parts) {
			return ""
		}
		v, _ := codec.Unescape(parts[idx])

		return v
	}

	h := &Header{
		Delimiters:           d,
		SendingApplication:   value(3),
		SendingFacility:      value(4),
		ReceivingApplication: value(5),
		ReceivingFacility:    value(6),
		DateTime:             parseDateTime(value(7)),
		Security:             value(8),
		ControlID:            value(10),
		ProcessingID:         value(11),
		Version:              value(12),
	}

	if len(parts) > 8 {
		comps := strings.Split(parts[8], string(d.Component))
		for i, c := range comps {
			comps[i], _ = codec.Unescape(c)
		}
		h.MessageType.Code = comps[0]
		if len(comps) > 1 {
			h.MessageType.TriggerEvent = comps[1]
		}
		if len(comps) > 2 {
			h.MessageType.Structure = comps[2]
		}
	}

	return h, nil
}

func parseDateTime(s string) time.Time {
	// drop fractional seconds and zone offset
	if idx := strings.IndexAny(s, ".+-"); idx >= 0 {
		s = s[:idx]
	}

	for _, layout := range dateTimeLayouts {
		if len(s) != len(layout) {
			continue
		}
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}

	return time.Time{}
}
