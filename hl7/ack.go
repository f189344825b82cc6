package hl7

import "strings"

// Acknowledgment codes of MSA-1.
const (
	AckAccept       = "AA"
	AckError        = "AE"
	AckReject       = "AR"
	AckCommitAccept = "CA"
	AckCommitError  = "CE"
	AckCommitReject = "CR"
)

// Ack is an acknowledgment received for a sent message.
type Ack struct {
	// Header is the MSH of the acknowledgment, nil when it could not be parsed.
	Header    *Header
	Code      string // MSA-1
	ControlID string // MSA-2, the control id of the acknowledged message
	Text      string // MSA-3
	Raw       string
}

// Accepted reports whether the receiver accepted the message.
func (a *Ack) Accepted() bool {
	return a.Code == AckAccept || a.Code == AckCommitAccept
}

// ParseAck builds an acknowledgment from decoded frame text.
//
// Parsing is lenient: fields that cannot be found are left empty and Raw always holds text.
// When text starts with an MSH segment its delimiters override d.
func ParseAck(text string, d Delimiters) *Ack {
	ack := &Ack{Raw: text}

	if h, err := ParseHeader(text); err == nil {
		ack.Header = h
		d = h.Delimiters
	}

	codec := NewCodec(d)
	prefix := "MSA" + string(d.Field)
	for _, seg := range strings.FieldsFunc(text, func(r rune) bool { return r == '\r' || r == '\n' }) {
		if !strings.HasPrefix(seg, prefix) {
			continue
		}

		parts := strings.Split(seg, string(d.Field))
		value := func(idx int) string {
			if idx >= len(parts) {
				return ""
			}
			v, _ := codec.Unescape(parts[idx])

			return v
		}
		ack.Code = value(1)
		ack.ControlID = value(2)
		ack.Text = value(3)

		break
	}

	return ack
}
