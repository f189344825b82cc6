package hl7

import "fmt"

// Delimiters is the HL7 v2 delimiter set.
//
// The order of the fields matches the wire order used by String and ParseDelimiters:
// segment terminator, field separator, component separator, repetition separator,
// escape character, subcomponent separator.
type Delimiters struct {
	Segment      byte
	Field        byte
	Component    byte
	Repetition   byte
	Escape       byte
	Subcomponent byte
}

// DefaultDelimiters returns the protocol default delimiter set `\r|^~\&`.
func DefaultDelimiters() Delimiters {
	return Delimiters{
		Segment:      '\r',
		Field:        '|',
		Component:    '^',
		Repetition:   '~',
		Escape:       '\\',
		Subcomponent: '&',
	}
}

// ParseDelimiters parses a 6-character delimiter set in wire order.
func ParseDelimiters(s string) (Delimiters, error) {
	if len(s) != 6 {
		return Delimiters{}, ErrInvalidDelimiters.Wrap(nil, fmt.Sprintf("expected 6 characters, got %d", len(s)))
	}

	d := Delimiters{
		Segment:      s[0],
		Field:        s[1],
		Component:    s[2],
		Repetition:   s[3],
		Escape:       s[4],
		Subcomponent: s[5],
	}

	if err := d.Validate(); err != nil {
		return Delimiters{}, err
	}

	return d, nil
}

// Validate checks that all 6 delimiter positions are distinct.
func (d Delimiters) Validate() error {
	chars := d.bytes()
	for i := range chars {
		for j := i + 1; j < len(chars); j++ {
			if chars[i] == chars[j] {
				return ErrInvalidDelimiters.Wrap(nil, fmt.Sprintf("duplicated delimiter %q", chars[i]))
			}
		}
	}

	return nil
}

// String returns the delimiter set in wire order.
func (d Delimiters) String() string {
	b := d.bytes()
	return string(b[:])
}

// EncodingCharacters returns MSH-2: component, repetition, escape and subcomponent characters.
func (d Delimiters) EncodingCharacters() string {
	return string([]byte{d.Component, d.Repetition, d.Escape, d.Subcomponent})
}

func (d Delimiters) bytes() [6]byte {
	return [6]byte{d.Segment, d.Field, d.Component, d.Repetition, d.Escape, d.Subcomponent}
}
