package hl7

import (
	"encoding/hex"
	"regexp"
	"strings"

	"github.com/puzpuzpuz/xsync/v3"
)

// escape codes, in the order of the escape, field, repetition, component and subcomponent characters.
const (
	codeEscape       = 'E'
	codeField        = 'F'
	codeRepetition   = 'R'
	codeComponent    = 'S'
	codeSubcomponent = 'T'
)

var codecCache = xsync.NewMapOf[Delimiters, *Codec]()

// Codec escapes and unescapes delimiter-reserved characters for one delimiter set.
//
// A Codec is immutable and safe for concurrent use.
type Codec struct {
	delims     Delimiters
	reservedRe *regexp.Regexp
	tokenRe    *regexp.Regexp
	toCode     map[byte]byte
	fromCode   map[byte]byte
}

// NewCodec returns the codec of the delimiter set d.
//
// Codecs are cached per distinct delimiter set, so matchers are compiled only once per set.
func NewCodec(d Delimiters) *Codec {
	codec, _ := codecCache.LoadOrCompute(d, func() *Codec {
		return compileCodec(d)
	})

	return codec
}

// DefaultCodec returns the codec of the default delimiter set.
func DefaultCodec() *Codec {
	return NewCodec(DefaultDelimiters())
}

func compileCodec(d Delimiters) *Codec {
	reserved := []byte{d.Escape, d.Field, d.Repetition, d.Component, d.Subcomponent}
	alternatives := make([]string, 0, len(reserved))
	for _, c := range reserved {
		alternatives = append(alternatives, regexp.QuoteMeta(string(c)))
	}

	esc := regexp.QuoteMeta(string(d.Escape))

	return &Codec{
		delims:     d,
		reservedRe: regexp.MustCompile(strings.Join(alternatives, "|")),
		tokenRe:    regexp.MustCompile(esc + "[^" + esc + "]*" + esc),
		toCode: map[byte]byte{
			d.Escape:       codeEscape,
			d.Field:        codeField,
			d.Repetition:   codeRepetition,
			d.Component:    codeComponent,
			d.Subcomponent: codeSubcomponent,
		},
		fromCode: map[byte]byte{
			codeEscape:       d.Escape,
			codeField:        d.Field,
			codeRepetition:   d.Repetition,
			codeComponent:    d.Component,
			codeSubcomponent: d.Subcomponent,
		},
	}
}

// Delimiters returns the delimiter set of the codec.
func (c *Codec) Delimiters() Delimiters {
	return c.delims
}

// Escape replaces every reserved character in text with its escape sequence.
func (c *Codec) Escape(text string) (string, error) {
	return c.EscapeValue(&text)
}

// EscapeValue is like Escape, but reports ErrMissingInput when text is nil.
func (c *Codec) EscapeValue(text *string) (string, error) {
	if text == nil {
		return "", ErrMissingInput
	}

	var err error
	result := c.reservedRe.ReplaceAllStringFunc(*text, func(match string) string {
		code, ok := c.toCode[match[0]]
		if !ok {
			err = ErrUnknownEscape.Wrap(nil, match)
			return match
		}

		return string([]byte{c.delims.Escape, code, c.delims.Escape})
	})
	if err != nil {
		return "", err
	}

	return result, nil
}

// Unescape converts escape sequences in text back to raw characters.
//
// E, F, R, S and T map to the delimiter characters, X decodes hexadecimal bytes and the
// highlighting codes C, H, M, N and Z are dropped. Any other sequence is left unchanged.
func (c *Codec) Unescape(text string) (string, error) {
	return c.UnescapeValue(&text)
}

// UnescapeValue is like Unescape, but reports ErrMissingInput when text is nil.
func (c *Codec) UnescapeValue(text *string) (string, error) {
	if text == nil {
		return "", ErrMissingInput
	}

	if strings.IndexByte(*text, c.delims.Escape) < 0 {
		return *text, nil
	}

	return c.tokenRe.ReplaceAllStringFunc(*text, c.unescapeToken), nil
}

func (c *Codec) unescapeToken(token string) string {
	inner := token[1 : len(token)-1]
	if inner == "" {
		return token
	}

	if len(inner) == 1 {
		if ch, ok := c.fromCode[inner[0]]; ok {
			return string(ch)
		}
	}

	switch inner[0] {
	case 'X':
		decoded, err := hex.DecodeString(inner[1:])
		if err != nil || len(decoded) == 0 {
			return token
		}

		return string(decoded)
	case 'C', 'M', 'Z':
		return ""
	case 'H', 'N':
		if len(inner) == 1 {
			return ""
		}
	}

	return token
}
