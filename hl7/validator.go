package hl7

import (
	"fmt"
	"strconv"
	"strings"
)

// HeaderValidator checks a message header before it is sent.
//
// Validate returns the header unchanged, or an error wrapping ErrValidation.
type HeaderValidator interface {
	Validate(h *Header) (*Header, error)
}

// HeaderValidatorFunc adapts a function to HeaderValidator.
type HeaderValidatorFunc func(h *Header) (*Header, error)

// Validate calls f(h).
func (f HeaderValidatorFunc) Validate(h *Header) (*Header, error) {
	return f(h)
}

// ValidateHeader runs validators in order and stops at the first failure.
func ValidateHeader(h *Header, validators ...HeaderValidator) (*Header, error) {
	var err error
	for _, v := range validators {
		h, err = v.Validate(h)
		if err != nil {
			return nil, err
		}
	}

	return h, nil
}

// ValidatePayload parses every MSH unit of text and runs validators on its header.
func ValidatePayload(text string, d Delimiters, validators ...HeaderValidator) error {
	if len(validators) == 0 {
		return nil
	}

	for _, unit := range Split(text, d) {
		if !strings.HasPrefix(unit, "MSH") {
			continue
		}

		h, err := ParseHeader(unit)
		if err != nil {
			return err
		}

		if _, err := ValidateHeader(h, validators...); err != nil {
			return err
		}
	}

	return nil
}

// KnownVersions lists the HL7 v2 versions accepted by the version validator.
var KnownVersions = []string{
	"2.1", "2.2", "2.3", "2.3.1", "2.4", "2.5", "2.5.1", "2.6", "2.7", "2.7.1", "2.8", "2.8.1", "2.8.2",
}

type versionValidator struct{}

// NewVersionValidator returns a validator of the MSH fields every HL7 v2 version requires.
//
// It checks that MSH-9.1 and MSH-9.2 are 3 characters long, that MSH-9.3 is present from
// version 2.3.1 on, that MSH-10 is not empty and that MSH-12 is a known version.
func NewVersionValidator() HeaderValidator {
	return versionValidator{}
}

func (versionValidator) Validate(h *Header) (*Header, error) {
	if h == nil {
		return nil, ErrValidation.Wrap(nil, "header is nil")
	}

	if !isKnownVersion(h.Version) {
		return nil, ErrValidation.Wrap(nil, fmt.Sprintf("MSH-12 unknown version %q", h.Version))
	}

	if len(h.MessageType.Code) != 3 {
		return nil, ErrValidation.Wrap(nil, fmt.Sprintf("MSH-9.1 must be 3 characters, got %q", h.MessageType.Code))
	}

	if len(h.MessageType.TriggerEvent) != 3 {
		return nil, ErrValidation.Wrap(nil, fmt.Sprintf("MSH-9.2 must be 3 characters, got %q", h.MessageType.TriggerEvent))
	}

	if compareVersion(h.Version, "2.3.1") >= 0 && h.MessageType.Structure == "" {
		return nil, ErrValidation.Wrap(nil, "MSH-9.3 is required from version 2.3.1")
	}

	if h.ControlID == "" {
		return nil, ErrValidation.Wrap(nil, "MSH-10 is empty")
	}

	return h, nil
}

func isKnownVersion(v string) bool {
	for _, known := range KnownVersions {
		if v == known {
			return true
		}
	}

	return false
}

// compareVersion compares dotted numeric versions, returning -1, 0 or 1.
func compareVersion(a, b string) int {
	as := strings.Split(a, ".")
	bs := strings.Split(b, ".")
	for i := 0; i < len(as) || i < len(bs); i++ {
		var x, y int
		if i < len(as) {
			x, _ = strconv.Atoi(as[i])
		}
		if i < len(bs) {
			y, _ = strconv.Atoi(bs[i])
		}
		switch {
		case x < y:
			return -1
		case x > y:
			return 1
		}
	}

	return 0
}
