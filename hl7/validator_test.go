package hl7

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVersionValidator(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(h *Header)
		wantErr bool
	}{
		{name: "valid", modify: func(h *Header) {}},
		{name: "unknown version", modify: func(h *Header) { h.Version = "9.9" }, wantErr: true},
		{name: "short message code", modify: func(h *Header) { h.MessageType.Code = "AD" }, wantErr: true},
		{name: "long trigger event", modify: func(h *Header) { h.MessageType.TriggerEvent = "A010" }, wantErr: true},
		{name: "missing structure", modify: func(h *Header) { h.MessageType.Structure = "" }, wantErr: true},
		{name: "structure optional before 2.3.1", modify: func(h *Header) {
			h.Version = "2.3"
			h.MessageType.Structure = ""
		}},
		{name: "empty control id", modify: func(h *Header) { h.ControlID = "" }, wantErr: true},
	}

	v := NewVersionValidator()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := testHeader()
			tt.modify(&h)

			got, err := v.Validate(&h)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrValidation)
				require.Nil(t, got)
				return
			}
			require.NoError(t, err)
			require.Same(t, &h, got)
		})
	}
}

func TestValidatePayload(t *testing.T) {
	require := require.New(t)

	good := NewMessage(testHeader()).String()
	bad := testHeader()
	bad.Version = "1.0"

	d := DefaultDelimiters()
	require.NoError(ValidatePayload(good, d, NewVersionValidator()))
	require.NoError(ValidatePayload("anything", d))

	batch := (&Batch{}).Add(NewMessage(testHeader()), NewMessage(bad))
	err := ValidatePayload(batch.String(), d, NewVersionValidator())
	require.ErrorIs(err, ErrValidation)

	errCustom := errors.New("custom")
	custom := HeaderValidatorFunc(func(h *Header) (*Header, error) {
		if h.SendingApplication == "APP" {
			return nil, errCustom
		}
		return h, nil
	})
	require.ErrorIs(ValidatePayload(good, d, custom), errCustom)
}

func TestCompareVersion(t *testing.T) {
	require := require.New(t)

	require.Equal(0, compareVersion("2.3.1", "2.3.1"))
	require.Equal(1, compareVersion("2.5", "2.3.1"))
	require.Equal(-1, compareVersion("2.3", "2.3.1"))
	require.Equal(1, compareVersion("2.10", "2.9"))
}
