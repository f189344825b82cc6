package hl7

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDelimiters(t *testing.T) {
	require := require.New(t)

	d := DefaultDelimiters()
	require.Equal("\r|^~\\&", d.String())
	require.Equal("^~\\&", d.EncodingCharacters())
	require.NoError(d.Validate())

	parsed, err := ParseDelimiters("\r|^~\\&")
	require.NoError(err)
	require.Equal(d, parsed)

	_, err = ParseDelimiters("\r|^~\\")
	require.ErrorIs(err, ErrInvalidDelimiters)

	_, err = ParseDelimiters("\r||~\\&")
	require.ErrorIs(err, ErrInvalidDelimiters)
	require.True(IsFatal(err))
}

func TestError(t *testing.T) {
	require := require.New(t)

	require.Equal("hl7 error 1001: missing input value", ErrMissingInput.Error())

	wrapped := ErrFileRead.Wrap(ErrMissingInput, "/tmp/x")
	require.ErrorIs(wrapped, ErrFileRead)
	require.ErrorIs(wrapped, ErrMissingInput)
	require.NotErrorIs(wrapped, ErrUnknownEscape)
	require.Equal(CodeFileRead, wrapped.Code)
	require.Contains(wrapped.Error(), "/tmp/x")

	require.False(IsFatal(nil))
}
