package hl7

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

func TestReadBatchFile(t *testing.T) {
	require := require.New(t)

	fs := afero.NewMemMapFs()
	data := "\xEF\xBB\xBFFHS|^~\\&\nBHS|^~\\&\nMSH|^~\\&|A\nPID|1\nMSH|^~\\&|B\nBTS|2\nFTS|1\n"
	require.NoError(afero.WriteFile(fs, "/outbox/batch.hl7", []byte(data), 0o644))

	msgs, err := ReadBatchFile(fs, "/outbox/batch.hl7", DefaultDelimiters())
	require.NoError(err)
	require.Equal([]string{"MSH|^~\\&|A\rPID|1\r", "MSH|^~\\&|B\r"}, msgs)

	_, err = ReadBatchFile(fs, "/outbox/missing.hl7", DefaultDelimiters())
	require.ErrorIs(err, ErrFileRead)
	require.True(IsFatal(err))
}
