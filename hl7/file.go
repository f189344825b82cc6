package hl7

import (
	"bytes"

	"github.com/spf13/afero"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ReadBatchFile reads an HL7 batch file from fs and returns its MSH units.
//
// Batch and file envelope segments are dropped. A failed read returns an error matching
// ErrFileRead.
func ReadBatchFile(fs afero.Fs, path string, d Delimiters) ([]string, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, ErrFileRead.Wrap(err, path)
	}

	data = bytes.TrimPrefix(data, utf8BOM)

	return SplitMessages(string(data), d), nil
}
