package hl7

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSplit(t *testing.T) {
	d := DefaultDelimiters()

	tests := []struct {
		name string
		in   string
		want []string
	}{
		{
			name: "two messages",
			in:   "MSH|^~\\&|X\rMSH|^~\\&|Y",
			want: []string{"MSH|^~\\&|X\r", "MSH|^~\\&|Y"},
		},
		{
			name: "crlf terminator",
			in:   "MSH|a\r\nPID|1\r\nMSH|b",
			want: []string{"MSH|a\r\nPID|1\r\n", "MSH|b"},
		},
		{
			name: "lf terminator",
			in:   "MSH|a\nMSH|b\n",
			want: []string{"MSH|a\n", "MSH|b\n"},
		},
		{
			name: "batch envelope",
			in:   "FHS|^~\\&\rBHS|^~\\&\rMSH|^~\\&|1\rPID|x\rBTS|1\rFTS|1",
			want: []string{"FHS|^~\\&\r", "BHS|^~\\&\r", "MSH|^~\\&|1\rPID|x\r", "BTS|1\r", "FTS|1"},
		},
		{
			name: "name not at segment start",
			in:   "MSH|x\rPID|MSH|",
			want: []string{"MSH|x\rPID|MSH|"},
		},
		{
			name: "name without field separator",
			in:   "MSH|x\rMSHX|y",
			want: []string{"MSH|x\rMSHX|y"},
		},
		{
			name: "no boundary",
			in:   "PID|1",
			want: []string{"PID|1"},
		},
		{
			name: "leading text",
			in:   "junk\rMSH|x",
			want: []string{"junk\r", "MSH|x"},
		},
		{
			name: "empty",
			in:   "",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Split(tt.in, d)
			require.Equal(t, tt.want, got)
			require.Equal(t, tt.in, strings.Join(got, ""))
		})
	}
}

func TestSplit_Boundaries(t *testing.T) {
	require := require.New(t)

	in := "MSH|^~\\&|X\rMSH|^~\\&|Y"
	segs := Split(in, DefaultDelimiters())
	require.Len(segs, 2)
	require.Equal("MSH|^~\\&|X", strings.TrimSuffix(segs[0], "\r"))
	require.Equal("MSH|^~\\&|Y", segs[1])
}

func TestSplit_CustomFieldSeparator(t *testing.T) {
	d, err := ParseDelimiters("\r#^~\\&")
	require.NoError(t, err)

	segs := Split("MSH#^~\\&#A\rMSH|x\rMSH#^~\\&#B", d)
	require.Equal(t, []string{"MSH#^~\\&#A\rMSH|x\r", "MSH#^~\\&#B"}, segs)
}

func TestSplitMessages(t *testing.T) {
	require := require.New(t)

	in := "FHS|^~\\&\nBHS|^~\\&\nMSH|^~\\&|1\nPID|x\nMSH|^~\\&|2\r\nBTS|2\nFTS|1\n"
	msgs := SplitMessages(in, DefaultDelimiters())
	require.Equal([]string{"MSH|^~\\&|1\rPID|x\r", "MSH|^~\\&|2\r"}, msgs)

	require.Empty(SplitMessages("PID|1", DefaultDelimiters()))
}
