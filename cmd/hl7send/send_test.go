package main

import (
	"context"
	"testing"
	"time"

	"github.com/arloliu/go-hl7/hl7"
	"github.com/arloliu/go-hl7/logger"
	"github.com/arloliu/go-hl7/mllpclient"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

func newTestSender(t *testing.T, rcv *receiver, fs afero.Fs, opts ...mllpclient.Option) *sender {
	opts = append([]mllpclient.Option{
		mllpclient.WithSocketTimeout(time.Second),
		mllpclient.WithConnectionTimeout(2 * time.Second),
		mllpclient.WithRetryLow(10 * time.Millisecond),
		mllpclient.WithRetryHigh(20 * time.Millisecond),
	}, opts...)

	client, err := mllpclient.NewClient("127.0.0.1", opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	return newSender(client, rcv.port(), fs, logger.GetLogger())
}

func TestSender_SendFile(t *testing.T) {
	tests := []struct {
		name      string
		keepOpen  bool
		wantConns int32
	}{
		{name: "channel per message", keepOpen: false, wantConns: 3},
		{name: "keep open", keepOpen: true, wantConns: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require := require.New(t)

			rcv := startReceiver(t)
			fs := afero.NewMemMapFs()
			require.NoError(afero.WriteFile(fs, "/batch.hl7", []byte(batchFile("P1", "P2", "P3")), 0o644))

			s := newTestSender(t, rcv, fs, mllpclient.WithKeepOpen(tt.keepOpen))
			res, err := s.sendFile(context.Background(), "/batch.hl7")
			require.NoError(err)
			require.Equal(sendResult{Sent: 3, Accepted: 3}, res)
			require.Equal(tt.wantConns, rcv.conns.Load())
			require.Equal(int32(3), rcv.frames.Load())
		})
	}
}

func TestSender_Rejected(t *testing.T) {
	require := require.New(t)

	rcv := startReceiver(t)
	fs := afero.NewMemMapFs()
	require.NoError(afero.WriteFile(fs, "/batch.hl7", []byte(batchFile("P1", "REJECT", "P3")), 0o644))

	s := newTestSender(t, rcv, fs, mllpclient.WithKeepOpen(true))
	res, err := s.sendFile(context.Background(), "/batch.hl7")
	require.NoError(err)
	require.Equal(sendResult{Sent: 3, Accepted: 2, Rejected: 1}, res)
}

func TestSender_NoAck(t *testing.T) {
	require := require.New(t)

	rcv := startReceiver(t)
	rcv.noAck.Store(true)
	fs := afero.NewMemMapFs()
	require.NoError(afero.WriteFile(fs, "/batch.hl7", []byte(batchFile("P1")), 0o644))

	s := newTestSender(t, rcv, fs)
	res, err := s.sendFile(context.Background(), "/batch.hl7")
	require.Error(err)
	require.Equal(1, res.Sent)
	require.Zero(res.acknowledged())
}

func TestSender_FileErrors(t *testing.T) {
	require := require.New(t)

	rcv := startReceiver(t)
	fs := afero.NewMemMapFs()
	require.NoError(afero.WriteFile(fs, "/empty.hl7", nil, 0o644))

	s := newTestSender(t, rcv, fs)

	_, err := s.sendFile(context.Background(), "/missing.hl7")
	require.ErrorIs(err, hl7.ErrFileRead)

	res, err := s.sendFile(context.Background(), "/empty.hl7")
	require.NoError(err)
	require.Equal(sendResult{}, res)
	require.Zero(rcv.conns.Load())
}

func TestSendResult(t *testing.T) {
	a := sendResult{Sent: 2, Accepted: 1, Rejected: 1}
	b := sendResult{Sent: 1, Accepted: 1}

	sum := a.add(b)
	require.Equal(t, sendResult{Sent: 3, Accepted: 2, Rejected: 1}, sum)
	require.Equal(t, 3, sum.acknowledged())
}
