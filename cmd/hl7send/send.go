package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/arloliu/go-hl7/hl7"
	"github.com/arloliu/go-hl7/logger"
	"github.com/arloliu/go-hl7/mllpclient"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

var (
	errAckTimeout = errors.New("acknowledgment timeout")
	errAckMissing = errors.New("channel closed before every message was acknowledged")
)

// sendResult counts the outcome of sending one file.
type sendResult struct {
	Sent     int
	Accepted int
	Rejected int
}

func (r sendResult) add(other sendResult) sendResult {
	return sendResult{
		Sent:     r.Sent + other.Sent,
		Accepted: r.Accepted + other.Accepted,
		Rejected: r.Rejected + other.Rejected,
	}
}

func (r sendResult) acknowledged() int {
	return r.Accepted + r.Rejected
}

// sender sends the messages of batch files through one client.
type sender struct {
	client     *mllpclient.Client
	port       int
	fs         afero.Fs
	delims     hl7.Delimiters
	keepOpen   bool
	ackTimeout time.Duration
	logger     logger.Logger
}

func newSender(client *mllpclient.Client, port int, fs afero.Fs, l logger.Logger) *sender {
	cfg := client.Config()

	return &sender{
		client:     client,
		port:       port,
		fs:         fs,
		delims:     cfg.Delimiters(),
		keepOpen:   cfg.KeepOpen(),
		ackTimeout: cfg.SocketTimeout() + cfg.ConnectionTimeout(),
		logger:     l,
	}
}

// sendFile sends every message of the file at path. With keep-open all messages share one
// channel, otherwise each message gets its own connect, send, acknowledge cycle.
func (s *sender) sendFile(ctx context.Context, path string) (sendResult, error) {
	units, err := hl7.ReadBatchFile(s.fs, path, s.delims)
	if err != nil {
		return sendResult{}, err
	}

	if len(units) == 0 {
		s.logger.Warn("no messages found", "file", path)
		return sendResult{}, nil
	}

	if s.keepOpen {
		return s.sendSession(ctx, units)
	}

	var total sendResult
	for _, unit := range units {
		res, err := s.sendSession(ctx, []string{unit})
		total = total.add(res)
		if err != nil {
			return total, err
		}
	}

	return total, nil
}

// sendSession sends units over one channel and waits for their acknowledgments.
func (s *sender) sendSession(ctx context.Context, units []string) (sendResult, error) {
	var res sendResult

	acks := make(chan *hl7.Ack, len(units))
	ch, err := s.client.CreateChannel(ctx, s.port, func(_ *mllpclient.Channel, ack *hl7.Ack) {
		select {
		case acks <- ack:
		default:
		}
	})
	if err != nil {
		return res, err
	}
	defer ch.Close()

	for _, unit := range units {
		if err := ch.SendMessage(ctx, hl7.RawPayload(unit)); err != nil {
			return res, err
		}
		res.Sent++
	}

	timer := time.NewTimer(s.ackTimeout)
	defer timer.Stop()

	for res.acknowledged() < len(units) {
		select {
		case ack := <-acks:
			s.record(&res, ack)
		case <-ch.Done():
			for len(acks) > 0 {
				s.record(&res, <-acks)
			}
			if res.acknowledged() < len(units) {
				if err := ch.Err(); err != nil {
					return res, err
				}

				return res, errAckMissing
			}
		case <-timer.C:
			return res, fmt.Errorf("%w after %s", errAckTimeout, s.ackTimeout)
		case <-ctx.Done():
			return res, ctx.Err()
		}
	}

	return res, nil
}

func (s *sender) record(res *sendResult, ack *hl7.Ack) {
	if ack.Accepted() {
		res.Accepted++
		return
	}

	res.Rejected++
	s.logger.Warn("message rejected", "ackCode", ack.Code, "controlID", ack.ControlID, "text", ack.Text)
}

func (a *app) newClient() (*mllpclient.Client, error) {
	opts, err := a.cfg.ClientOptions(a.logger)
	if err != nil {
		return nil, err
	}

	return mllpclient.NewClient(a.cfg.Host, opts...)
}

func (a *app) sendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "send FILE...",
		Short: "Send the messages of HL7 batch files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.newClient()
			if err != nil {
				return err
			}
			defer client.Close()

			s := newSender(client, a.cfg.Port, a.fs, a.logger)

			var total sendResult
			for _, path := range args {
				res, err := s.sendFile(cmd.Context(), path)
				total = total.add(res)
				if err != nil {
					return fmt.Errorf("send %s: %w", path, err)
				}
				a.logger.Info("file sent", "file", path, "sent", res.Sent, "accepted", res.Accepted, "rejected", res.Rejected)
			}

			if total.Rejected > 0 {
				return fmt.Errorf("%d of %d message(s) rejected", total.Rejected, total.Sent)
			}

			return nil
		},
	}
}
