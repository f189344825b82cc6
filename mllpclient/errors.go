package mllpclient

import (
	"errors"

	"github.com/arloliu/go-hl7/hl7"
)

var (
	// ErrChannelClosed indicates a send on a channel that is closing or closed.
	// It carries hl7.CodeChannelClosed.
	ErrChannelClosed = hl7.NewError(hl7.CodeChannelClosed, "channel is closing or closed")

	// ErrConnectionTimeout indicates that the connection was not ready within the connection
	// timeout. It carries hl7.CodeConnectionTimeout and is never retried.
	ErrConnectionTimeout = hl7.NewError(hl7.CodeConnectionTimeout, "connection timeout")
)

var (
	// ErrConfigNil indicates that a nil ChannelConfig was provided.
	ErrConfigNil = errors.New("channel config is nil")

	// ErrInvalidTransition is returned when a state transition is not allowed from the current state.
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrSocketTimeout indicates that connection attempts timed out and no retry is left.
	ErrSocketTimeout = errors.New("socket timeout")

	// ErrRemoteClosed indicates that the receiver closed the connection.
	ErrRemoteClosed = errors.New("connection closed by remote")

	// ErrNotSendable indicates that the channel did not become sendable within the wait budget.
	ErrNotSendable = errors.New("channel is not sendable")

	// errNotReady is the transient condition polled by the send guard.
	errNotReady = errors.New("channel is not ready")
)
