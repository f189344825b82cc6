package mllpclient

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"time"
)

const dialKeepAlive = 30 * time.Second

// Dialer opens sockets. *net.Dialer and *tls.Dialer implement it.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

func newDefaultDialer(tlsCfg *tls.Config) Dialer {
	netDialer := &net.Dialer{KeepAlive: dialKeepAlive}
	if tlsCfg != nil {
		return &tls.Dialer{NetDialer: netDialer, Config: tlsCfg}
	}

	return netDialer
}

// isTimeout reports whether a dial error is a timeout rather than a refusal or failure.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error

	return errors.As(err, &netErr) && netErr.Timeout()
}
