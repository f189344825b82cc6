package pool

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrWaitTimeout is returned by WaitSignal when the wait budget expires.
var ErrWaitTimeout = errors.New("wait timeout")

var timerPool sync.Pool

// GetTimer returns a stopped-and-reset timer that fires after d.
//
// Return the timer with PutTimer once it is no longer used.
func GetTimer(d time.Duration) *time.Timer {
	if v := timerPool.Get(); v != nil {
		t, _ := v.(*time.Timer)
		if t.Reset(d) {
			select {
			case <-t.C:
			default:
			}
		}

		return t
	}

	return time.NewTimer(d)
}

// PutTimer stops t and puts it back to the pool. t must not be used afterwards.
func PutTimer(t *time.Timer) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	timerPool.Put(t)
}

// WaitSignal blocks until signal is closed or receives a value, ctx is done, or d elapses.
//
// It returns nil on signal, ctx.Err() on cancellation and ErrWaitTimeout on expiry.
// A non-positive d waits without a deadline.
func WaitSignal(ctx context.Context, signal <-chan struct{}, d time.Duration) error {
	if d <= 0 {
		select {
		case <-signal:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	timer := GetTimer(d)
	defer PutTimer(timer)

	select {
	case <-signal:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return ErrWaitTimeout
	}
}
