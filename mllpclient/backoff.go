package mllpclient

import (
	"time"

	"github.com/arloliu/go-hl7/internal/util"
	"github.com/cenkalti/backoff/v4"
)

const retryDelayFactor = 2

// Backoff returns the delay before retry number retryCount, starting at 1.
//
// The delay starts at low and doubles on every retry, capped at high. The result is
// non-decreasing in retryCount and always within [low, high].
func Backoff(retryCount int, low, high time.Duration) time.Duration {
	if retryCount < 1 {
		retryCount = 1
	}
	if high < low {
		high = low
	}

	b := backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(low),
		backoff.WithMaxInterval(high),
		backoff.WithMultiplier(retryDelayFactor),
		backoff.WithRandomizationFactor(0),
		backoff.WithMaxElapsedTime(0),
	)

	var delay time.Duration
	for i := 0; i < retryCount; i++ {
		delay = b.NextBackOff()
		if delay >= high {
			break
		}
	}

	return util.ClampDuration(delay, low, high)
}
