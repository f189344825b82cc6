package pool

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimerPool(t *testing.T) {
	t.Run("Get and Put", func(t *testing.T) {
		timer1 := GetTimer(time.Second)
		require.NotNil(t, timer1)
		PutTimer(timer1)

		timer2 := GetTimer(20 * time.Millisecond)
		require.NotNil(t, timer2)
		<-timer2.C
		PutTimer(timer2)
	})

	t.Run("Put Active Timer", func(t *testing.T) {
		timer1 := GetTimer(50 * time.Millisecond)
		time.Sleep(10 * time.Millisecond)
		PutTimer(timer1)

		begin := time.Now()
		timer2 := GetTimer(150 * time.Millisecond)

		select {
		case fired := <-timer2.C:
			assert.GreaterOrEqual(t, fired.Sub(begin), 120*time.Millisecond)
		case <-time.After(time.Second):
			t.Error("timer2 should have fired")
		}
	})

	t.Run("Concurrency", func(t *testing.T) {
		var wg sync.WaitGroup
		for i := 0; i < 100; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				timer := GetTimer(5 * time.Millisecond)
				defer PutTimer(timer)
				<-timer.C
			}()
		}
		wg.Wait()
	})
}

func TestWaitSignal(t *testing.T) {
	t.Run("signal", func(t *testing.T) {
		signal := make(chan struct{})
		go func() {
			time.Sleep(10 * time.Millisecond)
			close(signal)
		}()
		require.NoError(t, WaitSignal(context.Background(), signal, time.Second))
	})

	t.Run("timeout", func(t *testing.T) {
		err := WaitSignal(context.Background(), make(chan struct{}), 20*time.Millisecond)
		require.ErrorIs(t, err, ErrWaitTimeout)
	})

	t.Run("canceled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := WaitSignal(ctx, make(chan struct{}), time.Second)
		require.ErrorIs(t, err, context.Canceled)
	})

	t.Run("no deadline", func(t *testing.T) {
		signal := make(chan struct{}, 1)
		signal <- struct{}{}
		require.NoError(t, WaitSignal(context.Background(), signal, 0))
	})
}
