package conversation

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionLocksSerializeSameSession(t *testing.T) {
	locks := NewSessionLocks()
	var active, maxActive int32
	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := locks.Lock(context.Background(), "s1")
			if err != nil {
				t.Error(err)
				return
			}
			defer unlock()
			n := atomic.AddInt32(&active, 1)
			for {
				m := atomic.LoadInt32(&maxActive)
				if n <= m || atomic.CompareAndSwapInt32(&maxActive, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&active, -1)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxActive)
	assert.Zero(t, locks.Len())
}

func TestSessionLocksIndependentSessions(t *testing.T) {
	locks := NewSessionLocks()
	unlockA, err := locks.Lock(context.Background(), "a")
	require.NoError(t, err)
	defer unlockA()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	unlockB, err := locks.Lock(ctx, "b")
	require.NoError(t, err)
	unlockB()
	unlockB()
	assert.Equal(t, 1, locks.Len())
}

func TestSessionLocksContextDone(t *testing.T) {
	locks := NewSessionLocks()
	unlock, err := locks.Lock(context.Background(), "s1")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = locks.Lock(ctx, "s1")
	require.ErrorIs(t, err, context.DeadlineExceeded)

	unlock()
	assert.Zero(t, locks.Len())
}
