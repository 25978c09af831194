package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ticket-platform/internal/status"
)

func newTestRedisLocker(t *testing.T, ttl time.Duration) (*RedisLocker, redismock.ClientMock) {
	t.Helper()

	client, mock := redismock.NewClientMock()
	l := NewRedisLocker(client, ttl)
	l.retry = 10 * time.Millisecond
	l.newToken = func() string { return "token-1" }
	return l, mock
}

func TestRedisLocker_AcquireAndRelease(t *testing.T) {
	l, mock := newTestRedisLocker(t, time.Second)

	mock.ExpectSetNX("lock:payment:pay_1", "token-1", time.Second).SetVal(true)
	mock.ExpectEval(releaseScript, []string{"lock:payment:pay_1"}, "token-1").SetVal(int64(1))

	unlock, err := l.Lock(context.Background(), "pay_1")
	require.NoError(t, err)
	unlock()

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisLocker_RetriesUntilFree(t *testing.T) {
	l, mock := newTestRedisLocker(t, time.Second)

	mock.ExpectSetNX("lock:payment:pay_1", "token-1", time.Second).SetVal(false)
	mock.ExpectSetNX("lock:payment:pay_1", "token-1", time.Second).SetVal(true)

	_, err := l.Lock(context.Background(), "pay_1")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisLocker_GivesUp(t *testing.T) {
	l, mock := newTestRedisLocker(t, 15*time.Millisecond)

	for i := 0; i < 5; i++ {
		mock.ExpectSetNX("lock:payment:pay_1", "token-1", 15*time.Millisecond).SetVal(false)
	}

	_, err := l.Lock(context.Background(), "pay_1")
	assert.ErrorIs(t, err, status.ErrLockNotAcquired)
}

func TestRedisLocker_ContextCancelled(t *testing.T) {
	l, mock := newTestRedisLocker(t, time.Minute)
	mock.ExpectSetNX("lock:payment:pay_1", "token-1", time.Minute).SetVal(false)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := l.Lock(ctx, "pay_1")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRedisLocker_RedisError(t *testing.T) {
	l, mock := newTestRedisLocker(t, time.Second)
	mock.ExpectSetNX("lock:payment:pay_1", "token-1", time.Second).SetErr(errors.New("connection refused"))

	_, err := l.Lock(context.Background(), "pay_1")
	assert.ErrorContains(t, err, "connection refused")
}

func TestLocalLocker_Serializes(t *testing.T) {
	l := NewLocalLocker()

	var (
		mu      sync.Mutex
		inside  int
		maxSeen int
		wg      sync.WaitGroup
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := l.Lock(context.Background(), "pay_1")
			if !assert.NoError(t, err) {
				return
			}
			defer unlock()

			mu.Lock()
			inside++
			if inside > maxSeen {
				maxSeen = inside
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			inside--
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxSeen)
}

func TestLocalLocker_StopsWaitingOnCancel(t *testing.T) {
	l := NewLocalLocker()

	unlock, err := l.Lock(context.Background(), "pay_1")
	require.NoError(t, err)
	defer unlock()

	ctx, cancel := context.WithCancel(context.Background())
	result := make(chan error, 1)
	go func() {
		_, err := l.Lock(ctx, "pay_1")
		result <- err
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-result:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("waiter did not return after cancel")
	}
}

type recordingLocker struct {
	name  string
	log   *[]string
	fails bool
}

func (r recordingLocker) Lock(ctx context.Context, key string) (func(), error) {
	if r.fails {
		return nil, status.ErrLockNotAcquired
	}
	*r.log = append(*r.log, "lock "+r.name)
	return func() { *r.log = append(*r.log, "unlock "+r.name) }, nil
}

func TestMultiLocker(t *testing.T) {
	var log []string
	m := MultiLocker{
		recordingLocker{name: "local", log: &log},
		recordingLocker{name: "redis", log: &log},
	}

	unlock, err := m.Lock(context.Background(), "pay_1")
	require.NoError(t, err)
	unlock()

	assert.Equal(t, []string{"lock local", "lock redis", "unlock redis", "unlock local"}, log)

	log = nil
	m = MultiLocker{
		recordingLocker{name: "local", log: &log},
		recordingLocker{name: "redis", log: &log, fails: true},
	}
	_, err = m.Lock(context.Background(), "pay_1")
	assert.ErrorIs(t, err, status.ErrLockNotAcquired)
	assert.Equal(t, []string{"lock local", "unlock local"}, log)
}
