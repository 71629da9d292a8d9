package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quietgrove/needledrop/internal/common"
)

func TestNewValidatesSpec(t *testing.T) {
	noop := func(context.Context) error { return nil }

	_, err := New("", 0, noop)
	require.ErrorIs(t, err, common.ErrMissingConfig)

	_, err = New("not a cron spec", 0, noop)
	require.ErrorIs(t, err, common.ErrInvalidConfig)

	_, err = New("0 3 * * *", 0, nil)
	require.ErrorIs(t, err, common.ErrInvalidConfig)

	_, err = New("0 3 * * *", 0, noop)
	require.NoError(t, err)
}

func TestNext(t *testing.T) {
	s, err := New("0 3 * * *", 0, func(context.Context) error { return nil })
	require.NoError(t, err)

	after := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	next := s.Next(after)
	assert.Equal(t, time.Date(2026, 9, 1, 3, 0, 0, 0, time.UTC), next)
}

func TestRunOnceExecutesJob(t *testing.T) {
	ran := false
	s, err := New("0 3 * * *", 0, func(context.Context) error {
		ran = true
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, s.RunOnce(context.Background()))
	assert.True(t, ran)
}

func TestRunOncePropagatesError(t *testing.T) {
	boom := errors.New("boom")
	s, err := New("0 3 * * *", 0, func(context.Context) error { return boom })
	require.NoError(t, err)

	require.ErrorIs(t, s.RunOnce(context.Background()), boom)
}

func TestTimeoutBoundsJob(t *testing.T) {
	s, err := New("0 3 * * *", 10*time.Millisecond, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	require.NoError(t, err)

	err = s.RunOnce(context.Background())
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestOverlappingPassesSkipped(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	var count int
	var mu sync.Mutex

	s, err := New("* * * * *", 0, func(context.Context) error {
		mu.Lock()
		count++
		mu.Unlock()
		close(started)
		<-release
		return nil
	})
	require.NoError(t, err)

	go func() { _ = s.tick(context.Background()) }()
	<-started

	// Second tick while the first is in flight should be a no-op.
	require.NoError(t, s.tick(context.Background()))
	close(release)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, count)
}
