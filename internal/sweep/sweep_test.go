package sweep

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// backlog hands out up to batch items per call until it is empty.
type backlog struct {
	mu      sync.Mutex
	left    int
	calls   int
	batches []int
	err     error
}

func (b *backlog) take(_ context.Context, _ time.Time, batch int) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls++
	b.batches = append(b.batches, batch)
	if b.err != nil {
		return 0, b.err
	}
	n := min(b.left, batch)
	b.left -= n
	return n, nil
}

func (b *backlog) ExpirePoints(ctx context.Context, now time.Time, batch int) (int, error) {
	return b.take(ctx, now, batch)
}

func (b *backlog) ExpireStale(ctx context.Context, now time.Time, batch int) (int, error) {
	return b.take(ctx, now, batch)
}

func (b *backlog) Calls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls
}

func TestDrainUntilShortBatch(t *testing.T) {
	points := &backlog{left: 25}
	s := New(points, &backlog{}, 10)

	n, err := s.ExpirePoints(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 25, n)
	assert.Equal(t, 3, points.Calls())
	assert.Equal(t, []int{10, 10, 10}, points.batches)
}

func TestDrainStopsOnError(t *testing.T) {
	boom := errors.New("boom")
	redemptions := &backlog{err: boom}
	s := New(&backlog{}, redemptions, 10)

	_, err := s.ExpireRedemptions(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, redemptions.Calls())
}

func TestDrainIsBounded(t *testing.T) {
	points := &backlog{left: 1_000_000}
	s := New(points, &backlog{}, 1)

	n, err := s.ExpirePoints(context.Background())
	require.NoError(t, err)
	assert.Equal(t, maxRounds, n)
}

func TestDrainHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	points := &backlog{left: 5}

	_, err := New(points, &backlog{}, 10).ExpirePoints(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, points.Calls())
}

func TestDefaultBatch(t *testing.T) {
	assert.Equal(t, 500, New(&backlog{}, &backlog{}, 0).batch)
}

func TestStartRunsBothJobsImmediately(t *testing.T) {
	points := &backlog{left: 3}
	redemptions := &backlog{left: 2}
	s := New(points, redemptions, 10)

	stop, err := s.Start(context.Background(), time.Hour)
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		return points.Calls() >= 1 && redemptions.Calls() >= 1
	}, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, stop())
}
