package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockTokenStore is a mock of TokenStore
type MockTokenStore struct {
	mock.Mock
}

func (m *MockTokenStore) DeleteStaleTokens(ctx context.Context, before time.Time) (int64, error) {
	args := m.Called(ctx, before)
	return args.Get(0).(int64), args.Error(1)
}

type countingRecorder struct {
	mu    sync.Mutex
	total int64
}

func (r *countingRecorder) RecordTokensSwept(n int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.total += n
}

func (r *countingRecorder) Total() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.total
}

func TestSweepOnce(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	ctx := context.Background()

	t.Run("Deletes tokens older than retention", func(t *testing.T) {
		store := new(MockTokenStore)
		recorder := &countingRecorder{}
		sweeper := NewSweeper(store, recorder, time.Minute, 24*time.Hour)
		sweeper.now = func() time.Time { return now }
		store.On("DeleteStaleTokens", ctx, now.Add(-24*time.Hour)).Return(int64(4), nil)

		n, err := sweeper.SweepOnce(ctx)

		require.NoError(t, err)
		assert.Equal(t, int64(4), n)
		assert.Equal(t, int64(4), recorder.Total())
		store.AssertExpectations(t)
	})

	t.Run("Store error is returned", func(t *testing.T) {
		store := new(MockTokenStore)
		sweeper := NewSweeper(store, nil, time.Minute, 0)
		sweeper.now = func() time.Time { return now }
		store.On("DeleteStaleTokens", ctx, now).Return(int64(0), errors.New("db down"))

		_, err := sweeper.SweepOnce(ctx)

		assert.EqualError(t, err, "db down")
	})
}

func TestRunStopsOnCancel(t *testing.T) {
	store := new(MockTokenStore)
	store.On("DeleteStaleTokens", mock.Anything, mock.Anything).Return(int64(1), nil)
	recorder := &countingRecorder{}
	sweeper := NewSweeper(store, recorder, 5*time.Millisecond, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sweeper.Run(ctx) }()

	assert.Eventually(t, func() bool { return recorder.Total() >= 2 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}

func TestRunDisabled(t *testing.T) {
	store := new(MockTokenStore)
	sweeper := NewSweeper(store, nil, 0, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.NoError(t, sweeper.Run(ctx))
	store.AssertNotCalled(t, "DeleteStaleTokens", mock.Anything, mock.Anything)
}
