package store

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/chemtrack/chemtrack/internal/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMemoryStore(t *testing.T) (*MemoryStore, *clock.Manual) {
	t.Helper()
	c := clock.NewManual(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	return NewMemoryStore(c), c
}

func TestMemoryStore_SetGet(t *testing.T) {
	ctx := context.Background()
	s, c := newTestMemoryStore(t)

	require.NoError(t, s.Set(ctx, "otp:+15551234567", []byte("payload"), time.Minute))

	got, err := s.Get(ctx, "otp:+15551234567")
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), got)

	c.Advance(59 * time.Second)
	_, err = s.Get(ctx, "otp:+15551234567")
	assert.NoError(t, err)

	c.Advance(time.Second)
	_, err = s.Get(ctx, "otp:+15551234567")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_SetOverwritesValueAndTTL(t *testing.T) {
	ctx := context.Background()
	s, c := newTestMemoryStore(t)

	require.NoError(t, s.Set(ctx, "k", []byte("first"), time.Minute))
	c.Advance(50 * time.Second)
	require.NoError(t, s.Set(ctx, "k", []byte("second"), time.Minute))
	c.Advance(50 * time.Second)

	got, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "second", string(got))
}

func TestMemoryStore_ValuesAreCopied(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestMemoryStore(t)

	value := []byte("abc")
	require.NoError(t, s.Set(ctx, "k", value, time.Minute))
	value[0] = 'z'

	got, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got))

	got[1] = 'z'
	again, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(again))
}

func TestMemoryStore_Delete(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestMemoryStore(t)

	require.NoError(t, s.Set(ctx, "k", []byte("v"), time.Minute))
	require.NoError(t, s.Delete(ctx, "k"))

	_, err := s.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.NoError(t, s.Delete(ctx, "missing"))
}

func TestMemoryStore_Claim(t *testing.T) {
	ctx := context.Background()
	s, c := newTestMemoryStore(t)

	require.NoError(t, s.Set(ctx, "k", []byte("v"), time.Minute))

	claimed, err := s.Claim(ctx, "k")
	require.NoError(t, err)
	assert.True(t, claimed)

	claimed, err = s.Claim(ctx, "k")
	require.NoError(t, err)
	assert.False(t, claimed)

	require.NoError(t, s.Set(ctx, "stale", []byte("v"), time.Minute))
	c.Advance(2 * time.Minute)
	claimed, err = s.Claim(ctx, "stale")
	require.NoError(t, err)
	assert.False(t, claimed)
}

func TestMemoryStore_ClaimConcurrent(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestMemoryStore(t)
	require.NoError(t, s.Set(ctx, "k", []byte("v"), time.Minute))

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, err := s.Claim(ctx, "k"); err == nil && ok {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
}

func TestMemoryStore_Increment(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(ctx context.Context, s *MemoryStore)
		wantErr  bool
		expected int64
	}{
		{
			name:     "absent key starts at one",
			setup:    func(ctx context.Context, s *MemoryStore) {},
			expected: 1,
		},
		{
			name: "existing counter is incremented",
			setup: func(ctx context.Context, s *MemoryStore) {
				s.Increment(ctx, "counter", time.Hour)
				s.Increment(ctx, "counter", time.Hour)
			},
			expected: 3,
		},
		{
			name: "non-integer value fails",
			setup: func(ctx context.Context, s *MemoryStore) {
				s.Set(ctx, "counter", []byte("not a number"), time.Hour)
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			s, _ := newTestMemoryStore(t)
			tt.setup(ctx, s)

			got, err := s.Increment(ctx, "counter", time.Hour)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestMemoryStore_IncrementDoesNotExtendWindow(t *testing.T) {
	ctx := context.Background()
	s, c := newTestMemoryStore(t)

	_, err := s.Increment(ctx, "otp_rate_hour:+15551234567", time.Hour)
	require.NoError(t, err)

	c.Advance(40 * time.Minute)
	n, err := s.Increment(ctx, "otp_rate_hour:+15551234567", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	// The window opened at the first increment, so it closes 60 minutes
	// after that, not after the second one.
	c.Advance(20 * time.Minute)
	_, err = s.Get(ctx, "otp_rate_hour:+15551234567")
	assert.ErrorIs(t, err, ErrNotFound)

	n, err = s.Increment(ctx, "otp_rate_hour:+15551234567", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestMemoryStore_SweepPurgesExpiredEntries(t *testing.T) {
	ctx := context.Background()
	s, c := newTestMemoryStore(t)

	require.NoError(t, s.Set(ctx, "stale", []byte("v"), time.Second))
	c.Advance(2 * time.Second)

	for i := 0; i < sweepEvery; i++ {
		require.NoError(t, s.Set(ctx, "live", []byte("v"), time.Hour))
	}

	s.mu.Lock()
	_, present := s.entries["stale"]
	s.mu.Unlock()
	assert.False(t, present)
}

func TestMemoryStore_ConcurrentIncrement(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestMemoryStore(t)

	const workers = 50
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			s.Increment(ctx, "counter", time.Hour)
		}()
	}
	wg.Wait()

	got, err := s.Get(ctx, "counter")
	require.NoError(t, err)
	assert.Equal(t, "50", string(got))
}

func TestMemoryStore_Backend(t *testing.T) {
	s, _ := newTestMemoryStore(t)
	assert.Equal(t, BackendMemory, s.Backend())
	assert.NoError(t, s.Ping(context.Background()))
	assert.NoError(t, s.Close())
}
