package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flakyStore struct {
	*MemoryStore
	err   error
	calls int
}

func (f *flakyStore) Lookup(ctx context.Context, title string) (*Mapping, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.MemoryStore.Lookup(ctx, title)
}

func TestBreakerStore_OpensAfterFailures(t *testing.T) {
	inner := &flakyStore{MemoryStore: NewMemoryStore(), err: errors.New("connection refused")}
	b := NewBreakerStore(inner, 2, time.Minute)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := b.Lookup(ctx, "x")
		assert.ErrorIs(t, err, ErrUnavailable)
	}
	assert.Equal(t, CircuitOpen, b.State())

	_, err := b.Lookup(ctx, "x")
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, 2, inner.calls, "open circuit must not reach the backend")
}

func TestBreakerStore_HalfOpenProbe(t *testing.T) {
	inner := &flakyStore{MemoryStore: NewMemoryStore(), err: errors.New("timeout")}
	b := NewBreakerStore(inner, 1, time.Minute)
	now := time.Now()
	b.now = func() time.Time { return now }
	ctx := context.Background()

	_, err := b.Lookup(ctx, "x")
	require.ErrorIs(t, err, ErrUnavailable)
	require.Equal(t, CircuitOpen, b.State())

	now = now.Add(2 * time.Minute)
	inner.err = nil
	_, err = b.Lookup(ctx, "x")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, CircuitClosed, b.State())
}

func TestBreakerStore_HalfOpenFailureReopens(t *testing.T) {
	inner := &flakyStore{MemoryStore: NewMemoryStore(), err: errors.New("timeout")}
	b := NewBreakerStore(inner, 3, time.Minute)
	now := time.Now()
	b.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, _ = b.Lookup(ctx, "x")
	}
	require.Equal(t, CircuitOpen, b.State())

	now = now.Add(2 * time.Minute)
	_, err := b.Lookup(ctx, "x")
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, CircuitOpen, b.State())
}

func TestBreakerStore_NotFoundIsNotFailure(t *testing.T) {
	b := NewBreakerStore(NewMemoryStore(), 1, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := b.Lookup(ctx, "missing")
		assert.ErrorIs(t, err, ErrNotFound)
	}
	assert.Equal(t, CircuitClosed, b.State())

	require.NoError(t, b.Save(ctx, Mapping{SearchTitle: "t", ContentID: "c"}))
	m, err := b.Lookup(ctx, "t")
	require.NoError(t, err)
	assert.Equal(t, "c", m.ContentID)

	all, err := b.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
	require.NoError(t, b.Delete(ctx, "t"))
}

func TestCircuitState_String(t *testing.T) {
	assert.Equal(t, "closed", CircuitClosed.String())
	assert.Equal(t, "open", CircuitOpen.String())
	assert.Equal(t, "half-open", CircuitHalfOpen.String())
}
