package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// CircuitState is the state of a BreakerStore.
type CircuitState int

const (
	CircuitClosed CircuitState = iota
	CircuitOpen
	CircuitHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerStore wraps a MappingStore with a circuit breaker. After
// maxFailures consecutive backend errors every call fails fast with
// ErrUnavailable until timeout has elapsed; the next call is then let
// through as a probe.
type BreakerStore struct {
	inner       MappingStore
	maxFailures int
	timeout     time.Duration

	mu          sync.Mutex
	failures    int
	lastFailure time.Time
	state       CircuitState
	now         func() time.Time
}

func NewBreakerStore(inner MappingStore, maxFailures int, timeout time.Duration) *BreakerStore {
	if maxFailures < 1 {
		maxFailures = 1
	}
	return &BreakerStore{
		inner:       inner,
		maxFailures: maxFailures,
		timeout:     timeout,
		state:       CircuitClosed,
		now:         time.Now,
	}
}

func (b *BreakerStore) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case CircuitOpen:
		if b.now().Sub(b.lastFailure) > b.timeout {
			b.state = CircuitHalfOpen
			return true
		}
		return false
	default:
		return true
	}
}

// record classifies err: lookups that miss and validation failures are
// answers, not backend failures.
func (b *BreakerStore) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err == nil || errors.Is(err, ErrNotFound) || errors.Is(err, ErrInvalidMapping) {
		b.failures = 0
		b.state = CircuitClosed
		return
	}
	b.failures++
	b.lastFailure = b.now()
	if b.state == CircuitHalfOpen || b.failures >= b.maxFailures {
		b.state = CircuitOpen
	}
}

// State reports the current circuit state.
func (b *BreakerStore) State() CircuitState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *BreakerStore) do(op func() error) error {
	if !b.allow() {
		return ErrUnavailable
	}
	err := op()
	b.record(err)
	if err != nil && !errors.Is(err, ErrNotFound) && !errors.Is(err, ErrInvalidMapping) {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return err
}

func (b *BreakerStore) Lookup(ctx context.Context, searchTitle string) (*Mapping, error) {
	var m *Mapping
	err := b.do(func() error {
		var err error
		m, err = b.inner.Lookup(ctx, searchTitle)
		return err
	})
	return m, err
}

func (b *BreakerStore) Save(ctx context.Context, m Mapping) error {
	return b.do(func() error { return b.inner.Save(ctx, m) })
}

func (b *BreakerStore) Delete(ctx context.Context, searchTitle string) error {
	return b.do(func() error { return b.inner.Delete(ctx, searchTitle) })
}

func (b *BreakerStore) List(ctx context.Context) ([]Mapping, error) {
	var out []Mapping
	err := b.do(func() error {
		var err error
		out, err = b.inner.List(ctx)
		return err
	})
	return out, err
}
