package resilience

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBackend = errors.New("backend down")

func TestCircuitBreakerTripsAtThreshold(t *testing.T) {
	cb := NewCircuitBreaker("store", CircuitBreakerConfig{
		FailureThreshold: 3,
		ResetTimeout:     time.Hour,
	})
	fail := func() error { return errBackend }

	for i := 0; i < 2; i++ {
		assert.Equal(t, errBackend, cb.Execute(fail))
	}
	assert.Equal(t, StateClosed, cb.GetState())

	assert.Equal(t, errBackend, cb.Execute(fail))
	assert.Equal(t, StateOpen, cb.GetState())

	calls := 0
	err := cb.Execute(func() error { calls++; return nil })
	require.ErrorIs(t, err, ErrCircuitOpen)
	assert.Zero(t, calls, "open circuit must not invoke the callback")
}

func TestCircuitBreakerSuccessResetsFailureCount(t *testing.T) {
	cb := NewCircuitBreaker("store", CircuitBreakerConfig{
		FailureThreshold: 3,
		ResetTimeout:     time.Hour,
	})
	fail := func() error { return errBackend }
	ok := func() error { return nil }

	cb.Execute(fail)
	cb.Execute(fail)
	require.NoError(t, cb.Execute(ok))

	cb.Execute(fail)
	cb.Execute(fail)
	assert.Equal(t, StateClosed, cb.GetState(), "count restarts after a success")

	cb.Execute(fail)
	assert.Equal(t, StateOpen, cb.GetState())
}

func TestCircuitBreakerAppliesDefaultThreshold(t *testing.T) {
	cb := NewCircuitBreaker("store", CircuitBreakerConfig{})
	fail := func() error { return errBackend }

	for i := 0; i < 4; i++ {
		cb.Execute(fail)
	}
	assert.Equal(t, StateClosed, cb.GetState())

	cb.Execute(fail)
	assert.Equal(t, StateOpen, cb.GetState())
}

func TestCircuitBreakerHalfOpenProbeRecovers(t *testing.T) {
	cb := NewCircuitBreaker("store", CircuitBreakerConfig{
		FailureThreshold: 1,
		ResetTimeout:     10 * time.Millisecond,
	})
	require.Equal(t, errBackend, cb.Execute(func() error { return errBackend }))
	require.Equal(t, StateOpen, cb.GetState())

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, cb.Execute(func() error { return nil }))
	assert.Equal(t, StateClosed, cb.GetState())
}

func TestCircuitBreakerHalfOpenProbeFailureReopens(t *testing.T) {
	cb := NewCircuitBreaker("store", CircuitBreakerConfig{
		FailureThreshold: 1,
		ResetTimeout:     10 * time.Millisecond,
	})
	require.Equal(t, errBackend, cb.Execute(func() error { return errBackend }))

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, errBackend, cb.Execute(func() error { return errBackend }))
	assert.Equal(t, StateOpen, cb.GetState())
}

func TestCircuitBreakerHalfOpenProbeLimit(t *testing.T) {
	cb := NewCircuitBreaker("store", CircuitBreakerConfig{
		FailureThreshold:    1,
		ResetTimeout:        10 * time.Millisecond,
		HalfOpenMaxRequests: 1,
	})
	require.Equal(t, errBackend, cb.Execute(func() error { return errBackend }))
	time.Sleep(50 * time.Millisecond)

	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- cb.Execute(func() error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	// The probe slot is taken, so a second request is rejected without
	// touching the breaker state.
	calls := 0
	err := cb.Execute(func() error { calls++; return nil })
	require.ErrorIs(t, err, ErrCircuitOpen)
	assert.Contains(t, err.Error(), "probe limit")
	assert.Zero(t, calls)

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, StateClosed, cb.GetState())
}

func TestCircuitBreakerResetForcesClosed(t *testing.T) {
	cb := NewCircuitBreaker("store", CircuitBreakerConfig{
		FailureThreshold: 1,
		ResetTimeout:     time.Hour,
	})
	require.Equal(t, errBackend, cb.Execute(func() error { return errBackend }))
	require.ErrorIs(t, cb.Execute(func() error { return nil }), ErrCircuitOpen)

	cb.Reset()
	assert.Equal(t, StateClosed, cb.GetState())

	calls := 0
	require.NoError(t, cb.Execute(func() error { calls++; return nil }))
	assert.Equal(t, 1, calls)
}

func TestCircuitBreakerNotifiesStateChanges(t *testing.T) {
	var seen []State
	cb := NewCircuitBreaker("store", CircuitBreakerConfig{
		FailureThreshold: 2,
		ResetTimeout:     10 * time.Millisecond,
		OnStateChange:    func(s State) { seen = append(seen, s) },
	})
	fail := func() error { return errBackend }

	cb.Execute(fail)
	cb.Execute(fail)
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, cb.Execute(func() error { return nil }))
	cb.Reset()

	assert.Equal(t, []State{StateOpen, StateHalfOpen, StateClosed, StateClosed}, seen)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "half-open", StateHalfOpen.String())
	assert.Equal(t, "unknown", State(99).String())
}
