package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConstructorsWrapTheirSentinel(t *testing.T) {
	cases := []struct {
		name     string
		err      error
		sentinel error
		text     string
	}{
		{"range", Rangef("position %d", 9), ErrRange, "position out of range: position 9"},
		{"format", Formatf("bad field %q", "x"), ErrFormat, `malformed input: bad field "x"`},
		{"not found", NotFoundf("document %s", "19/0/1"), ErrNotFound, "not found: document 19/0/1"},
		{"store", Storef("dial refused"), ErrStore, "store unavailable: dial refused"},
		{"graph", Graphf("degree imbalance"), ErrGraph, "bond graph not traversable: degree imbalance"},
		{"plain constructor", New(ErrFormat, "fixed message"), ErrFormat, "malformed input: fixed message"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.True(t, errors.Is(tc.err, tc.sentinel))
			assert.Equal(t, tc.text, tc.err.Error())
		})
	}
}

func TestKind(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{Rangef("x"), "range"},
		{Formatf("x"), "format"},
		{NotFoundf("x"), "not_found"},
		{Storef("x"), "store"},
		{Graphf("x"), "graph"},
		{errors.New("plain"), "internal"},
		{fmt.Errorf("wrapped: %w", errors.New("plain")), "internal"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Kind(tc.err), "error %v", tc.err)
	}
}

// TestKindSurvivesWrapping pins that classification still works after a
// caller has wrapped the error with its own context.
func TestKindSurvivesWrapping(t *testing.T) {
	err := fmt.Errorf("loading positions: %w", Storef("connection reset"))
	require.True(t, errors.Is(err, ErrStore))
	assert.Equal(t, "store", Kind(err))
	assert.Equal(t, "loading positions: store unavailable: connection reset", err.Error())
}

func TestRetryable(t *testing.T) {
	assert.True(t, Retryable(Storef("down")))
	assert.True(t, Retryable(fmt.Errorf("attempt 3: %w", Storef("down"))))
	assert.False(t, Retryable(NotFoundf("gone")))
	assert.False(t, Retryable(Formatf("bad")))
	assert.False(t, Retryable(Rangef("out")))
	assert.False(t, Retryable(errors.New("plain")))
}

func TestSentinelsAreDistinct(t *testing.T) {
	sentinels := []error{ErrRange, ErrFormat, ErrNotFound, ErrStore, ErrGraph}
	for i, a := range sentinels {
		for j, b := range sentinels {
			if i != j {
				require.False(t, errors.Is(a, b), "%v must not match %v", a, b)
			}
		}
	}
}
