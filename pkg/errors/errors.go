package errors

import (
	"errors"
	"fmt"
)

// Sentinels for the vault error taxonomy. Call sites classify with
// errors.Is; Kind names the bucket for wire responses and logs.
var (
	ErrRange    = errors.New("position out of range")
	ErrFormat   = errors.New("malformed input")
	ErrNotFound = errors.New("not found")
	ErrStore    = errors.New("store unavailable")
	ErrGraph    = errors.New("bond graph not traversable")
)

type VaultError struct {
	Err     error
	Message string
}

func (e *VaultError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *VaultError) Unwrap() error {
	return e.Err
}

func New(sentinel error, message string) *VaultError {
	return &VaultError{
		Err:     sentinel,
		Message: message,
	}
}

func Newf(sentinel error, format string, args ...any) *VaultError {
	return &VaultError{
		Err:     sentinel,
		Message: fmt.Sprintf(format, args...),
	}
}

func Rangef(format string, args ...any) *VaultError {
	return Newf(ErrRange, format, args...)
}

func Formatf(format string, args ...any) *VaultError {
	return Newf(ErrFormat, format, args...)
}

func NotFoundf(format string, args ...any) *VaultError {
	return Newf(ErrNotFound, format, args...)
}

func Storef(format string, args ...any) *VaultError {
	return Newf(ErrStore, format, args...)
}

func Graphf(format string, args ...any) *VaultError {
	return Newf(ErrGraph, format, args...)
}

// Kind maps an error to its taxonomy name, "internal" when it belongs to
// no bucket.
func Kind(err error) string {
	switch {
	case errors.Is(err, ErrRange):
		return "range"
	case errors.Is(err, ErrFormat):
		return "format"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrStore):
		return "store"
	case errors.Is(err, ErrGraph):
		return "graph"
	default:
		return "internal"
	}
}

// Retryable reports whether a retry could plausibly change the outcome.
// Only store-connectivity failures qualify; structural errors never do.
func Retryable(err error) bool {
	return errors.Is(err, ErrStore)
}
