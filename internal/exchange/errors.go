package exchange

import (
	"errors"
	"fmt"
	"math"

	"kimchi/internal/model"
)

var (
	// ErrNetwork covers transport failures, timeouts and non-2xx responses.
	ErrNetwork = errors.New("network error")
	// ErrMalformedResponse means the body did not have the expected shape.
	ErrMalformedResponse = errors.New("malformed response")
)

// SourceError records which source failed and why.
type SourceError struct {
	Source   model.Source
	Provider string
	Err      error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("%s (%s): %v", e.Source, e.Provider, e.Err)
}

func (e *SourceError) Unwrap() error {
	return e.Err
}

func networkError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNetwork, fmt.Sprintf(format, args...))
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedResponse, fmt.Sprintf(format, args...))
}

func checkFinite(provider string, v float64) (float64, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, malformed("%s: value %v is not a finite number", provider, v)
	}
	return v, nil
}
