package types

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidInput matches every InvalidInputError via errors.Is.
	ErrInvalidInput = errors.New("invalid input")
	// ErrDataFetch matches every DataFetchError via errors.Is.
	ErrDataFetch = errors.New("data fetch failed")
)

// InvalidInputError reports a malformed or out-of-range request value.
// It is returned before any network activity.
type InvalidInputError struct {
	Field      string
	Value      any
	Constraint string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid %s %v: must be %s", e.Field, e.Value, e.Constraint)
}

func (e *InvalidInputError) Is(target error) bool {
	return target == ErrInvalidInput
}

// DataFetchError reports that every endpoint and retry was exhausted.
type DataFetchError struct {
	Attempts  int
	Endpoints []string
	Err       error // last failure observed
}

func (e *DataFetchError) Error() string {
	msg := fmt.Sprintf("overpass fetch failed after %d attempts against [%s]",
		e.Attempts, strings.Join(e.Endpoints, ", "))
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DataFetchError) Unwrap() error {
	return e.Err
}

func (e *DataFetchError) Is(target error) bool {
	return target == ErrDataFetch
}
