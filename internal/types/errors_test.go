package types

import (
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInvalidInputError(t *testing.T) {
	err := fmt.Errorf("analyze: %w", &InvalidInputError{Field: "radius", Value: -5.0, Constraint: "> 0"})

	assert.True(t, errors.Is(err, ErrInvalidInput))
	assert.False(t, errors.Is(err, ErrDataFetch))

	var inv *InvalidInputError
	require.True(t, errors.As(err, &inv))
	assert.Equal(t, "radius", inv.Field)
	assert.Contains(t, err.Error(), "invalid radius -5: must be > 0")
}

func TestDataFetchError(t *testing.T) {
	err := &DataFetchError{Attempts: 3, Endpoints: []string{"http://a", "http://b"}, Err: io.ErrUnexpectedEOF}

	assert.True(t, errors.Is(err, ErrDataFetch))
	assert.True(t, errors.Is(err, io.ErrUnexpectedEOF))
	assert.Contains(t, err.Error(), "after 3 attempts")
	assert.Contains(t, err.Error(), "http://a, http://b")
}
