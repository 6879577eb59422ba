package service

import (
	"errors"
	"fmt"
)

// Error categories returned by TodoService. A missing todo is not an error:
// it is reported as a nil todo or a false delete result.
var (
	ErrInvalidInput = errors.New("invalid input")
	ErrStorage      = errors.New("storage error")
)

func invalidInput(err error) error {
	return fmt.Errorf("%w: %w", ErrInvalidInput, err)
}

func storageFailure(err error) error {
	return fmt.Errorf("%w: %w", ErrStorage, err)
}
