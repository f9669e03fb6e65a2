package engine

import (
	"errors"
	"fmt"
)

var (
	ErrBufferFull = errors.New("buffer is full")
	ErrBufferSize = errors.New("size must be a power of 2")
)

// ProcessError is returned by a chain when one of its processors fails.
type ProcessError struct {
	Processor string
	Err       error
}

func (e *ProcessError) Error() string {
	return fmt.Sprintf("processor %s: %v", e.Processor, e.Err)
}

func (e *ProcessError) Unwrap() error {
	return e.Err
}
